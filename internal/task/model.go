package task

import (
	"time"

	"gorm.io/gorm"
)

type Status string

const (
	StatusOpen       Status = "Open"
	StatusInProgress Status = "In Progress"
	StatusDone       Status = "Done"
)

func (s Status) IsValid() bool {
	return s == StatusOpen || s == StatusInProgress || s == StatusDone
}

type Priority string

const (
	PriorityLow    Priority = "Low"
	PriorityMedium Priority = "Medium"
	PriorityHigh   Priority = "High"
)

func (p Priority) IsValid() bool {
	return p == PriorityLow || p == PriorityMedium || p == PriorityHigh
}

// RelatedType names what a task can point at.
type RelatedType string

const (
	RelatedLead     RelatedType = "Lead"
	RelatedCustomer RelatedType = "Customer"
)

func (t RelatedType) IsValid() bool {
	return t == RelatedLead || t == RelatedCustomer
}

type RelatedRef struct {
	Type RelatedType `json:"type" validate:"required,enum"`
	ID   uint        `json:"id" validate:"required"`
}

// Task.RelatedTo is stored flat in related_type/related_id so it can be filtered on.
type Task struct {
	ID           uint        `gorm:"primaryKey" json:"id"`
	Title        string      `gorm:"size:200;not null" json:"title"`
	Description  string      `gorm:"type:text" json:"description"`
	DueDate      time.Time   `gorm:"not null;index" json:"dueDate"`
	Status       Status      `gorm:"size:20;not null;default:Open;index" json:"status"`
	Priority     Priority    `gorm:"size:10;not null;default:Medium" json:"priority"`
	RelatedTo    *RelatedRef `gorm:"-" json:"relatedTo"`
	RelatedType  RelatedType `gorm:"size:20;index:idx_tasks_related" json:"-"`
	RelatedID    *uint       `gorm:"index:idx_tasks_related" json:"-"`
	OwnerID      uint        `gorm:"index;not null" json:"owner"`
	AssignedToID *uint       `gorm:"index" json:"assignedTo"`
	CompletedAt  *time.Time  `json:"completedAt"`
	CreatedAt    time.Time   `json:"createdAt"`
	UpdatedAt    time.Time   `json:"updatedAt"`
}

func (t *Task) BeforeSave(*gorm.DB) error {
	if t.RelatedTo == nil {
		t.RelatedType, t.RelatedID = "", nil
		return nil
	}
	id := t.RelatedTo.ID
	t.RelatedType, t.RelatedID = t.RelatedTo.Type, &id
	return nil
}

func (t *Task) AfterFind(*gorm.DB) error {
	if t.RelatedType != "" && t.RelatedID != nil {
		t.RelatedTo = &RelatedRef{Type: t.RelatedType, ID: *t.RelatedID}
	}
	return nil
}

// SetStatus moves the task to s and keeps CompletedAt in step: set on entering Done,
// cleared on leaving it. It reports whether the task just entered Done.
func (t *Task) SetStatus(s Status, now time.Time) (completed bool) {
	if s == t.Status {
		return false
	}
	prev := t.Status
	t.Status = s
	switch {
	case s == StatusDone:
		t.CompletedAt = &now
		return true
	case prev == StatusDone:
		t.CompletedAt = nil
	}
	return false
}
