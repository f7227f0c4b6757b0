package lead

import "time"

type Status string

const (
	StatusNew        Status = "New"
	StatusInProgress Status = "In Progress"
	StatusClosedWon  Status = "Closed Won"
	StatusClosedLost Status = "Closed Lost"
)

// Statuses lists every status in pipeline order.
var Statuses = []Status{StatusNew, StatusInProgress, StatusClosedWon, StatusClosedLost}

func (s Status) IsValid() bool {
	switch s {
	case StatusNew, StatusInProgress, StatusClosedWon, StatusClosedLost:
		return true
	}
	return false
}

// IsTerminal reports whether the lead can no longer be converted.
func (s Status) IsTerminal() bool {
	return s == StatusClosedWon || s == StatusClosedLost
}

// Lead is soft-deleted through IsArchived. Email is unique among non-archived leads.
type Lead struct {
	ID                    uint       `gorm:"primaryKey" json:"id"`
	Name                  string     `gorm:"size:100;not null" json:"name"`
	Email                 string     `gorm:"size:100;not null;uniqueIndex:idx_leads_active_email,where:is_archived = false" json:"email"`
	Phone                 string     `gorm:"size:20" json:"phone"`
	Status                Status     `gorm:"size:20;not null;default:New;index" json:"status"`
	Source                string     `gorm:"size:100" json:"source"`
	AssignedAgentID       uint       `gorm:"index;not null" json:"assignedAgent"`
	Notes                 string     `gorm:"type:text" json:"notes"`
	IsArchived            bool       `gorm:"not null;default:false;index" json:"isArchived"`
	ConvertedToCustomerID *uint      `json:"convertedToCustomer"`
	ConvertedAt           *time.Time `json:"convertedAt"`
	CreatedAt             time.Time  `gorm:"index" json:"createdAt"`
	UpdatedAt             time.Time  `json:"updatedAt"`
}
