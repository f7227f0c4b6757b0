package task

import "time"

type CreateRequest struct {
	Title       string      `json:"title" validate:"notblank,max=200"`
	Description string      `json:"description" validate:"max=2000"`
	DueDate     string      `json:"dueDate" validate:"required"`
	Status      *Status     `json:"status" validate:"omitempty,enum"`
	Priority    *Priority   `json:"priority" validate:"omitempty,enum"`
	RelatedTo   *RelatedRef `json:"relatedTo"`
	OwnerID     *uint       `json:"owner"`
	AssignedTo  *uint       `json:"assignedTo"`
}

// UpdateRequest is used by PATCH /tasks/{id}; nil fields are left untouched.
// An assignedTo of 0 removes the assignee.
type UpdateRequest struct {
	Title       *string     `json:"title" validate:"omitempty,notblank,max=200"`
	Description *string     `json:"description" validate:"omitempty,max=2000"`
	DueDate     *string     `json:"dueDate"`
	Status      *Status     `json:"status" validate:"omitempty,enum"`
	Priority    *Priority   `json:"priority" validate:"omitempty,enum"`
	RelatedTo   *RelatedRef `json:"relatedTo"`
	OwnerID     *uint       `json:"owner"`
	AssignedTo  *uint       `json:"assignedTo"`
}

// ListFilter narrows GET /tasks. DueFrom and DueTo are inclusive.
type ListFilter struct {
	Status      Status
	Priority    Priority
	Search      string
	OwnerID     *uint
	AssignedTo  *uint
	DueFrom     *time.Time
	DueTo       *time.Time
	RelatedType RelatedType
	RelatedID   *uint
}
