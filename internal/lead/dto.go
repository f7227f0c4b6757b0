package lead

import "github.com/KromaEnergia/crm-api/internal/customer"

type CreateRequest struct {
	Name          string  `json:"name" validate:"notblank,min=2,max=100"`
	Email         string  `json:"email" validate:"required,email,max=100"`
	Phone         string  `json:"phone" validate:"max=20"`
	Status        *Status `json:"status" validate:"omitempty,enum"`
	Source        string  `json:"source" validate:"max=100"`
	Notes         string  `json:"notes" validate:"max=2000"`
	AssignedAgent *uint   `json:"assignedAgent"`
}

// UpdateRequest is used by PATCH /leads/{id}; nil fields are left untouched.
type UpdateRequest struct {
	Name          *string `json:"name" validate:"omitempty,notblank,min=2,max=100"`
	Email         *string `json:"email" validate:"omitempty,email,max=100"`
	Phone         *string `json:"phone" validate:"omitempty,max=20"`
	Status        *Status `json:"status" validate:"omitempty,enum"`
	Source        *string `json:"source" validate:"omitempty,max=100"`
	Notes         *string `json:"notes" validate:"omitempty,max=2000"`
	AssignedAgent *uint   `json:"assignedAgent"`
}

// ConvertRequest carries the customer fields a lead does not have.
type ConvertRequest struct {
	Company string                 `json:"company"`
	Tags    []string               `json:"tags"`
	Deals   []customer.DealRequest `json:"deals"`
}

type ConvertResult struct {
	Customer *customer.Customer `json:"customer"`
	Lead     *Lead              `json:"lead"`
}

// ListFilter narrows GET /leads.
type ListFilter struct {
	Status          Status
	Source          string
	Search          string
	AssignedAgent   *uint
	IncludeArchived bool
}
