package customer

import (
	"strings"
	"time"
)

type DealRequest struct {
	Title             string      `json:"title" validate:"notblank,min=1,max=100"`
	Value             float64     `json:"value" validate:"gte=0"`
	Status            *DealStatus `json:"status" validate:"omitempty,enum"`
	ExpectedCloseDate *time.Time  `json:"expectedCloseDate"`
}

func (r DealRequest) toDeal() Deal {
	d := Deal{Title: strings.TrimSpace(r.Title), Value: r.Value, Status: DealOpen, ExpectedCloseDate: r.ExpectedCloseDate}
	if r.Status != nil {
		d.Status = *r.Status
	}
	return d
}

// CreateRequest is used by POST /customers and, filled from the lead, by conversion.
type CreateRequest struct {
	Name    string        `json:"name" validate:"notblank,min=2,max=100"`
	Company string        `json:"company" validate:"notblank,min=1,max=100"`
	Email   string        `json:"email" validate:"required,email,max=100"`
	Phone   string        `json:"phone" validate:"max=20"`
	Tags    []string      `json:"tags" validate:"max=20,dive,notblank,min=1,max=30"`
	Deals   []DealRequest `json:"deals" validate:"max=50,dive"`
	OwnerID *uint         `json:"ownerId"`
}

// UpdateRequest is used by PATCH /customers/{id}; nil fields are left untouched.
type UpdateRequest struct {
	Name    *string   `json:"name" validate:"omitempty,notblank,min=2,max=100"`
	Company *string   `json:"company" validate:"omitempty,notblank,min=1,max=100"`
	Email   *string   `json:"email" validate:"omitempty,email,max=100"`
	Phone   *string   `json:"phone" validate:"omitempty,max=20"`
	Tags    *[]string `json:"tags" validate:"omitempty,max=20,dive,notblank,min=1,max=30"`
	OwnerID *uint     `json:"ownerId"`
}

type NoteRequest struct {
	Content string `json:"content" validate:"notblank,min=1,max=1000"`
}

// ListFilter narrows GET /customers.
type ListFilter struct {
	Search  string
	Tag     string
	OwnerID *uint
}

// normalizeTags trims and de-duplicates, keeping first-seen order.
func normalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	seen := make(map[string]struct{}, len(tags))
	for _, t := range tags {
		t = strings.TrimSpace(t)
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}
