package user

import "github.com/KromaEnergia/crm-api/internal/access"

// CreateRequest is used by POST /auth/register. A blank password gets a generated
// temporary one, returned once in the response.
type CreateRequest struct {
	Email     string       `json:"email" validate:"required,email,max=100"`
	Password  string       `json:"password" validate:"omitempty,min=8,max=72"`
	FirstName string       `json:"firstName" validate:"notblank,min=1,max=50"`
	LastName  string       `json:"lastName" validate:"notblank,min=1,max=50"`
	Role      *access.Role `json:"role" validate:"omitempty,enum"`
}

// UpdateRequest is used by PATCH /users/{id}; nil fields are left untouched.
type UpdateRequest struct {
	Email     *string      `json:"email" validate:"omitempty,email,max=100"`
	Password  *string      `json:"password" validate:"omitempty,min=8,max=72"`
	FirstName *string      `json:"firstName" validate:"omitempty,notblank,min=1,max=50"`
	LastName  *string      `json:"lastName" validate:"omitempty,notblank,min=1,max=50"`
	Role      *access.Role `json:"role" validate:"omitempty,enum"`
	IsActive  *bool        `json:"isActive"`
}

// ProfileRequest is used by PATCH /users/profile/me.
type ProfileRequest struct {
	FirstName       *string `json:"firstName" validate:"omitempty,notblank,min=1,max=50"`
	LastName        *string `json:"lastName" validate:"omitempty,notblank,min=1,max=50"`
	CurrentPassword string  `json:"currentPassword"`
	NewPassword     *string `json:"newPassword" validate:"omitempty,min=8,max=72"`
}

// ListFilter narrows GET /users.
type ListFilter struct {
	Role     access.Role
	IsActive *bool
	Search   string
}

// Created carries the temporary password when one was generated.
type Created struct {
	User              *User  `json:"user"`
	TemporaryPassword string `json:"temporaryPassword,omitempty"`
}
