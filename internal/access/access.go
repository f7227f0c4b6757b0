// Package access holds the caller identity and the role-scoped query filter.
package access

import (
	"context"
	"strings"

	"gorm.io/gorm"
)

type Role string

const (
	RoleAdmin Role = "admin"
	RoleAgent Role = "agent"
)

func (r Role) IsValid() bool {
	return r == RoleAdmin || r == RoleAgent
}

// Caller is the authenticated identity passed explicitly into every service call.
type Caller struct {
	ID   uint
	Role Role
}

func (c Caller) IsAdmin() bool { return c.Role == RoleAdmin }

type ctxKey struct{}

func WithCaller(ctx context.Context, c Caller) context.Context {
	return context.WithValue(ctx, ctxKey{}, c)
}

func CallerFrom(ctx context.Context) (Caller, bool) {
	c, ok := ctx.Value(ctxKey{}).(Caller)
	return c, ok && c.ID != 0
}

// Scope narrows a query to the rows the caller may see. Admins see everything; agents
// only rows where at least one of the ownership columns holds their id.
func Scope(c Caller, columns ...string) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		if c.IsAdmin() || len(columns) == 0 {
			return db
		}
		conds := make([]string, len(columns))
		args := make([]any, len(columns))
		for i, col := range columns {
			conds[i] = col + " = ?"
			args[i] = c.ID
		}
		return db.Where("("+strings.Join(conds, " OR ")+")", args...)
	}
}

// OwnerFilter applies an explicit owner filter for admins. Agents' requested owner is
// ignored; Scope already pins them to their own rows.
func OwnerFilter(c Caller, column string, requested *uint) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		if !c.IsAdmin() || requested == nil {
			return db
		}
		return db.Where(column+" = ?", *requested)
	}
}

// CanAccess reports whether the caller owns or is assigned to a record.
func CanAccess(c Caller, ownerIDs ...*uint) bool {
	if c.IsAdmin() {
		return true
	}
	for _, id := range ownerIDs {
		if id != nil && *id == c.ID {
			return true
		}
	}
	return false
}

// ResolveOwner picks the owner for a new record: admins may name one, agents always own it.
func ResolveOwner(c Caller, requested *uint) uint {
	if c.IsAdmin() && requested != nil && *requested != 0 {
		return *requested
	}
	return c.ID
}
