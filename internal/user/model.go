package user

import (
	"time"

	"github.com/KromaEnergia/crm-api/internal/access"
)

type User struct {
	ID           uint        `gorm:"primaryKey" json:"id"`
	Email        string      `gorm:"size:100;uniqueIndex;not null" json:"email"`
	PasswordHash string      `gorm:"size:255;not null" json:"-"`
	FirstName    string      `gorm:"size:50;not null" json:"firstName"`
	LastName     string      `gorm:"size:50;not null" json:"lastName"`
	Role         access.Role `gorm:"size:10;not null;default:agent;index" json:"role"`
	IsActive     bool        `gorm:"not null;default:true" json:"isActive"`
	LastLogin    *time.Time  `json:"lastLogin"`
	CreatedAt    time.Time   `json:"createdAt"`
	UpdatedAt    time.Time   `json:"updatedAt"`
}

func (u *User) Caller() access.Caller {
	return access.Caller{ID: u.ID, Role: u.Role}
}
