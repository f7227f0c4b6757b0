package activity

import "time"

// EntityType is the kind of record an activity entry refers to.
type EntityType string

const (
	EntityLead     EntityType = "Lead"
	EntityCustomer EntityType = "Customer"
	EntityTask     EntityType = "Task"
	EntityUser     EntityType = "User"
)

func (e EntityType) IsValid() bool {
	switch e {
	case EntityLead, EntityCustomer, EntityTask, EntityUser:
		return true
	}
	return false
}

// Activity is an immutable audit record. EntityID may outlive the record it points to.
//
// Details shapes by action:
//   - "<Entity> Created": snapshot of the key fields
//   - "<Entity> Updated", "Profile Updated": changedFields []string
//   - "Customer Note Added": notePreview (first 100 characters)
//   - "Customer Deal Added": title, value
//   - "Lead Converted to Customer": leadId, customerId
//   - "User Logged In": email
type Activity struct {
	ID         uint           `gorm:"primaryKey" json:"id"`
	UserID     uint           `gorm:"index;not null" json:"userId"`
	Action     string         `gorm:"size:100;not null" json:"action"`
	EntityType EntityType     `gorm:"size:20;not null;index:idx_activity_entity" json:"entityType"`
	EntityID   uint           `gorm:"not null;index:idx_activity_entity" json:"entityId"`
	Details    map[string]any `gorm:"type:jsonb;serializer:json" json:"details"`
	CreatedAt  time.Time      `gorm:"index" json:"createdAt"`
}

// Entry is what services hand to the log.
type Entry struct {
	UserID     uint
	Action     string
	EntityType EntityType
	EntityID   uint
	Details    map[string]any
}
