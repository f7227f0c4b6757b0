package activity

import "time"

// ListFilter narrows GET /activity.
type ListFilter struct {
	UserID     *uint
	EntityType EntityType
	EntityID   *uint
	Search     string
}

// Summary is the per-user rollup returned by GET /activity/user/{userId}/summary.
type Summary struct {
	UserID         uint             `json:"userId"`
	Days           int              `json:"days"`
	Total          int64            `json:"total"`
	ByAction       map[string]int64 `json:"byAction"`
	ByEntityType   map[string]int64 `json:"byEntityType"`
	LastActivityAt *time.Time       `json:"lastActivityAt"`
}

type groupCount struct {
	GroupKey string
	Total    int64
}
