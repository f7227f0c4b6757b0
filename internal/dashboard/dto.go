package dashboard

import (
	"github.com/KromaEnergia/crm-api/internal/activity"
	"github.com/KromaEnergia/crm-api/internal/lead"
)

// Stats is the payload of GET /dashboard/stats. Every figure is limited to what the
// caller can see.
type Stats struct {
	TotalLeads     int64                 `json:"totalLeads"`
	TotalCustomers int64                 `json:"totalCustomers"`
	OpenTasks      int64                 `json:"openTasks"`
	OverdueTasks   int64                 `json:"overdueTasks"`
	LeadsByStatus  map[lead.Status]int64 `json:"leadsByStatus"`
	LeadsPerDay    []DayCount            `json:"leadsPerDay"`
	RecentActivity []activity.Activity   `json:"recentActivity"`
}

type DayCount struct {
	Date  string `json:"date"`
	Count int64  `json:"count"`
}

type statusCount struct {
	Status lead.Status
	Total  int64
}
