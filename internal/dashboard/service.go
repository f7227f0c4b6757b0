package dashboard

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/KromaEnergia/crm-api/internal/access"
	"github.com/KromaEnergia/crm-api/internal/activity"
	"github.com/KromaEnergia/crm-api/internal/apperror"
	"github.com/KromaEnergia/crm-api/internal/customer"
	"github.com/KromaEnergia/crm-api/internal/lead"
	"github.com/KromaEnergia/crm-api/internal/task"
)

// TrendDays is the length of the leadsPerDay window, today included.
const TrendDays = 14

type Activity interface {
	Recent(ctx context.Context, caller access.Caller) ([]activity.Activity, error)
}

type Service struct {
	DB       *gorm.DB
	Activity Activity
	Now      func() time.Time
}

func NewService(db *gorm.DB, act Activity) *Service {
	return &Service{
		DB:       db,
		Activity: act,
		Now:      func() time.Time { return time.Now().UTC() },
	}
}

// Stats computes the dashboard rollups on demand.
func (s *Service) Stats(ctx context.Context, caller access.Caller) (*Stats, error) {
	db := s.DB.WithContext(ctx)
	now := s.Now().UTC()

	leads := func() *gorm.DB {
		return db.Model(&lead.Lead{}).
			Scopes(access.Scope(caller, "assigned_agent_id")).
			Where("is_archived = ?", false)
	}
	tasks := func() *gorm.DB {
		return db.Model(&task.Task{}).
			Scopes(access.Scope(caller, "owner_id", "assigned_to_id")).
			Where("status <> ?", task.StatusDone)
	}

	out := &Stats{}
	if err := leads().Count(&out.TotalLeads).Error; err != nil {
		return nil, apperror.Internal(err)
	}
	err := db.Model(&customer.Customer{}).
		Scopes(access.Scope(caller, "owner_id")).
		Count(&out.TotalCustomers).Error
	if err != nil {
		return nil, apperror.Internal(err)
	}
	if err := tasks().Count(&out.OpenTasks).Error; err != nil {
		return nil, apperror.Internal(err)
	}
	if err := tasks().Where("due_date < ?", now).Count(&out.OverdueTasks).Error; err != nil {
		return nil, apperror.Internal(err)
	}

	var groups []statusCount
	err = leads().Select("status, COUNT(*) AS total").Group("status").Scan(&groups).Error
	if err != nil {
		return nil, apperror.Internal(err)
	}
	out.LeadsByStatus = byStatus(groups)

	start := startOfDay(now).AddDate(0, 0, -(TrendDays - 1))
	var created []time.Time
	if err := leads().Where("created_at >= ?", start).Pluck("created_at", &created).Error; err != nil {
		return nil, apperror.Internal(err)
	}
	out.LeadsPerDay = perDay(created, start, TrendDays)

	if out.RecentActivity, err = s.Activity.Recent(ctx, caller); err != nil {
		return nil, err
	}
	return out, nil
}

// byStatus reports every status, zero when no lead has it.
func byStatus(groups []statusCount) map[lead.Status]int64 {
	out := make(map[lead.Status]int64, len(lead.Statuses))
	for _, st := range lead.Statuses {
		out[st] = 0
	}
	for _, g := range groups {
		out[g.Status] += g.Total
	}
	return out
}

// perDay buckets timestamps into consecutive UTC days starting at start, oldest first.
func perDay(times []time.Time, start time.Time, days int) []DayCount {
	out := make([]DayCount, days)
	index := make(map[string]int, days)
	for i := range out {
		d := start.AddDate(0, 0, i).Format(time.DateOnly)
		out[i] = DayCount{Date: d}
		index[d] = i
	}
	for _, t := range times {
		if i, ok := index[t.UTC().Format(time.DateOnly)]; ok {
			out[i].Count++
		}
	}
	return out
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
