package activity

import (
	"context"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/KromaEnergia/crm-api/internal/access"
	"github.com/KromaEnergia/crm-api/internal/apperror"
	"github.com/KromaEnergia/crm-api/internal/httputil"
	"github.com/KromaEnergia/crm-api/internal/utils"
)

const (
	RecentLimit        = 10
	DefaultSummaryDays = 30
	MaxSummaryDays     = 365
)

type Service struct {
	DB         *gorm.DB
	Repository Repository
	Logger     logrus.FieldLogger
	Now        func() time.Time
}

func NewService(db *gorm.DB, log logrus.FieldLogger) *Service {
	return &Service{
		DB:         db,
		Repository: NewRepository(),
		Logger:     log,
		Now:        func() time.Time { return time.Now().UTC() },
	}
}

// Append stores one entry.
func (s *Service) Append(ctx context.Context, e Entry) error {
	a := Activity{
		UserID:     e.UserID,
		Action:     e.Action,
		EntityType: e.EntityType,
		EntityID:   e.EntityID,
		Details:    e.Details,
	}
	return s.Repository.Create(s.DB.WithContext(ctx), &a)
}

// Log appends an entry after the primary mutation has committed. Failures are
// reported through the logger and never reach the caller.
func (s *Service) Log(ctx context.Context, e Entry) {
	if err := s.Append(ctx, e); err != nil {
		s.Logger.WithError(err).WithFields(logrus.Fields{
			"action":      e.Action,
			"entity_type": e.EntityType,
			"entity_id":   e.EntityID,
			"user_id":     e.UserID,
		}).Error("activity log write failed")
	}
}

func (s *Service) scoped(ctx context.Context, caller access.Caller) *gorm.DB {
	return s.DB.WithContext(ctx).Model(&Activity{}).Scopes(access.Scope(caller, "user_id"))
}

func (s *Service) List(ctx context.Context, caller access.Caller, f ListFilter, p httputil.Page) ([]Activity, int64, error) {
	if f.EntityType != "" && !f.EntityType.IsValid() {
		return nil, 0, apperror.Field("entityType", "must be one of Lead, Customer, Task, User")
	}
	q := s.scoped(ctx, caller).
		Scopes(access.OwnerFilter(caller, "user_id", f.UserID), utils.Search(f.Search, "action"))
	if f.EntityType != "" {
		q = q.Where("entity_type = ?", f.EntityType)
	}
	if f.EntityID != nil {
		q = q.Where("entity_id = ?", *f.EntityID)
	}
	list, total, err := s.Repository.List(q, p.Page, p.Limit)
	if err != nil {
		return nil, 0, apperror.Internal(err)
	}
	return list, total, nil
}

// Recent returns the newest entries the caller may see.
func (s *Service) Recent(ctx context.Context, caller access.Caller) ([]Activity, error) {
	list, _, err := s.Repository.List(s.scoped(ctx, caller), 1, RecentLimit)
	if err != nil {
		return nil, apperror.Internal(err)
	}
	return list, nil
}

func (s *Service) ForEntity(ctx context.Context, caller access.Caller, entityType EntityType, entityID uint, p httputil.Page) ([]Activity, int64, error) {
	return s.List(ctx, caller, ListFilter{EntityType: entityType, EntityID: &entityID}, p)
}

// Summary rolls up one user's entries over the trailing number of days. Agents may only
// summarise themselves.
func (s *Service) Summary(ctx context.Context, caller access.Caller, userID uint, days int) (*Summary, error) {
	if days < 1 || days > MaxSummaryDays {
		return nil, apperror.Field("days", "must be between 1 and 365")
	}
	if !caller.IsAdmin() && caller.ID != userID {
		return nil, apperror.Forbidden("You can only view your own activity summary")
	}

	since := s.Now().AddDate(0, 0, -days)
	window := func() *gorm.DB {
		return s.DB.WithContext(ctx).Model(&Activity{}).
			Where("user_id = ? AND created_at >= ?", userID, since)
	}

	out := &Summary{
		UserID:       userID,
		Days:         days,
		ByAction:     map[string]int64{},
		ByEntityType: map[string]int64{},
	}
	if err := window().Count(&out.Total).Error; err != nil {
		return nil, apperror.Internal(err)
	}
	byAction, err := s.Repository.CountBy(window(), "action")
	if err != nil {
		return nil, apperror.Internal(err)
	}
	for _, row := range byAction {
		out.ByAction[row.GroupKey] = row.Total
	}
	byType, err := s.Repository.CountBy(window(), "entity_type")
	if err != nil {
		return nil, apperror.Internal(err)
	}
	for _, row := range byType {
		out.ByEntityType[row.GroupKey] = row.Total
	}
	if out.LastActivityAt, err = s.Repository.Latest(window()); err != nil {
		return nil, apperror.Internal(err)
	}
	return out, nil
}

// ParseEntityType accepts the label case-insensitively ("lead", "Lead").
func ParseEntityType(raw string) (EntityType, error) {
	for _, t := range []EntityType{EntityLead, EntityCustomer, EntityTask, EntityUser} {
		if strings.EqualFold(raw, string(t)) {
			return t, nil
		}
	}
	return "", apperror.Field("entityType", "must be one of Lead, Customer, Task, User")
}
