package lead

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/KromaEnergia/crm-api/internal/access"
	"github.com/KromaEnergia/crm-api/internal/activity"
	"github.com/KromaEnergia/crm-api/internal/apperror"
	"github.com/KromaEnergia/crm-api/internal/customer"
	"github.com/KromaEnergia/crm-api/internal/httputil"
	"github.com/KromaEnergia/crm-api/internal/notify"
	"github.com/KromaEnergia/crm-api/internal/utils"
	"github.com/KromaEnergia/crm-api/internal/validation"
)

const (
	msgNotFound   = "Lead not found"
	msgForbidden  = "You do not have access to this lead"
	msgEmailTaken = "A lead with this email already exists"
)

type Activity interface {
	Log(ctx context.Context, e activity.Entry)
}

type Users interface {
	RequireActive(ctx context.Context, field string, id uint) error
}

// Customers builds and stores the customer side of a conversion.
type Customers interface {
	Prepare(ctx context.Context, caller access.Caller, req customer.CreateRequest) (*customer.Customer, error)
	Insert(db *gorm.DB, c *customer.Customer) error
}

type Notifier interface {
	Send(ctx context.Context, event string, data any) error
}

type Service struct {
	DB         *gorm.DB
	Repository Repository
	Users      Users
	Customers  Customers
	Activity   Activity
	Notifier   Notifier
	Now        func() time.Time
}

func NewService(db *gorm.DB, users Users, customers Customers, act Activity, notifier Notifier) *Service {
	return &Service{
		DB:         db,
		Repository: NewRepository(),
		Users:      users,
		Customers:  customers,
		Activity:   act,
		Notifier:   notifier,
		Now:        func() time.Time { return time.Now().UTC() },
	}
}

// List returns non-archived leads in scope. Only admins may include archived ones.
func (s *Service) List(ctx context.Context, caller access.Caller, f ListFilter, p httputil.Page) ([]Lead, int64, error) {
	if f.Status != "" && !f.Status.IsValid() {
		return nil, 0, apperror.Field("status", "must be one of New, In Progress, Closed Won, Closed Lost")
	}
	q := s.DB.WithContext(ctx).Model(&Lead{}).Scopes(
		access.Scope(caller, "assigned_agent_id"),
		access.OwnerFilter(caller, "assigned_agent_id", f.AssignedAgent),
		utils.Search(f.Search, "name", "email", "phone", "source"),
	)
	if !(caller.IsAdmin() && f.IncludeArchived) {
		q = q.Where("is_archived = ?", false)
	}
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	if src := strings.TrimSpace(f.Source); src != "" {
		q = q.Where("LOWER(source) = ?", strings.ToLower(src))
	}
	list, total, err := s.Repository.List(q, p.Page, p.Limit)
	if err != nil {
		return nil, 0, apperror.Internal(err)
	}
	return list, total, nil
}

func (s *Service) Get(ctx context.Context, caller access.Caller, id uint) (*Lead, error) {
	return s.load(s.DB.WithContext(ctx), caller, id)
}

// Exists reports whether the caller can see the lead; used to validate references.
func (s *Service) Exists(ctx context.Context, caller access.Caller, id uint) error {
	_, err := s.Get(ctx, caller, id)
	return err
}

func (s *Service) Create(ctx context.Context, caller access.Caller, req CreateRequest) (*Lead, error) {
	if err := validation.Struct(req); err != nil {
		return nil, err
	}
	agent := access.ResolveOwner(caller, req.AssignedAgent)
	if agent != caller.ID {
		if err := s.Users.RequireActive(ctx, "assignedAgent", agent); err != nil {
			return nil, err
		}
	}

	db := s.DB.WithContext(ctx)
	email := utils.NormalizeEmail(req.Email)
	if err := s.checkEmail(db, email, 0); err != nil {
		return nil, err
	}

	l := &Lead{
		Name:            strings.TrimSpace(req.Name),
		Email:           email,
		Phone:           strings.TrimSpace(req.Phone),
		Status:          StatusNew,
		Source:          strings.TrimSpace(req.Source),
		Notes:           req.Notes,
		AssignedAgentID: agent,
	}
	if req.Status != nil {
		l.Status = *req.Status
	}
	if err := s.Repository.Create(db, l); err != nil {
		return nil, conflictOr(err)
	}

	s.Activity.Log(ctx, activity.Entry{
		UserID:     caller.ID,
		Action:     "Lead Created",
		EntityType: activity.EntityLead,
		EntityID:   l.ID,
		Details:    map[string]any{"name": l.Name, "email": l.Email, "status": string(l.Status), "source": l.Source},
	})
	return l, nil
}

func (s *Service) Update(ctx context.Context, caller access.Caller, id uint, req UpdateRequest) (*Lead, error) {
	db := s.DB.WithContext(ctx)
	l, err := s.load(db, caller, id)
	if err != nil {
		return nil, err
	}
	if err := validation.Struct(req); err != nil {
		return nil, err
	}

	var changed []string
	if req.Status != nil && *req.Status != l.Status {
		if l.ConvertedToCustomerID != nil {
			return nil, apperror.InvalidTransition("A converted lead must stay Closed Won")
		}
		l.Status = *req.Status
		changed = append(changed, "status")
	}
	if req.Name != nil {
		if v := strings.TrimSpace(*req.Name); v != l.Name {
			l.Name = v
			changed = append(changed, "name")
		}
	}
	if req.Email != nil {
		if v := utils.NormalizeEmail(*req.Email); v != l.Email {
			if err := s.checkEmail(db, v, l.ID); err != nil {
				return nil, err
			}
			l.Email = v
			changed = append(changed, "email")
		}
	}
	if req.Phone != nil {
		if v := strings.TrimSpace(*req.Phone); v != l.Phone {
			l.Phone = v
			changed = append(changed, "phone")
		}
	}
	if req.Source != nil {
		if v := strings.TrimSpace(*req.Source); v != l.Source {
			l.Source = v
			changed = append(changed, "source")
		}
	}
	if req.Notes != nil && *req.Notes != l.Notes {
		l.Notes = *req.Notes
		changed = append(changed, "notes")
	}
	if caller.IsAdmin() && req.AssignedAgent != nil && *req.AssignedAgent != l.AssignedAgentID {
		if err := s.Users.RequireActive(ctx, "assignedAgent", *req.AssignedAgent); err != nil {
			return nil, err
		}
		l.AssignedAgentID = *req.AssignedAgent
		changed = append(changed, "assignedAgent")
	}

	if len(changed) == 0 {
		return l, nil
	}
	if err := s.Repository.Save(db, l); err != nil {
		return nil, conflictOr(err)
	}
	s.Activity.Log(ctx, activity.Entry{
		UserID:     caller.ID,
		Action:     "Lead Updated",
		EntityType: activity.EntityLead,
		EntityID:   l.ID,
		Details:    map[string]any{"changedFields": changed},
	})
	return l, nil
}

// Archive soft-deletes the lead. Archived leads disappear from every default read path.
func (s *Service) Archive(ctx context.Context, caller access.Caller, id uint) error {
	db := s.DB.WithContext(ctx)
	l, err := s.load(db, caller, id)
	if err != nil {
		return err
	}
	ok, err := s.Repository.Archive(db, l.ID)
	if err != nil {
		return apperror.Internal(err)
	}
	if !ok {
		return apperror.NotFound(msgNotFound)
	}
	s.Activity.Log(ctx, activity.Entry{
		UserID:     caller.ID,
		Action:     "Lead Archived",
		EntityType: activity.EntityLead,
		EntityID:   l.ID,
		Details:    map[string]any{"name": l.Name, "email": l.Email},
	})
	return nil
}

// Convert turns an open lead into a customer owned by the caller. The customer insert
// and the lead update share one transaction; the audit entry and the webhook follow
// the commit and never undo it.
func (s *Service) Convert(ctx context.Context, caller access.Caller, id uint, req ConvertRequest) (*ConvertResult, error) {
	db := s.DB.WithContext(ctx)
	l, err := s.load(db, caller, id)
	if err != nil {
		return nil, err
	}
	if l.Status.IsTerminal() {
		return nil, apperror.InvalidTransition("Lead is already " + string(l.Status) + " and cannot be converted")
	}

	c, err := s.Customers.Prepare(ctx, caller, customer.CreateRequest{
		Name:    l.Name,
		Company: req.Company,
		Email:   l.Email,
		Phone:   l.Phone,
		Tags:    req.Tags,
		Deals:   req.Deals,
	})
	if err != nil {
		return nil, err
	}
	c.ConvertedFromLeadID = &l.ID

	now := s.Now()
	err = db.Transaction(func(tx *gorm.DB) error {
		if err := s.Customers.Insert(tx, c); err != nil {
			return err
		}
		l.Status = StatusClosedWon
		l.ConvertedToCustomerID = &c.ID
		l.ConvertedAt = &now
		ok, err := s.Repository.MarkConverted(tx, l)
		if err != nil {
			return apperror.Internal(err)
		}
		if !ok {
			return apperror.InvalidTransition("Lead was closed by another request")
		}
		return nil
	})
	if err != nil {
		var appErr *apperror.Error
		if errors.As(err, &appErr) {
			return nil, appErr
		}
		return nil, apperror.Internal(err)
	}

	s.Activity.Log(ctx, activity.Entry{
		UserID:     caller.ID,
		Action:     "Lead Converted to Customer",
		EntityType: activity.EntityLead,
		EntityID:   l.ID,
		Details:    map[string]any{"leadId": l.ID, "customerId": c.ID, "company": c.Company},
	})
	if s.Notifier != nil {
		_ = s.Notifier.Send(ctx, notify.EventLeadConverted, map[string]any{
			"leadId":      l.ID,
			"customerId":  c.ID,
			"convertedBy": caller.ID,
		})
	}
	return &ConvertResult{Customer: c, Lead: l}, nil
}

func (s *Service) checkEmail(db *gorm.DB, email string, exceptID uint) error {
	taken, err := s.Repository.EmailTaken(db, email, exceptID)
	if err != nil {
		return apperror.Internal(err)
	}
	if taken {
		return apperror.Conflict(msgEmailTaken)
	}
	return nil
}

func (s *Service) load(db *gorm.DB, caller access.Caller, id uint) (*Lead, error) {
	l, err := s.Repository.FindActive(db, id)
	if err != nil {
		return nil, apperror.FromStore(err, msgNotFound)
	}
	if !access.CanAccess(caller, &l.AssignedAgentID) {
		return nil, apperror.Forbidden(msgForbidden)
	}
	return l, nil
}

func conflictOr(err error) error {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return apperror.Conflict(msgEmailTaken)
	}
	return apperror.Internal(err)
}
