package customer

import (
	"context"
	"errors"
	"slices"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/KromaEnergia/crm-api/internal/access"
	"github.com/KromaEnergia/crm-api/internal/activity"
	"github.com/KromaEnergia/crm-api/internal/apperror"
	"github.com/KromaEnergia/crm-api/internal/httputil"
	"github.com/KromaEnergia/crm-api/internal/utils"
	"github.com/KromaEnergia/crm-api/internal/validation"
)

const (
	msgNotFound   = "Customer not found"
	msgForbidden  = "You do not have access to this customer"
	msgEmailTaken = "A customer with this email already exists"
)

type Activity interface {
	Log(ctx context.Context, e activity.Entry)
}

// Users checks that a referenced account can own records.
type Users interface {
	RequireActive(ctx context.Context, field string, id uint) error
}

type Service struct {
	DB         *gorm.DB
	Repository Repository
	Users      Users
	Activity   Activity
	Now        func() time.Time
}

func NewService(db *gorm.DB, users Users, act Activity) *Service {
	return &Service{
		DB:         db,
		Repository: NewRepository(),
		Users:      users,
		Activity:   act,
		Now:        func() time.Time { return time.Now().UTC() },
	}
}

func (s *Service) List(ctx context.Context, caller access.Caller, f ListFilter, p httputil.Page) ([]Customer, int64, error) {
	q := s.DB.WithContext(ctx).Model(&Customer{}).Scopes(
		access.Scope(caller, "owner_id"),
		access.OwnerFilter(caller, "owner_id", f.OwnerID),
		utils.Search(f.Search, "name", "company", "email", "phone"),
	)
	if tag := strings.TrimSpace(f.Tag); tag != "" {
		q = q.Scopes(HasTag(tag))
	}
	list, total, err := s.Repository.List(q, p.Page, p.Limit)
	if err != nil {
		return nil, 0, apperror.Internal(err)
	}
	return list, total, nil
}

func (s *Service) Get(ctx context.Context, caller access.Caller, id uint) (*Customer, error) {
	return s.load(s.DB.WithContext(ctx), caller, id)
}

// Exists reports whether the caller can see the customer; used to validate references.
func (s *Service) Exists(ctx context.Context, caller access.Caller, id uint) error {
	_, err := s.Get(ctx, caller, id)
	return err
}

// Prepare validates a create request and builds the record without storing it.
func (s *Service) Prepare(ctx context.Context, caller access.Caller, req CreateRequest) (*Customer, error) {
	if err := validation.Struct(req); err != nil {
		return nil, err
	}
	owner := access.ResolveOwner(caller, req.OwnerID)
	if owner != caller.ID {
		if err := s.Users.RequireActive(ctx, "ownerId", owner); err != nil {
			return nil, err
		}
	}
	c := &Customer{
		Name:    strings.TrimSpace(req.Name),
		Company: strings.TrimSpace(req.Company),
		Email:   utils.NormalizeEmail(req.Email),
		Phone:   strings.TrimSpace(req.Phone),
		Tags:    normalizeTags(req.Tags),
		OwnerID: owner,
		Notes:   []Note{},
		Deals:   make([]Deal, 0, len(req.Deals)),
	}
	for _, d := range req.Deals {
		c.Deals = append(c.Deals, d.toDeal())
	}
	return c, nil
}

// Insert stores a prepared customer on db, which may be a transaction.
func (s *Service) Insert(db *gorm.DB, c *Customer) error {
	taken, err := s.Repository.EmailTaken(db, c.Email, 0)
	if err != nil {
		return apperror.Internal(err)
	}
	if taken {
		return apperror.Conflict(msgEmailTaken)
	}
	if err := s.Repository.Create(db, c); err != nil {
		return conflictOr(err)
	}
	return nil
}

func (s *Service) Create(ctx context.Context, caller access.Caller, req CreateRequest) (*Customer, error) {
	c, err := s.Prepare(ctx, caller, req)
	if err != nil {
		return nil, err
	}
	if err := s.Insert(s.DB.WithContext(ctx), c); err != nil {
		return nil, err
	}
	s.Activity.Log(ctx, activity.Entry{
		UserID:     caller.ID,
		Action:     "Customer Created",
		EntityType: activity.EntityCustomer,
		EntityID:   c.ID,
		Details:    map[string]any{"name": c.Name, "company": c.Company, "email": c.Email},
	})
	return c, nil
}

func (s *Service) Update(ctx context.Context, caller access.Caller, id uint, req UpdateRequest) (*Customer, error) {
	db := s.DB.WithContext(ctx)
	c, err := s.load(db, caller, id)
	if err != nil {
		return nil, err
	}
	if err := validation.Struct(req); err != nil {
		return nil, err
	}

	var changed []string
	if req.Name != nil {
		if v := strings.TrimSpace(*req.Name); v != c.Name {
			c.Name = v
			changed = append(changed, "name")
		}
	}
	if req.Company != nil {
		if v := strings.TrimSpace(*req.Company); v != c.Company {
			c.Company = v
			changed = append(changed, "company")
		}
	}
	if req.Email != nil {
		if v := utils.NormalizeEmail(*req.Email); v != c.Email {
			taken, err := s.Repository.EmailTaken(db, v, c.ID)
			if err != nil {
				return nil, apperror.Internal(err)
			}
			if taken {
				return nil, apperror.Conflict(msgEmailTaken)
			}
			c.Email = v
			changed = append(changed, "email")
		}
	}
	if req.Phone != nil {
		if v := strings.TrimSpace(*req.Phone); v != c.Phone {
			c.Phone = v
			changed = append(changed, "phone")
		}
	}
	if req.Tags != nil {
		if v := normalizeTags(*req.Tags); !slices.Equal(v, c.Tags) {
			c.Tags = v
			changed = append(changed, "tags")
		}
	}
	if caller.IsAdmin() && req.OwnerID != nil && *req.OwnerID != c.OwnerID {
		if err := s.Users.RequireActive(ctx, "ownerId", *req.OwnerID); err != nil {
			return nil, err
		}
		c.OwnerID = *req.OwnerID
		changed = append(changed, "ownerId")
	}

	if len(changed) == 0 {
		return c, nil
	}
	if err := s.Repository.Save(db, c); err != nil {
		return nil, conflictOr(err)
	}
	s.Activity.Log(ctx, activity.Entry{
		UserID:     caller.ID,
		Action:     "Customer Updated",
		EntityType: activity.EntityCustomer,
		EntityID:   c.ID,
		Details:    map[string]any{"changedFields": changed},
	})
	return c, nil
}

func (s *Service) Delete(ctx context.Context, caller access.Caller, id uint) error {
	db := s.DB.WithContext(ctx)
	c, err := s.load(db, caller, id)
	if err != nil {
		return err
	}
	if err := s.Repository.Delete(db, c.ID); err != nil {
		return apperror.Internal(err)
	}
	s.Activity.Log(ctx, activity.Entry{
		UserID:     caller.ID,
		Action:     "Customer Deleted",
		EntityType: activity.EntityCustomer,
		EntityID:   c.ID,
		Details:    map[string]any{"name": c.Name, "company": c.Company},
	})
	return nil
}

// AddNote appends a note, keeping the newest MaxNotes.
func (s *Service) AddNote(ctx context.Context, caller access.Caller, id uint, req NoteRequest) (*Customer, error) {
	if err := validation.Struct(req); err != nil {
		return nil, err
	}
	content := strings.TrimSpace(req.Content)
	c, err := s.modify(ctx, caller, id, func(c *Customer) {
		c.AddNote(Note{Content: content, CreatedBy: caller.ID, CreatedAt: s.Now()})
	})
	if err != nil {
		return nil, err
	}
	s.Activity.Log(ctx, activity.Entry{
		UserID:     caller.ID,
		Action:     "Customer Note Added",
		EntityType: activity.EntityCustomer,
		EntityID:   c.ID,
		Details:    map[string]any{"notePreview": utils.Truncate(content, 100)},
	})
	return c, nil
}

func (s *Service) AddDeal(ctx context.Context, caller access.Caller, id uint, req DealRequest) (*Customer, error) {
	if err := validation.Struct(req); err != nil {
		return nil, err
	}
	d := req.toDeal()
	c, err := s.modify(ctx, caller, id, func(c *Customer) {
		c.Deals = append(c.Deals, d)
	})
	if err != nil {
		return nil, err
	}
	s.Activity.Log(ctx, activity.Entry{
		UserID:     caller.ID,
		Action:     "Customer Deal Added",
		EntityType: activity.EntityCustomer,
		EntityID:   c.ID,
		Details:    map[string]any{"title": d.Title, "value": d.Value, "status": string(d.Status)},
	})
	return c, nil
}

// modify applies change to a locked copy of the customer and saves it in the same
// transaction, so concurrent appends to the JSON lists serialize.
func (s *Service) modify(ctx context.Context, caller access.Caller, id uint, change func(*Customer)) (*Customer, error) {
	var out *Customer
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		c, err := s.Repository.FindForUpdate(tx, id)
		if err != nil {
			return apperror.FromStore(err, msgNotFound)
		}
		if !access.CanAccess(caller, &c.OwnerID) {
			return apperror.Forbidden(msgForbidden)
		}
		change(c)
		if err := s.Repository.Save(tx, c); err != nil {
			return apperror.Internal(err)
		}
		out = c
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Service) load(db *gorm.DB, caller access.Caller, id uint) (*Customer, error) {
	c, err := s.Repository.FindByID(db, id)
	if err != nil {
		return nil, apperror.FromStore(err, msgNotFound)
	}
	if !access.CanAccess(caller, &c.OwnerID) {
		return nil, apperror.Forbidden(msgForbidden)
	}
	return c, nil
}

func conflictOr(err error) error {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return apperror.Conflict(msgEmailTaken)
	}
	return apperror.Internal(err)
}
