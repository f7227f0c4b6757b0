package task

import (
	"context"
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
	msgNotFound  = "Task not found"
	msgForbidden = "You do not have access to this task"
)

type Activity interface {
	Log(ctx context.Context, e activity.Entry)
}

type Users interface {
	RequireActive(ctx context.Context, field string, id uint) error
}

// Records checks that a lead or customer exists and is visible to the caller.
type Records interface {
	Exists(ctx context.Context, caller access.Caller, id uint) error
}

type Service struct {
	DB         *gorm.DB
	Repository Repository
	Users      Users
	Leads      Records
	Customers  Records
	Activity   Activity
	Now        func() time.Time
}

func NewService(db *gorm.DB, users Users, leads, customers Records, act Activity) *Service {
	return &Service{
		DB:         db,
		Repository: NewRepository(),
		Users:      users,
		Leads:      leads,
		Customers:  customers,
		Activity:   act,
		Now:        func() time.Time { return time.Now().UTC() },
	}
}

// List returns tasks the caller owns or is assigned to (every task for admins),
// soonest due first and, within a due date, highest priority first.
func (s *Service) List(ctx context.Context, caller access.Caller, f ListFilter, p httputil.Page) ([]Task, int64, error) {
	var fields []apperror.FieldError
	if f.Status != "" && !f.Status.IsValid() {
		fields = append(fields, apperror.FieldError{Field: "status", Message: "must be one of Open, In Progress, Done"})
	}
	if f.Priority != "" && !f.Priority.IsValid() {
		fields = append(fields, apperror.FieldError{Field: "priority", Message: "must be one of Low, Medium, High"})
	}
	if f.RelatedType != "" && !f.RelatedType.IsValid() {
		fields = append(fields, apperror.FieldError{Field: "relatedType", Message: "must be one of Lead, Customer"})
	}
	if f.DueFrom != nil && f.DueTo != nil && f.DueFrom.After(*f.DueTo) {
		fields = append(fields, apperror.FieldError{Field: "dueTo", Message: "must not be before dueFrom"})
	}
	if len(fields) > 0 {
		return nil, 0, apperror.Validation(fields...)
	}

	q := s.DB.WithContext(ctx).Model(&Task{}).Scopes(
		access.Scope(caller, "owner_id", "assigned_to_id"),
		access.OwnerFilter(caller, "owner_id", f.OwnerID),
		access.OwnerFilter(caller, "assigned_to_id", f.AssignedTo),
		utils.Search(f.Search, "title", "description"),
	)
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	if f.Priority != "" {
		q = q.Where("priority = ?", f.Priority)
	}
	if f.DueFrom != nil {
		q = q.Where("due_date >= ?", f.DueFrom.UTC())
	}
	if f.DueTo != nil {
		q = q.Where("due_date <= ?", f.DueTo.UTC())
	}
	if f.RelatedType != "" {
		q = q.Where("related_type = ?", f.RelatedType)
	}
	if f.RelatedID != nil {
		q = q.Where("related_id = ?", *f.RelatedID)
	}
	list, total, err := s.Repository.List(q, p.Page, p.Limit)
	if err != nil {
		return nil, 0, apperror.Internal(err)
	}
	return list, total, nil
}

func (s *Service) Get(ctx context.Context, caller access.Caller, id uint) (*Task, error) {
	return s.load(s.DB.WithContext(ctx), caller, id)
}

func (s *Service) Create(ctx context.Context, caller access.Caller, req CreateRequest) (*Task, error) {
	if err := validation.Struct(req); err != nil {
		return nil, err
	}
	due, err := parseDue(req.DueDate)
	if err != nil {
		return nil, err
	}
	owner := access.ResolveOwner(caller, req.OwnerID)
	if owner != caller.ID {
		if err := s.Users.RequireActive(ctx, "owner", owner); err != nil {
			return nil, err
		}
	}
	t := &Task{
		Title:       strings.TrimSpace(req.Title),
		Description: req.Description,
		DueDate:     due,
		Status:      StatusOpen,
		Priority:    PriorityMedium,
		OwnerID:     owner,
	}
	if req.AssignedTo != nil && *req.AssignedTo != 0 {
		if err := s.Users.RequireActive(ctx, "assignedTo", *req.AssignedTo); err != nil {
			return nil, err
		}
		t.AssignedToID = req.AssignedTo
	}
	if req.RelatedTo != nil {
		if err := s.checkRelated(ctx, caller, *req.RelatedTo); err != nil {
			return nil, err
		}
		t.RelatedTo = req.RelatedTo
	}
	if req.Priority != nil {
		t.Priority = *req.Priority
	}
	if req.Status != nil {
		t.SetStatus(*req.Status, s.Now())
	}

	if err := s.Repository.Create(s.DB.WithContext(ctx), t); err != nil {
		return nil, apperror.Internal(err)
	}
	s.Activity.Log(ctx, activity.Entry{
		UserID:     caller.ID,
		Action:     "Task Created",
		EntityType: activity.EntityTask,
		EntityID:   t.ID,
		Details: map[string]any{
			"title":    t.Title,
			"dueDate":  t.DueDate.Format(time.RFC3339),
			"priority": string(t.Priority),
			"status":   string(t.Status),
		},
	})
	return t, nil
}

// Update is open to the owner, the assignee and admins. Only admins may hand the task
// to another owner.
func (s *Service) Update(ctx context.Context, caller access.Caller, id uint, req UpdateRequest) (*Task, error) {
	db := s.DB.WithContext(ctx)
	t, err := s.load(db, caller, id)
	if err != nil {
		return nil, err
	}
	if err := validation.Struct(req); err != nil {
		return nil, err
	}

	var changed []string
	completed := false
	if req.Title != nil {
		if v := strings.TrimSpace(*req.Title); v != t.Title {
			t.Title = v
			changed = append(changed, "title")
		}
	}
	if req.Description != nil && *req.Description != t.Description {
		t.Description = *req.Description
		changed = append(changed, "description")
	}
	if req.DueDate != nil {
		due, err := parseDue(*req.DueDate)
		if err != nil {
			return nil, err
		}
		if !due.Equal(t.DueDate) {
			t.DueDate = due
			changed = append(changed, "dueDate")
		}
	}
	if req.Priority != nil && *req.Priority != t.Priority {
		t.Priority = *req.Priority
		changed = append(changed, "priority")
	}
	if req.Status != nil && *req.Status != t.Status {
		completed = t.SetStatus(*req.Status, s.Now())
		changed = append(changed, "status")
	}
	if req.RelatedTo != nil && (t.RelatedTo == nil || *req.RelatedTo != *t.RelatedTo) {
		if err := s.checkRelated(ctx, caller, *req.RelatedTo); err != nil {
			return nil, err
		}
		ref := *req.RelatedTo
		t.RelatedTo = &ref
		changed = append(changed, "relatedTo")
	}
	if req.AssignedTo != nil {
		switch next := *req.AssignedTo; {
		case next == 0 && t.AssignedToID != nil:
			t.AssignedToID = nil
			changed = append(changed, "assignedTo")
		case next != 0 && (t.AssignedToID == nil || *t.AssignedToID != next):
			if err := s.Users.RequireActive(ctx, "assignedTo", next); err != nil {
				return nil, err
			}
			t.AssignedToID = &next
			changed = append(changed, "assignedTo")
		}
	}
	if caller.IsAdmin() && req.OwnerID != nil && *req.OwnerID != t.OwnerID {
		if err := s.Users.RequireActive(ctx, "owner", *req.OwnerID); err != nil {
			return nil, err
		}
		t.OwnerID = *req.OwnerID
		changed = append(changed, "owner")
	}

	if len(changed) == 0 {
		return t, nil
	}
	if err := s.Repository.Save(db, t); err != nil {
		return nil, apperror.Internal(err)
	}
	action := "Task Updated"
	if completed {
		action = "Task Completed"
	}
	s.Activity.Log(ctx, activity.Entry{
		UserID:     caller.ID,
		Action:     action,
		EntityType: activity.EntityTask,
		EntityID:   t.ID,
		Details:    map[string]any{"title": t.Title, "changedFields": changed},
	})
	return t, nil
}

// Delete removes the task for good. Assignees who do not own the task may not delete it.
func (s *Service) Delete(ctx context.Context, caller access.Caller, id uint) error {
	db := s.DB.WithContext(ctx)
	t, err := s.load(db, caller, id)
	if err != nil {
		return err
	}
	if !access.CanAccess(caller, &t.OwnerID) {
		return apperror.Forbidden("Only the task owner can delete this task")
	}
	if err := s.Repository.Delete(db, t.ID); err != nil {
		return apperror.Internal(err)
	}
	s.Activity.Log(ctx, activity.Entry{
		UserID:     caller.ID,
		Action:     "Task Deleted",
		EntityType: activity.EntityTask,
		EntityID:   t.ID,
		Details:    map[string]any{"title": t.Title},
	})
	return nil
}

// checkRelated requires the referenced lead or customer to exist and be visible to the caller.
func (s *Service) checkRelated(ctx context.Context, caller access.Caller, ref RelatedRef) error {
	var err error
	switch ref.Type {
	case RelatedLead:
		err = s.Leads.Exists(ctx, caller, ref.ID)
	case RelatedCustomer:
		err = s.Customers.Exists(ctx, caller, ref.ID)
	default:
		return apperror.Field("relatedTo.type", "must be one of Lead, Customer")
	}
	if apperror.Is(err, apperror.KindNotFound) || apperror.Is(err, apperror.KindAuthorization) {
		return apperror.Field("relatedTo.id", "must reference an existing "+strings.ToLower(string(ref.Type)))
	}
	return err
}

func (s *Service) load(db *gorm.DB, caller access.Caller, id uint) (*Task, error) {
	t, err := s.Repository.FindByID(db, id)
	if err != nil {
		return nil, apperror.FromStore(err, msgNotFound)
	}
	if !access.CanAccess(caller, &t.OwnerID, t.AssignedToID) {
		return nil, apperror.Forbidden(msgForbidden)
	}
	return t, nil
}

func parseDue(raw string) (time.Time, error) {
	t, _, err := utils.ParseDate(raw)
	if err != nil {
		return time.Time{}, apperror.Field("dueDate", err.Error())
	}
	return t, nil
}
