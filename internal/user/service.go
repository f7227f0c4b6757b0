package user

import (
	"context"
	"errors"
	"sort"
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
	msgNotFound   = "User not found"
	msgEmailTaken = "A user with this email already exists"
	msgBadLogin   = "Invalid email or password"
)

// Activity is the sink for audit entries.
type Activity interface {
	Log(ctx context.Context, e activity.Entry)
}

type Service struct {
	DB         *gorm.DB
	Repository Repository
	Activity   Activity
	Now        func() time.Time
}

func NewService(db *gorm.DB, act Activity) *Service {
	return &Service{
		DB:         db,
		Repository: NewRepository(),
		Activity:   act,
		Now:        func() time.Time { return time.Now().UTC() },
	}
}

func (s *Service) List(ctx context.Context, caller access.Caller, f ListFilter, p httputil.Page) ([]User, int64, error) {
	if !caller.IsAdmin() {
		return nil, 0, apperror.Forbidden("Admin access required")
	}
	if f.Role != "" && !f.Role.IsValid() {
		return nil, 0, apperror.Field("role", "must be one of admin, agent")
	}
	q := s.DB.WithContext(ctx).Model(&User{}).
		Scopes(utils.Search(f.Search, "first_name", "last_name", "email"))
	if f.Role != "" {
		q = q.Where("role = ?", f.Role)
	}
	if f.IsActive != nil {
		q = q.Where("is_active = ?", *f.IsActive)
	}
	list, total, err := s.Repository.List(q, p.Page, p.Limit)
	if err != nil {
		return nil, 0, apperror.Internal(err)
	}
	return list, total, nil
}

// Get returns a user to an admin or to the user themselves.
func (s *Service) Get(ctx context.Context, caller access.Caller, id uint) (*User, error) {
	u, err := s.Repository.FindByID(s.DB.WithContext(ctx), id)
	if err != nil {
		return nil, apperror.FromStore(err, msgNotFound)
	}
	if !caller.IsAdmin() && caller.ID != id {
		return nil, apperror.Forbidden("You do not have access to this user")
	}
	return u, nil
}

// Active loads a user that may authenticate. Missing and deactivated accounts both fail.
func (s *Service) Active(ctx context.Context, id uint) (*User, error) {
	u, err := s.Repository.FindByID(s.DB.WithContext(ctx), id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperror.Unauthorized("User no longer exists")
		}
		return nil, apperror.Internal(err)
	}
	if !u.IsActive {
		return nil, apperror.Unauthorized("Account is deactivated")
	}
	return u, nil
}

// RequireActive checks that id names an active user; field names the input it came from.
func (s *Service) RequireActive(ctx context.Context, field string, id uint) error {
	u, err := s.Repository.FindByID(s.DB.WithContext(ctx), id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperror.Field(field, "must reference an existing user")
		}
		return apperror.Internal(err)
	}
	if !u.IsActive {
		return apperror.Field(field, "must reference an active user")
	}
	return nil
}

// Authenticate checks credentials and stamps lastLogin.
func (s *Service) Authenticate(ctx context.Context, email, password string) (*User, error) {
	db := s.DB.WithContext(ctx)
	u, err := s.Repository.FindByEmail(db, utils.NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperror.Unauthorized(msgBadLogin)
		}
		return nil, apperror.Internal(err)
	}
	if !utils.CheckPassword(u.PasswordHash, password) {
		return nil, apperror.Unauthorized(msgBadLogin)
	}
	if !u.IsActive {
		return nil, apperror.Unauthorized("Account is deactivated")
	}

	now := s.Now()
	if err := s.Repository.Update(db, u, map[string]any{"last_login": now}); err != nil {
		return nil, apperror.Internal(err)
	}
	u.LastLogin = &now
	s.Activity.Log(ctx, activity.Entry{
		UserID:     u.ID,
		Action:     "User Logged In",
		EntityType: activity.EntityUser,
		EntityID:   u.ID,
		Details:    map[string]any{"email": u.Email},
	})
	return u, nil
}

// Create registers a new account. Only admins may call it.
func (s *Service) Create(ctx context.Context, caller access.Caller, req CreateRequest) (*Created, error) {
	if !caller.IsAdmin() {
		return nil, apperror.Forbidden("Admin access required")
	}
	if err := validation.Struct(req); err != nil {
		return nil, err
	}

	db := s.DB.WithContext(ctx)
	email := utils.NormalizeEmail(req.Email)
	taken, err := s.Repository.EmailTaken(db, email, 0)
	if err != nil {
		return nil, apperror.Internal(err)
	}
	if taken {
		return nil, apperror.Conflict(msgEmailTaken)
	}

	out := &Created{}
	password := req.Password
	if password == "" {
		if password, err = utils.GenerateTemporaryPassword(); err != nil {
			return nil, apperror.Internal(err)
		}
		out.TemporaryPassword = password
	}
	hash, err := utils.HashPassword(password)
	if err != nil {
		return nil, apperror.Internal(err)
	}

	role := access.RoleAgent
	if req.Role != nil {
		role = *req.Role
	}
	u := &User{
		Email:        email,
		PasswordHash: hash,
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		Role:         role,
		IsActive:     true,
	}
	if err := s.Repository.Create(db, u); err != nil {
		return nil, conflictOr(err)
	}
	out.User = u

	s.Activity.Log(ctx, activity.Entry{
		UserID:     caller.ID,
		Action:     "User Created",
		EntityType: activity.EntityUser,
		EntityID:   u.ID,
		Details:    map[string]any{"email": u.Email, "role": string(u.Role)},
	})
	return out, nil
}

// Update applies an admin edit. Admins cannot deactivate or demote themselves.
func (s *Service) Update(ctx context.Context, caller access.Caller, id uint, req UpdateRequest) (*User, error) {
	if !caller.IsAdmin() {
		return nil, apperror.Forbidden("Admin access required")
	}
	if err := validation.Struct(req); err != nil {
		return nil, err
	}

	db := s.DB.WithContext(ctx)
	u, err := s.Repository.FindByID(db, id)
	if err != nil {
		return nil, apperror.FromStore(err, msgNotFound)
	}

	if caller.ID == id {
		var fields []apperror.FieldError
		if req.IsActive != nil && !*req.IsActive {
			fields = append(fields, apperror.FieldError{Field: "isActive", Message: "you cannot deactivate your own account"})
		}
		if req.Role != nil && *req.Role != access.RoleAdmin {
			fields = append(fields, apperror.FieldError{Field: "role", Message: "you cannot remove your own admin role"})
		}
		if len(fields) > 0 {
			return nil, apperror.Validation(fields...)
		}
	}

	changes := map[string]any{}
	if req.Email != nil {
		email := utils.NormalizeEmail(*req.Email)
		if email != u.Email {
			taken, err := s.Repository.EmailTaken(db, email, id)
			if err != nil {
				return nil, apperror.Internal(err)
			}
			if taken {
				return nil, apperror.Conflict(msgEmailTaken)
			}
			changes["email"] = email
		}
	}
	if req.FirstName != nil && *req.FirstName != u.FirstName {
		changes["first_name"] = *req.FirstName
	}
	if req.LastName != nil && *req.LastName != u.LastName {
		changes["last_name"] = *req.LastName
	}
	if req.Role != nil && *req.Role != u.Role {
		changes["role"] = *req.Role
	}
	if req.IsActive != nil && *req.IsActive != u.IsActive {
		changes["is_active"] = *req.IsActive
	}
	if req.Password != nil {
		hash, err := utils.HashPassword(*req.Password)
		if err != nil {
			return nil, apperror.Internal(err)
		}
		changes["password_hash"] = hash
	}

	return s.apply(ctx, caller, u, changes, "User Updated")
}

// Delete removes an account permanently. Admins cannot delete themselves.
func (s *Service) Delete(ctx context.Context, caller access.Caller, id uint) error {
	if !caller.IsAdmin() {
		return apperror.Forbidden("Admin access required")
	}
	if caller.ID == id {
		return apperror.Field("id", "you cannot delete your own account")
	}
	db := s.DB.WithContext(ctx)
	u, err := s.Repository.FindByID(db, id)
	if err != nil {
		return apperror.FromStore(err, msgNotFound)
	}
	if err := s.Repository.Delete(db, id); err != nil {
		return apperror.Internal(err)
	}
	s.Activity.Log(ctx, activity.Entry{
		UserID:     caller.ID,
		Action:     "User Deleted",
		EntityType: activity.EntityUser,
		EntityID:   id,
		Details:    map[string]any{"email": u.Email},
	})
	return nil
}

// UpdateProfile lets any caller edit their own name or password.
func (s *Service) UpdateProfile(ctx context.Context, caller access.Caller, req ProfileRequest) (*User, error) {
	if err := validation.Struct(req); err != nil {
		return nil, err
	}
	u, err := s.Repository.FindByID(s.DB.WithContext(ctx), caller.ID)
	if err != nil {
		return nil, apperror.FromStore(err, msgNotFound)
	}

	changes := map[string]any{}
	if req.FirstName != nil && *req.FirstName != u.FirstName {
		changes["first_name"] = *req.FirstName
	}
	if req.LastName != nil && *req.LastName != u.LastName {
		changes["last_name"] = *req.LastName
	}
	if req.NewPassword != nil {
		if req.CurrentPassword == "" {
			return nil, apperror.Field("currentPassword", "is required")
		}
		if !utils.CheckPassword(u.PasswordHash, req.CurrentPassword) {
			return nil, apperror.Field("currentPassword", "is incorrect")
		}
		hash, err := utils.HashPassword(*req.NewPassword)
		if err != nil {
			return nil, apperror.Internal(err)
		}
		changes["password_hash"] = hash
	}

	return s.apply(ctx, caller, u, changes, "Profile Updated")
}

// EnsureAdmin creates the first admin account when it does not exist yet.
func (s *Service) EnsureAdmin(ctx context.Context, email, password string) (bool, error) {
	db := s.DB.WithContext(ctx)
	email = utils.NormalizeEmail(email)
	taken, err := s.Repository.EmailTaken(db, email, 0)
	if err != nil || taken {
		return false, err
	}
	hash, err := utils.HashPassword(password)
	if err != nil {
		return false, err
	}
	u := &User{Email: email, PasswordHash: hash, FirstName: "Admin", LastName: "User", Role: access.RoleAdmin, IsActive: true}
	if err := s.Repository.Create(db, u); err != nil {
		return false, err
	}
	return true, nil
}

func (s *Service) apply(ctx context.Context, caller access.Caller, u *User, changes map[string]any, action string) (*User, error) {
	db := s.DB.WithContext(ctx)
	if len(changes) > 0 {
		if err := s.Repository.Update(db, u, changes); err != nil {
			return nil, conflictOr(err)
		}
	}
	fresh, err := s.Repository.FindByID(db, u.ID)
	if err != nil {
		return nil, apperror.FromStore(err, msgNotFound)
	}
	if len(changes) > 0 {
		s.Activity.Log(ctx, activity.Entry{
			UserID:     caller.ID,
			Action:     action,
			EntityType: activity.EntityUser,
			EntityID:   u.ID,
			Details:    map[string]any{"changedFields": changedFields(changes)},
		})
	}
	return fresh, nil
}

var fieldNames = map[string]string{
	"email":         "email",
	"first_name":    "firstName",
	"last_name":     "lastName",
	"role":          "role",
	"is_active":     "isActive",
	"password_hash": "password",
}

func changedFields(changes map[string]any) []string {
	out := make([]string, 0, len(changes))
	for col := range changes {
		out = append(out, fieldNames[col])
	}
	sort.Strings(out)
	return out
}

func conflictOr(err error) error {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return apperror.Conflict(msgEmailTaken)
	}
	return apperror.Internal(err)
}
