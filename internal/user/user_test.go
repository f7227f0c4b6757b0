package user

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KromaEnergia/crm-api/internal/access"
	"github.com/KromaEnergia/crm-api/internal/activity"
	"github.com/KromaEnergia/crm-api/internal/apperror"
	"github.com/KromaEnergia/crm-api/internal/httputil"
	"github.com/KromaEnergia/crm-api/internal/logger"
	"github.com/KromaEnergia/crm-api/internal/testutil"
	"github.com/KromaEnergia/crm-api/internal/utils"
)

type fixture struct {
	svc   *Service
	act   *activity.Service
	admin *User
	agent *User
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := testutil.NewDB(t, &User{}, &activity.Activity{})
	act := activity.NewService(db, logger.Discard())
	f := &fixture{svc: NewService(db, act), act: act}
	f.admin = f.seed(t, "admin@crm.test", access.RoleAdmin)
	f.agent = f.seed(t, "agent@crm.test", access.RoleAgent)
	return f
}

func (f *fixture) seed(t *testing.T, email string, role access.Role) *User {
	t.Helper()
	hash, err := utils.HashPassword("password123")
	require.NoError(t, err)
	u := &User{Email: email, PasswordHash: hash, FirstName: "Test", LastName: "User", Role: role, IsActive: true}
	require.NoError(t, f.svc.Repository.Create(f.svc.DB, u))
	return u
}

func (f *fixture) actions(t *testing.T) []string {
	t.Helper()
	list, _, err := f.act.List(context.Background(), f.admin.Caller(), activity.ListFilter{}, httputil.Page{Page: 1, Limit: 100})
	require.NoError(t, err)
	out := make([]string, 0, len(list))
	for _, a := range list {
		out = append(out, a.Action)
	}
	return out
}

func TestCreateAssignsDefaultsAndTemporaryPassword(t *testing.T) {
	f := newFixture(t)
	out, err := f.svc.Create(context.Background(), f.admin.Caller(), CreateRequest{
		Email: "New.Agent@CRM.test", FirstName: "New", LastName: "Agent",
	})
	require.NoError(t, err)
	assert.Equal(t, "new.agent@crm.test", out.User.Email)
	assert.Equal(t, access.RoleAgent, out.User.Role)
	assert.True(t, out.User.IsActive)
	require.Len(t, out.TemporaryPassword, 12)

	u, err := f.svc.Authenticate(context.Background(), "new.agent@crm.test", out.TemporaryPassword)
	require.NoError(t, err)
	assert.NotNil(t, u.LastLogin)
	assert.Equal(t, []string{"User Logged In", "User Created"}, f.actions(t))
}

func TestCreateRejectsDuplicatesAndBadInput(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Create(ctx, f.admin.Caller(), CreateRequest{Email: "AGENT@crm.test", FirstName: "A", LastName: "B"})
	assert.True(t, apperror.Is(err, apperror.KindConflict))

	role := access.Role("owner")
	_, err = f.svc.Create(ctx, f.admin.Caller(), CreateRequest{Email: "nope", Password: "short", Role: &role})
	var appErr *apperror.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, apperror.KindValidation, appErr.Kind)
	assert.Len(t, appErr.Fields, 5)

	_, err = f.svc.Create(ctx, f.agent.Caller(), CreateRequest{Email: "x@crm.test", FirstName: "A", LastName: "B"})
	assert.True(t, apperror.Is(err, apperror.KindAuthorization))
}

func TestAuthenticate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Authenticate(ctx, "agent@crm.test", "wrong-password")
	assert.True(t, apperror.Is(err, apperror.KindAuthentication))
	_, err = f.svc.Authenticate(ctx, "ghost@crm.test", "password123")
	assert.True(t, apperror.Is(err, apperror.KindAuthentication))

	inactive := false
	_, err = f.svc.Update(ctx, f.admin.Caller(), f.agent.ID, UpdateRequest{IsActive: &inactive})
	require.NoError(t, err)
	_, err = f.svc.Authenticate(ctx, "agent@crm.test", "password123")
	assert.True(t, apperror.Is(err, apperror.KindAuthentication))

	_, err = f.svc.Active(ctx, f.agent.ID)
	assert.True(t, apperror.Is(err, apperror.KindAuthentication))
	assert.True(t, apperror.Is(f.svc.RequireActive(ctx, "assignedAgent", f.agent.ID), apperror.KindValidation))
	assert.True(t, apperror.Is(f.svc.RequireActive(ctx, "assignedAgent", 999), apperror.KindValidation))
	assert.NoError(t, f.svc.RequireActive(ctx, "assignedAgent", f.admin.ID))
}

func TestAdminCannotDeactivateDemoteOrDeleteSelf(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	off := false
	agent := access.RoleAgent

	_, err := f.svc.Update(ctx, f.admin.Caller(), f.admin.ID, UpdateRequest{IsActive: &off, Role: &agent})
	var appErr *apperror.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, apperror.KindValidation, appErr.Kind)
	assert.Len(t, appErr.Fields, 2)

	err = f.svc.Delete(ctx, f.admin.Caller(), f.admin.ID)
	assert.True(t, apperror.Is(err, apperror.KindValidation))

	u, err := f.svc.Get(ctx, f.admin.Caller(), f.admin.ID)
	require.NoError(t, err)
	assert.True(t, u.IsActive)
	assert.Equal(t, access.RoleAdmin, u.Role)
}

func TestUpdateRecordsChangedFields(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	name := "Renamed"
	same := "User"

	u, err := f.svc.Update(ctx, f.admin.Caller(), f.agent.ID, UpdateRequest{FirstName: &name, LastName: &same})
	require.NoError(t, err)
	assert.Equal(t, "Renamed", u.FirstName)

	list, _, err := f.act.List(ctx, f.admin.Caller(), activity.ListFilter{Search: "User Updated"}, httputil.Page{Page: 1, Limit: 10})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, []any{"firstName"}, list[0].Details["changedFields"])

	taken := "admin@crm.test"
	_, err = f.svc.Update(ctx, f.admin.Caller(), f.agent.ID, UpdateRequest{Email: &taken})
	assert.True(t, apperror.Is(err, apperror.KindConflict))

	_, err = f.svc.Update(ctx, f.admin.Caller(), 999, UpdateRequest{FirstName: &name})
	assert.True(t, apperror.Is(err, apperror.KindNotFound))
}

func TestDelete(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	assert.True(t, apperror.Is(f.svc.Delete(ctx, f.agent.Caller(), f.admin.ID), apperror.KindAuthorization))
	require.NoError(t, f.svc.Delete(ctx, f.admin.Caller(), f.agent.ID))
	_, err := f.svc.Get(ctx, f.admin.Caller(), f.agent.ID)
	assert.True(t, apperror.Is(err, apperror.KindNotFound))
}

func TestUpdateProfile(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	newPass := "brand-new-pass"

	_, err := f.svc.UpdateProfile(ctx, f.agent.Caller(), ProfileRequest{NewPassword: &newPass})
	assert.True(t, apperror.Is(err, apperror.KindValidation))

	_, err = f.svc.UpdateProfile(ctx, f.agent.Caller(), ProfileRequest{NewPassword: &newPass, CurrentPassword: "nope"})
	assert.True(t, apperror.Is(err, apperror.KindValidation))

	first := "Ana"
	u, err := f.svc.UpdateProfile(ctx, f.agent.Caller(), ProfileRequest{FirstName: &first, NewPassword: &newPass, CurrentPassword: "password123"})
	require.NoError(t, err)
	assert.Equal(t, "Ana", u.FirstName)

	_, err = f.svc.Authenticate(ctx, "agent@crm.test", newPass)
	assert.NoError(t, err)
}

func TestListIsAdminOnlyAndFilters(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	page := httputil.Page{Page: 1, Limit: 10}

	_, _, err := f.svc.List(ctx, f.agent.Caller(), ListFilter{}, page)
	assert.True(t, apperror.Is(err, apperror.KindAuthorization))

	list, total, err := f.svc.List(ctx, f.admin.Caller(), ListFilter{Role: access.RoleAgent}, page)
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	assert.Equal(t, f.agent.ID, list[0].ID)

	_, total, err = f.svc.List(ctx, f.admin.Caller(), ListFilter{Search: "ADMIN@"}, page)
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
}

func TestEnsureAdmin(t *testing.T) {
	f := newFixture(t)
	created, err := f.svc.EnsureAdmin(context.Background(), "root@crm.test", "rootpass123")
	require.NoError(t, err)
	assert.True(t, created)
	created, err = f.svc.EnsureAdmin(context.Background(), "ROOT@crm.test", "rootpass123")
	require.NoError(t, err)
	assert.False(t, created)
}

func TestHandlerProfileAndPasswordHidden(t *testing.T) {
	f := newFixture(t)
	r := mux.NewRouter()
	NewHandler(f.svc, logger.Discard()).RegisterRoutes(r)
	serve := func(c access.Caller, method, path, body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(method, path, strings.NewReader(body))
		req = req.WithContext(access.WithCaller(req.Context(), c))
		rr := httptest.NewRecorder()
		r.ServeHTTP(rr, req)
		return rr
	}

	rr := serve(f.agent.Caller(), http.MethodGet, "/users/profile/me", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.NotContains(t, rr.Body.String(), "password")
	var body struct {
		Data User `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, f.agent.ID, body.Data.ID)

	rr = serve(f.agent.Caller(), http.MethodPatch, "/users/profile/me", `{"lastName":"Smith"}`)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"message":"Profile updated successfully"`)

	assert.Equal(t, http.StatusForbidden, serve(f.agent.Caller(), http.MethodGet, "/users", "").Code)
	assert.Equal(t, http.StatusOK, serve(f.admin.Caller(), http.MethodGet, "/users?role=agent", "").Code)
	assert.Equal(t, http.StatusBadRequest, serve(f.admin.Caller(), http.MethodDelete, "/users/1", "").Code)
	assert.Equal(t, http.StatusNotFound, serve(f.admin.Caller(), http.MethodGet, "/users/42", "").Code)
}
