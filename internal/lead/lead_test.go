package lead

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/KromaEnergia/crm-api/internal/access"
	"github.com/KromaEnergia/crm-api/internal/activity"
	"github.com/KromaEnergia/crm-api/internal/apperror"
	"github.com/KromaEnergia/crm-api/internal/customer"
	"github.com/KromaEnergia/crm-api/internal/httputil"
	"github.com/KromaEnergia/crm-api/internal/logger"
	"github.com/KromaEnergia/crm-api/internal/notify"
	"github.com/KromaEnergia/crm-api/internal/testutil"
	"github.com/KromaEnergia/crm-api/internal/user"
)

var page1 = httputil.Page{Page: 1, Limit: 10}

type sent struct {
	event string
	data  any
}

type fakeNotifier struct {
	mu   sync.Mutex
	sent []sent
	err  error
}

func (n *fakeNotifier) Send(_ context.Context, event string, data any) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, sent{event: event, data: data})
	return n.err
}

type fixture struct {
	db        *gorm.DB
	svc       *Service
	act       *activity.Service
	customers *customer.Service
	notifier  *fakeNotifier
	admin     access.Caller
	agentA    access.Caller
	agentB    access.Caller
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := testutil.NewDB(t, &user.User{}, &activity.Activity{}, &customer.Customer{}, &Lead{})
	act := activity.NewService(db, logger.Discard())
	users := user.NewService(db, act)
	customers := customer.NewService(db, users, act)
	notifier := &fakeNotifier{}

	f := &fixture{
		db:        db,
		svc:       NewService(db, users, customers, act, notifier),
		act:       act,
		customers: customers,
		notifier:  notifier,
	}
	for i, role := range []access.Role{access.RoleAdmin, access.RoleAgent, access.RoleAgent} {
		u := &user.User{Email: fmt.Sprintf("u%d@crm.test", i), PasswordHash: "x", FirstName: "U", LastName: "U", Role: role, IsActive: true}
		require.NoError(t, users.Repository.Create(db, u))
		switch i {
		case 0:
			f.admin = u.Caller()
		case 1:
			f.agentA = u.Caller()
		case 2:
			f.agentB = u.Caller()
		}
	}
	return f
}

func (f *fixture) create(t *testing.T, c access.Caller, name, email string) *Lead {
	t.Helper()
	l, err := f.svc.Create(context.Background(), c, CreateRequest{Name: name, Email: email, Source: "Website"})
	require.NoError(t, err)
	return l
}

func (f *fixture) countCustomers(t *testing.T) int64 {
	t.Helper()
	var n int64
	require.NoError(t, f.db.Model(&customer.Customer{}).Count(&n).Error)
	return n
}

func TestCreateDefaults(t *testing.T) {
	f := newFixture(t)
	l, err := f.svc.Create(context.Background(), f.agentA, CreateRequest{
		Name: "  Jane Doe ", Email: "Jane@X.com", Source: "Website", AssignedAgent: &f.agentB.ID,
	})
	require.NoError(t, err)
	assert.Equal(t, "Jane Doe", l.Name)
	assert.Equal(t, "jane@x.com", l.Email)
	assert.Equal(t, StatusNew, l.Status)
	assert.Equal(t, f.agentA.ID, l.AssignedAgentID, "agents always own what they create")
	assert.False(t, l.IsArchived)

	admin, err := f.svc.Create(context.Background(), f.admin, CreateRequest{
		Name: "Bob Roe", Email: "bob@x.com", Status: testutil.Ptr(StatusInProgress), AssignedAgent: &f.agentB.ID,
	})
	require.NoError(t, err)
	assert.Equal(t, f.agentB.ID, admin.AssignedAgentID)
	assert.Equal(t, StatusInProgress, admin.Status)
}

func TestCreateValidation(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Create(context.Background(), f.agentA, CreateRequest{Name: "J", Email: "nope", Status: testutil.Ptr(Status("Maybe"))})
	var appErr *apperror.Error
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, apperror.KindValidation, appErr.Kind)
	fields := map[string]bool{}
	for _, fe := range appErr.Fields {
		fields[fe.Field] = true
	}
	assert.True(t, fields["name"])
	assert.True(t, fields["email"])
	assert.True(t, fields["status"])

	_, err = f.svc.Create(context.Background(), f.admin, CreateRequest{Name: "Jane", Email: "j@x.com", AssignedAgent: testutil.Ptr(uint(999))})
	assert.True(t, apperror.Is(err, apperror.KindValidation))
}

func TestActiveEmailUniqueness(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	first := f.create(t, f.agentA, "Jane Doe", "jane@x.com")

	_, err := f.svc.Create(ctx, f.agentB, CreateRequest{Name: "Jane Again", Email: "JANE@x.com"})
	assert.True(t, apperror.Is(err, apperror.KindConflict))

	require.NoError(t, f.svc.Archive(ctx, f.agentA, first.ID))
	again, err := f.svc.Create(ctx, f.agentB, CreateRequest{Name: "Jane Again", Email: "jane@x.com"})
	require.NoError(t, err, "archived leads release their email")
	assert.NotEqual(t, first.ID, again.ID)
}

func TestArchiveHidesLead(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	l := f.create(t, f.agentA, "Jane Doe", "jane@x.com")
	f.create(t, f.agentA, "Bob Roe", "bob@x.com")

	require.NoError(t, f.svc.Archive(ctx, f.agentA, l.ID))
	_, err := f.svc.Get(ctx, f.agentA, l.ID)
	assert.True(t, apperror.Is(err, apperror.KindNotFound))
	assert.True(t, apperror.Is(f.svc.Archive(ctx, f.agentA, l.ID), apperror.KindNotFound))

	list, total, err := f.svc.List(ctx, f.agentA, ListFilter{}, page1)
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	require.Len(t, list, 1)
	assert.Equal(t, "bob@x.com", list[0].Email)

	_, total, err = f.svc.List(ctx, f.agentA, ListFilter{IncludeArchived: true}, page1)
	require.NoError(t, err)
	assert.EqualValues(t, 1, total, "agents cannot include archived leads")

	_, total, err = f.svc.List(ctx, f.admin, ListFilter{IncludeArchived: true}, page1)
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)
}

// convertingRepo converts the lead right after it is read, the way a concurrent
// Convert request would between Archive's load and its write.
type convertingRepo struct {
	Repository
	customerID uint
}

func (r *convertingRepo) FindActive(db *gorm.DB, id uint) (*Lead, error) {
	l, err := r.Repository.FindActive(db, id)
	if err != nil {
		return l, err
	}
	err = db.Model(&Lead{}).Where("id = ?", id).Updates(map[string]any{
		"status":                   StatusClosedWon,
		"converted_to_customer_id": r.customerID,
	}).Error
	return l, err
}

func TestArchiveKeepsConcurrentConversion(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	l := f.create(t, f.agentA, "Jane Doe", "jane@x.com")
	f.svc.Repository = &convertingRepo{Repository: f.svc.Repository, customerID: 42}

	require.NoError(t, f.svc.Archive(ctx, f.agentA, l.ID))

	var stored Lead
	require.NoError(t, f.db.First(&stored, l.ID).Error)
	assert.True(t, stored.IsArchived)
	assert.Equal(t, StatusClosedWon, stored.Status)
	require.NotNil(t, stored.ConvertedToCustomerID)
	assert.EqualValues(t, 42, *stored.ConvertedToCustomerID)
}

func TestListScopeAndFilters(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.create(t, f.agentA, "Jane Doe", "jane@x.com")
	f.create(t, f.agentA, "Anna 50% Off", "anna@x.com")
	f.create(t, f.agentB, "Bob Roe", "bob@x.com")

	list, total, err := f.svc.List(ctx, f.agentA, ListFilter{AssignedAgent: &f.agentB.ID}, page1)
	require.NoError(t, err)
	assert.EqualValues(t, 2, total, "agent owner filter is ignored")
	for _, l := range list {
		assert.Equal(t, f.agentA.ID, l.AssignedAgentID)
	}

	_, total, err = f.svc.List(ctx, f.admin, ListFilter{AssignedAgent: &f.agentB.ID}, page1)
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)

	_, total, err = f.svc.List(ctx, f.admin, ListFilter{Search: "50%"}, page1)
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)

	_, total, err = f.svc.List(ctx, f.admin, ListFilter{Source: "website"}, page1)
	require.NoError(t, err)
	assert.EqualValues(t, 3, total)

	_, total, err = f.svc.List(ctx, f.admin, ListFilter{Status: StatusClosedLost}, page1)
	require.NoError(t, err)
	assert.Zero(t, total)

	_, _, err = f.svc.List(ctx, f.admin, ListFilter{Status: "Maybe"}, page1)
	assert.True(t, apperror.Is(err, apperror.KindValidation))

	list, total, err = f.svc.List(ctx, f.admin, ListFilter{}, httputil.Page{Page: 2, Limit: 2})
	require.NoError(t, err)
	assert.EqualValues(t, 3, total)
	assert.Len(t, list, 1)
}

func TestAgentCannotTouchOthersLead(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	l := f.create(t, f.agentA, "Jane Doe", "jane@x.com")

	_, err := f.svc.Get(ctx, f.agentB, l.ID)
	assert.True(t, apperror.Is(err, apperror.KindAuthorization))
	_, err = f.svc.Update(ctx, f.agentB, l.ID, UpdateRequest{Phone: testutil.Ptr("555")})
	assert.True(t, apperror.Is(err, apperror.KindAuthorization))
	_, err = f.svc.Convert(ctx, f.agentB, l.ID, ConvertRequest{Company: "Acme"})
	assert.True(t, apperror.Is(err, apperror.KindAuthorization))
	assert.True(t, apperror.Is(f.svc.Archive(ctx, f.agentB, l.ID), apperror.KindAuthorization))
}

func TestUpdate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	l := f.create(t, f.agentA, "Jane Doe", "jane@x.com")
	f.create(t, f.agentA, "Bob Roe", "bob@x.com")

	out, err := f.svc.Update(ctx, f.agentA, l.ID, UpdateRequest{
		Status: testutil.Ptr(StatusInProgress), Phone: testutil.Ptr("555"), AssignedAgent: &f.agentB.ID,
	})
	require.NoError(t, err)
	assert.Equal(t, StatusInProgress, out.Status)
	assert.Equal(t, "555", out.Phone)
	assert.Equal(t, f.agentA.ID, out.AssignedAgentID, "agents cannot reassign")

	_, err = f.svc.Update(ctx, f.agentA, l.ID, UpdateRequest{Email: testutil.Ptr("bob@x.com")})
	assert.True(t, apperror.Is(err, apperror.KindConflict))

	out, err = f.svc.Update(ctx, f.admin, l.ID, UpdateRequest{AssignedAgent: &f.agentB.ID})
	require.NoError(t, err)
	assert.Equal(t, f.agentB.ID, out.AssignedAgentID)

	acts, _, err := f.act.ForEntity(ctx, f.admin, activity.EntityLead, l.ID, page1)
	require.NoError(t, err)
	require.Len(t, acts, 3)
	assert.Equal(t, "Lead Updated", acts[0].Action)
	assert.Equal(t, []any{"assignedAgent"}, acts[0].Details["changedFields"])
}

func TestConvert(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	l, err := f.svc.Create(ctx, f.agentA, CreateRequest{Name: "Jane Doe", Email: "jane@x.com", Phone: "555-0100", Source: "Referral"})
	require.NoError(t, err)

	out, err := f.svc.Convert(ctx, f.agentA, l.ID, ConvertRequest{
		Company: "Acme",
		Tags:    []string{"vip"},
		Deals:   []customer.DealRequest{{Title: "Pilot", Value: 1200}},
	})
	require.NoError(t, err)

	c := out.Customer
	assert.Equal(t, "Jane Doe", c.Name)
	assert.Equal(t, "Acme", c.Company)
	assert.Equal(t, "jane@x.com", c.Email)
	assert.Equal(t, "555-0100", c.Phone)
	assert.Equal(t, []string{"vip"}, c.Tags)
	assert.Equal(t, f.agentA.ID, c.OwnerID)
	require.NotNil(t, c.ConvertedFromLeadID)
	assert.Equal(t, l.ID, *c.ConvertedFromLeadID)
	require.Len(t, c.Deals, 1)

	stored, err := f.svc.Get(ctx, f.agentA, l.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusClosedWon, stored.Status)
	require.NotNil(t, stored.ConvertedToCustomerID)
	assert.Equal(t, c.ID, *stored.ConvertedToCustomerID)
	assert.NotNil(t, stored.ConvertedAt)

	fromCustomers, err := f.customers.Get(ctx, f.agentA, c.ID)
	require.NoError(t, err)
	assert.Equal(t, "Acme", fromCustomers.Company)

	acts, _, err := f.act.ForEntity(ctx, f.admin, activity.EntityLead, l.ID, page1)
	require.NoError(t, err)
	require.NotEmpty(t, acts)
	assert.Equal(t, "Lead Converted to Customer", acts[0].Action)
	assert.EqualValues(t, c.ID, acts[0].Details["customerId"])
	assert.Equal(t, "Acme", acts[0].Details["company"])

	require.Len(t, f.notifier.sent, 1)
	assert.Equal(t, notify.EventLeadConverted, f.notifier.sent[0].event)
	data := f.notifier.sent[0].data.(map[string]any)
	assert.Equal(t, l.ID, data["leadId"])
	assert.Equal(t, c.ID, data["customerId"])
	assert.Equal(t, f.agentA.ID, data["convertedBy"])

	_, err = f.svc.Update(ctx, f.agentA, l.ID, UpdateRequest{Status: testutil.Ptr(StatusNew)})
	assert.True(t, apperror.Is(err, apperror.KindInvalidStateTransition), "converted leads stay Closed Won")

	_, err = f.svc.Convert(ctx, f.agentA, l.ID, ConvertRequest{Company: "Acme"})
	assert.True(t, apperror.Is(err, apperror.KindInvalidStateTransition))
	assert.EqualValues(t, 1, f.countCustomers(t))
}

func TestConvertRejectsClosedLead(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	l := f.create(t, f.agentA, "Jane Doe", "jane@x.com")
	_, err := f.svc.Update(ctx, f.agentA, l.ID, UpdateRequest{Status: testutil.Ptr(StatusClosedLost)})
	require.NoError(t, err)

	_, err = f.svc.Convert(ctx, f.agentA, l.ID, ConvertRequest{Company: "Acme"})
	assert.True(t, apperror.Is(err, apperror.KindInvalidStateTransition))
	assert.Zero(t, f.countCustomers(t))
	assert.Empty(t, f.notifier.sent)
}

func TestConvertFailuresLeaveLeadUntouched(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	l := f.create(t, f.agentA, "Jane Doe", "jane@x.com")

	_, err := f.svc.Convert(ctx, f.agentA, l.ID, ConvertRequest{Company: "  "})
	var appErr *apperror.Error
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, apperror.KindValidation, appErr.Kind)
	require.NotEmpty(t, appErr.Fields)
	assert.Equal(t, "company", appErr.Fields[0].Field)

	_, err = f.customers.Create(ctx, f.agentB, customer.CreateRequest{Name: "Other Jane", Company: "Globex", Email: "jane@x.com"})
	require.NoError(t, err)
	_, err = f.svc.Convert(ctx, f.agentA, l.ID, ConvertRequest{Company: "Acme"})
	assert.True(t, apperror.Is(err, apperror.KindConflict))

	stored, err := f.svc.Get(ctx, f.agentA, l.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusNew, stored.Status)
	assert.Nil(t, stored.ConvertedToCustomerID)
	assert.EqualValues(t, 1, f.countCustomers(t))
	assert.Empty(t, f.notifier.sent)
}

func TestConvertSurvivesNotifierFailure(t *testing.T) {
	f := newFixture(t)
	f.notifier.err = errors.New("connection refused")
	l := f.create(t, f.agentA, "Jane Doe", "jane@x.com")

	out, err := f.svc.Convert(context.Background(), f.agentA, l.ID, ConvertRequest{Company: "Acme"})
	require.NoError(t, err)
	assert.Equal(t, StatusClosedWon, out.Lead.Status)
	assert.Len(t, f.notifier.sent, 1)
}

func TestHandler(t *testing.T) {
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

	rr := serve(f.agentA, http.MethodPost, "/leads", `{"name":"Jane Doe","email":"jane@x.com","source":"Website"}`)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	assert.Contains(t, rr.Body.String(), `"message":"Lead created successfully"`)

	assert.Equal(t, http.StatusBadRequest, serve(f.agentA, http.MethodPost, "/leads", `{"name":`).Code)
	assert.Equal(t, http.StatusForbidden, serve(f.agentB, http.MethodGet, "/leads/1", "").Code)
	assert.Equal(t, http.StatusBadRequest, serve(f.agentA, http.MethodGet, "/leads/abc", "").Code)
	assert.Equal(t, http.StatusOK, serve(f.agentA, http.MethodPatch, "/leads/1", `{"status":"In Progress"}`).Code)

	rr = serve(f.agentA, http.MethodGet, "/leads?status=In%20Progress&page=1&limit=5", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"total":1`)
	assert.Equal(t, http.StatusBadRequest, serve(f.agentA, http.MethodGet, "/leads?assignedAgent=x", "").Code)

	assert.Equal(t, http.StatusBadRequest, serve(f.agentA, http.MethodPost, "/leads/1/convert", `{}`).Code)
	rr = serve(f.agentA, http.MethodPost, "/leads/1/convert", `{"company":"Acme"}`)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Contains(t, rr.Body.String(), `"company":"Acme"`)
	assert.Contains(t, rr.Body.String(), `"status":"Closed Won"`)
	assert.Equal(t, http.StatusBadRequest, serve(f.agentA, http.MethodPost, "/leads/1/convert", `{"company":"Acme"}`).Code)

	assert.Equal(t, http.StatusOK, serve(f.agentA, http.MethodDelete, "/leads/1", "").Code)
	assert.Equal(t, http.StatusNotFound, serve(f.agentA, http.MethodGet, "/leads/1", "").Code)
}
