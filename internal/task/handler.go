package task

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/KromaEnergia/crm-api/internal/apperror"
	"github.com/KromaEnergia/crm-api/internal/httputil"
	"github.com/KromaEnergia/crm-api/internal/utils"
)

type Handler struct {
	Service *Service
	Log     logrus.FieldLogger
}

func NewHandler(service *Service, log logrus.FieldLogger) *Handler {
	return &Handler{Service: service, Log: log}
}

func (h *Handler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/tasks", h.List).Methods("GET")
	r.HandleFunc("/tasks", h.Create).Methods("POST")
	r.HandleFunc("/tasks/{id}", h.Get).Methods("GET")
	r.HandleFunc("/tasks/{id}", h.Update).Methods("PATCH", "PUT")
	r.HandleFunc("/tasks/{id}", h.Delete).Methods("DELETE")
}

// GET /tasks?page&limit&status&priority&search&owner&assignedTo&dueFrom&dueTo&relatedType&relatedId
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	caller, err := httputil.Caller(r)
	if err != nil {
		httputil.Error(w, h.Log, err)
		return
	}
	page, err := httputil.ParsePage(r)
	if err != nil {
		httputil.Error(w, h.Log, err)
		return
	}
	f, err := parseFilter(r)
	if err != nil {
		httputil.Error(w, h.Log, err)
		return
	}

	list, total, err := h.Service.List(r.Context(), caller, f, page)
	if err != nil {
		httputil.Error(w, h.Log, err)
		return
	}
	httputil.List(w, list, httputil.NewPagination(page, total))
}

func parseFilter(r *http.Request) (ListFilter, error) {
	q := r.URL.Query()
	f := ListFilter{
		Status:      Status(q.Get("status")),
		Priority:    Priority(q.Get("priority")),
		Search:      q.Get("search"),
		RelatedType: RelatedType(q.Get("relatedType")),
	}
	var err error
	if f.OwnerID, err = httputil.QueryID(r, "owner"); err != nil {
		return f, err
	}
	if f.AssignedTo, err = httputil.QueryID(r, "assignedTo"); err != nil {
		return f, err
	}
	if f.RelatedID, err = httputil.QueryID(r, "relatedId"); err != nil {
		return f, err
	}
	if f.DueFrom, err = queryDate(r, "dueFrom", false); err != nil {
		return f, err
	}
	if f.DueTo, err = queryDate(r, "dueTo", true); err != nil {
		return f, err
	}
	return f, nil
}

// queryDate parses an optional date bound. A bare date used as an upper bound covers the whole day.
func queryDate(r *http.Request, name string, upper bool) (*time.Time, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil, nil
	}
	t, dateOnly, err := utils.ParseDate(raw)
	if err != nil {
		return nil, apperror.Field(name, err.Error())
	}
	if upper && dateOnly {
		t = t.Add(24*time.Hour - time.Nanosecond)
	}
	return &t, nil
}

// GET /tasks/{id}
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	caller, err := httputil.Caller(r)
	if err != nil {
		httputil.Error(w, h.Log, err)
		return
	}
	id, err := httputil.PathID(r, "id")
	if err != nil {
		httputil.Error(w, h.Log, err)
		return
	}
	t, err := h.Service.Get(r.Context(), caller, id)
	if err != nil {
		httputil.Error(w, h.Log, err)
		return
	}
	httputil.OK(w, t)
}

// POST /tasks
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	caller, err := httputil.Caller(r)
	if err != nil {
		httputil.Error(w, h.Log, err)
		return
	}
	var req CreateRequest
	if err := httputil.Decode(r, &req); err != nil {
		httputil.Error(w, h.Log, err)
		return
	}
	t, err := h.Service.Create(r.Context(), caller, req)
	if err != nil {
		httputil.Error(w, h.Log, err)
		return
	}
	httputil.Mutation(w, http.StatusCreated, "Task created successfully", t)
}

// PATCH /tasks/{id}
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	caller, err := httputil.Caller(r)
	if err != nil {
		httputil.Error(w, h.Log, err)
		return
	}
	id, err := httputil.PathID(r, "id")
	if err != nil {
		httputil.Error(w, h.Log, err)
		return
	}
	var req UpdateRequest
	if err := httputil.Decode(r, &req); err != nil {
		httputil.Error(w, h.Log, err)
		return
	}
	t, err := h.Service.Update(r.Context(), caller, id, req)
	if err != nil {
		httputil.Error(w, h.Log, err)
		return
	}
	httputil.Mutation(w, http.StatusOK, "Task updated successfully", t)
}

// DELETE /tasks/{id}
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	caller, err := httputil.Caller(r)
	if err != nil {
		httputil.Error(w, h.Log, err)
		return
	}
	id, err := httputil.PathID(r, "id")
	if err != nil {
		httputil.Error(w, h.Log, err)
		return
	}
	if err := h.Service.Delete(r.Context(), caller, id); err != nil {
		httputil.Error(w, h.Log, err)
		return
	}
	httputil.Mutation(w, http.StatusOK, "Task deleted successfully", nil)
}
