package lead

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/KromaEnergia/crm-api/internal/httputil"
)

type Handler struct {
	Service *Service
	Log     logrus.FieldLogger
}

func NewHandler(service *Service, log logrus.FieldLogger) *Handler {
	return &Handler{Service: service, Log: log}
}

func (h *Handler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/leads", h.List).Methods("GET")
	r.HandleFunc("/leads", h.Create).Methods("POST")
	r.HandleFunc("/leads/{id}", h.Get).Methods("GET")
	r.HandleFunc("/leads/{id}", h.Update).Methods("PATCH", "PUT")
	r.HandleFunc("/leads/{id}", h.Archive).Methods("DELETE")
	r.HandleFunc("/leads/{id}/convert", h.Convert).Methods("POST")
}

// GET /leads?page&limit&status&source&search&assignedAgent&includeArchived
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
	q := r.URL.Query()
	f := ListFilter{
		Status: Status(q.Get("status")),
		Source: q.Get("source"),
		Search: q.Get("search"),
	}
	if f.AssignedAgent, err = httputil.QueryID(r, "assignedAgent"); err != nil {
		httputil.Error(w, h.Log, err)
		return
	}
	archived, err := httputil.QueryBool(r, "includeArchived")
	if err != nil {
		httputil.Error(w, h.Log, err)
		return
	}
	f.IncludeArchived = archived != nil && *archived

	list, total, err := h.Service.List(r.Context(), caller, f, page)
	if err != nil {
		httputil.Error(w, h.Log, err)
		return
	}
	httputil.List(w, list, httputil.NewPagination(page, total))
}

// GET /leads/{id}
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
	l, err := h.Service.Get(r.Context(), caller, id)
	if err != nil {
		httputil.Error(w, h.Log, err)
		return
	}
	httputil.OK(w, l)
}

// POST /leads
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
	l, err := h.Service.Create(r.Context(), caller, req)
	if err != nil {
		httputil.Error(w, h.Log, err)
		return
	}
	httputil.Mutation(w, http.StatusCreated, "Lead created successfully", l)
}

// PATCH /leads/{id}
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
	l, err := h.Service.Update(r.Context(), caller, id, req)
	if err != nil {
		httputil.Error(w, h.Log, err)
		return
	}
	httputil.Mutation(w, http.StatusOK, "Lead updated successfully", l)
}

// DELETE /leads/{id}
func (h *Handler) Archive(w http.ResponseWriter, r *http.Request) {
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
	if err := h.Service.Archive(r.Context(), caller, id); err != nil {
		httputil.Error(w, h.Log, err)
		return
	}
	httputil.Mutation(w, http.StatusOK, "Lead archived successfully", nil)
}

// POST /leads/{id}/convert
func (h *Handler) Convert(w http.ResponseWriter, r *http.Request) {
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
	var req ConvertRequest
	if err := httputil.Decode(r, &req); err != nil {
		httputil.Error(w, h.Log, err)
		return
	}
	out, err := h.Service.Convert(r.Context(), caller, id, req)
	if err != nil {
		httputil.Error(w, h.Log, err)
		return
	}
	httputil.Mutation(w, http.StatusOK, "Lead converted to customer successfully", out)
}
