package customer

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
	r.HandleFunc("/customers", h.List).Methods("GET")
	r.HandleFunc("/customers", h.Create).Methods("POST")
	r.HandleFunc("/customers/{id}", h.Get).Methods("GET")
	r.HandleFunc("/customers/{id}", h.Update).Methods("PATCH", "PUT")
	r.HandleFunc("/customers/{id}", h.Delete).Methods("DELETE")
	r.HandleFunc("/customers/{id}/notes", h.AddNote).Methods("POST")
	r.HandleFunc("/customers/{id}/deals", h.AddDeal).Methods("POST")
}

// GET /customers?page&limit&search&tag&owner
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
	f := ListFilter{Search: r.URL.Query().Get("search"), Tag: r.URL.Query().Get("tag")}
	if f.OwnerID, err = httputil.QueryID(r, "owner"); err != nil {
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

// GET /customers/{id}
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
	c, err := h.Service.Get(r.Context(), caller, id)
	if err != nil {
		httputil.Error(w, h.Log, err)
		return
	}
	httputil.OK(w, c)
}

// POST /customers
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
	c, err := h.Service.Create(r.Context(), caller, req)
	if err != nil {
		httputil.Error(w, h.Log, err)
		return
	}
	httputil.Mutation(w, http.StatusCreated, "Customer created successfully", c)
}

// PATCH /customers/{id}
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
	c, err := h.Service.Update(r.Context(), caller, id, req)
	if err != nil {
		httputil.Error(w, h.Log, err)
		return
	}
	httputil.Mutation(w, http.StatusOK, "Customer updated successfully", c)
}

// DELETE /customers/{id}
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
	httputil.Mutation(w, http.StatusOK, "Customer deleted successfully", nil)
}

// POST /customers/{id}/notes
func (h *Handler) AddNote(w http.ResponseWriter, r *http.Request) {
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
	var req NoteRequest
	if err := httputil.Decode(r, &req); err != nil {
		httputil.Error(w, h.Log, err)
		return
	}
	c, err := h.Service.AddNote(r.Context(), caller, id, req)
	if err != nil {
		httputil.Error(w, h.Log, err)
		return
	}
	httputil.Mutation(w, http.StatusCreated, "Note added successfully", c)
}

// POST /customers/{id}/deals
func (h *Handler) AddDeal(w http.ResponseWriter, r *http.Request) {
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
	var req DealRequest
	if err := httputil.Decode(r, &req); err != nil {
		httputil.Error(w, h.Log, err)
		return
	}
	c, err := h.Service.AddDeal(r.Context(), caller, id, req)
	if err != nil {
		httputil.Error(w, h.Log, err)
		return
	}
	httputil.Mutation(w, http.StatusCreated, "Deal added successfully", c)
}
