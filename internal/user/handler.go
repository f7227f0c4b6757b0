package user

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/KromaEnergia/crm-api/internal/access"
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
	r.HandleFunc("/users/profile/me", h.Profile).Methods("GET")
	r.HandleFunc("/users/profile/me", h.UpdateProfile).Methods("PATCH")
	r.HandleFunc("/users", h.List).Methods("GET")
	r.HandleFunc("/users/{id}", h.Get).Methods("GET")
	r.HandleFunc("/users/{id}", h.Update).Methods("PATCH")
	r.HandleFunc("/users/{id}", h.Delete).Methods("DELETE")
}

// GET /users?page&limit&role&isActive&search
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
	f := ListFilter{
		Role:   access.Role(r.URL.Query().Get("role")),
		Search: r.URL.Query().Get("search"),
	}
	if f.IsActive, err = httputil.QueryBool(r, "isActive"); err != nil {
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

// GET /users/{id}
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
	u, err := h.Service.Get(r.Context(), caller, id)
	if err != nil {
		httputil.Error(w, h.Log, err)
		return
	}
	httputil.OK(w, u)
}

// PATCH /users/{id}
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
	u, err := h.Service.Update(r.Context(), caller, id, req)
	if err != nil {
		httputil.Error(w, h.Log, err)
		return
	}
	httputil.Mutation(w, http.StatusOK, "User updated successfully", u)
}

// DELETE /users/{id}
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
	httputil.Mutation(w, http.StatusOK, "User deleted successfully", nil)
}

// GET /users/profile/me
func (h *Handler) Profile(w http.ResponseWriter, r *http.Request) {
	caller, err := httputil.Caller(r)
	if err != nil {
		httputil.Error(w, h.Log, err)
		return
	}
	u, err := h.Service.Get(r.Context(), caller, caller.ID)
	if err != nil {
		httputil.Error(w, h.Log, err)
		return
	}
	httputil.OK(w, u)
}

// PATCH /users/profile/me
func (h *Handler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	caller, err := httputil.Caller(r)
	if err != nil {
		httputil.Error(w, h.Log, err)
		return
	}
	var req ProfileRequest
	if err := httputil.Decode(r, &req); err != nil {
		httputil.Error(w, h.Log, err)
		return
	}
	u, err := h.Service.UpdateProfile(r.Context(), caller, req)
	if err != nil {
		httputil.Error(w, h.Log, err)
		return
	}
	httputil.Mutation(w, http.StatusOK, "Profile updated successfully", u)
}
