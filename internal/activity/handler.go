package activity

import (
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/KromaEnergia/crm-api/internal/apperror"
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
	r.HandleFunc("/activity", h.List).Methods("GET")
	r.HandleFunc("/activity/recent", h.Recent).Methods("GET")
	r.HandleFunc("/activity/entity/{entityType}/{entityId}", h.ForEntity).Methods("GET")
	r.HandleFunc("/activity/user/{userId}/summary", h.Summary).Methods("GET")
}

// GET /activity
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
	f := ListFilter{Search: q.Get("search")}
	if f.UserID, err = httputil.QueryID(r, "user"); err != nil {
		httputil.Error(w, h.Log, err)
		return
	}
	if f.EntityID, err = httputil.QueryID(r, "entityId"); err != nil {
		httputil.Error(w, h.Log, err)
		return
	}
	if raw := q.Get("entityType"); raw != "" {
		if f.EntityType, err = ParseEntityType(raw); err != nil {
			httputil.Error(w, h.Log, err)
			return
		}
	}

	list, total, err := h.Service.List(r.Context(), caller, f, page)
	if err != nil {
		httputil.Error(w, h.Log, err)
		return
	}
	httputil.List(w, list, httputil.NewPagination(page, total))
}

// GET /activity/recent
func (h *Handler) Recent(w http.ResponseWriter, r *http.Request) {
	caller, err := httputil.Caller(r)
	if err != nil {
		httputil.Error(w, h.Log, err)
		return
	}
	list, err := h.Service.Recent(r.Context(), caller)
	if err != nil {
		httputil.Error(w, h.Log, err)
		return
	}
	httputil.OK(w, list)
}

// GET /activity/entity/{entityType}/{entityId}
func (h *Handler) ForEntity(w http.ResponseWriter, r *http.Request) {
	caller, err := httputil.Caller(r)
	if err != nil {
		httputil.Error(w, h.Log, err)
		return
	}
	entityType, err := ParseEntityType(mux.Vars(r)["entityType"])
	if err != nil {
		httputil.Error(w, h.Log, err)
		return
	}
	entityID, err := httputil.PathID(r, "entityId")
	if err != nil {
		httputil.Error(w, h.Log, err)
		return
	}
	page, err := httputil.ParsePage(r)
	if err != nil {
		httputil.Error(w, h.Log, err)
		return
	}

	list, total, err := h.Service.ForEntity(r.Context(), caller, entityType, entityID, page)
	if err != nil {
		httputil.Error(w, h.Log, err)
		return
	}
	httputil.List(w, list, httputil.NewPagination(page, total))
}

// GET /activity/user/{userId}/summary?days=30
func (h *Handler) Summary(w http.ResponseWriter, r *http.Request) {
	caller, err := httputil.Caller(r)
	if err != nil {
		httputil.Error(w, h.Log, err)
		return
	}
	userID, err := httputil.PathID(r, "userId")
	if err != nil {
		httputil.Error(w, h.Log, err)
		return
	}
	days := DefaultSummaryDays
	if raw := r.URL.Query().Get("days"); raw != "" {
		if days, err = strconv.Atoi(raw); err != nil {
			httputil.Error(w, h.Log, apperror.Field("days", "must be an integer"))
			return
		}
	}

	summary, err := h.Service.Summary(r.Context(), caller, userID, days)
	if err != nil {
		httputil.Error(w, h.Log, err)
		return
	}
	httputil.OK(w, summary)
}
