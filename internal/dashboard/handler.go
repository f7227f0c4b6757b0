package dashboard

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
	r.HandleFunc("/dashboard/stats", h.Stats).Methods("GET")
}

// GET /dashboard/stats
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	caller, err := httputil.Caller(r)
	if err != nil {
		httputil.Error(w, h.Log, err)
		return
	}
	stats, err := h.Service.Stats(r.Context(), caller)
	if err != nil {
		httputil.Error(w, h.Log, err)
		return
	}
	httputil.OK(w, stats)
}
