// Package server wires the services and handlers into one HTTP handler.
package server

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/KromaEnergia/crm-api/internal/activity"
	"github.com/KromaEnergia/crm-api/internal/auth"
	"github.com/KromaEnergia/crm-api/internal/config"
	"github.com/KromaEnergia/crm-api/internal/customer"
	"github.com/KromaEnergia/crm-api/internal/dashboard"
	"github.com/KromaEnergia/crm-api/internal/httputil"
	"github.com/KromaEnergia/crm-api/internal/lead"
	"github.com/KromaEnergia/crm-api/internal/logger"
	"github.com/KromaEnergia/crm-api/internal/notify"
	"github.com/KromaEnergia/crm-api/internal/task"
	"github.com/KromaEnergia/crm-api/internal/user"
)

// Models lists every table the API owns, in migration order.
func Models() []any {
	return []any{
		&user.User{},
		&activity.Activity{},
		&lead.Lead{},
		&customer.Customer{},
		&task.Task{},
		&auth.RefreshToken{},
	}
}

type Server struct {
	Users     *user.Service
	Activity  *activity.Service
	Leads     *lead.Service
	Customers *customer.Service
	Tasks     *task.Service
	Dashboard *dashboard.Service
	Tokens    *auth.TokenIssuer
	Sessions  auth.SessionStore
	Notifier  *notify.Webhook

	cfg config.Config
	log logrus.FieldLogger
}

func New(cfg config.Config, db *gorm.DB, sessions auth.SessionStore, log logrus.FieldLogger) *Server {
	act := activity.NewService(db, log)
	users := user.NewService(db, act)
	customers := customer.NewService(db, users, act)
	webhook := notify.NewWebhook(cfg.WebhookURL, log)
	leads := lead.NewService(db, users, customers, act, webhook)

	return &Server{
		Users:     users,
		Activity:  act,
		Leads:     leads,
		Customers: customers,
		Tasks:     task.NewService(db, users, leads, customers, act),
		Dashboard: dashboard.NewService(db, act),
		Tokens:    auth.NewTokenIssuer(cfg.JWTSecret, cfg.JWTIssuer, cfg.JWTAudience, cfg.AccessTTL()),
		Sessions:  sessions,
		Notifier:  webhook,
		cfg:       cfg,
		log:       log,
	}
}

// Handler builds the router: /health and the token routes are public, everything
// else sits behind the bearer middleware. CORS and the access log wrap the lot.
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/health", health).Methods("GET")

	authHandler := auth.NewHandler(s.Users, s.Tokens, s.Sessions, s.cfg.RefreshTTL(), s.log)
	authHandler.RegisterPublicRoutes(r)

	protected := r.NewRoute().Subrouter()
	protected.Use(auth.Middleware(s.Tokens, s.Users, s.log))
	authHandler.RegisterRoutes(protected)
	user.NewHandler(s.Users, s.log).RegisterRoutes(protected)
	lead.NewHandler(s.Leads, s.log).RegisterRoutes(protected)
	customer.NewHandler(s.Customers, s.log).RegisterRoutes(protected)
	task.NewHandler(s.Tasks, s.log).RegisterRoutes(protected)
	activity.NewHandler(s.Activity, s.log).RegisterRoutes(protected)
	dashboard.NewHandler(s.Dashboard, s.log).RegisterRoutes(protected)

	c := cors.New(cors.Options{
		AllowedOrigins: s.cfg.AllowedOrigins(),
		AllowedMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders: []string{"X-Request-ID"},
	})
	return logger.AccessLog(s.log)(c.Handler(r))
}

func health(w http.ResponseWriter, _ *http.Request) {
	httputil.OK(w, map[string]string{"status": "ok"})
}
