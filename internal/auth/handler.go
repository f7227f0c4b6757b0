package auth

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/KromaEnergia/crm-api/internal/apperror"
	"github.com/KromaEnergia/crm-api/internal/httputil"
	"github.com/KromaEnergia/crm-api/internal/user"
	"github.com/KromaEnergia/crm-api/internal/validation"
)

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refreshToken" validate:"required"`
}

// TokenPair is returned by login and refresh.
type TokenPair struct {
	User         *user.User `json:"user"`
	AccessToken  string     `json:"accessToken"`
	RefreshToken string     `json:"refreshToken"`
	TokenType    string     `json:"tokenType"`
	ExpiresIn    int        `json:"expiresIn"`
}

type Handler struct {
	Users      *user.Service
	Tokens     *TokenIssuer
	Sessions   SessionStore
	RefreshTTL time.Duration
	Log        logrus.FieldLogger
}

func NewHandler(users *user.Service, tokens *TokenIssuer, sessions SessionStore, refreshTTL time.Duration, log logrus.FieldLogger) *Handler {
	return &Handler{Users: users, Tokens: tokens, Sessions: sessions, RefreshTTL: refreshTTL, Log: log}
}

// RegisterPublicRoutes mounts the routes that need no access token.
func (h *Handler) RegisterPublicRoutes(r *mux.Router) {
	r.HandleFunc("/auth/login", h.Login).Methods("POST")
	r.HandleFunc("/auth/refresh", h.Refresh).Methods("POST")
	r.HandleFunc("/auth/logout", h.Logout).Methods("POST")
}

// RegisterRoutes mounts the authenticated auth routes.
func (h *Handler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/auth/me", h.Me).Methods("GET")
	r.Handle("/auth/register", RequireAdmin(h.Log)(http.HandlerFunc(h.Register))).Methods("POST")
}

// POST /auth/login
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := httputil.Decode(r, &req); err != nil {
		httputil.Error(w, h.Log, err)
		return
	}
	if err := validation.Struct(req); err != nil {
		httputil.Error(w, h.Log, err)
		return
	}

	u, err := h.Users.Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		httputil.Error(w, h.Log, err)
		return
	}
	pair, err := h.issuePair(r.Context(), u)
	if err != nil {
		httputil.Error(w, h.Log, err)
		return
	}
	httputil.Mutation(w, http.StatusOK, "Login successful", pair)
}

// POST /auth/register
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	caller, err := httputil.Caller(r)
	if err != nil {
		httputil.Error(w, h.Log, err)
		return
	}
	var req user.CreateRequest
	if err := httputil.Decode(r, &req); err != nil {
		httputil.Error(w, h.Log, err)
		return
	}
	out, err := h.Users.Create(r.Context(), caller, req)
	if err != nil {
		httputil.Error(w, h.Log, err)
		return
	}
	httputil.Mutation(w, http.StatusCreated, "User registered successfully", out)
}

// GET /auth/me
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	caller, err := httputil.Caller(r)
	if err != nil {
		httputil.Error(w, h.Log, err)
		return
	}
	u, err := h.Users.Get(r.Context(), caller, caller.ID)
	if err != nil {
		httputil.Error(w, h.Log, err)
		return
	}
	httputil.OK(w, u)
}

func (h *Handler) issuePair(ctx context.Context, u *user.User) (*TokenPair, error) {
	access, _, err := h.Tokens.Issue(u.ID, u.Role)
	if err != nil {
		return nil, apperror.Internal(err)
	}
	raw, err := genRaw()
	if err != nil {
		return nil, apperror.Internal(err)
	}
	sess := Session{UserID: u.ID, ExpiresAt: time.Now().UTC().Add(h.RefreshTTL)}
	if err := h.Sessions.Save(ctx, hashRaw(raw), sess); err != nil {
		return nil, apperror.Internal(err)
	}
	return &TokenPair{
		User:         u,
		AccessToken:  access,
		RefreshToken: raw,
		TokenType:    "Bearer",
		ExpiresIn:    int(h.Tokens.TTL().Seconds()),
	}, nil
}
