package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"net/http"

	"github.com/KromaEnergia/crm-api/internal/apperror"
	"github.com/KromaEnergia/crm-api/internal/httputil"
	"github.com/KromaEnergia/crm-api/internal/validation"
)

func genRaw() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

func hashRaw(raw string) string {
	h := sha256.Sum256([]byte(raw))
	return base64.RawURLEncoding.EncodeToString(h[:])
}

// POST /auth/refresh
// The presented token is consumed; a new pair is issued for the still-active user.
func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req RefreshRequest
	if err := httputil.Decode(r, &req); err != nil {
		httputil.Error(w, h.Log, err)
		return
	}
	if err := validation.Struct(req); err != nil {
		httputil.Error(w, h.Log, err)
		return
	}

	sess, err := h.Sessions.Consume(r.Context(), hashRaw(req.RefreshToken))
	if err != nil {
		if errors.Is(err, ErrSessionNotFound) {
			httputil.Error(w, h.Log, apperror.Unauthorized("Invalid or expired refresh token"))
			return
		}
		httputil.Error(w, h.Log, err)
		return
	}
	u, err := h.Users.Active(r.Context(), sess.UserID)
	if err != nil {
		httputil.Error(w, h.Log, err)
		return
	}
	pair, err := h.issuePair(r.Context(), u)
	if err != nil {
		httputil.Error(w, h.Log, err)
		return
	}
	httputil.Mutation(w, http.StatusOK, "Token refreshed", pair)
}

// POST /auth/logout
// Always succeeds; an unknown token is already as good as revoked.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	var req RefreshRequest
	if err := httputil.Decode(r, &req); err != nil {
		httputil.Error(w, h.Log, err)
		return
	}
	if req.RefreshToken != "" {
		if err := h.Sessions.Revoke(r.Context(), hashRaw(req.RefreshToken)); err != nil {
			h.Log.WithError(err).Warn("refresh token revoke failed")
		}
	}
	httputil.Mutation(w, http.StatusOK, "Logged out", nil)
}
