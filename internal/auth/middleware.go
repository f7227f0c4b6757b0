package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/KromaEnergia/crm-api/internal/access"
	"github.com/KromaEnergia/crm-api/internal/apperror"
	"github.com/KromaEnergia/crm-api/internal/httputil"
	"github.com/KromaEnergia/crm-api/internal/user"
)

// UserLoader resolves a token subject to an active account.
type UserLoader interface {
	Active(ctx context.Context, id uint) (*user.User, error)
}

// Middleware authenticates the bearer token and attaches the caller to the request.
// The role comes from the stored user, not from the token.
func Middleware(tokens *TokenIssuer, users UserLoader, log logrus.FieldLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodOptions {
				next.ServeHTTP(w, r)
				return
			}
			raw, ok := bearer(r)
			if !ok {
				httputil.Error(w, log, apperror.Unauthorized("Access token is required"))
				return
			}
			claims, err := tokens.Parse(raw)
			if err != nil {
				msg := "Invalid access token"
				if errors.Is(err, ErrExpiredToken) {
					msg = "Access token has expired"
				}
				httputil.Error(w, log, apperror.Unauthorized(msg))
				return
			}
			u, err := users.Active(r.Context(), claims.UserID)
			if err != nil {
				httputil.Error(w, log, err)
				return
			}
			ctx := access.WithCaller(r.Context(), u.Caller())
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireAdmin rejects callers without the admin role.
func RequireAdmin(log logrus.FieldLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			c, ok := access.CallerFrom(r.Context())
			if !ok {
				httputil.Error(w, log, apperror.Unauthorized("Authentication required"))
				return
			}
			if !c.IsAdmin() {
				httputil.Error(w, log, apperror.Forbidden("Admin access required"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func bearer(r *http.Request) (string, bool) {
	h := r.Header.Get("Authorization")
	if len(h) < 7 || !strings.EqualFold(h[:7], "Bearer ") {
		return "", false
	}
	raw := strings.TrimSpace(h[7:])
	return raw, raw != ""
}
