// Package httputil holds the JSON envelope helpers shared by every handler.
package httputil

import (
	"encoding/json"
	"errors"
	"io"
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/KromaEnergia/crm-api/internal/access"
	"github.com/KromaEnergia/crm-api/internal/apperror"
)

const (
	DefaultLimit = 10
	MaxLimit     = 100
)

// Page is a validated page request.
type Page struct {
	Page  int
	Limit int
}

type Pagination struct {
	Page  int   `json:"page"`
	Limit int   `json:"limit"`
	Total int64 `json:"total"`
	Pages int   `json:"pages"`
}

func NewPagination(p Page, total int64) Pagination {
	return Pagination{
		Page:  p.Page,
		Limit: p.Limit,
		Total: total,
		Pages: int(math.Ceil(float64(total) / float64(p.Limit))),
	}
}

func WriteJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// OK writes {success, data}.
func OK(w http.ResponseWriter, data any) {
	WriteJSON(w, http.StatusOK, map[string]any{"success": true, "data": data})
}

// List writes {success, data, pagination}.
func List(w http.ResponseWriter, data any, p Pagination) {
	WriteJSON(w, http.StatusOK, map[string]any{"success": true, "data": data, "pagination": p})
}

// Mutation writes {success, message, data}.
func Mutation(w http.ResponseWriter, status int, message string, data any) {
	WriteJSON(w, status, map[string]any{"success": true, "message": message, "data": data})
}

// Error maps err onto the failure envelope. Internal details are logged, never returned.
func Error(w http.ResponseWriter, log logrus.FieldLogger, err error) {
	var appErr *apperror.Error
	if !errors.As(err, &appErr) {
		appErr = apperror.Internal(err)
	}
	if appErr.Kind == apperror.KindInternal && log != nil {
		log.WithError(err).Error("request failed")
	}
	body := map[string]any{"success": false, "message": appErr.Message}
	if len(appErr.Fields) > 0 {
		body["errors"] = appErr.Fields
	}
	WriteJSON(w, appErr.Status(), body)
}

// Decode reads a JSON body into target. An empty body leaves target untouched.
func Decode(r *http.Request, target any) error {
	if r.Body == nil {
		return nil
	}
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(target); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return apperror.Field("body", "must be valid JSON")
	}
	return nil
}

// ParsePage reads page and limit, rejecting out-of-range values.
func ParsePage(r *http.Request) (Page, error) {
	q := r.URL.Query()
	p := Page{Page: 1, Limit: DefaultLimit}
	var fields []apperror.FieldError

	if raw := q.Get("page"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			fields = append(fields, apperror.FieldError{Field: "page", Message: "must be an integer greater than or equal to 1"})
		} else {
			p.Page = n
		}
	}
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > MaxLimit {
			fields = append(fields, apperror.FieldError{Field: "limit", Message: "must be an integer between 1 and 100"})
		} else {
			p.Limit = n
		}
	}
	if len(fields) > 0 {
		return Page{}, apperror.Validation(fields...)
	}
	return p, nil
}

// PathID parses a positive integer route variable.
func PathID(r *http.Request, name string) (uint, error) {
	n, err := strconv.ParseUint(mux.Vars(r)[name], 10, 64)
	if err != nil || n == 0 {
		return 0, apperror.Field(name, "must be a positive integer")
	}
	return uint(n), nil
}

// QueryID parses an optional positive integer query parameter.
func QueryID(r *http.Request, name string) (*uint, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return nil, nil
	}
	n, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || n == 0 {
		return nil, apperror.Field(name, "must be a positive integer")
	}
	id := uint(n)
	return &id, nil
}

// QueryBool parses an optional boolean query parameter.
func QueryBool(r *http.Request, name string) (*bool, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return nil, nil
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		return nil, apperror.Field(name, "must be true or false")
	}
	return &b, nil
}

// Caller returns the identity the auth middleware attached to the request.
func Caller(r *http.Request) (access.Caller, error) {
	c, ok := access.CallerFrom(r.Context())
	if !ok {
		return access.Caller{}, apperror.Unauthorized("Authentication required")
	}
	return c, nil
}
