package apperror

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"
)

func TestStatus(t *testing.T) {
	cases := []struct {
		err  *Error
		want int
	}{
		{Field("email", "is required"), http.StatusBadRequest},
		{InvalidTransition("lead is closed"), http.StatusBadRequest},
		{Unauthorized("no token"), http.StatusUnauthorized},
		{Forbidden("not yours"), http.StatusForbidden},
		{NotFound("Lead not found"), http.StatusNotFound},
		{Conflict("duplicate"), http.StatusConflict},
		{Internal(errors.New("boom")), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(string(tc.err.Kind), func(t *testing.T) {
			assert.Equal(t, tc.want, tc.err.Status())
		})
	}
}

func TestFromStore(t *testing.T) {
	assert.Nil(t, FromStore(nil, "x"))

	err := FromStore(fmt.Errorf("load: %w", gorm.ErrRecordNotFound), "Task not found")
	assert.True(t, Is(err, KindNotFound))
	assert.Equal(t, "NOT_FOUND: Task not found", err.Error())

	assert.True(t, Is(FromStore(gorm.ErrDuplicatedKey, ""), KindConflict))

	internal := FromStore(errors.New("connection reset"), "")
	assert.True(t, Is(internal, KindInternal))
	assert.ErrorContains(t, internal, "connection reset")

	forbidden := Forbidden("nope")
	assert.Same(t, forbidden, FromStore(forbidden, ""))
}

func TestValidationErrorListsEveryField(t *testing.T) {
	err := Validation(
		FieldError{Field: "name", Message: "is required"},
		FieldError{Field: "email", Message: "must be a valid email"},
	)
	assert.Len(t, err.Fields, 2)
	assert.Contains(t, err.Error(), "name is required")
	assert.Contains(t, err.Error(), "email must be a valid email")
}
