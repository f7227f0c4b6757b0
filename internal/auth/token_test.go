package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KromaEnergia/crm-api/internal/access"
)

func newIssuer() *TokenIssuer {
	return NewTokenIssuer("test-secret", "crm-api", "crm-dashboard", 15*time.Minute)
}

func TestIssueAndParse(t *testing.T) {
	iss := newIssuer()
	raw, exp, err := iss.Issue(7, access.RoleAgent)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(15*time.Minute), exp, 5*time.Second)

	c, err := iss.Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, uint(7), c.UserID)
	assert.Equal(t, access.RoleAgent, c.Role)
	assert.Equal(t, "7", c.Subject)
	assert.NotEmpty(t, c.ID)

	other, _, err := iss.Issue(7, access.RoleAgent)
	require.NoError(t, err)
	assert.NotEqual(t, raw, other)
}

func TestParseRejects(t *testing.T) {
	iss := newIssuer()
	raw, _, err := iss.Issue(1, access.RoleAdmin)
	require.NoError(t, err)

	t.Run("wrong secret", func(t *testing.T) {
		_, err := NewTokenIssuer("other", "crm-api", "crm-dashboard", time.Minute).Parse(raw)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})
	t.Run("wrong audience", func(t *testing.T) {
		_, err := NewTokenIssuer("test-secret", "crm-api", "mobile", time.Minute).Parse(raw)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})
	t.Run("wrong issuer", func(t *testing.T) {
		_, err := NewTokenIssuer("test-secret", "someone-else", "crm-dashboard", time.Minute).Parse(raw)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})
	t.Run("garbage", func(t *testing.T) {
		_, err := iss.Parse("not.a.token")
		assert.ErrorIs(t, err, ErrInvalidToken)
	})
	t.Run("expired", func(t *testing.T) {
		past := newIssuer()
		past.now = func() time.Time { return time.Now().Add(-time.Hour) }
		old, _, err := past.Issue(1, access.RoleAdmin)
		require.NoError(t, err)
		_, err = iss.Parse(old)
		assert.ErrorIs(t, err, ErrExpiredToken)
	})
	t.Run("none algorithm", func(t *testing.T) {
		claims := &Claims{UserID: 1, Role: access.RoleAdmin, RegisteredClaims: jwt.RegisteredClaims{
			Issuer: "crm-api", Audience: []string{"crm-dashboard"}, ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		}}
		unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
		require.NoError(t, err)
		_, err = iss.Parse(unsigned)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})
}
