package utils

import (
	"crypto/rand"
	"errors"
	"math/big"
	"strings"
	"time"
)

// GenerateTemporaryPassword returns a random 12 character alphanumeric password.
func GenerateTemporaryPassword() (string, error) {
	const chars = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	result := make([]byte, 12)
	for i := range result {
		num, err := rand.Int(rand.Reader, big.NewInt(int64(len(chars))))
		if err != nil {
			return "", err
		}
		result[i] = chars[num.Int64()]
	}
	return string(result), nil
}

// NormalizeEmail trims and lowercases an address before it is stored or compared.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Truncate cuts s to at most n runes.
func Truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

var ErrInvalidDate = errors.New("must be an RFC3339 timestamp or a YYYY-MM-DD date")

// ParseDate accepts an RFC3339 timestamp or a bare YYYY-MM-DD date (midnight UTC).
// dateOnly reports which form was given.
func ParseDate(raw string) (t time.Time, dateOnly bool, err error) {
	raw = strings.TrimSpace(raw)
	if t, err = time.Parse(time.RFC3339, raw); err == nil {
		return t.UTC(), false, nil
	}
	if t, err = time.Parse(time.DateOnly, raw); err == nil {
		return t, true, nil
	}
	return time.Time{}, false, ErrInvalidDate
}
