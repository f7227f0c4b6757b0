// Package testutil opens throwaway stores for package tests.
package testutil

import (
	"testing"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	dbconn "github.com/KromaEnergia/crm-api/internal/utils/db"
	"github.com/KromaEnergia/crm-api/internal/utils"
)

// NewDB returns an in-memory SQLite store with the given models migrated. A single
// connection keeps every statement on the same in-memory database.
func NewDB(t testing.TB, models ...any) *gorm.DB {
	t.Helper()
	utils.PasswordCost = bcrypt.MinCost

	database, err := gorm.Open(sqlite.Open(":memory:"), dbconn.Config("silent"))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := database.DB()
	if err != nil {
		t.Fatalf("sqlite handle: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if len(models) > 0 {
		if err := database.AutoMigrate(models...); err != nil {
			t.Fatalf("migrate: %v", err)
		}
	}
	return database
}

// Ptr returns a pointer to v.
func Ptr[T any](v T) *T { return &v }
