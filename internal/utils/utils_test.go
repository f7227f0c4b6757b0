package utils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func TestHashAndCheckPassword(t *testing.T) {
	PasswordCost = bcrypt.MinCost
	hash, err := HashPassword("s3cret!")
	require.NoError(t, err)
	assert.NotEqual(t, "s3cret!", hash)
	assert.True(t, CheckPassword(hash, "s3cret!"))
	assert.False(t, CheckPassword(hash, "wrong"))
}

func TestGenerateTemporaryPassword(t *testing.T) {
	a, err := GenerateTemporaryPassword()
	require.NoError(t, err)
	b, err := GenerateTemporaryPassword()
	require.NoError(t, err)
	assert.Len(t, a, 12)
	assert.NotEqual(t, a, b)
}

func TestNormalizeEmailAndTruncate(t *testing.T) {
	assert.Equal(t, "jane@x.com", NormalizeEmail("  Jane@X.com "))
	assert.Equal(t, "héll", Truncate("héllo", 4))
	assert.Equal(t, "hi", Truncate("hi", 4))
}

func TestContainsPatternEscapes(t *testing.T) {
	assert.Equal(t, `%50\% off\_now%`, ContainsPattern("50% OFF_now"))
}

type row struct {
	ID   uint
	Name string
	Mail string
}

func TestSearchAndPaginate(t *testing.T) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&row{}))
	require.NoError(t, db.Create(&[]row{
		{Name: "Jane Doe", Mail: "jane@x.com"},
		{Name: "John Roe", Mail: "john@y.com"},
		{Name: "100% Real", Mail: "real@z.com"},
	}).Error)

	var got []row
	require.NoError(t, db.Scopes(Search("JANE", "name", "mail")).Find(&got).Error)
	require.Len(t, got, 1)
	assert.Equal(t, "Jane Doe", got[0].Name)

	got = nil
	require.NoError(t, db.Scopes(Search("y.com", "name", "mail")).Find(&got).Error)
	require.Len(t, got, 1)
	assert.Equal(t, "John Roe", got[0].Name)

	got = nil
	require.NoError(t, db.Scopes(Search("0%", "name")).Find(&got).Error)
	require.Len(t, got, 1)
	assert.Equal(t, "100% Real", got[0].Name)

	got = nil
	require.NoError(t, db.Scopes(Search("  ", "name")).Find(&got).Error)
	assert.Len(t, got, 3)

	got = nil
	require.NoError(t, db.Order("id").Scopes(Paginate(2, 2)).Find(&got).Error)
	require.Len(t, got, 1)
	assert.Equal(t, "100% Real", got[0].Name)
}

func TestParseDate(t *testing.T) {
	got, dateOnly, err := ParseDate("2026-03-01")
	require.NoError(t, err)
	assert.True(t, dateOnly)
	assert.Equal(t, time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC), got)

	got, dateOnly, err = ParseDate("2026-03-01T10:00:00+02:00")
	require.NoError(t, err)
	assert.False(t, dateOnly)
	assert.Equal(t, time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC), got)
	assert.Equal(t, time.UTC, got.Location())

	_, _, err = ParseDate("01/03/2026")
	assert.ErrorIs(t, err, ErrInvalidDate)
}
