package utils

import (
	"strings"

	"gorm.io/gorm"
)

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// EscapeLike escapes LIKE wildcards so term matches literally under ESCAPE '\'.
func EscapeLike(term string) string {
	return likeEscaper.Replace(term)
}

// ContainsPattern builds a lower-cased LIKE pattern matching term anywhere.
func ContainsPattern(term string) string {
	return "%" + EscapeLike(strings.ToLower(term)) + "%"
}

// Search matches term case-insensitively against any of the columns. Blank terms match all rows.
func Search(term string, columns ...string) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		term = strings.TrimSpace(term)
		if term == "" || len(columns) == 0 {
			return db
		}
		pattern := ContainsPattern(term)
		conds := make([]string, len(columns))
		args := make([]any, len(columns))
		for i, col := range columns {
			conds[i] = "LOWER(" + col + `) LIKE ? ESCAPE '\'`
			args[i] = pattern
		}
		return db.Where("("+strings.Join(conds, " OR ")+")", args...)
	}
}

// Paginate applies offset/limit for a 1-based page.
func Paginate(page, limit int) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return db.Offset((page - 1) * limit).Limit(limit)
	}
}
