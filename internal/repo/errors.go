package repo

import (
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

// ErrNotFound is returned when a requested record does not exist.
// It aliases gorm.ErrRecordNotFound so errors.Is works on raw GORM errors too.
var ErrNotFound = gorm.ErrRecordNotFound

// ErrDuplicate indicates a unique constraint violation on insert.
var ErrDuplicate = errors.New("duplicate")

// pgUniqueViolation is the SQLSTATE for unique_violation.
const pgUniqueViolation = "23505"

// isDuplicate recognizes unique violations from both drivers. GORM's
// TranslateError covers most cases; glebarez/sqlite sometimes returns
// plain-text errors and pgx surfaces *pgconn.PgError when translation is off.
func isDuplicate(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
		return true
	}
	low := strings.ToLower(err.Error())
	return strings.Contains(low, "unique constraint failed") ||
		strings.Contains(low, "constraint failed: unique")
}
