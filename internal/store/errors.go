package store

import (
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rotisserie/eris"

	"github.com/sells-group/idea-scout/internal/resilience"
)

var (
	// ErrNotFound is returned when a looked-up row does not exist.
	ErrNotFound = eris.New("store: not found")

	// ErrDuplicateKey is returned when an insert collides with an existing key.
	ErrDuplicateKey = eris.New("store: duplicate key")
)

// IsRetryable reports whether a store error is worth retrying after a
// reconnect. PostgreSQL errors are classified by SQLSTATE: connection,
// serialization, deadlock, shutdown and too-many-connections failures are
// retryable while integrity violations never are. Anything else falls back
// to resilience.IsTransient.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrNotFound) || errors.Is(err, ErrDuplicateKey) {
		return false
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		code := pgErr.Code
		switch {
		case strings.HasPrefix(code, "08"):
			return true
		case code == "40001", code == "40P01", code == "53300":
			return true
		case strings.HasPrefix(code, "57P0"):
			return true
		case strings.HasPrefix(code, "23"):
			return false
		}
		return false
	}
	return resilience.IsTransient(err)
}

// isUniqueViolation reports whether err is a PostgreSQL or SQLite unique
// constraint failure.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
