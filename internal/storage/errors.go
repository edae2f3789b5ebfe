// internal/storage/errors.go
package storage

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/mattn/go-sqlite3"

	"github.com/Hansade2005/pixel-pilot-sub013/internal/core"
)

// Specific errors for storage operations
var (
	ErrUserNotFound     = errors.New("user not found")
	ErrEmailExists      = errors.New("email already exists")
	ErrDatabaseExists   = errors.New("database name already exists for this user")
	ErrDatabaseNotFound = errors.New("database not found or not registered for this user")
	ErrTableNotFound    = errors.New("table not found")
	ErrTableExists      = errors.New("table name already exists in this database")
	ErrRecordNotFound   = errors.New("record not found")
	ErrAPIKeyNotFound   = errors.New("api key not found")
	ErrVersionConflict  = errors.New("table schema was modified concurrently")
)

// pgUniqueViolation is the SQLSTATE for unique_violation.
const pgUniqueViolation = "23505"

var sqliteIndexName = regexp.MustCompile(`index '([^']+)'`)

// uniqueViolation reports whether err is a unique constraint failure and, when
// the engine says so, which index or column tripped it.
func uniqueViolation(err error) (string, bool) {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) && sqliteErr.Code == sqlite3.ErrConstraint &&
		(sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique || sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey) {
		msg := sqliteErr.Error()
		if m := sqliteIndexName.FindStringSubmatch(msg); m != nil {
			return m[1], true
		}
		if i := strings.Index(msg, "failed: "); i >= 0 {
			return msg[i+len("failed: "):], true
		}
		return msg, true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
		return pgErr.ConstraintName, true
	}
	return "", false
}

// wrapErr turns a driver error into the error callers see. Deadline expiry
// becomes a TimeoutError, and everything else is wrapped with op for context.
func wrapErr(ctx context.Context, op string, err error) error {
	if err == nil {
		return nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil || errors.Is(err, context.DeadlineExceeded) {
		if ctxErr == nil {
			ctxErr = err
		}
		return core.TimeoutError(op, ctxErr)
	}
	return fmt.Errorf("database error during %s: %w", op, err)
}

// recordConflict maps a unique violation on a record write to a UNIQUE_VIOLATION conflict.
func recordConflict(err error, schema core.Schema) error {
	name, ok := uniqueViolation(err)
	if !ok {
		return nil
	}
	field := ""
	for _, col := range schema.Columns {
		if col.IsUnique() && strings.Contains(name, "_"+SanitizeName(col.Name)+"_") {
			field = col.Name
			break
		}
	}
	msg := "A record with the same unique value already exists"
	if field != "" {
		msg = fmt.Sprintf("A record with the same value for unique field '%s' already exists", field)
	}
	return core.ConflictError(core.CodeUniqueViolation, msg, map[string]any{"field": field, "index": name})
}

// SanitizeName lower-cases s and replaces anything outside [a-z0-9_] with '_'.
func SanitizeName(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range strings.ToLower(s) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '_' {
			b.WriteRune(r)
		} else {
			b.WriteByte('_')
		}
	}
	return b.String()
}
