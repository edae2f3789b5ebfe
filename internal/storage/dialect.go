// internal/storage/dialect.go
package storage

import (
	"fmt"
	"strconv"
	"strings"
)

// ExprKind selects how a document field is projected for comparison and indexing.
type ExprKind int

const (
	ExprText ExprKind = iota
	ExprNumber
	ExprBool
	ExprJSON
)

// IndexSpec is one planned secondary index on the records table.
type IndexSpec struct {
	Name    string
	TableID int64
	Field   string
	Kind    string // "gin" or "btree"
	Expr    ExprKind
	Unique  bool
}

// Dialect hides the SQL differences between the supported engines.
type Dialect interface {
	Name() string
	// Rebind rewrites '?' placeholders into the engine's form.
	Rebind(query string) string
	Migrations() []string
	// FieldExpr projects a document field. Names must be pre-validated identifiers.
	FieldExpr(field string, kind ExprKind) string
	// DocumentText is the whole document as text.
	DocumentText() string
	// TextCast renders a column as text for pattern matching.
	TextCast(expr string) string
	// ILike renders a case-insensitive LIKE predicate with one placeholder.
	ILike(expr string) string
	BoolArg(b bool) any
	IndexDDL(ix IndexSpec) string
	DropIndexDDL(name string) string
	// ListIndexesSQL returns rows of (name, definition, scans, size_bytes) for the records table.
	ListIndexesSQL() string
	AnalyzeSQL() string
}

// --- SQLite ---

type sqliteDialect struct{}

// SQLite returns the dialect for mattn/go-sqlite3 with the JSON1 functions.
func SQLite() Dialect { return sqliteDialect{} }

func (sqliteDialect) Name() string { return "sqlite" }

func (sqliteDialect) Rebind(query string) string { return query }

func (sqliteDialect) FieldExpr(field string, kind ExprKind) string {
	base := fmt.Sprintf("json_extract(data_json, '$.%s')", field)
	if kind == ExprNumber {
		return "CAST(" + base + " AS REAL)"
	}
	return base
}

func (sqliteDialect) DocumentText() string { return "data_json" }

func (sqliteDialect) TextCast(expr string) string { return "CAST(" + expr + " AS TEXT)" }

// case_sensitive_like is enabled on the connection, so LIKE matches Postgres.
// fold is registered by the sqlite driver and folds non-ASCII letters too.
func (sqliteDialect) ILike(expr string) string {
	return "fold(" + expr + `) LIKE fold(?) ESCAPE '\'`
}

func (sqliteDialect) BoolArg(b bool) any {
	if b {
		return 1
	}
	return 0
}

func (d sqliteDialect) IndexDDL(ix IndexSpec) string {
	unique := ""
	if ix.Unique {
		unique = "UNIQUE "
	}
	return fmt.Sprintf("CREATE %sINDEX IF NOT EXISTS %s ON records (%s) WHERE table_id = %d",
		unique, ix.Name, d.FieldExpr(ix.Field, ix.Expr), ix.TableID)
}

func (sqliteDialect) DropIndexDDL(name string) string { return "DROP INDEX IF EXISTS " + name }

func (sqliteDialect) ListIndexesSQL() string {
	return `SELECT name, COALESCE(sql, ''), 0, 0, 0, 0 FROM sqlite_master WHERE type = 'index' AND tbl_name = 'records'`
}

func (sqliteDialect) AnalyzeSQL() string { return "ANALYZE records" }

func (sqliteDialect) Migrations() []string {
	return []string{
		`CREATE TABLE IF NOT EXISTS users (
			user_id TEXT PRIMARY KEY NOT NULL,
			username TEXT NOT NULL,
			email TEXT UNIQUE NOT NULL,
			password_hash TEXT NOT NULL,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		);`,
		`CREATE TABLE IF NOT EXISTS databases (
			database_id INTEGER PRIMARY KEY AUTOINCREMENT,
			owner_id TEXT NOT NULL,
			db_name TEXT NOT NULL,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			UNIQUE (owner_id, db_name),
			FOREIGN KEY (owner_id) REFERENCES users(user_id) ON DELETE CASCADE
		);`,
		`CREATE TABLE IF NOT EXISTS user_tables (
			table_id INTEGER PRIMARY KEY AUTOINCREMENT,
			database_id INTEGER NOT NULL,
			name TEXT NOT NULL,
			schema_json TEXT NOT NULL,
			version INTEGER NOT NULL DEFAULT 1,
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL,
			UNIQUE (database_id, name),
			FOREIGN KEY (database_id) REFERENCES databases(database_id) ON DELETE CASCADE
		);`,
		`CREATE TABLE IF NOT EXISTS records (
			id TEXT PRIMARY KEY NOT NULL,
			table_id INTEGER NOT NULL,
			data_json TEXT NOT NULL,
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL,
			FOREIGN KEY (table_id) REFERENCES user_tables(table_id) ON DELETE CASCADE
		);`,
		`CREATE INDEX IF NOT EXISTS records_table_created ON records (table_id, created_at);`,
		// nolint:gosec // G101 false positive - this is table schema, not hardcoded credentials
		`CREATE TABLE IF NOT EXISTS api_keys (
			api_key_id TEXT PRIMARY KEY NOT NULL,
			database_id INTEGER NOT NULL,
			name TEXT NOT NULL,
			key_prefix TEXT NOT NULL,
			key_hash TEXT UNIQUE NOT NULL,
			rate_limit INTEGER NOT NULL,
			rate_window TEXT NOT NULL DEFAULT 'minute',
			last_used_at TIMESTAMP NULL,
			is_active BOOLEAN NOT NULL DEFAULT 1,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			FOREIGN KEY (database_id) REFERENCES databases(database_id) ON DELETE CASCADE
		);`,
		`CREATE TABLE IF NOT EXISTS usage_logs (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			api_key_id TEXT NOT NULL,
			endpoint TEXT NOT NULL,
			method TEXT NOT NULL,
			status INTEGER NOT NULL,
			duration_ms INTEGER NOT NULL,
			created_at TIMESTAMP NOT NULL,
			FOREIGN KEY (api_key_id) REFERENCES api_keys(api_key_id) ON DELETE CASCADE
		);`,
		`CREATE INDEX IF NOT EXISTS usage_logs_key_created ON usage_logs (api_key_id, created_at);`,
	}
}

// --- PostgreSQL ---

type postgresDialect struct{}

// Postgres returns the dialect for jackc/pgx over database/sql (jsonb, GIN, pg_trgm).
func Postgres() Dialect { return postgresDialect{} }

func (postgresDialect) Name() string { return "postgres" }

func (postgresDialect) Rebind(query string) string {
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	inQuote := false
	for _, r := range query {
		switch {
		case r == '\'':
			inQuote = !inQuote
			b.WriteRune(r)
		case r == '?' && !inQuote:
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

func (postgresDialect) FieldExpr(field string, kind ExprKind) string {
	switch kind {
	case ExprNumber:
		return fmt.Sprintf("((data_json->>'%s')::numeric)", field)
	case ExprBool:
		return fmt.Sprintf("((data_json->>'%s')::boolean)", field)
	case ExprJSON:
		return fmt.Sprintf("(data_json->'%s')", field)
	}
	return fmt.Sprintf("(data_json->>'%s')", field)
}

func (postgresDialect) DocumentText() string { return "data_json::text" }

func (postgresDialect) TextCast(expr string) string { return expr + "::text" }

func (postgresDialect) ILike(expr string) string { return expr + ` ILIKE ? ESCAPE '\'` }

func (postgresDialect) BoolArg(b bool) any { return b }

// IndexDDL emits GIN indexes for text (trigram) and json (jsonb_ops) fields and
// btree expression indexes otherwise. GIN cannot enforce uniqueness, so a unique
// index is always a btree on the text projection.
func (d postgresDialect) IndexDDL(ix IndexSpec) string {
	where := fmt.Sprintf("WHERE table_id = %d", ix.TableID)
	if ix.Unique {
		expr := ix.Expr
		if expr == ExprJSON {
			expr = ExprText
		}
		return fmt.Sprintf("CREATE UNIQUE INDEX IF NOT EXISTS %s ON records (%s) %s",
			ix.Name, d.FieldExpr(ix.Field, expr), where)
	}
	if ix.Kind == "gin" {
		if ix.Expr == ExprJSON {
			return fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s ON records USING gin (%s) %s",
				ix.Name, d.FieldExpr(ix.Field, ExprJSON), where)
		}
		return fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s ON records USING gin (%s gin_trgm_ops) %s",
			ix.Name, d.FieldExpr(ix.Field, ExprText), where)
	}
	return fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s ON records (%s) %s",
		ix.Name, d.FieldExpr(ix.Field, ix.Expr), where)
}

func (postgresDialect) DropIndexDDL(name string) string { return "DROP INDEX IF EXISTS " + name }

func (postgresDialect) ListIndexesSQL() string {
	return `SELECT s.indexrelname, pg_get_indexdef(s.indexrelid), COALESCE(s.idx_scan, 0), COALESCE(s.idx_tup_read, 0), COALESCE(s.idx_tup_fetch, 0), pg_relation_size(s.indexrelid)
		FROM pg_stat_user_indexes s WHERE s.relname = 'records'`
}

func (postgresDialect) AnalyzeSQL() string { return "ANALYZE records" }

func (postgresDialect) Migrations() []string {
	return []string{
		`CREATE EXTENSION IF NOT EXISTS pg_trgm;`,
		`CREATE TABLE IF NOT EXISTS users (
			user_id TEXT PRIMARY KEY NOT NULL,
			username TEXT NOT NULL,
			email TEXT UNIQUE NOT NULL,
			password_hash TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);`,
		`CREATE TABLE IF NOT EXISTS databases (
			database_id BIGSERIAL PRIMARY KEY,
			owner_id TEXT NOT NULL REFERENCES users(user_id) ON DELETE CASCADE,
			db_name TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			UNIQUE (owner_id, db_name)
		);`,
		`CREATE TABLE IF NOT EXISTS user_tables (
			table_id BIGSERIAL PRIMARY KEY,
			database_id BIGINT NOT NULL REFERENCES databases(database_id) ON DELETE CASCADE,
			name TEXT NOT NULL,
			schema_json JSONB NOT NULL,
			version BIGINT NOT NULL DEFAULT 1,
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL,
			UNIQUE (database_id, name)
		);`,
		`CREATE TABLE IF NOT EXISTS records (
			id TEXT PRIMARY KEY NOT NULL,
			table_id BIGINT NOT NULL REFERENCES user_tables(table_id) ON DELETE CASCADE,
			data_json JSONB NOT NULL,
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS records_table_created ON records (table_id, created_at);`,
		// nolint:gosec // G101 false positive - this is table schema, not hardcoded credentials
		`CREATE TABLE IF NOT EXISTS api_keys (
			api_key_id TEXT PRIMARY KEY NOT NULL,
			database_id BIGINT NOT NULL REFERENCES databases(database_id) ON DELETE CASCADE,
			name TEXT NOT NULL,
			key_prefix TEXT NOT NULL,
			key_hash TEXT UNIQUE NOT NULL,
			rate_limit INTEGER NOT NULL,
			rate_window TEXT NOT NULL DEFAULT 'minute',
			last_used_at TIMESTAMPTZ NULL,
			is_active BOOLEAN NOT NULL DEFAULT TRUE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);`,
		`CREATE TABLE IF NOT EXISTS usage_logs (
			id BIGSERIAL PRIMARY KEY,
			api_key_id TEXT NOT NULL REFERENCES api_keys(api_key_id) ON DELETE CASCADE,
			endpoint TEXT NOT NULL,
			method TEXT NOT NULL,
			status INTEGER NOT NULL,
			duration_ms BIGINT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS usage_logs_key_created ON usage_logs (api_key_id, created_at);`,
	}
}
