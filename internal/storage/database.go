// internal/storage/database.go
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // Driver registration: pgx
	"github.com/mattn/go-sqlite3"

	"github.com/Hansade2005/pixel-pilot-sub013/config"
	"github.com/Hansade2005/pixel-pilot-sub013/internal/logger"
)

var (
	customLog = logger.NewLogger()
)

// sqliteDriver is go-sqlite3 with fold() registered on every connection.
// SQLite's own LOWER only folds ASCII.
const sqliteDriver = "sqlite3_fold"

func init() {
	sql.Register(sqliteDriver, &sqlite3.SQLiteDriver{
		ConnectHook: func(conn *sqlite3.SQLiteConn) error {
			return conn.RegisterFunc("fold", foldCase, true)
		},
	})
}

// foldCase lower-cases text with Go's Unicode rules, the same folding the
// in-memory search ranking applies. Other values pass through unchanged.
func foldCase(v any) any {
	switch t := v.(type) {
	case string:
		return strings.ToLower(t)
	case []byte:
		// go-sqlite3 hands SQL NULL to any parameters as a nil []byte.
		if t == nil {
			return nil
		}
		return strings.ToLower(string(t))
	default:
		return v
	}
}

// Store is the metadata and document store shared by every service.
type Store struct {
	DB      *sql.DB
	Dialect Dialect
}

// NewStore wraps an open connection pool.
func NewStore(db *sql.DB, dialect Dialect) *Store {
	return &Store{DB: db, Dialect: dialect}
}

// Connect opens the configured engine and ensures the required tables exist.
func Connect(cfg *config.Config) (*Store, error) {
	switch cfg.DatabaseDriver {
	case config.DriverPostgres:
		return ConnectPostgres(cfg.DatabaseURL)
	default:
		return ConnectSQLite(filepath.Join(cfg.MetadataDbDir, cfg.MetadataDbFile))
	}
}

// ConnectSQLite opens (creating if needed) the SQLite file at dbPath.
func ConnectSQLite(dbPath string) (*Store, error) {
	customLog.Printf("Storage: Initializing sqlite database: %s", dbPath)

	// Ensure the data directory exists
	if dir := filepath.Dir(dbPath); dir != "" {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			customLog.Warnf("Storage: Error creating data directory '%s': %v", dir, err)
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
	}

	// Foreign keys for cascades, WAL and a busy timeout for concurrent writers,
	// case-sensitive LIKE so LIKE and ILIKE behave as they do on Postgres.
	dsn := dbPath + "?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000&_case_sensitive_like=on"
	db, err := sql.Open(sqliteDriver, dsn)
	if err != nil {
		customLog.Warnf("Storage: Failed to open sqlite db '%s': %v", dbPath, err)
		return nil, fmt.Errorf("failed to open sqlite db: %w", err)
	}
	return initStore(db, SQLite())
}

// ConnectPostgres opens a pgx-backed pool for url.
func ConnectPostgres(url string) (*Store, error) {
	customLog.Println("Storage: Initializing postgres database")
	db, err := sql.Open("pgx", url)
	if err != nil {
		customLog.Warnf("Storage: Failed to open postgres db: %v", err)
		return nil, fmt.Errorf("failed to open postgres db: %w", err)
	}
	db.SetConnMaxLifetime(30 * time.Minute)
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	return initStore(db, Postgres())
}

func initStore(db *sql.DB, dialect Dialect) (*Store, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Verify connection is working
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		customLog.Warnf("Storage: Failed to ping %s db: %v", dialect.Name(), err)
		return nil, fmt.Errorf("failed to connect to %s db: %w", dialect.Name(), err)
	}
	customLog.Printf("Storage: %s database connection successful.", dialect.Name())

	s := NewStore(db, dialect)
	if err := s.RunMigrations(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// RunMigrations applies the dialect's idempotent DDL in order.
func (s *Store) RunMigrations(ctx context.Context) error {
	migrations := s.Dialect.Migrations()
	for i, migration := range migrations {
		if _, err := s.DB.ExecContext(ctx, migration); err != nil {
			customLog.Warnf("Storage: Migration %d/%d failed: %v", i+1, len(migrations), err)
			return fmt.Errorf("migration %d failed: %w", i+1, err)
		}
	}
	customLog.Printf("Storage: %d migrations applied.", len(migrations))
	return nil
}

// Close releases the connection pool.
func (s *Store) Close() error {
	return s.DB.Close()
}

func (s *Store) exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return s.DB.ExecContext(ctx, s.Dialect.Rebind(query), args...)
}

func (s *Store) query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return s.DB.QueryContext(ctx, s.Dialect.Rebind(query), args...)
}

func (s *Store) queryRow(ctx context.Context, query string, args ...any) *sql.Row {
	return s.DB.QueryRowContext(ctx, s.Dialect.Rebind(query), args...)
}
