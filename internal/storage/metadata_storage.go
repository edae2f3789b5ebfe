// internal/storage/metadata_storage.go
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Hansade2005/pixel-pilot-sub013/internal/domain"
)

// --- User Operations ---

// CreateUser inserts a new user into the metadata database.
func (s *Store) CreateUser(ctx context.Context, userID, username, email, passwordHash string) (string, error) {
	sqlStatement := `INSERT INTO users (user_id, username, email, password_hash, created_at) VALUES (?, ?, ?, ?, ?)`
	_, err := s.exec(ctx, sqlStatement, userID, username, email, passwordHash, time.Now().UTC())
	if err != nil {
		if name, ok := uniqueViolation(err); ok && strings.Contains(name, "email") {
			return "", ErrEmailExists
		}
		customLog.Warnf("Storage: Failed to insert user %s: %v", email, err)
		return "", wrapErr(ctx, "user creation", err)
	}
	return userID, nil
}

// FindUserByEmail retrieves a user by their email address.
func (s *Store) FindUserByEmail(ctx context.Context, email string) (*domain.UserMetadata, error) {
	sqlStatement := `SELECT user_id, username, email, password_hash, created_at FROM users WHERE email = ? LIMIT 1`
	return s.scanUser(ctx, s.queryRow(ctx, sqlStatement, email), email)
}

// FindUserByUserId finds a user with user_id
func (s *Store) FindUserByUserId(ctx context.Context, userID string) (*domain.UserMetadata, error) {
	sqlStatement := `SELECT user_id, username, email, password_hash, created_at FROM users WHERE user_id = ? LIMIT 1`
	return s.scanUser(ctx, s.queryRow(ctx, sqlStatement, userID), userID)
}

func (s *Store) scanUser(ctx context.Context, row *sql.Row, lookup string) (*domain.UserMetadata, error) {
	var user domain.UserMetadata
	err := row.Scan(&user.UserId, &user.Username, &user.Email, &user.PasswordHash, &user.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		customLog.Warnf("Storage: Failed to find user %s: %v", lookup, err)
		return nil, wrapErr(ctx, "user lookup", err)
	}
	return &user, nil
}

// --- Database Operations ---

// CreateDatabase registers a new named database for ownerID.
func (s *Store) CreateDatabase(ctx context.Context, ownerID, dbName string) (*domain.DatabaseMetadata, error) {
	sqlStatement := `INSERT INTO databases (owner_id, db_name, created_at) VALUES (?, ?, ?) RETURNING database_id`
	db := domain.DatabaseMetadata{UserID: ownerID, DBName: dbName, CreatedAt: time.Now().UTC()}
	err := s.queryRow(ctx, sqlStatement, ownerID, dbName, db.CreatedAt).Scan(&db.DatabaseID)
	if err != nil {
		if _, ok := uniqueViolation(err); ok {
			customLog.Warnf("Storage: Constraint violation registering DB '%s' for user %s: %v", dbName, ownerID, err)
			return nil, ErrDatabaseExists
		}
		customLog.Warnf("Storage: Failed to insert database record for UserID %s, DBName '%s': %v", ownerID, dbName, err)
		return nil, wrapErr(ctx, "database registration", err)
	}
	return &db, nil
}

// ListUserDatabases retrieves the databases owned by ownerID with their table and active key counts.
func (s *Store) ListUserDatabases(ctx context.Context, ownerID string) ([]domain.DatabaseMetadata, error) {
	query := `SELECT d.database_id, d.owner_id, d.db_name, d.created_at,
		(SELECT COUNT(*) FROM user_tables t WHERE t.database_id = d.database_id),
		(SELECT COUNT(*) FROM api_keys k WHERE k.database_id = d.database_id AND k.is_active = ?)
		FROM databases d WHERE d.owner_id = ? ORDER BY d.db_name`
	rows, err := s.query(ctx, query, s.Dialect.BoolArg(true), ownerID)
	if err != nil {
		customLog.Warnf("Storage: Error listing databases for UserID %s: %v", ownerID, err)
		return nil, wrapErr(ctx, "database listing", err)
	}
	defer rows.Close()

	userDbs := make([]domain.DatabaseMetadata, 0)
	for rows.Next() {
		var d domain.DatabaseMetadata
		if err := rows.Scan(&d.DatabaseID, &d.UserID, &d.DBName, &d.CreatedAt, &d.Tables, &d.APIKeys); err != nil {
			customLog.Warnf("Storage: Error scanning database row for UserID %s: %v", ownerID, err)
			return nil, fmt.Errorf("failed processing database list: %w", err)
		}
		userDbs = append(userDbs, d)
	}
	if err = rows.Err(); err != nil {
		customLog.Warnf("Storage: Error iterating database list for UserID %s: %v", ownerID, err)
		return nil, wrapErr(ctx, "database listing", err)
	}
	return userDbs, nil
}

// FindDatabase returns the database with id databaseID owned by ownerID.
func (s *Store) FindDatabase(ctx context.Context, ownerID string, databaseID int64) (*domain.DatabaseMetadata, error) {
	query := `SELECT database_id, owner_id, db_name, created_at FROM databases WHERE database_id = ? AND owner_id = ? LIMIT 1`
	return s.scanDatabase(ctx, s.queryRow(ctx, query, databaseID, ownerID), databaseID)
}

// GetDatabase returns the database with id databaseID regardless of owner.
func (s *Store) GetDatabase(ctx context.Context, databaseID int64) (*domain.DatabaseMetadata, error) {
	query := `SELECT database_id, owner_id, db_name, created_at FROM databases WHERE database_id = ? LIMIT 1`
	return s.scanDatabase(ctx, s.queryRow(ctx, query, databaseID), databaseID)
}

func (s *Store) scanDatabase(ctx context.Context, row *sql.Row, databaseID int64) (*domain.DatabaseMetadata, error) {
	var d domain.DatabaseMetadata
	if err := row.Scan(&d.DatabaseID, &d.UserID, &d.DBName, &d.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrDatabaseNotFound
		}
		customLog.Warnf("Storage: Error finding database %d: %v", databaseID, err)
		return nil, wrapErr(ctx, "database lookup", err)
	}
	return &d, nil
}

// DeleteDatabase removes the database; tables, records and keys go with it by cascade.
// It returns ErrDatabaseNotFound if no matching entry was found.
func (s *Store) DeleteDatabase(ctx context.Context, ownerID string, databaseID int64) error {
	deleteSQL := `DELETE FROM databases WHERE database_id = ? AND owner_id = ?`
	result, err := s.exec(ctx, deleteSQL, databaseID, ownerID)
	if err != nil {
		customLog.Warnf("Storage: Error deleting database %d for UserID %s: %v", databaseID, ownerID, err)
		return wrapErr(ctx, "database deletion", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed confirming database deletion: %w", err)
	}
	if rowsAffected == 0 {
		return ErrDatabaseNotFound
	}
	return nil
}
