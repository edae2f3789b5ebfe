// internal/storage/table_storage.go
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Hansade2005/pixel-pilot-sub013/internal/core"
	"github.com/Hansade2005/pixel-pilot-sub013/internal/domain"
)

const tableColumns = `table_id, database_id, name, schema_json, version, created_at, updated_at`

// CreateTable inserts a table definition at version 1.
func (s *Store) CreateTable(ctx context.Context, databaseID int64, name string, schema core.Schema) (*domain.TableMetadata, error) {
	schemaJSON, err := json.Marshal(schema)
	if err != nil {
		return nil, fmt.Errorf("failed to encode schema: %w", err)
	}
	now := time.Now().UTC()
	t := domain.TableMetadata{DatabaseID: databaseID, Name: name, Schema: schema, Version: 1, CreatedAt: now, UpdatedAt: now}

	insertSQL := `INSERT INTO user_tables (database_id, name, schema_json, version, created_at, updated_at)
		VALUES (?, ?, ?, 1, ?, ?) RETURNING table_id`
	err = s.queryRow(ctx, insertSQL, databaseID, name, string(schemaJSON), now, now).Scan(&t.TableID)
	if err != nil {
		if _, ok := uniqueViolation(err); ok {
			return nil, ErrTableExists
		}
		customLog.Warnf("Storage: Failed to create table '%s' in database %d: %v", name, databaseID, err)
		return nil, wrapErr(ctx, "table creation", err)
	}
	customLog.Printf("Storage: Created table '%s' (id %d) in database %d", name, t.TableID, databaseID)
	return &t, nil
}

// GetTable returns the table with id tableID inside databaseID.
func (s *Store) GetTable(ctx context.Context, databaseID, tableID int64) (*domain.TableMetadata, error) {
	query := `SELECT ` + tableColumns + ` FROM user_tables WHERE database_id = ? AND table_id = ?`
	return s.scanTable(ctx, s.queryRow(ctx, query, databaseID, tableID))
}

// GetTableByName returns the table called name inside databaseID.
func (s *Store) GetTableByName(ctx context.Context, databaseID int64, name string) (*domain.TableMetadata, error) {
	query := `SELECT ` + tableColumns + ` FROM user_tables WHERE database_id = ? AND name = ?`
	return s.scanTable(ctx, s.queryRow(ctx, query, databaseID, name))
}

// ListTables returns every table of databaseID ordered by name.
func (s *Store) ListTables(ctx context.Context, databaseID int64) ([]domain.TableMetadata, error) {
	query := `SELECT ` + tableColumns + ` FROM user_tables WHERE database_id = ? ORDER BY name`
	rows, err := s.query(ctx, query, databaseID)
	if err != nil {
		customLog.Warnf("Storage: Error listing tables for database %d: %v", databaseID, err)
		return nil, wrapErr(ctx, "table listing", err)
	}
	defer rows.Close()

	tables := make([]domain.TableMetadata, 0)
	for rows.Next() {
		t, err := scanTableRow(rows)
		if err != nil {
			customLog.Warnf("Storage: Error scanning table row: %v", err)
			return nil, fmt.Errorf("failed processing table list: %w", err)
		}
		tables = append(tables, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapErr(ctx, "table listing", err)
	}
	return tables, nil
}

// ExistingTableNames returns the subset of names already used in databaseID.
func (s *Store) ExistingTableNames(ctx context.Context, databaseID int64, names []string) ([]string, error) {
	if len(names) == 0 {
		return nil, nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(names)), ", ")
	args := make([]any, 0, len(names)+1)
	args = append(args, databaseID)
	for _, n := range names {
		args = append(args, n)
	}
	// nolint:gosec // only placeholders are interpolated
	query := fmt.Sprintf(`SELECT name FROM user_tables WHERE database_id = ? AND name IN (%s) ORDER BY name`, placeholders)
	rows, err := s.query(ctx, query, args...)
	if err != nil {
		return nil, wrapErr(ctx, "table name lookup", err)
	}
	defer rows.Close()

	var existing []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed processing table names: %w", err)
		}
		existing = append(existing, name)
	}
	return existing, wrapErr(ctx, "table name lookup", rows.Err())
}

// UpdateTableSchema replaces the schema if the stored version still equals
// expectedVersion and returns the new version. A stale version yields
// ErrVersionConflict; a missing table ErrTableNotFound.
func (s *Store) UpdateTableSchema(ctx context.Context, tableID int64, schema core.Schema, expectedVersion int64) (int64, error) {
	schemaJSON, err := json.Marshal(schema)
	if err != nil {
		return 0, fmt.Errorf("failed to encode schema: %w", err)
	}
	updateSQL := `UPDATE user_tables SET schema_json = ?, version = version + 1, updated_at = ?
		WHERE table_id = ? AND version = ?`
	result, err := s.exec(ctx, updateSQL, string(schemaJSON), time.Now().UTC(), tableID, expectedVersion)
	if err != nil {
		customLog.Warnf("Storage: Failed schema update for table %d: %v", tableID, err)
		return 0, wrapErr(ctx, "schema update", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed confirming schema update: %w", err)
	}
	if n == 0 {
		if _, err := s.TableVersion(ctx, tableID); err != nil {
			return 0, err
		}
		return 0, ErrVersionConflict
	}
	return expectedVersion + 1, nil
}

// TableVersion returns the current schema version of tableID.
func (s *Store) TableVersion(ctx context.Context, tableID int64) (int64, error) {
	var version int64
	err := s.queryRow(ctx, `SELECT version FROM user_tables WHERE table_id = ?`, tableID).Scan(&version)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, ErrTableNotFound
		}
		return 0, wrapErr(ctx, "table version lookup", err)
	}
	return version, nil
}

// DeleteTable removes the table and all of its records in one transaction.
func (s *Store) DeleteTable(ctx context.Context, databaseID, tableID int64) error {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return wrapErr(ctx, "table deletion", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, s.Dialect.Rebind(`DELETE FROM records WHERE table_id = ?`), tableID); err != nil {
		customLog.Warnf("Storage: Failed deleting records of table %d: %v", tableID, err)
		return wrapErr(ctx, "table deletion", err)
	}
	result, err := tx.ExecContext(ctx, s.Dialect.Rebind(`DELETE FROM user_tables WHERE database_id = ? AND table_id = ?`), databaseID, tableID)
	if err != nil {
		customLog.Warnf("Storage: Failed deleting table %d: %v", tableID, err)
		return wrapErr(ctx, "table deletion", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed confirming table deletion: %w", err)
	}
	if n == 0 {
		return ErrTableNotFound
	}
	return wrapErr(ctx, "table deletion", tx.Commit())
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (s *Store) scanTable(ctx context.Context, row *sql.Row) (*domain.TableMetadata, error) {
	t, err := scanTableRow(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTableNotFound
		}
		customLog.Warnf("Storage: Error reading table: %v", err)
		return nil, wrapErr(ctx, "table lookup", err)
	}
	return t, nil
}

func scanTableRow(row rowScanner) (*domain.TableMetadata, error) {
	var t domain.TableMetadata
	var schemaJSON []byte
	if err := row.Scan(&t.TableID, &t.DatabaseID, &t.Name, &schemaJSON, &t.Version, &t.CreatedAt, &t.UpdatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(schemaJSON, &t.Schema); err != nil {
		return nil, fmt.Errorf("stored schema of table %d is corrupt: %w", t.TableID, err)
	}
	return &t, nil
}
