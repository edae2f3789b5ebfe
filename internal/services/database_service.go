package services

import (
	"context"

	"github.com/Hansade2005/pixel-pilot-sub013/internal/core"
	"github.com/Hansade2005/pixel-pilot-sub013/internal/domain"
	"github.com/Hansade2005/pixel-pilot-sub013/internal/indexes"
)

// DatabaseService manages a user's databases.
type DatabaseService struct {
	base
	indexes *indexes.Manager
}

// Create registers a new database for ownerID.
func (s *DatabaseService) Create(ctx context.Context, ownerID, name string) (*domain.DatabaseMetadata, error) {
	if !core.IsValidIdentifier(name) {
		return nil, core.ValidationError(core.CodeInvalidTableName,
			"Invalid database name. Use only letters, digits and underscores, starting with a letter, max length 63.",
			map[string]string{"db_name": name})
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	return s.store.CreateDatabase(ctx, ownerID, name)
}

// List returns ownerID's databases with their table and key counts.
func (s *DatabaseService) List(ctx context.Context, ownerID string) ([]domain.DatabaseMetadata, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	return s.store.ListUserDatabases(ctx, ownerID)
}

// Authorize checks that ownerID owns databaseID.
func (s *DatabaseService) Authorize(ctx context.Context, ownerID string, databaseID int64) (*domain.DatabaseMetadata, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	return s.store.FindDatabase(ctx, ownerID, databaseID)
}

// Delete drops the indexes of every table in the database, then the database
// itself. Tables, records and keys are removed by cascade.
func (s *DatabaseService) Delete(ctx context.Context, ownerID string, databaseID int64) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	if _, err := s.store.FindDatabase(ctx, ownerID, databaseID); err != nil {
		return err
	}
	tables, err := s.store.ListTables(ctx, databaseID)
	if err != nil {
		return err
	}
	for _, t := range tables {
		if _, err := s.indexes.DropAll(ctx, t.TableID); err != nil {
			customLog.Warnf("Service: failed dropping indexes of table %d: %v", t.TableID, err)
			return err
		}
	}
	if err := s.store.DeleteDatabase(ctx, ownerID, databaseID); err != nil {
		return err
	}
	customLog.Printf("Service: deleted database %d (%d tables) for user %s", databaseID, len(tables), ownerID)
	return nil
}
