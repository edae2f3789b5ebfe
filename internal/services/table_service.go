package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/Hansade2005/pixel-pilot-sub013/internal/core"
	"github.com/Hansade2005/pixel-pilot-sub013/internal/domain"
	"github.com/Hansade2005/pixel-pilot-sub013/internal/indexes"
	"github.com/Hansade2005/pixel-pilot-sub013/internal/storage"
)

// TableService creates, describes, alters and drops tables.
type TableService struct {
	base
	indexes *indexes.Manager
}

// TableResult is a created or altered table with the outcome of its index work.
type TableResult struct {
	Table   *domain.TableMetadata `json:"table"`
	Indexes *indexes.Result       `json:"indexes"`
}

// TableDetail is a table descriptor with its record count.
type TableDetail struct {
	domain.TableMetadata
	RecordCount int64 `json:"record_count"`
}

// TablePage is one page of table descriptors.
type TablePage struct {
	Tables  []TableDetail `json:"tables"`
	Total   int           `json:"total"`
	Limit   int           `json:"limit"`
	Offset  int           `json:"offset"`
	HasMore bool          `json:"has_more"`
}

// BulkItemError describes why one table of a bulk request was not created.
type BulkItemError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// BulkItem is the outcome for one table of a bulk request.
type BulkItem struct {
	Name    string                `json:"name"`
	Success bool                  `json:"success"`
	Table   *domain.TableMetadata `json:"table,omitempty"`
	Indexes *indexes.Result       `json:"indexes,omitempty"`
	Error   *BulkItemError        `json:"error,omitempty"`
}

// BulkResult reports a bulk creation table by table, in creation order.
type BulkResult struct {
	Results []BulkItem `json:"results"`
	Created int        `json:"created"`
	Failed  int        `json:"failed"`
}

// Create validates name and schema and creates the table and its indexes.
func (s *TableService) Create(ctx context.Context, databaseID int64, name string, rawSchema json.RawMessage) (*TableResult, error) {
	if err := core.ValidateTableName(name); err != nil {
		return nil, err
	}
	schema, errs := core.ParseSchema(rawSchema)
	if len(errs) > 0 {
		return nil, errs.Err("Invalid schema")
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	return s.create(ctx, databaseID, name, schema, nil)
}

// create checks references, then stores the table and builds its indexes.
// failed holds tables of the same bulk request whose creation failed.
func (s *TableService) create(ctx context.Context, databaseID int64, name string, schema core.Schema, failed map[string]bool) (*TableResult, error) {
	for _, ref := range schema.ReferencedTables(name) {
		if failed[ref] {
			return nil, core.ValidationError(core.CodeReferenceNotFound,
				fmt.Sprintf("Referenced table '%s' failed to create", ref), map[string]string{"table": ref})
		}
		if _, err := s.store.GetTableByName(ctx, databaseID, ref); err != nil {
			if errors.Is(err, storage.ErrTableNotFound) {
				return nil, core.ValidationError(core.CodeReferenceNotFound,
					fmt.Sprintf("Referenced table '%s' does not exist", ref), map[string]string{"table": ref})
			}
			return nil, err
		}
	}

	table, err := s.store.CreateTable(ctx, databaseID, name, schema)
	if err != nil {
		return nil, err
	}
	res, err := s.indexes.Create(ctx, table)
	return &TableResult{Table: table, Indexes: res}, err
}

// CreateBulk creates up to core.MaxBulkTables tables in dependency order.
// Name collisions and reference cycles fail the whole batch before anything is
// created; after that each table succeeds or fails on its own.
func (s *TableService) CreateBulk(ctx context.Context, databaseID int64, defs []core.TableDefinition) (*BulkResult, error) {
	if len(defs) == 0 || len(defs) > core.MaxBulkTables {
		return nil, core.ValidationError(core.CodeInvalidSchema,
			fmt.Sprintf("A bulk request must contain between 1 and %d tables", core.MaxBulkTables),
			map[string]int{"count": len(defs)})
	}

	names := make([]string, 0, len(defs))
	seen := make(map[string]bool, len(defs))
	schemaErrs := make(map[string]core.FieldErrors)
	for i := range defs {
		if err := core.ValidateTableName(defs[i].Name); err != nil {
			return nil, err
		}
		if seen[defs[i].Name] {
			return nil, core.ValidationError(core.CodeInvalidTableName,
				fmt.Sprintf("Table '%s' appears more than once in the request", defs[i].Name),
				map[string]string{"name": defs[i].Name})
		}
		seen[defs[i].Name] = true
		names = append(names, defs[i].Name)

		schema, errs := core.ParseSchema(defs[i].RawSchema)
		defs[i].Schema = schema
		if len(errs) > 0 {
			schemaErrs[defs[i].Name] = errs
		}
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	existing, err := s.store.ExistingTableNames(ctx, databaseID, names)
	if err != nil {
		return nil, err
	}
	if len(existing) > 0 {
		return nil, core.ConflictError(core.CodeTableNameConflict,
			"One or more tables already exist in this database",
			map[string]any{"tables": existing})
	}

	ordered, err := core.SortByDependencies(defs)
	if err != nil {
		return nil, err
	}

	result := &BulkResult{Results: make([]BulkItem, 0, len(ordered))}
	failed := make(map[string]bool)
	for _, def := range ordered {
		item := BulkItem{Name: def.Name}
		if errs, bad := schemaErrs[def.Name]; bad {
			item.Error = bulkError(errs.Err("Invalid schema"))
		} else {
			res, err := s.create(ctx, databaseID, def.Name, def.Schema, failed)
			if res != nil && res.Table != nil {
				// the table exists even if its index step reported a problem
				item.Success = true
				item.Table = res.Table
				item.Indexes = res.Indexes
			} else {
				item.Error = bulkError(err)
			}
		}

		if item.Success {
			result.Created++
		} else {
			failed[def.Name] = true
			result.Failed++
			customLog.Warnf("Service: bulk creation of table '%s' failed: %s", def.Name, item.Error.Message)
		}
		result.Results = append(result.Results, item)
	}
	return result, nil
}

func bulkError(err error) *BulkItemError {
	if e, ok := core.AsError(err); ok {
		return &BulkItemError{Code: e.Code, Message: e.Message, Details: e.Details}
	}
	switch {
	case errors.Is(err, storage.ErrTableExists):
		return &BulkItemError{Code: core.CodeTableNameConflict, Message: err.Error()}
	default:
		return &BulkItemError{Code: "STORAGE_ERROR", Message: err.Error()}
	}
}

// Get returns the table with its record count.
func (s *TableService) Get(ctx context.Context, databaseID, tableID int64) (*TableDetail, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	t, err := s.store.GetTable(ctx, databaseID, tableID)
	if err != nil {
		return nil, err
	}
	n, err := s.store.CountRecords(ctx, tableID)
	if err != nil {
		return nil, err
	}
	return &TableDetail{TableMetadata: *t, RecordCount: n}, nil
}

// List returns one page of the database's tables, ordered by name.
func (s *TableService) List(ctx context.Context, databaseID int64, limit, offset int) (*TablePage, error) {
	limit = core.ClampLimit(limit, core.DefaultLimit, core.MaxLimit)
	offset = core.ClampOffset(offset)

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	tables, err := s.store.ListTables(ctx, databaseID)
	if err != nil {
		return nil, err
	}
	page := &TablePage{Tables: make([]TableDetail, 0), Total: len(tables), Limit: limit, Offset: offset}
	if offset >= len(tables) {
		return page, nil
	}
	end := min(offset+limit, len(tables))
	for _, t := range tables[offset:end] {
		n, err := s.store.CountRecords(ctx, t.TableID)
		if err != nil {
			return nil, err
		}
		page.Tables = append(page.Tables, TableDetail{TableMetadata: t, RecordCount: n})
	}
	page.HasMore = len(tables) > offset+limit
	return page, nil
}

// Delete drops the table's indexes, then the table and its records. It
// returns how many records were deleted.
func (s *TableService) Delete(ctx context.Context, databaseID, tableID int64) (int64, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	if _, err := s.store.GetTable(ctx, databaseID, tableID); err != nil {
		return 0, err
	}
	n, err := s.store.CountRecords(ctx, tableID)
	if err != nil {
		return 0, err
	}
	if _, err := s.indexes.DropAll(ctx, tableID); err != nil {
		return 0, err
	}
	if err := s.store.DeleteTable(ctx, databaseID, tableID); err != nil {
		return 0, err
	}
	customLog.Printf("Service: deleted table %d of database %d with %d record(s)", tableID, databaseID, n)
	return n, nil
}

// UpdateSchema replaces the table's schema when expectedVersion (or the
// current version when nil) is still current, then reconciles its indexes.
func (s *TableService) UpdateSchema(ctx context.Context, databaseID, tableID int64, rawSchema json.RawMessage, expectedVersion *int64) (*TableResult, error) {
	schema, errs := core.ParseSchema(rawSchema)
	if len(errs) > 0 {
		return nil, errs.Err("Invalid schema")
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	table, err := s.store.GetTable(ctx, databaseID, tableID)
	if err != nil {
		return nil, err
	}
	for _, ref := range schema.ReferencedTables(table.Name) {
		if _, err := s.store.GetTableByName(ctx, databaseID, ref); err != nil {
			if errors.Is(err, storage.ErrTableNotFound) {
				return nil, core.ValidationError(core.CodeReferenceNotFound,
					fmt.Sprintf("Referenced table '%s' does not exist", ref), map[string]string{"table": ref})
			}
			return nil, err
		}
	}

	version := table.Version
	if expectedVersion != nil {
		version = *expectedVersion
	}
	newVersion, err := s.store.UpdateTableSchema(ctx, tableID, schema, version)
	if err != nil {
		if errors.Is(err, storage.ErrVersionConflict) {
			return nil, core.ConflictError(core.CodeSchemaChanged,
				"Table schema was modified concurrently; reload it and retry",
				map[string]any{"expected_version": version})
		}
		return nil, err
	}
	table.Schema = schema
	table.Version = newVersion

	res, err := s.indexes.Rebuild(ctx, table)
	return &TableResult{Table: table, Indexes: res}, err
}
