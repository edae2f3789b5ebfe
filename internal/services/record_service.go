package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/Hansade2005/pixel-pilot-sub013/internal/core"
	"github.com/Hansade2005/pixel-pilot-sub013/internal/domain"
	"github.com/Hansade2005/pixel-pilot-sub013/internal/storage"
)

// RecordService validates and persists documents against their table's schema.
type RecordService struct {
	base
}

// RecordList is one page of records in API shape.
type RecordList struct {
	Records []map[string]any `json:"records"`
	Total   int64            `json:"total"`
	Limit   int              `json:"limit"`
	Offset  int              `json:"offset"`
	HasMore bool             `json:"has_more"`
}

// Create applies defaults, validates data and stores it as a new record.
// A rejected record is not persisted.
func (s *RecordService) Create(ctx context.Context, databaseID, tableID int64, data map[string]any) (*domain.Record, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	table, err := s.store.GetTable(ctx, databaseID, tableID)
	if err != nil {
		return nil, err
	}
	data = core.ApplyDefaults(data, table.Schema)
	if err := s.validate(ctx, table, data); err != nil {
		return nil, err
	}
	rec, err := s.store.InsertRecord(ctx, tableID, table.Schema, data)
	if err != nil {
		customLog.Warnf("Service: insert into table %d failed: %v | data: %v", tableID, err, data)
		return nil, err
	}
	return rec, nil
}

// Get returns one record.
func (s *RecordService) Get(ctx context.Context, databaseID, tableID int64, id string) (*domain.Record, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	if _, err := s.store.GetTable(ctx, databaseID, tableID); err != nil {
		return nil, err
	}
	return s.store.GetRecord(ctx, tableID, id)
}

// Update merges patch into the stored document (top-level keys replace,
// null values are kept as null) and validates the result.
func (s *RecordService) Update(ctx context.Context, databaseID, tableID int64, id string, patch map[string]any) (*domain.Record, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	table, err := s.store.GetTable(ctx, databaseID, tableID)
	if err != nil {
		return nil, err
	}
	existing, err := s.store.GetRecord(ctx, tableID, id)
	if err != nil {
		return nil, err
	}

	merged := make(map[string]any, len(existing.Data)+len(patch))
	for k, v := range existing.Data {
		merged[k] = v
	}
	for k, v := range patch {
		if core.IsSystemField(k) {
			continue
		}
		merged[k] = v
	}
	if err := s.validate(ctx, table, merged); err != nil {
		return nil, err
	}
	rec, err := s.store.UpdateRecord(ctx, tableID, table.Schema, id, merged)
	if err != nil {
		customLog.Warnf("Service: update of record %s in table %d failed: %v | data: %v", id, tableID, err, merged)
		return nil, err
	}
	return rec, nil
}

// Delete removes one record.
func (s *RecordService) Delete(ctx context.Context, databaseID, tableID int64, id string) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	if _, err := s.store.GetTable(ctx, databaseID, tableID); err != nil {
		return err
	}
	return s.store.DeleteRecord(ctx, tableID, id)
}

// List returns a page of records filtered by req.Search and ordered by req.
func (s *RecordService) List(ctx context.Context, databaseID, tableID int64, req *core.QueryRequest) (*RecordList, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	table, err := s.store.GetTable(ctx, databaseID, tableID)
	if err != nil {
		return nil, err
	}
	req.CountExact = true
	page, err := s.store.QueryRecords(ctx, tableID, table.Schema, req)
	if err != nil {
		return nil, err
	}
	out := &RecordList{Records: make([]map[string]any, 0, len(page.Records)), Total: page.Total,
		Limit: req.Limit, Offset: req.Offset, HasMore: page.HasMore}
	for _, r := range page.Records {
		out.Records = append(out.Records, r.Flatten())
	}
	return out, nil
}

// validate checks data against the schema and that every referenced value exists.
func (s *RecordService) validate(ctx context.Context, table *domain.TableMetadata, data map[string]any) error {
	if errs := core.ValidateRecord(data, table.Schema); len(errs) > 0 {
		return errs.Err("Record validation failed")
	}
	return s.checkReferences(ctx, table, data)
}

func (s *RecordService) checkReferences(ctx context.Context, table *domain.TableMetadata, data map[string]any) error {
	var errs core.FieldErrors
	for _, col := range table.Schema.Columns {
		if col.References == nil || col.References.Table == "" {
			continue
		}
		v, present := data[col.Name]
		if core.IsEmptyValue(v, present) {
			continue
		}
		target := table
		if col.References.Table != table.Name {
			t, err := s.store.GetTableByName(ctx, table.DatabaseID, col.References.Table)
			if errors.Is(err, storage.ErrTableNotFound) {
				errs = append(errs, core.FieldError{Code: core.CodeReferenceNotFound, Field: col.Name,
					Message: fmt.Sprintf("Referenced table '%s' does not exist", col.References.Table)})
				continue
			}
			if err != nil {
				return err
			}
			target = t
		}
		refCol := col.References.Column
		if refCol == "" {
			refCol = "id"
		}
		ok, err := s.store.ValueExists(ctx, target.TableID, target.Schema, refCol, v)
		if err != nil {
			return err
		}
		if !ok {
			errs = append(errs, core.FieldError{Code: core.CodeReferenceNotFound, Field: col.Name,
				Message: fmt.Sprintf("No record in '%s' has %s = %v", col.References.Table, refCol, v)})
		}
	}
	return errs.Err("Referenced record not found")
}
