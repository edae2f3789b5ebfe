// internal/storage/record_storage.go
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/Hansade2005/pixel-pilot-sub013/internal/core"
	"github.com/Hansade2005/pixel-pilot-sub013/internal/domain"
)

// RecordPage is one page of a record query.
type RecordPage struct {
	Records []domain.Record
	Total   int64 // -1 when the total was not counted
	HasMore bool
}

// GroupRow is one group of a grouped query.
type GroupRow map[string]any

// GroupPage is one page of a grouped query.
type GroupPage struct {
	Groups  []GroupRow
	Total   int64
	HasMore bool
}

// InsertRecord stores data as a new record of tableID. schema is used to name
// the field of a unique violation.
func (s *Store) InsertRecord(ctx context.Context, tableID int64, schema core.Schema, data map[string]any) (*domain.Record, error) {
	payload, err := core.MarshalDocument(data)
	if err != nil {
		return nil, core.ValidationError(core.CodeTypeMismatch, "record data is not serializable", err.Error())
	}
	now := time.Now().UTC()
	rec := domain.Record{ID: ulid.Make().String(), TableID: tableID, Data: data, CreatedAt: now, UpdatedAt: now}

	insertSQL := `INSERT INTO records (id, table_id, data_json, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`
	if _, err := s.exec(ctx, insertSQL, rec.ID, tableID, string(payload), now, now); err != nil {
		if conflict := recordConflict(err, schema); conflict != nil {
			return nil, conflict
		}
		customLog.Warnf("Storage: Failed INSERT into table %d: %v", tableID, err)
		return nil, wrapErr(ctx, "record insert", err)
	}
	return &rec, nil
}

// GetRecord returns record id of tableID.
func (s *Store) GetRecord(ctx context.Context, tableID int64, id string) (*domain.Record, error) {
	query := `SELECT ` + recordColumns + ` FROM records WHERE table_id = ? AND id = ?`
	rec, err := scanRecord(s.queryRow(ctx, query, tableID, id), tableID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRecordNotFound
		}
		customLog.Warnf("Storage: Failed reading record %s of table %d: %v", id, tableID, err)
		return nil, wrapErr(ctx, "record lookup", err)
	}
	return rec, nil
}

// UpdateRecord replaces the document of record id and bumps updated_at.
func (s *Store) UpdateRecord(ctx context.Context, tableID int64, schema core.Schema, id string, data map[string]any) (*domain.Record, error) {
	payload, err := core.MarshalDocument(data)
	if err != nil {
		return nil, core.ValidationError(core.CodeTypeMismatch, "record data is not serializable", err.Error())
	}
	now := time.Now().UTC()
	updateSQL := `UPDATE records SET data_json = ?, updated_at = ? WHERE table_id = ? AND id = ?`
	result, err := s.exec(ctx, updateSQL, string(payload), now, tableID, id)
	if err != nil {
		if conflict := recordConflict(err, schema); conflict != nil {
			return nil, conflict
		}
		customLog.Warnf("Storage: Failed UPDATE of record %s in table %d: %v", id, tableID, err)
		return nil, wrapErr(ctx, "record update", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed confirming record update: %w", err)
	}
	if n == 0 {
		return nil, ErrRecordNotFound
	}
	return s.GetRecord(ctx, tableID, id)
}

// DeleteRecord removes record id of tableID.
func (s *Store) DeleteRecord(ctx context.Context, tableID int64, id string) error {
	result, err := s.exec(ctx, `DELETE FROM records WHERE table_id = ? AND id = ?`, tableID, id)
	if err != nil {
		customLog.Warnf("Storage: Failed DELETE of record %s in table %d: %v", id, tableID, err)
		return wrapErr(ctx, "record delete", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed confirming record deletion: %w", err)
	}
	if rowsAffected == 0 {
		return ErrRecordNotFound
	}
	return nil
}

// CountRecords returns the number of records in tableID.
func (s *Store) CountRecords(ctx context.Context, tableID int64) (int64, error) {
	var n int64
	if err := s.queryRow(ctx, `SELECT COUNT(*) FROM records WHERE table_id = ?`, tableID).Scan(&n); err != nil {
		return 0, wrapErr(ctx, "record count", err)
	}
	return n, nil
}

// ValueExists reports whether some record of tableID holds value in field.
// The field "id" matches the record id itself.
func (s *Store) ValueExists(ctx context.Context, tableID int64, schema core.Schema, field string, value any) (bool, error) {
	b := newQueryBuilder(s.Dialect, tableID, schema)
	cond, args, err := b.condition(core.Condition{Field: field, Operator: core.OpEq, Value: value})
	if err != nil {
		return false, err
	}
	// nolint:gosec // expressions are built from validated identifiers
	query := fmt.Sprintf("SELECT 1 FROM records WHERE %s AND %s LIMIT 1", b.base(), cond)
	var one int
	err = s.DB.QueryRowContext(ctx, s.Dialect.Rebind(query), args...).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, wrapErr(ctx, "reference lookup", err)
	}
	return true, nil
}

// QueryRecords runs a filtered, ordered, paginated read. With req.CountExact
// the total is counted and has_more = total > offset+limit; otherwise one extra
// row is fetched to derive has_more.
func (s *Store) QueryRecords(ctx context.Context, tableID int64, schema core.Schema, req *core.QueryRequest) (*RecordPage, error) {
	b := newQueryBuilder(s.Dialect, tableID, schema)
	page := &RecordPage{Total: -1, Records: make([]domain.Record, 0)}

	if req.CountExact {
		countSQL, countArgs, err := b.Count(req)
		if err != nil {
			return nil, err
		}
		if err := s.DB.QueryRowContext(ctx, countSQL, countArgs...).Scan(&page.Total); err != nil {
			customLog.Warnf("Storage: Failed count query on table %d: %v | SQL: %s", tableID, err, countSQL)
			return nil, wrapErr(ctx, "record count", err)
		}
		page.HasMore = page.Total > int64(req.Offset+req.Limit)
		if page.Total <= int64(req.Offset) {
			return page, nil
		}
	}

	fetch := req.Limit
	if !req.CountExact {
		fetch = req.Limit + 1
	}
	selectSQL, args, err := b.Select(req, fetch)
	if err != nil {
		return nil, err
	}
	customLog.Debugf("Storage: Executing record query SQL: %s | Args: %v", selectSQL, args)

	rows, err := s.DB.QueryContext(ctx, selectSQL, args...)
	if err != nil {
		customLog.Warnf("Storage: Failed record query on table %d: %v | SQL: %s", tableID, err, selectSQL)
		return nil, wrapErr(ctx, "record query", err)
	}
	defer rows.Close()

	for rows.Next() {
		rec, err := scanRecord(rows, tableID)
		if err != nil {
			return nil, fmt.Errorf("failed processing record rows: %w", err)
		}
		page.Records = append(page.Records, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapErr(ctx, "record query", err)
	}

	if !req.CountExact && len(page.Records) > req.Limit {
		page.Records = page.Records[:req.Limit]
		page.HasMore = true
	}
	return page, nil
}

// GroupRecords runs a grouped aggregate read. Each row carries the group
// value under req.GroupBy, "count", and one entry per having aggregate.
func (s *Store) GroupRecords(ctx context.Context, tableID int64, schema core.Schema, req *core.QueryRequest) (*GroupPage, error) {
	b := newQueryBuilder(s.Dialect, tableID, schema)
	page := &GroupPage{Total: -1, Groups: make([]GroupRow, 0)}

	if req.CountExact {
		countSQL, countArgs, err := b.GroupCount(req)
		if err != nil {
			return nil, err
		}
		if err := s.DB.QueryRowContext(ctx, countSQL, countArgs...).Scan(&page.Total); err != nil {
			customLog.Warnf("Storage: Failed group count on table %d: %v | SQL: %s", tableID, err, countSQL)
			return nil, wrapErr(ctx, "group count", err)
		}
		page.HasMore = page.Total > int64(req.Offset+req.Limit)
	}

	groupSQL, args, err := b.Group(req)
	if err != nil {
		return nil, err
	}
	rows, err := s.DB.QueryContext(ctx, groupSQL, args...)
	if err != nil {
		customLog.Warnf("Storage: Failed group query on table %d: %v | SQL: %s", tableID, err, groupSQL)
		return nil, wrapErr(ctx, "group query", err)
	}
	defer rows.Close()

	aggs := groupAggregates(req.Having)
	numericGroup := b.kindOf(req.GroupBy, nil) == ExprNumber
	for rows.Next() {
		var grp any
		var count int64
		values := make([]sql.NullFloat64, len(aggs))
		dest := []any{&grp, &count}
		for i := range values {
			dest = append(dest, &values[i])
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("failed processing group rows: %w", err)
		}
		row := GroupRow{req.GroupBy: normalizeValue(grp, numericGroup), "count": count}
		for i, h := range aggs {
			if values[i].Valid {
				row[aggregateColumn(h)] = values[i].Float64
			} else {
				row[aggregateColumn(h)] = nil
			}
		}
		page.Groups = append(page.Groups, row)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapErr(ctx, "group query", err)
	}
	return page, nil
}

func scanRecord(row rowScanner, tableID int64) (*domain.Record, error) {
	var rec domain.Record
	var payload []byte
	if err := row.Scan(&rec.ID, &payload, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
		return nil, err
	}
	rec.TableID = tableID
	if err := json.Unmarshal(payload, &rec.Data); err != nil {
		return nil, fmt.Errorf("stored document %s is corrupt: %w", rec.ID, err)
	}
	if rec.Data == nil {
		rec.Data = make(map[string]any)
	}
	return &rec, nil
}

// normalizeValue turns driver values into JSON-friendly ones.
func normalizeValue(v any, numeric bool) any {
	switch t := v.(type) {
	case []byte:
		v = string(t)
	case int64:
		return float64(t)
	}
	if s, ok := v.(string); ok && numeric {
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return f
		}
	}
	return v
}
