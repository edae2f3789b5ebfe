// internal/storage/index_storage.go
package storage

import (
	"context"
	"fmt"
	"strings"

	"github.com/Hansade2005/pixel-pilot-sub013/internal/domain"
)

// CreateIndex executes the DDL for ix. Creation is idempotent.
func (s *Store) CreateIndex(ctx context.Context, ix IndexSpec) error {
	ddl := s.Dialect.IndexDDL(ix)
	if _, err := s.DB.ExecContext(ctx, ddl); err != nil {
		customLog.Warnf("Storage: Failed to create index %s: %v\nSQL: %s", ix.Name, err, ddl)
		if _, ok := uniqueViolation(err); ok {
			return fmt.Errorf("existing records hold duplicate values for '%s': %w", ix.Field, err)
		}
		return wrapErr(ctx, "index creation", err)
	}
	return nil
}

// DropIndex drops the index called name if it exists.
func (s *Store) DropIndex(ctx context.Context, name string) error {
	if _, err := s.DB.ExecContext(ctx, s.Dialect.DropIndexDDL(name)); err != nil {
		customLog.Warnf("Storage: Failed to drop index %s: %v", name, err)
		return wrapErr(ctx, "index drop", err)
	}
	return nil
}

// ListIndexes returns the record indexes whose name starts with one of prefixes.
func (s *Store) ListIndexes(ctx context.Context, prefixes ...string) ([]domain.IndexStat, error) {
	rows, err := s.DB.QueryContext(ctx, s.Dialect.ListIndexesSQL())
	if err != nil {
		customLog.Warnf("Storage: Failed to list indexes: %v", err)
		return nil, wrapErr(ctx, "index listing", err)
	}
	defer rows.Close()

	stats := make([]domain.IndexStat, 0)
	for rows.Next() {
		var st domain.IndexStat
		if err := rows.Scan(&st.Name, &st.Definition, &st.Scans, &st.TuplesRead, &st.TuplesFetched, &st.SizeBytes); err != nil {
			return nil, fmt.Errorf("failed processing index list: %w", err)
		}
		if hasAnyPrefix(st.Name, prefixes) {
			stats = append(stats, st)
		}
	}
	return stats, wrapErr(ctx, "index listing", rows.Err())
}

// Analyze refreshes planner statistics for the records table.
func (s *Store) Analyze(ctx context.Context) error {
	if _, err := s.DB.ExecContext(ctx, s.Dialect.AnalyzeSQL()); err != nil {
		customLog.Warnf("Storage: ANALYZE failed: %v", err)
		return wrapErr(ctx, "analyze", err)
	}
	return nil
}

func hasAnyPrefix(name string, prefixes []string) bool {
	if len(prefixes) == 0 {
		return true
	}
	for _, p := range prefixes {
		if strings.HasPrefix(name, p) {
			return true
		}
	}
	return false
}
