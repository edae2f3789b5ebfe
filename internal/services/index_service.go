package services

import (
	"context"
	"fmt"

	"github.com/Hansade2005/pixel-pilot-sub013/internal/core"
	"github.com/Hansade2005/pixel-pilot-sub013/internal/domain"
	"github.com/Hansade2005/pixel-pilot-sub013/internal/indexes"
)

// Index maintenance actions.
const (
	IndexActionCreate  = "create"
	IndexActionRebuild = "rebuild"
	IndexActionAnalyze = "analyze"
)

// IndexService exposes index maintenance for one table at a time.
type IndexService struct {
	base
	indexes *indexes.Manager
}

// IndexActionResult is the outcome of Run.
type IndexActionResult struct {
	Action  string          `json:"action"`
	TableID int64           `json:"table_id"`
	Result  *indexes.Result `json:"result,omitempty"`
}

// Run performs action on the table's indexes.
func (s *IndexService) Run(ctx context.Context, databaseID, tableID int64, action string) (*IndexActionResult, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	table, err := s.store.GetTable(ctx, databaseID, tableID)
	if err != nil {
		return nil, err
	}
	out := &IndexActionResult{Action: action, TableID: tableID}
	switch action {
	case IndexActionCreate:
		out.Result, err = s.indexes.Create(ctx, table)
	case IndexActionRebuild:
		out.Result, err = s.indexes.Rebuild(ctx, table)
	case IndexActionAnalyze:
		err = s.indexes.Analyze(ctx)
	default:
		return nil, core.ValidationError(core.CodeInvalidQuery,
			fmt.Sprintf("Unknown index action '%s' (want create, rebuild or analyze)", action),
			map[string]string{"action": action})
	}
	if err != nil {
		return out, err
	}
	customLog.Printf("Service: index action %s on table %d finished", action, tableID)
	return out, nil
}

// DropAll removes every index of the table.
func (s *IndexService) DropAll(ctx context.Context, databaseID, tableID int64) ([]string, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	if _, err := s.store.GetTable(ctx, databaseID, tableID); err != nil {
		return nil, err
	}
	return s.indexes.DropAll(ctx, tableID)
}

// Stats lists the table's indexes with their usage counters.
func (s *IndexService) Stats(ctx context.Context, databaseID, tableID int64) ([]domain.IndexStat, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	if _, err := s.store.GetTable(ctx, databaseID, tableID); err != nil {
		return nil, err
	}
	return s.indexes.Stats(ctx, tableID)
}
