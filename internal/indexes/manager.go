package indexes

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/Hansade2005/pixel-pilot-sub013/internal/core"
	"github.com/Hansade2005/pixel-pilot-sub013/internal/domain"
	"github.com/Hansade2005/pixel-pilot-sub013/internal/logger"
	"github.com/Hansade2005/pixel-pilot-sub013/internal/storage"
)

var customLog = logger.NewLogger()

// Store is the storage surface the manager needs.
type Store interface {
	CreateIndex(ctx context.Context, ix storage.IndexSpec) error
	DropIndex(ctx context.Context, name string) error
	ListIndexes(ctx context.Context, prefixes ...string) ([]domain.IndexStat, error)
	Analyze(ctx context.Context) error
	TableVersion(ctx context.Context, tableID int64) (int64, error)
}

// IndexError is one index that could not be created.
type IndexError struct {
	Index string `json:"index"`
	Field string `json:"field"`
	Error string `json:"error"`
}

// Result reports the outcome of a create or rebuild. Each index succeeds or
// fails on its own.
type Result struct {
	IndexesCreated []string     `json:"indexesCreated"`
	IndexesDropped []string     `json:"indexesDropped,omitempty"`
	Errors         []IndexError `json:"errors"`
}

// Manager creates and drops the indexes of tables.
type Manager struct {
	store       Store
	concurrency int
}

// NewManager returns a manager that builds at most concurrency indexes at once.
func NewManager(store Store, concurrency int) *Manager {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Manager{store: store, concurrency: concurrency}
}

// Create builds every index the table's schema asks for. Existing indexes are
// left alone. It fails with SCHEMA_CHANGED when the table's schema version
// moved while the indexes were being built.
func (m *Manager) Create(ctx context.Context, table *domain.TableMetadata) (*Result, error) {
	res := m.build(ctx, Plan(table.TableID, table.Schema))
	if err := m.checkVersion(ctx, table); err != nil {
		return res, err
	}
	return res, nil
}

// Rebuild reconciles the table's namespace with its schema: indexes no column
// asks for any more are dropped and the rest are (re)created. Running it twice
// yields the same set of indexes.
func (m *Manager) Rebuild(ctx context.Context, table *domain.TableMetadata) (*Result, error) {
	desired := Plan(table.TableID, table.Schema)

	existing, err := m.store.ListIndexes(ctx, Prefix(table.TableID), UniquePrefix(table.TableID))
	if err != nil {
		return nil, err
	}
	current := make([]storage.IndexSpec, 0, len(existing))
	for _, st := range existing {
		current = append(current, storage.IndexSpec{Name: st.Name})
	}

	drop, _ := Diff(current, desired)
	dropped := make([]string, 0, len(drop))
	for _, name := range drop {
		if err := m.store.DropIndex(ctx, name); err != nil {
			return nil, err
		}
		dropped = append(dropped, name)
	}

	res := m.build(ctx, desired)
	res.IndexesDropped = dropped
	if err := m.checkVersion(ctx, table); err != nil {
		return res, err
	}
	return res, nil
}

// DropAll drops every index in the table's namespace and returns their names.
func (m *Manager) DropAll(ctx context.Context, tableID int64) ([]string, error) {
	existing, err := m.store.ListIndexes(ctx, Prefix(tableID), UniquePrefix(tableID))
	if err != nil {
		return nil, err
	}
	dropped := make([]string, 0, len(existing))
	for _, st := range existing {
		if err := m.store.DropIndex(ctx, st.Name); err != nil {
			return dropped, err
		}
		dropped = append(dropped, st.Name)
	}
	customLog.Printf("Indexes: dropped %d index(es) of table %d", len(dropped), tableID)
	return dropped, nil
}

// Analyze refreshes planner statistics without touching index definitions.
func (m *Manager) Analyze(ctx context.Context) error {
	return m.store.Analyze(ctx)
}

// Stats lists the indexes in the table's namespace with their usage counters.
func (m *Manager) Stats(ctx context.Context, tableID int64) ([]domain.IndexStat, error) {
	return m.store.ListIndexes(ctx, Prefix(tableID), UniquePrefix(tableID))
}

func (m *Manager) build(ctx context.Context, specs []storage.IndexSpec) *Result {
	errs := make([]error, len(specs))

	// CREATE INDEX IF NOT EXISTS would silently skip a second spec with the same name.
	owner := make(map[string]string, len(specs))
	for i, ix := range specs {
		if field, taken := owner[ix.Name]; taken {
			errs[i] = fmt.Errorf("index name %s is already used by field %q", ix.Name, field)
			continue
		}
		owner[ix.Name] = ix.Field
	}

	var g errgroup.Group
	g.SetLimit(m.concurrency)
	for i, ix := range specs {
		if errs[i] != nil {
			continue
		}
		g.Go(func() error {
			errs[i] = m.store.CreateIndex(ctx, ix)
			return nil
		})
	}
	_ = g.Wait()

	res := &Result{IndexesCreated: make([]string, 0, len(specs)), Errors: make([]IndexError, 0)}
	for i, ix := range specs {
		if errs[i] != nil {
			customLog.Warnf("Indexes: failed to create %s: %v", ix.Name, errs[i])
			res.Errors = append(res.Errors, IndexError{Index: ix.Name, Field: ix.Field, Error: errs[i].Error()})
			continue
		}
		res.IndexesCreated = append(res.IndexesCreated, ix.Name)
	}
	return res
}

func (m *Manager) checkVersion(ctx context.Context, table *domain.TableMetadata) error {
	v, err := m.store.TableVersion(ctx, table.TableID)
	if err != nil {
		return err
	}
	if v != table.Version {
		return core.ConflictError(core.CodeSchemaChanged,
			"Table schema changed while its indexes were being built; retry the operation",
			map[string]any{"expected_version": table.Version, "current_version": v})
	}
	return nil
}
