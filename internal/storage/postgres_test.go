// internal/storage/postgres_test.go
package storage

import (
	"context"
	"fmt"
	"net/url"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"

	"github.com/Hansade2005/pixel-pilot-sub013/internal/core"
)

// postgresStore starts a throwaway Postgres container. It skips under -short
// and when no container runtime is reachable.
func postgresStore(t *testing.T) *Store {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping postgres container test in short mode")
	}
	testcontainers.SkipIfProviderIsNotHealthy(t)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	ctr, err := postgres.Run(ctx, "postgres:16-alpine",
		postgres.WithDatabase("records_test"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		postgres.BasicWaitStrategies(),
	)
	testcontainers.CleanupContainer(t, ctr)
	require.NoError(t, err)

	dsn, err := ctr.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	s, err := ConnectPostgres(dsn)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestPostgresDialect(t *testing.T) {
	s := postgresStore(t)
	ctx := context.Background()

	userID := uuid.NewString()
	_, err := s.CreateUser(ctx, userID, "pg", "pg@example.com", "hash")
	require.NoError(t, err)
	db, err := s.CreateDatabase(ctx, userID, "shop")
	require.NoError(t, err)
	table, err := s.CreateTable(ctx, db.DatabaseID, "products", productSchema)
	require.NoError(t, err)
	insertProducts(t, s, table.TableID, 12)

	for _, ix := range []IndexSpec{
		{Name: fmt.Sprintf("idx_records_t%d_name_gin", table.TableID), TableID: table.TableID, Field: "name", Kind: "gin", Expr: ExprText},
		{Name: fmt.Sprintf("idx_records_t%d_price_btree", table.TableID), TableID: table.TableID, Field: "price", Kind: "btree", Expr: ExprNumber},
		{Name: fmt.Sprintf("idx_unique_records_t%d_sku_gin", table.TableID), TableID: table.TableID, Field: "sku", Kind: "gin", Expr: ExprText, Unique: true},
	} {
		require.NoError(t, s.CreateIndex(ctx, ix), ix.Name)
	}

	stats, err := s.ListIndexes(ctx, fmt.Sprintf("idx_records_t%d_", table.TableID), fmt.Sprintf("idx_unique_records_t%d_", table.TableID))
	require.NoError(t, err)
	assert.Len(t, stats, 3)

	_, err = s.InsertRecord(ctx, table.TableID, productSchema, map[string]any{"name": "dup", "sku": "SKU-01"})
	e, ok := core.AsError(err)
	require.True(t, ok, "expected typed error, got %v", err)
	assert.Equal(t, core.CodeUniqueViolation, e.Code)

	req, err := core.ParseQueryRequest(url.Values{
		"conditions": {`[{"field":"price","operator":"<","value":2},{"field":"category","operator":"=","value":"books","logic":"OR"},{"field":"active","operator":"=","value":true}]`},
	})
	require.NoError(t, err)
	page, err := s.QueryRecords(ctx, table.TableID, productSchema, req)
	require.NoError(t, err)
	assert.Equal(t, int64(4), page.Total)

	req, err = core.ParseQueryRequest(url.Values{"conditions": {`[{"field":"name","operator":"ILIKE","value":"product 1%"}]`}})
	require.NoError(t, err)
	page, err = s.QueryRecords(ctx, table.TableID, productSchema, req)
	require.NoError(t, err)
	assert.Equal(t, int64(2), page.Total)

	groups, err := s.GroupRecords(ctx, table.TableID, productSchema, &core.QueryRequest{
		GroupBy: "category", Limit: 10, OrderDirection: "asc", CountExact: true,
		Having: []core.HavingCondition{{Aggregate: core.AggAvg, Field: "price", Operator: core.OpGte, Value: 5.5}},
	})
	require.NoError(t, err)
	// averages: tools 4.5, toys 5.5, books 6.5
	assert.Equal(t, int64(2), groups.Total)

	assert.NoError(t, s.Analyze(ctx))
}
