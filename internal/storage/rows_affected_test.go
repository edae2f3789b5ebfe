package storage

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Hansade2005/pixel-pilot-sub013/internal/core"
)

var errNoRowCount = errors.New("row count unavailable")

// blindDriver accepts every statement but cannot report affected rows.
type blindDriver struct{}

type blindConn struct{}

type blindStmt struct{}

type blindResult struct{}

func (blindDriver) Open(string) (driver.Conn, error) { return blindConn{}, nil }

func (blindConn) Prepare(string) (driver.Stmt, error) { return blindStmt{}, nil }
func (blindConn) Close() error                        { return nil }
func (blindConn) Begin() (driver.Tx, error)           { return blindConn{}, nil }
func (blindConn) Commit() error                       { return nil }
func (blindConn) Rollback() error                     { return nil }

func (blindStmt) Close() error                               { return nil }
func (blindStmt) NumInput() int                              { return -1 }
func (blindStmt) Exec([]driver.Value) (driver.Result, error) { return blindResult{}, nil }
func (blindStmt) Query([]driver.Value) (driver.Rows, error) {
	return nil, errors.New("queries are not supported")
}

func (blindResult) LastInsertId() (int64, error) { return 0, errNoRowCount }
func (blindResult) RowsAffected() (int64, error) { return 0, errNoRowCount }

func init() {
	sql.Register("blind", blindDriver{})
}

func TestRowsAffectedErrorsSurface(t *testing.T) {
	db, err := sql.Open("blind", "")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	s := NewStore(db, SQLite())
	ctx := context.Background()

	_, err = s.UpdateRecord(ctx, 1, productSchema, "01J00000000000000000000000", map[string]any{"name": "x"})
	require.Error(t, err)
	assert.ErrorIs(t, err, errNoRowCount)
	assert.NotErrorIs(t, err, ErrRecordNotFound)

	err = s.DeleteTable(ctx, 1, 1)
	require.Error(t, err)
	assert.ErrorIs(t, err, errNoRowCount)
	assert.NotErrorIs(t, err, ErrTableNotFound)

	err = s.DeleteRecord(ctx, 1, "01J00000000000000000000000")
	assert.ErrorIs(t, err, errNoRowCount)
}

func TestMissingRowsAreNotFound(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	dbID, tableID := seedTable(t, s)

	_, err := s.UpdateRecord(ctx, tableID, productSchema, "01J00000000000000000000000", map[string]any{"name": "x"})
	assert.ErrorIs(t, err, ErrRecordNotFound)
	assert.ErrorIs(t, s.DeleteTable(ctx, dbID, tableID+100), ErrTableNotFound)
}

func TestSQLiteILikeFoldsUnicode(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	_, tableID := seedTable(t, s)
	for _, name := range []string{"ÉCOLE Café", "Ölkanne", "Hammer"} {
		_, err := s.InsertRecord(ctx, tableID, productSchema, map[string]any{"name": name})
		require.NoError(t, err)
	}

	page, err := s.QueryRecords(ctx, tableID, productSchema, &core.QueryRequest{Search: "école", Limit: 10})
	require.NoError(t, err)
	require.Len(t, page.Records, 1)
	assert.Equal(t, "ÉCOLE Café", page.Records[0].Data["name"])

	page, err = s.QueryRecords(ctx, tableID, productSchema, &core.QueryRequest{
		Where: []core.Condition{{Field: "name", Operator: core.OpContains, Value: "ÖL"}},
		Limit: 10,
	})
	require.NoError(t, err)
	require.Len(t, page.Records, 1)
	assert.Equal(t, "Ölkanne", page.Records[0].Data["name"])

	// LIKE stays case-sensitive.
	page, err = s.QueryRecords(ctx, tableID, productSchema, &core.QueryRequest{
		Where: []core.Condition{{Field: "name", Operator: core.OpLike, Value: "%école%"}},
		Limit: 10,
	})
	require.NoError(t, err)
	assert.Empty(t, page.Records)
}

func TestFoldCase(t *testing.T) {
	assert.Equal(t, "école café", foldCase("ÉCOLE Café"))
	assert.Equal(t, "straße", foldCase([]byte("STRAßE")))
	assert.Equal(t, int64(7), foldCase(int64(7)))
	assert.Nil(t, foldCase(nil))
	assert.Nil(t, foldCase([]byte(nil)))
}
