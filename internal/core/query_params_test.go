// internal/core/query_params_test.go
package core

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseQueryRequestDefaults(t *testing.T) {
	req, err := ParseQueryRequest(url.Values{})
	require.NoError(t, err)
	assert.Equal(t, DefaultLimit, req.Limit)
	assert.Equal(t, 0, req.Offset)
	assert.Equal(t, "asc", req.OrderDirection)
	assert.True(t, req.CountExact)
}

func TestParseQueryRequestClamping(t *testing.T) {
	testCases := []struct {
		limit, offset         string
		wantLimit, wantOffset int
	}{
		{"5000", "0", MaxLimit, 0},
		{"0", "-5", 1, 0},
		{"-3", "10", 1, 10},
		{"20", "100", 20, 100},
	}
	for _, tc := range testCases {
		req, err := ParseQueryRequest(url.Values{"limit": {tc.limit}, "offset": {tc.offset}})
		require.NoError(t, err)
		assert.Equal(t, tc.wantLimit, req.Limit, "limit %s", tc.limit)
		assert.Equal(t, tc.wantOffset, req.Offset, "offset %s", tc.offset)
	}
}

func TestParseQueryRequestConditions(t *testing.T) {
	q := url.Values{
		"conditions": {`[{"field":"age","operator":">=","value":18},{"field":"status","operator":"in","value":["a","b"],"logic":"or"},{"field":"deleted","operator":"is  null"}]`},
		"orderBy":    {"created_at"},
		"order":      {"DESC"},
		"select":     {"name, age"},
		"count":      {"none"},
	}
	req, err := ParseQueryRequest(q)
	require.NoError(t, err)
	require.Len(t, req.Where, 3)
	assert.Equal(t, OpGte, req.Where[0].Operator)
	assert.Equal(t, LogicAnd, req.Where[0].Logic)
	assert.Equal(t, OpIn, req.Where[1].Operator)
	assert.Equal(t, LogicOr, req.Where[1].Logic)
	assert.Equal(t, OpIsNull, req.Where[2].Operator)
	assert.Equal(t, "created_at", req.OrderBy)
	assert.Equal(t, "desc", req.OrderDirection)
	assert.Equal(t, []string{"name", "age"}, req.Select)
	assert.False(t, req.CountExact)
}

func TestParseQueryRequestErrors(t *testing.T) {
	testCases := []struct {
		name string
		q    url.Values
	}{
		{"non integer limit", url.Values{"limit": {"ten"}}},
		{"bad direction", url.Values{"orderDirection": {"up"}}},
		{"bad order column", url.Values{"orderBy": {"name;drop"}}},
		{"conditions not json", url.Values{"conditions": {"age>3"}}},
		{"unknown operator", url.Values{"conditions": {`[{"field":"a","operator":"~","value":1}]`}}},
		{"in without array", url.Values{"conditions": {`[{"field":"a","operator":"IN","value":1}]`}}},
		{"like without string", url.Values{"conditions": {`[{"field":"a","operator":"LIKE","value":1}]`}}},
		{"bad logic", url.Values{"conditions": {`[{"field":"a","operator":"=","value":1,"logic":"XOR"}]`}}},
		{"having without groupBy", url.Values{"having": {`{"aggregate":"count","operator":">","value":1}`}}},
		{"having bad aggregate", url.Values{"groupBy": {"a"}, "having": {`{"aggregate":"median","field":"b","operator":">","value":1}`}}},
		{"bad count", url.Values{"count": {"maybe"}}},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParseQueryRequest(tc.q)
			require.Error(t, err)
			assert.Equal(t, KindValidation, KindOf(err))
		})
	}
}

func TestParseHaving(t *testing.T) {
	having, err := ParseHaving([]byte(`[{"aggregate":"SUM","field":"amount","operator":">","value":100},{"operator":">=","value":2}]`))
	require.NoError(t, err)
	require.Len(t, having, 2)
	assert.Equal(t, AggSum, having[0].Aggregate)
	assert.Equal(t, AggCount, having[1].Aggregate)
	assert.Equal(t, 2.0, having[1].Value)
}
