package search

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Hansade2005/pixel-pilot-sub013/internal/core"
)

func docs(values ...string) []map[string]any {
	out := make([]map[string]any, len(values))
	for i, v := range values {
		out[i] = map[string]any{"title": v, "n": float64(i)}
	}
	return out
}

func titles(res Result) []string {
	out := make([]string, len(res.Results))
	for i, h := range res.Results {
		out[i] = h.Record["title"].(string)
	}
	return out
}

func TestRankScoring(t *testing.T) {
	res := Rank(docs("dog", "the cat sat", "category", "cat"), Options{
		Query: "cat", Fields: []string{"title"}, Fuzzy: true,
	})

	assert.Equal(t, []string{"cat", "category", "the cat sat"}, titles(res))
	require.Len(t, res.Results, 3)
	assert.Equal(t, 100, res.Results[0].Score)
	assert.Equal(t, 50, res.Results[1].Score)
	assert.Equal(t, 25, res.Results[2].Score)
	assert.Equal(t, 3, res.Total)
	assert.False(t, res.HasMore)
}

func TestRankCaseSensitivity(t *testing.T) {
	in := docs("Cat", "cat")

	res := Rank(in, Options{Query: "CAT", Fields: []string{"title"}, Fuzzy: true})
	assert.Equal(t, []string{"Cat", "cat"}, titles(res), "ties keep input order")

	res = Rank(in, Options{Query: "Cat", Fields: []string{"title"}, Fuzzy: true, CaseSensitive: true})
	assert.Equal(t, []string{"Cat"}, titles(res))
}

func TestRankExactMode(t *testing.T) {
	res := Rank(docs("cat", "category", "the cat sat"), Options{Query: "cat", Fields: []string{"title"}})
	assert.Equal(t, []string{"cat"}, titles(res))
}

func TestRankMultiWordFuzzy(t *testing.T) {
	in := docs(
		"red apple pie",    // all three words
		"red apple tart",   // two of three: 66%
		"green apple tart", // one of three: 33%
	)
	res := Rank(in, Options{Query: "red apple pie", Fields: []string{"title"}, Fuzzy: true})
	assert.Equal(t, []string{"red apple pie", "red apple tart"}, titles(res))
	assert.Equal(t, 100, res.Results[0].Score)
	assert.Equal(t, 10, res.Results[1].Score)
}

func TestRankAccumulatesAcrossFields(t *testing.T) {
	in := []map[string]any{
		{"title": "cat", "body": "nothing"},
		{"title": "cat", "body": "a cat"},
	}
	res := Rank(in, Options{Query: "cat", Fields: []string{"title", "body"}, Fuzzy: true})
	require.Len(t, res.Results, 2)
	assert.Equal(t, 125, res.Results[0].Score)
	assert.Equal(t, "a cat", res.Results[0].Record["body"])
	assert.Equal(t, 100, res.Results[1].Score)
}

func TestRankNonStringValues(t *testing.T) {
	in := []map[string]any{
		{"meta": map[string]any{"color": "blue"}},
		{"meta": nil},
		{"meta": []any{"blue", "green"}},
		{"count": float64(42)},
	}
	res := Rank(in, Options{Query: "blue", Fields: []string{"meta"}, Fuzzy: true})
	assert.Equal(t, 2, res.Total)

	res = Rank(in, Options{Query: "42", Fields: []string{"count"}, Fuzzy: true})
	assert.Equal(t, 1, res.Total)
	assert.Equal(t, 100, res.Results[0].Score)
}

func TestRankJSONKeepsMarkup(t *testing.T) {
	in := []map[string]any{
		{"meta": map[string]any{"html": "<b>bold</b> & more"}},
		{"meta": map[string]any{"html": "plain"}},
	}
	res := Rank(in, Options{Query: "<b>", Fields: []string{"meta"}, Fuzzy: true})
	require.Equal(t, 1, res.Total)

	res = Rank(in, Options{Query: "& more", Fields: []string{"meta"}})
	assert.Equal(t, 1, res.Total)
}

func TestRankPagination(t *testing.T) {
	values := make([]string, 0, 150)
	for i := 0; i < 150; i++ {
		values = append(values, "cat")
	}
	in := docs(values...)

	res := Rank(in, Options{Query: "cat", Fields: []string{"title"}, Fuzzy: true, Limit: 500})
	assert.Equal(t, MaxLimit, res.Limit)
	assert.Len(t, res.Results, MaxLimit)
	assert.True(t, res.HasMore)
	assert.Equal(t, float64(0), res.Results[0].Record["n"])

	res = Rank(in, Options{Query: "cat", Fields: []string{"title"}, Fuzzy: true, Page: 2, Limit: 100})
	assert.Len(t, res.Results, 50)
	assert.False(t, res.HasMore)
	assert.Equal(t, float64(100), res.Results[0].Record["n"])

	res = Rank(in, Options{Query: "cat", Fields: []string{"title"}, Fuzzy: true, Page: 9})
	assert.Empty(t, res.Results)
	assert.Equal(t, DefaultLimit, res.Limit)
	assert.Equal(t, 150, res.Total)
}

func TestFields(t *testing.T) {
	schema := core.Schema{Columns: []core.Column{
		{Name: "title", Type: core.TypeText},
		{Name: "price", Type: core.TypeNumber},
		{Name: "contact", Type: core.TypeEmail},
		{Name: "site", Type: core.TypeURL},
		{Name: "meta", Type: core.TypeJSON},
		{Name: "created", Type: core.TypeDate},
	}}
	assert.Equal(t, []string{"title", "contact", "site", "meta"}, Fields(schema, nil))
	assert.Equal(t, []string{"price"}, Fields(schema, []string{"price"}))
}
