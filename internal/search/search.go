// Package search ranks documents against a free-text query in memory.
package search

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/Hansade2005/pixel-pilot-sub013/internal/core"
)

// Paging defaults for search results.
const (
	DefaultLimit = 20
	MaxLimit     = 100
)

// Scores awarded per searched field.
const (
	scoreExact    = 100
	scorePrefix   = 50
	scoreContains = 25
	scorePerWord  = 5
)

// wordMatchRatio is the share of query words a field must contain for a
// multi-word fuzzy match.
const wordMatchRatio = 0.6

// Options controls matching and paging.
type Options struct {
	Query         string
	Fields        []string
	Fuzzy         bool
	CaseSensitive bool
	Page          int
	Limit         int
}

// Hit is one matched document with its relevance score.
type Hit struct {
	Record map[string]any `json:"record"`
	Score  int            `json:"score"`
}

// Result is one page of ranked hits.
type Result struct {
	Results []Hit    `json:"results"`
	Total   int      `json:"total"`
	Page    int      `json:"page"`
	Limit   int      `json:"limit"`
	HasMore bool     `json:"has_more"`
	Fields  []string `json:"fields"`
}

// Fields returns the explicit field list, or every text, email, url and json
// column of schema when none was given.
func Fields(schema core.Schema, explicit []string) []string {
	if len(explicit) > 0 {
		return explicit
	}
	return schema.SearchableColumns()
}

// Normalize fills in defaults and caps the limit.
func (o Options) Normalize() Options {
	if o.Page < 1 {
		o.Page = 1
	}
	o.Limit = core.ClampLimit(o.Limit, DefaultLimit, MaxLimit)
	return o
}

// Rank matches docs against opts, sorts the matches by descending score
// (ties keep input order) and returns the requested page.
func Rank(docs []map[string]any, opts Options) Result {
	opts = opts.Normalize()

	query := opts.Query
	if !opts.CaseSensitive {
		query = strings.ToLower(query)
	}
	words := strings.Fields(query)

	hits := make([]Hit, 0)
	for _, doc := range docs {
		matched := false
		score := 0
		for _, field := range opts.Fields {
			value, ok := fieldText(doc[field])
			if !ok {
				continue
			}
			if !opts.CaseSensitive {
				value = strings.ToLower(value)
			}
			if matches(value, query, words, opts.Fuzzy) {
				matched = true
			}
			score += scoreField(value, query, words)
		}
		if matched {
			hits = append(hits, Hit{Record: doc, Score: score})
		}
	}

	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })

	res := Result{Total: len(hits), Page: opts.Page, Limit: opts.Limit, Fields: opts.Fields, Results: []Hit{}}
	start := (opts.Page - 1) * opts.Limit
	if start < len(hits) {
		end := min(start+opts.Limit, len(hits))
		res.Results = hits[start:end]
		res.HasMore = end < len(hits)
	}
	return res
}

func matches(value, query string, words []string, fuzzy bool) bool {
	if !fuzzy {
		return value == query
	}
	if strings.Contains(value, query) {
		return true
	}
	if len(words) <= 1 {
		return false
	}
	found := 0
	for _, w := range words {
		if strings.Contains(value, w) {
			found++
		}
	}
	return float64(found)/float64(len(words)) >= wordMatchRatio
}

func scoreField(value, query string, words []string) int {
	switch {
	case value == query:
		return scoreExact
	case strings.HasPrefix(value, query):
		return scorePrefix
	case strings.Contains(value, query):
		return scoreContains
	}
	score := 0
	for _, w := range words {
		if strings.Contains(value, w) {
			score += scorePerWord
		}
	}
	return score
}

// fieldText renders a document value as the text it is searched by.
func fieldText(v any) (string, bool) {
	switch t := v.(type) {
	case nil:
		return "", false
	case string:
		return t, true
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), true
	case bool:
		return strconv.FormatBool(t), true
	case map[string]any, []any:
		b, err := core.MarshalDocument(t)
		if err != nil {
			return "", false
		}
		return string(b), true
	default:
		return fmt.Sprint(t), true
	}
}
