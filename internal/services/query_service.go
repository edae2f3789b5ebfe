package services

import (
	"context"
	"strings"

	"github.com/Hansade2005/pixel-pilot-sub013/internal/core"
	"github.com/Hansade2005/pixel-pilot-sub013/internal/search"
	"github.com/Hansade2005/pixel-pilot-sub013/internal/storage"
)

// QueryService runs structured queries and ranked searches over a table.
type QueryService struct {
	base
}

// QueryResult is the answer to a structured query. Groups is set instead of
// Records when the request groups.
type QueryResult struct {
	Records []map[string]any   `json:"records,omitempty"`
	Groups  []storage.GroupRow `json:"groups,omitempty"`
	Total   *int64             `json:"total,omitempty"`
	Limit   int                `json:"limit"`
	Offset  int                `json:"offset"`
	HasMore bool               `json:"has_more"`
}

// Query executes req against the table. Select narrows each returned record to
// the listed fields.
func (s *QueryService) Query(ctx context.Context, databaseID, tableID int64, req *core.QueryRequest) (*QueryResult, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	table, err := s.store.GetTable(ctx, databaseID, tableID)
	if err != nil {
		return nil, err
	}
	out := &QueryResult{Limit: req.Limit, Offset: req.Offset}

	if req.GroupBy != "" {
		page, err := s.store.GroupRecords(ctx, tableID, table.Schema, req)
		if err != nil {
			return nil, err
		}
		out.Groups = page.Groups
		out.HasMore = page.HasMore
		if page.Total >= 0 {
			out.Total = &page.Total
		}
		return out, nil
	}

	page, err := s.store.QueryRecords(ctx, tableID, table.Schema, req)
	if err != nil {
		return nil, err
	}
	out.Records = make([]map[string]any, 0, len(page.Records))
	for _, r := range page.Records {
		out.Records = append(out.Records, project(r.Flatten(), req.Select))
	}
	out.HasMore = page.HasMore
	if page.Total >= 0 {
		out.Total = &page.Total
	}
	return out, nil
}

func project(doc map[string]any, fields []string) map[string]any {
	if len(fields) == 0 {
		return doc
	}
	out := make(map[string]any, len(fields))
	for _, f := range fields {
		if v, ok := doc[f]; ok {
			out[f] = v
		}
	}
	return out
}

// Search ranks the table's records against opts.Query. Candidates are
// narrowed in storage with a substring filter that folds case the same way
// the ranking does, then scored and paginated in memory.
func (s *QueryService) Search(ctx context.Context, databaseID, tableID int64, opts search.Options) (*search.Result, error) {
	if strings.TrimSpace(opts.Query) == "" {
		return nil, core.ValidationError(core.CodeInvalidQuery, "Search query must not be empty", nil)
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	table, err := s.store.GetTable(ctx, databaseID, tableID)
	if err != nil {
		return nil, err
	}
	for _, f := range opts.Fields {
		if _, ok := table.Schema.Column(f); !ok && !core.IsSystemField(f) {
			return nil, core.ValidationError(core.CodeInvalidQuery,
				"Unknown search field '"+f+"'", map[string]string{"field": f})
		}
	}
	opts.Fields = search.Fields(table.Schema, opts.Fields)
	if len(opts.Fields) == 0 {
		res := search.Rank(nil, opts)
		return &res, nil
	}

	prefilter := &core.QueryRequest{
		Search:         opts.Query,
		SearchFields:   opts.Fields,
		SearchAnyWord:  opts.Fuzzy,
		OrderBy:        "created_at",
		OrderDirection: "asc",
		Limit:          core.MaxLimit,
	}
	page, err := s.store.QueryRecords(ctx, tableID, table.Schema, prefilter)
	if err != nil {
		return nil, err
	}
	if page.HasMore {
		customLog.Warnf("Service: search on table %d matched more than %d candidates; ranking the first %d",
			tableID, core.MaxLimit, core.MaxLimit)
	}

	docs := make([]map[string]any, 0, len(page.Records))
	for _, r := range page.Records {
		docs = append(docs, r.Flatten())
	}
	res := search.Rank(docs, opts)
	return &res, nil
}
