// internal/storage/query_builder.go
package storage

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/Hansade2005/pixel-pilot-sub013/internal/core"
)

const recordColumns = `id, data_json, created_at, updated_at`

// queryBuilder renders QueryRequests over one table's records for a dialect.
// Field names reaching it have been validated as identifiers by core.
type queryBuilder struct {
	d       Dialect
	tableID int64
	schema  core.Schema
}

func newQueryBuilder(d Dialect, tableID int64, schema core.Schema) *queryBuilder {
	return &queryBuilder{d: d, tableID: tableID, schema: schema}
}

// ExprKindFor picks the projection for a column type.
func ExprKindFor(t core.ColumnType) ExprKind {
	switch t {
	case core.TypeNumber:
		return ExprNumber
	case core.TypeBoolean:
		return ExprBool
	case core.TypeJSON:
		return ExprJSON
	}
	return ExprText
}

// kindOf returns the comparison kind of field. Fields outside the schema are
// compared by the type of the value they are compared with.
func (b *queryBuilder) kindOf(field string, value any) ExprKind {
	if col, ok := b.schema.Column(field); ok {
		if k := ExprKindFor(col.Type); k != ExprJSON {
			return k
		}
		return ExprText
	}
	if _, ok := core.AsFloat(value); ok {
		return ExprNumber
	}
	if _, ok := value.(bool); ok {
		return ExprBool
	}
	return ExprText
}

func (b *queryBuilder) expr(field string, kind ExprKind) string {
	if core.IsSystemField(field) {
		return field
	}
	return b.d.FieldExpr(field, kind)
}

func (b *queryBuilder) textExpr(field string) string {
	switch field {
	case "id":
		return "id"
	case "created_at", "updated_at":
		return b.d.TextCast(field)
	}
	return b.d.FieldExpr(field, ExprText)
}

// base is the table filter. The id is inlined so partial indexes qualify.
func (b *queryBuilder) base() string {
	return fmt.Sprintf("table_id = %d", b.tableID)
}

// filter renders the WHERE body (without the keyword) for req's where list and search.
func (b *queryBuilder) filter(req *core.QueryRequest) (string, []any, error) {
	clauses := []string{b.base()}
	var args []any

	if len(req.Where) > 0 {
		where, whereArgs, err := b.where(req.Where)
		if err != nil {
			return "", nil, err
		}
		clauses = append(clauses, where)
		args = append(args, whereArgs...)
	}
	if req.Search != "" {
		terms := []string{req.Search}
		if words := strings.Fields(req.Search); req.SearchAnyWord && len(words) > 0 {
			terms = words
		}
		parts := make([]string, 0, len(terms))
		for _, term := range terms {
			search, searchArgs := b.SearchFilter(term, req.SearchFields)
			parts = append(parts, search)
			args = append(args, searchArgs...)
		}
		clauses = append(clauses, "("+strings.Join(parts, " OR ")+")")
	}
	return strings.Join(clauses, " AND "), args, nil
}

// where groups consecutive AND-joined conditions and ORs the groups, so AND
// binds tighter than OR: [a, OR b, c] reads as (a) OR (b AND c).
func (b *queryBuilder) where(conds []core.Condition) (string, []any, error) {
	var groups [][]string
	var args []any
	for i, c := range conds {
		sql, condArgs, err := b.condition(c)
		if err != nil {
			return "", nil, err
		}
		if i == 0 || c.Logic == core.LogicOr {
			groups = append(groups, []string{sql})
		} else {
			groups[len(groups)-1] = append(groups[len(groups)-1], sql)
		}
		args = append(args, condArgs...)
	}
	parts := make([]string, len(groups))
	for i, g := range groups {
		parts[i] = "(" + strings.Join(g, " AND ") + ")"
	}
	return "(" + strings.Join(parts, " OR ") + ")", args, nil
}

func (b *queryBuilder) condition(c core.Condition) (string, []any, error) {
	switch c.Operator {
	case core.OpIsNull:
		return b.textExpr(c.Field) + " IS NULL", nil, nil
	case core.OpIsNotNull:
		return b.textExpr(c.Field) + " IS NOT NULL", nil, nil
	case core.OpLike:
		return b.textExpr(c.Field) + " LIKE ?", []any{c.Value}, nil
	case core.OpILike:
		return b.d.ILike(b.textExpr(c.Field)), []any{c.Value}, nil
	case core.OpContains:
		s, _ := c.Value.(string)
		return b.d.ILike(b.textExpr(c.Field)), []any{"%" + EscapeLike(s) + "%"}, nil
	case core.OpIn, core.OpNotIn:
		list, _ := c.Value.([]any)
		if len(list) == 0 {
			return "", nil, invalidQuery("operator %s on '%s' needs a non-empty list", c.Operator, c.Field)
		}
		kind := b.kindOf(c.Field, list[0])
		args := make([]any, 0, len(list))
		for _, v := range list {
			a, err := b.arg(c.Field, kind, v)
			if err != nil {
				return "", nil, err
			}
			args = append(args, a)
		}
		placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(list)), ", ")
		return fmt.Sprintf("%s %s (%s)", b.expr(c.Field, kind), c.Operator, placeholders), args, nil
	}

	if !c.Operator.IsComparison() {
		return "", nil, invalidQuery("unsupported operator '%s'", c.Operator)
	}
	kind := b.kindOf(c.Field, c.Value)
	a, err := b.arg(c.Field, kind, c.Value)
	if err != nil {
		return "", nil, err
	}
	op := string(c.Operator)
	if c.Operator == core.OpNeq {
		op = "<>"
	}
	return fmt.Sprintf("%s %s ?", b.expr(c.Field, kind), op), []any{a}, nil
}

// arg converts a decoded JSON value into a bind argument for kind.
func (b *queryBuilder) arg(field string, kind ExprKind, v any) (any, error) {
	if field == "created_at" || field == "updated_at" {
		if s, ok := v.(string); ok {
			if t, ok := core.ParseTime(s); ok {
				return t.UTC(), nil
			}
		}
		return nil, invalidQuery("field '%s' must be compared with a date or timestamp", field)
	}
	switch kind {
	case ExprNumber:
		if f, ok := core.AsFloat(v); ok {
			return f, nil
		}
		if s, ok := v.(string); ok {
			if f, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil {
				return f, nil
			}
		}
		return nil, invalidQuery("field '%s' must be compared with a number", field)
	case ExprBool:
		switch t := v.(type) {
		case bool:
			return b.d.BoolArg(t), nil
		case string:
			if parsed, err := strconv.ParseBool(t); err == nil {
				return b.d.BoolArg(parsed), nil
			}
		}
		return nil, invalidQuery("field '%s' must be compared with a boolean", field)
	}
	switch t := v.(type) {
	case string:
		return t, nil
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), nil
	case bool:
		return strconv.FormatBool(t), nil
	case time.Time:
		return t.UTC().Format(time.RFC3339Nano), nil
	}
	return fmt.Sprintf("%v", v), nil
}

// SearchFilter matches records whose fields contain term, case-insensitively.
// With no fields it falls back to the whole document text.
func (b *queryBuilder) SearchFilter(term string, fields []string) (string, []any) {
	pattern := "%" + EscapeLike(term) + "%"
	if len(fields) == 0 {
		fields = b.schema.SearchableColumns()
	}
	if len(fields) == 0 {
		return b.d.ILike(b.d.DocumentText()), []any{pattern}
	}
	parts := make([]string, len(fields))
	args := make([]any, len(fields))
	for i, f := range fields {
		parts[i] = b.d.ILike(b.textExpr(f))
		args[i] = pattern
	}
	return "(" + strings.Join(parts, " OR ") + ")", args
}

func (b *queryBuilder) orderBy(req *core.QueryRequest) string {
	dir := "ASC"
	if strings.EqualFold(req.OrderDirection, "desc") {
		dir = "DESC"
	}
	if req.OrderBy == "" {
		return "created_at " + dir + ", id " + dir
	}
	return fmt.Sprintf("%s %s, id %s", b.expr(req.OrderBy, b.kindOf(req.OrderBy, nil)), dir, dir)
}

// Select renders the page query. fetch is the LIMIT to use (limit+1 when the
// caller derives has_more without a total).
func (b *queryBuilder) Select(req *core.QueryRequest, fetch int) (string, []any, error) {
	where, args, err := b.filter(req)
	if err != nil {
		return "", nil, err
	}
	// nolint:gosec // expressions are built from validated identifiers
	query := fmt.Sprintf("SELECT %s FROM records WHERE %s ORDER BY %s LIMIT ? OFFSET ?",
		recordColumns, where, b.orderBy(req))
	return b.d.Rebind(query), append(args, fetch, req.Offset), nil
}

// Count renders the exact-total query for req.
func (b *queryBuilder) Count(req *core.QueryRequest) (string, []any, error) {
	where, args, err := b.filter(req)
	if err != nil {
		return "", nil, err
	}
	return b.d.Rebind("SELECT COUNT(*) FROM records WHERE " + where), args, nil
}

// aggregateColumn names an aggregate in group results, e.g. "sum_amount".
func aggregateColumn(h core.HavingCondition) string {
	if h.Aggregate == core.AggCount {
		return "count"
	}
	return string(h.Aggregate) + "_" + h.Field
}

func (b *queryBuilder) aggregateExpr(h core.HavingCondition) string {
	if h.Aggregate == core.AggCount {
		return "COUNT(*)"
	}
	return fmt.Sprintf("%s(%s)", strings.ToUpper(string(h.Aggregate)), b.expr(h.Field, ExprNumber))
}

// groupAggregates returns the distinct non-count aggregates named by having.
func groupAggregates(having []core.HavingCondition) []core.HavingCondition {
	seen := map[string]bool{"count": true}
	var out []core.HavingCondition
	for _, h := range having {
		name := aggregateColumn(h)
		if seen[name] {
			continue
		}
		seen[name] = true
		out = append(out, h)
	}
	return out
}

func (b *queryBuilder) groupBody(req *core.QueryRequest) (string, []any, error) {
	where, args, err := b.filter(req)
	if err != nil {
		return "", nil, err
	}
	groupExpr := b.expr(req.GroupBy, b.kindOf(req.GroupBy, nil))
	body := fmt.Sprintf("FROM records WHERE %s GROUP BY %s", where, groupExpr)
	if len(req.Having) > 0 {
		parts := make([]string, len(req.Having))
		for i, h := range req.Having {
			op := string(h.Operator)
			if h.Operator == core.OpNeq {
				op = "<>"
			}
			parts[i] = fmt.Sprintf("%s %s ?", b.aggregateExpr(h), op)
			args = append(args, h.Value)
		}
		body += " HAVING " + strings.Join(parts, " AND ")
	}
	return body, args, nil
}

// Group renders a grouped aggregate query. Columns are the group value, the
// row count, then one column per aggregate returned by groupAggregates.
func (b *queryBuilder) Group(req *core.QueryRequest) (string, []any, error) {
	body, args, err := b.groupBody(req)
	if err != nil {
		return "", nil, err
	}
	groupExpr := b.expr(req.GroupBy, b.kindOf(req.GroupBy, nil))
	cols := []string{groupExpr + " AS grp", "COUNT(*) AS cnt"}
	for i, h := range groupAggregates(req.Having) {
		cols = append(cols, fmt.Sprintf("%s AS agg%d", b.aggregateExpr(h), i))
	}
	dir := "ASC"
	if strings.EqualFold(req.OrderDirection, "desc") {
		dir = "DESC"
	}
	// nolint:gosec // expressions are built from validated identifiers
	query := fmt.Sprintf("SELECT %s %s ORDER BY grp %s LIMIT ? OFFSET ?", strings.Join(cols, ", "), body, dir)
	return b.d.Rebind(query), append(args, req.Limit, req.Offset), nil
}

// GroupCount renders the number of groups that survive the having clause.
func (b *queryBuilder) GroupCount(req *core.QueryRequest) (string, []any, error) {
	body, args, err := b.groupBody(req)
	if err != nil {
		return "", nil, err
	}
	return b.d.Rebind("SELECT COUNT(*) FROM (SELECT 1 " + body + ") grouped"), args, nil
}

// EscapeLike escapes LIKE wildcards so s matches literally (escape char '\').
func EscapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

func invalidQuery(format string, args ...any) error {
	return core.ValidationError(core.CodeInvalidQuery, fmt.Sprintf(format, args...), nil)
}
