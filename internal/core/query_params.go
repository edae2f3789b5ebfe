// internal/core/query_params.go
package core

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// Default and limit constants for pagination
const (
	DefaultLimit   = 100
	MaxLimit       = 1000
	MaxSearchLimit = 100
	DefaultOrder   = "asc"
)

// Operator is a where-condition comparison.
type Operator string

const (
	OpEq        Operator = "="
	OpNeq       Operator = "!="
	OpGt        Operator = ">"
	OpLt        Operator = "<"
	OpGte       Operator = ">="
	OpLte       Operator = "<="
	OpLike      Operator = "LIKE"
	OpILike     Operator = "ILIKE"
	OpIn        Operator = "IN"
	OpNotIn     Operator = "NOT IN"
	OpIsNull    Operator = "IS NULL"
	OpIsNotNull Operator = "IS NOT NULL"
	OpContains  Operator = "CONTAINS"
)

var operators = map[Operator]struct{}{
	OpEq: {}, OpNeq: {}, OpGt: {}, OpLt: {}, OpGte: {}, OpLte: {}, OpLike: {}, OpILike: {},
	OpIn: {}, OpNotIn: {}, OpIsNull: {}, OpIsNotNull: {}, OpContains: {},
}

// NormalizeOperator upper-cases op, collapses inner whitespace and maps "<>" and "==".
func NormalizeOperator(op string) (Operator, bool) {
	norm := Operator(strings.Join(strings.Fields(strings.ToUpper(op)), " "))
	switch norm {
	case "<>":
		norm = OpNeq
	case "==":
		norm = OpEq
	}
	_, ok := operators[norm]
	return norm, ok
}

// Logic joins a condition to the one before it.
type Logic string

const (
	LogicAnd Logic = "AND"
	LogicOr  Logic = "OR"
)

// Condition is one entry of a where list.
type Condition struct {
	Field    string   `json:"field"`
	Operator Operator `json:"operator"`
	Value    any      `json:"value,omitempty"`
	Logic    Logic    `json:"logic,omitempty"`
}

// Aggregate is a having-clause aggregate function.
type Aggregate string

const (
	AggCount Aggregate = "count"
	AggSum   Aggregate = "sum"
	AggAvg   Aggregate = "avg"
	AggMin   Aggregate = "min"
	AggMax   Aggregate = "max"
)

// HavingCondition filters groups on an aggregate value.
type HavingCondition struct {
	Aggregate Aggregate `json:"aggregate"`
	Field     string    `json:"field,omitempty"`
	Operator  Operator  `json:"operator"`
	Value     float64   `json:"value"`
}

// QueryRequest is a structured read over one table's records.
type QueryRequest struct {
	Select         []string
	Where          []Condition
	Search         string
	SearchFields   []string
	SearchAnyWord  bool // match records containing any word of Search
	OrderBy        string
	OrderDirection string // "asc" or "desc"
	GroupBy        string
	Having         []HavingCondition
	Limit          int
	Offset         int
	CountExact     bool
}

// NewQueryRequest returns a request with the default paging.
func NewQueryRequest() *QueryRequest {
	return &QueryRequest{Limit: DefaultLimit, OrderDirection: DefaultOrder, CountExact: true}
}

// ClampLimit bounds n to [1, max]; zero or negative yields def.
func ClampLimit(n, def, max int) int {
	if n <= 0 {
		return def
	}
	if n > max {
		return max
	}
	return n
}

// ClampOffset bounds n to >= 0.
func ClampOffset(n int) int {
	if n < 0 {
		return 0
	}
	return n
}

// ParseQueryRequest reads the query-string form used by the list and query
// endpoints. conditions and having are JSON documents; select, searchFields
// are comma separated. limit and offset are clamped rather than rejected.
func ParseQueryRequest(q url.Values) (*QueryRequest, error) {
	req := NewQueryRequest()

	if limitStr := q.Get("limit"); limitStr != "" {
		limit, err := strconv.Atoi(limitStr)
		if err != nil {
			return nil, queryErr("invalid 'limit' parameter: must be an integer")
		}
		req.Limit = ClampLimit(limit, 1, MaxLimit)
	}
	if offsetStr := q.Get("offset"); offsetStr != "" {
		offset, err := strconv.Atoi(offsetStr)
		if err != nil {
			return nil, queryErr("invalid 'offset' parameter: must be an integer")
		}
		req.Offset = ClampOffset(offset)
	}

	req.Search = strings.TrimSpace(q.Get("search"))
	fields, err := parseFieldList(q.Get("searchFields"), "searchFields")
	if err != nil {
		return nil, err
	}
	req.SearchFields = fields

	if req.Select, err = parseFieldList(q.Get("select"), "select"); err != nil {
		return nil, err
	}

	orderBy := q.Get("orderBy")
	if orderBy == "" {
		orderBy = q.Get("sort")
	}
	if orderBy != "" {
		if !isFieldName(orderBy) {
			return nil, queryErr(fmt.Sprintf("invalid 'orderBy' parameter: '%s' is not a valid column name", orderBy))
		}
		req.OrderBy = orderBy
	}
	direction := q.Get("orderDirection")
	if direction == "" {
		direction = q.Get("order")
	}
	if direction != "" {
		lower := strings.ToLower(direction)
		if lower != "asc" && lower != "desc" {
			return nil, queryErr("invalid 'orderDirection' parameter: must be 'asc' or 'desc'")
		}
		req.OrderDirection = lower
	}

	if raw := q.Get("conditions"); raw != "" {
		conds, err := ParseConditions([]byte(raw))
		if err != nil {
			return nil, err
		}
		req.Where = conds
	}

	if groupBy := q.Get("groupBy"); groupBy != "" {
		if !isFieldName(groupBy) {
			return nil, queryErr(fmt.Sprintf("invalid 'groupBy' parameter: '%s' is not a valid column name", groupBy))
		}
		req.GroupBy = groupBy
	}
	if raw := q.Get("having"); raw != "" {
		if req.GroupBy == "" {
			return nil, queryErr("'having' requires 'groupBy'")
		}
		having, err := ParseHaving([]byte(raw))
		if err != nil {
			return nil, err
		}
		req.Having = having
	}

	switch strings.ToLower(q.Get("count")) {
	case "", "exact":
		req.CountExact = true
	case "none", "false":
		req.CountExact = false
	default:
		return nil, queryErr("invalid 'count' parameter: must be 'exact' or 'none'")
	}
	return req, nil
}

// ParseConditions decodes and validates a JSON array of where conditions.
func ParseConditions(raw []byte) ([]Condition, error) {
	var items []struct {
		Field    string `json:"field"`
		Operator string `json:"operator"`
		Value    any    `json:"value"`
		Logic    string `json:"logic"`
	}
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, queryErr("invalid 'conditions' parameter: must be a JSON array of {field, operator, value, logic}")
	}
	conds := make([]Condition, 0, len(items))
	for i, it := range items {
		c := Condition{Field: it.Field, Value: it.Value, Logic: LogicAnd}
		if !isFieldName(it.Field) {
			return nil, queryErr(fmt.Sprintf("condition %d: '%s' is not a valid field name", i, it.Field))
		}
		op, ok := NormalizeOperator(it.Operator)
		if !ok {
			return nil, queryErr(fmt.Sprintf("condition %d: unsupported operator '%s'", i, it.Operator))
		}
		c.Operator = op
		switch strings.ToUpper(strings.TrimSpace(it.Logic)) {
		case "", "AND":
		case "OR":
			c.Logic = LogicOr
		default:
			return nil, queryErr(fmt.Sprintf("condition %d: logic must be AND or OR", i))
		}
		if err := checkConditionValue(c); err != nil {
			return nil, queryErr(fmt.Sprintf("condition %d: %v", i, err))
		}
		conds = append(conds, c)
	}
	return conds, nil
}

func checkConditionValue(c Condition) error {
	switch c.Operator {
	case OpIsNull, OpIsNotNull:
		return nil
	case OpIn, OpNotIn:
		list, ok := c.Value.([]any)
		if !ok || len(list) == 0 {
			return fmt.Errorf("operator %s needs a non-empty array value", c.Operator)
		}
		return nil
	case OpLike, OpILike, OpContains:
		if _, ok := c.Value.(string); !ok {
			return fmt.Errorf("operator %s needs a string value", c.Operator)
		}
		return nil
	}
	if c.Value == nil {
		return fmt.Errorf("operator %s needs a value", c.Operator)
	}
	switch c.Value.(type) {
	case map[string]any, []any:
		return fmt.Errorf("operator %s needs a scalar value", c.Operator)
	}
	return nil
}

// ParseHaving accepts either a single having object or an array of them.
func ParseHaving(raw []byte) ([]HavingCondition, error) {
	type item struct {
		Aggregate string  `json:"aggregate"`
		Field     string  `json:"field"`
		Operator  string  `json:"operator"`
		Value     float64 `json:"value"`
	}
	var items []item
	if err := json.Unmarshal(raw, &items); err != nil {
		var single item
		if err := json.Unmarshal(raw, &single); err != nil {
			return nil, queryErr("invalid 'having' parameter: must be a JSON object or array of {aggregate, field, operator, value}")
		}
		items = []item{single}
	}
	out := make([]HavingCondition, 0, len(items))
	for i, it := range items {
		agg := Aggregate(strings.ToLower(strings.TrimSpace(it.Aggregate)))
		if agg == "" {
			agg = AggCount
		}
		switch agg {
		case AggCount:
		case AggSum, AggAvg, AggMin, AggMax:
			if !IsValidIdentifier(it.Field) {
				return nil, queryErr(fmt.Sprintf("having %d: aggregate %s needs a valid field", i, agg))
			}
		default:
			return nil, queryErr(fmt.Sprintf("having %d: unsupported aggregate '%s'", i, it.Aggregate))
		}
		op, ok := NormalizeOperator(it.Operator)
		if !ok || !op.IsComparison() {
			return nil, queryErr(fmt.Sprintf("having %d: unsupported operator '%s'", i, it.Operator))
		}
		out = append(out, HavingCondition{Aggregate: agg, Field: it.Field, Operator: op, Value: it.Value})
	}
	return out, nil
}

// IsComparison reports whether op is one of =, !=, >, <, >=, <=.
func (op Operator) IsComparison() bool {
	switch op {
	case OpEq, OpNeq, OpGt, OpLt, OpGte, OpLte:
		return true
	}
	return false
}

func parseFieldList(raw, param string) ([]string, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	parts := strings.Split(raw, ",")
	fields := make([]string, 0, len(parts))
	for _, f := range parts {
		f = strings.TrimSpace(f)
		if f == "" || f == "*" {
			continue
		}
		if !isFieldName(f) {
			return nil, queryErr(fmt.Sprintf("invalid '%s' parameter: '%s' is not a valid column name", param, f))
		}
		fields = append(fields, f)
	}
	return fields, nil
}

func isFieldName(name string) bool {
	return IsSystemField(name) || IsValidIdentifier(name)
}

func queryErr(msg string) error {
	return ValidationError(CodeInvalidQuery, msg, nil)
}
