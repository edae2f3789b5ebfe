// internal/core/schema.go
package core

import (
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// ColumnType is the closed set of column types a schema may declare.
type ColumnType string

const (
	TypeText      ColumnType = "text"
	TypeNumber    ColumnType = "number"
	TypeBoolean   ColumnType = "boolean"
	TypeDate      ColumnType = "date"
	TypeDatetime  ColumnType = "datetime"
	TypeTimestamp ColumnType = "timestamp"
	TypeUUID      ColumnType = "uuid"
	TypeJSON      ColumnType = "json"
	TypeEmail     ColumnType = "email"
	TypeURL       ColumnType = "url"
)

// typeSpec holds the per-variant behaviour of a ColumnType.
type typeSpec struct {
	check      func(v any) error
	searchable bool
	temporal   bool
}

var columnTypes = map[ColumnType]typeSpec{
	TypeText:      {check: checkText, searchable: true},
	TypeNumber:    {check: checkNumber},
	TypeBoolean:   {check: checkBoolean},
	TypeDate:      {check: checkTemporal, temporal: true},
	TypeDatetime:  {check: checkTemporal, temporal: true},
	TypeTimestamp: {check: checkTemporal, temporal: true},
	TypeUUID:      {check: checkUUID},
	TypeJSON:      {check: checkJSON, searchable: true},
	TypeEmail:     {check: checkEmail, searchable: true},
	TypeURL:       {check: checkURL, searchable: true},
}

// NormalizeColumnType lower-cases and trims s and reports whether it names a supported type.
func NormalizeColumnType(s string) (ColumnType, bool) {
	t := ColumnType(strings.ToLower(strings.TrimSpace(s)))
	_, ok := columnTypes[t]
	return t, ok
}

// Valid reports whether t is one of the supported types.
func (t ColumnType) Valid() bool {
	_, ok := columnTypes[t]
	return ok
}

// Searchable reports whether free-text search considers columns of this type by default.
func (t ColumnType) Searchable() bool { return columnTypes[t].searchable }

// Temporal reports whether values of this type are dates or timestamps.
func (t ColumnType) Temporal() bool { return columnTypes[t].temporal }

// Check validates a non-null document value against the type.
func (t ColumnType) Check(v any) error {
	spec, ok := columnTypes[t]
	if !ok {
		return fmt.Errorf("unsupported column type %q", t)
	}
	return spec.check(v)
}

// Reference points a column at a column of another table in the same database.
type Reference struct {
	Table    string `json:"table" yaml:"table"`
	Column   string `json:"column,omitempty" yaml:"column,omitempty"`
	OnDelete string `json:"onDelete,omitempty" yaml:"onDelete,omitempty"`
	OnUpdate string `json:"onUpdate,omitempty" yaml:"onUpdate,omitempty"`
}

// Column describes one key of the documents stored in a table.
type Column struct {
	Name       string     `json:"name" yaml:"name"`
	Type       ColumnType `json:"type" yaml:"type"`
	Required   bool       `json:"required,omitempty" yaml:"required,omitempty"`
	Unique     bool       `json:"unique,omitempty" yaml:"unique,omitempty"`
	PrimaryKey bool       `json:"primary_key,omitempty" yaml:"primary_key,omitempty"`
	Default    any        `json:"default,omitempty" yaml:"default,omitempty"`
	Indexed    bool       `json:"indexed,omitempty" yaml:"indexed,omitempty"`
	Pattern    string     `json:"pattern,omitempty" yaml:"pattern,omitempty"`
	Enum       []any      `json:"enum,omitempty" yaml:"enum,omitempty"`
	Min        *float64   `json:"min,omitempty" yaml:"min,omitempty"`
	Max        *float64   `json:"max,omitempty" yaml:"max,omitempty"`
	MinLength  *int       `json:"minLength,omitempty" yaml:"minLength,omitempty"`
	MaxLength  *int       `json:"maxLength,omitempty" yaml:"maxLength,omitempty"`
	References *Reference `json:"references,omitempty" yaml:"references,omitempty"`
}

// NeedsIndex reports whether the column gets a secondary index.
func (c Column) NeedsIndex() bool { return c.Indexed || c.Unique || c.PrimaryKey }

// IsUnique reports whether the column's index enforces uniqueness.
func (c Column) IsUnique() bool { return c.Unique || c.PrimaryKey }

// Schema is the ordered column list of a table.
type Schema struct {
	Columns []Column `json:"columns" yaml:"columns"`
}

// Column looks up a column by exact name.
func (s Schema) Column(name string) (Column, bool) {
	for _, c := range s.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return Column{}, false
}

// SearchableColumns returns the names of text, email, url and json columns in order.
func (s Schema) SearchableColumns() []string {
	var names []string
	for _, c := range s.Columns {
		if c.Type.Searchable() {
			names = append(names, c.Name)
		}
	}
	return names
}

// ReferencedTables returns the distinct table names this schema points at, excluding self.
func (s Schema) ReferencedTables(self string) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, c := range s.Columns {
		if c.References == nil || c.References.Table == "" || c.References.Table == self {
			continue
		}
		if _, ok := seen[c.References.Table]; ok {
			continue
		}
		seen[c.References.Table] = struct{}{}
		out = append(out, c.References.Table)
	}
	return out
}

// ParseSchema decodes a raw schema document and validates it. Unlike a plain
// json.Unmarshal it reports a missing or non-list "columns" and per-column
// decoding problems as validation errors instead of failing outright.
func ParseSchema(raw json.RawMessage) (Schema, FieldErrors) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return Schema{}, FieldErrors{ferr(CodeInvalidSchema, "columns", "schema.columns is required")}
	}
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(raw, &doc); err != nil {
		return Schema{}, FieldErrors{ferr(CodeInvalidSchema, "", "schema must be a JSON object")}
	}
	rawCols, ok := doc["columns"]
	if !ok {
		return Schema{}, FieldErrors{ferr(CodeInvalidSchema, "columns", "schema.columns is required")}
	}
	var items []json.RawMessage
	if err := json.Unmarshal(rawCols, &items); err != nil || items == nil {
		return Schema{}, FieldErrors{ferr(CodeInvalidSchema, "columns", "schema.columns must be a list")}
	}

	var errs FieldErrors
	schema := Schema{Columns: make([]Column, 0, len(items))}
	for i, item := range items {
		var col Column
		if err := json.Unmarshal(item, &col); err != nil {
			errs = append(errs, ferr(CodeInvalidColumn, fmt.Sprintf("columns[%d]", i),
				"column %d is malformed: %v", i, err))
			continue
		}
		if t, ok := NormalizeColumnType(string(col.Type)); ok {
			col.Type = t
		}
		schema.Columns = append(schema.Columns, col)
	}
	if len(errs) > 0 {
		return schema, errs
	}
	return schema, ValidateSchema(schema)
}

// ValidateSchema checks column names, types, uniqueness and constraint options.
// It has no side effects; a nil result means the schema is valid.
func ValidateSchema(s Schema) FieldErrors {
	if len(s.Columns) == 0 {
		return FieldErrors{ferr(CodeInvalidSchema, "columns", "schema.columns must contain at least one column")}
	}

	var errs FieldErrors
	seen := make(map[string]struct{}, len(s.Columns))
	// Index names fold case, so indexed columns must differ by more than case.
	indexedAs := make(map[string]string, len(s.Columns))
	for i, col := range s.Columns {
		field := col.Name
		if field == "" {
			field = fmt.Sprintf("columns[%d]", i)
		}
		if !IsValidIdentifier(col.Name) {
			errs = append(errs, ferr(CodeInvalidColumn, field, "column %d has an invalid name %q", i, col.Name))
		} else if _, dup := seen[col.Name]; dup {
			errs = append(errs, ferr(CodeDuplicateColumn, field, "duplicate column name %q", col.Name))
		} else {
			seen[col.Name] = struct{}{}
			if col.NeedsIndex() {
				folded := strings.ToLower(col.Name)
				if other, clash := indexedAs[folded]; clash {
					errs = append(errs, ferr(CodeDuplicateColumn, field,
						"indexed columns %q and %q differ only by case", other, col.Name))
				} else {
					indexedAs[folded] = col.Name
				}
			}
		}

		if !col.Type.Valid() {
			errs = append(errs, ferr(CodeInvalidColumn, field, "column %q has unsupported type %q", col.Name, col.Type))
		}
		if col.Pattern != "" {
			if _, err := regexp.Compile(col.Pattern); err != nil {
				errs = append(errs, ferr(CodeInvalidColumn, field, "column %q has an invalid pattern: %v", col.Name, err))
			}
		}
		if col.Min != nil && col.Max != nil && *col.Min > *col.Max {
			errs = append(errs, ferr(CodeInvalidColumn, field, "column %q has min greater than max", col.Name))
		}
		if col.MinLength != nil && col.MaxLength != nil && *col.MinLength > *col.MaxLength {
			errs = append(errs, ferr(CodeInvalidColumn, field, "column %q has minLength greater than maxLength", col.Name))
		}
		if col.References != nil && !IsValidIdentifier(col.References.Table) {
			errs = append(errs, ferr(CodeInvalidColumn, field, "column %q references an invalid table name %q", col.Name, col.References.Table))
		}
	}
	return errs
}
