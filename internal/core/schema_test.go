// internal/core/schema_test.go
package core

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSchema(t *testing.T) {
	testCases := []struct {
		name     string
		raw      string
		wantCode string // empty means valid
	}{
		{"valid two columns", `{"columns":[{"name":"title","type":"text","required":true},{"name":"price","type":"NUMBER"}]}`, ""},
		{"missing columns", `{}`, CodeInvalidSchema},
		{"null document", `null`, CodeInvalidSchema},
		{"columns not a list", `{"columns":{"name":"x"}}`, CodeInvalidSchema},
		{"empty columns", `{"columns":[]}`, CodeInvalidSchema},
		{"bad column name", `{"columns":[{"name":"1st","type":"text"}]}`, CodeInvalidColumn},
		{"unsupported type", `{"columns":[{"name":"x","type":"varchar"}]}`, CodeInvalidColumn},
		{"duplicate column", `{"columns":[{"name":"x","type":"text"},{"name":"x","type":"number"}]}`, CodeDuplicateColumn},
		{"case differs is not duplicate", `{"columns":[{"name":"x","type":"text"},{"name":"X","type":"number"}]}`, ""},
		{"indexed columns differing by case", `{"columns":[{"name":"email","type":"email","unique":true},{"name":"EMAIL","type":"email","unique":true}]}`, CodeDuplicateColumn},
		{"case clash with one unindexed column", `{"columns":[{"name":"email","type":"email","unique":true},{"name":"Email","type":"text"}]}`, ""},
		{"malformed column", `{"columns":[{"name":5}]}`, CodeInvalidColumn},
		{"bad pattern", `{"columns":[{"name":"code","type":"text","pattern":"[a-"}]}`, CodeInvalidColumn},
		{"min over max", `{"columns":[{"name":"n","type":"number","min":10,"max":1}]}`, CodeInvalidColumn},
		{"minLength over maxLength", `{"columns":[{"name":"s","type":"text","minLength":5,"maxLength":2}]}`, CodeInvalidColumn},
		{"reference without table", `{"columns":[{"name":"owner","type":"uuid","references":{"table":""}}]}`, CodeInvalidColumn},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, errs := ParseSchema(json.RawMessage(tc.raw))
			if tc.wantCode == "" {
				assert.Empty(t, errs)
				return
			}
			require.NotEmpty(t, errs)
			assert.True(t, errs.HasCode(tc.wantCode), "expected %s in %v", tc.wantCode, errs)
		})
	}
}

func TestParseSchemaNormalizesType(t *testing.T) {
	s, errs := ParseSchema(json.RawMessage(`{"columns":[{"name":"when","type":" DateTime "}]}`))
	require.Empty(t, errs)
	assert.Equal(t, TypeDatetime, s.Columns[0].Type)
}

func TestSchemaHelpers(t *testing.T) {
	s := Schema{Columns: []Column{
		{Name: "title", Type: TypeText, Indexed: true},
		{Name: "price", Type: TypeNumber},
		{Name: "meta", Type: TypeJSON},
		{Name: "contact", Type: TypeEmail, Unique: true},
		{Name: "author_id", Type: TypeUUID, References: &Reference{Table: "authors", Column: "id"}},
		{Name: "editor_id", Type: TypeUUID, References: &Reference{Table: "authors"}},
		{Name: "parent_id", Type: TypeUUID, References: &Reference{Table: "books"}},
	}}

	assert.Equal(t, []string{"title", "meta", "contact"}, s.SearchableColumns())
	assert.Equal(t, []string{"authors"}, s.ReferencedTables("books"))

	title, ok := s.Column("title")
	require.True(t, ok)
	assert.True(t, title.NeedsIndex())
	assert.False(t, title.IsUnique())

	contact, _ := s.Column("contact")
	assert.True(t, contact.NeedsIndex())
	assert.True(t, contact.IsUnique())

	_, ok = s.Column("Title")
	assert.False(t, ok)
}

func TestValidateSchemaIsPure(t *testing.T) {
	s := Schema{Columns: []Column{{Name: "a", Type: TypeText}, {Name: "a", Type: TypeText}}}
	first := ValidateSchema(s)
	second := ValidateSchema(s)
	assert.Equal(t, first, second)
	assert.Len(t, s.Columns, 2)
}
