// internal/core/record_validation_test.go
package core

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func ptrF(f float64) *float64 { return &f }
func ptrI(i int) *int         { return &i }

func TestValidateRecordTypes(t *testing.T) {
	testCases := []struct {
		name   string
		typ    ColumnType
		value  any
		wantOK bool
	}{
		{"text string", TypeText, "hello", true},
		{"text number", TypeText, 5.0, false},
		{"number float", TypeNumber, 3.5, true},
		{"number int", TypeNumber, 7, true},
		{"number string", TypeNumber, "7", false},
		{"number NaN", TypeNumber, math.NaN(), false},
		{"number Inf", TypeNumber, math.Inf(1), false},
		{"boolean", TypeBoolean, true, true},
		{"boolean string", TypeBoolean, "true", false},
		{"date", TypeDate, "2024-03-01", true},
		{"datetime rfc3339", TypeDatetime, "2024-03-01T10:00:00Z", true},
		{"timestamp space", TypeTimestamp, "2024-03-01 10:00:00", true},
		{"timestamp time.Time", TypeTimestamp, time.Now(), true},
		{"date garbage", TypeDate, "yesterday", false},
		{"uuid", TypeUUID, "6ba7b810-9dad-11d1-80b4-00c04fd430c8", true},
		{"uuid bad", TypeUUID, "not-a-uuid", false},
		{"json object", TypeJSON, map[string]any{"a": 1.0}, true},
		{"json array", TypeJSON, []any{1.0, "x"}, true},
		{"json scalar", TypeJSON, "x", false},
		{"email", TypeEmail, "ada@example.com", true},
		{"email bad", TypeEmail, "ada-at-example", false},
		{"url", TypeURL, "https://example.com/path?q=1", true},
		{"url bad", TypeURL, "example", false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			schema := Schema{Columns: []Column{{Name: "v", Type: tc.typ}}}
			errs := ValidateRecord(map[string]any{"v": tc.value}, schema)
			if tc.wantOK {
				assert.Empty(t, errs)
			} else {
				assert.True(t, errs.HasCode(CodeTypeMismatch), "got %v", errs)
			}
		})
	}
}

func TestValidateRecordRequired(t *testing.T) {
	schema := Schema{Columns: []Column{{Name: "name", Type: TypeText, Required: true}}}

	for _, data := range []map[string]any{
		{},
		{"name": nil},
		{"name": ""},
	} {
		errs := ValidateRecord(data, schema)
		assert.True(t, errs.HasCode(CodeMissingRequiredField), "data %v", data)
	}
	assert.Empty(t, ValidateRecord(map[string]any{"name": "x", "extra": 1.0}, schema))
}

func TestValidateRecordConstraints(t *testing.T) {
	schema := Schema{Columns: []Column{
		{Name: "status", Type: TypeText, Enum: []any{"open", "closed"}},
		{Name: "code", Type: TypeText, Pattern: `^[A-Z]{3}$`, MinLength: ptrI(3), MaxLength: ptrI(3)},
		{Name: "qty", Type: TypeNumber, Min: ptrF(0), Max: ptrF(10)},
	}}

	assert.Empty(t, ValidateRecord(map[string]any{"status": "open", "code": "ABC", "qty": 5.0}, schema))

	errs := ValidateRecord(map[string]any{"status": "pending", "code": "ab", "qty": 11.0}, schema)
	assert.True(t, errs.HasCode(CodeConstraintViolation))
	// enum, pattern, minLength, max
	assert.Len(t, errs, 4)
}

func TestValidateRecordDefaultsRoundTrip(t *testing.T) {
	schema := Schema{Columns: []Column{
		{Name: "id", Type: TypeUUID, Default: "gen_random_uuid()"},
		{Name: "created", Type: TypeTimestamp, Default: "NOW()"},
		{Name: "day", Type: TypeDate, Default: "now()"},
		{Name: "status", Type: TypeText, Default: "open", Enum: []any{"open", "closed"}},
		{Name: "count", Type: TypeNumber, Default: 0.0},
	}}

	data := ApplyDefaults(nil, schema)
	assert.Empty(t, ValidateRecord(data, schema))
	assert.Equal(t, "open", data["status"])
	assert.Len(t, data["day"], len("2006-01-02"))
}
