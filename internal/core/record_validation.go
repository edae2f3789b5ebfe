// internal/core/record_validation.go
package core

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"time"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// temporalLayouts are the layouts accepted for date, datetime and timestamp values.
var temporalLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02",
	time.RFC1123,
	time.RFC1123Z,
}

var (
	errExpectedString  = errors.New("expected a string")
	errExpectedNumber  = errors.New("expected a finite number")
	errExpectedBoolean = errors.New("expected a boolean")
	errExpectedDate    = errors.New("expected a parseable date")
	errExpectedUUID    = errors.New("expected an RFC 4122 UUID")
	errExpectedJSON    = errors.New("expected a JSON object or array")
	errExpectedEmail   = errors.New("expected an email address")
	errExpectedURL     = errors.New("expected a URL")
)

func checkText(v any) error {
	if _, ok := v.(string); !ok {
		return errExpectedString
	}
	return nil
}

func checkNumber(v any) error {
	f, ok := AsFloat(v)
	if !ok || math.IsNaN(f) || math.IsInf(f, 0) {
		return errExpectedNumber
	}
	return nil
}

func checkBoolean(v any) error {
	if _, ok := v.(bool); !ok {
		return errExpectedBoolean
	}
	return nil
}

func checkTemporal(v any) error {
	switch t := v.(type) {
	case time.Time:
		return nil
	case string:
		if _, ok := ParseTime(t); ok {
			return nil
		}
	}
	return errExpectedDate
}

func checkUUID(v any) error {
	s, ok := v.(string)
	if !ok || validate.Var(s, "uuid_rfc4122") != nil {
		return errExpectedUUID
	}
	return nil
}

func checkJSON(v any) error {
	switch v.(type) {
	case map[string]any, []any:
		return nil
	}
	return errExpectedJSON
}

func checkEmail(v any) error {
	s, ok := v.(string)
	if !ok || validate.Var(s, "email") != nil {
		return errExpectedEmail
	}
	return nil
}

func checkURL(v any) error {
	s, ok := v.(string)
	if !ok || validate.Var(s, "url") != nil {
		return errExpectedURL
	}
	return nil
}

// ParseTime parses s with the accepted temporal layouts.
func ParseTime(s string) (time.Time, bool) {
	for _, layout := range temporalLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// AsFloat converts the numeric kinds a decoded document may hold.
func AsFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	}
	return 0, false
}

// IsEmptyValue reports whether a required field counts as missing.
func IsEmptyValue(v any, present bool) bool {
	if !present || v == nil {
		return true
	}
	s, ok := v.(string)
	return ok && s == ""
}

// ValidateRecord checks data against schema. Required columns must be present,
// non-null and not the empty string; present values must match the column type
// and its constraints. Keys without a column are accepted as-is.
func ValidateRecord(data map[string]any, schema Schema) FieldErrors {
	var errs FieldErrors
	for _, col := range schema.Columns {
		v, present := data[col.Name]
		if col.Required && IsEmptyValue(v, present) {
			errs = append(errs, ferr(CodeMissingRequiredField, col.Name, "Field '%s' is required", col.Name))
			continue
		}
		if !present || v == nil {
			continue
		}
		if err := col.Type.Check(v); err != nil {
			errs = append(errs, ferr(CodeTypeMismatch, col.Name, "Field '%s' %v (column type %s)", col.Name, err, col.Type))
			continue
		}
		errs = append(errs, checkConstraints(col, v)...)
	}
	return errs
}

func checkConstraints(col Column, v any) FieldErrors {
	var errs FieldErrors
	if len(col.Enum) > 0 && !enumContains(col.Enum, v) {
		errs = append(errs, ferr(CodeConstraintViolation, col.Name, "Field '%s' must be one of %v", col.Name, col.Enum))
	}
	if s, ok := v.(string); ok {
		if col.Pattern != "" {
			re, err := regexp.Compile(col.Pattern)
			if err == nil && !re.MatchString(s) {
				errs = append(errs, ferr(CodeConstraintViolation, col.Name, "Field '%s' does not match pattern %s", col.Name, col.Pattern))
			}
		}
		n := utf8.RuneCountInString(s)
		if col.MinLength != nil && n < *col.MinLength {
			errs = append(errs, ferr(CodeConstraintViolation, col.Name, "Field '%s' must be at least %d characters", col.Name, *col.MinLength))
		}
		if col.MaxLength != nil && n > *col.MaxLength {
			errs = append(errs, ferr(CodeConstraintViolation, col.Name, "Field '%s' must be at most %d characters", col.Name, *col.MaxLength))
		}
	}
	if f, ok := AsFloat(v); ok && col.Type == TypeNumber {
		if col.Min != nil && f < *col.Min {
			errs = append(errs, ferr(CodeConstraintViolation, col.Name, "Field '%s' must be >= %v", col.Name, *col.Min))
		}
		if col.Max != nil && f > *col.Max {
			errs = append(errs, ferr(CodeConstraintViolation, col.Name, "Field '%s' must be <= %v", col.Name, *col.Max))
		}
	}
	return errs
}

func enumContains(allowed []any, v any) bool {
	needle := fmt.Sprintf("%v", v)
	for _, a := range allowed {
		if fmt.Sprintf("%v", a) == needle {
			return true
		}
	}
	return false
}
