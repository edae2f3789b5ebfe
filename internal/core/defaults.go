// internal/core/defaults.go
package core

import (
	"time"

	"github.com/google/uuid"
)

// nowFunc is swapped in tests.
var nowFunc = time.Now

// ApplyDefaults fills absent or null columns that declare a default. The
// sentinels NOW()/now() become the current time (a YYYY-MM-DD date for date
// columns) and gen_random_uuid()/uuid() a fresh UUID; anything else is copied
// literally. It must run once, before ValidateRecord and persistence.
func ApplyDefaults(data map[string]any, schema Schema) map[string]any {
	if data == nil {
		data = make(map[string]any)
	}
	for _, col := range schema.Columns {
		if col.Default == nil {
			continue
		}
		if v, ok := data[col.Name]; ok && v != nil {
			continue
		}
		data[col.Name] = resolveDefault(col)
	}
	return data
}

func resolveDefault(col Column) any {
	s, ok := col.Default.(string)
	if !ok {
		return col.Default
	}
	switch s {
	case "NOW()", "now()":
		now := nowFunc().UTC()
		if col.Type == TypeDate {
			return now.Format("2006-01-02")
		}
		return now.Format(time.RFC3339Nano)
	case "gen_random_uuid()", "uuid()":
		return uuid.NewString()
	}
	return s
}
