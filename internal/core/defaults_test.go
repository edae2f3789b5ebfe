// internal/core/defaults_test.go
package core

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApplyDefaults(t *testing.T) {
	fixed := time.Date(2024, 5, 6, 7, 8, 9, 0, time.UTC)
	nowFunc = func() time.Time { return fixed }
	defer func() { nowFunc = time.Now }()

	schema := Schema{Columns: []Column{
		{Name: "id", Type: TypeUUID, Default: "uuid()"},
		{Name: "created_on", Type: TypeDate, Default: "NOW()"},
		{Name: "created_at_ts", Type: TypeTimestamp, Default: "now()"},
		{Name: "status", Type: TypeText, Default: "draft"},
		{Name: "kept", Type: TypeText, Default: "unused"},
		{Name: "nulled", Type: TypeNumber, Default: 3.0},
		{Name: "plain", Type: TypeText},
	}}

	data := ApplyDefaults(map[string]any{"kept": "mine", "nulled": nil}, schema)

	_, err := uuid.Parse(data["id"].(string))
	require.NoError(t, err)
	assert.Equal(t, "2024-05-06", data["created_on"])
	assert.Equal(t, fixed.Format(time.RFC3339Nano), data["created_at_ts"])
	assert.Equal(t, "draft", data["status"])
	assert.Equal(t, "mine", data["kept"])
	assert.Equal(t, 3.0, data["nulled"])
	_, present := data["plain"]
	assert.False(t, present)
}

func TestApplyDefaultsFreshUUIDs(t *testing.T) {
	schema := Schema{Columns: []Column{{Name: "id", Type: TypeUUID, Default: "gen_random_uuid()"}}}
	a := ApplyDefaults(nil, schema)
	b := ApplyDefaults(nil, schema)
	assert.NotEqual(t, a["id"], b["id"])
}
