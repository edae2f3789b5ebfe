package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalDocument(t *testing.T) {
	b, err := MarshalDocument(map[string]any{"html": "<b>a & b</b>", "n": 1.5})
	require.NoError(t, err)
	assert.Equal(t, `{"html":"<b>a & b</b>","n":1.5}`, string(b))

	_, err = MarshalDocument(map[string]any{"bad": func() {}})
	assert.Error(t, err)
}
