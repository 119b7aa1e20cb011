package schema

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerator_Generate(t *testing.T) {
	gen := NewGenerator()

	data, err := gen.Generate()
	require.NoError(t, err)
	require.NotEmpty(t, data)

	var schema map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &schema))

	assert.Contains(t, schema, "$schema")
	assert.Equal(t, "Edge Gateway Configuration", schema["title"])

	desc, ok := schema["description"].(string)
	require.True(t, ok)
	assert.Contains(t, desc, "GATEWAY_")
}
