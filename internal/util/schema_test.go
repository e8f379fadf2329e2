package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type spawnArgs struct {
	Tasks   []string `json:"tasks" description:"Instructions, one per sub-agent"`
	Timeout *int     `json:"timeout"`
	Label   string   `json:"label,omitempty"`
	skipped string
}

func TestCreateSchema(t *testing.T) {
	schema := CreateSchema(spawnArgs{})

	props := schema["properties"].(map[string]any)
	assert.Len(t, props, 3)
	tasks := props["tasks"].(map[string]any)
	assert.Equal(t, "array", tasks["type"])
	assert.Equal(t, map[string]any{"type": "string"}, tasks["items"])
	assert.Equal(t, "Instructions, one per sub-agent", tasks["description"])
	assert.Equal(t, "integer", props["timeout"].(map[string]any)["type"])
	assert.Equal(t, []string{"tasks"}, schema["required"])
}

func TestCreateSchema_NonStruct(t *testing.T) {
	schema := CreateSchema(42)
	assert.Equal(t, "object", schema["type"])
	assert.Empty(t, schema["properties"])
}

func TestValidateParameters(t *testing.T) {
	schema := CreateSchema(spawnArgs{})

	t.Run("required as string slice", func(t *testing.T) {
		err := ValidateParameters(map[string]any{}, schema)
		var vErr *ValidationError
		require.ErrorAs(t, err, &vErr)
		assert.Equal(t, "tasks", vErr.Field)
	})

	t.Run("required decoded from json", func(t *testing.T) {
		decoded := map[string]any{"type": "object", "required": []any{"command"}}
		require.Error(t, ValidateParameters(map[string]any{}, decoded))
		require.NoError(t, ValidateParameters(map[string]any{"command": "ls"}, decoded))
	})

	t.Run("array item type", func(t *testing.T) {
		err := ValidateParameters(map[string]any{"tasks": []any{"a", 2.0}}, schema)
		var vErr *ValidationError
		require.ErrorAs(t, err, &vErr)
		assert.Equal(t, "tasks[1]", vErr.Field)
	})

	t.Run("integer from json float", func(t *testing.T) {
		require.NoError(t, ValidateParameters(map[string]any{"tasks": []any{}, "timeout": 30.0}, schema))
		require.Error(t, ValidateParameters(map[string]any{"tasks": []any{}, "timeout": 30.5}, schema))
	})

	t.Run("enum", func(t *testing.T) {
		enumSchema := map[string]any{"properties": map[string]any{
			"level": map[string]any{"type": "string", "enum": []any{"low", "high"}},
		}}
		require.NoError(t, ValidateParameters(map[string]any{"level": "low"}, enumSchema))
		require.Error(t, ValidateParameters(map[string]any{"level": "mid"}, enumSchema))
	})

	t.Run("extra fields allowed", func(t *testing.T) {
		require.NoError(t, ValidateParameters(map[string]any{"tasks": []any{"x"}, "other": true}, schema))
	})
}
