package domain

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToolDefinitionRequiredParameters(t *testing.T) {
	def := ToolDefinition{
		Name: "add_task",
		Parameters: []ToolParameter{
			{Name: "title", Type: "string", Required: true},
			{Name: "notes", Type: "string"},
			{Name: "due", Type: "string"},
		},
	}
	assert.Equal(t, []string{"title"}, def.RequiredParameters())

	empty := ToolDefinition{Name: "get_weather"}
	assert.Nil(t, empty.RequiredParameters())
}

func TestToolResultPayload(t *testing.T) {
	t.Run("success carries the raw value", func(t *testing.T) {
		r := ToolResult{OK: true, Value: json.RawMessage(`{"count":3}`)}
		assert.JSONEq(t, `{"count":3}`, r.Payload())
	})

	t.Run("success with no value", func(t *testing.T) {
		r := ToolResult{OK: true}
		assert.JSONEq(t, `{"ok":true}`, r.Payload())
	})

	t.Run("error becomes structured payload", func(t *testing.T) {
		r := NewToolError("missing required argument %q", "taskId")
		assert.False(t, r.OK)

		var decoded map[string]string
		require.NoError(t, json.Unmarshal([]byte(r.Payload()), &decoded))
		assert.Contains(t, decoded["error"], "taskId")
	})
}
