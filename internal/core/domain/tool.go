package domain

import (
	"encoding/json"
	"fmt"
)

// ToolParameter describes one argument in a tool's schema.
type ToolParameter struct {
	// Name is the argument name.
	Name string

	// Type is the JSON type ("string", "number", "integer", "boolean").
	Type string

	// Description tells the model what the argument means.
	Description string

	// Required arguments must be present in every call.
	Required bool
}

// ToolDefinition declares a tool the model may invoke.
// Adapters translate it into each provider's function schema.
type ToolDefinition struct {
	// Name is the tool identifier the model calls.
	Name string

	// Description tells the model when to use the tool.
	Description string

	// Parameters is the argument schema.
	Parameters []ToolParameter

	// RequiresAuth marks tools whose side effects need an
	// authenticated external account.
	RequiresAuth bool
}

// RequiredParameters returns the names of all required arguments.
func (d ToolDefinition) RequiredParameters() []string {
	var names []string
	for _, p := range d.Parameters {
		if p.Required {
			names = append(names, p.Name)
		}
	}
	return names
}

// ToolCallRequest is a provider-agnostic tool invocation request
// extracted from a model stream.
type ToolCallRequest struct {
	// Name is the requested tool.
	Name string

	// Args are the decoded call arguments.
	Args map[string]any
}

// ToolResult is the structured outcome of one tool dispatch.
// Failures are values, never panics: the orchestrator must always
// have something to feed back to the model.
type ToolResult struct {
	// OK reports whether the dispatch succeeded.
	OK bool

	// Value is the JSON-encoded result when OK.
	Value json.RawMessage

	// Error describes the failure when !OK.
	Error string
}

// NewToolError builds a failed result with a formatted reason.
func NewToolError(format string, args ...any) ToolResult {
	return ToolResult{OK: false, Error: fmt.Sprintf(format, args...)}
}

// Payload returns the JSON text fed back to the model.
// Errors are encoded as {"error": reason} so the model can react
// conversationally.
func (r ToolResult) Payload() string {
	if r.OK {
		if len(r.Value) == 0 {
			return `{"ok":true}`
		}
		return string(r.Value)
	}
	encoded, err := json.Marshal(map[string]string{"error": r.Error})
	if err != nil {
		return `{"error":"tool failed"}`
	}
	return string(encoded)
}

// ToolInvocation pairs a request with its result for the duration of
// one dispatch cycle. Never persisted.
type ToolInvocation struct {
	// Request is the model's call.
	Request ToolCallRequest

	// Result is the dispatch outcome.
	Result ToolResult
}
