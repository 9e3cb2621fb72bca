package driving

import (
	"context"

	"github.com/custodia-labs/valet-cli/internal/core/domain"
)

// ToolRunner exposes the tool registry: the declared schemas and a
// dispatch entry point. Dispatch never fails with a Go error; every
// failure mode (unknown tool, missing arguments, missing credential,
// handler error, timeout) is a structured result the model can read.
type ToolRunner interface {
	// Definitions returns the registered tool schemas, sorted by name.
	Definitions() []domain.ToolDefinition

	// Dispatch runs one tool call and returns its structured outcome.
	Dispatch(ctx context.Context, req domain.ToolCallRequest) domain.ToolResult
}
