// Package driven provides interfaces for infrastructure adapters (secondary/outbound ports).
package driven

import (
	"context"

	"github.com/custodia-labs/valet-cli/internal/core/domain"
)

// LLMService streams chat completions with tool calling support.
//
// Implementations may include:
//   - OpenAI (GPT-4o family)
//   - Anthropic (Claude)
//   - Ollama (local models)
//
// Provider payload shapes (function-call formats, SSE framing) never leak
// through this interface: adapters translate domain.ToolDefinition into the
// provider schema and tool requests back into domain.ToolCallRequest.
type LLMService interface {
	// ChatStream opens an incremental completion for the conversation.
	// The returned stream must be closed by the caller.
	ChatStream(ctx context.Context, messages []ChatMessage, opts ChatOptions) (ChatStream, error)

	// ModelName returns the name of the chat model being used.
	ModelName() string

	// Ping validates the service is reachable by making a lightweight test request.
	// This is used at startup to verify connectivity before starting a session.
	Ping(ctx context.Context) error

	// Close releases resources.
	Close() error
}

// ChatStream yields one model response incrementally.
type ChatStream interface {
	// Recv returns the next event. It returns io.EOF when the model
	// has finished the response, after all events have been delivered.
	Recv() (StreamEvent, error)

	// Close releases the underlying connection. Safe to call more than once.
	Close() error
}

// StreamEvent is one increment of a model response.
// Exactly one of TextDelta or ToolCall is populated.
type StreamEvent struct {
	// TextDelta is an increment of response text.
	TextDelta string

	// ToolCall is a completed tool invocation request. Adapters buffer
	// partial argument fragments and emit the call only once it is whole.
	ToolCall *domain.ToolCallRequest
}

// ChatMessage represents a single message in a conversation.
type ChatMessage struct {
	// Role is one of "system", "user", "assistant" or "tool".
	Role string

	// Content is the message text. For tool messages this is the
	// JSON payload of the tool result.
	Content string

	// ToolCall echoes the model's request on the assistant message
	// that triggered a dispatch. Required by providers that validate
	// call/result pairing.
	ToolCall *domain.ToolCallRequest

	// ToolResult carries the dispatch outcome on a tool message.
	ToolResult *domain.ToolResult
}

// Message role constants shared by all providers.
const (
	// ChatRoleSystem is the system instruction role.
	ChatRoleSystem = "system"

	// ChatRoleUser is the end-user role.
	ChatRoleUser = "user"

	// ChatRoleAssistant is the model role.
	ChatRoleAssistant = "assistant"

	// ChatRoleTool is the tool result role.
	ChatRoleTool = "tool"
)

// ChatOptions configures chat behaviour.
type ChatOptions struct {
	// System is the system prompt for the conversation.
	System string

	// MaxTokens is the maximum number of tokens to generate.
	MaxTokens int

	// Temperature controls randomness (0.0 = deterministic, 1.0 = creative).
	Temperature float64

	// Tools declares what the model may invoke. Empty disables tool calling.
	Tools []domain.ToolDefinition
}
