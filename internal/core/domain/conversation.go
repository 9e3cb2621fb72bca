package domain

import "time"

// Role identifies who produced a conversation turn.
type Role string

// Available roles.
const (
	// RoleUser is a turn typed by the user.
	RoleUser Role = "user"

	// RoleModel is a turn produced by the language model.
	RoleModel Role = "model"

	// RoleSystem is an instruction turn, not shown in the transcript.
	RoleSystem Role = "system"
)

// IsValid returns true if the role is recognised.
func (r Role) IsValid() bool {
	switch r {
	case RoleUser, RoleModel, RoleSystem:
		return true
	default:
		return false
	}
}

// String returns the string representation.
func (r Role) String() string {
	return string(r)
}

// ConversationTurn is one message in a session transcript.
// While Streaming is true the turn is mutable and Text grows monotonically;
// once finalized the turn never changes again.
type ConversationTurn struct {
	// ID is the unique identifier, assigned when the turn is finalized.
	ID string

	// Role identifies who produced the turn.
	Role Role

	// Text is the turn content. Grows while streaming.
	Text string

	// Timestamp is when the turn was created.
	Timestamp time.Time

	// Streaming is true while the turn is still receiving content.
	Streaming bool

	// ToolCallInProgress names the tool being dispatched, empty otherwise.
	ToolCallInProgress string

	// RAGContextUsed records whether retrieved context was prepended
	// to the prompt that produced this turn.
	RAGContextUsed bool

	// Sources cites the retrieved chunks that informed this turn.
	Sources []SourceRef

	// Error records a turn-level failure. Partial text is kept.
	Error string
}

// TurnEventKind identifies a streaming event emitted while a turn runs.
type TurnEventKind string

// Turn event kinds.
const (
	// TurnEventStarted fires when the model turn is created.
	TurnEventStarted TurnEventKind = "started"

	// TurnEventDelta carries an increment of model text.
	TurnEventDelta TurnEventKind = "delta"

	// TurnEventToolCall fires when a tool dispatch begins.
	TurnEventToolCall TurnEventKind = "tool_call"

	// TurnEventToolResult fires when a tool dispatch completes.
	TurnEventToolResult TurnEventKind = "tool_result"

	// TurnEventFinalized fires when the turn becomes immutable.
	TurnEventFinalized TurnEventKind = "finalized"

	// TurnEventError fires when the turn fails. Partial text is preserved.
	TurnEventError TurnEventKind = "error"
)

// TurnEvent is a live progress notification for one in-flight turn.
// Events are emitted in order; Delta events are the only observable
// source of partial text.
type TurnEvent struct {
	// Kind identifies the event.
	Kind TurnEventKind

	// Delta is the text increment for TurnEventDelta.
	Delta string

	// ToolName is set for tool call/result events.
	ToolName string

	// ToolOK reports whether the dispatch succeeded, for TurnEventToolResult.
	ToolOK bool

	// Err describes the failure for TurnEventError.
	Err string
}

// SessionConfig is the configuration a session was created with.
// Any change to it invalidates the session.
type SessionConfig struct {
	// Provider is the LLM provider driving the session.
	Provider AIProvider

	// Model is the chat model name.
	Model string

	// Persona names the active persona.
	Persona string

	// SystemPrompt is the resolved persona prompt.
	SystemPrompt string

	// MaxToolHops bounds tool dispatch cycles per user turn.
	MaxToolHops int

	// RAGEnabled controls retrieval-augmented context.
	RAGEnabled bool
}

// Session owns one ongoing conversation: its transcript and the
// accumulated model context. Torn down and recreated whenever the
// provider, key or persona configuration changes.
type Session struct {
	// ID is the unique session identifier.
	ID string

	// Config is the configuration the session was created with.
	Config SessionConfig

	// Epoch increments on every configuration change. In-flight work
	// captures the epoch at start and discards its results on mismatch.
	Epoch int64

	// Turns is the ordered transcript.
	Turns []*ConversationTurn

	// CreatedAt is when the session was established.
	CreatedAt time.Time
}
