package driving

import (
	"context"

	"github.com/custodia-labs/valet-cli/internal/core/domain"
)

// EventSink receives live progress events for an in-flight turn.
// May be nil when the caller does not need incremental output.
type EventSink func(event domain.TurnEvent)

// ChatService drives one conversation session: it sends user turns,
// streams model output, dispatches tool calls and finalizes turns.
type ChatService interface {
	// Send submits a user message and runs one full turn cycle.
	// It blocks until the model turn is finalized and returns it.
	// Partial output is delivered through sink as it arrives.
	//
	// Returns domain.ErrSessionBusy if a turn is already in flight,
	// domain.ErrNotConfigured if no valid session can be established,
	// and domain.ErrSessionStale if the configuration changed mid-turn.
	Send(ctx context.Context, text string, sink EventSink) (*domain.ConversationTurn, error)

	// History returns the session transcript, oldest first.
	History() []domain.ConversationTurn

	// Session returns the current session, or nil before the first Send.
	Session() *domain.Session

	// Configure replaces the session configuration. Any in-flight turn is
	// invalidated: its late results are discarded.
	Configure(config domain.SessionConfig) error

	// Reset discards the session transcript and model context,
	// keeping the configuration.
	Reset()

	// Resume seeds the session with a persisted transcript. The next
	// Send carries the seeded turns as model context.
	Resume(sessionID string, turns []domain.ConversationTurn)
}
