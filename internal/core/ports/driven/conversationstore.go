package driven

import (
	"context"
	"time"

	"github.com/custodia-labs/valet-cli/internal/core/domain"
)

// SessionSummary describes one persisted conversation.
type SessionSummary struct {
	// SessionID identifies the conversation.
	SessionID string

	// Turns is the number of finalized turns recorded.
	Turns int

	// StartedAt is the timestamp of the first recorded turn.
	StartedAt time.Time

	// LastAt is the timestamp of the most recent recorded turn.
	LastAt time.Time
}

// ConversationStore persists finalized conversation turns so sessions
// can be reviewed and resumed. Only immutable turns are written;
// streaming state never reaches the store.
type ConversationStore interface {
	// SaveTurn appends a finalized turn to the session's transcript.
	SaveTurn(ctx context.Context, sessionID string, turn domain.ConversationTurn) error

	// Turns returns up to limit turns for the session, oldest first.
	// A non-positive limit returns all turns.
	Turns(ctx context.Context, sessionID string, limit int) ([]domain.ConversationTurn, error)

	// Sessions lists persisted conversations, most recent first.
	Sessions(ctx context.Context) ([]SessionSummary, error)

	// LatestSessionID returns the most recently written session.
	// Returns domain.ErrNotFound when no turns are persisted.
	LatestSessionID(ctx context.Context) (string, error)
}
