package driven

import (
	"context"

	"github.com/custodia-labs/valet-cli/internal/core/domain"
)

// NoteStore persists user notes.
type NoteStore interface {
	// Save inserts or updates a note by ID.
	Save(ctx context.Context, note domain.Note) error

	// Get returns a note by ID.
	// Returns domain.ErrNotFound if it does not exist.
	Get(ctx context.Context, id string) (domain.Note, error)

	// List returns all notes, most recently updated first.
	List(ctx context.Context) ([]domain.Note, error)

	// Delete removes a note. Deleting a missing note is a no-op.
	Delete(ctx context.Context, id string) error
}
