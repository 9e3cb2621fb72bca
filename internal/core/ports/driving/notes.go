package driving

import (
	"context"

	"github.com/custodia-labs/valet-cli/internal/core/domain"
)

// NoteService manages user notes. Saved notes are automatically ingested
// for retrieval; deleted notes are cleared from the vector store.
type NoteService interface {
	// Add saves a new note and ingests it.
	Add(ctx context.Context, title, text string) (domain.Note, error)

	// Update rewrites a note and re-ingests it, replacing prior chunks.
	Update(ctx context.Context, id, title, text string) (domain.Note, error)

	// Get returns a note by ID.
	Get(ctx context.Context, id string) (domain.Note, error)

	// List returns all notes, most recently updated first.
	List(ctx context.Context) ([]domain.Note, error)

	// Search returns notes relevant to the query via vector similarity.
	Search(ctx context.Context, query string, k int) ([]domain.RankedChunk, error)

	// Delete removes a note and clears its chunks.
	// Deleting a missing note is a no-op.
	Delete(ctx context.Context, id string) error
}
