package driven

import (
	"context"
	"time"

	"github.com/custodia-labs/valet-cli/internal/core/domain"
)

// Filter restricts vector store operations to matching records.
// The zero value matches everything.
type Filter struct {
	// SourceType restricts to one kind of source. Empty matches all.
	SourceType domain.SourceType

	// SourceID restricts to a single source. Empty matches all.
	SourceID string
}

// Matches reports whether a record with the given source attributes
// passes the filter.
func (f Filter) Matches(sourceID string, sourceType domain.SourceType) bool {
	if f.SourceID != "" && f.SourceID != sourceID {
		return false
	}
	if f.SourceType != "" && f.SourceType != sourceType {
		return false
	}
	return true
}

// Match is a nearest-neighbour hit returned by Search.
type Match struct {
	// Chunk is the stored chunk.
	Chunk domain.Chunk

	// Distance is the cosine distance to the query, in [0,2], ascending.
	Distance float64

	// CreatedAt is when the record was written.
	CreatedAt time.Time

	// Source cites the owning source.
	Source domain.SourceRef
}

// VectorStore persists chunks together with their embeddings and serves
// nearest-neighbour queries over them.
//
// Stores are constructed with a fixed dimension; writes with a different
// dimension fail with domain.ErrDimensionMismatch. Reads during a
// concurrent Replace of a different source are safe; a Replace is atomic
// per source, so a concurrent search observes either all of the prior
// rows or all of the new ones, never a mix.
type VectorStore interface {
	// Add persists chunks with their embeddings. chunks[i] pairs with
	// records[i]; the two slices must be the same length.
	Add(ctx context.Context, chunks []domain.Chunk, records []domain.VectorRecord) error

	// Replace atomically swaps all rows of the given source for the new
	// ones. Passing no rows clears the source. The source metadata is
	// recorded for Sources listings and citations.
	Replace(ctx context.Context, info domain.SourceInfo, chunks []domain.Chunk, records []domain.VectorRecord) error

	// Search returns the k nearest stored records to the query vector,
	// restricted to the filter, ordered by ascending distance.
	Search(ctx context.Context, query []float32, k int, f Filter) ([]Match, error)

	// Delete removes all records matching the filter. Deleting nothing
	// is not an error.
	Delete(ctx context.Context, f Filter) error

	// Count returns the number of records matching the filter.
	Count(ctx context.Context, f Filter) (int, error)

	// Sources lists ingested sources with their chunk counts.
	Sources(ctx context.Context) ([]domain.SourceInfo, error)

	// Close releases resources.
	Close() error
}
