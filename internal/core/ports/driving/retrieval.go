package driving

import (
	"context"

	"github.com/custodia-labs/valet-cli/internal/core/domain"
)

// RetrievalService ingests sources and answers similarity queries.
type RetrievalService interface {
	// Ingest chunks and embeds text, then atomically replaces the
	// source's stored rows. Any embedding failure aborts the whole
	// ingest; nothing is written. Returns the number of chunks stored.
	Ingest(ctx context.Context, info domain.SourceInfo, text string) (int, error)

	// Retrieve returns up to K chunks relevant to the query, ordered by
	// descending similarity, ties broken by most recent ingestion.
	// Results below the similarity threshold are excluded.
	Retrieve(ctx context.Context, query string, opts domain.RetrieveOptions) ([]domain.RankedChunk, error)

	// Clear removes all chunks for a source. Clearing a source that was
	// never ingested is a no-op.
	Clear(ctx context.Context, sourceID string) error

	// Sources lists ingested sources with chunk counts.
	Sources(ctx context.Context) ([]domain.SourceInfo, error)
}
