package driven

import "github.com/custodia-labs/valet-cli/internal/core/domain"

// Chunker splits source text into retrieval chunks.
// Implementations are pure and deterministic: the same text always
// produces the same chunks, with byte offsets into the original.
type Chunker interface {
	// Chunk splits text into ordered, overlapping chunks.
	// Whitespace-only input produces no chunks.
	Chunk(sourceID string, sourceType domain.SourceType, text string) []domain.Chunk
}
