package domain

import "time"

// VectorRecord is a stored embedding, keyed by the chunk it represents.
// Every record in a store shares the dimension agreed with the embedding
// provider at startup; mixing dimensions is a fatal misconfiguration.
type VectorRecord struct {
	// ChunkID links to the embedded chunk.
	ChunkID string

	// Embedding is the vector representation of the chunk text.
	Embedding []float32

	// SourceID links to the owning source, for filtered search and deletion.
	SourceID string

	// SourceType identifies the kind of owning source.
	SourceType SourceType

	// CreatedAt is when the record was written. Used to break similarity ties
	// in favour of the most recently ingested content.
	CreatedAt time.Time
}

// RankedChunk is a retrieval hit: a chunk with its similarity to the query.
type RankedChunk struct {
	// Chunk is the retrieved chunk.
	Chunk Chunk

	// Similarity is in [0,1] for cosine, higher is more relevant.
	Similarity float64

	// CreatedAt is when the chunk's vector record was written.
	CreatedAt time.Time

	// Source cites where the chunk came from.
	Source SourceRef
}

// RetrieveOptions configures a retrieval query.
// Zero values fall back to the service's configured defaults.
type RetrieveOptions struct {
	// SourceType restricts results to one kind of source. Empty matches all.
	SourceType SourceType

	// SourceID restricts results to a single source. Empty matches all.
	SourceID string

	// K is the maximum number of results.
	K int

	// Threshold excludes results with similarity below it.
	// Negative disables the cutoff; zero uses the configured default.
	Threshold float64
}
