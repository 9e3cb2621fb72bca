package domain

import (
	"fmt"
	"time"
)

// SourceType identifies what kind of source a chunk was ingested from.
type SourceType string

// Available source types.
const (
	// SourceTypeFile is a document ingested from a file.
	SourceTypeFile SourceType = "file"

	// SourceTypeNote is a user-saved note.
	SourceTypeNote SourceType = "note"
)

// IsValid returns true if the source type is recognised.
func (t SourceType) IsValid() bool {
	switch t {
	case SourceTypeFile, SourceTypeNote:
		return true
	default:
		return false
	}
}

// String returns the string representation.
func (t SourceType) String() string {
	return string(t)
}

// Chunk is a bounded substring of a source, the unit of retrieval.
// Chunks are immutable once created and are superseded when their
// source is re-ingested or cleared.
type Chunk struct {
	// ID is the unique identifier for the chunk.
	ID string

	// SourceID links to the source the chunk was cut from.
	SourceID string

	// SourceType identifies the kind of source.
	SourceType SourceType

	// Text is the chunk content.
	Text string

	// StartOffset is the byte offset of Text within the source.
	StartOffset int

	// EndOffset is the byte offset one past the end of Text.
	EndOffset int
}

// Validate checks the chunk's internal consistency.
// A malformed chunk indicates a programming bug, not user error.
func (c Chunk) Validate() error {
	if c.SourceID == "" {
		return fmt.Errorf("%w: chunk has no source id", ErrInvalidInput)
	}
	if !c.SourceType.IsValid() {
		return fmt.Errorf("%w: unknown source type %q", ErrInvalidInput, c.SourceType)
	}
	if c.StartOffset < 0 || c.EndOffset < c.StartOffset {
		return fmt.Errorf("%w: chunk offsets [%d,%d)", ErrInvalidInput, c.StartOffset, c.EndOffset)
	}
	if c.EndOffset-c.StartOffset != len(c.Text) {
		return fmt.Errorf("%w: chunk span %d does not match text length %d",
			ErrInvalidInput, c.EndOffset-c.StartOffset, len(c.Text))
	}
	return nil
}

// SourceRef is a citation attached to a conversation turn.
type SourceRef struct {
	// Title is the human-readable source name.
	Title string

	// URI is the source location (file path, note:<id>, github:// URL).
	URI string
}

// SourceInfo describes an ingested source as held by the vector store.
type SourceInfo struct {
	// ID is the source identifier used at ingest time.
	ID string

	// Type identifies the kind of source.
	Type SourceType

	// Title is the human-readable source name.
	Title string

	// URI is the source location.
	URI string

	// ChunkCount is the number of chunks currently stored for the source.
	ChunkCount int

	// IngestedAt is when the source was last (re-)ingested.
	IngestedAt time.Time
}

// Ref returns the citation form of the source.
func (s SourceInfo) Ref() SourceRef {
	return SourceRef{Title: s.Title, URI: s.URI}
}
