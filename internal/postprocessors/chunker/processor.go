// Package chunker splits source text into overlapping retrieval chunks.
package chunker

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/custodia-labs/valet-cli/internal/core/domain"
	"github.com/custodia-labs/valet-cli/internal/core/ports/driven"
)

// DefaultChunkSize is the default maximum chunk length in bytes.
const DefaultChunkSize = 1000

// DefaultChunkOverlap is the default overlap between consecutive chunks.
const DefaultChunkOverlap = 200

// Ensure Processor implements the interface.
var _ driven.Chunker = (*Processor)(nil)

// Processor splits text into fixed-size or sentence-aware chunks.
// Chunking is pure and deterministic: the same input always yields the
// same chunks, including their IDs.
type Processor struct {
	chunkSize int
	overlap   int
	sentence  bool
}

// Option configures the chunker processor.
type Option func(*Processor)

// WithChunkSize sets the maximum chunk size in bytes.
func WithChunkSize(size int) Option {
	return func(p *Processor) {
		p.chunkSize = size
	}
}

// WithOverlap sets the overlap between consecutive chunks in bytes.
func WithOverlap(overlap int) Option {
	return func(p *Processor) {
		p.overlap = overlap
	}
}

// WithSentenceSplitting enables sentence-boundary chunking. Sentences
// longer than the chunk size fall back to fixed-size splitting.
func WithSentenceSplitting() Option {
	return func(p *Processor) {
		p.sentence = true
	}
}

// New creates a chunker with the given options.
//
// The configuration must satisfy chunkSize > overlap >= 0. Violating it
// is a programmer error, not a runtime condition, so New panics rather
// than silently clamping.
func New(opts ...Option) *Processor {
	p := &Processor{
		chunkSize: DefaultChunkSize,
		overlap:   DefaultChunkOverlap,
	}

	for _, opt := range opts {
		opt(p)
	}

	if p.overlap < 0 || p.chunkSize <= p.overlap {
		panic(fmt.Sprintf("chunker: chunk size %d must exceed overlap %d, overlap must be >= 0",
			p.chunkSize, p.overlap))
	}

	return p
}

// Name returns the processor name.
func (p *Processor) Name() string {
	return "chunker"
}

// Chunk splits text into ordered, overlapping chunks with byte offsets
// into the original string. Whitespace-only input produces no chunks;
// whitespace-only windows are dropped from the output.
func (p *Processor) Chunk(sourceID string, sourceType domain.SourceType, text string) []domain.Chunk {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	b := &builder{sourceID: sourceID, sourceType: sourceType}
	if p.sentence {
		p.chunkSentences(b, text)
	} else {
		p.chunkFixed(b, text, 0, len(text))
	}
	return b.chunks
}

// chunkFixed splits text[from:to] into fixed windows of chunkSize bytes,
// each starting chunkSize-overlap bytes after the previous one.
func (p *Processor) chunkFixed(b *builder, text string, from, to int) {
	step := p.chunkSize - p.overlap

	for start := from; start < to; start += step {
		end := start + p.chunkSize
		if end > to {
			end = to
		}

		b.add(text[start:end], start, end)

		// The final window reaches the end; a further window would be
		// fully contained in this one.
		if end == to {
			break
		}
	}
}

// builder accumulates chunks for one source, assigning deterministic IDs.
type builder struct {
	sourceID   string
	sourceType domain.SourceType
	chunks     []domain.Chunk
}

// add appends a chunk for text spanning [start, end) in the source.
// Whitespace-only spans are dropped.
func (b *builder) add(text string, start, end int) {
	if strings.TrimSpace(text) == "" {
		return
	}

	b.chunks = append(b.chunks, domain.Chunk{
		ID:          b.sourceID + "#" + strconv.Itoa(len(b.chunks)),
		SourceID:    b.sourceID,
		SourceType:  b.sourceType,
		Text:        text,
		StartOffset: start,
		EndOffset:   end,
	})
}
