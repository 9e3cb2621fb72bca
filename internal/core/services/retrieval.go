package services

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/custodia-labs/valet-cli/internal/core/domain"
	"github.com/custodia-labs/valet-cli/internal/core/ports/driven"
	"github.com/custodia-labs/valet-cli/internal/core/ports/driving"
	"github.com/custodia-labs/valet-cli/internal/logger"
)

// Ensure RetrievalService implements the interface.
var _ driving.RetrievalService = (*RetrievalService)(nil)

// RetrievalService composes the chunker, the embedding provider and the
// vector store into the ingest/retrieve/clear pipeline.
//
// Similarity convention: the store returns cosine distance; the service
// converts via similarity = 1 - distance. The same conversion is used
// for the threshold cutoff, so scores are comparable across queries.
type RetrievalService struct {
	chunker   driven.Chunker
	embedder  driven.EmbeddingService
	store     driven.VectorStore
	defaults  domain.RetrievalSettings
	clockFunc func() time.Time
}

// NewRetrievalService creates a retrieval service with explicitly injected
// collaborators. The embedder and store must agree on dimensions; the
// store enforces this on write.
func NewRetrievalService(
	chunker driven.Chunker,
	embedder driven.EmbeddingService,
	store driven.VectorStore,
	defaults domain.RetrievalSettings,
) *RetrievalService {
	return &RetrievalService{
		chunker:   chunker,
		embedder:  embedder,
		store:     store,
		defaults:  defaults,
		clockFunc: time.Now,
	}
}

// Ingest chunks and embeds text, then atomically replaces the source's
// stored rows. Any embedding failure aborts before anything is written,
// so a failed ingest leaves the prior content intact.
func (s *RetrievalService) Ingest(ctx context.Context, info domain.SourceInfo, text string) (int, error) {
	if info.ID == "" {
		return 0, fmt.Errorf("%w: source id is empty", domain.ErrInvalidInput)
	}
	if !info.Type.IsValid() {
		return 0, fmt.Errorf("%w: unknown source type %q", domain.ErrInvalidInput, info.Type)
	}
	if s.embedder == nil {
		return 0, fmt.Errorf("ingest %s: %w", info.ID, domain.ErrEmbeddingUnavailable)
	}

	logger.Section("Ingest")
	logger.Debug("Source: %s (%s), %d bytes", info.ID, info.Type, len(text))

	chunks := s.chunker.Chunk(info.ID, info.Type, text)
	if len(chunks) == 0 {
		// Nothing to store; treat as a clear so re-ingesting emptied
		// content does not leave stale chunks behind.
		logger.Debug("No chunks produced, clearing source")
		if err := s.store.Replace(ctx, info, nil, nil); err != nil {
			return 0, fmt.Errorf("clearing source %s: %w", info.ID, err)
		}
		return 0, nil
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}

	// One bounded batch call, no fan-out.
	embeddings, err := s.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return 0, fmt.Errorf("embedding %d chunks for %s: %w", len(chunks), info.ID, err)
	}
	if len(embeddings) != len(chunks) {
		return 0, fmt.Errorf("%w: got %d embeddings for %d chunks",
			domain.ErrInvalidInput, len(embeddings), len(chunks))
	}

	now := s.clockFunc().UTC()
	records := make([]domain.VectorRecord, len(chunks))
	for i, c := range chunks {
		records[i] = domain.VectorRecord{
			ChunkID:    c.ID,
			Embedding:  embeddings[i],
			SourceID:   c.SourceID,
			SourceType: c.SourceType,
			CreatedAt:  now,
		}
	}

	info.ChunkCount = len(chunks)
	info.IngestedAt = now
	if err := s.store.Replace(ctx, info, chunks, records); err != nil {
		return 0, fmt.Errorf("storing %d chunks for %s: %w", len(chunks), info.ID, err)
	}

	logger.Debug("Stored %d chunks for %s", len(chunks), info.ID)
	return len(chunks), nil
}

// Retrieve embeds the query and returns up to K chunks above the
// similarity threshold, most similar first, ties broken by most
// recent ingestion.
func (s *RetrievalService) Retrieve(ctx context.Context, query string, opts domain.RetrieveOptions) ([]domain.RankedChunk, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, nil
	}
	if s.embedder == nil {
		return nil, fmt.Errorf("retrieve: %w", domain.ErrEmbeddingUnavailable)
	}

	k := opts.K
	if k <= 0 {
		k = s.defaults.TopK
	}
	threshold := opts.Threshold
	switch {
	case threshold < 0:
		threshold = 0
	case threshold == 0:
		threshold = s.defaults.SimilarityThreshold
	}

	logger.Section("Retrieve")
	logger.Debug("Query: %q, k=%d, threshold=%.2f, filter={type:%s id:%s}",
		query, k, threshold, opts.SourceType, opts.SourceID)

	queryVec, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}

	filter := driven.Filter{SourceType: opts.SourceType, SourceID: opts.SourceID}

	// Over-fetch so the threshold cut still leaves k candidates.
	matches, err := s.store.Search(ctx, queryVec, k*2, filter)
	if err != nil {
		return nil, fmt.Errorf("searching vectors: %w", err)
	}

	ranked := make([]domain.RankedChunk, 0, len(matches))
	for _, m := range matches {
		similarity := 1 - m.Distance
		if similarity < threshold {
			continue
		}
		ranked = append(ranked, domain.RankedChunk{
			Chunk:      m.Chunk,
			Similarity: similarity,
			CreatedAt:  m.CreatedAt,
			Source:     m.Source,
		})
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].Similarity != ranked[j].Similarity {
			return ranked[i].Similarity > ranked[j].Similarity
		}
		return ranked[i].CreatedAt.After(ranked[j].CreatedAt)
	})
	if len(ranked) > k {
		ranked = ranked[:k]
	}

	logger.Debug("Returning %d of %d matches", len(ranked), len(matches))
	return ranked, nil
}

// Clear removes all chunks for a source. Clearing a source that was
// never ingested is a no-op, not an error.
func (s *RetrievalService) Clear(ctx context.Context, sourceID string) error {
	if sourceID == "" {
		return fmt.Errorf("%w: source id is empty", domain.ErrInvalidInput)
	}
	if err := s.store.Delete(ctx, driven.Filter{SourceID: sourceID}); err != nil {
		return fmt.Errorf("clearing source %s: %w", sourceID, err)
	}
	return nil
}

// Sources lists ingested sources with their chunk counts.
func (s *RetrievalService) Sources(ctx context.Context) ([]domain.SourceInfo, error) {
	infos, err := s.store.Sources(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing sources: %w", err)
	}
	return infos, nil
}
