package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/custodia-labs/valet-cli/internal/adapters/driven/storage/vecmath"
	"github.com/custodia-labs/valet-cli/internal/core/domain"
	"github.com/custodia-labs/valet-cli/internal/core/ports/driven"
)

// Ensure VectorStore implements the interface.
var _ driven.VectorStore = (*VectorStore)(nil)

// VectorStore is an in-memory implementation of driven.VectorStore.
// Used for tests and ephemeral runs; search is a brute-force cosine scan.
type VectorStore struct {
	mu      sync.RWMutex
	dim     int
	chunks  map[string]domain.Chunk        // by chunk ID
	records map[string]domain.VectorRecord // by chunk ID
	sources map[string]domain.SourceInfo   // by source ID
}

// NewVectorStore creates an in-memory vector store for embeddings of the
// given dimension.
func NewVectorStore(dimensions int) *VectorStore {
	return &VectorStore{
		dim:     dimensions,
		chunks:  make(map[string]domain.Chunk),
		records: make(map[string]domain.VectorRecord),
		sources: make(map[string]domain.SourceInfo),
	}
}

// Add persists chunks with their embeddings.
func (s *VectorStore) Add(_ context.Context, chunks []domain.Chunk, records []domain.VectorRecord) error {
	if len(chunks) != len(records) {
		return fmt.Errorf("%w: %d chunks with %d records", domain.ErrInvalidInput, len(chunks), len(records))
	}
	if err := s.checkDimensions(records); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.insertLocked(chunks, records)
	return nil
}

// Replace atomically swaps all rows of the given source.
func (s *VectorStore) Replace(_ context.Context, info domain.SourceInfo, chunks []domain.Chunk, records []domain.VectorRecord) error {
	if len(chunks) != len(records) {
		return fmt.Errorf("%w: %d chunks with %d records", domain.ErrInvalidInput, len(chunks), len(records))
	}
	if err := s.checkDimensions(records); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.deleteLocked(driven.Filter{SourceID: info.ID})
	if len(chunks) == 0 {
		return nil
	}
	s.insertLocked(chunks, records)
	s.sources[info.ID] = info
	return nil
}

// Search returns the k nearest records to the query, ascending by distance.
func (s *VectorStore) Search(_ context.Context, query []float32, k int, f driven.Filter) ([]driven.Match, error) {
	if len(query) != s.dim {
		return nil, fmt.Errorf("%w: query has %d dimensions, store expects %d",
			domain.ErrDimensionMismatch, len(query), s.dim)
	}
	if k <= 0 {
		return nil, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	matches := make([]driven.Match, 0, len(s.records))
	for id, rec := range s.records {
		if !f.Matches(rec.SourceID, rec.SourceType) {
			continue
		}
		matches = append(matches, driven.Match{
			Chunk:     s.chunks[id],
			Distance:  vecmath.CosineDistance(query, rec.Embedding),
			CreatedAt: rec.CreatedAt,
			Source:    s.sources[rec.SourceID].Ref(),
		})
	}

	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Distance != matches[j].Distance {
			return matches[i].Distance < matches[j].Distance
		}
		return matches[i].CreatedAt.After(matches[j].CreatedAt)
	})

	if len(matches) > k {
		matches = matches[:k]
	}
	return matches, nil
}

// Delete removes all records matching the filter.
func (s *VectorStore) Delete(_ context.Context, f driven.Filter) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deleteLocked(f)
	return nil
}

// Count returns the number of records matching the filter.
func (s *VectorStore) Count(_ context.Context, f driven.Filter) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := 0
	for _, rec := range s.records {
		if f.Matches(rec.SourceID, rec.SourceType) {
			n++
		}
	}
	return n, nil
}

// Sources lists ingested sources, most recently ingested first.
func (s *VectorStore) Sources(_ context.Context) ([]domain.SourceInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	counts := make(map[string]int)
	for _, rec := range s.records {
		counts[rec.SourceID]++
	}

	infos := make([]domain.SourceInfo, 0, len(s.sources))
	for id, info := range s.sources {
		info.ChunkCount = counts[id]
		infos = append(infos, info)
	}

	sort.Slice(infos, func(i, j int) bool {
		return infos[i].IngestedAt.After(infos[j].IngestedAt)
	})
	return infos, nil
}

// Close releases resources.
func (s *VectorStore) Close() error {
	return nil
}

func (s *VectorStore) checkDimensions(records []domain.VectorRecord) error {
	for _, rec := range records {
		if len(rec.Embedding) != s.dim {
			return fmt.Errorf("%w: record %s has %d dimensions, store expects %d",
				domain.ErrDimensionMismatch, rec.ChunkID, len(rec.Embedding), s.dim)
		}
	}
	return nil
}

func (s *VectorStore) insertLocked(chunks []domain.Chunk, records []domain.VectorRecord) {
	for i := range chunks {
		s.chunks[chunks[i].ID] = chunks[i]
		s.records[chunks[i].ID] = records[i]
	}
}

func (s *VectorStore) deleteLocked(f driven.Filter) {
	for id, rec := range s.records {
		if f.Matches(rec.SourceID, rec.SourceType) {
			delete(s.records, id)
			delete(s.chunks, id)
		}
	}

	// Drop metadata for sources that no longer have records.
	remaining := make(map[string]bool)
	for _, rec := range s.records {
		remaining[rec.SourceID] = true
	}
	for id := range s.sources {
		if !remaining[id] {
			delete(s.sources, id)
		}
	}
}
