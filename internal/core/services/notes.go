package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/custodia-labs/valet-cli/internal/core/domain"
	"github.com/custodia-labs/valet-cli/internal/core/ports/driven"
	"github.com/custodia-labs/valet-cli/internal/core/ports/driving"
	"github.com/custodia-labs/valet-cli/internal/logger"
)

// Ensure NoteService implements the interface.
var _ driving.NoteService = (*NoteService)(nil)

// NoteService manages user notes. Notes are first-class retrieval
// sources: saving a note ingests its text, deleting it clears the
// vectors, so retrieval never serves stale note content.
type NoteService struct {
	store     driven.NoteStore
	retrieval driving.RetrievalService // optional, nil disables auto-ingest
	clockFunc func() time.Time
	idFunc    func() string
}

// NewNoteService creates a note service. Retrieval may be nil when no
// embedding provider is configured; notes are still stored, just not
// searchable by similarity.
func NewNoteService(store driven.NoteStore, retrieval driving.RetrievalService) *NoteService {
	return &NoteService{
		store:     store,
		retrieval: retrieval,
		clockFunc: time.Now,
		idFunc:    func() string { return uuid.NewString() },
	}
}

// Add saves a new note and ingests it for retrieval.
func (s *NoteService) Add(ctx context.Context, title, text string) (domain.Note, error) {
	now := s.clockFunc().UTC()
	note := domain.Note{
		ID:        s.idFunc(),
		Title:     title,
		Text:      text,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := note.Validate(); err != nil {
		return domain.Note{}, err
	}

	if err := s.store.Save(ctx, note); err != nil {
		return domain.Note{}, fmt.Errorf("saving note: %w", err)
	}

	if err := s.ingest(ctx, note); err != nil {
		return domain.Note{}, err
	}

	logger.Debug("Saved note %s (%q)", note.ID, note.DisplayTitle())
	return note, nil
}

// Update rewrites an existing note and re-ingests it, replacing its
// prior chunks.
func (s *NoteService) Update(ctx context.Context, id, title, text string) (domain.Note, error) {
	note, err := s.store.Get(ctx, id)
	if err != nil {
		return domain.Note{}, fmt.Errorf("loading note %s: %w", id, err)
	}

	note.Title = title
	note.Text = text
	note.UpdatedAt = s.clockFunc().UTC()
	if err := note.Validate(); err != nil {
		return domain.Note{}, err
	}

	if err := s.store.Save(ctx, note); err != nil {
		return domain.Note{}, fmt.Errorf("saving note: %w", err)
	}

	if err := s.ingest(ctx, note); err != nil {
		return domain.Note{}, err
	}
	return note, nil
}

// Get returns a note by ID.
func (s *NoteService) Get(ctx context.Context, id string) (domain.Note, error) {
	note, err := s.store.Get(ctx, id)
	if err != nil {
		return domain.Note{}, fmt.Errorf("loading note %s: %w", id, err)
	}
	return note, nil
}

// List returns all notes, most recently updated first.
func (s *NoteService) List(ctx context.Context) ([]domain.Note, error) {
	notes, err := s.store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing notes: %w", err)
	}
	return notes, nil
}

// Search returns note chunks relevant to the query by vector similarity.
func (s *NoteService) Search(ctx context.Context, query string, k int) ([]domain.RankedChunk, error) {
	if s.retrieval == nil {
		return nil, fmt.Errorf("note search: %w", domain.ErrEmbeddingUnavailable)
	}
	return s.retrieval.Retrieve(ctx, query, domain.RetrieveOptions{
		SourceType: domain.SourceTypeNote,
		K:          k,
	})
}

// Delete removes a note and clears its chunks. Deleting a missing note
// is a no-op.
func (s *NoteService) Delete(ctx context.Context, id string) error {
	if err := s.store.Delete(ctx, id); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("deleting note %s: %w", id, err)
	}

	if s.retrieval != nil {
		if err := s.retrieval.Clear(ctx, id); err != nil {
			return fmt.Errorf("clearing note %s from retrieval: %w", id, err)
		}
	}

	logger.Debug("Deleted note %s", id)
	return nil
}

// ingest feeds the note text into retrieval under its own source ID.
func (s *NoteService) ingest(ctx context.Context, note domain.Note) error {
	if s.retrieval == nil {
		return nil
	}

	info := domain.SourceInfo{
		ID:    note.ID,
		Type:  domain.SourceTypeNote,
		Title: note.DisplayTitle(),
		URI:   note.URI(),
	}
	if _, err := s.retrieval.Ingest(ctx, info, note.Text); err != nil {
		return fmt.Errorf("ingesting note %s: %w", note.ID, err)
	}
	return nil
}
