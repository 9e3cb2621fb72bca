package mcp

import (
	"context"

	"github.com/custodia-labs/valet-cli/internal/core/domain"
	"github.com/custodia-labs/valet-cli/internal/core/ports/driving"
)

// mockRetrieval implements driving.RetrievalService for tests.
type mockRetrieval struct {
	hits    []domain.RankedChunk
	sources []domain.SourceInfo
	err     error

	lastQuery string
	lastOpts  domain.RetrieveOptions
	cleared   []string
}

var _ driving.RetrievalService = (*mockRetrieval)(nil)

func (m *mockRetrieval) Ingest(_ context.Context, _ domain.SourceInfo, _ string) (int, error) {
	return 0, m.err
}

func (m *mockRetrieval) Retrieve(
	_ context.Context, query string, opts domain.RetrieveOptions,
) ([]domain.RankedChunk, error) {
	m.lastQuery = query
	m.lastOpts = opts
	return m.hits, m.err
}

func (m *mockRetrieval) Clear(_ context.Context, sourceID string) error {
	m.cleared = append(m.cleared, sourceID)
	return m.err
}

func (m *mockRetrieval) Sources(_ context.Context) ([]domain.SourceInfo, error) {
	return m.sources, m.err
}

// mockNotes implements driving.NoteService for tests.
type mockNotes struct {
	notes []domain.Note
	hits  []domain.RankedChunk
	err   error

	added     []domain.Note
	lastQuery string
	lastK     int
}

var _ driving.NoteService = (*mockNotes)(nil)

func (m *mockNotes) Add(_ context.Context, title, text string) (domain.Note, error) {
	if m.err != nil {
		return domain.Note{}, m.err
	}
	note := domain.Note{ID: "note-1", Title: title, Text: text}
	m.added = append(m.added, note)
	return note, nil
}

func (m *mockNotes) Update(_ context.Context, id, title, text string) (domain.Note, error) {
	if m.err != nil {
		return domain.Note{}, m.err
	}
	return domain.Note{ID: id, Title: title, Text: text}, nil
}

func (m *mockNotes) Get(_ context.Context, id string) (domain.Note, error) {
	if m.err != nil {
		return domain.Note{}, m.err
	}
	for _, note := range m.notes {
		if note.ID == id {
			return note, nil
		}
	}
	return domain.Note{}, domain.ErrNotFound
}

func (m *mockNotes) List(_ context.Context) ([]domain.Note, error) {
	return m.notes, m.err
}

func (m *mockNotes) Search(_ context.Context, query string, k int) ([]domain.RankedChunk, error) {
	m.lastQuery = query
	m.lastK = k
	return m.hits, m.err
}

func (m *mockNotes) Delete(_ context.Context, _ string) error {
	return m.err
}

// mockIngest implements driving.IngestService for tests.
type mockIngest struct {
	chunks int
	err    error

	lastDoc  domain.SourceInfo
	lastText string
	removed  []string
}

var _ driving.IngestService = (*mockIngest)(nil)

func (m *mockIngest) IngestTarget(_ context.Context, _ string) (driving.IngestReport, error) {
	return driving.IngestReport{}, m.err
}

func (m *mockIngest) IngestDocument(_ context.Context, doc domain.SourceInfo, text string) (int, error) {
	m.lastDoc = doc
	m.lastText = text
	return m.chunks, m.err
}

func (m *mockIngest) Remove(_ context.Context, sourceID string) error {
	m.removed = append(m.removed, sourceID)
	return m.err
}
