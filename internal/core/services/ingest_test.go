package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/valet-cli/internal/core/domain"
	"github.com/custodia-labs/valet-cli/internal/core/ports/driven"
)

// fakeLoader serves canned documents for targets it recognises.
type fakeLoader struct {
	docs map[string][]driven.LoadedDocument
}

func (l *fakeLoader) Load(_ context.Context, target string) ([]driven.LoadedDocument, error) {
	docs, ok := l.docs[target]
	if !ok {
		return nil, errors.New("unrecognised target")
	}
	return docs, nil
}

func TestIngestTargetReportsCounts(t *testing.T) {
	loader := &fakeLoader{docs: map[string][]driven.LoadedDocument{
		"/docs": {
			{SourceID: "a", Title: "a.md", URI: "/docs/a.md", Text: "alpha content"},
			{SourceID: "b", Title: "b.md", URI: "/docs/b.md", Text: "beta content"},
			{SourceID: "c", Title: "c.md", URI: "/docs/c.md", Text: ""},
		},
	}}
	retrieval := newRecordingRetrieval()
	svc := NewIngestService(retrieval, loader)

	report, err := svc.IngestTarget(context.Background(), "/docs")
	require.NoError(t, err)

	assert.Equal(t, 2, report.Documents)
	assert.Equal(t, 2, report.Chunks)
	assert.Equal(t, 1, report.Skipped, "empty documents are skipped, not failed")

	require.Len(t, retrieval.ingested, 3)
	for _, info := range retrieval.ingested {
		assert.Equal(t, domain.SourceTypeFile, info.Type)
	}
}

func TestIngestTargetEmpty(t *testing.T) {
	svc := NewIngestService(newRecordingRetrieval())

	_, err := svc.IngestTarget(context.Background(), "  ")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestIngestTargetNoLoaders(t *testing.T) {
	svc := NewIngestService(newRecordingRetrieval())

	_, err := svc.IngestTarget(context.Background(), "/somewhere")
	assert.ErrorIs(t, err, domain.ErrNotConfigured)
}

func TestIngestTargetFirstClaimingLoaderWins(t *testing.T) {
	first := &fakeLoader{docs: map[string][]driven.LoadedDocument{}}
	second := &fakeLoader{docs: map[string][]driven.LoadedDocument{
		"repo": {{SourceID: "r", Title: "README", URI: "repo/README.md", Text: "readme"}},
	}}
	retrieval := newRecordingRetrieval()
	svc := NewIngestService(retrieval, first, second)

	report, err := svc.IngestTarget(context.Background(), "repo")
	require.NoError(t, err)
	assert.Equal(t, 1, report.Documents)
}

func TestIngestTargetAllLoadersFail(t *testing.T) {
	loader := &fakeLoader{docs: map[string][]driven.LoadedDocument{}}
	svc := NewIngestService(newRecordingRetrieval(), loader)

	_, err := svc.IngestTarget(context.Background(), "/nope")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unrecognised target")
}

func TestIngestDocumentForcesFileType(t *testing.T) {
	retrieval := newRecordingRetrieval()
	svc := NewIngestService(retrieval)

	_, err := svc.IngestDocument(context.Background(), domain.SourceInfo{
		ID:   "doc-1",
		Type: domain.SourceTypeNote, // callers cannot smuggle other types
	}, "content")
	require.NoError(t, err)

	require.Len(t, retrieval.ingested, 1)
	assert.Equal(t, domain.SourceTypeFile, retrieval.ingested[0].Type)
}

func TestIngestRemoveClears(t *testing.T) {
	retrieval := newRecordingRetrieval()
	svc := NewIngestService(retrieval)

	require.NoError(t, svc.Remove(context.Background(), "doc-1"))
	assert.Equal(t, []string{"doc-1"}, retrieval.cleared)
}
