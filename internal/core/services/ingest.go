package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/custodia-labs/valet-cli/internal/core/domain"
	"github.com/custodia-labs/valet-cli/internal/core/ports/driven"
	"github.com/custodia-labs/valet-cli/internal/core/ports/driving"
	"github.com/custodia-labs/valet-cli/internal/logger"
)

// Ensure IngestService implements the interface.
var _ driving.IngestService = (*IngestService)(nil)

// IngestService resolves targets into plain-text documents via the
// wired loaders and feeds each one into retrieval as a file source.
type IngestService struct {
	loaders   []driven.DocumentLoader
	retrieval driving.RetrievalService
}

// NewIngestService creates an ingest service. Loaders are tried in
// order; the first one that claims the target wins.
func NewIngestService(retrieval driving.RetrievalService, loaders ...driven.DocumentLoader) *IngestService {
	return &IngestService{
		loaders:   loaders,
		retrieval: retrieval,
	}
}

// IngestTarget loads all documents under the target and ingests each
// one, replacing prior content. Documents that produce no chunks are
// counted as skipped, not failed.
func (s *IngestService) IngestTarget(ctx context.Context, target string) (driving.IngestReport, error) {
	target = strings.TrimSpace(target)
	if target == "" {
		return driving.IngestReport{}, fmt.Errorf("%w: target is empty", domain.ErrInvalidInput)
	}

	logger.Section("Ingest Target")
	logger.Debug("Target: %s", target)

	docs, err := s.load(ctx, target)
	if err != nil {
		return driving.IngestReport{}, err
	}

	var report driving.IngestReport
	for _, doc := range docs {
		count, err := s.IngestDocument(ctx, domain.SourceInfo{
			ID:    doc.SourceID,
			Type:  domain.SourceTypeFile,
			Title: doc.Title,
			URI:   doc.URI,
		}, doc.Text)
		if err != nil {
			return report, fmt.Errorf("ingesting %s: %w", doc.URI, err)
		}
		if count == 0 {
			report.Skipped++
			continue
		}
		report.Documents++
		report.Chunks += count
	}

	logger.Debug("Ingested %d documents (%d chunks, %d skipped)",
		report.Documents, report.Chunks, report.Skipped)
	return report, nil
}

// IngestDocument ingests a single already-loaded document.
func (s *IngestService) IngestDocument(ctx context.Context, doc domain.SourceInfo, text string) (int, error) {
	doc.Type = domain.SourceTypeFile
	return s.retrieval.Ingest(ctx, doc, text)
}

// Remove clears an ingested document by source ID.
func (s *IngestService) Remove(ctx context.Context, sourceID string) error {
	return s.retrieval.Clear(ctx, sourceID)
}

// load resolves the target through the wired loaders.
func (s *IngestService) load(ctx context.Context, target string) ([]driven.LoadedDocument, error) {
	var lastErr error
	for _, loader := range s.loaders {
		docs, err := loader.Load(ctx, target)
		if err != nil {
			lastErr = err
			continue
		}
		return docs, nil
	}
	if lastErr != nil {
		return nil, fmt.Errorf("loading %s: %w", target, lastErr)
	}
	return nil, fmt.Errorf("%w: no loader configured for %s", domain.ErrNotConfigured, target)
}
