package driving

import (
	"context"

	"github.com/custodia-labs/valet-cli/internal/core/domain"
)

// IngestReport summarises one ingestion run.
type IngestReport struct {
	// Documents is the number of documents ingested.
	Documents int

	// Chunks is the total number of chunks stored.
	Chunks int

	// Skipped counts documents that produced no chunks.
	Skipped int
}

// IngestService loads documents from a target and feeds them into
// retrieval. Each document becomes one source of type file.
type IngestService interface {
	// IngestTarget loads all documents under the target (file, directory
	// or repository reference, depending on the wired loader) and ingests
	// each one, replacing prior content.
	IngestTarget(ctx context.Context, target string) (IngestReport, error)

	// IngestDocument ingests a single already-loaded document.
	IngestDocument(ctx context.Context, doc domain.SourceInfo, text string) (int, error)

	// Remove clears an ingested document by source ID.
	Remove(ctx context.Context, sourceID string) error
}
