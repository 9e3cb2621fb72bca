package driven

import "context"

// LoadedDocument is one plain-text document produced by a loader,
// ready for ingestion.
type LoadedDocument struct {
	// SourceID is the stable identifier used for replace-on-reingest.
	SourceID string

	// Title is the human-readable document name.
	Title string

	// URI is the document location (absolute path, github:// URL).
	URI string

	// Text is the full document text.
	Text string
}

// DocumentLoader resolves a target (directory, file path, repository)
// into plain-text documents. Binary formats are skipped, not converted;
// format extraction is out of scope.
type DocumentLoader interface {
	// Load returns all ingestable documents under the target.
	Load(ctx context.Context, target string) ([]LoadedDocument, error)
}
