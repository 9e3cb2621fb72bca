package github

import (
	"context"
	"encoding/base64"
	"fmt"
	"path"
	"strings"

	"github.com/custodia-labs/valet-cli/internal/core/ports/driven"
	"github.com/custodia-labs/valet-cli/internal/logger"
)

// MaxFileSize is the largest blob the loader will fetch (1 MiB).
const MaxFileSize = 1 << 20

// docExtensions are the file extensions treated as ingestable documents.
// Everything else in the tree is skipped.
var docExtensions = map[string]bool{
	".md":       true,
	".markdown": true,
	".txt":      true,
	".text":     true,
	".rst":      true,
	".org":      true,
}

// Ensure Loader implements the port.
var _ driven.DocumentLoader = (*Loader)(nil)

// Loader resolves "owner/repo[@ref]" targets into the repository's
// markdown and plain-text documents via the GitHub API.
type Loader struct {
	client *Client
}

// NewLoader creates a document loader backed by the given client.
func NewLoader(client *Client) *Loader {
	return &Loader{client: client}
}

// Load fetches the repository tree at the target ref and returns every
// ingestable document. The ref defaults to the repository's default
// branch. Targets that do not look like a repository reference return
// ErrInvalidTarget so the next loader can claim them.
func (l *Loader) Load(ctx context.Context, target string) ([]driven.LoadedDocument, error) {
	owner, repo, ref, err := parseTarget(target)
	if err != nil {
		return nil, err
	}

	if ref == "" {
		repository, err := l.client.GetRepository(ctx, owner, repo)
		if err != nil {
			return nil, err
		}
		ref = repository.GetDefaultBranch()
	}

	tree, err := l.client.GetTree(ctx, owner, repo, ref)
	if err != nil {
		return nil, err
	}

	logger.Debug("GitHub tree %s/%s@%s: %d entries", owner, repo, ref, len(tree.Entries))

	var docs []driven.LoadedDocument
	for _, entry := range tree.Entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if entry.GetType() != "blob" {
			continue
		}

		filePath := entry.GetPath()
		if !docExtensions[strings.ToLower(path.Ext(filePath))] {
			continue
		}
		if entry.GetSize() > MaxFileSize {
			logger.Debug("Skipping oversized file: %s (%d bytes)", filePath, entry.GetSize())
			continue
		}

		text, err := l.fetchBlobText(ctx, owner, repo, entry.GetSHA())
		if err != nil {
			// Unreadable blobs are skipped rather than failing the
			// whole repository, but rate limiting aborts.
			if IsRateLimited(err) {
				return nil, err
			}
			logger.Warn("Skipping unreadable file %s: %v", filePath, err)
			continue
		}

		docs = append(docs, driven.LoadedDocument{
			SourceID: fmt.Sprintf("github:%s/%s/%s", owner, repo, filePath),
			Title:    path.Base(filePath),
			URI:      fmt.Sprintf("https://github.com/%s/%s/blob/%s/%s", owner, repo, ref, filePath),
			Text:     text,
		})
	}

	return docs, nil
}

// fetchBlobText fetches a blob and decodes it to plain text.
func (l *Loader) fetchBlobText(ctx context.Context, owner, repo, sha string) (string, error) {
	blob, err := l.client.GetBlob(ctx, owner, repo, sha)
	if err != nil {
		return "", err
	}

	if blob.GetEncoding() == "base64" {
		raw := strings.ReplaceAll(blob.GetContent(), "\n", "")
		decoded, err := base64.StdEncoding.DecodeString(raw)
		if err != nil {
			return "", fmt.Errorf("decode blob %s: %w", sha, err)
		}
		return string(decoded), nil
	}

	return blob.GetContent(), nil
}

// parseTarget parses an "owner/repo[@ref]" reference. The github.com
// host prefix and an https:// scheme are accepted and stripped.
func parseTarget(target string) (owner, repo, ref string, err error) {
	t := strings.TrimSpace(target)
	t = strings.TrimPrefix(t, "https://")
	t = strings.TrimPrefix(t, "http://")
	t = strings.TrimPrefix(t, "github.com/")
	t = strings.TrimSuffix(t, "/")

	if at := strings.LastIndex(t, "@"); at >= 0 {
		t, ref = t[:at], t[at+1:]
		if ref == "" {
			return "", "", "", fmt.Errorf("%w: empty ref in %q", ErrInvalidTarget, target)
		}
	}

	parts := strings.Split(t, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", "", fmt.Errorf("%w: %q", ErrInvalidTarget, target)
	}
	for _, part := range parts {
		if strings.ContainsAny(part, " \t") {
			return "", "", "", fmt.Errorf("%w: %q", ErrInvalidTarget, target)
		}
	}

	return parts[0], parts[1], ref, nil
}
