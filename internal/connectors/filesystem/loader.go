// Package filesystem loads plain-text documents from local files and
// directories, and can watch them for changes.
package filesystem

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/custodia-labs/valet-cli/internal/core/domain"
	"github.com/custodia-labs/valet-cli/internal/core/ports/driven"
	"github.com/custodia-labs/valet-cli/internal/logger"
)

// Ensure Loader implements the interface.
var _ driven.DocumentLoader = (*Loader)(nil)

// MaxFileSize bounds a single ingestable file. Larger files are skipped.
const MaxFileSize = 10 << 20 // 10 MiB

// textExtensions lists the file types the loader treats as plain text.
// Binary formats are skipped, not converted.
var textExtensions = map[string]bool{
	".md":       true,
	".markdown": true,
	".txt":      true,
	".text":     true,
	".rst":      true,
	".org":      true,
}

// Loader resolves local paths into documents. A directory target is
// walked recursively; hidden directories are skipped.
type Loader struct{}

// NewLoader creates a filesystem loader.
func NewLoader() *Loader {
	return &Loader{}
}

// Load returns the ingestable documents under the target path.
func (l *Loader) Load(_ context.Context, target string) ([]driven.LoadedDocument, error) {
	abs, err := filepath.Abs(target)
	if err != nil {
		return nil, fmt.Errorf("resolving %s: %w", target, err)
	}

	info, err := os.Stat(abs)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", domain.ErrNotFound, target)
		}
		return nil, fmt.Errorf("stat %s: %w", target, err)
	}

	if !info.IsDir() {
		doc, ok, err := loadFile(abs, info.Size())
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, fmt.Errorf("%w: %s is not a text file", domain.ErrInvalidInput, target)
		}
		return []driven.LoadedDocument{doc}, nil
	}

	var docs []driven.LoadedDocument
	walkErr := filepath.WalkDir(abs, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if entry.IsDir() {
			if isHidden(entry.Name()) && path != abs {
				return filepath.SkipDir
			}
			return nil
		}
		if isHidden(entry.Name()) {
			return nil
		}

		fi, err := entry.Info()
		if err != nil {
			return err
		}
		doc, ok, err := loadFile(path, fi.Size())
		if err != nil {
			return err
		}
		if ok {
			docs = append(docs, doc)
		}
		return nil
	})
	if walkErr != nil {
		return nil, fmt.Errorf("walking %s: %w", target, walkErr)
	}

	logger.Debug("Loaded %d documents from %s", len(docs), abs)
	return docs, nil
}

// Ingestable reports whether the loader would pick up the given path.
func Ingestable(path string) bool {
	return textExtensions[strings.ToLower(filepath.Ext(path))] && !isHidden(filepath.Base(path))
}

// SourceID returns the stable source identifier for a file path.
// Re-ingesting the same path replaces its prior chunks.
func SourceID(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		return path
	}
	return abs
}

// loadFile reads one file if it is ingestable text. The ok result is
// false for skipped files (wrong extension, too large, empty).
func loadFile(path string, size int64) (driven.LoadedDocument, bool, error) {
	if !Ingestable(path) {
		return driven.LoadedDocument{}, false, nil
	}
	if size > MaxFileSize {
		logger.Warn("Skipping %s: %d bytes exceeds the %d byte limit", path, size, MaxFileSize)
		return driven.LoadedDocument{}, false, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return driven.LoadedDocument{}, false, fmt.Errorf("reading %s: %w", path, err)
	}

	return driven.LoadedDocument{
		SourceID: SourceID(path),
		Title:    filepath.Base(path),
		URI:      "file://" + SourceID(path),
		Text:     string(data),
	}, true, nil
}

// isHidden reports whether a file or directory name is dot-prefixed.
func isHidden(name string) bool {
	return strings.HasPrefix(name, ".") && name != "." && name != ".."
}
