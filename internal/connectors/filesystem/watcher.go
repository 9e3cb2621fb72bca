package filesystem

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/custodia-labs/valet-cli/internal/core/domain"
	"github.com/custodia-labs/valet-cli/internal/core/ports/driving"
	"github.com/custodia-labs/valet-cli/internal/logger"
)

// debounceDelay coalesces rapid write bursts (editors often write a
// file several times in quick succession) into one re-ingest.
const debounceDelay = 500 * time.Millisecond

// Watcher keeps an ingested directory tree in sync: file writes
// re-ingest the document, removals clear its chunks.
type Watcher struct {
	retrieval driving.RetrievalService
	loader    *Loader
	watcher   *fsnotify.Watcher

	pending map[string]*time.Timer
}

// NewWatcher creates a watcher feeding the given retrieval service.
func NewWatcher(retrieval driving.RetrievalService) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating file watcher: %w", err)
	}
	return &Watcher{
		retrieval: retrieval,
		loader:    NewLoader(),
		watcher:   fsw,
		pending:   make(map[string]*time.Timer),
	}, nil
}

// Add registers a directory (recursively) or single file for watching.
func (w *Watcher) Add(root string) error {
	abs, err := filepath.Abs(root)
	if err != nil {
		return fmt.Errorf("resolving %s: %w", root, err)
	}

	info, err := os.Stat(abs)
	if err != nil {
		return fmt.Errorf("stat %s: %w", root, err)
	}
	if !info.IsDir() {
		return w.watcher.Add(filepath.Dir(abs))
	}

	return filepath.WalkDir(abs, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !entry.IsDir() {
			return nil
		}
		if isHidden(entry.Name()) && path != abs {
			return filepath.SkipDir
		}
		return w.watcher.Add(path)
	})
}

// Run processes filesystem events until the context is cancelled.
func (w *Watcher) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			w.handle(ctx, event)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("File watcher error: %v", err)
		}
	}
}

// Close stops the watcher and releases its resources.
func (w *Watcher) Close() error {
	for _, timer := range w.pending {
		timer.Stop()
	}
	return w.watcher.Close()
}

// handle reacts to one filesystem event.
func (w *Watcher) handle(ctx context.Context, event fsnotify.Event) {
	// New subdirectories must be added to the watch set.
	if event.Op.Has(fsnotify.Create) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if !isHidden(filepath.Base(event.Name)) {
				if err := w.watcher.Add(event.Name); err != nil {
					logger.Warn("Watching new directory %s: %v", event.Name, err)
				}
			}
			return
		}
	}

	if !Ingestable(event.Name) {
		return
	}

	switch {
	case event.Op.Has(fsnotify.Remove) || event.Op.Has(fsnotify.Rename):
		w.clear(ctx, event.Name)

	case event.Op.Has(fsnotify.Create) || event.Op.Has(fsnotify.Write):
		w.scheduleReingest(ctx, event.Name)
	}
}

// scheduleReingest debounces writes to the same path.
func (w *Watcher) scheduleReingest(ctx context.Context, path string) {
	if timer, ok := w.pending[path]; ok {
		timer.Stop()
	}
	w.pending[path] = time.AfterFunc(debounceDelay, func() {
		w.reingest(ctx, path)
	})
}

// reingest reloads and replaces a changed document.
func (w *Watcher) reingest(ctx context.Context, path string) {
	docs, err := w.loader.Load(ctx, path)
	if err != nil {
		logger.Warn("Re-ingesting %s: %v", path, err)
		return
	}
	for _, doc := range docs {
		info := domain.SourceInfo{
			ID:    doc.SourceID,
			Type:  domain.SourceTypeFile,
			Title: doc.Title,
			URI:   doc.URI,
		}
		count, err := w.retrieval.Ingest(ctx, info, doc.Text)
		if err != nil {
			logger.Warn("Re-ingesting %s: %v", path, err)
			continue
		}
		logger.Debug("Re-ingested %s (%d chunks)", path, count)
	}
}

// clear removes a deleted document's chunks.
func (w *Watcher) clear(ctx context.Context, path string) {
	if err := w.retrieval.Clear(ctx, SourceID(path)); err != nil {
		logger.Warn("Clearing %s: %v", path, err)
		return
	}
	logger.Debug("Cleared removed file %s", path)
}
