package filesystem

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/valet-cli/internal/core/domain"
)

func writeTestFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadDirectory(t *testing.T) {
	dir := t.TempDir()
	writeTestFile(t, dir, "notes.md", "# Notes\n\nsome notes")
	writeTestFile(t, dir, "plain.txt", "plain text")
	writeTestFile(t, dir, "sub/deep.md", "nested")
	writeTestFile(t, dir, "image.png", "\x89PNG")
	writeTestFile(t, dir, ".hidden/secret.md", "hidden")
	writeTestFile(t, dir, ".dotfile.md", "dot")

	loader := NewLoader()
	docs, err := loader.Load(context.Background(), dir)
	require.NoError(t, err)

	titles := make([]string, 0, len(docs))
	for _, d := range docs {
		titles = append(titles, d.Title)
	}
	assert.ElementsMatch(t, []string{"notes.md", "plain.txt", "deep.md"}, titles,
		"binary and hidden files are skipped")
}

func TestLoadSingleFile(t *testing.T) {
	dir := t.TempDir()
	path := writeTestFile(t, dir, "doc.md", "content here")

	loader := NewLoader()
	docs, err := loader.Load(context.Background(), path)
	require.NoError(t, err)

	require.Len(t, docs, 1)
	assert.Equal(t, "doc.md", docs[0].Title)
	assert.Equal(t, "content here", docs[0].Text)
	assert.Equal(t, SourceID(path), docs[0].SourceID)
	assert.Equal(t, "file://"+SourceID(path), docs[0].URI)
}

func TestLoadSingleNonTextFile(t *testing.T) {
	dir := t.TempDir()
	path := writeTestFile(t, dir, "archive.zip", "PK")

	loader := NewLoader()
	_, err := loader.Load(context.Background(), path)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestLoadMissingTarget(t *testing.T) {
	loader := NewLoader()
	_, err := loader.Load(context.Background(), filepath.Join(t.TempDir(), "nope"))
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestSourceIDStable(t *testing.T) {
	dir := t.TempDir()
	path := writeTestFile(t, dir, "a.md", "x")

	t.Chdir(dir)
	assert.Equal(t, SourceID(path), SourceID("a.md"),
		"relative and absolute paths resolve to the same source")
}

func TestIngestable(t *testing.T) {
	assert.True(t, Ingestable("/docs/readme.md"))
	assert.True(t, Ingestable("/docs/README.MD"))
	assert.True(t, Ingestable("notes.txt"))
	assert.False(t, Ingestable("photo.jpg"))
	assert.False(t, Ingestable("binary"))
	assert.False(t, Ingestable("/docs/.draft.md"))
}
