package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/custodia-labs/valet-cli/internal/adapters/driven/storage/sqlite/migrations"
	"github.com/custodia-labs/valet-cli/internal/adapters/driven/storage/vecmath"
	"github.com/custodia-labs/valet-cli/internal/core/domain"
	"github.com/custodia-labs/valet-cli/internal/core/ports/driven"
)

// Store is a unified SQLite-based storage that provides access to
// all metadata store interfaces through wrapper types.
type Store struct {
	db   *sql.DB
	path string
}

// NewStore creates a new SQLite store at the specified data directory.
// If dataDir is empty, defaults to ~/.valet/data/valet.db.
func NewStore(dataDir string) (*Store, error) {
	if dataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("getting home directory: %w", err)
		}
		dataDir = filepath.Join(home, ".valet", "data")
	}

	// Ensure directory exists
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, "valet.db")

	// Open database with WAL mode for better concurrency. Foreign keys are
	// enabled in the DSN so every pooled connection enforces them.
	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Store{
		db:   db,
		path: dbPath,
	}

	// Run migrations
	if err := s.migrate(migrations.FS); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// VectorStore returns a VectorStore interface backed by this store.
// Writes whose embeddings do not have the given dimension count fail
// with domain.ErrDimensionMismatch.
func (s *Store) VectorStore(dimensions int) driven.VectorStore {
	return &vectorStore{store: s, dimensions: dimensions}
}

// NoteStore returns a NoteStore interface backed by this store.
func (s *Store) NoteStore() driven.NoteStore {
	return &noteStore{store: s}
}

// ConversationStore returns a ConversationStore interface backed by this store.
func (s *Store) ConversationStore() driven.ConversationStore {
	return &conversationStore{store: s}
}

// migrate runs all pending migrations.
func (s *Store) migrate(fsys embed.FS) error {
	// Ensure schema_migrations table exists
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("creating schema_migrations table: %w", err)
	}

	// Get current version
	var currentVersion int
	row := s.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations")
	if err := row.Scan(&currentVersion); err != nil {
		return fmt.Errorf("getting current version: %w", err)
	}

	// Find all up migrations
	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}

	// Sort and run migrations
	var upFiles []string
	for _, entry := range entries {
		name := entry.Name()
		if strings.HasSuffix(name, ".up.sql") {
			upFiles = append(upFiles, name)
		}
	}
	sort.Strings(upFiles)

	for _, name := range upFiles {
		// Extract version number (e.g., "001_initial.up.sql" -> 1)
		var version int
		if _, err := fmt.Sscanf(name, "%d_", &version); err != nil {
			continue // Skip files that don't match pattern
		}

		if version <= currentVersion {
			continue // Already applied
		}

		// Read and execute migration
		content, err := fs.ReadFile(fsys, name)
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", name, err)
		}

		if _, err := s.db.Exec(string(content)); err != nil {
			return fmt.Errorf("executing migration %s: %w", name, err)
		}
	}

	return nil
}

// ==================== Vector Store ====================

// vectorStore implements driven.VectorStore.
type vectorStore struct {
	store      *Store
	dimensions int
}

var _ driven.VectorStore = (*vectorStore)(nil)

// Add persists chunks with their embeddings. All records are validated
// before anything is written.
func (s *vectorStore) Add(ctx context.Context, chunks []domain.Chunk, records []domain.VectorRecord) error {
	if err := s.validate(chunks, records); err != nil {
		return err
	}

	tx, err := s.store.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if err := insertRecords(ctx, tx, chunks, records); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// Replace atomically swaps all rows of a source for the new ones.
// Passing no rows clears the source entirely.
func (s *vectorStore) Replace(ctx context.Context, info domain.SourceInfo, chunks []domain.Chunk, records []domain.VectorRecord) error {
	if info.ID == "" {
		return fmt.Errorf("%w: source id is empty", domain.ErrInvalidInput)
	}
	if err := s.validate(chunks, records); err != nil {
		return err
	}

	tx, err := s.store.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	// Vectors go with their chunks via ON DELETE CASCADE.
	if _, err := tx.ExecContext(ctx, "DELETE FROM chunks WHERE source_id = ?", info.ID); err != nil {
		return fmt.Errorf("deleting chunks: %w", err)
	}

	if len(chunks) == 0 {
		if _, err := tx.ExecContext(ctx, "DELETE FROM sources WHERE id = ?", info.ID); err != nil {
			return fmt.Errorf("deleting source: %w", err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("committing transaction: %w", err)
		}
		return nil
	}

	if err := insertRecords(ctx, tx, chunks, records); err != nil {
		return err
	}

	ingestedAt := info.IngestedAt
	if ingestedAt.IsZero() {
		ingestedAt = time.Now().UTC()
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO sources (id, type, title, uri, ingested_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			type = excluded.type,
			title = excluded.title,
			uri = excluded.uri,
			ingested_at = excluded.ingested_at
	`, info.ID, string(info.Type), info.Title, info.URI, ingestedAt)
	if err != nil {
		return fmt.Errorf("saving source: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// Search returns the k nearest stored records to the query vector,
// scored with cosine distance in Go.
func (s *vectorStore) Search(ctx context.Context, query []float32, k int, f driven.Filter) ([]driven.Match, error) {
	if k <= 0 {
		return nil, nil
	}
	if s.dimensions > 0 && len(query) != s.dimensions {
		return nil, fmt.Errorf("%w: query has %d dimensions, store expects %d",
			domain.ErrDimensionMismatch, len(query), s.dimensions)
	}

	q := `
		SELECT c.id, c.source_id, c.source_type, c.text, c.start_offset, c.end_offset,
			v.embedding, v.created_at, s.title, s.uri
		FROM vectors v
		JOIN chunks c ON c.id = v.chunk_id
		LEFT JOIN sources s ON s.id = v.source_id`
	clause, args := filterClause("v", f)
	q += clause

	rows, err := s.store.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("querying vectors: %w", err)
	}
	defer rows.Close()

	var matches []driven.Match //nolint:prealloc // size unknown from query
	for rows.Next() {
		var (
			chunk      domain.Chunk
			blob       []byte
			createdAt  time.Time
			title, uri sql.NullString
		)
		if err := rows.Scan(&chunk.ID, &chunk.SourceID, &chunk.SourceType, &chunk.Text,
			&chunk.StartOffset, &chunk.EndOffset, &blob, &createdAt, &title, &uri); err != nil {
			return nil, fmt.Errorf("scanning vector: %w", err)
		}

		matches = append(matches, driven.Match{
			Chunk:     chunk,
			Distance:  vecmath.CosineDistance(query, bytesToFloat32Slice(blob)),
			CreatedAt: createdAt,
			Source:    domain.SourceRef{Title: title.String, URI: uri.String},
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating vectors: %w", err)
	}

	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Distance != matches[j].Distance {
			return matches[i].Distance < matches[j].Distance
		}
		return matches[i].CreatedAt.After(matches[j].CreatedAt)
	})
	if len(matches) > k {
		matches = matches[:k]
	}
	return matches, nil
}

// Delete removes all records matching the filter. Sources left without
// any chunks are pruned from the listing.
func (s *vectorStore) Delete(ctx context.Context, f driven.Filter) error {
	tx, err := s.store.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	clause, args := filterClause("chunks", f)
	if _, err := tx.ExecContext(ctx, "DELETE FROM chunks"+clause, args...); err != nil {
		return fmt.Errorf("deleting chunks: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		DELETE FROM sources WHERE id NOT IN (SELECT DISTINCT source_id FROM chunks)
	`); err != nil {
		return fmt.Errorf("pruning sources: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// Count returns the number of records matching the filter.
func (s *vectorStore) Count(ctx context.Context, f driven.Filter) (int, error) {
	clause, args := filterClause("vectors", f)

	var count int
	row := s.store.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM vectors"+clause, args...)
	if err := row.Scan(&count); err != nil {
		return 0, fmt.Errorf("counting vectors: %w", err)
	}
	return count, nil
}

// Sources lists ingested sources with live chunk counts, most recently
// ingested first.
func (s *vectorStore) Sources(ctx context.Context) ([]domain.SourceInfo, error) {
	rows, err := s.store.db.QueryContext(ctx, `
		SELECT s.id, s.type, s.title, s.uri, s.ingested_at, COUNT(c.id)
		FROM sources s
		LEFT JOIN chunks c ON c.source_id = s.id
		GROUP BY s.id
		ORDER BY s.ingested_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("querying sources: %w", err)
	}
	defer rows.Close()

	var infos []domain.SourceInfo //nolint:prealloc // size unknown from query
	for rows.Next() {
		var info domain.SourceInfo
		if err := rows.Scan(&info.ID, &info.Type, &info.Title, &info.URI,
			&info.IngestedAt, &info.ChunkCount); err != nil {
			return nil, fmt.Errorf("scanning source: %w", err)
		}
		infos = append(infos, info)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating sources: %w", err)
	}

	return infos, nil
}

// Close releases the wrapper. The parent Store owns the connection.
func (s *vectorStore) Close() error {
	return nil
}

// validate rejects mismatched slices and wrong-dimension embeddings
// before any row is written.
func (s *vectorStore) validate(chunks []domain.Chunk, records []domain.VectorRecord) error {
	if len(chunks) != len(records) {
		return fmt.Errorf("%w: %d chunks but %d records", domain.ErrInvalidInput, len(chunks), len(records))
	}
	for _, r := range records {
		if s.dimensions > 0 && len(r.Embedding) != s.dimensions {
			return fmt.Errorf("%w: record %s has %d dimensions, store expects %d",
				domain.ErrDimensionMismatch, r.ChunkID, len(r.Embedding), s.dimensions)
		}
	}
	return nil
}

// insertRecords writes paired chunk and vector rows inside tx.
func insertRecords(ctx context.Context, tx *sql.Tx, chunks []domain.Chunk, records []domain.VectorRecord) error {
	chunkStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO chunks (id, source_id, source_type, text, start_offset, end_offset)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			source_id = excluded.source_id,
			source_type = excluded.source_type,
			text = excluded.text,
			start_offset = excluded.start_offset,
			end_offset = excluded.end_offset
	`)
	if err != nil {
		return fmt.Errorf("preparing chunk statement: %w", err)
	}
	defer chunkStmt.Close()

	vectorStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO vectors (chunk_id, embedding, source_id, source_type, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(chunk_id) DO UPDATE SET
			embedding = excluded.embedding,
			source_id = excluded.source_id,
			source_type = excluded.source_type,
			created_at = excluded.created_at
	`)
	if err != nil {
		return fmt.Errorf("preparing vector statement: %w", err)
	}
	defer vectorStmt.Close()

	for i, chunk := range chunks {
		record := records[i]

		if _, err := chunkStmt.ExecContext(ctx, chunk.ID, chunk.SourceID, string(chunk.SourceType),
			chunk.Text, chunk.StartOffset, chunk.EndOffset); err != nil {
			return fmt.Errorf("saving chunk: %w", err)
		}

		createdAt := record.CreatedAt
		if createdAt.IsZero() {
			createdAt = time.Now().UTC()
		}

		if _, err := vectorStmt.ExecContext(ctx, chunk.ID, float32SliceToBytes(record.Embedding),
			chunk.SourceID, string(chunk.SourceType), createdAt); err != nil {
			return fmt.Errorf("saving vector: %w", err)
		}
	}

	return nil
}

// filterClause builds a WHERE fragment for the filter over the given
// table alias. Returns an empty string when the filter matches everything.
func filterClause(alias string, f driven.Filter) (string, []any) {
	var conds []string
	var args []any

	if f.SourceID != "" {
		conds = append(conds, alias+".source_id = ?")
		args = append(args, f.SourceID)
	}
	if f.SourceType != "" {
		conds = append(conds, alias+".source_type = ?")
		args = append(args, string(f.SourceType))
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

// ==================== Note Store ====================

// noteStore implements driven.NoteStore.
type noteStore struct {
	store *Store
}

var _ driven.NoteStore = (*noteStore)(nil)

// Save stores or updates a note.
func (s *noteStore) Save(ctx context.Context, note domain.Note) error {
	if note.ID == "" {
		return fmt.Errorf("%w: note id is empty", domain.ErrInvalidInput)
	}

	now := time.Now().UTC()
	if note.CreatedAt.IsZero() {
		note.CreatedAt = now
	}
	if note.UpdatedAt.IsZero() {
		note.UpdatedAt = now
	}

	_, err := s.store.db.ExecContext(ctx, `
		INSERT INTO notes (id, title, text, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			text = excluded.text,
			updated_at = excluded.updated_at
	`, note.ID, note.Title, note.Text, note.CreatedAt, note.UpdatedAt)

	if err != nil {
		return fmt.Errorf("saving note: %w", err)
	}
	return nil
}

// Get retrieves a note by ID.
func (s *noteStore) Get(ctx context.Context, id string) (domain.Note, error) {
	row := s.store.db.QueryRowContext(ctx, `
		SELECT id, title, text, created_at, updated_at
		FROM notes WHERE id = ?
	`, id)

	return scanNote(row)
}

// List returns all notes, most recently updated first.
func (s *noteStore) List(ctx context.Context) ([]domain.Note, error) {
	rows, err := s.store.db.QueryContext(ctx, `
		SELECT id, title, text, created_at, updated_at
		FROM notes
		ORDER BY updated_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("querying notes: %w", err)
	}
	defer rows.Close()

	var notes []domain.Note //nolint:prealloc // size unknown from query
	for rows.Next() {
		var note domain.Note
		if err := rows.Scan(&note.ID, &note.Title, &note.Text,
			&note.CreatedAt, &note.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scanning note: %w", err)
		}
		notes = append(notes, note)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating notes: %w", err)
	}

	return notes, nil
}

// Delete removes a note. Deleting a missing note is a no-op.
func (s *noteStore) Delete(ctx context.Context, id string) error {
	if _, err := s.store.db.ExecContext(ctx, "DELETE FROM notes WHERE id = ?", id); err != nil {
		return fmt.Errorf("deleting note: %w", err)
	}
	return nil
}

// ==================== Conversation Store ====================

// conversationStore implements driven.ConversationStore.
type conversationStore struct {
	store *Store
}

var _ driven.ConversationStore = (*conversationStore)(nil)

// SaveTurn appends a finalized turn to the session's transcript.
func (s *conversationStore) SaveTurn(ctx context.Context, sessionID string, turn domain.ConversationTurn) error {
	if sessionID == "" || turn.ID == "" {
		return fmt.Errorf("%w: session or turn id is empty", domain.ErrInvalidInput)
	}

	sourcesJSON, err := json.Marshal(turn.Sources)
	if err != nil {
		return fmt.Errorf("marshalling sources: %w", err)
	}

	timestamp := turn.Timestamp
	if timestamp.IsZero() {
		timestamp = time.Now().UTC()
	}

	_, err = s.store.db.ExecContext(ctx, `
		INSERT INTO conversation_turns
			(id, session_id, role, text, timestamp, rag_context_used, sources, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			text = excluded.text,
			rag_context_used = excluded.rag_context_used,
			sources = excluded.sources,
			error = excluded.error
	`, turn.ID, sessionID, string(turn.Role), turn.Text, timestamp,
		turn.RAGContextUsed, string(sourcesJSON), turn.Error)

	if err != nil {
		return fmt.Errorf("saving turn: %w", err)
	}
	return nil
}

// Turns returns up to limit of the most recent turns for the session,
// ordered oldest first. A non-positive limit returns all turns.
func (s *conversationStore) Turns(ctx context.Context, sessionID string, limit int) ([]domain.ConversationTurn, error) {
	q := `
		SELECT id, role, text, timestamp, rag_context_used, sources, error
		FROM conversation_turns
		WHERE session_id = ?
		ORDER BY timestamp DESC, rowid DESC`
	args := []any{sessionID}
	if limit > 0 {
		q += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.store.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("querying turns: %w", err)
	}
	defer rows.Close()

	var turns []domain.ConversationTurn //nolint:prealloc // size unknown from query
	for rows.Next() {
		turn, err := scanTurn(rows)
		if err != nil {
			return nil, err
		}
		turns = append(turns, *turn)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating turns: %w", err)
	}

	// Rows come back newest first so LIMIT keeps the most recent ones.
	for i, j := 0, len(turns)-1; i < j; i, j = i+1, j-1 {
		turns[i], turns[j] = turns[j], turns[i]
	}
	return turns, nil
}

// Sessions lists persisted conversations, most recent first.
func (s *conversationStore) Sessions(ctx context.Context) ([]driven.SessionSummary, error) {
	rows, err := s.store.db.QueryContext(ctx, `
		SELECT session_id, COUNT(*), MIN(timestamp), MAX(timestamp)
		FROM conversation_turns
		GROUP BY session_id
		ORDER BY MAX(timestamp) DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("querying sessions: %w", err)
	}
	defer rows.Close()

	var summaries []driven.SessionSummary //nolint:prealloc // size unknown from query
	for rows.Next() {
		var sum driven.SessionSummary
		if err := rows.Scan(&sum.SessionID, &sum.Turns, &sum.StartedAt, &sum.LastAt); err != nil {
			return nil, fmt.Errorf("scanning session: %w", err)
		}
		summaries = append(summaries, sum)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating sessions: %w", err)
	}

	return summaries, nil
}

// LatestSessionID returns the most recently written session.
func (s *conversationStore) LatestSessionID(ctx context.Context) (string, error) {
	var id string
	row := s.store.db.QueryRowContext(ctx, `
		SELECT session_id FROM conversation_turns
		ORDER BY timestamp DESC, rowid DESC LIMIT 1
	`)
	if err := row.Scan(&id); err != nil {
		if err == sql.ErrNoRows {
			return "", domain.ErrNotFound
		}
		return "", fmt.Errorf("scanning session id: %w", err)
	}
	return id, nil
}

// ==================== Helper Functions ====================

// float32SliceToBytes converts a []float32 to a byte slice for storage.
func float32SliceToBytes(floats []float32) []byte {
	if len(floats) == 0 {
		return nil
	}
	buf := make([]byte, len(floats)*4)
	for i, f := range floats {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

// bytesToFloat32Slice converts a byte slice back to []float32.
func bytesToFloat32Slice(data []byte) []float32 {
	if len(data) == 0 {
		return nil
	}
	floats := make([]float32, len(data)/4)
	for i := range floats {
		floats[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return floats
}

// scanNote scans a single note row.
func scanNote(row *sql.Row) (domain.Note, error) {
	var note domain.Note
	if err := row.Scan(&note.ID, &note.Title, &note.Text,
		&note.CreatedAt, &note.UpdatedAt); err != nil {
		if err == sql.ErrNoRows {
			return domain.Note{}, domain.ErrNotFound
		}
		return domain.Note{}, fmt.Errorf("scanning note: %w", err)
	}
	return note, nil
}

// scanTurn scans a conversation turn from *sql.Rows.
func scanTurn(rows *sql.Rows) (*domain.ConversationTurn, error) {
	var turn domain.ConversationTurn
	var sourcesJSON string

	if err := rows.Scan(&turn.ID, &turn.Role, &turn.Text, &turn.Timestamp,
		&turn.RAGContextUsed, &sourcesJSON, &turn.Error); err != nil {
		return nil, fmt.Errorf("scanning turn: %w", err)
	}

	if sourcesJSON != "" && sourcesJSON != "null" {
		if err := json.Unmarshal([]byte(sourcesJSON), &turn.Sources); err != nil {
			return nil, fmt.Errorf("unmarshaling sources: %w", err)
		}
	}

	return &turn, nil
}
