// Package sqlite provides a unified SQLite-based implementation of driven port interfaces.
//
// This adapter uses modernc.org/sqlite, a pure Go SQLite implementation that requires
// no CGO, enabling easy cross-compilation. It implements multiple store interfaces
// through a single database connection:
//
//   - VectorStore: chunk and embedding persistence with brute-force cosine search
//   - NoteStore: saved note persistence
//   - ConversationStore: finalized conversation transcripts
//
// # Schema
//
// The database schema is managed through versioned migrations stored in the
// migrations/ directory. Embeddings are stored as little-endian float32 blobs
// alongside their chunks; similarity scoring happens in Go.
//
// # Data Location
//
// By default, the database is stored at ~/.valet/data/valet.db
//
// # Thread Safety
//
// All operations are thread-safe. The store uses database-level locking provided
// by SQLite in WAL mode.
package sqlite
