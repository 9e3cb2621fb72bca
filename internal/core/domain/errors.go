package domain

import "errors"

// Domain errors represent business logic failures.
// These are distinct from infrastructure errors.
var (
	// ErrNotFound indicates a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists indicates an entity already exists.
	ErrAlreadyExists = errors.New("already exists")

	// ErrInvalidInput indicates malformed or invalid input.
	ErrInvalidInput = errors.New("invalid input")

	// ErrNotConfigured indicates a required provider or credential is missing.
	// Surfaced before any network call is attempted.
	ErrNotConfigured = errors.New("not configured")

	// ErrSessionBusy indicates a turn is already in flight for this session.
	// Sends are rejected, never interleaved.
	ErrSessionBusy = errors.New("a turn is already in progress")

	// ErrSessionStale indicates the session configuration changed while an
	// operation was in flight. The operation's results are discarded.
	ErrSessionStale = errors.New("session configuration changed")

	// ErrDimensionMismatch indicates an embedding does not match the vector
	// store's configured dimension. This is a configuration bug, not retried.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")

	// ErrLLMUnavailable indicates the LLM provider is not configured.
	ErrLLMUnavailable = errors.New("LLM service unavailable")

	// ErrEmbeddingUnavailable indicates the embedding provider is not configured.
	// Retrieval is disabled without embeddings.
	ErrEmbeddingUnavailable = errors.New("embedding service unavailable")

	// Tool Errors.

	// ErrUnknownTool indicates the model requested a tool that is not registered.
	ErrUnknownTool = errors.New("unknown tool")

	// ErrAuthRequired indicates a tool requires an authenticated account
	// but no credential is configured.
	ErrAuthRequired = errors.New("authentication required")

	// ErrRateLimited indicates an external API rate limit was exceeded.
	ErrRateLimited = errors.New("rate limited")
)
