// Package domain defines the core business entities for Valet.
//
// This package is part of the hexagonal architecture's innermost layer.
// It has NO external dependencies and defines the fundamental types:
//
//   - Chunk: A bounded substring of a source, the unit of retrieval
//   - VectorRecord: A stored embedding keyed by chunk
//   - ConversationTurn: One message in a session transcript
//   - Session: The live configuration + history of one conversation
//   - ToolDefinition / ToolCallRequest / ToolResult: The provider-agnostic
//     tool calling contract
//   - Note: A user-saved snippet, auto-ingested for retrieval
//
// # Architectural Position
//
// Domain is at the centre of the hexagon. It may only import
// the Go standard library. All other packages depend on domain,
// never the reverse.
//
// # Import Rules
//
//   - Can Import: Standard library only
//   - Cannot Import: Any internal/ package, any external dependency
package domain
