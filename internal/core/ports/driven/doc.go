// Package driven defines the interfaces that core calls OUT to infrastructure.
//
// These are the "driven" or "secondary" ports in hexagonal architecture.
// Core services depend on these interfaces, and infrastructure adapters
// implement them.
//
// # Required Interfaces
//
// These must be provided for the application to function:
//
//   - LLMService: Streaming chat completions with tool calling
//   - EmbeddingService: Generates vector embeddings
//   - VectorStore: Chunk + embedding persistence and similarity search
//   - Chunker: Splits source text into retrieval chunks
//   - ConfigStore: Application configuration
//
// # Optional Interfaces
//
// These can be nil - the application degrades gracefully:
//
//   - CalendarService / TaskService: Google-backed tools; without a
//     credential their tools return structured errors
//   - WeatherService: forecast tool
//   - NoteStore / ConversationStore: note saving and transcript history
//   - PersonaStore: user-editable system prompts
//   - DocumentLoader: file/repository ingestion
//
// # Import Rules
//
//   - Can Import: domain package only
//   - Cannot Import: Any adapter or connector package
package driven
