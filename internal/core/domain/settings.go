package domain

const unknownDescription = "Unknown"

// AIProvider identifies an AI service provider for embeddings or chat.
type AIProvider string

// Available AI providers.
const (
	// AIProviderOllama is a local Ollama instance.
	AIProviderOllama AIProvider = "ollama"

	// AIProviderOpenAI is the OpenAI cloud API.
	AIProviderOpenAI AIProvider = "openai"

	// AIProviderAnthropic is the Anthropic cloud API.
	AIProviderAnthropic AIProvider = "anthropic"
)

// IsValid returns true if the AI provider is recognised.
func (p AIProvider) IsValid() bool {
	switch p {
	case AIProviderOllama, AIProviderOpenAI, AIProviderAnthropic:
		return true
	default:
		return false
	}
}

// RequiresAPIKey returns true if this provider needs an API key.
func (p AIProvider) RequiresAPIKey() bool {
	return p == AIProviderOpenAI || p == AIProviderAnthropic
}

// IsLocal returns true if this provider runs locally.
func (p AIProvider) IsLocal() bool {
	return p == AIProviderOllama
}

// String returns the string representation.
func (p AIProvider) String() string {
	return string(p)
}

// Description returns a human-readable description of the provider.
func (p AIProvider) Description() string {
	switch p {
	case AIProviderOllama:
		return "Ollama (local)"
	case AIProviderOpenAI:
		return "OpenAI (cloud)"
	case AIProviderAnthropic:
		return "Anthropic (cloud)"
	default:
		return unknownDescription
	}
}

// LLMSettings holds chat provider configuration.
type LLMSettings struct {
	// Provider is the chat service provider.
	Provider AIProvider

	// Model is the chat model name.
	Model string

	// BaseURL is the API endpoint (for Ollama).
	BaseURL string

	// APIKey is the API key (for OpenAI/Anthropic).
	APIKey string
}

// IsConfigured returns true if the chat provider is set up.
func (l LLMSettings) IsConfigured() bool {
	if !l.Provider.IsValid() {
		return false
	}
	if l.Provider.RequiresAPIKey() && l.APIKey == "" {
		return false
	}
	return true
}

// EmbeddingSettings holds embedding provider configuration.
type EmbeddingSettings struct {
	// Provider is the embedding service provider.
	Provider AIProvider

	// Model is the embedding model name.
	Model string

	// BaseURL is the API endpoint (for Ollama).
	BaseURL string

	// APIKey is the API key (for OpenAI).
	APIKey string
}

// IsConfigured returns true if the embedding provider is set up.
func (e EmbeddingSettings) IsConfigured() bool {
	if !e.Provider.IsValid() {
		return false
	}
	if e.Provider.RequiresAPIKey() && e.APIKey == "" {
		return false
	}
	return true
}

// RetrievalSettings holds chunking and retrieval configuration.
type RetrievalSettings struct {
	// ChunkSize is the maximum chunk length in bytes.
	ChunkSize int

	// ChunkOverlap is the overlap between consecutive chunks in bytes.
	ChunkOverlap int

	// SentenceAware enables sentence-boundary chunking with
	// fixed-size fallback for oversized sentences.
	SentenceAware bool

	// TopK is the default number of chunks to retrieve.
	TopK int

	// SimilarityThreshold excludes results scoring below it.
	SimilarityThreshold float64
}

// ChatSettings holds conversation behaviour configuration.
type ChatSettings struct {
	// Persona names the active system prompt.
	Persona string

	// MaxToolHops bounds tool dispatch cycles per user turn.
	MaxToolHops int

	// RAGEnabled controls retrieval-augmented context.
	RAGEnabled bool

	// ToolTimeoutSeconds bounds a single tool dispatch.
	ToolTimeoutSeconds int
}

// GoogleSettings holds the pre-provisioned Google OAuth credential used by
// the calendar and task tools.
type GoogleSettings struct {
	// ClientID is the OAuth client identifier.
	ClientID string

	// ClientSecret is the OAuth client secret.
	ClientSecret string

	// RefreshToken is a long-lived token obtained out of band.
	RefreshToken string
}

// IsConfigured returns true if Google-backed tools can authenticate.
func (g GoogleSettings) IsConfigured() bool {
	return g.ClientID != "" && g.ClientSecret != "" && g.RefreshToken != ""
}

// AppSettings holds all application settings.
type AppSettings struct {
	// LLM holds chat provider settings.
	LLM LLMSettings

	// Embedding holds embedding provider settings.
	Embedding EmbeddingSettings

	// Retrieval holds chunking and retrieval settings.
	Retrieval RetrievalSettings

	// Chat holds conversation behaviour settings.
	Chat ChatSettings

	// Google holds the calendar/tasks tool credential.
	Google GoogleSettings
}

// DefaultAppSettings returns settings with sensible defaults.
// AI providers are left unconfigured; users set them up via the
// settings wizard.
func DefaultAppSettings() AppSettings {
	return AppSettings{
		LLM:       LLMSettings{},
		Embedding: EmbeddingSettings{},
		Retrieval: RetrievalSettings{
			ChunkSize:           1000,
			ChunkOverlap:        200,
			SentenceAware:       false,
			TopK:                5,
			SimilarityThreshold: 0.35,
		},
		Chat: ChatSettings{
			Persona:            "default",
			MaxToolHops:        1,
			RAGEnabled:         true,
			ToolTimeoutSeconds: 15,
		},
		Google: GoogleSettings{},
	}
}

// AllEmbeddingProviders returns providers that support embeddings.
func AllEmbeddingProviders() []AIProvider {
	return []AIProvider{
		AIProviderOllama,
		AIProviderOpenAI,
	}
}

// AllLLMProviders returns providers that support chat.
func AllLLMProviders() []AIProvider {
	return []AIProvider{
		AIProviderOllama,
		AIProviderOpenAI,
		AIProviderAnthropic,
	}
}

// DefaultEmbeddingModels returns default models for each embedding provider.
func DefaultEmbeddingModels() map[AIProvider]string {
	return map[AIProvider]string{
		AIProviderOllama: "nomic-embed-text",
		AIProviderOpenAI: "text-embedding-3-small",
	}
}

// DefaultLLMModels returns default models for each chat provider.
func DefaultLLMModels() map[AIProvider]string {
	return map[AIProvider]string{
		AIProviderOllama:    "llama3.2",
		AIProviderOpenAI:    "gpt-4o-mini",
		AIProviderAnthropic: "claude-3-5-sonnet-latest",
	}
}

// EmbeddingDimensions returns the vector dimensions for known models.
func EmbeddingDimensions() map[string]int {
	return map[string]int{
		// Ollama models
		"nomic-embed-text":  768,
		"mxbai-embed-large": 1024,
		"all-minilm":        384,
		// OpenAI models
		"text-embedding-3-small": 1536,
		"text-embedding-3-large": 3072,
		"text-embedding-ada-002": 1536,
	}
}
