package driving

import "github.com/custodia-labs/valet-cli/internal/core/domain"

// SettingsService manages application settings.
type SettingsService interface {
	// Get retrieves current application settings.
	Get() (*domain.AppSettings, error)

	// Save persists application settings.
	Save(settings *domain.AppSettings) error

	// SetLLMProvider configures the chat provider.
	SetLLMProvider(provider domain.AIProvider, model, apiKey string) error

	// SetEmbeddingProvider configures the embedding provider.
	SetEmbeddingProvider(provider domain.AIProvider, model, apiKey string) error

	// SetPersona switches the active persona.
	// Returns domain.ErrNotFound for an unknown persona.
	SetPersona(name string) error

	// Personas lists available persona names.
	Personas() ([]string, error)

	// SessionConfig resolves current settings into a session
	// configuration, including the active persona's prompt.
	// Returns domain.ErrNotConfigured if the chat provider is not set up.
	SessionConfig() (domain.SessionConfig, error)

	// GetDefaults returns default settings.
	GetDefaults() domain.AppSettings

	// ValidateEmbeddingConfig validates the current embedding configuration by pinging the provider.
	ValidateEmbeddingConfig() error

	// ValidateLLMConfig validates the current chat configuration by pinging the provider.
	ValidateLLMConfig() error
}
