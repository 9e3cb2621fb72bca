package services

import (
	"errors"
	"fmt"

	"github.com/custodia-labs/valet-cli/internal/core/domain"
	"github.com/custodia-labs/valet-cli/internal/core/ports/driven"
	"github.com/custodia-labs/valet-cli/internal/core/ports/driving"
	"github.com/custodia-labs/valet-cli/internal/logger"
)

// Ensure SettingsService implements the interface.
var _ driving.SettingsService = (*SettingsService)(nil)

// Config keys for settings storage.
//
//nolint:gosec // G101: These are config key names, not actual credentials.
const (
	keyLLMProvider         = "llm.provider"
	keyLLMModel            = "llm.model"
	keyLLMBaseURL          = "llm.base_url"
	keyLLMAPIKey           = "llm.api_key"
	keyEmbedProvider       = "embedding.provider"
	keyEmbedModel          = "embedding.model"
	keyEmbedBaseURL        = "embedding.base_url"
	keyEmbedAPIKey         = "embedding.api_key"
	keyChunkSize           = "retrieval.chunk_size"
	keyChunkOverlap        = "retrieval.chunk_overlap"
	keySentenceAware       = "retrieval.sentence_aware"
	keyTopK                = "retrieval.top_k"
	keySimilarityThreshold = "retrieval.similarity_threshold"
	keyPersona             = "chat.persona"
	keyMaxToolHops         = "chat.max_tool_hops"
	keyRAGEnabled          = "chat.rag_enabled"
	keyToolTimeout         = "chat.tool_timeout_seconds"
	keyGoogleClientID      = "google.client_id"
	keyGoogleClientSecret  = "google.client_secret"
	keyGoogleRefreshToken  = "google.refresh_token"
)

// SettingsService manages application settings. Mutations that
// invalidate a live session (provider, model, key, persona) report the
// new session configuration through the registered listener.
type SettingsService struct {
	configStore driven.ConfigStore
	aiValidator driven.AIConfigValidator
	personas    driven.PersonaStore
	onChange    func(domain.SessionConfig)
}

// NewSettingsService creates a new settings service.
func NewSettingsService(
	configStore driven.ConfigStore,
	aiValidator driven.AIConfigValidator,
	personas driven.PersonaStore,
) *SettingsService {
	return &SettingsService{
		configStore: configStore,
		aiValidator: aiValidator,
		personas:    personas,
	}
}

// OnSessionConfigChange registers a callback fired after any mutation
// that invalidates a running session. The chat service's Configure is
// the intended listener.
func (s *SettingsService) OnSessionConfigChange(fn func(domain.SessionConfig)) {
	s.onChange = fn
}

// Get retrieves current application settings.
func (s *SettingsService) Get() (*domain.AppSettings, error) {
	defaults := domain.DefaultAppSettings()

	settings := &domain.AppSettings{
		LLM: domain.LLMSettings{
			Provider: s.getProvider(keyLLMProvider, defaults.LLM.Provider),
			Model:    s.getString(keyLLMModel, defaults.LLM.Model),
			BaseURL:  s.configStore.GetString(keyLLMBaseURL), // No default - empty is valid for cloud providers
			APIKey:   s.configStore.GetString(keyLLMAPIKey),
		},
		Embedding: domain.EmbeddingSettings{
			Provider: s.getProvider(keyEmbedProvider, defaults.Embedding.Provider),
			Model:    s.getString(keyEmbedModel, defaults.Embedding.Model),
			BaseURL:  s.configStore.GetString(keyEmbedBaseURL), // No default - empty is valid for cloud providers
			APIKey:   s.configStore.GetString(keyEmbedAPIKey),
		},
		Retrieval: domain.RetrievalSettings{
			ChunkSize:           s.getInt(keyChunkSize, defaults.Retrieval.ChunkSize),
			ChunkOverlap:        s.getInt(keyChunkOverlap, defaults.Retrieval.ChunkOverlap),
			SentenceAware:       s.getBool(keySentenceAware, defaults.Retrieval.SentenceAware),
			TopK:                s.getInt(keyTopK, defaults.Retrieval.TopK),
			SimilarityThreshold: s.getFloat(keySimilarityThreshold, defaults.Retrieval.SimilarityThreshold),
		},
		Chat: domain.ChatSettings{
			Persona:            s.getString(keyPersona, defaults.Chat.Persona),
			MaxToolHops:        s.getInt(keyMaxToolHops, defaults.Chat.MaxToolHops),
			RAGEnabled:         s.getBool(keyRAGEnabled, defaults.Chat.RAGEnabled),
			ToolTimeoutSeconds: s.getInt(keyToolTimeout, defaults.Chat.ToolTimeoutSeconds),
		},
		Google: domain.GoogleSettings{
			ClientID:     s.configStore.GetString(keyGoogleClientID),
			ClientSecret: s.configStore.GetString(keyGoogleClientSecret),
			RefreshToken: s.configStore.GetString(keyGoogleRefreshToken),
		},
	}

	return settings, nil
}

// Save persists application settings.
func (s *SettingsService) Save(settings *domain.AppSettings) error {
	entries := []struct {
		key   string
		value any
	}{
		{keyLLMProvider, settings.LLM.Provider.String()},
		{keyLLMModel, settings.LLM.Model},
		{keyLLMBaseURL, settings.LLM.BaseURL},
		{keyEmbedProvider, settings.Embedding.Provider.String()},
		{keyEmbedModel, settings.Embedding.Model},
		{keyEmbedBaseURL, settings.Embedding.BaseURL},
		{keyChunkSize, settings.Retrieval.ChunkSize},
		{keyChunkOverlap, settings.Retrieval.ChunkOverlap},
		{keySentenceAware, settings.Retrieval.SentenceAware},
		{keyTopK, settings.Retrieval.TopK},
		{keySimilarityThreshold, settings.Retrieval.SimilarityThreshold},
		{keyPersona, settings.Chat.Persona},
		{keyMaxToolHops, settings.Chat.MaxToolHops},
		{keyRAGEnabled, settings.Chat.RAGEnabled},
		{keyToolTimeout, settings.Chat.ToolTimeoutSeconds},
	}
	for _, e := range entries {
		if err := s.configStore.Set(e.key, e.value); err != nil {
			return fmt.Errorf("save %s: %w", e.key, err)
		}
	}

	// Credentials are only written when present so a partial Save cannot
	// wipe a configured key.
	secrets := []struct {
		key   string
		value string
	}{
		{keyLLMAPIKey, settings.LLM.APIKey},
		{keyEmbedAPIKey, settings.Embedding.APIKey},
		{keyGoogleClientID, settings.Google.ClientID},
		{keyGoogleClientSecret, settings.Google.ClientSecret},
		{keyGoogleRefreshToken, settings.Google.RefreshToken},
	}
	for _, e := range secrets {
		if e.value == "" {
			continue
		}
		if err := s.configStore.Set(e.key, e.value); err != nil {
			return fmt.Errorf("save %s: %w", e.key, err)
		}
	}

	s.notify()
	return nil
}

// SetLLMProvider configures the chat provider, validating connectivity
// before anything is persisted.
func (s *SettingsService) SetLLMProvider(provider domain.AIProvider, model, apiKey string) error {
	if !provider.IsValid() {
		return fmt.Errorf("%w: unknown provider %q", domain.ErrInvalidInput, provider)
	}
	if model == "" {
		model = domain.DefaultLLMModels()[provider]
	}
	if provider.RequiresAPIKey() && apiKey == "" {
		apiKey = s.configStore.GetString(keyLLMAPIKey)
		if apiKey == "" {
			return fmt.Errorf("%w: %s requires an API key", domain.ErrNotConfigured, provider)
		}
	}

	candidate := domain.LLMSettings{Provider: provider, Model: model, APIKey: apiKey}
	if s.aiValidator != nil {
		if err := s.aiValidator.ValidateLLM(&candidate); err != nil {
			return fmt.Errorf("validating %s configuration: %w", provider, err)
		}
	}

	if err := s.configStore.Set(keyLLMProvider, provider.String()); err != nil {
		return fmt.Errorf("save llm provider: %w", err)
	}
	if err := s.configStore.Set(keyLLMModel, model); err != nil {
		return fmt.Errorf("save llm model: %w", err)
	}
	if apiKey != "" {
		if err := s.configStore.Set(keyLLMAPIKey, apiKey); err != nil {
			return fmt.Errorf("save llm api_key: %w", err)
		}
	}

	logger.Info("Chat provider set to %s (%s)", provider, model)
	s.notify()
	return nil
}

// SetEmbeddingProvider configures the embedding provider, validating
// connectivity before anything is persisted.
func (s *SettingsService) SetEmbeddingProvider(provider domain.AIProvider, model, apiKey string) error {
	if !provider.IsValid() {
		return fmt.Errorf("%w: unknown provider %q", domain.ErrInvalidInput, provider)
	}
	if provider == domain.AIProviderAnthropic {
		return fmt.Errorf("%w: anthropic does not provide embeddings", domain.ErrInvalidInput)
	}
	if model == "" {
		model = domain.DefaultEmbeddingModels()[provider]
	}
	if provider.RequiresAPIKey() && apiKey == "" {
		apiKey = s.configStore.GetString(keyEmbedAPIKey)
		if apiKey == "" {
			return fmt.Errorf("%w: %s requires an API key", domain.ErrNotConfigured, provider)
		}
	}

	candidate := domain.EmbeddingSettings{Provider: provider, Model: model, APIKey: apiKey}
	if s.aiValidator != nil {
		if err := s.aiValidator.ValidateEmbedding(&candidate); err != nil {
			return fmt.Errorf("validating %s configuration: %w", provider, err)
		}
	}

	if err := s.configStore.Set(keyEmbedProvider, provider.String()); err != nil {
		return fmt.Errorf("save embedding provider: %w", err)
	}
	if err := s.configStore.Set(keyEmbedModel, model); err != nil {
		return fmt.Errorf("save embedding model: %w", err)
	}
	if apiKey != "" {
		if err := s.configStore.Set(keyEmbedAPIKey, apiKey); err != nil {
			return fmt.Errorf("save embedding api_key: %w", err)
		}
	}

	logger.Info("Embedding provider set to %s (%s)", provider, model)
	s.notify()
	return nil
}

// SetPersona switches the active persona. The persona must exist in the
// persona store.
func (s *SettingsService) SetPersona(name string) error {
	if _, err := s.personas.Load(name); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return fmt.Errorf("%w: persona %q", domain.ErrNotFound, name)
		}
		return fmt.Errorf("loading persona %q: %w", name, err)
	}

	if err := s.configStore.Set(keyPersona, name); err != nil {
		return fmt.Errorf("save persona: %w", err)
	}

	logger.Info("Persona set to %s", name)
	s.notify()
	return nil
}

// Personas lists available persona names.
func (s *SettingsService) Personas() ([]string, error) {
	return s.personas.List()
}

// SessionConfig resolves current settings into a session configuration,
// including the active persona's prompt.
func (s *SettingsService) SessionConfig() (domain.SessionConfig, error) {
	settings, err := s.Get()
	if err != nil {
		return domain.SessionConfig{}, err
	}
	if !settings.LLM.IsConfigured() {
		return domain.SessionConfig{}, fmt.Errorf(
			"%w: chat provider is not set up, run 'valet settings wizard'", domain.ErrNotConfigured)
	}

	persona := settings.Chat.Persona
	prompt, err := s.personas.Load(persona)
	if err != nil {
		logger.Warn("Persona %q unavailable, using default: %v", persona, err)
		persona = driven.PersonaDefault
		if prompt, err = s.personas.Load(persona); err != nil {
			return domain.SessionConfig{}, fmt.Errorf("loading default persona: %w", err)
		}
	}

	return domain.SessionConfig{
		Provider:     settings.LLM.Provider,
		Model:        settings.LLM.Model,
		Persona:      persona,
		SystemPrompt: prompt,
		MaxToolHops:  settings.Chat.MaxToolHops,
		RAGEnabled:   settings.Chat.RAGEnabled,
	}, nil
}

// GetDefaults returns default settings.
func (s *SettingsService) GetDefaults() domain.AppSettings {
	return domain.DefaultAppSettings()
}

// ValidateEmbeddingConfig validates the current embedding configuration by pinging the provider.
func (s *SettingsService) ValidateEmbeddingConfig() error {
	if s.aiValidator == nil {
		return nil
	}
	settings, err := s.Get()
	if err != nil {
		return err
	}
	return s.aiValidator.ValidateEmbedding(&settings.Embedding)
}

// ValidateLLMConfig validates the current chat configuration by pinging the provider.
func (s *SettingsService) ValidateLLMConfig() error {
	if s.aiValidator == nil {
		return nil
	}
	settings, err := s.Get()
	if err != nil {
		return err
	}
	return s.aiValidator.ValidateLLM(&settings.LLM)
}

// notify reports a session-invalidating change to the listener.
func (s *SettingsService) notify() {
	if s.onChange == nil {
		return
	}
	config, err := s.SessionConfig()
	if err != nil {
		// Not configured yet; nothing for a session to pick up.
		logger.Debug("Settings changed but no session config available: %v", err)
		return
	}
	s.onChange(config)
}

// getString reads a string key, falling back to the default when unset.
func (s *SettingsService) getString(key, defaultVal string) string {
	if v := s.configStore.GetString(key); v != "" {
		return v
	}
	return defaultVal
}

// getInt reads an integer key, falling back to the default when unset.
func (s *SettingsService) getInt(key string, defaultVal int) int {
	if _, ok := s.configStore.Get(key); ok {
		return s.configStore.GetInt(key)
	}
	return defaultVal
}

// getBool reads a boolean key, falling back to the default when unset.
func (s *SettingsService) getBool(key string, defaultVal bool) bool {
	if _, ok := s.configStore.Get(key); ok {
		return s.configStore.GetBool(key)
	}
	return defaultVal
}

// getFloat reads a float key, falling back to the default when unset.
// TOML round-trips numeric values as float64 or int64 depending on how
// they were written.
func (s *SettingsService) getFloat(key string, defaultVal float64) float64 {
	v, ok := s.configStore.Get(key)
	if !ok {
		return defaultVal
	}
	switch n := v.(type) {
	case float64:
		return n
	case int64:
		return float64(n)
	case int:
		return float64(n)
	default:
		return defaultVal
	}
}

// getProvider reads a provider key, falling back to the default when
// unset or unrecognised.
func (s *SettingsService) getProvider(key string, defaultVal domain.AIProvider) domain.AIProvider {
	v := s.configStore.GetString(key)
	if v == "" {
		return defaultVal
	}
	provider := domain.AIProvider(v)
	if !provider.IsValid() {
		return defaultVal
	}
	return provider
}
