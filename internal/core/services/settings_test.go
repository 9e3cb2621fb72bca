package services

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/valet-cli/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/valet-cli/internal/core/domain"
)

// fakeValidator records validation attempts and can be set to fail.
type fakeValidator struct {
	llmErr   error
	embedErr error
	llmSeen  []domain.LLMSettings
}

func (v *fakeValidator) ValidateLLM(config *domain.LLMSettings) error {
	v.llmSeen = append(v.llmSeen, *config)
	return v.llmErr
}

func (v *fakeValidator) ValidateEmbedding(*domain.EmbeddingSettings) error {
	return v.embedErr
}

// fakePersonaStore serves a fixed persona map.
type fakePersonaStore struct {
	prompts map[string]string
}

func (p *fakePersonaStore) Load(name string) (string, error) {
	prompt, ok := p.prompts[name]
	if !ok {
		return "", domain.ErrNotFound
	}
	return prompt, nil
}

func (p *fakePersonaStore) List() ([]string, error) {
	names := make([]string, 0, len(p.prompts))
	for name := range p.prompts {
		names = append(names, name)
	}
	return names, nil
}

func (p *fakePersonaStore) Reload() {}

type settingsFixture struct {
	svc       *SettingsService
	store     *memory.ConfigStore
	validator *fakeValidator
	personas  *fakePersonaStore
}

func newSettingsFixture(t *testing.T) *settingsFixture {
	t.Helper()

	store := memory.NewConfigStore()
	validator := &fakeValidator{}
	personas := &fakePersonaStore{prompts: map[string]string{
		"default": "You are a helpful assistant.",
		"concise": "Answer briefly.",
	}}
	return &settingsFixture{
		svc:       NewSettingsService(store, validator, personas),
		store:     store,
		validator: validator,
		personas:  personas,
	}
}

func TestSettingsGetReturnsDefaults(t *testing.T) {
	f := newSettingsFixture(t)

	settings, err := f.svc.Get()
	require.NoError(t, err)

	defaults := domain.DefaultAppSettings()
	assert.Equal(t, defaults.Retrieval, settings.Retrieval)
	assert.Equal(t, defaults.Chat, settings.Chat)
	assert.False(t, settings.LLM.IsConfigured())
}

func TestSettingsGetOverridesDefaults(t *testing.T) {
	f := newSettingsFixture(t)
	require.NoError(t, f.store.Set("retrieval.top_k", 10))
	require.NoError(t, f.store.Set("retrieval.similarity_threshold", 0.5))
	require.NoError(t, f.store.Set("chat.rag_enabled", false))

	settings, err := f.svc.Get()
	require.NoError(t, err)

	assert.Equal(t, 10, settings.Retrieval.TopK)
	assert.InDelta(t, 0.5, settings.Retrieval.SimilarityThreshold, 1e-9)
	assert.False(t, settings.Chat.RAGEnabled)
}

func TestSettingsGetFloatFromInteger(t *testing.T) {
	// TOML writes whole numbers back as integers.
	f := newSettingsFixture(t)
	require.NoError(t, f.store.Set("retrieval.similarity_threshold", int64(0)))

	settings, err := f.svc.Get()
	require.NoError(t, err)
	assert.Zero(t, settings.Retrieval.SimilarityThreshold)
}

func TestSettingsSaveRoundTrip(t *testing.T) {
	f := newSettingsFixture(t)

	in := domain.DefaultAppSettings()
	in.LLM = domain.LLMSettings{Provider: domain.AIProviderOpenAI, Model: "gpt-4o", APIKey: "sk-test"}
	in.Retrieval.TopK = 7
	require.NoError(t, f.svc.Save(&in))

	out, err := f.svc.Get()
	require.NoError(t, err)
	assert.Equal(t, domain.AIProviderOpenAI, out.LLM.Provider)
	assert.Equal(t, "gpt-4o", out.LLM.Model)
	assert.Equal(t, "sk-test", out.LLM.APIKey)
	assert.Equal(t, 7, out.Retrieval.TopK)
}

func TestSettingsSavePreservesSecrets(t *testing.T) {
	f := newSettingsFixture(t)
	require.NoError(t, f.store.Set("llm.api_key", "sk-existing"))

	in := domain.DefaultAppSettings()
	in.LLM.Provider = domain.AIProviderOpenAI
	// APIKey left empty: an edit of unrelated settings must not wipe it.
	require.NoError(t, f.svc.Save(&in))

	assert.Equal(t, "sk-existing", f.store.GetString("llm.api_key"))
}

func TestSetLLMProviderValidatesBeforePersisting(t *testing.T) {
	f := newSettingsFixture(t)
	f.validator.llmErr = errors.New("401 unauthorized")

	err := f.svc.SetLLMProvider(domain.AIProviderOpenAI, "gpt-4o-mini", "sk-bad")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")

	// Nothing was written.
	assert.Empty(t, f.store.GetString("llm.provider"))
	assert.Empty(t, f.store.GetString("llm.api_key"))
}

func TestSetLLMProviderDefaultsModel(t *testing.T) {
	f := newSettingsFixture(t)

	require.NoError(t, f.svc.SetLLMProvider(domain.AIProviderOllama, "", ""))
	assert.Equal(t, "llama3.2", f.store.GetString("llm.model"))

	require.Len(t, f.validator.llmSeen, 1)
	assert.Equal(t, "llama3.2", f.validator.llmSeen[0].Model)
}

func TestSetLLMProviderRequiresKey(t *testing.T) {
	f := newSettingsFixture(t)

	err := f.svc.SetLLMProvider(domain.AIProviderAnthropic, "", "")
	assert.ErrorIs(t, err, domain.ErrNotConfigured)
}

func TestSetLLMProviderReusesStoredKey(t *testing.T) {
	f := newSettingsFixture(t)
	require.NoError(t, f.store.Set("llm.api_key", "sk-stored"))

	require.NoError(t, f.svc.SetLLMProvider(domain.AIProviderOpenAI, "gpt-4o", ""))
	require.Len(t, f.validator.llmSeen, 1)
	assert.Equal(t, "sk-stored", f.validator.llmSeen[0].APIKey)
}

func TestSetLLMProviderRejectsUnknown(t *testing.T) {
	f := newSettingsFixture(t)

	err := f.svc.SetLLMProvider("mystery", "m", "k")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestSetEmbeddingProviderRejectsAnthropic(t *testing.T) {
	f := newSettingsFixture(t)

	err := f.svc.SetEmbeddingProvider(domain.AIProviderAnthropic, "", "key")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestSetEmbeddingProviderDefaultsModel(t *testing.T) {
	f := newSettingsFixture(t)

	require.NoError(t, f.svc.SetEmbeddingProvider(domain.AIProviderOllama, "", ""))
	assert.Equal(t, "nomic-embed-text", f.store.GetString("embedding.model"))
}

func TestSetPersona(t *testing.T) {
	f := newSettingsFixture(t)

	require.NoError(t, f.svc.SetPersona("concise"))
	assert.Equal(t, "concise", f.store.GetString("chat.persona"))

	err := f.svc.SetPersona("pirate")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestSessionConfigResolvesPersonaPrompt(t *testing.T) {
	f := newSettingsFixture(t)
	require.NoError(t, f.svc.SetLLMProvider(domain.AIProviderOpenAI, "gpt-4o-mini", "sk-test"))
	require.NoError(t, f.svc.SetPersona("concise"))

	config, err := f.svc.SessionConfig()
	require.NoError(t, err)

	assert.Equal(t, domain.AIProviderOpenAI, config.Provider)
	assert.Equal(t, "gpt-4o-mini", config.Model)
	assert.Equal(t, "concise", config.Persona)
	assert.Equal(t, "Answer briefly.", config.SystemPrompt)
	assert.Equal(t, 1, config.MaxToolHops)
	assert.True(t, config.RAGEnabled)
}

func TestSessionConfigUnconfigured(t *testing.T) {
	f := newSettingsFixture(t)

	_, err := f.svc.SessionConfig()
	assert.ErrorIs(t, err, domain.ErrNotConfigured)
}

func TestSessionConfigMissingPersonaFallsBack(t *testing.T) {
	f := newSettingsFixture(t)
	require.NoError(t, f.svc.SetLLMProvider(domain.AIProviderOllama, "", ""))
	require.NoError(t, f.store.Set("chat.persona", "deleted-persona"))

	config, err := f.svc.SessionConfig()
	require.NoError(t, err)
	assert.Equal(t, "default", config.Persona)
	assert.Equal(t, "You are a helpful assistant.", config.SystemPrompt)
}

func TestOnSessionConfigChangeFires(t *testing.T) {
	f := newSettingsFixture(t)

	var got []domain.SessionConfig
	f.svc.OnSessionConfigChange(func(c domain.SessionConfig) { got = append(got, c) })

	// Unconfigured mutations stay silent.
	require.NoError(t, f.svc.SetPersona("concise"))
	assert.Empty(t, got)

	require.NoError(t, f.svc.SetLLMProvider(domain.AIProviderOllama, "", ""))
	require.Len(t, got, 1)
	assert.Equal(t, domain.AIProviderOllama, got[0].Provider)
	assert.Equal(t, "concise", got[0].Persona)
}
