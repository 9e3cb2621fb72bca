package persona

import (
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/valet-cli/internal/adapters/driving/tui/messages"
	"github.com/custodia-labs/valet-cli/internal/core/domain"
	"github.com/custodia-labs/valet-cli/internal/core/ports/driving"
)

type mockSettingsService struct {
	personas []string
	active   string
	set      string
	setErr   error
}

var _ driving.SettingsService = (*mockSettingsService)(nil)

func (m *mockSettingsService) Get() (*domain.AppSettings, error) {
	settings := domain.DefaultAppSettings()
	settings.Chat.Persona = m.active
	return &settings, nil
}

func (m *mockSettingsService) Save(*domain.AppSettings) error { return nil }

func (m *mockSettingsService) SetLLMProvider(domain.AIProvider, string, string) error {
	return nil
}

func (m *mockSettingsService) SetEmbeddingProvider(domain.AIProvider, string, string) error {
	return nil
}

func (m *mockSettingsService) SetPersona(name string) error {
	if m.setErr != nil {
		return m.setErr
	}
	m.set = name
	return nil
}

func (m *mockSettingsService) Personas() ([]string, error) { return m.personas, nil }

func (m *mockSettingsService) SessionConfig() (domain.SessionConfig, error) {
	return domain.SessionConfig{}, nil
}

func (m *mockSettingsService) GetDefaults() domain.AppSettings { return domain.DefaultAppSettings() }
func (m *mockSettingsService) ValidateEmbeddingConfig() error  { return nil }
func (m *mockSettingsService) ValidateLLMConfig() error        { return nil }

func loadedView(t *testing.T, mock *mockSettingsService) *View {
	t.Helper()
	v := NewView(nil, nil, mock)
	msg := v.Init()()
	v, _ = v.Update(msg)
	return v
}

func TestNewView(t *testing.T) {
	v := NewView(nil, nil, &mockSettingsService{})

	require.NotNil(t, v)
	assert.Empty(t, v.Names())
}

func TestInit_LoadsPersonas(t *testing.T) {
	mock := &mockSettingsService{personas: []string{"concierge", "coach"}, active: "coach"}

	v := loadedView(t, mock)

	assert.Equal(t, []string{"concierge", "coach"}, v.Names())
	// Cursor starts on the active persona.
	assert.Equal(t, 1, v.Cursor())
}

func TestInit_LoadError(t *testing.T) {
	v := NewView(nil, nil, &mockSettingsService{})

	v, _ = v.Update(messages.PersonasLoaded{Err: domain.ErrNotFound})

	require.Error(t, v.Err())
	assert.Contains(t, v.View(), "Error:")
}

func TestUpdateKey_MovesCursor(t *testing.T) {
	mock := &mockSettingsService{personas: []string{"concierge", "coach"}, active: "concierge"}
	v := loadedView(t, mock)

	v, _ = v.Update(tea.KeyMsg{Type: tea.KeyDown})
	assert.Equal(t, 1, v.Cursor())

	// Clamped at the list end.
	v, _ = v.Update(tea.KeyMsg{Type: tea.KeyDown})
	assert.Equal(t, 1, v.Cursor())

	v, _ = v.Update(tea.KeyMsg{Type: tea.KeyUp})
	assert.Equal(t, 0, v.Cursor())
}

func TestUpdateKey_SelectPersona(t *testing.T) {
	mock := &mockSettingsService{personas: []string{"concierge", "coach"}, active: "concierge"}
	v := loadedView(t, mock)
	v, _ = v.Update(tea.KeyMsg{Type: tea.KeyDown})

	_, cmd := v.Update(tea.KeyMsg{Type: tea.KeyEnter})

	require.NotNil(t, cmd)
	msg, ok := cmd().(messages.PersonaSelected)
	require.True(t, ok)
	assert.Equal(t, "coach", msg.Name)
	assert.NoError(t, msg.Err)
	assert.Equal(t, "coach", mock.set)
}

func TestUpdateKey_SelectFails(t *testing.T) {
	mock := &mockSettingsService{personas: []string{"concierge"}, active: "concierge", setErr: domain.ErrNotFound}
	v := loadedView(t, mock)

	_, cmd := v.Update(tea.KeyMsg{Type: tea.KeyEnter})

	require.NotNil(t, cmd)
	msg, ok := cmd().(messages.PersonaSelected)
	require.True(t, ok)
	assert.ErrorIs(t, msg.Err, domain.ErrNotFound)
}

func TestUpdateKey_SelectOnEmptyList(t *testing.T) {
	v := NewView(nil, nil, &mockSettingsService{})

	_, cmd := v.Update(tea.KeyMsg{Type: tea.KeyEnter})

	assert.Nil(t, cmd)
}

func TestView_MarksActivePersona(t *testing.T) {
	mock := &mockSettingsService{personas: []string{"concierge", "coach"}, active: "concierge"}
	v := loadedView(t, mock)

	view := v.View()
	assert.Contains(t, view, "* concierge")
	assert.Contains(t, view, "  coach")
	assert.Contains(t, view, "enter: select | esc: back")
}

func TestView_LoadingBeforePersonas(t *testing.T) {
	v := NewView(nil, nil, &mockSettingsService{})

	assert.Contains(t, v.View(), "Loading...")
}
