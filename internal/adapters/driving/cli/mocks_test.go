package cli

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/custodia-labs/valet-cli/internal/core/domain"
	"github.com/custodia-labs/valet-cli/internal/core/ports/driven"
	"github.com/custodia-labs/valet-cli/internal/core/ports/driving"
)

// setupTestServices swaps every package service variable for a
// happy-path mock and returns a cleanup that restores the originals.
func setupTestServices() func() {
	oldSettings := settingsService
	oldChat := chatService
	oldRetrieval := retrievalService
	oldNotes := noteService
	oldIngest := ingestService
	oldTools := toolRunner
	oldConversations := conversationStore

	settingsService = &mockSettingsService{}
	chatService = &mockChatService{}
	retrievalService = &mockRetrievalService{}
	noteService = &mockNoteService{}
	ingestService = &mockIngestService{}
	toolRunner = &mockToolRunner{}
	conversationStore = &mockConversationStore{}

	return func() {
		settingsService = oldSettings
		chatService = oldChat
		retrievalService = oldRetrieval
		noteService = oldNotes
		ingestService = oldIngest
		toolRunner = oldTools
		conversationStore = oldConversations
	}
}

var testTime = time.Date(2025, 6, 15, 10, 30, 0, 0, time.UTC)

// Settings service mocks

type mockSettingsService struct {
	savedSettings *domain.AppSettings
	persona       string
}

var _ driving.SettingsService = (*mockSettingsService)(nil)

func (m *mockSettingsService) Get() (*domain.AppSettings, error) {
	if m.savedSettings != nil {
		return m.savedSettings, nil
	}
	return &domain.AppSettings{
		LLM: domain.LLMSettings{
			Provider: domain.AIProviderOllama,
			Model:    "llama3.2",
			BaseURL:  "http://localhost:11434",
		},
		Embedding: domain.EmbeddingSettings{
			Provider: domain.AIProviderOllama,
			Model:    "nomic-embed-text",
			BaseURL:  "http://localhost:11434",
		},
		Retrieval: domain.RetrievalSettings{
			ChunkSize:           1200,
			ChunkOverlap:        200,
			TopK:                5,
			SimilarityThreshold: 0.3,
		},
		Chat: domain.ChatSettings{
			Persona:     "concierge",
			MaxToolHops: 4,
			RAGEnabled:  true,
		},
	}, nil
}

func (m *mockSettingsService) Save(settings *domain.AppSettings) error {
	m.savedSettings = settings
	return nil
}

func (m *mockSettingsService) SetLLMProvider(_ domain.AIProvider, _, _ string) error {
	return nil
}

func (m *mockSettingsService) SetEmbeddingProvider(_ domain.AIProvider, _, _ string) error {
	return nil
}

func (m *mockSettingsService) SetPersona(name string) error {
	m.persona = name
	return nil
}

func (m *mockSettingsService) Personas() ([]string, error) {
	return []string{"concierge", "coach"}, nil
}

func (m *mockSettingsService) SessionConfig() (domain.SessionConfig, error) {
	return domain.SessionConfig{Persona: "concierge"}, nil
}

func (m *mockSettingsService) GetDefaults() domain.AppSettings {
	return domain.AppSettings{}
}

func (m *mockSettingsService) ValidateEmbeddingConfig() error { return nil }

func (m *mockSettingsService) ValidateLLMConfig() error { return nil }

type mockSettingsServiceError struct {
	mockSettingsService
}

func (m *mockSettingsServiceError) Get() (*domain.AppSettings, error) {
	return nil, errors.New("config store unavailable")
}

func (m *mockSettingsServiceError) SetPersona(string) error {
	return domain.ErrNotFound
}

// Chat service mocks

type mockChatService struct {
	sentText   string
	resumedID  string
	resets     int
	history    []domain.ConversationTurn
	sendSource []domain.SourceRef
}

var _ driving.ChatService = (*mockChatService)(nil)

func (m *mockChatService) Send(_ context.Context, text string, sink driving.EventSink) (*domain.ConversationTurn, error) {
	m.sentText = text
	if sink != nil {
		sink(domain.TurnEvent{Kind: domain.TurnEventDelta, Delta: "Certainly. "})
		sink(domain.TurnEvent{Kind: domain.TurnEventDelta, Delta: "Here is what I found."})
	}
	return &domain.ConversationTurn{
		Role:      domain.RoleModel,
		Text:      "Certainly. Here is what I found.",
		Timestamp: testTime,
		Sources:   m.sendSource,
	}, nil
}

func (m *mockChatService) History() []domain.ConversationTurn { return m.history }

func (m *mockChatService) Session() *domain.Session { return nil }

func (m *mockChatService) Configure(domain.SessionConfig) error { return nil }

func (m *mockChatService) Reset() { m.resets++ }

func (m *mockChatService) Resume(sessionID string, turns []domain.ConversationTurn) {
	m.resumedID = sessionID
	m.history = turns
}

type mockChatServiceError struct {
	mockChatService
}

func (m *mockChatServiceError) Send(context.Context, string, driving.EventSink) (*domain.ConversationTurn, error) {
	return nil, domain.ErrNotConfigured
}

type mockChatServiceToolEvents struct {
	mockChatService
}

func (m *mockChatServiceToolEvents) Send(_ context.Context, _ string, sink driving.EventSink) (*domain.ConversationTurn, error) {
	if sink != nil {
		sink(domain.TurnEvent{Kind: domain.TurnEventToolCall, ToolName: "weather_forecast"})
		sink(domain.TurnEvent{Kind: domain.TurnEventToolResult, ToolName: "weather_forecast", ToolOK: true})
		sink(domain.TurnEvent{Kind: domain.TurnEventToolCall, ToolName: "calendar_list_events"})
		sink(domain.TurnEvent{Kind: domain.TurnEventToolResult, ToolName: "calendar_list_events", ToolOK: false})
		sink(domain.TurnEvent{Kind: domain.TurnEventDelta, Delta: "It will be sunny."})
	}
	return &domain.ConversationTurn{Role: domain.RoleModel, Text: "It will be sunny.", Timestamp: testTime}, nil
}

// Retrieval service mocks

type mockRetrievalService struct {
	cleared []string
}

var _ driving.RetrievalService = (*mockRetrievalService)(nil)

func (m *mockRetrievalService) Ingest(_ context.Context, _ domain.SourceInfo, _ string) (int, error) {
	return 3, nil
}

func (m *mockRetrievalService) Retrieve(_ context.Context, _ string, _ domain.RetrieveOptions) ([]domain.RankedChunk, error) {
	return nil, nil
}

func (m *mockRetrievalService) Clear(_ context.Context, sourceID string) error {
	m.cleared = append(m.cleared, sourceID)
	return nil
}

func (m *mockRetrievalService) Sources(context.Context) ([]domain.SourceInfo, error) {
	return []domain.SourceInfo{
		{
			ID:         "file:/home/user/docs/readme.md",
			Type:       domain.SourceTypeFile,
			Title:      "readme.md",
			URI:        "/home/user/docs/readme.md",
			ChunkCount: 4,
			IngestedAt: testTime,
		},
	}, nil
}

type mockRetrievalServiceEmpty struct {
	mockRetrievalService
}

func (m *mockRetrievalServiceEmpty) Sources(context.Context) ([]domain.SourceInfo, error) {
	return nil, nil
}

type mockRetrievalServiceError struct {
	mockRetrievalService
}

func (m *mockRetrievalServiceError) Sources(context.Context) ([]domain.SourceInfo, error) {
	return nil, errors.New("store unavailable")
}

// Note service mocks

type mockNoteService struct {
	deleted []string
}

var _ driving.NoteService = (*mockNoteService)(nil)

func (m *mockNoteService) Add(_ context.Context, title, text string) (domain.Note, error) {
	return domain.Note{ID: "note-1", Title: title, Text: text, UpdatedAt: testTime}, nil
}

func (m *mockNoteService) Update(_ context.Context, id, title, text string) (domain.Note, error) {
	return domain.Note{ID: id, Title: title, Text: text, UpdatedAt: testTime}, nil
}

func (m *mockNoteService) Get(_ context.Context, id string) (domain.Note, error) {
	return domain.Note{
		ID:        id,
		Title:     "Packing list",
		Text:      "Passport, charger, walking shoes.",
		UpdatedAt: testTime,
	}, nil
}

func (m *mockNoteService) List(context.Context) ([]domain.Note, error) {
	return []domain.Note{
		{ID: "note-1", Title: "Packing list", Text: "Passport, charger.", UpdatedAt: testTime},
		{ID: "note-2", Text: "Call the dentist about Thursday.", UpdatedAt: testTime},
	}, nil
}

func (m *mockNoteService) Search(_ context.Context, _ string, _ int) ([]domain.RankedChunk, error) {
	return []domain.RankedChunk{
		{
			Chunk:      domain.Chunk{Text: "Passport, charger, walking shoes."},
			Similarity: 0.91,
			Source:     domain.SourceRef{Title: "Packing list", URI: "note:note-1"},
		},
	}, nil
}

func (m *mockNoteService) Delete(_ context.Context, id string) error {
	m.deleted = append(m.deleted, id)
	return nil
}

type mockNoteServiceEmpty struct {
	mockNoteService
}

func (m *mockNoteServiceEmpty) List(context.Context) ([]domain.Note, error) {
	return nil, nil
}

func (m *mockNoteServiceEmpty) Search(context.Context, string, int) ([]domain.RankedChunk, error) {
	return nil, nil
}

type mockNoteServiceError struct {
	mockNoteService
}

func (m *mockNoteServiceError) Add(context.Context, string, string) (domain.Note, error) {
	return domain.Note{}, errors.New("store unavailable")
}

func (m *mockNoteServiceError) Get(context.Context, string) (domain.Note, error) {
	return domain.Note{}, domain.ErrNotFound
}

func (m *mockNoteServiceError) List(context.Context) ([]domain.Note, error) {
	return nil, errors.New("store unavailable")
}

// Ingest service mocks

type mockIngestService struct {
	lastTarget string
	removed    []string
}

var _ driving.IngestService = (*mockIngestService)(nil)

func (m *mockIngestService) IngestTarget(_ context.Context, target string) (driving.IngestReport, error) {
	m.lastTarget = target
	return driving.IngestReport{Documents: 3, Chunks: 12}, nil
}

func (m *mockIngestService) IngestDocument(_ context.Context, _ domain.SourceInfo, _ string) (int, error) {
	return 4, nil
}

func (m *mockIngestService) Remove(_ context.Context, sourceID string) error {
	m.removed = append(m.removed, sourceID)
	return nil
}

type mockIngestServiceSkips struct {
	mockIngestService
}

func (m *mockIngestServiceSkips) IngestTarget(context.Context, string) (driving.IngestReport, error) {
	return driving.IngestReport{Documents: 3, Chunks: 12, Skipped: 2}, nil
}

type mockIngestServiceError struct {
	mockIngestService
}

func (m *mockIngestServiceError) IngestTarget(context.Context, string) (driving.IngestReport, error) {
	return driving.IngestReport{}, domain.ErrNotFound
}

func (m *mockIngestServiceError) Remove(context.Context, string) error {
	return errors.New("store unavailable")
}

// Tool runner mocks

type mockToolRunner struct {
	lastRequest domain.ToolCallRequest
}

var _ driving.ToolRunner = (*mockToolRunner)(nil)

func (m *mockToolRunner) Definitions() []domain.ToolDefinition {
	return []domain.ToolDefinition{
		{
			Name:        "weather_forecast",
			Description: "Get the weather forecast for a location",
			Parameters: []domain.ToolParameter{
				{Name: "location", Type: "string", Description: "City or place name", Required: true},
				{Name: "days", Type: "integer", Description: "Days ahead"},
			},
		},
	}
}

func (m *mockToolRunner) Dispatch(_ context.Context, req domain.ToolCallRequest) domain.ToolResult {
	m.lastRequest = req
	return domain.ToolResult{OK: true, Value: json.RawMessage(`{"temperature_c":21.5}`)}
}

type mockToolRunnerError struct {
	mockToolRunner
}

func (m *mockToolRunnerError) Dispatch(context.Context, domain.ToolCallRequest) domain.ToolResult {
	return domain.NewToolError("unknown tool %q", "weather_forecast")
}

// Conversation store mocks

type mockConversationStore struct {
	savedTurns []domain.ConversationTurn
}

var _ driven.ConversationStore = (*mockConversationStore)(nil)

func (m *mockConversationStore) SaveTurn(_ context.Context, _ string, turn domain.ConversationTurn) error {
	m.savedTurns = append(m.savedTurns, turn)
	return nil
}

func (m *mockConversationStore) Turns(_ context.Context, sessionID string, _ int) ([]domain.ConversationTurn, error) {
	return []domain.ConversationTurn{
		{ID: sessionID + "-t1", Role: domain.RoleUser, Text: "What's on today?", Timestamp: testTime},
		{ID: sessionID + "-t2", Role: domain.RoleModel, Text: "You have two meetings.", Timestamp: testTime},
	}, nil
}

func (m *mockConversationStore) Sessions(context.Context) ([]driven.SessionSummary, error) {
	return []driven.SessionSummary{
		{SessionID: "session-abc", Turns: 6, StartedAt: testTime, LastAt: testTime.Add(20 * time.Minute)},
	}, nil
}

func (m *mockConversationStore) LatestSessionID(context.Context) (string, error) {
	return "session-abc", nil
}

type mockConversationStoreEmpty struct {
	mockConversationStore
}

func (m *mockConversationStoreEmpty) Sessions(context.Context) ([]driven.SessionSummary, error) {
	return nil, nil
}

func (m *mockConversationStoreEmpty) Turns(context.Context, string, int) ([]domain.ConversationTurn, error) {
	return nil, nil
}

func (m *mockConversationStoreEmpty) LatestSessionID(context.Context) (string, error) {
	return "", domain.ErrNotFound
}

type mockConversationStoreError struct {
	mockConversationStore
}

func (m *mockConversationStoreError) Sessions(context.Context) ([]driven.SessionSummary, error) {
	return nil, errors.New("store unavailable")
}

func (m *mockConversationStoreError) Turns(context.Context, string, int) ([]domain.ConversationTurn, error) {
	return nil, errors.New("store unavailable")
}
