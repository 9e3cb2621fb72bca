package cli

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/custodia-labs/valet-cli/internal/core/domain"
)

func TestAskCmd_Use(t *testing.T) {
	assert.Equal(t, "ask [question]", askCmd.Use)
}

func TestAskCmd_RequiresQuestion(t *testing.T) {
	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs([]string{"ask"})
	defer func() {
		rootCmd.SetArgs(nil)
	}()

	err := rootCmd.Execute()

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "requires at least 1 arg(s)")
}

func TestAskCmd_StreamsAnswer(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()
	mock := &mockChatService{}
	chatService = mock

	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetArgs([]string{"ask", "what's", "on", "today?"})
	defer func() {
		rootCmd.SetArgs(nil)
	}()

	err := rootCmd.Execute()

	assert.NoError(t, err)
	assert.Contains(t, buf.String(), "Certainly. Here is what I found.")
	assert.Equal(t, "what's on today?", mock.sentText)
}

func TestAskCmd_PrintsSources(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()
	chatService = &mockChatService{
		sendSource: []domain.SourceRef{
			{Title: "Packing list", URI: "note:note-1"},
			{Title: "Untracked source"},
		},
	}

	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetArgs([]string{"ask", "what should I pack?"})
	defer func() {
		rootCmd.SetArgs(nil)
	}()

	err := rootCmd.Execute()

	assert.NoError(t, err)
	assert.Contains(t, buf.String(), "Sources:")
	assert.Contains(t, buf.String(), "Packing list (note:note-1)")
	assert.Contains(t, buf.String(), "- Untracked source")
}

func TestAskCmd_ServiceNotConfigured(t *testing.T) {
	oldService := chatService
	chatService = nil
	defer func() {
		chatService = oldService
	}()

	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs([]string{"ask", "hello"})
	defer func() {
		rootCmd.SetArgs(nil)
	}()

	err := rootCmd.Execute()

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "chat service not configured")
}

func TestAskCmd_SendError(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()
	chatService = &mockChatServiceError{}

	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs([]string{"ask", "hello"})
	defer func() {
		rootCmd.SetArgs(nil)
	}()

	err := rootCmd.Execute()

	assert.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrNotConfigured)
}

// sendPlain Tests

func TestSendPlain_RendersToolEvents(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()
	chatService = &mockChatServiceToolEvents{}

	buf := new(bytes.Buffer)

	err := sendPlain(context.Background(), buf, "weather in Lisbon")

	assert.NoError(t, err)
	assert.Contains(t, buf.String(), "[calling weather_forecast...]")
	assert.Contains(t, buf.String(), "[calendar_list_events reported a problem]")
}

// resumeLatestSession Tests

func TestResumeLatestSession_SeedsChatService(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()
	mock := &mockChatService{}
	chatService = mock

	err := resumeLatestSession(context.Background())

	assert.NoError(t, err)
	assert.Equal(t, "session-abc", mock.resumedID)
	assert.Len(t, mock.history, 2)
}

func TestResumeLatestSession_NoPersistedSessions(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()
	conversationStore = &mockConversationStoreEmpty{}

	err := resumeLatestSession(context.Background())

	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestResumeLatestSession_NoStore(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()
	conversationStore = nil

	err := resumeLatestSession(context.Background())

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "no conversation store configured")
}
