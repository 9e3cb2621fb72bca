package cli

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHistoryCmd_Use(t *testing.T) {
	assert.Equal(t, "history", historyCmd.Use)
}

func TestHistoryCmd_Executes(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()

	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetArgs([]string{"history"})
	defer func() {
		rootCmd.SetArgs(nil)
	}()

	err := rootCmd.Execute()

	assert.NoError(t, err)
	assert.Contains(t, buf.String(), "session-abc")
	assert.Contains(t, buf.String(), "Turns: 6")
	assert.Contains(t, buf.String(), "Total: 1 conversations")
}

func TestHistoryCmd_EmptyList(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()
	conversationStore = &mockConversationStoreEmpty{}

	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetArgs([]string{"history"})
	defer func() {
		rootCmd.SetArgs(nil)
	}()

	err := rootCmd.Execute()

	assert.NoError(t, err)
	assert.Contains(t, buf.String(), "No conversations recorded yet.")
}

func TestHistoryCmd_StoreNotConfigured(t *testing.T) {
	oldStore := conversationStore
	conversationStore = nil
	defer func() {
		conversationStore = oldStore
	}()

	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs([]string{"history"})
	defer func() {
		rootCmd.SetArgs(nil)
	}()

	err := rootCmd.Execute()

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "conversation store not configured")
}

func TestHistoryCmd_StoreError(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()
	conversationStore = &mockConversationStoreError{}

	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs([]string{"history"})
	defer func() {
		rootCmd.SetArgs(nil)
	}()

	err := rootCmd.Execute()

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "failed to list conversations")
}

// History Show Tests

func TestHistoryShowCmd_Use(t *testing.T) {
	assert.Equal(t, "show [session-id]", historyShowCmd.Use)
}

func TestHistoryShowCmd_RequiresExactlyOneArg(t *testing.T) {
	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs([]string{"history", "show"})
	defer func() {
		rootCmd.SetArgs(nil)
	}()

	err := rootCmd.Execute()

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "accepts 1 arg(s)")
}

func TestHistoryShowCmd_HasLimitFlag(t *testing.T) {
	flag := historyShowCmd.Flags().Lookup("limit")
	require.NotNil(t, flag, "limit flag should exist")
	assert.Equal(t, "n", flag.Shorthand)
	assert.Equal(t, "0", flag.DefValue)
}

func TestHistoryShowCmd_PrintsTranscript(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()

	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetArgs([]string{"history", "show", "session-abc"})
	defer func() {
		rootCmd.SetArgs(nil)
	}()

	err := rootCmd.Execute()

	assert.NoError(t, err)
	assert.Contains(t, buf.String(), "You")
	assert.Contains(t, buf.String(), "What's on today?")
	assert.Contains(t, buf.String(), "Valet")
	assert.Contains(t, buf.String(), "You have two meetings.")
}

func TestHistoryShowCmd_EmptySession(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()
	conversationStore = &mockConversationStoreEmpty{}

	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetArgs([]string{"history", "show", "session-xyz"})
	defer func() {
		rootCmd.SetArgs(nil)
	}()

	err := rootCmd.Execute()

	assert.NoError(t, err)
	assert.Contains(t, buf.String(), "No turns recorded for session session-xyz.")
}

func TestHistoryShowCmd_StoreError(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()
	conversationStore = &mockConversationStoreError{}

	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs([]string{"history", "show", "session-abc"})
	defer func() {
		rootCmd.SetArgs(nil)
	}()

	err := rootCmd.Execute()

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "failed to load conversation")
}
