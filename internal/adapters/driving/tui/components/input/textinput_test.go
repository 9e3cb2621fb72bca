package input

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewChatInput(t *testing.T) {
	in := NewChatInput(nil)

	require.NotNil(t, in)
	assert.True(t, in.Focused())
	assert.Empty(t, in.Value())
	assert.Equal(t, 80, in.Width())
}

func TestChatInput_Init(t *testing.T) {
	in := NewChatInput(nil)

	assert.NotNil(t, in.Init())
}

func TestChatInput_SetValue(t *testing.T) {
	in := NewChatInput(nil)

	in.SetValue("what's on my calendar?")

	assert.Equal(t, "what's on my calendar?", in.Value())
}

func TestChatInput_Reset(t *testing.T) {
	in := NewChatInput(nil)
	in.SetValue("draft message")

	in.Reset()

	assert.Empty(t, in.Value())
}

func TestChatInput_FocusBlur(t *testing.T) {
	in := NewChatInput(nil)

	in.Blur()
	assert.False(t, in.Focused())

	in.Focus()
	assert.True(t, in.Focused())
}

func TestChatInput_SetWidth(t *testing.T) {
	in := NewChatInput(nil)

	in.SetWidth(100)

	assert.Equal(t, 100, in.Width())
}

func TestChatInput_SetWidth_ClampsNarrow(t *testing.T) {
	in := NewChatInput(nil)

	in.SetWidth(10)

	assert.Equal(t, 10, in.Width())
	assert.NotPanics(t, func() { _ = in.View() })
}

func TestChatInput_View_ShowsPlaceholder(t *testing.T) {
	in := NewChatInput(nil)

	assert.Contains(t, in.View(), "Type a message...")
}
