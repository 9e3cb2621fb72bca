// Package chat implements the conversation view: the scrolling
// transcript, the input line and the turn lifecycle.
package chat

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/custodia-labs/valet-cli/internal/adapters/driving/tui/components/input"
	"github.com/custodia-labs/valet-cli/internal/adapters/driving/tui/components/status"
	"github.com/custodia-labs/valet-cli/internal/adapters/driving/tui/components/transcript"
	"github.com/custodia-labs/valet-cli/internal/adapters/driving/tui/keymap"
	"github.com/custodia-labs/valet-cli/internal/adapters/driving/tui/messages"
	"github.com/custodia-labs/valet-cli/internal/adapters/driving/tui/styles"
	"github.com/custodia-labs/valet-cli/internal/core/domain"
	"github.com/custodia-labs/valet-cli/internal/core/ports/driving"
)

// eventBuffer bounds how far the orchestrator can run ahead of the UI.
const eventBuffer = 64

// View is the conversation view.
type View struct {
	styles *styles.Styles
	keys   *keymap.KeyMap
	chat   driving.ChatService

	transcript *transcript.Transcript
	input      *input.ChatInput
	status     *status.Bar
	spinner    spinner.Model

	// ctx is the lifetime of the whole UI; turn contexts derive from it.
	ctx context.Context

	// busy is true while a turn is in flight.
	busy bool

	// events receives turn events from the send goroutine.
	events chan tea.Msg

	// cancelTurn aborts the in-flight turn. Nil when idle.
	cancelTurn context.CancelFunc

	width  int
	height int
}

// NewView creates the conversation view.
func NewView(s *styles.Styles, km *keymap.KeyMap, chat driving.ChatService) *View {
	if s == nil {
		s = styles.DefaultStyles()
	}
	if km == nil {
		km = keymap.DefaultKeyMap()
	}

	sp := spinner.New(
		spinner.WithSpinner(spinner.Dot),
		spinner.WithStyle(s.Muted),
	)

	return &View{
		styles:     s,
		keys:       km,
		chat:       chat,
		transcript: transcript.New(s),
		input:      input.NewChatInput(s),
		status:     status.NewBar(s, km),
		spinner:    sp,
		ctx:        context.Background(),
	}
}

// SetContext sets the context turn contexts derive from.
func (v *View) SetContext(ctx context.Context) {
	v.ctx = ctx
}

// SetPersona updates the persona shown in the status bar.
func (v *View) SetPersona(name string) {
	v.status.SetPersona(name)
}

// Init loads any resumed transcript and starts the cursor blink.
func (v *View) Init() tea.Cmd {
	v.transcript.SetTurns(v.chat.History())
	return v.input.Init()
}

// Busy reports whether a turn is in flight.
func (v *View) Busy() bool {
	return v.busy
}

// Update handles messages for the conversation view.
func (v *View) Update(msg tea.Msg) (*View, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return v.updateKey(msg)

	case spinner.TickMsg:
		if !v.busy {
			return v, nil
		}
		var cmd tea.Cmd
		v.spinner, cmd = v.spinner.Update(msg)
		return v, cmd

	case messages.TurnEventReceived:
		return v.updateTurnEvent(msg.Event)

	case messages.TurnFinished:
		return v.finishTurn(msg)
	}

	return v, nil
}

func (v *View) updateKey(msg tea.KeyMsg) (*View, tea.Cmd) {
	keyStr := msg.String()

	if v.busy {
		if keymap.Matches(keyStr, v.keys.Cancel) {
			if v.cancelTurn != nil {
				v.cancelTurn()
			}
			return v, nil
		}
		// Transcript scrolling stays available while streaming.
		if keyStr == "pgup" || keyStr == "pgdown" {
			var cmd tea.Cmd
			v.transcript, cmd = v.transcript.Update(msg)
			return v, cmd
		}
		return v, nil
	}

	switch {
	case keymap.Matches(keyStr, v.keys.Submit):
		return v.submit()

	case keymap.Matches(keyStr, v.keys.Reset):
		v.chat.Reset()
		v.transcript.Clear()
		v.status.Clear()
		return v, nil

	case keyStr == "pgup" || keyStr == "pgdown":
		var cmd tea.Cmd
		v.transcript, cmd = v.transcript.Update(msg)
		return v, cmd
	}

	var cmd tea.Cmd
	v.input, cmd = v.input.Update(msg)
	return v, cmd
}

// submit starts a turn for the typed message.
func (v *View) submit() (*View, tea.Cmd) {
	text := strings.TrimSpace(v.input.Value())
	if text == "" {
		return v, nil
	}
	v.input.Reset()

	// Shown immediately; replaced by the canonical transcript when
	// the turn finalizes.
	v.transcript.AppendTurn(domain.ConversationTurn{
		Role: domain.RoleUser,
		Text: text,
	})

	turnCtx, cancel := context.WithCancel(v.ctx)
	v.cancelTurn = cancel
	v.busy = true
	v.status.SetState(status.StateThinking)

	events := make(chan tea.Msg, eventBuffer)
	v.events = events

	chat := v.chat
	go func() {
		turn, err := chat.Send(turnCtx, text, func(event domain.TurnEvent) {
			events <- messages.TurnEventReceived{Event: event}
		})
		events <- messages.TurnFinished{Turn: turn, Err: err}
		close(events)
	}()

	return v, tea.Batch(v.waitForEvent(), v.spinner.Tick)
}

// waitForEvent delivers the next turn event to Update.
func (v *View) waitForEvent() tea.Cmd {
	events := v.events
	return func() tea.Msg {
		msg, ok := <-events
		if !ok {
			return nil
		}
		return msg
	}
}

func (v *View) updateTurnEvent(event domain.TurnEvent) (*View, tea.Cmd) {
	switch event.Kind {
	case domain.TurnEventDelta:
		v.transcript.SetPending(v.transcript.Pending() + event.Delta)

	case domain.TurnEventToolCall:
		v.status.SetState(status.StateTool)
		v.status.SetMessage(event.ToolName)
		v.transcript.AddActivity(fmt.Sprintf("calling %s...", event.ToolName))

	case domain.TurnEventToolResult:
		v.status.SetState(status.StateThinking)
		v.status.SetMessage("")
		if !event.ToolOK {
			v.transcript.AddActivity(fmt.Sprintf("%s reported a problem", event.ToolName))
		}

	case domain.TurnEventError:
		v.status.SetState(status.StateError)
		v.status.SetMessage(event.Err)

	case domain.TurnEventStarted, domain.TurnEventFinalized:
	}

	return v, v.waitForEvent()
}

func (v *View) finishTurn(msg messages.TurnFinished) (*View, tea.Cmd) {
	v.busy = false
	v.cancelTurn = nil
	v.transcript.ClearPending()

	if msg.Err != nil {
		v.status.SetState(status.StateError)
		v.status.SetMessage(msg.Err.Error())
	} else {
		v.status.Clear()
	}

	// The service transcript is canonical: it includes the user turn
	// and the finalized model turn with sources and any partial text.
	v.transcript.SetTurns(v.chat.History())
	return v, nil
}

// View renders the conversation view.
func (v *View) View() string {
	header := v.styles.Title.Render("valet")

	statusLine := v.status.View()
	if v.busy {
		statusLine = v.spinner.View() + " " + statusLine
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		header,
		v.transcript.View(),
		v.input.View(),
		statusLine,
	)
}

// SetDimensions resizes the view's components.
func (v *View) SetDimensions(width, height int) {
	v.width = width
	v.height = height

	// Header, input box (3 with border) and status bar.
	transcriptHeight := height - 6
	if transcriptHeight < 3 {
		transcriptHeight = 3
	}
	v.transcript.SetDimensions(width, transcriptHeight)
	v.input.SetWidth(width)
	v.status.SetWidth(width)
}
