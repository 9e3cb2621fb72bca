package tui

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/custodia-labs/valet-cli/internal/adapters/driving/tui/keymap"
	"github.com/custodia-labs/valet-cli/internal/adapters/driving/tui/messages"
	"github.com/custodia-labs/valet-cli/internal/adapters/driving/tui/styles"
	"github.com/custodia-labs/valet-cli/internal/adapters/driving/tui/views/chat"
	"github.com/custodia-labs/valet-cli/internal/adapters/driving/tui/views/persona"
)

// App is the main TUI application following the Elm architecture.
// It implements tea.Model for use with Bubbletea.
type App struct {
	ports Ports

	styles *styles.Styles
	keys   *keymap.KeyMap

	// chatView is the conversation view.
	chatView *chat.View

	// personaView is the persona picker. Nil without a settings port.
	personaView *persona.View

	// currentView tracks which view is active.
	currentView messages.ViewType

	// err holds the last error that occurred.
	err error

	// width and height are terminal dimensions.
	width  int
	height int

	// ready indicates if the app has initialised.
	ready bool
}

// Ensure App implements tea.Model.
var _ tea.Model = (*App)(nil)

// NewApp creates the TUI application with the given ports.
// Port validation happens in Run.
func NewApp(ports Ports) *App {
	s := styles.DefaultStyles()
	km := keymap.DefaultKeyMap()

	app := &App{
		ports:       ports,
		styles:      s,
		keys:        km,
		chatView:    chat.NewView(s, km, ports.Chat),
		currentView: messages.ViewChat,
	}
	if ports.Settings != nil {
		app.personaView = persona.NewView(s, km, ports.Settings)
	}
	return app
}

// Init implements tea.Model.
func (a *App) Init() tea.Cmd {
	return tea.Batch(
		tea.EnterAltScreen,
		tea.SetWindowTitle("valet"),
		a.chatView.Init(),
	)
}

// Update implements tea.Model.
// It handles messages and updates the model state.
func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		a.ready = true
		a.chatView.SetDimensions(msg.Width, msg.Height)
		if a.personaView != nil {
			a.personaView.SetDimensions(msg.Width, msg.Height)
		}
		return a, nil

	case tea.KeyMsg:
		return a.updateKey(msg)

	case messages.ViewChanged:
		a.currentView = msg.View
		if msg.View == messages.ViewPersona && a.personaView != nil {
			return a, a.personaView.Init()
		}
		return a, nil

	case messages.PersonaSelected:
		if msg.Err != nil {
			a.err = msg.Err
			return a, nil
		}
		a.chatView.SetPersona(msg.Name)
		a.currentView = messages.ViewChat
		return a, nil

	case messages.ErrorOccurred:
		a.err = msg.Err
		return a, nil

	case messages.Quit:
		return a, tea.Quit
	}

	// Forward everything else to the active view.
	switch a.currentView {
	case messages.ViewChat:
		a.chatView, cmd = a.chatView.Update(msg)
	case messages.ViewPersona:
		if a.personaView != nil {
			a.personaView, cmd = a.personaView.Update(msg)
		}
	case messages.ViewHelp:
	}

	return a, cmd
}

func (a *App) updateKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	keyStr := msg.String()

	// Global quit.
	if keymap.Matches(keyStr, a.keys.Quit) {
		return a, tea.Quit
	}

	switch a.currentView {
	case messages.ViewChat:
		// Persona picker and help open only while idle; mid-turn the
		// chat view owns every key.
		if !a.chatView.Busy() {
			if keymap.Matches(keyStr, a.keys.Persona) && a.personaView != nil {
				a.currentView = messages.ViewPersona
				return a, a.personaView.Init()
			}
			if keymap.Matches(keyStr, a.keys.Help) {
				a.currentView = messages.ViewHelp
				return a, nil
			}
		}
		a.chatView, cmd = a.chatView.Update(msg)
		return a, cmd

	case messages.ViewPersona:
		if keymap.Matches(keyStr, a.keys.Back) {
			a.currentView = messages.ViewChat
			return a, nil
		}
		if a.personaView != nil {
			a.personaView, cmd = a.personaView.Update(msg)
		}
		return a, cmd

	case messages.ViewHelp:
		if keymap.Matches(keyStr, a.keys.Back) {
			a.currentView = messages.ViewChat
			return a, nil
		}
		return a, nil
	}

	return a, nil
}

// View implements tea.Model.
func (a *App) View() string {
	if !a.ready {
		return "Initialising..."
	}

	switch a.currentView {
	case messages.ViewChat:
		return a.chatView.View()
	case messages.ViewPersona:
		if a.personaView != nil {
			return a.personaView.View()
		}
		return a.chatView.View()
	case messages.ViewHelp:
		return a.viewHelp()
	default:
		return a.chatView.View()
	}
}

// viewHelp renders the help view.
func (a *App) viewHelp() string {
	return `Help

Chat:
  (type)      Compose a message
  enter       Send
  esc         Cancel the in-flight response
  ctrl+r      Clear the conversation
  pgup/pgdn   Scroll the transcript

Navigation:
  ctrl+p      Switch persona
  ctrl+g      This help
  esc         Back to chat
  ctrl+c      Quit

[esc] back to chat`
}

// Run starts the TUI application and blocks until it exits.
func (a *App) Run(ctx context.Context) error {
	if err := a.ports.Validate(); err != nil {
		return fmt.Errorf("starting chat UI: %w", err)
	}
	a.chatView.SetContext(ctx)

	p := tea.NewProgram(a, tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := p.Run()
	return err
}

// CurrentView returns the current view type.
func (a *App) CurrentView() messages.ViewType {
	return a.currentView
}

// Err returns the last error that occurred.
func (a *App) Err() error {
	return a.err
}

// Ready returns whether the app has been initialised.
func (a *App) Ready() bool {
	return a.ready
}
