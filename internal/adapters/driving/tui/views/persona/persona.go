// Package persona implements the persona picker view.
package persona

import (
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/custodia-labs/valet-cli/internal/adapters/driving/tui/keymap"
	"github.com/custodia-labs/valet-cli/internal/adapters/driving/tui/messages"
	"github.com/custodia-labs/valet-cli/internal/adapters/driving/tui/styles"
	"github.com/custodia-labs/valet-cli/internal/core/ports/driving"
)

// View lists the available personas and switches the active one.
type View struct {
	styles   *styles.Styles
	keys     *keymap.KeyMap
	settings driving.SettingsService

	names  []string
	active string
	cursor int
	err    error

	width  int
	height int
}

// NewView creates the persona picker.
func NewView(s *styles.Styles, km *keymap.KeyMap, settings driving.SettingsService) *View {
	if s == nil {
		s = styles.DefaultStyles()
	}
	if km == nil {
		km = keymap.DefaultKeyMap()
	}
	return &View{
		styles:   s,
		keys:     km,
		settings: settings,
	}
}

// Init loads the persona list.
func (v *View) Init() tea.Cmd {
	settings := v.settings
	return func() tea.Msg {
		names, err := settings.Personas()
		if err != nil {
			return messages.PersonasLoaded{Err: err}
		}
		active := ""
		if current, err := settings.Get(); err == nil {
			active = current.Chat.Persona
		}
		return messages.PersonasLoaded{Names: names, Active: active}
	}
}

// Names returns the loaded persona names.
func (v *View) Names() []string {
	return v.names
}

// Cursor returns the highlighted index.
func (v *View) Cursor() int {
	return v.cursor
}

// Err returns the last load or selection error.
func (v *View) Err() error {
	return v.err
}

// Update handles messages for the persona picker.
func (v *View) Update(msg tea.Msg) (*View, tea.Cmd) {
	switch msg := msg.(type) {
	case messages.PersonasLoaded:
		if msg.Err != nil {
			v.err = msg.Err
			return v, nil
		}
		v.names = msg.Names
		v.active = msg.Active
		v.cursor = 0
		for i, name := range msg.Names {
			if name == msg.Active {
				v.cursor = i
				break
			}
		}
		return v, nil

	case tea.KeyMsg:
		return v.updateKey(msg)
	}

	return v, nil
}

func (v *View) updateKey(msg tea.KeyMsg) (*View, tea.Cmd) {
	keyStr := msg.String()

	switch {
	case keymap.Matches(keyStr, v.keys.Up):
		if v.cursor > 0 {
			v.cursor--
		}

	case keymap.Matches(keyStr, v.keys.Down):
		if v.cursor < len(v.names)-1 {
			v.cursor++
		}

	case keymap.Matches(keyStr, v.keys.Select):
		if len(v.names) == 0 {
			return v, nil
		}
		name := v.names[v.cursor]
		settings := v.settings
		return v, func() tea.Msg {
			return messages.PersonaSelected{Name: name, Err: settings.SetPersona(name)}
		}
	}

	return v, nil
}

// View renders the persona list.
func (v *View) View() string {
	var b strings.Builder
	b.WriteString(v.styles.Title.Render("Personas"))
	b.WriteString("\n\n")

	if v.err != nil {
		b.WriteString(v.styles.Error.Render("Error: " + v.err.Error()))
		b.WriteString("\n")
		return b.String()
	}

	if len(v.names) == 0 {
		b.WriteString(v.styles.Muted.Render("Loading..."))
		b.WriteString("\n")
		return b.String()
	}

	for i, name := range v.names {
		marker := "  "
		if name == v.active {
			marker = "* "
		}
		line := marker + name
		if i == v.cursor {
			b.WriteString(v.styles.Selected.Render(line))
		} else {
			b.WriteString(v.styles.Normal.Render(line))
		}
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(v.styles.Help.Render("enter: select | esc: back"))
	return b.String()
}

// SetDimensions sets the terminal dimensions.
func (v *View) SetDimensions(width, height int) {
	v.width = width
	v.height = height
}
