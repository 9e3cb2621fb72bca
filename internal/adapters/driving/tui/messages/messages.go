// Package messages defines Bubbletea message types for the TUI.
// Messages represent events and commands that flow through the Elm architecture.
package messages

import (
	"github.com/custodia-labs/valet-cli/internal/core/domain"
)

// ViewType identifies which view is currently active.
type ViewType int

const (
	// ViewChat is the conversation view.
	ViewChat ViewType = iota
	// ViewPersona is the persona picker.
	ViewPersona
	// ViewHelp is the help/keybindings view.
	ViewHelp
)

// String returns the string representation of the view type.
func (v ViewType) String() string {
	switch v {
	case ViewChat:
		return "chat"
	case ViewPersona:
		return "persona"
	case ViewHelp:
		return "help"
	default:
		return "unknown"
	}
}

// ViewChanged is sent when navigating between views.
type ViewChanged struct {
	View ViewType
}

// TurnEventReceived carries one streaming event from an in-flight turn.
type TurnEventReceived struct {
	Event domain.TurnEvent
}

// TurnFinished signals the turn cycle completed, successfully or not.
type TurnFinished struct {
	Turn *domain.ConversationTurn
	Err  error
}

// TurnCancelled signals the user aborted the in-flight turn.
type TurnCancelled struct{}

// PersonasLoaded carries the available persona names.
type PersonasLoaded struct {
	Names  []string
	Active string
	Err    error
}

// PersonaSelected signals the user picked a persona.
type PersonaSelected struct {
	Name string
	Err  error
}

// ErrorOccurred signals that an error happened.
type ErrorOccurred struct {
	Err error
}

// Quit signals the application should exit.
type Quit struct{}
