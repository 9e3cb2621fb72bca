// Package transcript renders the scrolling conversation transcript.
package transcript

import (
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/custodia-labs/valet-cli/internal/adapters/driving/tui/styles"
	"github.com/custodia-labs/valet-cli/internal/core/domain"
)

// Transcript wraps a bubbles viewport over the conversation turns.
// Finalized turns come from the session transcript; while a turn is in
// flight its partial text and tool activity render below them.
type Transcript struct {
	viewport viewport.Model
	styles   *styles.Styles

	turns []domain.ConversationTurn

	// pending is the streaming text of the in-flight model turn.
	pending string

	// activity lists tool notes for the in-flight turn.
	activity []string

	width  int
	height int
}

// New creates an empty transcript component.
func New(s *styles.Styles) *Transcript {
	if s == nil {
		s = styles.DefaultStyles()
	}
	vp := viewport.New(80, 20)
	return &Transcript{
		viewport: vp,
		styles:   s,
		width:    80,
		height:   20,
	}
}

// Init initialises the transcript.
func (t *Transcript) Init() tea.Cmd {
	return nil
}

// Update handles viewport scrolling.
func (t *Transcript) Update(msg tea.Msg) (*Transcript, tea.Cmd) {
	var cmd tea.Cmd
	t.viewport, cmd = t.viewport.Update(msg)
	return t, cmd
}

// View renders the visible transcript window.
func (t *Transcript) View() string {
	return t.viewport.View()
}

// SetTurns replaces the finalized transcript and re-renders.
func (t *Transcript) SetTurns(turns []domain.ConversationTurn) {
	t.turns = turns
	t.refresh()
}

// Turns returns the finalized transcript.
func (t *Transcript) Turns() []domain.ConversationTurn {
	return t.turns
}

// AppendTurn adds one finalized turn and re-renders.
func (t *Transcript) AppendTurn(turn domain.ConversationTurn) {
	t.turns = append(t.turns, turn)
	t.refresh()
}

// SetPending replaces the in-flight model text and re-renders.
func (t *Transcript) SetPending(text string) {
	t.pending = text
	t.refresh()
}

// Pending returns the in-flight model text.
func (t *Transcript) Pending() string {
	return t.pending
}

// AddActivity appends a tool note for the in-flight turn.
func (t *Transcript) AddActivity(note string) {
	t.activity = append(t.activity, note)
	t.refresh()
}

// ClearPending discards in-flight text and tool notes.
func (t *Transcript) ClearPending() {
	t.pending = ""
	t.activity = nil
	t.refresh()
}

// Clear empties the whole transcript.
func (t *Transcript) Clear() {
	t.turns = nil
	t.pending = ""
	t.activity = nil
	t.refresh()
}

// SetDimensions resizes the viewport.
func (t *Transcript) SetDimensions(width, height int) {
	t.width = width
	t.height = height
	t.viewport.Width = width
	t.viewport.Height = height
	t.refresh()
}

// ScrollUp scrolls the viewport up by a few lines.
func (t *Transcript) ScrollUp() {
	t.viewport.ScrollUp(3)
}

// ScrollDown scrolls the viewport down by a few lines.
func (t *Transcript) ScrollDown() {
	t.viewport.ScrollDown(3)
}

// refresh re-renders the viewport content and follows the tail.
func (t *Transcript) refresh() {
	t.viewport.SetContent(t.render())
	t.viewport.GotoBottom()
}

// render lays the turns out as styled text blocks.
func (t *Transcript) render() string {
	var b strings.Builder

	for _, turn := range t.turns {
		t.renderTurn(&b, turn)
	}

	if t.pending != "" || len(t.activity) > 0 {
		b.WriteString(t.styles.AssistantLabel.Render("Valet"))
		b.WriteString("\n")
		for _, note := range t.activity {
			b.WriteString(t.styles.ToolNote.Render(note))
			b.WriteString("\n")
		}
		if t.pending != "" {
			b.WriteString(t.styles.Normal.Render(t.pending))
			b.WriteString("\n")
		}
	}

	return b.String()
}

func (t *Transcript) renderTurn(b *strings.Builder, turn domain.ConversationTurn) {
	switch turn.Role {
	case domain.RoleUser:
		b.WriteString(t.styles.UserLabel.Render("You"))
	case domain.RoleModel:
		b.WriteString(t.styles.AssistantLabel.Render("Valet"))
	default:
		return
	}
	b.WriteString("\n")
	b.WriteString(t.styles.Normal.Render(turn.Text))
	b.WriteString("\n")

	if turn.Error != "" {
		b.WriteString(t.styles.Error.Render("error: " + turn.Error))
		b.WriteString("\n")
	}

	if len(turn.Sources) > 0 {
		b.WriteString(t.styles.Muted.Render(renderSources(turn.Sources)))
		b.WriteString("\n")
	}
	b.WriteString("\n")
}

func renderSources(sources []domain.SourceRef) string {
	names := make([]string, 0, len(sources))
	for _, src := range sources {
		names = append(names, src.Title)
	}
	return "sources: " + strings.Join(names, ", ")
}
