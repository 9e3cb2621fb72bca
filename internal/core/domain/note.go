package domain

import (
	"fmt"
	"strings"
	"time"
)

// Note is a user-saved snippet of text. Notes are first-class retrieval
// sources: every save re-ingests the note, every delete clears it.
type Note struct {
	// ID is the unique identifier for the note.
	ID string

	// Title is the short human-readable name.
	Title string

	// Text is the note body.
	Text string

	// CreatedAt is when the note was first saved.
	CreatedAt time.Time

	// UpdatedAt is when the note was last modified.
	UpdatedAt time.Time
}

// Validate checks the note can be saved.
func (n Note) Validate() error {
	if strings.TrimSpace(n.Text) == "" {
		return fmt.Errorf("%w: note text is empty", ErrInvalidInput)
	}
	return nil
}

// URI returns the note's citation location.
func (n Note) URI() string {
	return "note:" + n.ID
}

// DisplayTitle returns the title, falling back to a text prefix.
func (n Note) DisplayTitle() string {
	if n.Title != "" {
		return n.Title
	}
	text := strings.TrimSpace(n.Text)
	if runes := []rune(text); len(runes) > 40 {
		return string(runes[:40]) + "…"
	}
	return text
}
