package domain

import "time"

// CalendarEvent is an event in the user's primary calendar.
type CalendarEvent struct {
	// ID is the provider-assigned event identifier.
	ID string

	// Summary is the event title.
	Summary string

	// Description is the optional long-form body.
	Description string

	// Location is the optional event location.
	Location string

	// Start is the event start time.
	Start time.Time

	// End is the event end time.
	End time.Time
}

// Task is an item on the user's default task list.
type Task struct {
	// ID is the provider-assigned task identifier.
	ID string

	// Title is the task text.
	Title string

	// Notes is the optional task detail.
	Notes string

	// Due is the optional due date.
	Due *time.Time

	// Done reports whether the task is completed.
	Done bool
}
