package google

import (
	"context"

	"golang.org/x/oauth2"
	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"
	"google.golang.org/api/tasks/v1"
)

// NewCalendarService creates a Google Calendar API service using the
// provided TokenSource.
func NewCalendarService(ctx context.Context, ts oauth2.TokenSource) (*calendar.Service, error) {
	return calendar.NewService(ctx, option.WithTokenSource(ts))
}

// NewTasksService creates a Google Tasks API service using the provided
// TokenSource.
func NewTasksService(ctx context.Context, ts oauth2.TokenSource) (*tasks.Service, error) {
	return tasks.NewService(ctx, option.WithTokenSource(ts))
}
