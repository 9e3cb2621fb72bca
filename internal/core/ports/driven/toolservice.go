package driven

import (
	"context"
	"time"

	"github.com/custodia-labs/valet-cli/internal/core/domain"
)

// CalendarService is the external calendar collaborator behind the
// list_events and create_event tools. Implementations are HTTP clients;
// errors surface as Go errors that the dispatch layer converts into
// structured tool results.
type CalendarService interface {
	// ListEvents returns events in [from, to) on the primary calendar,
	// at most max, soonest first.
	ListEvents(ctx context.Context, from, to time.Time, max int) ([]domain.CalendarEvent, error)

	// CreateEvent inserts an event and returns it with its assigned ID.
	CreateEvent(ctx context.Context, event domain.CalendarEvent) (domain.CalendarEvent, error)

	// Ping validates the credential by making a lightweight test request.
	Ping(ctx context.Context) error
}

// TaskService is the external task-list collaborator behind the task tools.
type TaskService interface {
	// ListTasks returns open tasks on the default list.
	ListTasks(ctx context.Context, includeCompleted bool) ([]domain.Task, error)

	// AddTask inserts a task and returns it with its assigned ID.
	AddTask(ctx context.Context, task domain.Task) (domain.Task, error)

	// CompleteTask marks the task done.
	// Returns domain.ErrNotFound for an unknown id.
	CompleteTask(ctx context.Context, taskID string) error

	// DeleteTask removes the task.
	// Returns domain.ErrNotFound for an unknown id.
	DeleteTask(ctx context.Context, taskID string) error

	// Ping validates the credential by making a lightweight test request.
	Ping(ctx context.Context) error
}

// WeatherService is the external forecast collaborator behind the
// get_weather tool. No credential is required.
type WeatherService interface {
	// Forecast geocodes the location and returns up to days of forecast.
	Forecast(ctx context.Context, location string, days int) (domain.WeatherReport, error)
}
