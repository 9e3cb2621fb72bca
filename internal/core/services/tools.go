package services

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/custodia-labs/valet-cli/internal/core/domain"
	"github.com/custodia-labs/valet-cli/internal/core/ports/driven"
	"github.com/custodia-labs/valet-cli/internal/core/ports/driving"
)

// BuiltinToolDeps holds the collaborators behind the built-in tools.
// Nil services leave their tools unregistered, so the model never sees
// a tool that cannot run at all; credential problems within a wired
// tool still surface as structured results.
type BuiltinToolDeps struct {
	Calendar   driven.CalendarService
	Tasks      driven.TaskService
	Weather    driven.WeatherService
	Notes      driving.NoteService
	Credential CredentialCheck // guards calendar and task tools
}

// RegisterBuiltinTools wires the calendar, task, weather and note tools
// into the registry.
func RegisterBuiltinTools(r *ToolRegistry, deps BuiltinToolDeps) error {
	var entries []ToolEntry

	if deps.Calendar != nil {
		entries = append(entries, calendarTools(deps.Calendar, deps.Credential)...)
	}
	if deps.Tasks != nil {
		entries = append(entries, taskTools(deps.Tasks, deps.Credential)...)
	}
	if deps.Weather != nil {
		entries = append(entries, weatherTool(deps.Weather))
	}
	if deps.Notes != nil {
		entries = append(entries, noteTools(deps.Notes)...)
	}

	for _, entry := range entries {
		if err := r.Register(entry); err != nil {
			return err
		}
	}
	return nil
}

// calendarTools builds the list_events and create_event entries.
func calendarTools(svc driven.CalendarService, cred CredentialCheck) []ToolEntry {
	return []ToolEntry{
		{
			Definition: domain.ToolDefinition{
				Name:        "list_events",
				Description: "List upcoming events on the user's primary calendar.",
				Parameters: []domain.ToolParameter{
					{Name: "days", Type: "integer", Description: "How many days ahead to look (default 7)"},
					{Name: "max", Type: "integer", Description: "Maximum number of events to return (default 10)"},
				},
				RequiresAuth: true,
			},
			Credential: cred,
			Handler: func(ctx context.Context, args map[string]any) (any, error) {
				days := intArg(args, "days", 7)
				max := intArg(args, "max", 10)
				from := time.Now()
				return svc.ListEvents(ctx, from, from.AddDate(0, 0, days), max)
			},
		},
		{
			Definition: domain.ToolDefinition{
				Name:        "create_event",
				Description: "Create an event on the user's primary calendar.",
				Parameters: []domain.ToolParameter{
					{Name: "summary", Type: "string", Description: "Event title", Required: true},
					{Name: "start", Type: "string", Description: "Start time, RFC 3339 (e.g. 2026-08-28T15:00:00Z)", Required: true},
					{Name: "end", Type: "string", Description: "End time, RFC 3339; defaults to one hour after start"},
					{Name: "description", Type: "string", Description: "Optional event body"},
					{Name: "location", Type: "string", Description: "Optional event location"},
				},
				RequiresAuth: true,
			},
			Credential: cred,
			Handler: func(ctx context.Context, args map[string]any) (any, error) {
				start, err := timeArg(args, "start")
				if err != nil {
					return nil, err
				}
				end, err := timeArg(args, "end")
				if err != nil {
					return nil, err
				}
				if end.IsZero() {
					end = start.Add(time.Hour)
				}
				return svc.CreateEvent(ctx, domain.CalendarEvent{
					Summary:     stringArg(args, "summary"),
					Description: stringArg(args, "description"),
					Location:    stringArg(args, "location"),
					Start:       start,
					End:         end,
				})
			},
		},
	}
}

// taskTools builds the list_tasks, add_task, complete_task and
// delete_task entries.
func taskTools(svc driven.TaskService, cred CredentialCheck) []ToolEntry {
	return []ToolEntry{
		{
			Definition: domain.ToolDefinition{
				Name:        "list_tasks",
				Description: "List tasks on the user's default task list.",
				Parameters: []domain.ToolParameter{
					{Name: "include_completed", Type: "boolean", Description: "Include completed tasks (default false)"},
				},
				RequiresAuth: true,
			},
			Credential: cred,
			Handler: func(ctx context.Context, args map[string]any) (any, error) {
				return svc.ListTasks(ctx, boolArg(args, "include_completed"))
			},
		},
		{
			Definition: domain.ToolDefinition{
				Name:        "add_task",
				Description: "Add a task to the user's default task list.",
				Parameters: []domain.ToolParameter{
					{Name: "title", Type: "string", Description: "Task text", Required: true},
					{Name: "notes", Type: "string", Description: "Optional task detail"},
					{Name: "due", Type: "string", Description: "Optional due date, RFC 3339"},
				},
				RequiresAuth: true,
			},
			Credential: cred,
			Handler: func(ctx context.Context, args map[string]any) (any, error) {
				task := domain.Task{
					Title: stringArg(args, "title"),
					Notes: stringArg(args, "notes"),
				}
				due, err := timeArg(args, "due")
				if err != nil {
					return nil, err
				}
				if !due.IsZero() {
					task.Due = &due
				}
				return svc.AddTask(ctx, task)
			},
		},
		{
			Definition: domain.ToolDefinition{
				Name:        "complete_task",
				Description: "Mark a task as completed.",
				Parameters: []domain.ToolParameter{
					{Name: "taskId", Type: "string", Description: "ID of the task to complete", Required: true},
				},
				RequiresAuth: true,
			},
			Credential: cred,
			Handler: func(ctx context.Context, args map[string]any) (any, error) {
				id := stringArg(args, "taskId")
				if err := svc.CompleteTask(ctx, id); err != nil {
					return nil, err
				}
				return map[string]string{"completed": id}, nil
			},
		},
		{
			Definition: domain.ToolDefinition{
				Name:        "delete_task",
				Description: "Delete a task from the user's default task list.",
				Parameters: []domain.ToolParameter{
					{Name: "taskId", Type: "string", Description: "ID of the task to delete", Required: true},
				},
				RequiresAuth: true,
			},
			Credential: cred,
			Handler: func(ctx context.Context, args map[string]any) (any, error) {
				id := stringArg(args, "taskId")
				if err := svc.DeleteTask(ctx, id); err != nil {
					return nil, err
				}
				return map[string]string{"deleted": id}, nil
			},
		},
	}
}

// weatherTool builds the get_weather entry. No credential required.
func weatherTool(svc driven.WeatherService) ToolEntry {
	return ToolEntry{
		Definition: domain.ToolDefinition{
			Name:        "get_weather",
			Description: "Get the weather forecast for a location.",
			Parameters: []domain.ToolParameter{
				{Name: "location", Type: "string", Description: "Place name, e.g. \"Berlin\"", Required: true},
				{Name: "days", Type: "integer", Description: "Forecast days, 1-7 (default 3)"},
			},
		},
		Handler: func(ctx context.Context, args map[string]any) (any, error) {
			return svc.Forecast(ctx, stringArg(args, "location"), intArg(args, "days", 3))
		},
	}
}

// noteTools builds the save_note and search_notes entries. Notes are
// local data, so these dispatch to the note service rather than an HTTP
// collaborator; the registry contract is unchanged.
func noteTools(svc driving.NoteService) []ToolEntry {
	return []ToolEntry{
		{
			Definition: domain.ToolDefinition{
				Name:        "save_note",
				Description: "Save a note for the user. Saved notes are searchable in later conversations.",
				Parameters: []domain.ToolParameter{
					{Name: "text", Type: "string", Description: "Note content", Required: true},
					{Name: "title", Type: "string", Description: "Optional short title"},
				},
			},
			Handler: func(ctx context.Context, args map[string]any) (any, error) {
				note, err := svc.Add(ctx, stringArg(args, "title"), stringArg(args, "text"))
				if err != nil {
					return nil, err
				}
				return map[string]string{"id": note.ID, "title": note.DisplayTitle()}, nil
			},
		},
		{
			Definition: domain.ToolDefinition{
				Name:        "search_notes",
				Description: "Search the user's saved notes by meaning.",
				Parameters: []domain.ToolParameter{
					{Name: "query", Type: "string", Description: "What to look for", Required: true},
					{Name: "k", Type: "integer", Description: "Maximum results (default 5)"},
				},
			},
			Handler: func(ctx context.Context, args map[string]any) (any, error) {
				hits, err := svc.Search(ctx, stringArg(args, "query"), intArg(args, "k", 5))
				if err != nil {
					return nil, err
				}
				out := make([]map[string]any, 0, len(hits))
				for _, h := range hits {
					out = append(out, map[string]any{
						"title":      h.Source.Title,
						"text":       h.Chunk.Text,
						"similarity": h.Similarity,
					})
				}
				return out, nil
			},
		},
	}
}

// stringArg reads a string argument, empty when absent or mistyped.
func stringArg(args map[string]any, name string) string {
	s, _ := args[name].(string)
	return s
}

// boolArg reads a boolean argument, false when absent or mistyped.
func boolArg(args map[string]any, name string) bool {
	b, _ := args[name].(bool)
	return b
}

// intArg reads an integer argument. JSON numbers decode as float64.
func intArg(args map[string]any, name string, defaultVal int) int {
	switch v := args[name].(type) {
	case float64:
		if v != math.Trunc(v) {
			return defaultVal
		}
		return int(v)
	case int:
		return v
	default:
		return defaultVal
	}
}

// timeArg parses an RFC 3339 time argument. Absent is the zero time,
// not an error; malformed is an error the model can correct.
func timeArg(args map[string]any, name string) (time.Time, error) {
	s := stringArg(args, name)
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%s must be RFC 3339 (e.g. 2026-08-28T15:00:00Z): %w", name, err)
	}
	return t, nil
}
