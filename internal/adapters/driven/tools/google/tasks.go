package google

import (
	"context"
	"fmt"
	"time"

	"google.golang.org/api/tasks/v1"

	"github.com/custodia-labs/valet-cli/internal/connectors/google"
	"github.com/custodia-labs/valet-cli/internal/core/domain"
	"github.com/custodia-labs/valet-cli/internal/core/ports/driven"
)

// Ensure TasksAdapter implements the interface.
var _ driven.TaskService = (*TasksAdapter)(nil)

// defaultTaskList is the user's default task list.
const defaultTaskList = "@default"

// statusCompleted marks a task done in the Tasks API.
const statusCompleted = "completed"

// TasksAdapter serves the task tools from the Google Tasks API.
type TasksAdapter struct {
	svc     *tasks.Service
	limiter *google.RateLimiter
}

// NewTasksAdapter creates a tasks adapter from the stored Google
// credential.
func NewTasksAdapter(ctx context.Context, settings domain.GoogleSettings) (*TasksAdapter, error) {
	ts, err := google.NewTokenSource(ctx, settings)
	if err != nil {
		return nil, err
	}
	svc, err := google.NewTasksService(ctx, ts)
	if err != nil {
		return nil, fmt.Errorf("creating tasks client: %w", err)
	}
	return &TasksAdapter{
		svc:     svc,
		limiter: google.NewRateLimiter(google.ServiceTasks),
	}, nil
}

// ListTasks returns tasks on the default list.
func (a *TasksAdapter) ListTasks(ctx context.Context, includeCompleted bool) ([]domain.Task, error) {
	if err := a.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	call := a.svc.Tasks.List(defaultTaskList).Context(ctx)
	if includeCompleted {
		call = call.ShowCompleted(true).ShowHidden(true)
	}
	resp, err := call.Do()
	if err != nil {
		return nil, a.wrap("listing tasks", err)
	}

	items := make([]domain.Task, 0, len(resp.Items))
	for _, item := range resp.Items {
		items = append(items, fromAPITask(item))
	}
	return items, nil
}

// AddTask inserts a task on the default list.
func (a *TasksAdapter) AddTask(ctx context.Context, task domain.Task) (domain.Task, error) {
	if err := a.limiter.Wait(ctx); err != nil {
		return domain.Task{}, err
	}
	if task.Title == "" {
		return domain.Task{}, fmt.Errorf("%w: task title is empty", domain.ErrInvalidInput)
	}

	created, err := a.svc.Tasks.Insert(defaultTaskList, toAPITask(task)).Context(ctx).Do()
	if err != nil {
		return domain.Task{}, a.wrap("adding task", err)
	}
	return fromAPITask(created), nil
}

// CompleteTask marks the task done.
func (a *TasksAdapter) CompleteTask(ctx context.Context, taskID string) error {
	if err := a.limiter.Wait(ctx); err != nil {
		return err
	}

	task, err := a.svc.Tasks.Get(defaultTaskList, taskID).Context(ctx).Do()
	if err != nil {
		return a.wrap(fmt.Sprintf("loading task %s", taskID), err)
	}
	task.Status = statusCompleted

	if _, err := a.svc.Tasks.Update(defaultTaskList, taskID, task).Context(ctx).Do(); err != nil {
		return a.wrap(fmt.Sprintf("completing task %s", taskID), err)
	}
	return nil
}

// DeleteTask removes the task.
func (a *TasksAdapter) DeleteTask(ctx context.Context, taskID string) error {
	if err := a.limiter.Wait(ctx); err != nil {
		return err
	}
	if err := a.svc.Tasks.Delete(defaultTaskList, taskID).Context(ctx).Do(); err != nil {
		return a.wrap(fmt.Sprintf("deleting task %s", taskID), err)
	}
	return nil
}

// Ping validates the credential with a lightweight metadata request.
func (a *TasksAdapter) Ping(ctx context.Context) error {
	if err := a.limiter.Wait(ctx); err != nil {
		return err
	}
	if _, err := a.svc.Tasklists.List().MaxResults(1).Context(ctx).Do(); err != nil {
		return a.wrap("pinging tasks", err)
	}
	return nil
}

// wrap maps API failures to domain sentinels and records backoff on 429.
func (a *TasksAdapter) wrap(op string, err error) error {
	switch {
	case google.IsRateLimited(err):
		a.limiter.RecordRateLimitError(0)
		return fmt.Errorf("%s: %w", op, domain.ErrRateLimited)
	case google.IsUnauthorized(err):
		return fmt.Errorf("%s: %w", op, domain.ErrAuthRequired)
	case google.IsNotFound(err):
		return fmt.Errorf("%s: %w", op, domain.ErrNotFound)
	default:
		return fmt.Errorf("%s: %w", op, google.WrapError(err))
	}
}

// toAPITask converts a domain task to the Tasks API shape.
func toAPITask(task domain.Task) *tasks.Task {
	t := &tasks.Task{
		Title: task.Title,
		Notes: task.Notes,
	}
	if task.Due != nil {
		t.Due = task.Due.Format(time.RFC3339)
	}
	return t
}

// fromAPITask converts a Tasks API task.
func fromAPITask(item *tasks.Task) domain.Task {
	task := domain.Task{
		ID:    item.Id,
		Title: item.Title,
		Notes: item.Notes,
		Done:  item.Status == statusCompleted,
	}
	if item.Due != "" {
		if due, err := time.Parse(time.RFC3339, item.Due); err == nil {
			task.Due = &due
		}
	}
	return task
}
