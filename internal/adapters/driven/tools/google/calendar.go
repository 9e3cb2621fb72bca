package google

import (
	"context"
	"fmt"
	"time"

	"google.golang.org/api/calendar/v3"

	"github.com/custodia-labs/valet-cli/internal/connectors/google"
	"github.com/custodia-labs/valet-cli/internal/core/domain"
	"github.com/custodia-labs/valet-cli/internal/core/ports/driven"
)

// Ensure CalendarAdapter implements the interface.
var _ driven.CalendarService = (*CalendarAdapter)(nil)

// primaryCalendar is the user's default calendar.
const primaryCalendar = "primary"

// CalendarAdapter serves the list_events and create_event tools from the
// Google Calendar API.
type CalendarAdapter struct {
	svc     *calendar.Service
	limiter *google.RateLimiter
}

// NewCalendarAdapter creates a calendar adapter from the stored Google
// credential.
func NewCalendarAdapter(ctx context.Context, settings domain.GoogleSettings) (*CalendarAdapter, error) {
	ts, err := google.NewTokenSource(ctx, settings)
	if err != nil {
		return nil, err
	}
	svc, err := google.NewCalendarService(ctx, ts)
	if err != nil {
		return nil, fmt.Errorf("creating calendar client: %w", err)
	}
	return &CalendarAdapter{
		svc:     svc,
		limiter: google.NewRateLimiter(google.ServiceCalendar),
	}, nil
}

// ListEvents returns events in [from, to) on the primary calendar,
// soonest first.
func (a *CalendarAdapter) ListEvents(ctx context.Context, from, to time.Time, max int) ([]domain.CalendarEvent, error) {
	if err := a.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	if max <= 0 {
		max = 10
	}

	resp, err := a.svc.Events.List(primaryCalendar).
		TimeMin(from.Format(time.RFC3339)).
		TimeMax(to.Format(time.RFC3339)).
		SingleEvents(true).
		OrderBy("startTime").
		MaxResults(int64(max)).
		Context(ctx).
		Do()
	if err != nil {
		return nil, a.wrap("listing events", err)
	}

	events := make([]domain.CalendarEvent, 0, len(resp.Items))
	for _, item := range resp.Items {
		event, err := fromAPIEvent(item)
		if err != nil {
			// A malformed event should not hide the rest of the list.
			continue
		}
		events = append(events, event)
	}
	return events, nil
}

// CreateEvent inserts an event on the primary calendar.
func (a *CalendarAdapter) CreateEvent(ctx context.Context, event domain.CalendarEvent) (domain.CalendarEvent, error) {
	if err := a.limiter.Wait(ctx); err != nil {
		return domain.CalendarEvent{}, err
	}
	if event.Summary == "" {
		return domain.CalendarEvent{}, fmt.Errorf("%w: event summary is empty", domain.ErrInvalidInput)
	}
	if event.Start.IsZero() {
		return domain.CalendarEvent{}, fmt.Errorf("%w: event start is not set", domain.ErrInvalidInput)
	}
	if event.End.IsZero() {
		event.End = event.Start.Add(time.Hour)
	}

	created, err := a.svc.Events.Insert(primaryCalendar, toAPIEvent(event)).Context(ctx).Do()
	if err != nil {
		return domain.CalendarEvent{}, a.wrap("creating event", err)
	}
	return fromAPIEvent(created)
}

// Ping validates the credential with a lightweight metadata request.
func (a *CalendarAdapter) Ping(ctx context.Context) error {
	if err := a.limiter.Wait(ctx); err != nil {
		return err
	}
	if _, err := a.svc.Calendars.Get(primaryCalendar).Context(ctx).Do(); err != nil {
		return a.wrap("pinging calendar", err)
	}
	return nil
}

// wrap maps API failures to domain sentinels and records backoff on 429.
func (a *CalendarAdapter) wrap(op string, err error) error {
	if google.IsRateLimited(err) {
		a.limiter.RecordRateLimitError(0)
		return fmt.Errorf("%s: %w", op, domain.ErrRateLimited)
	}
	if google.IsUnauthorized(err) {
		return fmt.Errorf("%s: %w", op, domain.ErrAuthRequired)
	}
	return fmt.Errorf("%s: %w", op, google.WrapError(err))
}

// toAPIEvent converts a domain event to the Calendar API shape.
func toAPIEvent(event domain.CalendarEvent) *calendar.Event {
	return &calendar.Event{
		Summary:     event.Summary,
		Description: event.Description,
		Location:    event.Location,
		Start:       &calendar.EventDateTime{DateTime: event.Start.Format(time.RFC3339)},
		End:         &calendar.EventDateTime{DateTime: event.End.Format(time.RFC3339)},
	}
}

// fromAPIEvent converts a Calendar API event, handling both timed and
// all-day events.
func fromAPIEvent(item *calendar.Event) (domain.CalendarEvent, error) {
	start, err := parseEventTime(item.Start)
	if err != nil {
		return domain.CalendarEvent{}, fmt.Errorf("event %s start: %w", item.Id, err)
	}
	end, err := parseEventTime(item.End)
	if err != nil {
		return domain.CalendarEvent{}, fmt.Errorf("event %s end: %w", item.Id, err)
	}
	return domain.CalendarEvent{
		ID:          item.Id,
		Summary:     item.Summary,
		Description: item.Description,
		Location:    item.Location,
		Start:       start,
		End:         end,
	}, nil
}

// parseEventTime reads an EventDateTime: all-day events carry Date,
// timed events carry DateTime.
func parseEventTime(edt *calendar.EventDateTime) (time.Time, error) {
	if edt == nil {
		return time.Time{}, fmt.Errorf("missing time")
	}
	if edt.DateTime != "" {
		return time.Parse(time.RFC3339, edt.DateTime)
	}
	if edt.Date != "" {
		return time.Parse("2006-01-02", edt.Date)
	}
	return time.Time{}, fmt.Errorf("missing time")
}
