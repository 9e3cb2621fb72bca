// Package google provides shared infrastructure for the Google-backed
// tool adapters.
//
// This package contains common utilities used by the calendar and tasks
// adapters including:
//   - Token source construction from a pre-provisioned refresh token
//   - Service factories for creating Google API clients
//   - Error handling for common Google API errors (401, 403, 404, 429)
//   - Rate limiting to respect Google API quotas
//
// # Usage
//
// Each Google adapter uses this package to create authenticated API
// clients:
//
//	ts, err := google.NewTokenSource(ctx, settings.Google)
//	svc, err := google.NewCalendarService(ctx, ts)
//
// # OAuth2 Scopes
//
// The adapters use these scopes:
//   - https://www.googleapis.com/auth/calendar.events (sensitive)
//   - https://www.googleapis.com/auth/tasks (sensitive)
//
// The refresh token is obtained out of band and stored in settings; no
// OAuth flow runs inside the application.
package google
