// Package google provides calendar and task tool adapters backed by the
// Google Calendar and Google Tasks APIs. Both authenticate with the
// pre-provisioned refresh token from settings and share conservative
// client-side rate limits.
package google
