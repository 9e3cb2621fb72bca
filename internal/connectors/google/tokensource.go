package google

import (
	"context"
	"fmt"

	"golang.org/x/oauth2"
	googleauth "golang.org/x/oauth2/google"

	"github.com/custodia-labs/valet-cli/internal/core/domain"
)

// Scopes requested for the calendar and task tools.
var Scopes = []string{
	"https://www.googleapis.com/auth/calendar.events",
	"https://www.googleapis.com/auth/tasks",
}

// NewTokenSource builds an oauth2.TokenSource from a pre-provisioned
// refresh token. The token is obtained out of band (Google OAuth
// playground or a one-time consent flow) and stored in settings; access
// tokens are minted and refreshed automatically from it.
func NewTokenSource(ctx context.Context, settings domain.GoogleSettings) (oauth2.TokenSource, error) {
	if !settings.IsConfigured() {
		return nil, fmt.Errorf("%w: google account is not connected", domain.ErrNotConfigured)
	}

	conf := &oauth2.Config{
		ClientID:     settings.ClientID,
		ClientSecret: settings.ClientSecret,
		Endpoint:     googleauth.Endpoint,
		Scopes:       Scopes,
	}
	token := &oauth2.Token{RefreshToken: settings.RefreshToken}
	return conf.TokenSource(ctx, token), nil
}
