package services

import (
	"context"
	"errors"
	"time"

	"github.com/desertthunder/crossfade/internal/models"
	"github.com/desertthunder/crossfade/internal/shared"
	"golang.org/x/oauth2"
)

// ReasonForExchange classifies a failed code exchange. A rejected grant asks the user to start over.
func ReasonForExchange(err error) string {
	var re *oauth2.RetrieveError
	if errors.As(err, &re) && re.ErrorCode == "invalid_grant" {
		return shared.ReasonInvalidGrant
	}
	return shared.ReasonExchange
}

func exchangeError(platform, reason string, err error) error {
	return &shared.AuthError{Platform: platform, Reason: reason, Err: err}
}

// sessionError reports why session cannot be used for a user-scoped call, or nil.
func sessionError(platform string, session *models.AuthSession, now time.Time) error {
	switch {
	case session == nil || session.AccessToken == "":
		return &shared.AuthError{Platform: platform, Reason: shared.ReasonNoToken}
	case !session.Valid(now):
		return &shared.AuthError{Platform: platform, Reason: shared.ReasonExpired}
	}
	return nil
}

// ensureSession returns session unchanged while it is valid, and otherwise redeems its refresh token.
func ensureSession(ctx context.Context, platform string, cfg *oauth2.Config, session *models.AuthSession, now time.Time) (*models.AuthSession, error) {
	if session.Valid(now) {
		return session, nil
	}
	if !session.CanRefresh() {
		return nil, sessionError(platform, session, now)
	}

	// Drop the access token so the token source always hits the endpoint.
	stale := session.Token()
	stale.AccessToken = ""
	stale.Expiry = time.Time{}

	token, err := cfg.TokenSource(ctx, stale).Token()
	if err != nil {
		reason := shared.ReasonRefresh
		if ReasonForExchange(err) == shared.ReasonInvalidGrant {
			reason = shared.ReasonInvalidGrant
		}
		return nil, exchangeError(platform, reason, err)
	}

	refreshed := models.SessionFromToken(token)
	if refreshed.RefreshToken == "" {
		refreshed.RefreshToken = session.RefreshToken
	}
	return refreshed, nil
}
