package shared

import (
	"errors"
	"fmt"
)

var (
	ErrNotImplemented = fmt.Errorf("not implemented")

	// Configuration errors
	ErrMissingConfig      = fmt.Errorf("configuration not found")
	ErrInvalidConfig      = fmt.Errorf("invalid configuration")
	ErrMissingCredentials = fmt.Errorf("missing credentials")
	ErrInvalidCredentials = fmt.Errorf("invalid credentials")

	// Authentication errors
	ErrAuthFailed       = fmt.Errorf("authentication failed")
	ErrNotAuthenticated = fmt.Errorf("not authenticated")
	ErrTokenExpired     = fmt.Errorf("access token expired")
	ErrRefreshFailed    = fmt.Errorf("token refresh failed")
	ErrNoRefreshToken   = fmt.Errorf("no refresh token available")
	ErrTimeout          = fmt.Errorf("operation timed out")

	// API and service errors
	ErrAPIRequest         = fmt.Errorf("API request failed")
	ErrServiceUnavailable = fmt.Errorf("service unavailable")
	ErrPlaylistNotFound   = fmt.Errorf("playlist not found")

	// Input validation errors
	ErrInvalidInput    = fmt.Errorf("invalid input")
	ErrMissingArgument = fmt.Errorf("missing required argument")
	ErrInvalidArgument = fmt.Errorf("invalid argument")
	ErrNotFound        = fmt.Errorf("record not found")
)

const (
	ReasonNoToken      = "no_token"
	ReasonExpired      = "token_expired"
	ReasonInvalidGrant = "invalid_grant"
	ReasonExchange     = "exchange_failed"
	ReasonRefresh      = "refresh_failed"
)

// InvalidGrantMessage is shown when an authorization code was rejected by the provider.
const InvalidGrantMessage = "Authorization code is invalid or has expired. Please try authenticating again."

// ConfigurationError reports a required credential that is absent.
// It is raised before any network call and is never retried.
type ConfigurationError struct {
	Platform string
	Field    string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("%s credentials not configured", e.Platform)
}

func (e *ConfigurationError) Is(target error) bool {
	return target == ErrMissingCredentials || target == ErrMissingConfig
}

// AuthError reports a missing session or a rejected token exchange.
type AuthError struct {
	Platform string
	Reason   string
	Err      error
}

func (e *AuthError) Error() string {
	switch e.Reason {
	case ReasonInvalidGrant:
		return InvalidGrantMessage
	case ReasonNoToken:
		return fmt.Sprintf("not authenticated with %s: please authenticate first", e.Platform)
	case ReasonExpired:
		return fmt.Sprintf("%s session expired: please authenticate again", e.Platform)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s authentication failed: %v", e.Platform, e.Err)
	}
	return fmt.Sprintf("%s authentication failed", e.Platform)
}

func (e *AuthError) Unwrap() error { return e.Err }

func (e *AuthError) Is(target error) bool {
	switch target {
	case ErrNotAuthenticated:
		return e.Reason == ReasonNoToken || e.Reason == ReasonExpired
	case ErrTokenExpired:
		return e.Reason == ReasonExpired
	}
	return target == ErrAuthFailed
}

// Reauthenticate reports whether the user must go through the consent flow again.
func (e *AuthError) Reauthenticate() bool {
	switch e.Reason {
	case ReasonInvalidGrant, ReasonNoToken, ReasonExpired, ReasonRefresh:
		return true
	}
	return false
}

// UpstreamError carries a non-success response from a platform API.
type UpstreamError struct {
	Platform string
	Op       string
	Status   int
	Message  string
	Err      error
}

func (e *UpstreamError) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if e.Status > 0 {
		return fmt.Sprintf("%s %s: status %d: %s", e.Platform, e.Op, e.Status, msg)
	}
	return fmt.Sprintf("%s %s: %s", e.Platform, e.Op, msg)
}

func (e *UpstreamError) Unwrap() error { return e.Err }

func (e *UpstreamError) Is(target error) bool {
	return target == ErrAPIRequest
}

// IsReauthenticate reports whether err (or anything it wraps) asks the user to sign in again.
func IsReauthenticate(err error) bool {
	var authErr *AuthError
	return errors.As(err, &authErr) && authErr.Reauthenticate()
}

// UpstreamStatus extracts the HTTP status of a wrapped [UpstreamError], or 0.
func UpstreamStatus(err error) int {
	var upstream *UpstreamError
	if errors.As(err, &upstream) {
		return upstream.Status
	}
	return 0
}
