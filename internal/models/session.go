package models

import (
	"time"

	"golang.org/x/oauth2"
)

// AuthSession is an access token held by a platform client.
//
// A zero Expiry means the provider gave no lifetime and the token is treated as valid until rejected.
type AuthSession struct {
	AccessToken  string    `json:"accessToken"`
	RefreshToken string    `json:"refreshToken,omitempty"`
	Expiry       time.Time `json:"expiry,omitempty"`
}

// Valid reports whether the access token may be used at now.
func (s *AuthSession) Valid(now time.Time) bool {
	if s == nil || s.AccessToken == "" {
		return false
	}
	return s.Expiry.IsZero() || now.Before(s.Expiry)
}

// CanRefresh reports whether a refresh token is available.
func (s *AuthSession) CanRefresh() bool {
	return s != nil && s.RefreshToken != ""
}

// Token converts the session for use with an [oauth2.TokenSource].
func (s *AuthSession) Token() *oauth2.Token {
	if s == nil {
		return nil
	}
	return &oauth2.Token{
		AccessToken:  s.AccessToken,
		RefreshToken: s.RefreshToken,
		Expiry:       s.Expiry,
		TokenType:    "Bearer",
	}
}

// SessionFromToken converts an issued token into a session.
func SessionFromToken(t *oauth2.Token) *AuthSession {
	if t == nil {
		return nil
	}
	return &AuthSession{AccessToken: t.AccessToken, RefreshToken: t.RefreshToken, Expiry: t.Expiry}
}
