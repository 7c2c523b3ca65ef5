package server

import (
	"context"
	"crypto/subtle"
	"fmt"
	"html"
	"net/http"
	"sync"

	"github.com/desertthunder/crossfade/internal/models"
	"github.com/desertthunder/crossfade/internal/shared"
)

// Exchanger trades an authorization code for a session. Both platform clients implement it.
type Exchanger interface {
	Name() string
	ExchangeCode(ctx context.Context, code string) (*models.AuthSession, error)
}

// OAuthResult contains the result of an OAuth authorization flow.
type OAuthResult struct {
	Session *models.AuthSession
	err     error
}

func (o *OAuthResult) Error() error {
	return o.err
}

// OAuthHandler handles OAuth2 callback requests for authorization code flow.
// Implements the Handler interface for registration with a Router.
type OAuthHandler struct {
	client      Exchanger
	state       string
	resultChan  chan OAuthResult
	once        sync.Once
	callbackHit bool
	mu          sync.Mutex
}

// NewOAuthHandler creates a new OAuth handler that exchanges codes through client.
// The state token should be cryptographically random for CSRF protection.
func NewOAuthHandler(client Exchanger, state string) *OAuthHandler {
	return &OAuthHandler{
		client:     client,
		state:      state,
		resultChan: make(chan OAuthResult, 1),
	}
}

// Routes returns the HTTP routes this handler serves.
func (h *OAuthHandler) Routes() []string {
	return []string{"/callback", "/auth/callback"}
}

// ServeHTTP handles the OAuth callback request.
//
// Validates the state parameter, exchanges the code through the client, and delivers the outcome on
// [OAuthHandler.Result]. Only the first callback is processed.
func (h *OAuthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	if h.callbackHit {
		h.mu.Unlock()
		http.Error(w, "Callback already processed", http.StatusBadRequest)
		return
	}
	h.callbackHit = true
	h.mu.Unlock()

	query := r.URL.Query()
	if subtle.ConstantTimeCompare([]byte(query.Get("state")), []byte(h.state)) != 1 {
		h.fail(w, fmt.Errorf("%w: invalid state parameter", shared.ErrAuthFailed), "Invalid state parameter")
		return
	}

	code := query.Get("code")
	if code == "" {
		err := fmt.Errorf("%w: %s: %s", shared.ErrAuthFailed, query.Get("error"), query.Get("error_description"))
		h.fail(w, err, "Authorization was denied")
		return
	}

	session, err := h.client.ExchangeCode(r.Context(), code)
	if err != nil {
		h.fail(w, err, err.Error())
		return
	}

	h.Send(OAuthResult{Session: session})
	renderPage(w, http.StatusOK, h.client.Name()+" authorization successful",
		"You can close this window and return to the terminal.")
}

func (h *OAuthHandler) fail(w http.ResponseWriter, err error, message string) {
	h.Send(OAuthResult{err: err})
	renderPage(w, http.StatusBadRequest, h.client.Name()+" authorization failed", message)
}

const pageTemplate = `<!DOCTYPE html>
<html>
<head>
    <title>%[1]s</title>
    <style>
        body { font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", Roboto, sans-serif;
               display: flex; align-items: center; justify-content: center; height: 100vh; margin: 0; }
        main { text-align: center; padding: 2rem; }
        h1 { color: %[3]s; }
    </style>
</head>
<body><main><h1>%[1]s</h1><p>%[2]s</p></main></body>
</html>
`

func renderPage(w http.ResponseWriter, status int, title, message string) {
	color := "#1DB954"
	if status != http.StatusOK {
		color = "#FF4F4F"
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	fmt.Fprintf(w, pageTemplate, html.EscapeString(title), html.EscapeString(message), color)
}

// Send sends the OAuth result through the channel (only once).
func (h *OAuthHandler) Send(result OAuthResult) {
	h.once.Do(func() {
		h.resultChan <- result
		close(h.resultChan)
	})
}

// Result returns the result channel for receiving OAuth flow completion.
//
// Channel will receive exactly one result and then be closed.
func (h *OAuthHandler) Result() <-chan OAuthResult {
	return h.resultChan
}
