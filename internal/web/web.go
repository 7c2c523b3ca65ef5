// Package web serves the crossfade JSON API used by the browser front end.
//
// # Routes
//
//	GET  /api/{platform}/auth    → {authUrl}; the CSRF state goes into a short-lived sealed cookie
//	GET  /auth/callback          → validate state, exchange code, set session cookies, redirect to /
//	POST /api/{platform}/token   → exchange {code}, set session cookies
//	POST /api/{platform}/logout  → clear session cookies
//	GET  /api/session            → {spotify, youtube} authentication flags
//	POST /api/parse              → {platform, playlistId}
//	POST /api/playlist           → PlaylistData from the source platform
//	POST /api/convert            → start a conversion job, 202 {jobId}
//	GET  /api/jobs/{id}          → the job's [tasks.Snapshot]
//	GET  /api/jobs/{id}/events   → Server-Sent Events until the job is terminal
//	GET  /metrics, /healthz
//
// where {platform} is spotify or youtube.
//
// # Sessions
//
// Tokens never reach the browser in readable form. Each platform has an access cookie (1 day) and a
// refresh cookie (30 days), sealed with AES-GCM under a PBKDF2 key derived from server.cookie_secret.
// Requests run against copies of the platform clients carrying the caller's sessions.
//
// # Jobs
//
// Conversions run one goroutine per job, driving a [tasks.Flow]. Jobs live in an in-memory
// [Registry]; progress is pushed to event stream subscribers as the flow changes.
package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/crossfade/internal/models"
	"github.com/desertthunder/crossfade/internal/parser"
	"github.com/desertthunder/crossfade/internal/server"
	"github.com/desertthunder/crossfade/internal/shared"
	"github.com/desertthunder/crossfade/internal/tasks"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const maxBodyBytes = 1 << 20

// App holds the dependencies of the HTTP handlers.
type App struct {
	engine  *tasks.Engine
	cookies cookieJar
	jobs    *Registry
	logger  *log.Logger
	baseCtx context.Context
}

// Options configures [NewApp].
type Options struct {
	Engine        *tasks.Engine
	CookieSecret  string
	SecureCookies bool
	Logger        *log.Logger
	// Context bounds background jobs; cancel it on shutdown.
	Context context.Context
}

// NewApp validates opts and builds the application.
func NewApp(opts Options) (*App, error) {
	if opts.Engine == nil {
		return nil, fmt.Errorf("%w: engine is required", shared.ErrInvalidArgument)
	}
	sealer, err := NewSealer(opts.CookieSecret)
	if err != nil {
		return nil, &shared.ConfigurationError{Platform: "Server", Field: "cookie_secret"}
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(io.Discard)
	}
	if opts.Context == nil {
		opts.Context = context.Background()
	}

	return &App{
		engine:  opts.Engine,
		cookies: cookieJar{sealer: sealer, secure: opts.SecureCookies},
		jobs:    NewRegistry(),
		logger:  opts.Logger,
		baseCtx: opts.Context,
	}, nil
}

// Routes registers every endpoint on r.
func (a *App) Routes(r *server.BasicRouter) {
	// one route per platform: a {platform} wildcard would overlap /api/jobs/{id}
	for _, p := range models.Platforms {
		r.HandleFunc(http.MethodGet, "/api/"+p.String()+"/auth", a.handleAuthURL(p))
		r.HandleFunc(http.MethodPost, "/api/"+p.String()+"/token", a.handleToken(p))
		r.HandleFunc(http.MethodPost, "/api/"+p.String()+"/logout", a.handleLogout(p))
	}
	r.HandleFunc(http.MethodGet, "/auth/callback", a.handleCallback)
	r.HandleFunc(http.MethodGet, "/callback", a.handleCallback)
	r.HandleFunc(http.MethodGet, "/api/session", a.handleSession)
	r.HandleFunc(http.MethodPost, "/api/parse", a.handleParse)
	r.HandleFunc(http.MethodPost, "/api/playlist", a.handlePlaylist)
	r.HandleFunc(http.MethodPost, "/api/convert", a.handleConvert)
	r.HandleFunc(http.MethodGet, "/api/jobs/{id}", a.handleJob)
	r.HandleFunc(http.MethodGet, "/api/jobs/{id}/events", a.handleEvents)
	r.Handle(http.MethodGet, "/metrics", promhttp.Handler())
	r.HandleFunc(http.MethodGet, "/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		io.WriteString(w, "ok")
	})
	r.HandleFunc(http.MethodGet, "/{$}", a.handleIndex)
}

// Handler returns a router with the standard middleware and every route registered.
func (a *App) Handler() http.Handler {
	r := server.NewBasicRouter()
	r.Use(server.Recover(a.logger), server.Logging(a.logger), server.Metrics())
	a.Routes(r)
	return r
}

// Jobs exposes the job registry.
func (a *App) Jobs() *Registry { return a.jobs }

func (a *App) scoped(r *http.Request) *tasks.Engine {
	return a.engine.WithSessions(a.cookies.sessions(r))
}

type urlRequest struct {
	URL      string               `json:"url"`
	Code     string               `json:"code"`
	Playlist *models.PlaylistData `json:"playlist"`
}

func decode(r *http.Request) (urlRequest, error) {
	var body urlRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(&body); err != nil {
		return body, fmt.Errorf("%w: invalid JSON body", shared.ErrInvalidInput)
	}
	return body, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type errorBody struct {
	Error          string `json:"error"`
	Reauthenticate bool   `json:"reauthenticate,omitempty"`
	UpstreamStatus int    `json:"upstreamStatus,omitempty"`
}

// statusFor maps an error to the response status and body.
func statusFor(err error) (int, errorBody) {
	body := errorBody{Error: err.Error()}

	var (
		cfgErr      *shared.ConfigurationError
		authErr     *shared.AuthError
		upstreamErr *shared.UpstreamError
	)
	switch {
	case errors.As(err, &cfgErr):
		return http.StatusInternalServerError, errorBody{Error: cfgErr.Error()}
	case errors.As(err, &authErr):
		body.Reauthenticate = authErr.Reauthenticate()
		if authErr.Reason == shared.ReasonInvalidGrant {
			return http.StatusBadRequest, body
		}
		return http.StatusUnauthorized, body
	case errors.As(err, &upstreamErr):
		body.UpstreamStatus = upstreamErr.Status
		return http.StatusBadGateway, body
	case errors.Is(err, shared.ErrInvalidInput), errors.Is(err, shared.ErrInvalidArgument),
		errors.Is(err, shared.ErrMissingArgument):
		return http.StatusBadRequest, body
	case errors.Is(err, shared.ErrNotFound):
		return http.StatusNotFound, body
	case errors.Is(err, shared.ErrServiceUnavailable):
		return http.StatusServiceUnavailable, body
	}
	return http.StatusInternalServerError, body
}

func (a *App) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, body := statusFor(err)
	if status >= http.StatusInternalServerError {
		a.logger.Error("request failed", "path", r.URL.Path, "status", status, "error", err)
	} else {
		a.logger.Warn("request rejected", "path", r.URL.Path, "status", status, "error", err)
	}
	writeJSON(w, status, body)
}

func (a *App) handleIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	io.WriteString(w, indexHTML)
}

const indexHTML = `<!DOCTYPE html>
<html>
<head><title>crossfade</title></head>
<body>
  <h1>crossfade</h1>
  <p>Convert playlists between Spotify and YouTube Music.</p>
  <ul>
    <li><a href="/api/session">Session status</a></li>
    <li><a href="/healthz">Health</a></li>
  </ul>
</body>
</html>
`

func (a *App) handleParse(w http.ResponseWriter, r *http.Request) {
	body, err := decode(r)
	if err != nil {
		a.writeError(w, r, err)
		return
	}

	parsed, ok := parser.Parse(body.URL)
	if !ok {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "Unrecognized playlist URL"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"platform":   parsed.Platform.String(),
		"playlistId": parsed.PlaylistID,
	})
}

func (a *App) handlePlaylist(w http.ResponseWriter, r *http.Request) {
	body, err := decode(r)
	if err != nil {
		a.writeError(w, r, err)
		return
	}

	data, err := a.scoped(r).Scan(r.Context(), body.URL, nil)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, data)
}
