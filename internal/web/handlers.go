package web

import (
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/desertthunder/crossfade/internal/models"
	"github.com/desertthunder/crossfade/internal/parser"
	"github.com/desertthunder/crossfade/internal/shared"
	"github.com/desertthunder/crossfade/internal/tasks"
)

const keepAlive = 15 * time.Second

func (a *App) handleAuthURL(p models.Platform) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		client, err := a.engine.Client(p)
		if err != nil {
			a.writeError(w, r, err)
			return
		}

		state, err := shared.GenerateState()
		if err != nil {
			a.writeError(w, r, err)
			return
		}
		authURL, err := client.AuthURL(state)
		if err != nil {
			a.writeError(w, r, err)
			return
		}
		if err := a.cookies.setState(w, p, state); err != nil {
			a.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"authUrl": authURL})
	}
}

// handleCallback completes the redirect leg of the authorization code flow.
func (a *App) handleCallback(w http.ResponseWriter, r *http.Request) {
	p, want, ok := a.cookies.state(r)
	if !ok {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "Missing or expired authorization state"})
		return
	}
	a.cookies.clear(w, stateCookie)

	q := r.URL.Query()
	if subtle.ConstantTimeCompare([]byte(q.Get("state")), []byte(want)) != 1 {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "Invalid state parameter"})
		return
	}
	if e := q.Get("error"); e != "" {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: fmt.Sprintf("Authorization failed: %s", e)})
		return
	}

	if err := a.exchange(w, r, p, q.Get("code")); err != nil {
		a.writeError(w, r, err)
		return
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (a *App) handleToken(p models.Platform) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, err := decode(r)
		if err != nil {
			a.writeError(w, r, err)
			return
		}
		if err := a.exchange(w, r, p, body.Code); err != nil {
			a.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]bool{"success": true})
	}
}

// exchange trades code for a session on a fresh client copy and stores it in cookies.
func (a *App) exchange(w http.ResponseWriter, r *http.Request, p models.Platform, code string) error {
	if code == "" {
		return fmt.Errorf("%w: code", shared.ErrMissingArgument)
	}
	client, err := a.engine.Client(p)
	if err != nil {
		return err
	}

	session, err := client.WithSession(nil).ExchangeCode(r.Context(), code)
	if err != nil {
		return err
	}
	if err := a.cookies.setSession(w, p, session); err != nil {
		return err
	}
	a.logger.Info("signed in", "platform", p)
	return nil
}

func (a *App) handleLogout(p models.Platform) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		a.cookies.clearSession(w, p)
		writeJSON(w, http.StatusOK, map[string]bool{"success": true})
	}
}

func (a *App) handleSession(w http.ResponseWriter, r *http.Request) {
	sessions := a.cookies.sessions(r)
	now := time.Now()

	status := make(map[string]bool, len(models.Platforms))
	for _, p := range models.Platforms {
		s := sessions[p]
		status[p.String()] = s.Valid(now) || s.CanRefresh()
	}
	writeJSON(w, http.StatusOK, status)
}

// handleConvert validates the request, then runs the conversion as a background job.
func (a *App) handleConvert(w http.ResponseWriter, r *http.Request) {
	body, err := decode(r)
	if err != nil {
		a.writeError(w, r, err)
		return
	}

	var source models.Platform
	switch {
	case body.Playlist != nil:
		if !body.Playlist.SourcePlatform.Valid() {
			a.writeError(w, r, fmt.Errorf("%w: playlist has no source platform", shared.ErrInvalidInput))
			return
		}
		source = body.Playlist.SourcePlatform
	default:
		parsed, ok := parser.Parse(body.URL)
		if !ok {
			writeJSON(w, http.StatusBadRequest, errorBody{Error: "Unrecognized playlist URL"})
			return
		}
		source = parsed.Platform
	}

	dest := source.Other()
	sessions := a.cookies.sessions(r)
	if s := sessions[dest]; !s.Valid(time.Now()) && !s.CanRefresh() {
		a.writeError(w, r, &shared.AuthError{Platform: dest.Name(), Reason: shared.ReasonNoToken})
		return
	}

	if err := a.refreshExpired(w, r, dest, sessions); err != nil {
		a.writeError(w, r, err)
		return
	}

	job := a.jobs.New()
	go a.run(job, a.engine.WithSessions(sessions), body)

	a.logger.Info("conversion job started", "job", job.ID, "source", source, "destination", dest)
	writeJSON(w, http.StatusAccepted, map[string]string{"jobId": job.ID})
}

// refreshExpired renews expired sessions and writes them back to cookies, since a background job
// has no response to set them on. Only a failure for the required platform is returned.
func (a *App) refreshExpired(w http.ResponseWriter, r *http.Request, required models.Platform, sessions map[models.Platform]*models.AuthSession) error {
	now := time.Now()
	for _, p := range models.Platforms {
		s, ok := sessions[p]
		if !ok || s.Valid(now) || !s.CanRefresh() {
			continue
		}

		refreshed, err := a.refresh(r, p, s)
		if err != nil {
			if p == required {
				return err
			}
			a.logger.Warn("session refresh failed", "platform", p, "error", err)
			continue
		}
		if err := a.cookies.setSession(w, p, refreshed); err != nil {
			return err
		}
		sessions[p] = refreshed
		a.logger.Info("session refreshed", "platform", p)
	}
	return nil
}

func (a *App) refresh(r *http.Request, p models.Platform, s *models.AuthSession) (*models.AuthSession, error) {
	client, err := a.engine.Client(p)
	if err != nil {
		return nil, err
	}
	return client.WithSession(s).Refresh(r.Context())
}

func (a *App) run(job *Job, engine *tasks.Engine, body urlRequest) {
	logger := a.logger.With("job", job.ID)
	progress := make(chan tasks.ProgressUpdate, 64)
	done := make(chan struct{})
	go func() {
		job.follow(progress)
		close(done)
	}()
	defer func() {
		close(progress)
		<-done
		job.notify("")
	}()

	ctx := a.baseCtx
	if body.Playlist != nil {
		if err := job.Flow.Scan(); err != nil {
			logger.Error("job could not start", "error", err)
			return
		}
		if err := job.Flow.Scanned(body.Playlist); err != nil {
			logger.Error("job could not start", "error", err)
			return
		}
	} else if err := engine.ScanFlow(ctx, job.Flow, body.URL, progress); err != nil {
		logger.Warn("job scan failed", "error", err)
		return
	}

	if err := engine.ConvertFlow(ctx, job.Flow, progress); err != nil {
		logger.Warn("job conversion failed", "error", err)
		return
	}
	logger.Info("job finished")
}

// jobView is the JSON shape of a job.
type jobView struct {
	ID      string `json:"id"`
	Message string `json:"message,omitempty"`
	tasks.Snapshot
}

func viewOf(job *Job) jobView {
	return jobView{ID: job.ID, Message: job.Message(), Snapshot: job.Flow.Snapshot()}
}

func (a *App) lookup(w http.ResponseWriter, r *http.Request) (*Job, bool) {
	job, ok := a.jobs.Get(r.PathValue("id"))
	if !ok {
		writeJSON(w, http.StatusNotFound, errorBody{Error: "Job not found"})
	}
	return job, ok
}

func (a *App) handleJob(w http.ResponseWriter, r *http.Request) {
	if job, ok := a.lookup(w, r); ok {
		writeJSON(w, http.StatusOK, viewOf(job))
	}
}

// handleEvents streams the job as Server-Sent Events: one "progress" event per change and a final
// "done" event once the flow is terminal.
func (a *App) handleEvents(w http.ResponseWriter, r *http.Request) {
	job, ok := a.lookup(w, r)
	if !ok {
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		a.writeError(w, r, fmt.Errorf("%w: streaming unsupported", shared.ErrServiceUnavailable))
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	ticker := time.NewTicker(keepAlive)
	defer ticker.Stop()

	for {
		changed := job.Changed()
		view := viewOf(job)
		// tracks are only sent once, in the final event
		full := view.Playlist
		view.Playlist = nil

		if err := writeEvent(w, "progress", view); err != nil {
			return
		}
		if view.State.Terminal() {
			view.Playlist = full
			_ = writeEvent(w, "done", view)
			flusher.Flush()
			return
		}
		flusher.Flush()

		select {
		case <-changed:
		case <-ticker.C:
			if _, err := fmt.Fprint(w, ": keepalive\n\n"); err != nil {
				return
			}
			flusher.Flush()
		case <-r.Context().Done():
			return
		}
	}
}

func writeEvent(w http.ResponseWriter, event string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data)
	return err
}
