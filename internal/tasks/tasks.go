package tasks

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/crossfade/internal/models"
	"github.com/desertthunder/crossfade/internal/monitoring"
	"github.com/desertthunder/crossfade/internal/parser"
	"github.com/desertthunder/crossfade/internal/services"
	"github.com/desertthunder/crossfade/internal/shared"
)

// Recorder persists the outcome of conversions.
//
// repositories.History implements it on top of the sqlite history.
type Recorder interface {
	Start(data *models.PlaylistData) (string, error)
	Finish(id string, result *models.ConversionResult, err error) error
}

// SessionHook is called with a destination session after a successful refresh, so callers can persist
// rotated tokens.
type SessionHook func(p models.Platform, s *models.AuthSession)

// Engine scans playlists on their source platform and converts them to the other platform.
type Engine struct {
	clients   map[models.Platform]services.Client
	recorder  Recorder
	logger    *log.Logger
	onSession SessionHook
}

// EngineOption configures an [Engine].
type EngineOption func(*Engine)

// WithRecorder stores every conversion through r.
func WithRecorder(r Recorder) EngineOption {
	return func(e *Engine) { e.recorder = r }
}

// WithLogger sets the engine logger; it is also handed to the converter.
func WithLogger(l *log.Logger) EngineOption {
	return func(e *Engine) { e.logger = l }
}

// WithSessionHook registers fn to receive refreshed destination sessions.
func WithSessionHook(fn SessionHook) EngineOption {
	return func(e *Engine) { e.onSession = fn }
}

// NewEngine creates an Engine over one client per platform. Later clients replace earlier ones
// for the same platform.
func NewEngine(clients []services.Client, opts ...EngineOption) *Engine {
	e := &Engine{
		clients: make(map[models.Platform]services.Client, len(clients)),
		logger:  shared.NewLogger(io.Discard),
	}
	for _, c := range clients {
		if c != nil {
			e.clients[c.Platform()] = c
		}
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Client returns the client for p.
func (e *Engine) Client(p models.Platform) (services.Client, error) {
	c, ok := e.clients[p]
	if !ok {
		return nil, fmt.Errorf("%w: %s client not initialized", shared.ErrServiceUnavailable, p.Name())
	}
	return c, nil
}

// WithSessions returns a copy of the engine whose clients carry the given user sessions.
// Platforms without an entry keep their current client.
func (e *Engine) WithSessions(sessions map[models.Platform]*models.AuthSession) *Engine {
	cp := *e
	cp.clients = make(map[models.Platform]services.Client, len(e.clients))
	for p, c := range e.clients {
		if s, ok := sessions[p]; ok && s != nil {
			c = c.WithSession(s)
		}
		cp.clients[p] = c
	}
	return &cp
}

// sendProgress sends a progress update through the channel without blocking.
// Uses select with default to ensure progress reporting never blocks execution.
func (e *Engine) sendProgress(progress chan<- ProgressUpdate, update ProgressUpdate) {
	if progress == nil {
		return
	}
	select {
	case progress <- update:
	default:
	}
}

// Parse recognizes raw as a playlist link.
func (e *Engine) Parse(raw string) (*parser.Parsed, error) {
	parsed, ok := parser.Parse(raw)
	if !ok {
		return nil, fmt.Errorf("%w: unrecognized playlist URL %q", shared.ErrInvalidInput, raw)
	}
	return parsed, nil
}

// Scan parses raw and fetches the playlist from its source platform.
func (e *Engine) Scan(ctx context.Context, raw string, progress chan<- ProgressUpdate) (*models.PlaylistData, error) {
	parsed, err := e.Parse(raw)
	if err != nil {
		return nil, err
	}
	e.sendProgress(progress, parseURLUpdate(parsed.Platform, parsed.PlaylistID))

	src, err := e.Client(parsed.Platform)
	if err != nil {
		return nil, err
	}

	e.sendProgress(progress, fetchingSourceUpdate(parsed.Platform))
	data, err := src.FetchPlaylist(ctx, parsed.PlaylistID)
	if err != nil {
		e.logger.Error("failed to fetch playlist", "platform", parsed.Platform, "id", parsed.PlaylistID, "error", err)
		return nil, err
	}
	if data.OriginalURL == "" {
		data.OriginalURL = parsed.OriginalURL
	}

	e.logger.Debug("fetched playlist", "platform", parsed.Platform, "title", data.Title, "tracks", len(data.Tracks))
	e.sendProgress(progress, foundPlaylistUpdate(data))
	return data, nil
}

// Convert creates a playlist on the other platform and fills it with matches for data's tracks.
//
// The destination session is refreshed before the first request; the conversion itself never
// refreshes. Only session, profile and playlist creation failures are returned as errors.
func (e *Engine) Convert(ctx context.Context, data *models.PlaylistData, progress chan<- ProgressUpdate) (*models.ConversionResult, error) {
	return e.convert(ctx, data, progress, nil)
}

func (e *Engine) convert(
	ctx context.Context,
	data *models.PlaylistData,
	progress chan<- ProgressUpdate,
	onTrack services.ProgressFunc,
) (*models.ConversionResult, error) {
	if data == nil || !data.SourcePlatform.Valid() {
		return nil, fmt.Errorf("%w: playlist has no source platform", shared.ErrInvalidInput)
	}

	destPlatform := data.SourcePlatform.Other()
	dest, err := e.Client(destPlatform)
	if err != nil {
		return nil, err
	}

	e.sendProgress(progress, refreshSessionUpdate(destPlatform))
	session, err := dest.Refresh(ctx)
	if err != nil {
		monitoring.RecordError("session")
		return nil, err
	}
	if session != nil && e.onSession != nil {
		e.onSession(destPlatform, session)
	}

	logger := e.logger.With("destination", destPlatform, "playlist", data.Title)
	recordID := e.recordStart(logger, data)

	total := len(data.Tracks)
	onProgress := func(current, total int, title string) {
		e.sendProgress(progress, searchTrackUpdate(current, total, title))
		if onTrack != nil {
			onTrack(current, total, title)
		}
	}
	onStage := func(s services.Stage) {
		e.sendProgress(progress, stageUpdate(s, destPlatform, total))
	}

	monitoring.RecordConversionStart()
	started := time.Now()

	result, err := dest.CreateAndPopulatePlaylist(ctx, data, onProgress,
		services.WithLogger(logger),
		services.WithStageHook(onStage),
	)

	status := string(models.StatusCompleted)
	if err != nil {
		status = string(models.StatusFailed)
		monitoring.RecordError("convert")
	}
	monitoring.RecordConversionDone(destPlatform.String(), status, time.Since(started))
	e.recordFinish(logger, recordID, result, err)

	if err != nil {
		logger.Error("conversion failed", "error", err)
		return nil, err
	}

	logger.Info("conversion finished", "added", result.AddedCount, "failed", len(result.FailedTracks), "url", result.DestinationPlaylistURL)
	e.sendProgress(progress, completedUpdate(result))
	return result, nil
}

func (e *Engine) recordStart(logger *log.Logger, data *models.PlaylistData) string {
	if e.recorder == nil {
		return ""
	}
	id, err := e.recorder.Start(data)
	if err != nil {
		logger.Warn("failed to record conversion", "error", err)
		return ""
	}
	return id
}

func (e *Engine) recordFinish(logger *log.Logger, id string, result *models.ConversionResult, err error) {
	if e.recorder == nil || id == "" {
		return
	}
	if rerr := e.recorder.Finish(id, result, err); rerr != nil {
		logger.Warn("failed to record conversion outcome", "id", id, "error", rerr)
	}
}

// ScanFlow runs [Engine.Scan] and moves f through Scanning to Ready or Failed.
func (e *Engine) ScanFlow(ctx context.Context, f *Flow, raw string, progress chan<- ProgressUpdate) error {
	if err := f.Scan(); err != nil {
		return err
	}
	data, err := e.Scan(ctx, raw, progress)
	if err != nil {
		return errors.Join(err, f.Fail(err))
	}
	return f.Scanned(data)
}

// ConvertFlow converts the playlist held by a Ready flow, reporting every track to f.
func (e *Engine) ConvertFlow(ctx context.Context, f *Flow, progress chan<- ProgressUpdate) error {
	if err := f.Convert(); err != nil {
		return err
	}
	data := f.Snapshot().Playlist

	result, err := e.convert(ctx, data, progress, func(current, total int, title string) {
		_ = f.Progress(current, total, title)
	})
	if err != nil {
		return errors.Join(err, f.Fail(err))
	}
	return f.Complete(result)
}
