package services

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/crossfade/internal/models"
	"github.com/desertthunder/crossfade/internal/monitoring"
	"github.com/desertthunder/crossfade/internal/shared"
	"github.com/xrash/smetrics"
	"golang.org/x/time/rate"
)

// ProgressFunc is called after every source track with a 1-based index.
type ProgressFunc func(current, total int, title string)

// Stage is the state of a single conversion.
type Stage int

const (
	StageCreated Stage = iota
	StagePopulatingTracks
	StageAddingBatches
	StageCompleted
)

func (s Stage) String() string {
	switch s {
	case StageCreated:
		return "created"
	case StagePopulatingTracks:
		return "populating_tracks"
	case StageAddingBatches:
		return "adding_batches"
	case StageCompleted:
		return "completed"
	default:
		return ""
	}
}

type populateOpts struct {
	logger  *log.Logger
	onStage func(Stage)
}

// Option configures [Populate].
type Option func(*populateOpts)

// WithLogger sets the logger used for per-track debug output and batch warnings.
func WithLogger(l *log.Logger) Option {
	return func(o *populateOpts) { o.logger = l }
}

// WithStageHook is called on every stage transition.
func WithStageHook(fn func(Stage)) Option {
	return func(o *populateOpts) { o.onStage = fn }
}

// Populate creates a private playlist on dest named after data and fills it with the best search
// match for every source track.
//
// Only profile resolution, playlist creation and cancellation of ctx are fatal. A track whose scoped and
// relaxed searches both come back empty (or fail) is reported as "title by artist" in FailedTracks.
// Matches are added in batches of dest.Limits().BatchSize; when a batch is rejected its tracks are moved
// to FailedTracks without a retry, and later batches still run. Once ctx is done no further request is
// sent and the error is returned.
func Populate(ctx context.Context, dest Destination, data *models.PlaylistData, onProgress ProgressFunc, opts ...Option) (*models.ConversionResult, error) {
	o := populateOpts{logger: shared.NewLogger(io.Discard), onStage: func(Stage) {}}
	for _, opt := range opts {
		opt(&o)
	}
	if onProgress == nil {
		onProgress = func(int, int, string) {}
	}

	limits := dest.Limits()
	platform := dest.Platform().String()
	logger := o.logger.With("destination", platform, "playlist", data.Title)

	userID, err := dest.Profile(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %s user: %w", dest.Name(), err)
	}

	name := fmt.Sprintf("%s (from %s)", data.Title, data.SourcePlatform.Name())
	description := shared.BuildDescription(
		data.Description, limits.DescriptionSeparator, data.SourcePlatform.Name(), data.OriginalURL, limits.MaxDescription,
	)

	playlistID, err := dest.CreatePlaylist(ctx, userID, name, description)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s playlist: %w", dest.Name(), err)
	}
	o.onStage(StageCreated)
	logger.Info("created playlist", "id", playlistID, "tracks", len(data.Tracks))

	result := &models.ConversionResult{
		DestinationPlaylistID:  playlistID,
		DestinationPlaylistURL: dest.PlaylistURL(playlistID),
		FailedTracks:           []string{},
		Matches:                make([]models.TrackMatch, len(data.Tracks)),
	}

	o.onStage(StagePopulatingTracks)
	search := pacer(limits.SearchDelay)
	total := len(data.Tracks)
	var matched []int

	for i, track := range data.Tracks {
		match := models.TrackMatch{Track: track}

		hit, tier, err := findTrack(ctx, dest, search, track, limits.ScopedSearch, logger)
		if err != nil {
			logger.Warn("conversion interrupted", "searched", i, "tracks", total, "error", err)
			return nil, fmt.Errorf("conversion interrupted after %d of %d tracks: %w", i, total, err)
		}
		if hit != nil {
			match.DestinationID = hit.ID
			match.Tier = tier
			match.Score = similarity(track, hit)
			matched = append(matched, i)
			monitoring.RecordTrack(platform, string(tier))
			monitoring.RecordMatchScore(platform, match.Score)
			logger.Debug("matched track", "title", track.Title, "artist", track.Artist, "id", hit.ID, "tier", tier, "score", fmt.Sprintf("%.2f", match.Score))
		} else {
			monitoring.RecordTrack(platform, "missed")
			logger.Debug("no match", "title", track.Title, "artist", track.Artist)
		}

		result.Matches[i] = match
		onProgress(i+1, total, track.Title)
	}

	o.onStage(StageAddingBatches)
	if err := addBatches(ctx, dest, playlistID, result.Matches, matched, limits, logger); err != nil {
		logger.Warn("conversion interrupted while adding tracks", "error", err)
		return nil, fmt.Errorf("conversion interrupted while adding tracks: %w", err)
	}

	for _, m := range result.Matches {
		if m.Added {
			result.AddedCount++
		} else {
			result.FailedTracks = append(result.FailedTracks, m.Track.Label())
		}
	}

	o.onStage(StageCompleted)
	logger.Info("conversion finished", "added", result.AddedCount, "failed", len(result.FailedTracks))
	return result, nil
}

// findTrack runs the scoped query and, when it yields nothing, the relaxed one.
// An identical relaxed query is not sent twice. The error is non-nil only when ctx ends a wait.
func findTrack(ctx context.Context, dest Destination, lim *rate.Limiter, track models.Track, scoped bool, logger *log.Logger) (*Hit, models.QueryTier, error) {
	relaxed := RelaxedQuery(track)
	primary, tier := relaxed, models.TierRelaxed
	if scoped {
		primary, tier = ScopedQuery(track), models.TierScoped
	}

	hit, err := searchOnce(ctx, dest, lim, primary, logger)
	if err != nil || hit != nil {
		return hit, tier, err
	}
	if primary == relaxed {
		return nil, models.TierNone, nil
	}
	hit, err = searchOnce(ctx, dest, lim, relaxed, logger)
	if err != nil || hit != nil {
		return hit, models.TierRelaxed, err
	}
	return nil, models.TierNone, nil
}

// searchOnce waits for the pacer and sends one query. Search failures are misses.
func searchOnce(ctx context.Context, dest Destination, lim *rate.Limiter, query string, logger *log.Logger) (*Hit, error) {
	if err := wait(ctx, lim); err != nil {
		return nil, err
	}

	hit, err := dest.SearchTrack(ctx, query)
	if err != nil {
		logger.Debug("search failed", "query", query, "error", err)
		monitoring.RecordError("search")
		return nil, nil
	}
	return hit, nil
}

// addBatches submits matched tracks in source order. Tracks of a rejected batch stay un-added.
func addBatches(ctx context.Context, dest Destination, playlistID string, matches []models.TrackMatch, matched []int, limits Limits, logger *log.Logger) error {
	size := limits.BatchSize
	if size <= 0 {
		size = 1
	}
	lim := pacer(limits.BatchDelay)
	platform := dest.Platform().String()

	for start := 0; start < len(matched); start += size {
		end := min(start+size, len(matched))
		batch := matched[start:end]

		ids := make([]string, len(batch))
		for i, idx := range batch {
			ids[i] = matches[idx].DestinationID
		}

		if err := wait(ctx, lim); err != nil {
			return err
		}
		if err := dest.AddTracks(ctx, playlistID, ids); err != nil {
			logger.Warn("failed to add batch", "offset", start, "size", len(ids), "error", err)
			monitoring.RecordError("batch_add")
			for range batch {
				monitoring.RecordTrack(platform, "batch_failed")
			}
			continue
		}

		for _, idx := range batch {
			matches[idx].Added = true
		}
	}
	return nil
}

// wait blocks for the pacer, failing as soon as ctx is done.
func wait(ctx context.Context, lim *rate.Limiter) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return lim.Wait(ctx)
}

// ScopedQuery builds a field-scoped search query.
func ScopedQuery(t models.Track) string {
	return fmt.Sprintf(`track:"%s" artist:"%s"`, t.Title, t.Artist)
}

// RelaxedQuery builds a free-text search query.
func RelaxedQuery(t models.Track) string {
	return fmt.Sprintf("%s %s", t.Title, t.Artist)
}

// similarity scores how close a hit is to the source track, from 0 to 1.
func similarity(t models.Track, hit *Hit) float64 {
	if hit.Title == "" && hit.Artist == "" {
		return 0
	}
	return smetrics.JaroWinkler(
		shared.NormalizeTrackKey(t.Title, t.Artist),
		shared.NormalizeTrackKey(hit.Title, hit.Artist),
		0.7, 4,
	)
}

// pacer allows one call immediately and then one per interval. A non-positive interval disables pacing.
func pacer(interval time.Duration) *rate.Limiter {
	if interval <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Every(interval), 1)
}
