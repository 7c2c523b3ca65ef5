package tasks

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/desertthunder/crossfade/internal/formatter"
	"github.com/desertthunder/crossfade/internal/models"
	"github.com/desertthunder/crossfade/internal/parser"
	"golang.org/x/time/rate"
)

// BulkExportOpts contains configuration for bulk playlist exports.
type BulkExportOpts struct {
	Format     formatter.Format // Export format: json, csv, markdown, text
	OutputDir  string           // Base output directory (default: crossfade_export_{epoch})
	NumWorkers int              // Concurrent workers (default: 5)
	RateLimit  float64          // Playlist fetches per second (default: 5)
}

// PlaylistExportResult is the outcome of exporting one playlist.
type PlaylistExportResult struct {
	URL          string
	PlaylistName string
	Platform     models.Platform
	Tracks       int
	Files        []string
	Error        error
}

// Success reports whether the playlist was written.
func (r PlaylistExportResult) Success() bool { return r.Error == nil }

// BulkExportResult summarizes a bulk export.
type BulkExportResult struct {
	TotalPlaylists    int
	SuccessfulExports int
	FailedExports     int
	OutputDirectory   string
	ManifestPath      string
	Results           []PlaylistExportResult
}

type exportJob struct {
	url  string
	data *models.PlaylistData
}

// BulkExport fetches and exports multiple playlists concurrently with rate limiting and progress tracking.
//
// Fetches run one at a time through a rate limiter; writing files is spread over a worker pool. A
// playlist that cannot be fetched or written is reported in the result and the manifest, and does not
// stop the others.
func (e *Engine) BulkExport(ctx context.Context, prog chan<- ProgressUpdate, urls []string, opts BulkExportOpts) (*BulkExportResult, error) {
	if opts.Format == "" {
		opts.Format = formatter.FormatJSON
	}
	if opts.OutputDir == "" {
		opts.OutputDir = fmt.Sprintf("crossfade_export_%d", time.Now().Unix())
	}
	if opts.NumWorkers <= 0 {
		opts.NumWorkers = 5
	}
	if opts.NumWorkers > 10 {
		opts.NumWorkers = 10
	}
	if opts.RateLimit <= 0 {
		opts.RateLimit = 5.0
	}

	if err := os.MkdirAll(opts.OutputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	result := &BulkExportResult{
		TotalPlaylists:  len(urls),
		OutputDirectory: opts.OutputDir,
		Results:         make([]PlaylistExportResult, 0, len(urls)),
	}

	limiter := rate.NewLimiter(rate.Limit(opts.RateLimit), 1)

	jobs := make(chan exportJob, len(urls))
	results := make(chan PlaylistExportResult, len(urls))

	var wg sync.WaitGroup
	for i := 0; i < opts.NumWorkers; i++ {
		wg.Add(1)
		go e.exportWorker(ctx, &wg, jobs, results, opts)
	}

	go func() {
		defer close(jobs)
		for i, url := range urls {
			if err := limiter.Wait(ctx); err != nil {
				results <- PlaylistExportResult{URL: url, PlaylistName: url, Error: err}
				continue
			}

			data, err := e.Scan(ctx, url, nil)
			if err != nil {
				results <- PlaylistExportResult{
					URL:          url,
					PlaylistName: url,
					Error:        fmt.Errorf("failed to fetch playlist: %w", err),
				}
				continue
			}

			e.sendProgress(prog, exportingPlaylistUpdate(i+1, len(urls), data.Title))
			jobs <- exportJob{url: url, data: data}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	manifest := &formatter.Manifest{CreatedAt: time.Now().UTC(), Format: opts.Format, Total: len(urls)}

	completed := 0
	for res := range results {
		completed++
		result.Results = append(result.Results, res)
		manifest.Add(formatter.ManifestEntry{
			URL:      res.URL,
			Title:    res.PlaylistName,
			Platform: res.Platform.String(),
			Tracks:   res.Tracks,
			Files:    res.Files,
		}, res.Error)

		if res.Success() {
			result.SuccessfulExports++
			e.sendProgress(prog, exportCompletedUpdate(completed, len(urls), res.PlaylistName, len(res.Files)))
		} else {
			result.FailedExports++
			e.logger.Warn("playlist export failed", "url", res.URL, "error", res.Error)
			e.sendProgress(prog, exportFailedUpdate(completed, len(urls), res.PlaylistName, res.Error))
		}
	}

	manifestPath := filepath.Join(opts.OutputDir, "export_manifest.json")
	if err := formatter.WriteManifest(manifest, manifestPath); err != nil {
		return result, fmt.Errorf("export completed but failed to write manifest: %w", err)
	}
	result.ManifestPath = manifestPath
	return result, nil
}

// exportWorker writes playlists from the jobs channel until it is closed.
func (e *Engine) exportWorker(
	ctx context.Context,
	wg *sync.WaitGroup,
	jobs <-chan exportJob,
	results chan<- PlaylistExportResult,
	opts BulkExportOpts,
) {
	defer wg.Done()

	for job := range jobs {
		res := PlaylistExportResult{
			URL:          job.url,
			PlaylistName: job.data.Title,
			Platform:     job.data.SourcePlatform,
			Tracks:       len(job.data.Tracks),
			Files:        []string{},
		}
		if err := ctx.Err(); err != nil {
			res.Error = err
			results <- res
			continue
		}

		res.Files, res.Error = exportSinglePlaylist(job, opts)
		results <- res
	}
}

// exportSinglePlaylist writes one playlist as <source id>-<slug>.<ext> under the output directory.
func exportSinglePlaylist(j exportJob, opts BulkExportOpts) ([]string, error) {
	name := formatter.FileName(j.data.Title, opts.Format)
	if parsed, ok := parser.Parse(j.url); ok {
		name = parsed.PlaylistID + "-" + name
	}

	path, err := formatter.WriteExport(j.data, opts.Format, filepath.Join(opts.OutputDir, name))
	if err != nil {
		return []string{}, fmt.Errorf("%s export failed: %w", opts.Format, err)
	}
	return []string{path}, nil
}
