package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/desertthunder/crossfade/internal/formatter"
	"github.com/desertthunder/crossfade/internal/models"
	"github.com/desertthunder/crossfade/internal/parser"
	"github.com/desertthunder/crossfade/internal/shared"
	"github.com/desertthunder/crossfade/internal/tasks"
	"github.com/urfave/cli/v3"
)

// resolve turns a playlist URL, or a bare id when --platform is given, into a parsed reference.
func resolve(raw, platform string) (*parser.Parsed, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, fmt.Errorf("%w: playlist URL", shared.ErrMissingArgument)
	}
	if parsed, ok := parser.Parse(raw); ok {
		return parsed, nil
	}
	if platform != "" {
		p, err := models.ParsePlatform(platform)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", shared.ErrInvalidArgument, err)
		}
		if parsed, ok := parser.FromID(p, raw); ok {
			return parsed, nil
		}
	}
	return nil, fmt.Errorf("%w: unrecognized playlist URL %q", shared.ErrInvalidInput, raw)
}

// Parse prints the platform and playlist id of a URL.
func (r *Runner) Parse(ctx context.Context, cmd *cli.Command) error {
	parsed, err := resolve(cmd.StringArg("url"), cmd.String("platform"))
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(map[string]string{
			"platform":   parsed.Platform.String(),
			"playlistId": parsed.PlaylistID,
			"url":        parsed.OriginalURL,
		}, false)
	}
	return r.writePlain("%s playlist %s\n", parsed.Platform.Name(), parsed.PlaylistID)
}

// Fetch exports one playlist to stdout or a file, or several playlists into a directory.
func (r *Runner) Fetch(ctx context.Context, cmd *cli.Command) error {
	format, err := formatter.ParseFormat(cmd.String("format"))
	if err != nil {
		return err
	}

	args := cmd.Args().Slice()
	if len(args) == 0 {
		return fmt.Errorf("%w: at least one playlist URL", shared.ErrMissingArgument)
	}
	urls := make([]string, len(args))
	for i, arg := range args {
		parsed, err := resolve(arg, cmd.String("platform"))
		if err != nil {
			return err
		}
		urls[i] = parsed.OriginalURL
	}

	if len(urls) > 1 {
		return r.bulkExport(ctx, urls, format, cmd)
	}

	data, err := r.engine.Scan(ctx, urls[0], nil)
	if err != nil {
		return err
	}

	output := cmd.String("output")
	if output == "" || output == "-" {
		out, err := formatter.Export(data, format)
		if err != nil {
			return err
		}
		if _, err := r.output.Write(out); err != nil {
			return fmt.Errorf("failed to write output: %w", err)
		}
		return nil
	}

	path, err := formatter.WriteExport(data, format, output)
	if err != nil {
		return err
	}
	r.logger.Info("playlist exported", "title", data.Title, "tracks", len(data.Tracks), "path", path)
	return r.writePlain("✓ Exported %s (%d tracks) to %s\n", data.Title, len(data.Tracks), path)
}

func (r *Runner) bulkExport(ctx context.Context, urls []string, format formatter.Format, cmd *cli.Command) error {
	progress := make(chan tasks.ProgressUpdate, 50)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for update := range progress {
			r.writePlain("%s\n", update.Message)
		}
	}()

	result, err := r.engine.BulkExport(ctx, progress, urls, tasks.BulkExportOpts{
		Format:     format,
		OutputDir:  cmd.String("output"),
		NumWorkers: int(cmd.Int("workers")),
	})
	close(progress)
	<-done
	if err != nil {
		return err
	}

	r.writePlain("\n")
	r.writePlainHeader("Export Complete")
	r.writePlain("Exported: %d/%d playlists\n", result.SuccessfulExports, result.TotalPlaylists)
	r.writePlain("Directory: %s\n", result.OutputDirectory)
	r.writePlain("Manifest: %s\n", result.ManifestPath)

	if result.FailedExports > 0 {
		r.writePlain("\nFailed:\n")
		for _, res := range result.Results {
			if !res.Success() {
				r.writePlain("  - %s: %v\n", res.URL, res.Error)
			}
		}
		return fmt.Errorf("%w: %d of %d playlists failed to export", shared.ErrAPIRequest, result.FailedExports, result.TotalPlaylists)
	}
	return nil
}

// Convert recreates a playlist on the other platform and prints a summary.
func (r *Runner) Convert(ctx context.Context, cmd *cli.Command) error {
	parsed, err := resolve(cmd.StringArg("url"), cmd.String("platform"))
	if err != nil {
		return err
	}
	engine := r.historyEngine(!cmd.Bool("no-history"))

	progressCh := make(chan tasks.ProgressUpdate, 50)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for update := range progressCh {
			r.printProgress(update)
		}
	}()

	data, err := engine.Scan(ctx, parsed.OriginalURL, progressCh)
	var result *models.ConversionResult
	if err == nil {
		result, err = engine.Convert(ctx, data, progressCh)
	}
	close(progressCh)
	<-done

	if err != nil {
		return err
	}

	r.writePlain("\n")
	r.writePlainHeader("Conversion Complete!")
	r.writePlain("Source: %s (%d tracks on %s)\n", data.Title, len(data.Tracks), data.SourcePlatform.Name())
	r.writePlain("Destination: %s\n", result.DestinationPlaylistURL)
	r.writePlain("Added: %d/%d (%.1f%%)\n", result.AddedCount, result.Total(), result.MatchRate())

	if n := len(result.FailedTracks); n > 0 {
		r.writePlain("\nFailed to match %d tracks:\n", n)
		for _, label := range result.FailedTracks {
			r.writePlain("  - %s\n", label)
		}
	}

	if report := cmd.String("report"); report != "" {
		return r.writeReport(data, result, report, cmd.String("report-format"))
	}
	return nil
}

func (r *Runner) printProgress(update tasks.ProgressUpdate) {
	switch update.Phase {
	case tasks.ParseURL:
		r.writePlain("🔗 %s\n", update.Message)
	case tasks.FetchSource:
		r.writePlain("📥 %s\n", update.Message)
	case tasks.RefreshSession:
		r.writePlain("🔑 %s\n", update.Message)
	case tasks.CreatePlaylist:
		r.writePlain("\n📝 %s\n", update.Message)
	case tasks.SearchTracks:
		if update.Step == 0 {
			r.writePlain("\n🔍 %s\n", update.Message)
		} else {
			r.writePlain("   %s\n", update.Message)
		}
	case tasks.AddTracks:
		r.writePlain("\n➕ %s\n", update.Message)
	case tasks.Completed:
		r.writePlain("\n✓ %s\n", update.Message)
	}
}

func (r *Runner) writeReport(data *models.PlaylistData, result *models.ConversionResult, path, rawFormat string) error {
	format, err := formatter.ParseFormat(rawFormat)
	if err != nil {
		return err
	}
	out, err := formatter.ExportResult(data, result, format)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, out, 0644); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	return r.writePlain("Report: %s\n", path)
}
