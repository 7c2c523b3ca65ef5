package main

import (
	"context"
	"fmt"
	"time"

	"github.com/desertthunder/crossfade/internal/models"
	"github.com/desertthunder/crossfade/internal/repositories"
	"github.com/desertthunder/crossfade/internal/shared"
	"github.com/urfave/cli/v3"
)

// conversionView is the JSON shape of a stored conversion.
type conversionView struct {
	ID             string                   `json:"id"`
	Sequence       int                      `json:"sequence"`
	Source         string                   `json:"source"`
	SourceURL      string                   `json:"sourceUrl"`
	Title          string                   `json:"title"`
	Destination    string                   `json:"destination"`
	DestinationURL string                   `json:"destinationUrl,omitempty"`
	Total          int                      `json:"totalTracks"`
	Added          int                      `json:"addedCount"`
	Failed         int                      `json:"failedCount"`
	Status         models.ConversionStatus  `json:"status"`
	Error          string                   `json:"error,omitempty"`
	CreatedAt      time.Time                `json:"createdAt"`
	Tracks         []models.ConversionTrack `json:"tracks,omitempty"`
}

func viewConversion(c *models.ConversionRecord) conversionView {
	return conversionView{
		ID:             c.ID(),
		Sequence:       c.Sequence(),
		Source:         c.SourcePlatform().String(),
		SourceURL:      c.SourceURL(),
		Title:          c.SourceTitle(),
		Destination:    c.DestinationPlatform().String(),
		DestinationURL: c.DestinationURL(),
		Total:          c.TotalTracks(),
		Added:          c.AddedCount(),
		Failed:         c.FailedCount(),
		Status:         c.Status(),
		Error:          c.Error(),
		CreatedAt:      c.CreatedAt(),
		Tracks:         c.Tracks(),
	}
}

func (r *Runner) conversions() (*repositories.ConversionRepository, error) {
	db, err := r.openDatabase()
	if err != nil {
		return nil, err
	}
	return repositories.NewConversionRepository(db), nil
}

// HistoryList prints recent conversions, newest first.
func (r *Runner) HistoryList(ctx context.Context, cmd *cli.Command) error {
	repo, err := r.conversions()
	if err != nil {
		return err
	}

	criteria := map[string]any{"limit": int(cmd.Int("limit"))}
	if status := cmd.String("status"); status != "" {
		criteria["status"] = status
	}
	if source := cmd.String("source"); source != "" {
		p, err := models.ParsePlatform(source)
		if err != nil {
			return fmt.Errorf("%w: %v", shared.ErrInvalidArgument, err)
		}
		criteria["source_platform"] = p.String()
	}

	records, err := repo.List(criteria)
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		views := make([]conversionView, len(records))
		for i, c := range records {
			views[i] = viewConversion(c)
		}
		return r.writeJSON(views, cmd.Bool("pretty"))
	}

	if len(records) == 0 {
		return r.writePlain("No conversions recorded yet.\n")
	}
	for _, c := range records {
		r.writePlain("#%-4d %s  %-10s %s → %s  %d/%d  %s\n",
			c.Sequence(),
			c.CreatedAt().Local().Format("2006-01-02 15:04"),
			c.Status(),
			c.SourcePlatform().Name(),
			c.DestinationPlatform().Name(),
			c.AddedCount(),
			c.TotalTracks(),
			c.SourceTitle(),
		)
	}
	return nil
}

// HistoryShow prints one conversion with its per-track outcomes.
func (r *Runner) HistoryShow(ctx context.Context, cmd *cli.Command) error {
	id := cmd.StringArg("id")
	if id == "" {
		return fmt.Errorf("%w: conversion id", shared.ErrMissingArgument)
	}
	repo, err := r.conversions()
	if err != nil {
		return err
	}

	c, err := repo.Get(id)
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(viewConversion(c), true)
	}

	r.writePlainHeader(c.SourceTitle())
	r.writePlain("ID: %s\n", c.ID())
	r.writePlain("Status: %s\n", c.Status())
	r.writePlain("Source: %s (%s)\n", c.SourceURL(), c.SourcePlatform().Name())
	if c.DestinationURL() != "" {
		r.writePlain("Destination: %s (%s)\n", c.DestinationURL(), c.DestinationPlatform().Name())
	}
	r.writePlain("Added: %d/%d\n", c.AddedCount(), c.TotalTracks())
	if c.Error() != "" {
		r.writePlain("Error: %s\n", c.Error())
	}

	if tracks := c.Tracks(); len(tracks) > 0 {
		r.writePlain("\n")
		for _, t := range tracks {
			mark := "✓"
			if !t.Added {
				mark = "✗"
			}
			r.writePlain("%s %3d. %s - %s", mark, t.Position+1, t.Artist, t.Title)
			if t.Tier != models.TierNone {
				r.writePlain(" [%s %.2f]", t.Tier, t.Score)
			}
			r.writePlain("\n")
		}
	}
	return nil
}

// HistoryDelete soft-deletes a conversion.
func (r *Runner) HistoryDelete(ctx context.Context, cmd *cli.Command) error {
	id := cmd.StringArg("id")
	if id == "" {
		return fmt.Errorf("%w: conversion id", shared.ErrMissingArgument)
	}
	repo, err := r.conversions()
	if err != nil {
		return err
	}
	if err := repo.Delete(id); err != nil {
		return err
	}
	return r.writePlain("✓ Deleted conversion %s\n", id)
}

// HistoryStats prints totals across the stored history.
func (r *Runner) HistoryStats(ctx context.Context, cmd *cli.Command) error {
	repo, err := r.conversions()
	if err != nil {
		return err
	}
	stats, err := repo.Stats()
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(map[string]any{
			"conversions": stats.Conversions,
			"completed":   stats.Completed,
			"failed":      stats.Failed,
			"tracks":      stats.Tracks,
			"added":       stats.Added,
			"matchRate":   stats.MatchRate(),
		}, true)
	}

	r.writePlainHeader("Conversion History")
	r.writePlain("Conversions: %d (%d completed, %d failed)\n", stats.Conversions, stats.Completed, stats.Failed)
	r.writePlain("Tracks added: %d/%d (%.1f%%)\n", stats.Added, stats.Tracks, stats.MatchRate())
	return nil
}
