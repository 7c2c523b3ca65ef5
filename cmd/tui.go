package main

import (
	"context"
	"fmt"

	"github.com/desertthunder/crossfade/internal/shared"
	"github.com/desertthunder/crossfade/internal/ui"
	"github.com/urfave/cli/v3"
)

const tuiLogFile = "crossfade-tui.log"

// TUI launches the interactive terminal UI for playlist conversion.
func (r *Runner) TUI(ctx context.Context, cmd *cli.Command) error {
	// Redirect logs to file to avoid interfering with TUI rendering
	logCfg := r.config.Log
	if logCfg.File == "" {
		logCfg.File = tuiLogFile
	}
	rotating := shared.NewRotatingWriter(logCfg)
	defer rotating.Close()

	logger := shared.NewLogger(rotating)
	logger.SetLevel(r.logger.GetLevel())
	r.SetLogger(logger)

	flow, err := ui.Run(ctx, r.historyEngine(!cmd.Bool("no-history")))
	if err != nil {
		return fmt.Errorf("error running TUI: %w", err)
	}

	if snap := flow.Snapshot(); snap.Result != nil {
		r.writePlain("%s\n", snap.Result.DestinationPlaylistURL)
	}
	return nil
}
