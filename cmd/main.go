package main

import (
	"context"
	"errors"
	"os"

	"github.com/desertthunder/crossfade/internal/shared"
	"github.com/urfave/cli/v3"
)

// Exit statuses
const (
	exitOK       = 0
	exitError    = 1
	exitUsage    = 2
	exitConfig   = 3
	exitAuth     = 4
	exitUpstream = 5
)

func main() {
	logger := shared.NewLogger(nil)
	runner := NewRunner(RunnerOpts{Logger: logger})

	app := newApp(runner)

	err := app.Run(context.Background(), os.Args)
	code := exitCode(err)
	switch {
	case err == nil:
	case errors.Is(err, shared.ErrNotImplemented):
		runner.logger.Warn("not implemented")
	default:
		runner.logger.Error("application error", "error", err)
		if shared.IsReauthenticate(err) {
			runner.logger.Info("run 'crossfade auth login <platform>' to sign in again")
		}
	}
	os.Exit(code)
}

// newApp builds the root command around runner.
func newApp(runner *Runner) *cli.Command {
	return &cli.Command{
		Name:    "crossfade",
		Usage:   "Convert playlists between Spotify & YouTube Music",
		Version: "0.1.0",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to configuration file",
				Value:   "config.toml",
				Sources: cli.EnvVars("CROSSFADE_CONFIG"),
			},
			&cli.BoolFlag{
				Name:  "debug",
				Usage: "Enable debug logging",
			},
		},
		Before:   runner.Before,
		After:    runner.After,
		Commands: runner.register(),
	}
}

// exitCode maps the final command error to the process exit status.
func exitCode(err error) int {
	var (
		cfgErr      *shared.ConfigurationError
		authErr     *shared.AuthError
		upstreamErr *shared.UpstreamError
	)
	switch {
	case err == nil, errors.Is(err, shared.ErrNotImplemented):
		return exitOK
	case errors.As(err, &cfgErr), errors.Is(err, shared.ErrMissingConfig), errors.Is(err, shared.ErrInvalidConfig):
		return exitConfig
	case errors.As(err, &authErr), errors.Is(err, shared.ErrNotAuthenticated), errors.Is(err, shared.ErrAuthFailed):
		return exitAuth
	case errors.As(err, &upstreamErr), errors.Is(err, shared.ErrAPIRequest):
		return exitUpstream
	case errors.Is(err, shared.ErrInvalidInput), errors.Is(err, shared.ErrInvalidArgument),
		errors.Is(err, shared.ErrMissingArgument):
		return exitUsage
	}
	return exitError
}
