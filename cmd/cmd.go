// submodule cmd contains command definitions
package main

import "github.com/urfave/cli/v3"

// platformFlag accepts a platform name for bare playlist ids.
func platformFlag() *cli.StringFlag {
	return &cli.StringFlag{
		Name:    "platform",
		Aliases: []string{"p"},
		Usage:   "Source platform (spotify or youtube) when passing a bare playlist id",
	}
}

// parseCommand identifies the platform and id of a playlist URL
func parseCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "parse",
		Usage: "Detect the platform and playlist id of a URL",
		Arguments: []cli.Argument{
			&cli.StringArg{Name: "url"},
		},
		Flags: []cli.Flag{
			platformFlag(),
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Output raw JSON",
			},
		},
		Action: r.Parse,
	}
}

// fetchCommand exports one or more playlists
func fetchCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:      "fetch",
		Aliases:   []string{"export"},
		Usage:     "Fetch playlists and export them as json, csv, markdown or text",
		ArgsUsage: "<url> [url...]",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "format",
				Aliases: []string{"f"},
				Usage:   "Export format: json, csv, markdown or text",
				Value:   "json",
			},
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Usage:   "Output file (one playlist) or directory (several playlists); '-' for stdout",
			},
			platformFlag(),
			&cli.IntFlag{
				Name:  "workers",
				Usage: "Concurrent fetches when exporting several playlists",
				Value: 5,
			},
		},
		Action: r.Fetch,
	}
}

// convertCommand recreates a playlist on the other platform
func convertCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "convert",
		Aliases: []string{"transfer"},
		Usage:   "Convert a playlist between Spotify and YouTube Music",
		Arguments: []cli.Argument{
			&cli.StringArg{Name: "url"},
		},
		Flags: []cli.Flag{
			platformFlag(),
			&cli.BoolFlag{
				Name:  "no-history",
				Usage: "Do not record the conversion in the history database",
			},
			&cli.StringFlag{
				Name:  "report",
				Usage: "Write a conversion report to this file",
			},
			&cli.StringFlag{
				Name:  "report-format",
				Usage: "Report format: json, csv, markdown or text",
				Value: "text",
			},
		},
		Action: r.Convert,
	}
}

// authCommand manages OAuth sessions
func authCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "auth",
		Usage: "Manage Spotify and YouTube Music authorization",
		Commands: []*cli.Command{
			{
				Name:  "login",
				Usage: "Authorize a platform using OAuth2 and store the tokens",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "platform"},
				},
				Action: r.AuthLogin,
			},
			{
				Name:  "logout",
				Usage: "Remove the stored tokens of a platform",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "platform"},
				},
				Action: r.AuthLogout,
			},
			{
				Name:  "status",
				Usage: "Show credentials and session state",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output raw JSON",
					},
				},
				Action: r.AuthStatus,
			},
		},
	}
}

// historyCommand inspects recorded conversions
func historyCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "history",
		Usage: "Inspect past conversions",
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List recent conversions",
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "limit",
						Usage: "Maximum number of conversions to return",
						Value: 20,
					},
					&cli.StringFlag{
						Name:  "status",
						Usage: "Only conversions with this status (pending, completed, failed)",
					},
					&cli.StringFlag{
						Name:  "source",
						Usage: "Only conversions from this platform",
					},
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output raw JSON",
					},
					&cli.BoolFlag{
						Name:  "pretty",
						Usage: "Pretty-print output",
					},
				},
				Action: r.HistoryList,
			},
			{
				Name:  "show",
				Usage: "Show one conversion with its tracks",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "id"},
				},
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output raw JSON",
					},
				},
				Action: r.HistoryShow,
			},
			{
				Name:  "delete",
				Usage: "Delete a conversion from the history",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "id"},
				},
				Action: r.HistoryDelete,
			},
			{
				Name:  "stats",
				Usage: "Show totals across all conversions",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output raw JSON",
					},
				},
				Action: r.HistoryStats,
			},
		},
	}
}

// setupCommand handles initial configuration and database setup
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "setup",
		Usage: "Initialize configuration and database",
		Commands: []*cli.Command{
			{
				Name:  "config",
				Usage: "Create a config.toml with default values",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "force",
						Usage: "Overwrite an existing config file",
					},
				},
				Action: r.SetupConfig,
			},
			{
				Name:   "database",
				Usage:  "Create the history database and run migrations",
				Action: r.SetupDatabase,
			},
			{
				Name:   "rollback",
				Usage:  "Revert the most recent migration",
				Action: r.SetupRollback,
			},
		},
	}
}

// serveCommand starts the JSON API
func serveCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the conversion HTTP API",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "host",
				Usage: "Listen host (overrides server.host)",
			},
			&cli.IntFlag{
				Name:  "port",
				Usage: "Listen port (overrides server.port)",
			},
			&cli.BoolFlag{
				Name:  "no-history",
				Usage: "Do not record conversions in the history database",
			},
		},
		Action: r.Serve,
	}
}

// tuiCommand returns the top-level TUI command for interactive playlist conversion.
func tuiCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "tui",
		Aliases: []string{"interactive", "ui"},
		Usage:   "Launch the interactive converter",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "no-history",
				Usage: "Do not record conversions in the history database",
			},
		},
		Action: r.TUI,
	}
}
