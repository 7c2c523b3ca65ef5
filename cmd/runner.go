package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/crossfade/internal/models"
	"github.com/desertthunder/crossfade/internal/repositories"
	"github.com/desertthunder/crossfade/internal/services"
	"github.com/desertthunder/crossfade/internal/shared"
	"github.com/desertthunder/crossfade/internal/tasks"
	"github.com/urfave/cli/v3"
)

// Runner holds all dependencies for CLI commands and provides methods for each command action.
type Runner struct {
	config     *shared.Config
	configPath string
	clients    []services.Client
	logger     *log.Logger
	output     io.Writer
	engine     *tasks.Engine
	db         *sql.DB

	// set when clients were injected, so Before does not rebuild them from config
	fixedClients bool
}

// RunnerOpts contains configuration options for creating a Runner.
type RunnerOpts struct {
	Config     *shared.Config
	ConfigPath string
	Clients    []services.Client
	Logger     *log.Logger
	Output     io.Writer
}

// NewRunner creates a new Runner with the provided configuration
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Config == nil {
		opts.Config = shared.DefaultConfig()
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}

	r := &Runner{
		configPath:   opts.ConfigPath,
		logger:       opts.Logger,
		output:       opts.Output,
		fixedClients: opts.Clients != nil,
	}
	r.configure(opts.Config, opts.Clients)
	return r
}

// configure installs config and rebuilds the platform clients and the engine from it.
func (r *Runner) configure(config *shared.Config, clients []services.Client) {
	if clients == nil {
		clients = newClients(config, r.logger, true)
	}
	r.config = config
	r.clients = clients
	r.engine = r.newEngine(clients)
}

// newClients builds both platform clients from config. With stored set, tokens saved by
// 'auth login' are loaded into the clients.
func newClients(config *shared.Config, logger *log.Logger, stored bool) []services.Client {
	spotify := services.NewSpotifyService(services.SpotifyOptions{
		Credentials: config.Credentials.Spotify,
		Convert:     config.Convert,
		Logger:      logger,
	})
	youtube := services.NewYouTubeService(services.YouTubeOptions{
		Credentials: config.Credentials.YouTube,
		Convert:     config.Convert,
		Logger:      logger,
	})

	if stored {
		spotify.SetSession(models.SessionFromToken(config.Credentials.Spotify.Token()))
		youtube.SetSession(models.SessionFromToken(config.Credentials.YouTube.Token()))
	}
	return []services.Client{spotify, youtube}
}

func (r *Runner) newEngine(clients []services.Client, opts ...tasks.EngineOption) *tasks.Engine {
	opts = append([]tasks.EngineOption{
		tasks.WithLogger(r.logger),
		tasks.WithSessionHook(r.persistSession),
	}, opts...)
	return tasks.NewEngine(clients, opts...)
}

// Before loads the environment and configuration named by the --config flag.
func (r *Runner) Before(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	if err := shared.LoadEnv(); err != nil {
		r.logger.Warn("failed to load .env", "error", err)
	}

	path := cmd.String("config")
	config, err := shared.LoadConfigOrDefault(path)
	if err != nil {
		return ctx, err
	}
	r.configPath = path

	if config.Log.File != "" {
		r.logger = shared.NewLoggerFromConfig(config.Log)
	} else if lvl, err := log.ParseLevel(config.Log.Level); err == nil {
		shared.SetLogLevel(r.logger, lvl)
	}
	if cmd.Bool("debug") {
		shared.SetLogLevel(r.logger, log.DebugLevel)
	}

	var clients []services.Client
	if r.fixedClients {
		clients = r.clients
	}
	r.configure(config, clients)
	return ctx, nil
}

// After releases resources opened by commands.
func (r *Runner) After(ctx context.Context, cmd *cli.Command) error {
	if r.db != nil {
		err := r.db.Close()
		r.db = nil
		return err
	}
	return nil
}

// SetLogger replaces the logger used by the runner and by engines built afterwards.
func (r *Runner) SetLogger(logger *log.Logger) {
	r.logger = logger
	r.engine = r.newEngine(r.clients)
}

// openDatabase opens (and migrates) the history database once per process.
func (r *Runner) openDatabase() (*sql.DB, error) {
	if r.db != nil {
		return r.db, nil
	}
	if r.config.Database.Path == "" {
		return nil, fmt.Errorf("%w: database.path is empty", shared.ErrMissingConfig)
	}
	db, err := shared.OpenDatabase(r.config.Database)
	if err != nil {
		return nil, err
	}
	r.db = db
	return db, nil
}

// historyEngine returns an engine that records conversions, or the plain engine when the
// database cannot be opened.
func (r *Runner) historyEngine(enabled bool) *tasks.Engine {
	if !enabled {
		return r.engine
	}
	db, err := r.openDatabase()
	if err != nil {
		r.logger.Warn("conversion history disabled", "error", err)
		return r.engine
	}
	history := repositories.NewHistory(repositories.NewConversionRepository(db))
	return r.newEngine(r.clients, tasks.WithRecorder(history))
}

func (r *Runner) credentials(p models.Platform) *shared.OAuthCredentials {
	if p == models.YouTube {
		return &r.config.Credentials.YouTube
	}
	return &r.config.Credentials.Spotify
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		parseCommand, fetchCommand, convertCommand, authCommand, historyCommand, setupCommand, serveCommand, tuiCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

func (r *Runner) writeJSON(data any, pretty bool) error {
	var output []byte
	var err error

	if pretty {
		output, err = json.MarshalIndent(data, "", "  ")
	} else {
		output, err = json.Marshal(data)
	}

	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	if _, err := r.output.Write(output); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	if _, err := r.output.Write([]byte("\n")); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}

	return nil
}

func (r *Runner) writePlain(format string, args ...any) error {
	text := fmt.Sprintf(format, args...)
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainln(format string, args ...any) error {
	text := "\n" + fmt.Sprintf(format, args...) + "\n"
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainHeader(title string) {
	r.writePlain("═══════════════════════════════════════\n")
	r.writePlain("%v\n", title)
	r.writePlain("═══════════════════════════════════════\n")
}
