package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/desertthunder/crossfade/internal/repositories"
	"github.com/desertthunder/crossfade/internal/server"
	"github.com/desertthunder/crossfade/internal/shared"
	"github.com/desertthunder/crossfade/internal/tasks"
	"github.com/desertthunder/crossfade/internal/web"
	"github.com/urfave/cli/v3"
)

const shutdownTimeout = 10 * time.Second

// Serve runs the JSON API until interrupted.
//
// The server's clients never hold the tokens stored by 'auth login': every request brings its own
// sessions in cookies.
func (r *Runner) Serve(ctx context.Context, cmd *cli.Command) error {
	cfg := r.config.Server
	if host := cmd.String("host"); host != "" {
		cfg.Host = host
	}
	if port := cmd.Int("port"); port > 0 {
		cfg.Port = int(port)
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	clients := r.clients
	if !r.fixedClients {
		clients = newClients(r.config, r.logger, false)
	}
	opts := []tasks.EngineOption{tasks.WithLogger(r.logger)}
	if !cmd.Bool("no-history") {
		if db, err := r.openDatabase(); err != nil {
			r.logger.Warn("conversion history disabled", "error", err)
		} else {
			opts = append(opts, tasks.WithRecorder(repositories.NewHistory(repositories.NewConversionRepository(db))))
		}
	}

	app, err := web.NewApp(web.Options{
		Engine:        tasks.NewEngine(clients, opts...),
		CookieSecret:  cfg.CookieSecret,
		SecureCookies: cfg.SecureCookies,
		Logger:        r.logger,
		Context:       ctx,
	})
	if err != nil {
		return err
	}
	if cfg.CookieSecret == shared.DefaultConfig().Server.CookieSecret {
		r.logger.Warn("server.cookie_secret is the example value; set CROSSFADE_COOKIE_SECRET")
	}

	httpServer := server.NewHTTPServer(cfg.Addr(), app.Handler())
	serverErrors := make(chan error, 1)
	go func() {
		r.logger.Info("listening", "addr", cfg.Addr())
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrors <- err
		}
		close(serverErrors)
	}()

	select {
	case err := <-serverErrors:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	r.logger.Info("shutting down", "jobs", app.Jobs().Len())
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down: %w", err)
	}
	return nil
}
