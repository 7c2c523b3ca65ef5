package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/desertthunder/crossfade/internal/models"
	"github.com/desertthunder/crossfade/internal/server"
	"github.com/desertthunder/crossfade/internal/services"
	"github.com/desertthunder/crossfade/internal/shared"
	"github.com/urfave/cli/v3"
	"golang.org/x/oauth2"
)

const authTimeout = 2 * time.Minute

// platformArg reads the platform argument of an auth command.
func platformArg(cmd *cli.Command) (models.Platform, error) {
	raw := cmd.StringArg("platform")
	if raw == "" {
		return "", fmt.Errorf("%w: platform (spotify or youtube)", shared.ErrMissingArgument)
	}
	p, err := models.ParsePlatform(raw)
	if err != nil {
		return "", fmt.Errorf("%w: %v", shared.ErrInvalidArgument, err)
	}
	return p, nil
}

// AuthLogin performs the OAuth2 authorization code flow for a platform.
//
// Starts a local HTTP server on the redirect URI's host, opens the browser for user authorization,
// and stores the issued tokens in the config file.
func (r *Runner) AuthLogin(ctx context.Context, cmd *cli.Command) error {
	p, err := platformArg(cmd)
	if err != nil {
		return err
	}
	if err := r.credentials(p).Require(p.Name()); err != nil {
		return err
	}

	client, err := r.engine.Client(p)
	if err != nil {
		return err
	}

	session, err := r.doOAuth(ctx, client.WithSession(nil))
	if err != nil {
		return err
	}

	if err := r.saveTokens(p, session.Token()); err != nil {
		return err
	}
	client.SetSession(session)

	r.writePlainln("✓ %s authorization successful", p.Name())
	if r.configPath != "" {
		r.writePlain("✓ Tokens saved to %s\n", r.configPath)
	}
	return nil
}

// doOAuth runs one authorization round trip through a temporary callback server.
func (r *Runner) doOAuth(ctx context.Context, client services.Client) (*models.AuthSession, error) {
	state, err := shared.GenerateState()
	if err != nil {
		return nil, fmt.Errorf("failed to generate state token: %w", err)
	}

	authURL, err := client.AuthURL(state)
	if err != nil {
		return nil, err
	}

	oauthHandler := server.NewOAuthHandler(client, state)
	router := server.NewBasicRouter()
	router.Use(server.Recover(r.logger), server.Logging(r.logger))
	router.Handler(oauthHandler)

	addr := callbackAddr(client.OAuthConfig().RedirectURL, r.config.Server.Addr())
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	httpServer := server.NewHTTPServer(addr, router)
	serverErrors := make(chan error, 1)
	go func() {
		r.logger.Info("starting OAuth callback server", "platform", client.Platform(), "addr", addr)
		if err := httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrors <- err
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			r.logger.Warn("error shutting down server", "error", err)
		}
	}()

	r.writePlain("→ Opening browser for %s authorization...\n", client.Name())
	if err := shared.OpenBrowser(authURL); err != nil {
		r.logger.Warn("failed to open browser automatically", "error", err)
		r.writePlainln("⚠ Could not open browser automatically.")
		r.writePlain("Please open this URL in your browser:\n%s\n\n", authURL)
	}

	r.writePlain("→ Waiting for authorization (2 minute timeout)...\n")

	timeout := time.NewTimer(authTimeout)
	defer timeout.Stop()

	var result server.OAuthResult
	select {
	case result = <-oauthHandler.Result():
	case err := <-serverErrors:
		return nil, fmt.Errorf("server error: %w", err)
	case <-timeout.C:
		return nil, fmt.Errorf("%w: authorization timed out after 2 minutes", shared.ErrTimeout)
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	if err := result.Error(); err != nil {
		return nil, fmt.Errorf("authorization failed: %w", err)
	}
	if result.Session == nil {
		return nil, fmt.Errorf("%w: no token received", shared.ErrAuthFailed)
	}
	return result.Session, nil
}

// callbackAddr is the host:port the provider redirects to, falling back to the server address.
func callbackAddr(redirectURI, fallback string) string {
	u, err := url.Parse(redirectURI)
	if err != nil || u.Host == "" {
		return fallback
	}
	if u.Port() == "" {
		return net.JoinHostPort(u.Hostname(), "80")
	}
	return u.Host
}

// saveTokens stores token for platform p in memory and in the config file.
//
// The file is re-read so that values overlaid from the environment are not written back.
func (r *Runner) saveTokens(p models.Platform, token *oauth2.Token) error {
	if r.config == nil {
		return fmt.Errorf("config is nil")
	}
	if err := r.credentials(p).Update(token); err != nil {
		return fmt.Errorf("failed to update %s configuration: %w", p, err)
	}
	if r.configPath == "" {
		return nil
	}

	onDisk := shared.DefaultConfig()
	if _, err := os.Stat(r.configPath); err == nil {
		if onDisk, err = shared.LoadConfig(r.configPath); err != nil {
			return err
		}
	}
	creds := &onDisk.Credentials.Spotify
	if p == models.YouTube {
		creds = &onDisk.Credentials.YouTube
	}
	if err := creds.Update(token); err != nil {
		return fmt.Errorf("failed to update %s configuration: %w", p, err)
	}

	if err := shared.SaveConfig(r.configPath, onDisk); err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}
	return nil
}

// persistSession is the engine's session hook: refreshed tokens are written back to the config file.
func (r *Runner) persistSession(p models.Platform, s *models.AuthSession) {
	stored := r.credentials(p).Token()
	if stored != nil && stored.AccessToken == s.AccessToken {
		return
	}
	if err := r.saveTokens(p, s.Token()); err != nil {
		r.logger.Warn("failed to save refreshed tokens", "platform", p, "error", err)
		return
	}
	r.logger.Debug("saved refreshed tokens", "platform", p)
}

// AuthLogout removes the stored tokens of a platform.
func (r *Runner) AuthLogout(ctx context.Context, cmd *cli.Command) error {
	p, err := platformArg(cmd)
	if err != nil {
		return err
	}

	r.credentials(p).Clear()
	if client, err := r.engine.Client(p); err == nil {
		client.SetSession(nil)
	}

	if r.configPath != "" {
		if _, err := os.Stat(r.configPath); err == nil {
			onDisk, err := shared.LoadConfig(r.configPath)
			if err != nil {
				return err
			}
			if p == models.YouTube {
				onDisk.Credentials.YouTube.Clear()
			} else {
				onDisk.Credentials.Spotify.Clear()
			}
			if err := shared.SaveConfig(r.configPath, onDisk); err != nil {
				return fmt.Errorf("failed to save config: %w", err)
			}
		}
	}

	return r.writePlain("✓ Signed out of %s\n", p.Name())
}

// authStatus is the reported state of one platform.
type authStatus struct {
	Platform      string    `json:"platform"`
	Configured    bool      `json:"configured"`
	Authenticated bool      `json:"authenticated"`
	CanRefresh    bool      `json:"canRefresh"`
	Expiry        time.Time `json:"expiry,omitzero"`
}

// AuthStatus reports configured credentials and stored sessions for both platforms.
func (r *Runner) AuthStatus(ctx context.Context, cmd *cli.Command) error {
	now := time.Now()
	statuses := make([]authStatus, 0, len(models.Platforms))
	for _, p := range models.Platforms {
		creds := r.credentials(p)
		session := models.SessionFromToken(creds.Token())
		statuses = append(statuses, authStatus{
			Platform:      p.Name(),
			Configured:    creds.Require(p.Name()) == nil,
			Authenticated: session.Valid(now),
			CanRefresh:    session.CanRefresh(),
			Expiry:        creds.TokenExpiry,
		})
	}

	if cmd.Bool("json") {
		return r.writeJSON(statuses, true)
	}

	r.writePlainHeader("Authentication")
	for _, s := range statuses {
		r.writePlain("%s\n", s.Platform)
		if s.Configured {
			r.writePlain("  Credentials: ✓ configured\n")
		} else {
			r.writePlain("  Credentials: ✗ missing client_id, client_secret or redirect_uri\n")
		}
		switch {
		case s.Authenticated && s.Expiry.IsZero():
			r.writePlain("  Session: ✓ valid\n")
		case s.Authenticated:
			r.writePlain("  Session: ✓ valid until %s\n", s.Expiry.Local().Format(time.RFC1123))
		case s.CanRefresh:
			r.writePlain("  Session: expired, will refresh on next use\n")
		default:
			r.writePlain("  Session: ✗ not signed in\n")
		}
	}
	return nil
}
