package shared

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
	"golang.org/x/oauth2"
)

//go:embed config.example.toml
var exampleConf []byte

// Config represents the application configuration loaded from a TOML file.
type Config struct {
	Credentials CredentialsConfig `toml:"credentials"`
	Database    DatabaseConfig    `toml:"database"`
	Server      ServerConfig      `toml:"server"`
	Convert     ConvertConfig     `toml:"convert"`
	Log         LogConfig         `toml:"log"`
}

// CredentialsConfig contains platform OAuth credentials.
type CredentialsConfig struct {
	Spotify OAuthCredentials `toml:"spotify"`
	YouTube OAuthCredentials `toml:"youtube"`
}

// OAuthCredentials holds the client registration for one platform and, for the CLI, the user's last issued tokens.
type OAuthCredentials struct {
	ClientID     string    `toml:"client_id"`
	ClientSecret string    `toml:"client_secret"`
	RedirectURI  string    `toml:"redirect_uri"`
	AccessToken  string    `toml:"access_token,omitempty"`
	RefreshToken string    `toml:"refresh_token,omitempty"`
	TokenExpiry  time.Time `toml:"token_expiry,omitempty"`
}

// DatabaseConfig contains database connection settings.
type DatabaseConfig struct {
	Path         string `toml:"path"`
	MaxOpenConns int    `toml:"max_open_conns"`
	MaxIdleConns int    `toml:"max_idle_conns"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	CookieSecret  string `toml:"cookie_secret"`
	SecureCookies bool   `toml:"secure_cookies"`
}

// ConvertConfig tunes pacing of destination API calls.
type ConvertConfig struct {
	SearchDelayMS  int `toml:"search_delay_ms"`
	BatchDelayMS   int `toml:"batch_delay_ms"`
	TimeoutSeconds int `toml:"timeout_seconds"`
}

// LogConfig controls the log level and optional rotating file output.
type LogConfig struct {
	Level      string `toml:"level"`
	File       string `toml:"file"`
	MaxSizeMB  int    `toml:"max_size_mb"`
	MaxBackups int    `toml:"max_backups"`
	MaxAgeDays int    `toml:"max_age_days"`
}

// Require reports a [ConfigurationError] when the client id or secret is missing.
func (c OAuthCredentials) Require(platform string) error {
	switch {
	case c.ClientID == "":
		return &ConfigurationError{Platform: platform, Field: "client_id"}
	case c.ClientSecret == "":
		return &ConfigurationError{Platform: platform, Field: "client_secret"}
	case c.RedirectURI == "":
		return &ConfigurationError{Platform: platform, Field: "redirect_uri"}
	}
	return nil
}

// Token returns the stored user token, or nil when none has been saved.
func (c OAuthCredentials) Token() *oauth2.Token {
	if c.AccessToken == "" && c.RefreshToken == "" {
		return nil
	}
	return &oauth2.Token{
		AccessToken:  c.AccessToken,
		RefreshToken: c.RefreshToken,
		Expiry:       c.TokenExpiry,
		TokenType:    "Bearer",
	}
}

// Update stores a freshly issued token. An empty refresh token keeps the previous one,
// since providers only return it on the first consent.
func (c *OAuthCredentials) Update(token *oauth2.Token) error {
	if token == nil || token.AccessToken == "" {
		return fmt.Errorf("%w: empty token", ErrInvalidCredentials)
	}
	c.AccessToken = token.AccessToken
	if token.RefreshToken != "" {
		c.RefreshToken = token.RefreshToken
	}
	c.TokenExpiry = token.Expiry
	return nil
}

// Clear removes stored user tokens.
func (c *OAuthCredentials) Clear() {
	c.AccessToken = ""
	c.RefreshToken = ""
	c.TokenExpiry = time.Time{}
}

// SearchDelay returns the pause between destination search calls.
func (c ConvertConfig) SearchDelay() time.Duration {
	return time.Duration(c.SearchDelayMS) * time.Millisecond
}

// BatchDelay returns the pause between batched playlist additions.
func (c ConvertConfig) BatchDelay() time.Duration {
	return time.Duration(c.BatchDelayMS) * time.Millisecond
}

// Timeout returns the per-request HTTP timeout for platform clients.
func (c ConvertConfig) Timeout() time.Duration {
	if c.TimeoutSeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// Addr returns host:port for the HTTP server.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// LoadConfig reads and parses a TOML configuration file from the specified path.
//
// Values missing from the file fall back to the embedded defaults.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := toml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("%w: failed to parse config: %v", ErrInvalidConfig, err)
	}

	return config, nil
}

// LoadConfigOrDefault loads path if it exists and otherwise returns [DefaultConfig].
// Environment overrides are applied in both cases.
func LoadConfigOrDefault(path string) (*Config, error) {
	config := DefaultConfig()
	if _, err := os.Stat(path); err == nil {
		if config, err = LoadConfig(path); err != nil {
			return nil, err
		}
	}
	ApplyEnv(config)
	return config, nil
}

// DefaultConfig returns a Config with sensible defaults loaded from the embedded example config.
func DefaultConfig() *Config {
	var config Config
	if err := toml.Unmarshal(exampleConf, &config); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	return &config
}

// CreateConfigFile creates a config.toml file at the specified path using the embedded example config.
func CreateConfigFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := os.WriteFile(path, exampleConf, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// SaveConfig encodes config as TOML and writes it to path with user-only permissions,
// because the file may hold OAuth tokens.
func SaveConfig(path string, config *Config) error {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(config); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	if err := os.WriteFile(path, buf.Bytes(), 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// LoadEnv loads .env files into the process environment. Missing files are ignored.
func LoadEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("failed to load %s: %w", p, err)
		}
	}
	return nil
}

// ApplyEnv overlays credential and secret values from the environment onto config.
func ApplyEnv(config *Config) {
	set := func(dst *string, key string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}

	set(&config.Credentials.Spotify.ClientID, "SPOTIFY_CLIENT_ID")
	set(&config.Credentials.Spotify.ClientSecret, "SPOTIFY_CLIENT_SECRET")
	set(&config.Credentials.YouTube.ClientID, "GOOGLE_CLIENT_ID")
	set(&config.Credentials.YouTube.ClientSecret, "GOOGLE_CLIENT_SECRET")
	set(&config.Credentials.Spotify.RedirectURI, "REDIRECT_URI")
	set(&config.Credentials.YouTube.RedirectURI, "REDIRECT_URI")
	set(&config.Server.CookieSecret, "CROSSFADE_COOKIE_SECRET")
	set(&config.Log.Level, "CROSSFADE_LOG_LEVEL")
}
