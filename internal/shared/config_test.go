package shared

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"golang.org/x/oauth2"
)

func TestConfig(t *testing.T) {
	t.Run("DefaultConfig", func(t *testing.T) {
		config := DefaultConfig()

		if config.Database.Path != "./crossfade.db" {
			t.Errorf("expected database path ./crossfade.db, got %s", config.Database.Path)
		}

		if config.Server.Port != 3000 {
			t.Errorf("expected server port 3000, got %d", config.Server.Port)
		}

		if config.Convert.SearchDelay() != 100*time.Millisecond {
			t.Errorf("expected 100ms search delay, got %v", config.Convert.SearchDelay())
		}

		if config.Convert.BatchDelay() != 200*time.Millisecond {
			t.Errorf("expected 200ms batch delay, got %v", config.Convert.BatchDelay())
		}

		if config.Credentials.Spotify.RedirectURI != "http://localhost:3000/auth/callback" {
			t.Errorf("unexpected spotify redirect uri %s", config.Credentials.Spotify.RedirectURI)
		}
	})

	t.Run("CreateConfigFile", func(t *testing.T) {
		tmpDir := t.TempDir()
		configPath := filepath.Join(tmpDir, "config.toml")

		if err := CreateConfigFile(configPath); err != nil {
			t.Fatalf("failed to create config file: %v", err)
		}

		config, err := LoadConfig(configPath)
		if err != nil {
			t.Fatalf("failed to load created config: %v", err)
		}

		if config.Database.Path != DefaultConfig().Database.Path {
			t.Errorf("created config database path doesn't match default")
		}

		if err := CreateConfigFile(configPath); err == nil {
			t.Error("creating config file again should fail")
		}
	})

	t.Run("LoadConfig", func(t *testing.T) {
		tmpDir := t.TempDir()
		configPath := filepath.Join(tmpDir, "config.toml")

		testConfig := `[database]
path = "/custom/path.db"

[server]
host = "0.0.0.0"
port = 8080

[credentials.spotify]
client_id = "test_client_id"
client_secret = "test_secret"
`
		if err := os.WriteFile(configPath, []byte(testConfig), 0644); err != nil {
			t.Fatalf("failed to write test config: %v", err)
		}

		config, err := LoadConfig(configPath)
		if err != nil {
			t.Fatalf("failed to load config: %v", err)
		}

		if config.Database.Path != "/custom/path.db" {
			t.Errorf("expected database path /custom/path.db, got %s", config.Database.Path)
		}
		if config.Server.Addr() != "0.0.0.0:8080" {
			t.Errorf("expected addr 0.0.0.0:8080, got %s", config.Server.Addr())
		}
		if config.Credentials.Spotify.ClientID != "test_client_id" {
			t.Errorf("expected spotify client_id test_client_id, got %s", config.Credentials.Spotify.ClientID)
		}
		if config.Credentials.Spotify.RedirectURI == "" {
			t.Error("expected redirect uri to fall back to the default")
		}
		if config.Convert.BatchDelayMS != 200 {
			t.Errorf("expected default batch delay, got %d", config.Convert.BatchDelayMS)
		}
	})

	t.Run("LoadConfig invalid toml", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), "config.toml")
		if err := os.WriteFile(configPath, []byte("[database\npath="), 0644); err != nil {
			t.Fatalf("failed to write test config: %v", err)
		}

		_, err := LoadConfig(configPath)
		if !errors.Is(err, ErrInvalidConfig) {
			t.Errorf("expected ErrInvalidConfig, got %v", err)
		}
	})

	t.Run("SaveConfig round trip with tokens", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), "config.toml")
		config := DefaultConfig()
		expiry := time.Date(2030, 1, 2, 3, 4, 5, 0, time.UTC)

		if err := config.Credentials.YouTube.Update(&oauth2.Token{AccessToken: "a", RefreshToken: "r", Expiry: expiry}); err != nil {
			t.Fatalf("update failed: %v", err)
		}
		if err := SaveConfig(configPath, config); err != nil {
			t.Fatalf("save failed: %v", err)
		}

		loaded, err := LoadConfig(configPath)
		if err != nil {
			t.Fatalf("load failed: %v", err)
		}

		tok := loaded.Credentials.YouTube.Token()
		if tok == nil || tok.AccessToken != "a" || tok.RefreshToken != "r" || !tok.Expiry.Equal(expiry) {
			t.Errorf("unexpected token after round trip: %+v", tok)
		}
		if loaded.Credentials.Spotify.Token() != nil {
			t.Error("expected no spotify token")
		}
	})

	t.Run("ApplyEnv", func(t *testing.T) {
		t.Setenv("SPOTIFY_CLIENT_ID", "env-id")
		t.Setenv("GOOGLE_CLIENT_SECRET", "env-secret")
		t.Setenv("REDIRECT_URI", "http://example.test/auth/callback")

		config := DefaultConfig()
		ApplyEnv(config)

		if config.Credentials.Spotify.ClientID != "env-id" {
			t.Errorf("expected env client id, got %s", config.Credentials.Spotify.ClientID)
		}
		if config.Credentials.YouTube.ClientSecret != "env-secret" {
			t.Errorf("expected env client secret, got %s", config.Credentials.YouTube.ClientSecret)
		}
		if config.Credentials.YouTube.RedirectURI != "http://example.test/auth/callback" {
			t.Errorf("expected env redirect uri, got %s", config.Credentials.YouTube.RedirectURI)
		}
	})

	t.Run("LoadEnv", func(t *testing.T) {
		envPath := filepath.Join(t.TempDir(), ".env")
		if err := os.WriteFile(envPath, []byte("CROSSFADE_TEST_VALUE=loaded\n"), 0644); err != nil {
			t.Fatalf("failed to write env file: %v", err)
		}
		t.Setenv("CROSSFADE_TEST_VALUE", "")
		os.Unsetenv("CROSSFADE_TEST_VALUE")

		if err := LoadEnv(envPath, filepath.Join(t.TempDir(), "missing.env")); err != nil {
			t.Fatalf("LoadEnv failed: %v", err)
		}
		if got := os.Getenv("CROSSFADE_TEST_VALUE"); got != "loaded" {
			t.Errorf("expected loaded, got %q", got)
		}
	})

	t.Run("Require", func(t *testing.T) {
		creds := OAuthCredentials{ClientID: "id", RedirectURI: "http://localhost/cb"}

		err := creds.Require("Spotify")
		var cfgErr *ConfigurationError
		if !errors.As(err, &cfgErr) {
			t.Fatalf("expected ConfigurationError, got %v", err)
		}
		if cfgErr.Field != "client_secret" {
			t.Errorf("expected client_secret field, got %s", cfgErr.Field)
		}
		if err.Error() != "Spotify credentials not configured" {
			t.Errorf("unexpected message %q", err.Error())
		}

		creds.ClientSecret = "secret"
		if err := creds.Require("Spotify"); err != nil {
			t.Errorf("expected no error, got %v", err)
		}
	})
}
