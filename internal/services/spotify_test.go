package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/desertthunder/crossfade/internal/models"
	"github.com/desertthunder/crossfade/internal/shared"
)

var testCreds = shared.OAuthCredentials{
	ClientID:     "client-id",
	ClientSecret: "client-secret",
	RedirectURI:  "http://localhost:3000/auth/callback",
}

func writeTestJSON(t *testing.T, w http.ResponseWriter, status int, v any) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		t.Errorf("failed to encode response: %v", err)
	}
}

func spotifyItem(i int) map[string]any {
	return map[string]any{
		"track": map[string]any{
			"type":        "track",
			"id":          fmt.Sprintf("trk%d", i),
			"name":        fmt.Sprintf("Song %d", i),
			"duration_ms": 215000,
			"album":       map[string]any{"name": "Album"},
			"artists":     []map[string]any{{"name": "Alice"}, {"name": "Bob"}},
		},
	}
}

// newSpotifyServer fakes the accounts and Web API hosts on one server.
func newSpotifyServer(t *testing.T, handler http.HandlerFunc) (*httptest.Server, *int32) {
	t.Helper()
	var count int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&count, 1)
		handler(w, r)
	}))
	t.Cleanup(srv.Close)
	return srv, &count
}

func newTestSpotify(srv *httptest.Server, creds shared.OAuthCredentials) *SpotifyService {
	return NewSpotifyService(SpotifyOptions{
		Credentials: creds,
		HTTPClient:  srv.Client(),
		APIURL:      srv.URL + "/v1/",
		AuthURL:     srv.URL + "/authorize",
		TokenURL:    srv.URL + "/api/token",
	})
}

func TestSpotifyService(t *testing.T) {
	ctx := context.Background()

	t.Run("Name", func(t *testing.T) {
		svc := NewSpotifyService(SpotifyOptions{})
		if svc.Name() != "Spotify" {
			t.Errorf("expected name to be 'Spotify', got %s", svc.Name())
		}
		if svc.Limits().BatchSize != 100 || !svc.Limits().ScopedSearch {
			t.Errorf("unexpected limits %+v", svc.Limits())
		}
	})

	t.Run("AuthURL", func(t *testing.T) {
		svc := NewSpotifyService(SpotifyOptions{Credentials: testCreds})
		raw, err := svc.AuthURL("state-123")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		u, _ := url.Parse(raw)
		q := u.Query()
		if u.Host != "accounts.spotify.com" {
			t.Errorf("unexpected host %s", u.Host)
		}
		if q.Get("state") != "state-123" || q.Get("client_id") != "client-id" {
			t.Errorf("unexpected query %v", q)
		}
		for _, scope := range []string{"playlist-modify-private", "user-read-email"} {
			if !strings.Contains(q.Get("scope"), scope) {
				t.Errorf("expected scope %s in %q", scope, q.Get("scope"))
			}
		}
	})

	t.Run("missing credentials fail before any request", func(t *testing.T) {
		srv, count := newSpotifyServer(t, func(w http.ResponseWriter, r *http.Request) {})
		svc := newTestSpotify(srv, shared.OAuthCredentials{ClientID: "only-id"})

		if _, err := svc.AuthURL("s"); !errors.Is(err, shared.ErrMissingCredentials) {
			t.Errorf("expected missing credentials, got %v", err)
		}
		if _, err := svc.FetchPlaylist(ctx, "abc"); !errors.Is(err, shared.ErrMissingCredentials) {
			t.Errorf("expected missing credentials, got %v", err)
		}
		_, err := svc.CreateAndPopulatePlaylist(ctx, playlist(tracks(1)), nil)
		var cfgErr *shared.ConfigurationError
		if !errors.As(err, &cfgErr) || cfgErr.Field != "client_secret" {
			t.Errorf("expected configuration error for client_secret, got %v", err)
		}
		if n := atomic.LoadInt32(count); n != 0 {
			t.Errorf("expected zero requests, got %d", n)
		}
	})

	t.Run("ExchangeCode", func(t *testing.T) {
		t.Run("stores session", func(t *testing.T) {
			srv, _ := newSpotifyServer(t, func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path != "/api/token" {
					t.Errorf("unexpected path %s", r.URL.Path)
				}
				_ = r.ParseForm()
				if r.Form.Get("code") != "good" {
					t.Errorf("expected code 'good', got %s", r.Form.Get("code"))
				}
				writeTestJSON(t, w, http.StatusOK, map[string]any{
					"access_token": "user-token", "refresh_token": "refresh", "token_type": "Bearer", "expires_in": 3600,
				})
			})
			svc := newTestSpotify(srv, testCreds)

			session, err := svc.ExchangeCode(ctx, "good")
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if session.AccessToken != "user-token" || session.RefreshToken != "refresh" {
				t.Errorf("unexpected session %+v", session)
			}
			if !svc.IsAuthenticated() {
				t.Error("expected service to be authenticated")
			}
		})

		t.Run("invalid_grant", func(t *testing.T) {
			srv, _ := newSpotifyServer(t, func(w http.ResponseWriter, r *http.Request) {
				writeTestJSON(t, w, http.StatusBadRequest, map[string]string{
					"error": "invalid_grant", "error_description": "Invalid authorization code",
				})
			})
			svc := newTestSpotify(srv, testCreds)

			_, err := svc.ExchangeCode(ctx, "stale")
			var authErr *shared.AuthError
			if !errors.As(err, &authErr) {
				t.Fatalf("expected AuthError, got %v", err)
			}
			if authErr.Reason != shared.ReasonInvalidGrant {
				t.Errorf("expected invalid_grant, got %s", authErr.Reason)
			}
			if err.Error() != shared.InvalidGrantMessage {
				t.Errorf("unexpected message %q", err.Error())
			}
			if !shared.IsReauthenticate(err) {
				t.Error("expected reauthenticate")
			}
		})
	})

	t.Run("FetchPlaylist", func(t *testing.T) {
		t.Run("pages with an app token", func(t *testing.T) {
			var tokenCalls int32
			srv, _ := newSpotifyServer(t, func(w http.ResponseWriter, r *http.Request) {
				switch {
				case r.URL.Path == "/api/token":
					atomic.AddInt32(&tokenCalls, 1)
					_ = r.ParseForm()
					if r.Form.Get("grant_type") != "client_credentials" {
						t.Errorf("expected client_credentials grant, got %s", r.Form.Get("grant_type"))
					}
					writeTestJSON(t, w, http.StatusOK, map[string]any{"access_token": "app", "token_type": "bearer", "expires_in": 3600})
				case r.Header.Get("Authorization") != "Bearer app":
					t.Errorf("expected app token, got %q", r.Header.Get("Authorization"))
					w.WriteHeader(http.StatusUnauthorized)
				case r.URL.Path == "/v1/playlists/abc":
					writeTestJSON(t, w, http.StatusOK, map[string]any{
						"id": "abc", "name": "Mix", "description": "desc",
						"external_urls": map[string]string{"spotify": "https://open.spotify.com/playlist/abc"},
					})
				case r.URL.Path == "/v1/playlists/abc/tracks":
					items := []map[string]any{}
					next := ""
					if r.URL.Query().Get("offset") == "0" || r.URL.Query().Get("offset") == "" {
						for i := range 100 {
							items = append(items, spotifyItem(i))
						}
						next = "page-2"
					} else {
						for i := 100; i < 120; i++ {
							items = append(items, spotifyItem(i))
						}
					}
					writeTestJSON(t, w, http.StatusOK, map[string]any{"items": items, "next": next, "total": 120})
				default:
					t.Errorf("unexpected request %s", r.URL.Path)
					w.WriteHeader(http.StatusNotFound)
				}
			})
			svc := newTestSpotify(srv, testCreds)

			data, err := svc.FetchPlaylist(ctx, "abc")
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if data.Title != "Mix" || data.SourcePlatform != models.Spotify {
				t.Errorf("unexpected playlist %+v", data)
			}
			if len(data.Tracks) != 120 {
				t.Fatalf("expected 120 tracks, got %d", len(data.Tracks))
			}
			first := data.Tracks[0]
			if first.Artist != "Alice, Bob" || first.Duration != "3:35" || first.SourceID != "trk0" || first.Album != "Album" {
				t.Errorf("unexpected track %+v", first)
			}
			if data.Tracks[119].Title != "Song 119" {
				t.Errorf("expected tracks in order, got %s last", data.Tracks[119].Title)
			}

			if _, err := svc.FetchPlaylist(ctx, "abc"); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if n := atomic.LoadInt32(&tokenCalls); n != 1 {
				t.Errorf("expected app token to be cached, got %d token calls", n)
			}
		})

		t.Run("re-issues an expired app token", func(t *testing.T) {
			var tokenCalls int32
			srv, _ := newSpotifyServer(t, func(w http.ResponseWriter, r *http.Request) {
				switch r.URL.Path {
				case "/api/token":
					atomic.AddInt32(&tokenCalls, 1)
					writeTestJSON(t, w, http.StatusOK, map[string]any{"access_token": "app", "token_type": "bearer"})
				case "/v1/playlists/abc":
					writeTestJSON(t, w, http.StatusOK, map[string]any{"id": "abc", "name": "Mix"})
				default:
					writeTestJSON(t, w, http.StatusOK, map[string]any{"items": []any{}, "next": ""})
				}
			})
			svc := newTestSpotify(srv, testCreds)
			now := time.Now()
			svc.now = func() time.Time { return now }

			if _, err := svc.FetchPlaylist(ctx, "abc"); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			now = now.Add(appTokenTTL + time.Second)
			if _, err := svc.FetchPlaylist(ctx, "abc"); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if n := atomic.LoadInt32(&tokenCalls); n != 2 {
				t.Errorf("expected 2 token calls, got %d", n)
			}
		})

		t.Run("maps API errors", func(t *testing.T) {
			srv, _ := newSpotifyServer(t, func(w http.ResponseWriter, r *http.Request) {
				writeTestJSON(t, w, http.StatusNotFound, map[string]any{
					"error": map[string]any{"status": 404, "message": "Resource not found"},
				})
			})
			svc := newTestSpotify(srv, testCreds).WithSession(&models.AuthSession{AccessToken: "user"})

			_, err := svc.FetchPlaylist(ctx, "missing")
			if !errors.Is(err, shared.ErrAPIRequest) {
				t.Fatalf("expected upstream error, got %v", err)
			}
			if shared.UpstreamStatus(err) != http.StatusNotFound {
				t.Errorf("expected status 404, got %d", shared.UpstreamStatus(err))
			}
		})
	})

	t.Run("write path requires a user session", func(t *testing.T) {
		srv, count := newSpotifyServer(t, func(w http.ResponseWriter, r *http.Request) {})
		svc := newTestSpotify(srv, testCreds)

		_, err := svc.CreateAndPopulatePlaylist(ctx, playlist(tracks(1)), nil)
		if !errors.Is(err, shared.ErrNotAuthenticated) {
			t.Errorf("expected not authenticated, got %v", err)
		}
		if n := atomic.LoadInt32(count); n != 0 {
			t.Errorf("expected zero requests, got %d", n)
		}
	})

	t.Run("CreateAndPopulatePlaylist", func(t *testing.T) {
		var (
			queries []string
			added   [][]string
			body    map[string]any
		)
		srv, _ := newSpotifyServer(t, func(w http.ResponseWriter, r *http.Request) {
			switch {
			case r.URL.Path == "/v1/me":
				writeTestJSON(t, w, http.StatusOK, map[string]any{"id": "user-1"})
			case r.URL.Path == "/v1/users/user-1/playlists":
				_ = json.NewDecoder(r.Body).Decode(&body)
				writeTestJSON(t, w, http.StatusCreated, map[string]any{"id": "new-pl"})
			case r.URL.Path == "/v1/search":
				q := r.URL.Query().Get("q")
				queries = append(queries, q)
				found := []map[string]any{}
				if q == "Song 0 Artist 0" {
					found = append(found, map[string]any{"id": "hit0", "name": "Song 0", "artists": []map[string]any{{"name": "Artist 0"}}})
				}
				writeTestJSON(t, w, http.StatusOK, map[string]any{"tracks": map[string]any{"items": found}})
			case r.URL.Path == "/v1/playlists/new-pl/tracks" && r.Method == http.MethodPost:
				var req struct {
					URIs []string `json:"uris"`
				}
				_ = json.NewDecoder(r.Body).Decode(&req)
				added = append(added, req.URIs)
				writeTestJSON(t, w, http.StatusCreated, map[string]string{"snapshot_id": "snap"})
			default:
				t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
				w.WriteHeader(http.StatusNotFound)
			}
		})

		svc := newTestSpotify(srv, testCreds).WithSession(&models.AuthSession{AccessToken: "user"})
		result, err := svc.CreateAndPopulatePlaylist(ctx, playlist(tracks(2)), nil)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		if body["public"] != false || body["name"] != "Road Trip (from YouTube Music)" {
			t.Errorf("unexpected create body %v", body)
		}
		if len(queries) != 4 || queries[0] != `track:"Song 0" artist:"Artist 0"` {
			t.Errorf("unexpected queries %v", queries)
		}
		if len(added) != 1 || len(added[0]) != 1 || added[0][0] != "spotify:track:hit0" {
			t.Errorf("unexpected add calls %v", added)
		}
		if result.AddedCount != 1 || len(result.FailedTracks) != 1 || result.FailedTracks[0] != "Song 1 by Artist 1" {
			t.Errorf("unexpected result %+v", result)
		}
		if result.DestinationPlaylistURL != "https://open.spotify.com/playlist/new-pl" {
			t.Errorf("unexpected url %s", result.DestinationPlaylistURL)
		}
	})

	t.Run("Refresh", func(t *testing.T) {
		srv, _ := newSpotifyServer(t, func(w http.ResponseWriter, r *http.Request) {
			_ = r.ParseForm()
			if r.Form.Get("grant_type") != "refresh_token" || r.Form.Get("refresh_token") != "rt" {
				t.Errorf("unexpected refresh form %v", r.Form)
			}
			writeTestJSON(t, w, http.StatusOK, map[string]any{"access_token": "fresh", "token_type": "Bearer", "expires_in": 3600})
		})
		svc := newTestSpotify(srv, testCreds)
		svc.SetSession(&models.AuthSession{AccessToken: "old", RefreshToken: "rt", Expiry: time.Now().Add(-time.Minute)})

		session, err := svc.Refresh(ctx)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if session.AccessToken != "fresh" || session.RefreshToken != "rt" {
			t.Errorf("unexpected session %+v", session)
		}

		t.Run("without refresh token", func(t *testing.T) {
			svc.SetSession(&models.AuthSession{AccessToken: "old", Expiry: time.Now().Add(-time.Minute)})
			if _, err := svc.Refresh(ctx); !errors.Is(err, shared.ErrTokenExpired) {
				t.Errorf("expected expired error, got %v", err)
			}
		})

		t.Run("with missing credentials makes no request", func(t *testing.T) {
			srv, count := newSpotifyServer(t, func(w http.ResponseWriter, r *http.Request) {
				writeTestJSON(t, w, http.StatusUnauthorized, map[string]any{"error": "invalid_client"})
			})
			svc := newTestSpotify(srv, shared.OAuthCredentials{})
			svc.SetSession(&models.AuthSession{AccessToken: "old", RefreshToken: "rt", Expiry: time.Now().Add(-time.Minute)})

			_, err := svc.Refresh(ctx)
			var cfgErr *shared.ConfigurationError
			if !errors.As(err, &cfgErr) {
				t.Errorf("expected configuration error, got %v", err)
			}
			if n := atomic.LoadInt32(count); n != 0 {
				t.Errorf("expected zero requests, got %d", n)
			}
		})
	})
}
