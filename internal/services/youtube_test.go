package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/desertthunder/crossfade/internal/models"
	"github.com/desertthunder/crossfade/internal/shared"
)

func newTestYouTube(t *testing.T, handler http.HandlerFunc) (*YouTubeService, *int32) {
	t.Helper()
	srv, count := newSpotifyServer(t, handler)
	svc := NewYouTubeService(YouTubeOptions{
		Credentials: testCreds,
		HTTPClient:  srv.Client(),
		Endpoint:    srv.URL + "/",
		TokenURL:    srv.URL + "/token",
	})
	svc.SetSession(&models.AuthSession{AccessToken: "yt-user"})
	return svc, count
}

func youtubeItem(title, owner, channel, videoID string) map[string]any {
	return map[string]any{
		"snippet": map[string]any{
			"title":                  title,
			"videoOwnerChannelTitle": owner,
			"channelTitle":           channel,
			"resourceId":             map[string]string{"kind": "youtube#video", "videoId": videoID},
		},
		"contentDetails": map[string]string{"videoId": videoID},
	}
}

func TestVideoArtist(t *testing.T) {
	tests := []struct {
		title, channel, want string
	}{
		{"Song", "Daft Punk - Topic", "Daft Punk"},
		{"Song", "RickAstleyVEVO", "RickAstleyVEVO"},
		{"Song", "Rick Astley VEVO", "Rick Astley"},
		{"Song", "Queen Official", "Queen"},
		{"Queen - Bohemian Rhapsody", "Queen Official", "Queen"},
		{" Queen  - Bohemian Rhapsody - Remastered", "whatever", "Queen"},
		{"Song", "", "Unknown Artist"},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%s/%s", tt.title, tt.channel), func(t *testing.T) {
			if got := VideoArtist(tt.title, tt.channel); got != tt.want {
				t.Errorf("expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestYouTubeService(t *testing.T) {
	ctx := context.Background()

	t.Run("Name", func(t *testing.T) {
		svc := NewYouTubeService(YouTubeOptions{})
		if svc.Name() != "YouTube Music" {
			t.Errorf("expected name to be 'YouTube Music', got %s", svc.Name())
		}
		if svc.Limits().BatchSize != 1 || svc.Limits().ScopedSearch {
			t.Errorf("unexpected limits %+v", svc.Limits())
		}
	})

	t.Run("AuthURL", func(t *testing.T) {
		svc := NewYouTubeService(YouTubeOptions{Credentials: testCreds})
		raw, err := svc.AuthURL("st")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		u, _ := url.Parse(raw)
		q := u.Query()
		if q.Get("access_type") != "offline" || q.Get("prompt") != "consent" {
			t.Errorf("expected offline access with consent prompt, got %v", q)
		}
		if !strings.Contains(q.Get("scope"), "https://www.googleapis.com/auth/youtube.force-ssl") {
			t.Errorf("unexpected scope %q", q.Get("scope"))
		}
	})

	t.Run("requires a user session", func(t *testing.T) {
		svc, count := newTestYouTube(t, func(w http.ResponseWriter, r *http.Request) {})
		svc.SetSession(nil)

		_, err := svc.FetchPlaylist(ctx, "PL1")
		var authErr *shared.AuthError
		if !errors.As(err, &authErr) || authErr.Reason != shared.ReasonNoToken {
			t.Errorf("expected no_token AuthError, got %v", err)
		}
		if n := atomic.LoadInt32(count); n != 0 {
			t.Errorf("expected zero requests, got %d", n)
		}
	})

	t.Run("missing credentials fail before any request", func(t *testing.T) {
		svc, count := newTestYouTube(t, func(w http.ResponseWriter, r *http.Request) {})
		svc.creds = shared.OAuthCredentials{}

		if _, err := svc.CreateAndPopulatePlaylist(ctx, playlist(tracks(1)), nil); !errors.Is(err, shared.ErrMissingCredentials) {
			t.Errorf("expected missing credentials, got %v", err)
		}
		if n := atomic.LoadInt32(count); n != 0 {
			t.Errorf("expected zero requests, got %d", n)
		}
	})

	t.Run("FetchPlaylist", func(t *testing.T) {
		t.Run("concatenates pages", func(t *testing.T) {
			svc, _ := newTestYouTube(t, func(w http.ResponseWriter, r *http.Request) {
				if r.Header.Get("Authorization") != "Bearer yt-user" {
					t.Errorf("unexpected authorization %q", r.Header.Get("Authorization"))
				}
				switch r.URL.Path {
				case "/youtube/v3/playlists":
					if r.URL.Query().Get("id") != "PL1" {
						t.Errorf("unexpected id %s", r.URL.Query().Get("id"))
					}
					writeTestJSON(t, w, http.StatusOK, map[string]any{
						"items": []any{map[string]any{"id": "PL1", "snippet": map[string]string{"title": "Faves", "description": "d"}}},
					})
				case "/youtube/v3/playlistItems":
					if r.URL.Query().Get("maxResults") != "50" {
						t.Errorf("expected maxResults=50, got %s", r.URL.Query().Get("maxResults"))
					}
					switch r.URL.Query().Get("pageToken") {
					case "":
						writeTestJSON(t, w, http.StatusOK, map[string]any{
							"items": []any{
								youtubeItem("Around the World", "Daft Punk - Topic", "Me", "v1"),
								youtubeItem("Queen - Bohemian Rhapsody", "Queen Official", "Me", "v2"),
							},
							"nextPageToken": "p2",
						})
					case "p2":
						writeTestJSON(t, w, http.StatusOK, map[string]any{
							"items": []any{youtubeItem("Never Gonna", "", "Rick Astley VEVO", "v3")},
						})
					default:
						t.Errorf("unexpected page token %s", r.URL.Query().Get("pageToken"))
					}
				default:
					t.Errorf("unexpected request %s", r.URL.Path)
					w.WriteHeader(http.StatusNotFound)
				}
			})

			data, err := svc.FetchPlaylist(ctx, "PL1")
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if data.Title != "Faves" || data.OriginalURL != "https://music.youtube.com/playlist?list=PL1" {
				t.Errorf("unexpected playlist %+v", data)
			}

			want := []models.Track{
				{Title: "Around the World", Artist: "Daft Punk", SourceID: "v1"},
				{Title: "Queen - Bohemian Rhapsody", Artist: "Queen", SourceID: "v2"},
				{Title: "Never Gonna", Artist: "Rick Astley", SourceID: "v3"},
			}
			if len(data.Tracks) != len(want) {
				t.Fatalf("expected %d tracks, got %d", len(want), len(data.Tracks))
			}
			for i, w := range want {
				if data.Tracks[i] != w {
					t.Errorf("track %d: expected %+v, got %+v", i, w, data.Tracks[i])
				}
			}
		})

		t.Run("not found", func(t *testing.T) {
			svc, _ := newTestYouTube(t, func(w http.ResponseWriter, r *http.Request) {
				writeTestJSON(t, w, http.StatusOK, map[string]any{"items": []any{}})
			})

			_, err := svc.FetchPlaylist(ctx, "PLX")
			if !errors.Is(err, shared.ErrPlaylistNotFound) {
				t.Errorf("expected playlist not found, got %v", err)
			}
			if shared.UpstreamStatus(err) != http.StatusNotFound {
				t.Errorf("expected status 404, got %d", shared.UpstreamStatus(err))
			}
		})

		t.Run("maps API errors", func(t *testing.T) {
			svc, _ := newTestYouTube(t, func(w http.ResponseWriter, r *http.Request) {
				writeTestJSON(t, w, http.StatusForbidden, map[string]any{
					"error": map[string]any{"code": 403, "message": "quota exceeded"},
				})
			})

			_, err := svc.FetchPlaylist(ctx, "PL1")
			var upstream *shared.UpstreamError
			if !errors.As(err, &upstream) {
				t.Fatalf("expected upstream error, got %v", err)
			}
			if upstream.Status != http.StatusForbidden || upstream.Message != "quota exceeded" {
				t.Errorf("unexpected upstream error %+v", upstream)
			}
		})

		t.Run("rejected token asks for reauthentication", func(t *testing.T) {
			svc, _ := newTestYouTube(t, func(w http.ResponseWriter, r *http.Request) {
				writeTestJSON(t, w, http.StatusUnauthorized, map[string]any{
					"error": map[string]any{"code": 401, "message": "Invalid Credentials"},
				})
			})

			_, err := svc.FetchPlaylist(ctx, "PL1")
			if !shared.IsReauthenticate(err) {
				t.Errorf("expected reauthentication error, got %v", err)
			}
		})
	})

	t.Run("CreateAndPopulatePlaylist", func(t *testing.T) {
		var (
			created  map[string]any
			inserted []string
			queries  []string
		)
		svc, _ := newTestYouTube(t, func(w http.ResponseWriter, r *http.Request) {
			switch {
			case r.URL.Path == "/youtube/v3/channels":
				if r.URL.Query().Get("mine") != "true" {
					t.Error("expected mine=true")
				}
				writeTestJSON(t, w, http.StatusOK, map[string]any{"items": []any{map[string]string{"id": "UC1"}}})
			case r.URL.Path == "/youtube/v3/playlists" && r.Method == http.MethodPost:
				_ = json.NewDecoder(r.Body).Decode(&created)
				writeTestJSON(t, w, http.StatusOK, map[string]string{"id": "PLNEW"})
			case r.URL.Path == "/youtube/v3/search":
				q := r.URL.Query()
				queries = append(queries, q.Get("q"))
				if q.Get("videoCategoryId") != "10" || q.Get("type") != "video" {
					t.Errorf("unexpected search params %v", q)
				}
				items := []any{}
				if strings.HasPrefix(q.Get("q"), "Song 0") || strings.HasPrefix(q.Get("q"), "Song 2") {
					items = append(items, map[string]any{
						"id":      map[string]string{"kind": "youtube#video", "videoId": "vid-" + q.Get("q")[5:6]},
						"snippet": map[string]string{"title": q.Get("q"), "channelTitle": "X - Topic"},
					})
				}
				writeTestJSON(t, w, http.StatusOK, map[string]any{"items": items})
			case r.URL.Path == "/youtube/v3/playlistItems" && r.Method == http.MethodPost:
				var item struct {
					Snippet struct {
						PlaylistID string `json:"playlistId"`
						ResourceID struct {
							VideoID string `json:"videoId"`
						} `json:"resourceId"`
					} `json:"snippet"`
				}
				_ = json.NewDecoder(r.Body).Decode(&item)
				if item.Snippet.PlaylistID != "PLNEW" {
					t.Errorf("unexpected playlist %s", item.Snippet.PlaylistID)
				}
				inserted = append(inserted, item.Snippet.ResourceID.VideoID)
				if item.Snippet.ResourceID.VideoID == "vid-2" {
					writeTestJSON(t, w, http.StatusConflict, map[string]any{"error": map[string]any{"code": 409, "message": "conflict"}})
					return
				}
				writeTestJSON(t, w, http.StatusOK, map[string]string{"id": "item"})
			default:
				t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
				w.WriteHeader(http.StatusNotFound)
			}
		})

		data := playlist(tracks(3))
		data.SourcePlatform = models.Spotify
		data.OriginalURL = "https://open.spotify.com/playlist/abc"

		result, err := svc.CreateAndPopulatePlaylist(ctx, data, nil)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		snippet, _ := created["snippet"].(map[string]any)
		status, _ := created["status"].(map[string]any)
		if snippet["title"] != "Road Trip (from Spotify)" || snippet["defaultLanguage"] != "en" {
			t.Errorf("unexpected snippet %v", snippet)
		}
		if snippet["description"] != "summer\n\nConverted from Spotify playlist: https://open.spotify.com/playlist/abc" {
			t.Errorf("unexpected description %q", snippet["description"])
		}
		if status["privacyStatus"] != "private" {
			t.Errorf("expected private playlist, got %v", status)
		}
		if len(queries) != 3 || queries[0] != "Song 0 Artist 0" {
			t.Errorf("expected one relaxed search per track, got %v", queries)
		}
		if strings.Join(inserted, ",") != "vid-0,vid-2" {
			t.Errorf("expected single-item inserts in order, got %v", inserted)
		}

		if result.AddedCount != 1 {
			t.Errorf("expected 1 added, got %d", result.AddedCount)
		}
		if strings.Join(result.FailedTracks, ",") != "Song 1 by Artist 1,Song 2 by Artist 2" {
			t.Errorf("unexpected failed tracks %v", result.FailedTracks)
		}
		if result.DestinationPlaylistURL != "https://music.youtube.com/playlist?list=PLNEW" {
			t.Errorf("unexpected url %s", result.DestinationPlaylistURL)
		}
	})
}
