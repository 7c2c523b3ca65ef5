package models

import (
	"errors"
	"testing"
	"time"
)

func TestPlatform(t *testing.T) {
	t.Run("Name and Other", func(t *testing.T) {
		if Spotify.Name() != "Spotify" || YouTube.Name() != "YouTube Music" {
			t.Error("unexpected platform names")
		}
		if Spotify.Other() != YouTube || YouTube.Other() != Spotify {
			t.Error("Other should swap platforms")
		}
	})

	t.Run("ParsePlatform", func(t *testing.T) {
		for in, want := range map[string]Platform{"Spotify": Spotify, " ytmusic ": YouTube, "youtube": YouTube} {
			got, err := ParsePlatform(in)
			if err != nil || got != want {
				t.Errorf("ParsePlatform(%q) = %v, %v", in, got, err)
			}
		}
		if _, err := ParsePlatform("deezer"); err == nil {
			t.Error("expected error for unknown platform")
		}
	})
}

func TestAuthSession(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	tc := []struct {
		name    string
		session *AuthSession
		want    bool
	}{
		{"nil", nil, false},
		{"empty token", &AuthSession{Expiry: now.Add(time.Hour)}, false},
		{"before expiry", &AuthSession{AccessToken: "t", Expiry: now.Add(time.Second)}, true},
		{"at expiry", &AuthSession{AccessToken: "t", Expiry: now}, false},
		{"after expiry", &AuthSession{AccessToken: "t", Expiry: now.Add(-time.Minute)}, false},
		{"no expiry", &AuthSession{AccessToken: "t"}, true},
	}

	for _, tt := range tc {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.session.Valid(now); got != tt.want {
				t.Errorf("Valid() = %v, want %v", got, tt.want)
			}
		})
	}

	t.Run("token conversion", func(t *testing.T) {
		s := &AuthSession{AccessToken: "a", RefreshToken: "r", Expiry: now}
		back := SessionFromToken(s.Token())
		if *back != *s {
			t.Errorf("round trip mismatch: %+v", back)
		}
		if !s.CanRefresh() {
			t.Error("expected CanRefresh")
		}
	})
}

func TestConversionResult(t *testing.T) {
	r := &ConversionResult{AddedCount: 3, FailedTracks: []string{"x by y"}}
	if r.Total() != 4 {
		t.Errorf("expected total 4, got %d", r.Total())
	}
	if r.MatchRate() != 75 {
		t.Errorf("expected 75%%, got %v", r.MatchRate())
	}
	if (&ConversionResult{}).MatchRate() != 0 {
		t.Error("expected 0 match rate for empty result")
	}
	if (Track{Title: "Song", Artist: "Band"}).Label() != "Song by Band" {
		t.Error("unexpected label")
	}
}

func TestConversionRecord(t *testing.T) {
	data := &PlaylistData{
		Title:          "Mix",
		SourcePlatform: Spotify,
		OriginalURL:    "https://open.spotify.com/playlist/abc",
		Tracks:         []Track{{Title: "a", Artist: "b"}, {Title: "c", Artist: "d"}},
	}

	t.Run("new record validates", func(t *testing.T) {
		rec := NewConversionRecord(data)
		if rec.DestinationPlatform() != YouTube {
			t.Errorf("expected youtube destination, got %s", rec.DestinationPlatform())
		}
		if err := rec.Validate(); err != nil {
			t.Errorf("unexpected validation error: %v", err)
		}
	})

	t.Run("complete copies result", func(t *testing.T) {
		rec := NewConversionRecord(data)
		rec.Complete(&ConversionResult{
			DestinationPlaylistID:  "PL1",
			DestinationPlaylistURL: "https://music.youtube.com/playlist?list=PL1",
			AddedCount:             1,
			FailedTracks:           []string{"c by d"},
			Matches: []TrackMatch{
				{Track: data.Tracks[0], DestinationID: "v1", Tier: TierScoped, Added: true},
				{Track: data.Tracks[1]},
			},
		})
		if rec.Status() != StatusCompleted || rec.AddedCount() != 1 || rec.FailedCount() != 1 {
			t.Errorf("unexpected record state: %+v", rec)
		}
		if len(rec.Tracks()) != 2 || !rec.Tracks()[0].Added || rec.Tracks()[1].Position != 1 {
			t.Errorf("unexpected tracks: %+v", rec.Tracks())
		}
		if err := rec.Validate(); err != nil {
			t.Errorf("unexpected validation error: %v", err)
		}
	})

	t.Run("complete with unreconciled counts fails validation", func(t *testing.T) {
		rec := NewConversionRecord(data)
		rec.Complete(&ConversionResult{AddedCount: 1})
		if err := rec.Validate(); err == nil {
			t.Error("expected validation error")
		}
	})

	t.Run("fail stores message", func(t *testing.T) {
		rec := NewConversionRecord(data)
		rec.Fail(errors.New("boom"))
		if rec.Status() != StatusFailed || rec.Error() != "boom" {
			t.Errorf("unexpected record state: %s %s", rec.Status(), rec.Error())
		}
	})
}
