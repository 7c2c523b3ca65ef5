package parser

import (
	"regexp"
	"strings"

	"github.com/desertthunder/crossfade/internal/models"
)

// Parsed is a recognized playlist link.
type Parsed struct {
	Platform    models.Platform `json:"platform"`
	PlaylistID  string          `json:"playlistId"`
	OriginalURL string          `json:"originalUrl"`
}

type rule struct {
	platform models.Platform
	pattern  *regexp.Regexp
}

// Spotify shapes are checked before YouTube shapes, and the first match wins.
var rules = []rule{
	{models.Spotify, regexp.MustCompile(`spotify\.com/playlist/([a-zA-Z0-9]+)`)},
	{models.Spotify, regexp.MustCompile(`open\.spotify\.com/playlist/([a-zA-Z0-9]+)`)},
	{models.YouTube, regexp.MustCompile(`music\.youtube\.com/playlist\?list=([a-zA-Z0-9_-]+)`)},
	{models.YouTube, regexp.MustCompile(`youtube\.com/playlist\?list=([a-zA-Z0-9_-]+)`)},
}

// Parse classifies raw as a Spotify or YouTube Music playlist link.
// It reports false for anything it does not recognize.
func Parse(raw string) (*Parsed, bool) {
	url := strings.TrimSpace(raw)
	for _, r := range rules {
		if m := r.pattern.FindStringSubmatch(url); m != nil {
			return &Parsed{Platform: r.platform, PlaylistID: m[1], OriginalURL: url}, true
		}
	}
	return nil, false
}

var bareID = map[models.Platform]*regexp.Regexp{
	models.Spotify: regexp.MustCompile(`^[a-zA-Z0-9]+$`),
	models.YouTube: regexp.MustCompile(`^[a-zA-Z0-9_-]+$`),
}

// FromID builds a Parsed value for a bare playlist id on a known platform.
func FromID(platform models.Platform, id string) (*Parsed, bool) {
	id = strings.TrimSpace(id)
	re, ok := bareID[platform]
	if !ok || !re.MatchString(id) {
		return nil, false
	}
	return &Parsed{Platform: platform, PlaylistID: id, OriginalURL: CanonicalURL(platform, id)}, true
}

// CanonicalURL returns the public web link for a playlist id.
func CanonicalURL(platform models.Platform, id string) string {
	switch platform {
	case models.Spotify:
		return "https://open.spotify.com/playlist/" + id
	case models.YouTube:
		return "https://music.youtube.com/playlist?list=" + id
	}
	return ""
}
