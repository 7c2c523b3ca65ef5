package models

import "fmt"

// Track is a song in platform-neutral form. Matching identity is (Title, Artist).
type Track struct {
	Title           string `json:"title"`
	Artist          string `json:"artist"`
	Album           string `json:"album,omitempty"`
	DurationSeconds int    `json:"durationSeconds,omitempty"`
	Duration        string `json:"duration,omitempty"` // m:ss, empty when the platform omits it
	SourceID        string `json:"sourcePlatformTrackId,omitempty"`
}

// Label renders the track the way failed matches are reported: "title by artist".
func (t Track) Label() string {
	return fmt.Sprintf("%s by %s", t.Title, t.Artist)
}

// PlaylistData is a source playlist read from one platform. It is read-only once built.
type PlaylistData struct {
	Title          string   `json:"title"`
	Description    string   `json:"description,omitempty"`
	Tracks         []Track  `json:"tracks"`
	SourcePlatform Platform `json:"sourcePlatform"`
	OriginalURL    string   `json:"originalUrl"`
}

// QueryTier records which search attempt produced a match.
type QueryTier string

const (
	TierScoped  QueryTier = "scoped"
	TierRelaxed QueryTier = "relaxed"
	TierNone    QueryTier = ""
)

// TrackMatch is the per-track outcome of a conversion.
type TrackMatch struct {
	Track         Track     `json:"track"`
	DestinationID string    `json:"destinationId,omitempty"`
	Tier          QueryTier `json:"tier,omitempty"`
	Score         float64   `json:"score,omitempty"` // similarity of source and destination title/artist, 0..1
	Added         bool      `json:"added"`
}

// ConversionResult is the reconciled outcome of recreating a playlist.
//
// AddedCount + len(FailedTracks) always equals the number of source tracks.
type ConversionResult struct {
	DestinationPlaylistID  string       `json:"destinationPlaylistId"`
	DestinationPlaylistURL string       `json:"destinationPlaylistUrl"`
	AddedCount             int          `json:"addedCount"`
	FailedTracks           []string     `json:"failedTracks"`
	Matches                []TrackMatch `json:"matches,omitempty"`
}

// Total is the number of source tracks accounted for.
func (r *ConversionResult) Total() int {
	return r.AddedCount + len(r.FailedTracks)
}

// MatchRate is the share of tracks added, as a percentage.
func (r *ConversionResult) MatchRate() float64 {
	if r.Total() == 0 {
		return 0
	}
	return float64(r.AddedCount) / float64(r.Total()) * 100
}
