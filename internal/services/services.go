package services

import (
	"context"
	"time"

	"github.com/desertthunder/crossfade/internal/models"
	"golang.org/x/oauth2"
)

// Service identifies a music platform client.
type Service interface {
	Name() string              // Name returns the user-facing platform name
	Platform() models.Platform // Platform returns the platform identifier
}

// Authenticator covers the OAuth authorization-code flow and the held user session.
type Authenticator interface {
	// IsAuthenticated reports whether the held user session is usable now.
	IsAuthenticated() bool

	// AuthURL builds the provider consent URL for the given state token.
	AuthURL(state string) (string, error)

	// ExchangeCode redeems a one-time authorization code and holds the resulting session.
	ExchangeCode(ctx context.Context, code string) (*models.AuthSession, error)

	// Refresh refreshes an expired session when a refresh token is available.
	Refresh(ctx context.Context) (*models.AuthSession, error)

	Session() *models.AuthSession
	SetSession(session *models.AuthSession)
	OAuthConfig() *oauth2.Config
}

// Source reads playlists.
type Source interface {
	FetchPlaylist(ctx context.Context, playlistID string) (*models.PlaylistData, error)
}

// Hit is the top search result on a destination platform.
type Hit struct {
	ID     string
	Title  string
	Artist string
}

// Limits describes destination constraints used by [Populate].
type Limits struct {
	MaxDescription       int           // maximum description length in characters, 0 for none
	DescriptionSeparator string        // placed between the source description and the attribution line
	BatchSize            int           // maximum items per add call
	ScopedSearch         bool          // whether the search endpoint understands track:"" artist:"" filters
	SearchDelay          time.Duration // pause between search calls
	BatchDelay           time.Duration // pause between add calls
}

// Destination exposes the primitive write operations of a platform.
type Destination interface {
	Service
	Profile(ctx context.Context) (string, error)
	CreatePlaylist(ctx context.Context, userID, name, description string) (string, error)
	SearchTrack(ctx context.Context, query string) (*Hit, error) // nil Hit means no result
	AddTracks(ctx context.Context, playlistID string, ids []string) error
	PlaylistURL(playlistID string) string
	Limits() Limits
}

// Client is a complete platform client.
type Client interface {
	Service
	Authenticator
	Source
	Destination

	// CreateAndPopulatePlaylist recreates data on this platform. See [Populate].
	CreateAndPopulatePlaylist(ctx context.Context, data *models.PlaylistData, onProgress ProgressFunc, opts ...Option) (*models.ConversionResult, error)

	// WithSession returns a copy of the client holding session. Shared caches are kept.
	WithSession(session *models.AuthSession) Client
}
