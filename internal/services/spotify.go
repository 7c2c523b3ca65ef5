package services

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/crossfade/internal/models"
	"github.com/desertthunder/crossfade/internal/shared"
	"github.com/zmb3/spotify/v2"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

const (
	spotifyAuthURL  = "https://accounts.spotify.com/authorize"
	spotifyTokenURL = "https://accounts.spotify.com/api/token"
	spotifyAPIURL   = "https://api.spotify.com/v1/"

	spotifyMaxDescription = 300
	spotifyBatchSize      = 100
	spotifyPageSize       = 100

	// appTokenTTL is kept under the provider's one hour lifetime.
	appTokenTTL = 3500 * time.Second
)

var spotifyScopes = []string{
	"playlist-modify-public",
	"playlist-modify-private",
	"user-read-private",
	"user-read-email",
}

// SpotifyOptions configures a [SpotifyService]. Empty URLs use the public Spotify endpoints.
type SpotifyOptions struct {
	Credentials shared.OAuthCredentials
	Convert     shared.ConvertConfig
	HTTPClient  *http.Client
	Logger      *log.Logger
	APIURL      string
	AuthURL     string
	TokenURL    string
}

// appToken caches the client-credentials session shared by every copy of a service.
type appToken struct {
	mu      sync.Mutex
	session *models.AuthSession
}

// SpotifyService implements [Client] with the Spotify Web API.
type SpotifyService struct {
	creds      shared.OAuthCredentials
	oauth      *oauth2.Config
	apiURL     string
	httpClient *http.Client
	limits     Limits
	logger     *log.Logger
	app        *appToken
	session    *models.AuthSession
	now        func() time.Time
}

var _ Client = (*SpotifyService)(nil)

// NewSpotifyService creates a Spotify client. Missing credentials are reported by each operation,
// before any request is made.
func NewSpotifyService(opts SpotifyOptions) *SpotifyService {
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: opts.Convert.Timeout()}
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(io.Discard)
	}
	if opts.APIURL == "" {
		opts.APIURL = spotifyAPIURL
	}
	if !strings.HasSuffix(opts.APIURL, "/") {
		opts.APIURL += "/"
	}
	if opts.AuthURL == "" {
		opts.AuthURL = spotifyAuthURL
	}
	if opts.TokenURL == "" {
		opts.TokenURL = spotifyTokenURL
	}

	return &SpotifyService{
		creds: opts.Credentials,
		oauth: &oauth2.Config{
			ClientID:     opts.Credentials.ClientID,
			ClientSecret: opts.Credentials.ClientSecret,
			RedirectURL:  opts.Credentials.RedirectURI,
			Scopes:       spotifyScopes,
			Endpoint: oauth2.Endpoint{
				AuthURL:   opts.AuthURL,
				TokenURL:  opts.TokenURL,
				AuthStyle: oauth2.AuthStyleInHeader,
			},
		},
		apiURL:     opts.APIURL,
		httpClient: opts.HTTPClient,
		limits: Limits{
			MaxDescription:       spotifyMaxDescription,
			DescriptionSeparator: " - ",
			BatchSize:            spotifyBatchSize,
			ScopedSearch:         true,
			SearchDelay:          opts.Convert.SearchDelay(),
			BatchDelay:           opts.Convert.BatchDelay(),
		},
		logger: opts.Logger.With("service", "spotify"),
		app:    &appToken{},
		now:    time.Now,
	}
}

func (s *SpotifyService) Name() string              { return models.Spotify.Name() }
func (s *SpotifyService) Platform() models.Platform { return models.Spotify }
func (s *SpotifyService) Limits() Limits            { return s.limits }
func (s *SpotifyService) OAuthConfig() *oauth2.Config {
	return s.oauth
}

// WithSession returns a copy holding session. The app token cache is shared.
func (s *SpotifyService) WithSession(session *models.AuthSession) Client {
	c := *s
	c.session = session
	return &c
}

func (s *SpotifyService) Session() *models.AuthSession           { return s.session }
func (s *SpotifyService) SetSession(session *models.AuthSession) { s.session = session }

func (s *SpotifyService) IsAuthenticated() bool {
	return s.session.Valid(s.now())
}

// AuthURL returns the consent URL for the playlist-modify and profile scopes.
func (s *SpotifyService) AuthURL(state string) (string, error) {
	if err := s.requireCredentials(); err != nil {
		return "", err
	}
	return s.oauth.AuthCodeURL(state), nil
}

// ExchangeCode redeems code for a user session.
func (s *SpotifyService) ExchangeCode(ctx context.Context, code string) (*models.AuthSession, error) {
	if err := s.requireCredentials(); err != nil {
		return nil, err
	}

	token, err := s.oauth.Exchange(s.oauthContext(ctx), code)
	if err != nil {
		return nil, exchangeError(s.Name(), ReasonForExchange(err), err)
	}

	s.session = models.SessionFromToken(token)
	s.logger.Info("authorization code exchanged", "expiry", token.Expiry)
	return s.session, nil
}

// Refresh refreshes an expired user session through the token endpoint.
func (s *SpotifyService) Refresh(ctx context.Context) (*models.AuthSession, error) {
	if err := s.requireCredentials(); err != nil {
		return nil, err
	}
	session, err := ensureSession(s.oauthContext(ctx), s.Name(), s.oauth, s.session, s.now())
	if err != nil {
		return nil, err
	}
	s.session = session
	return session, nil
}

// FetchPlaylist reads a playlist with all of its tracks. The user session is used when present,
// otherwise an app token from the client-credentials grant.
func (s *SpotifyService) FetchPlaylist(ctx context.Context, playlistID string) (*models.PlaylistData, error) {
	if err := s.requireCredentials(); err != nil {
		return nil, err
	}

	client, err := s.readClient(ctx)
	if err != nil {
		return nil, err
	}

	pl, err := client.GetPlaylist(ctx, spotify.ID(playlistID), spotify.Fields("id,name,description,external_urls"))
	if err != nil {
		return nil, s.upstream("get playlist", err)
	}

	data := &models.PlaylistData{
		Title:          pl.Name,
		Description:    pl.Description,
		SourcePlatform: models.Spotify,
		OriginalURL:    pl.ExternalURLs["spotify"],
		Tracks:         []models.Track{},
	}
	if data.OriginalURL == "" {
		data.OriginalURL = s.PlaylistURL(playlistID)
	}

	for offset := 0; ; {
		page, err := client.GetPlaylistItems(ctx, spotify.ID(playlistID), spotify.Limit(spotifyPageSize), spotify.Offset(offset))
		if err != nil {
			return nil, s.upstream("get playlist items", err)
		}

		for _, item := range page.Items {
			if t := item.Track.Track; t != nil {
				data.Tracks = append(data.Tracks, spotifyTrack(t))
			}
		}

		offset += len(page.Items)
		if page.Next == "" || len(page.Items) == 0 {
			break
		}
	}

	s.logger.Debug("fetched playlist", "id", playlistID, "tracks", len(data.Tracks))
	return data, nil
}

func spotifyTrack(t *spotify.FullTrack) models.Track {
	artists := make([]string, len(t.Artists))
	for i, a := range t.Artists {
		artists[i] = a.Name
	}

	ms := int(t.Duration)
	return models.Track{
		Title:           t.Name,
		Artist:          strings.Join(artists, ", "),
		Album:           t.Album.Name,
		DurationSeconds: ms / 1000,
		Duration:        shared.FormatDuration(ms),
		SourceID:        string(t.ID),
	}
}

// Profile returns the current user's id.
func (s *SpotifyService) Profile(ctx context.Context) (string, error) {
	client, err := s.userClient()
	if err != nil {
		return "", err
	}
	user, err := client.CurrentUser(ctx)
	if err != nil {
		return "", s.upstream("get current user", err)
	}
	return user.ID, nil
}

// CreatePlaylist creates a private, non-collaborative playlist.
func (s *SpotifyService) CreatePlaylist(ctx context.Context, userID, name, description string) (string, error) {
	client, err := s.userClient()
	if err != nil {
		return "", err
	}
	pl, err := client.CreatePlaylistForUser(ctx, userID, name, description, false, false)
	if err != nil {
		return "", s.upstream("create playlist", err)
	}
	return string(pl.ID), nil
}

// SearchTrack returns the top track result for query.
func (s *SpotifyService) SearchTrack(ctx context.Context, query string) (*Hit, error) {
	client, err := s.userClient()
	if err != nil {
		return nil, err
	}
	res, err := client.Search(ctx, query, spotify.SearchTypeTrack, spotify.Limit(1))
	if err != nil {
		return nil, s.upstream("search", err)
	}
	if res.Tracks == nil || len(res.Tracks.Tracks) == 0 {
		return nil, nil
	}

	t := spotifyTrack(&res.Tracks.Tracks[0])
	return &Hit{ID: t.SourceID, Title: t.Title, Artist: t.Artist}, nil
}

// AddTracks appends up to 100 tracks to a playlist in one request.
func (s *SpotifyService) AddTracks(ctx context.Context, playlistID string, ids []string) error {
	client, err := s.userClient()
	if err != nil {
		return err
	}

	trackIDs := make([]spotify.ID, len(ids))
	for i, id := range ids {
		trackIDs[i] = spotify.ID(id)
	}
	if _, err := client.AddTracksToPlaylist(ctx, spotify.ID(playlistID), trackIDs...); err != nil {
		return s.upstream("add tracks", err)
	}
	return nil
}

func (s *SpotifyService) PlaylistURL(playlistID string) string {
	return "https://open.spotify.com/playlist/" + playlistID
}

// CreateAndPopulatePlaylist recreates data as a Spotify playlist.
func (s *SpotifyService) CreateAndPopulatePlaylist(ctx context.Context, data *models.PlaylistData, onProgress ProgressFunc, opts ...Option) (*models.ConversionResult, error) {
	if err := s.requireCredentials(); err != nil {
		return nil, err
	}
	return Populate(ctx, s, data, onProgress, append([]Option{WithLogger(s.logger)}, opts...)...)
}

func (s *SpotifyService) requireCredentials() error {
	return s.creds.Require(s.Name())
}

func (s *SpotifyService) oauthContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, s.httpClient)
}

// userClient builds an API client on the held user session, which must be valid.
func (s *SpotifyService) userClient() (*spotify.Client, error) {
	if err := s.requireCredentials(); err != nil {
		return nil, err
	}
	if err := sessionError(s.Name(), s.session, s.now()); err != nil {
		return nil, err
	}
	return s.client(s.session), nil
}

// readClient prefers the user session and falls back to an app token.
func (s *SpotifyService) readClient(ctx context.Context) (*spotify.Client, error) {
	if s.session.Valid(s.now()) {
		return s.client(s.session), nil
	}
	session, err := s.appSession(ctx)
	if err != nil {
		return nil, err
	}
	return s.client(session), nil
}

// appSession returns the cached client-credentials session, fetching a new one once it has expired.
func (s *SpotifyService) appSession(ctx context.Context) (*models.AuthSession, error) {
	s.app.mu.Lock()
	defer s.app.mu.Unlock()

	now := s.now()
	if s.app.session.Valid(now) {
		return s.app.session, nil
	}

	cc := clientcredentials.Config{
		ClientID:     s.creds.ClientID,
		ClientSecret: s.creds.ClientSecret,
		TokenURL:     s.oauth.Endpoint.TokenURL,
		AuthStyle:    oauth2.AuthStyleInHeader,
	}
	token, err := cc.Token(s.oauthContext(ctx))
	if err != nil {
		return nil, exchangeError(s.Name(), shared.ReasonExchange, err)
	}

	s.app.session = &models.AuthSession{AccessToken: token.AccessToken, Expiry: now.Add(appTokenTTL)}
	s.logger.Debug("issued app token", "expiry", s.app.session.Expiry)
	return s.app.session, nil
}

func (s *SpotifyService) client(session *models.AuthSession) *spotify.Client {
	hc := &http.Client{
		Timeout: s.httpClient.Timeout,
		Transport: &oauth2.Transport{
			Source: oauth2.StaticTokenSource(session.Token()),
			Base:   s.httpClient.Transport,
		},
	}
	return spotify.New(hc, spotify.WithBaseURL(s.apiURL), spotify.WithRetry(true))
}

// upstream converts a Web API failure. A 401 means the session was rejected.
func (s *SpotifyService) upstream(op string, err error) error {
	var apiErr spotify.Error
	if errors.As(err, &apiErr) {
		if apiErr.Status == http.StatusUnauthorized {
			return &shared.AuthError{Platform: s.Name(), Reason: shared.ReasonExpired, Err: err}
		}
		return &shared.UpstreamError{Platform: s.Name(), Op: op, Status: apiErr.Status, Message: apiErr.Message, Err: err}
	}

	var authErr *shared.AuthError
	if errors.As(err, &authErr) {
		return err
	}
	return &shared.UpstreamError{Platform: s.Name(), Op: op, Err: err}
}
