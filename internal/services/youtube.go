package services

import (
	"context"
	"errors"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/crossfade/internal/models"
	"github.com/desertthunder/crossfade/internal/shared"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	"google.golang.org/api/youtube/v3"
)

const (
	youtubeMaxDescription = 5000
	youtubePageSize       = 50
	youtubeMusicCategory  = "10"

	unknownTitle  = "Unknown Title"
	unknownArtist = "Unknown Artist"
)

var youtubeScopes = []string{
	youtube.YoutubeScope,
	youtube.YoutubeForceSslScope,
}

var channelSuffixes = []*regexp.Regexp{
	regexp.MustCompile(`\s-\sTopic$`),
	regexp.MustCompile(`\sVEVO$`),
	regexp.MustCompile(`\sOfficial$`),
}

// YouTubeOptions configures a [YouTubeService]. Endpoint overrides the Data API base URL.
type YouTubeOptions struct {
	Credentials shared.OAuthCredentials
	Convert     shared.ConvertConfig
	HTTPClient  *http.Client
	Logger      *log.Logger
	Endpoint    string
	AuthURL     string
	TokenURL    string
}

// YouTubeService implements [Client] with the YouTube Data API v3.
// Every call, reads included, needs the user's delegated session.
type YouTubeService struct {
	creds      shared.OAuthCredentials
	oauth      *oauth2.Config
	endpoint   string
	httpClient *http.Client
	limits     Limits
	logger     *log.Logger
	session    *models.AuthSession
	now        func() time.Time
}

var _ Client = (*YouTubeService)(nil)

// NewYouTubeService creates a YouTube client.
func NewYouTubeService(opts YouTubeOptions) *YouTubeService {
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: opts.Convert.Timeout()}
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(io.Discard)
	}

	endpoint := google.Endpoint
	if opts.AuthURL != "" {
		endpoint.AuthURL = opts.AuthURL
	}
	if opts.TokenURL != "" {
		endpoint.TokenURL = opts.TokenURL
	}

	return &YouTubeService{
		creds: opts.Credentials,
		oauth: &oauth2.Config{
			ClientID:     opts.Credentials.ClientID,
			ClientSecret: opts.Credentials.ClientSecret,
			RedirectURL:  opts.Credentials.RedirectURI,
			Scopes:       youtubeScopes,
			Endpoint:     endpoint,
		},
		endpoint:   opts.Endpoint,
		httpClient: opts.HTTPClient,
		limits: Limits{
			MaxDescription:       youtubeMaxDescription,
			DescriptionSeparator: "\n\n",
			BatchSize:            1,
			ScopedSearch:         false,
			SearchDelay:          opts.Convert.SearchDelay(),
			BatchDelay:           opts.Convert.BatchDelay(),
		},
		logger: opts.Logger.With("service", "youtube"),
		now:    time.Now,
	}
}

func (y *YouTubeService) Name() string                { return models.YouTube.Name() }
func (y *YouTubeService) Platform() models.Platform   { return models.YouTube }
func (y *YouTubeService) Limits() Limits              { return y.limits }
func (y *YouTubeService) OAuthConfig() *oauth2.Config { return y.oauth }

func (y *YouTubeService) WithSession(session *models.AuthSession) Client {
	c := *y
	c.session = session
	return &c
}

func (y *YouTubeService) Session() *models.AuthSession           { return y.session }
func (y *YouTubeService) SetSession(session *models.AuthSession) { y.session = session }

func (y *YouTubeService) IsAuthenticated() bool {
	return y.session.Valid(y.now())
}

// AuthURL requests offline access with a forced consent screen so a refresh token is always issued.
func (y *YouTubeService) AuthURL(state string) (string, error) {
	if err := y.requireCredentials(); err != nil {
		return "", err
	}
	return y.oauth.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.SetAuthURLParam("prompt", "consent")), nil
}

func (y *YouTubeService) ExchangeCode(ctx context.Context, code string) (*models.AuthSession, error) {
	if err := y.requireCredentials(); err != nil {
		return nil, err
	}

	token, err := y.oauth.Exchange(y.oauthContext(ctx), code)
	if err != nil {
		return nil, exchangeError(y.Name(), ReasonForExchange(err), err)
	}

	y.session = models.SessionFromToken(token)
	y.logger.Info("authorization code exchanged", "expiry", token.Expiry)
	return y.session, nil
}

func (y *YouTubeService) Refresh(ctx context.Context) (*models.AuthSession, error) {
	if err := y.requireCredentials(); err != nil {
		return nil, err
	}
	session, err := ensureSession(y.oauthContext(ctx), y.Name(), y.oauth, y.session, y.now())
	if err != nil {
		return nil, err
	}
	y.session = session
	return session, nil
}

// FetchPlaylist reads playlist metadata and then every page of its items.
func (y *YouTubeService) FetchPlaylist(ctx context.Context, playlistID string) (*models.PlaylistData, error) {
	svc, err := y.api(ctx)
	if err != nil {
		return nil, err
	}

	resp, err := svc.Playlists.List([]string{"snippet"}).Id(playlistID).Context(ctx).Do()
	if err != nil {
		return nil, y.upstream("list playlists", err)
	}
	if len(resp.Items) == 0 || resp.Items[0].Snippet == nil {
		return nil, &shared.UpstreamError{
			Platform: y.Name(), Op: "list playlists", Status: http.StatusNotFound,
			Message: "playlist not found", Err: shared.ErrPlaylistNotFound,
		}
	}

	snippet := resp.Items[0].Snippet
	data := &models.PlaylistData{
		Title:          snippet.Title,
		Description:    snippet.Description,
		SourcePlatform: models.YouTube,
		OriginalURL:    y.PlaylistURL(playlistID),
		Tracks:         []models.Track{},
	}
	if data.Title == "" {
		data.Title = "Untitled Playlist"
	}

	call := svc.PlaylistItems.List([]string{"snippet", "contentDetails"}).
		PlaylistId(playlistID).
		MaxResults(youtubePageSize)

	pageToken := ""
	for {
		page, err := call.PageToken(pageToken).Context(ctx).Do()
		if err != nil {
			return nil, y.upstream("list playlist items", err)
		}

		for _, item := range page.Items {
			data.Tracks = append(data.Tracks, youtubeTrack(item))
		}

		pageToken = page.NextPageToken
		if pageToken == "" {
			break
		}
	}

	y.logger.Debug("fetched playlist", "id", playlistID, "tracks", len(data.Tracks))
	return data, nil
}

func youtubeTrack(item *youtube.PlaylistItem) models.Track {
	t := models.Track{Title: unknownTitle, Artist: unknownArtist}
	if s := item.Snippet; s != nil {
		if s.Title != "" {
			t.Title = s.Title
		}
		channel := s.VideoOwnerChannelTitle
		if channel == "" {
			channel = s.ChannelTitle
		}
		t.Artist = VideoArtist(t.Title, channel)
		if s.ResourceId != nil {
			t.SourceID = s.ResourceId.VideoId
		}
	}
	if item.ContentDetails != nil && item.ContentDetails.VideoId != "" {
		t.SourceID = item.ContentDetails.VideoId
	}
	return t
}

// VideoArtist guesses the artist of a music video. An "Artist - Song" title wins over the channel
// name, which is stripped of its Topic, VEVO and Official suffixes.
func VideoArtist(title, channel string) string {
	if before, _, ok := strings.Cut(title, " - "); ok {
		return strings.TrimSpace(before)
	}

	artist := channel
	for _, re := range channelSuffixes {
		artist = re.ReplaceAllString(artist, "")
	}
	if artist == "" {
		return unknownArtist
	}
	return artist
}

// Profile returns the id of the authenticated user's channel.
func (y *YouTubeService) Profile(ctx context.Context) (string, error) {
	svc, err := y.api(ctx)
	if err != nil {
		return "", err
	}
	resp, err := svc.Channels.List([]string{"id"}).Mine(true).Context(ctx).Do()
	if err != nil {
		return "", y.upstream("list channels", err)
	}
	if len(resp.Items) == 0 {
		return "", &shared.UpstreamError{Platform: y.Name(), Op: "list channels", Status: http.StatusNotFound, Message: "no channel for user"}
	}
	return resp.Items[0].Id, nil
}

// CreatePlaylist creates a private playlist owned by the authenticated channel; userID is unused.
func (y *YouTubeService) CreatePlaylist(ctx context.Context, _ string, name, description string) (string, error) {
	svc, err := y.api(ctx)
	if err != nil {
		return "", err
	}

	pl := &youtube.Playlist{
		Snippet: &youtube.PlaylistSnippet{
			Title:           name,
			Description:     description,
			DefaultLanguage: "en",
		},
		Status: &youtube.PlaylistStatus{PrivacyStatus: "private"},
	}
	created, err := svc.Playlists.Insert([]string{"snippet", "status"}, pl).Context(ctx).Do()
	if err != nil {
		return "", y.upstream("insert playlist", err)
	}
	return created.Id, nil
}

// SearchTrack returns the top music video for query.
func (y *YouTubeService) SearchTrack(ctx context.Context, query string) (*Hit, error) {
	svc, err := y.api(ctx)
	if err != nil {
		return nil, err
	}

	resp, err := svc.Search.List([]string{"snippet"}).
		Q(query).
		Type("video").
		VideoCategoryId(youtubeMusicCategory).
		MaxResults(1).
		Context(ctx).
		Do()
	if err != nil {
		return nil, y.upstream("search", err)
	}
	if len(resp.Items) == 0 || resp.Items[0].Id == nil || resp.Items[0].Id.VideoId == "" {
		return nil, nil
	}

	item := resp.Items[0]
	hit := &Hit{ID: item.Id.VideoId}
	if item.Snippet != nil {
		hit.Title = item.Snippet.Title
		hit.Artist = VideoArtist(item.Snippet.Title, item.Snippet.ChannelTitle)
	}
	return hit, nil
}

// AddTracks inserts videos one at a time. The first failure aborts the remaining ids.
func (y *YouTubeService) AddTracks(ctx context.Context, playlistID string, ids []string) error {
	svc, err := y.api(ctx)
	if err != nil {
		return err
	}

	for _, id := range ids {
		item := &youtube.PlaylistItem{
			Snippet: &youtube.PlaylistItemSnippet{
				PlaylistId: playlistID,
				ResourceId: &youtube.ResourceId{Kind: "youtube#video", VideoId: id},
			},
		}
		if _, err := svc.PlaylistItems.Insert([]string{"snippet"}, item).Context(ctx).Do(); err != nil {
			return y.upstream("insert playlist item", err)
		}
	}
	return nil
}

func (y *YouTubeService) PlaylistURL(playlistID string) string {
	return "https://music.youtube.com/playlist?list=" + playlistID
}

// CreateAndPopulatePlaylist recreates data as a YouTube playlist.
func (y *YouTubeService) CreateAndPopulatePlaylist(ctx context.Context, data *models.PlaylistData, onProgress ProgressFunc, opts ...Option) (*models.ConversionResult, error) {
	if err := y.requireCredentials(); err != nil {
		return nil, err
	}
	return Populate(ctx, y, data, onProgress, append([]Option{WithLogger(y.logger)}, opts...)...)
}

func (y *YouTubeService) requireCredentials() error {
	return y.creds.Require(y.Name())
}

func (y *YouTubeService) oauthContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, y.httpClient)
}

// api builds a Data API client on the held session.
func (y *YouTubeService) api(ctx context.Context) (*youtube.Service, error) {
	if err := y.requireCredentials(); err != nil {
		return nil, err
	}
	if err := sessionError(y.Name(), y.session, y.now()); err != nil {
		return nil, err
	}

	hc := &http.Client{
		Timeout: y.httpClient.Timeout,
		Transport: &oauth2.Transport{
			Source: oauth2.StaticTokenSource(y.session.Token()),
			Base:   y.httpClient.Transport,
		},
	}

	opts := []option.ClientOption{option.WithHTTPClient(hc)}
	if y.endpoint != "" {
		opts = append(opts, option.WithEndpoint(y.endpoint))
	}

	svc, err := youtube.NewService(ctx, opts...)
	if err != nil {
		return nil, &shared.UpstreamError{Platform: y.Name(), Op: "create client", Err: err}
	}
	return svc, nil
}

func (y *YouTubeService) upstream(op string, err error) error {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		if gerr.Code == http.StatusUnauthorized {
			return &shared.AuthError{Platform: y.Name(), Reason: shared.ReasonExpired, Err: err}
		}
		return &shared.UpstreamError{Platform: y.Name(), Op: op, Status: gerr.Code, Message: gerr.Message, Err: err}
	}
	return &shared.UpstreamError{Platform: y.Name(), Op: op, Err: err}
}
