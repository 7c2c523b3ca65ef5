// package testing contains shared testing utilities
package testing

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/desertthunder/crossfade/internal/models"
	"github.com/desertthunder/crossfade/internal/services"
	"golang.org/x/oauth2"
)

var _ services.Client = (*MockClient)(nil)

// MockClient is a test double for [services.Client].
//
// WithSession returns the same instance so call counters are shared across copies.
type MockClient struct {
	mu sync.Mutex

	PlatformID  models.Platform
	Playlist    *models.PlaylistData     // returned by FetchPlaylist
	Result      *models.ConversionResult // returned by CreateAndPopulatePlaylist; derived from the input when nil
	FetchErr    error
	ConvertErr  error
	ExchangeErr error
	RefreshErr  error
	Refreshed   *models.AuthSession // returned by Refresh and kept as the session; the current session when nil

	// Block, when set, is waited on by CreateAndPopulatePlaylist before it returns.
	Block chan struct{}

	FetchCalls   int
	ConvertCalls int
	RefreshCalls int
	Codes        []string

	session *models.AuthSession
}

// NewMockClient creates a mock for platform p that serves data from FetchPlaylist.
func NewMockClient(p models.Platform, data *models.PlaylistData) *MockClient {
	return &MockClient{PlatformID: p, Playlist: data}
}

func (m *MockClient) Name() string              { return m.PlatformID.Name() }
func (m *MockClient) Platform() models.Platform { return m.PlatformID }

func (m *MockClient) IsAuthenticated() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.session.Valid(time.Now())
}

func (m *MockClient) AuthURL(state string) (string, error) {
	return fmt.Sprintf("https://auth.example.test/%s?state=%s", m.PlatformID, state), nil
}

func (m *MockClient) ExchangeCode(_ context.Context, code string) (*models.AuthSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Codes = append(m.Codes, code)
	if m.ExchangeErr != nil {
		return nil, m.ExchangeErr
	}
	m.session = &models.AuthSession{
		AccessToken:  "access-" + code,
		RefreshToken: "refresh-" + code,
		Expiry:       time.Now().Add(time.Hour),
	}
	return m.session, nil
}

func (m *MockClient) Refresh(context.Context) (*models.AuthSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.RefreshCalls++
	if m.RefreshErr != nil {
		return nil, m.RefreshErr
	}
	if m.Refreshed != nil {
		m.session = m.Refreshed
	}
	return m.session, nil
}

func (m *MockClient) Session() *models.AuthSession {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.session
}

func (m *MockClient) SetSession(s *models.AuthSession) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.session = s
}

func (m *MockClient) OAuthConfig() *oauth2.Config { return &oauth2.Config{} }

func (m *MockClient) WithSession(s *models.AuthSession) services.Client {
	m.SetSession(s)
	return m
}

func (m *MockClient) FetchPlaylist(context.Context, string) (*models.PlaylistData, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.FetchCalls++
	if m.FetchErr != nil {
		return nil, m.FetchErr
	}
	if m.Playlist == nil {
		return nil, errors.New("no playlist configured")
	}
	cp := *m.Playlist
	return &cp, nil
}

func (m *MockClient) Profile(context.Context) (string, error) { return "mock-user", nil }
func (m *MockClient) CreatePlaylist(context.Context, string, string, string) (string, error) {
	return "mock-playlist", nil
}
func (m *MockClient) SearchTrack(context.Context, string) (*services.Hit, error) { return nil, nil }
func (m *MockClient) AddTracks(context.Context, string, []string) error          { return nil }
func (m *MockClient) PlaylistURL(id string) string                               { return "https://example.test/" + id }
func (m *MockClient) Limits() services.Limits                                    { return services.Limits{BatchSize: 1} }

// CreateAndPopulatePlaylist reports progress for every track and then returns Result. When Result is
// nil every track is reported as added.
func (m *MockClient) CreateAndPopulatePlaylist(_ context.Context, data *models.PlaylistData, onProgress services.ProgressFunc, _ ...services.Option) (*models.ConversionResult, error) {
	m.mu.Lock()
	m.ConvertCalls++
	convertErr, result, block := m.ConvertErr, m.Result, m.Block
	m.mu.Unlock()

	if convertErr != nil {
		return nil, convertErr
	}

	for i, tr := range data.Tracks {
		if onProgress != nil {
			onProgress(i+1, len(data.Tracks), tr.Title)
		}
	}
	if block != nil {
		<-block
	}

	if result != nil {
		return result, nil
	}

	result = &models.ConversionResult{
		DestinationPlaylistID:  "mock-playlist",
		DestinationPlaylistURL: m.PlaylistURL("mock-playlist"),
		FailedTracks:           []string{},
	}
	for _, tr := range data.Tracks {
		result.Matches = append(result.Matches, models.TrackMatch{Track: tr, DestinationID: "id-" + tr.Title, Added: true})
		result.AddedCount++
	}
	return result, nil
}

// SamplePlaylist builds a playlist of n tracks from platform p.
func SamplePlaylist(p models.Platform, n int) *models.PlaylistData {
	tracks := make([]models.Track, n)
	for i := range tracks {
		tracks[i] = models.Track{
			Title:    fmt.Sprintf("Song %d", i+1),
			Artist:   fmt.Sprintf("Artist %d", i+1),
			Album:    "Album",
			Duration: "3:00",
			SourceID: fmt.Sprintf("src%d", i+1),
		}
	}
	url := "https://open.spotify.com/playlist/abc123"
	if p == models.YouTube {
		url = "https://music.youtube.com/playlist?list=PLabc123"
	}
	return &models.PlaylistData{
		Title:          "Test Playlist",
		Description:    "A test playlist",
		Tracks:         tracks,
		SourcePlatform: p,
		OriginalURL:    url,
	}
}

// FWriter always returns an error on Write
type FWriter struct{}

func (f *FWriter) Write(p []byte) (n int, err error) {
	return 0, errors.New("write failed")
}

// LimitedWriter fails after a certain number of writes
type LimitedWriter struct {
	maxWrites int
	written   int
	target    io.Writer
}

func (l *LimitedWriter) Write(p []byte) (n int, err error) {
	if l.written >= l.maxWrites {
		return 0, errors.New("write limit exceeded")
	}
	l.written++
	return l.target.Write(p)
}

func NewLimitedWriter(maxWrites, written int, target io.Writer) LimitedWriter {
	return LimitedWriter{maxWrites: maxWrites, written: written, target: target}
}

func MustGetwd(t *testing.T) string {
	t.Helper()
	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("Failed to get working directory: %v", err)
	}
	return wd
}

func MustChdir(t *testing.T, dir string) {
	t.Helper()
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("Failed to change directory to %s: %v", dir, err)
	}
}

func AssertFileExists(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Errorf("File does not exist: %s", path)
	}
}

func MustReadFile(t *testing.T, path string) string {
	t.Helper()
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read file %s: %v", path, err)
	}
	return string(content)
}
