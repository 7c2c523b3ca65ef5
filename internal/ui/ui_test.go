package ui

import (
	"context"
	"errors"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/crossfade/internal/models"
	"github.com/desertthunder/crossfade/internal/services"
	"github.com/desertthunder/crossfade/internal/tasks"
	th "github.com/desertthunder/crossfade/internal/testing"
)

const playlistURL = "https://open.spotify.com/playlist/abc123"

func newTestModel(t *testing.T) (*Model, *th.MockClient, *th.MockClient) {
	t.Helper()
	spotify := th.NewMockClient(models.Spotify, th.SamplePlaylist(models.Spotify, 3))
	youtube := th.NewMockClient(models.YouTube, th.SamplePlaylist(models.YouTube, 2))
	engine := tasks.NewEngine([]services.Client{spotify, youtube})

	m := NewModel(context.Background(), engine)
	t.Cleanup(m.cancel)
	m.Update(tea.WindowSizeMsg{Width: 100, Height: 40})
	return m, spotify, youtube
}

func keyPress(s string) tea.KeyMsg {
	switch s {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	case "ctrl+c":
		return tea.KeyMsg{Type: tea.KeyCtrlC}
	default:
		return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
	}
}

// scanned submits raw and delivers the scan result to the model.
func scanned(t *testing.T, m *Model, raw string) {
	t.Helper()
	m.input.SetValue(raw)
	m.Update(keyPress("enter"))
	if got := m.flow.State(); got != tasks.Scanning {
		t.Fatalf("expected scanning after submit, got %s", got)
	}
	m.Update(m.scan(raw)())
}

// converted confirms the conversion and pumps messages until it finishes.
func converted(t *testing.T, m *Model) []Msg {
	t.Helper()
	m.Update(keyPress("enter"))
	_, cmd := m.Update(keyPress("y"))
	if cmd == nil {
		t.Fatal("expected a command after confirming")
	}

	var msgs []Msg
	for cmd != nil {
		msg, ok := cmd().(Msg)
		if !ok {
			t.Fatal("expected a Msg")
		}
		msgs = append(msgs, msg)
		_, cmd = m.Update(msg)
		if msg.kind == MsgConvertDone {
			break
		}
	}
	return msgs
}

func TestModelScan(t *testing.T) {
	t.Run("starts idle with the URL prompt", func(t *testing.T) {
		m, _, _ := newTestModel(t)
		if m.flow.State() != tasks.Idle {
			t.Fatalf("expected idle, got %s", m.flow.State())
		}
		if !strings.Contains(m.View(), "playlist URL") {
			t.Errorf("expected URL prompt, got %q", m.View())
		}
	})

	t.Run("ignores an empty submission", func(t *testing.T) {
		m, spotify, _ := newTestModel(t)
		_, cmd := m.Update(keyPress("enter"))
		if cmd != nil || m.flow.State() != tasks.Idle {
			t.Error("expected nothing to happen")
		}
		if spotify.FetchCalls != 0 {
			t.Error("expected no fetch")
		}
	})

	t.Run("q is typed into the input", func(t *testing.T) {
		m, _, _ := newTestModel(t)
		m.Update(keyPress("q"))
		if m.input.Value() != "q" {
			t.Errorf("expected q in input, got %q", m.input.Value())
		}
	})

	t.Run("shows the track list once scanned", func(t *testing.T) {
		m, spotify, _ := newTestModel(t)
		scanned(t, m, playlistURL)

		if m.flow.State() != tasks.Ready {
			t.Fatalf("expected ready, got %s", m.flow.State())
		}
		if spotify.FetchCalls != 1 {
			t.Errorf("expected 1 fetch, got %d", spotify.FetchCalls)
		}
		if len(m.tracks.Items()) != 3 {
			t.Errorf("expected 3 items, got %d", len(m.tracks.Items()))
		}
		if !strings.Contains(m.tracks.Title, "Test Playlist") {
			t.Errorf("unexpected title %q", m.tracks.Title)
		}
	})

	t.Run("shows the scan error", func(t *testing.T) {
		m, spotify, _ := newTestModel(t)
		spotify.FetchErr = errors.New("playlist is private")
		scanned(t, m, playlistURL)

		if m.flow.State() != tasks.Failed {
			t.Fatalf("expected failed, got %s", m.flow.State())
		}
		view := m.View()
		if !strings.Contains(view, "Scan failed") || !strings.Contains(view, "playlist is private") {
			t.Errorf("unexpected view %q", view)
		}
	})

	t.Run("unrecognized URL fails the scan", func(t *testing.T) {
		m, _, _ := newTestModel(t)
		scanned(t, m, "https://example.com/nope")
		if m.flow.State() != tasks.Failed {
			t.Errorf("expected failed, got %s", m.flow.State())
		}
	})

	t.Run("esc returns to the prompt", func(t *testing.T) {
		m, _, _ := newTestModel(t)
		scanned(t, m, playlistURL)
		m.Update(keyPress("esc"))
		if m.flow.State() != tasks.Idle {
			t.Errorf("expected idle, got %s", m.flow.State())
		}
		if m.input.Value() != "" {
			t.Error("expected input to be cleared")
		}
	})
}

func TestModelConvert(t *testing.T) {
	t.Run("asks for confirmation", func(t *testing.T) {
		m, _, youtube := newTestModel(t)
		scanned(t, m, playlistURL)

		m.Update(keyPress("enter"))
		if !m.confirming {
			t.Fatal("expected confirmation prompt")
		}
		if !strings.Contains(m.View(), "Convert 'Test Playlist' to YouTube Music?") {
			t.Errorf("unexpected view %q", m.View())
		}

		m.Update(keyPress("n"))
		if m.confirming || m.flow.State() != tasks.Ready {
			t.Error("expected to return to the track list")
		}
		if youtube.ConvertCalls != 0 {
			t.Error("expected no conversion")
		}
	})

	t.Run("converts and shows the result", func(t *testing.T) {
		m, _, youtube := newTestModel(t)
		scanned(t, m, playlistURL)
		msgs := converted(t, m)

		if m.flow.State() != tasks.Done {
			t.Fatalf("expected done, got %s", m.flow.State())
		}
		if youtube.ConvertCalls != 1 {
			t.Errorf("expected 1 conversion, got %d", youtube.ConvertCalls)
		}
		if len(msgs) < 2 {
			t.Errorf("expected progress updates before completion, got %d msgs", len(msgs))
		}
		if m.progressChan != nil {
			t.Error("expected progress channel to be released")
		}

		view := m.View()
		for _, want := range []string{"Conversion Complete", "Added: 3/3", "https://example.test/mock-playlist"} {
			if !strings.Contains(view, want) {
				t.Errorf("expected %q in view %q", want, view)
			}
		}
	})

	t.Run("lists failed tracks", func(t *testing.T) {
		m, _, youtube := newTestModel(t)
		youtube.Result = &models.ConversionResult{
			DestinationPlaylistURL: "https://example.test/p",
			AddedCount:             2,
			FailedTracks:           []string{"Song 3 by Artist 3"},
		}
		scanned(t, m, playlistURL)
		converted(t, m)

		view := m.View()
		if !strings.Contains(view, "Failed to match 1 tracks") || !strings.Contains(view, "Song 3 by Artist 3") {
			t.Errorf("unexpected view %q", view)
		}
	})

	t.Run("shows a conversion failure", func(t *testing.T) {
		m, _, youtube := newTestModel(t)
		youtube.ConvertErr = errors.New("quota exceeded")
		scanned(t, m, playlistURL)
		converted(t, m)

		if m.flow.State() != tasks.Failed {
			t.Fatalf("expected failed, got %s", m.flow.State())
		}
		view := m.View()
		if !strings.Contains(view, "Conversion failed") || !strings.Contains(view, "quota exceeded") {
			t.Errorf("unexpected view %q", view)
		}
	})

	t.Run("restart after completion", func(t *testing.T) {
		m, _, _ := newTestModel(t)
		scanned(t, m, playlistURL)
		converted(t, m)

		m.Update(keyPress("r"))
		if m.flow.State() != tasks.Idle {
			t.Errorf("expected idle, got %s", m.flow.State())
		}
		if len(m.tracks.Items()) != 0 {
			t.Error("expected track list to be cleared")
		}
	})
}

func TestModelQuit(t *testing.T) {
	t.Run("ctrl+c quits from the prompt", func(t *testing.T) {
		m, _, _ := newTestModel(t)
		_, cmd := m.Update(keyPress("ctrl+c"))
		if cmd == nil {
			t.Fatal("expected quit command")
		}
		if _, ok := cmd().(tea.QuitMsg); !ok {
			t.Error("expected tea.QuitMsg")
		}
		if m.ctx.Err() == nil {
			t.Error("expected context to be cancelled")
		}
	})

	t.Run("q quits from the result", func(t *testing.T) {
		m, spotify, _ := newTestModel(t)
		spotify.FetchErr = errors.New("boom")
		scanned(t, m, playlistURL)

		_, cmd := m.Update(keyPress("q"))
		if cmd == nil {
			t.Fatal("expected quit command")
		}
		if _, ok := cmd().(tea.QuitMsg); !ok {
			t.Error("expected tea.QuitMsg")
		}
	})
}

func TestTrackItem(t *testing.T) {
	item := trackItem{index: 0, track: models.Track{Title: "Song", Artist: "Artist", Album: "Album", Duration: "3:00"}}

	if item.Title() != "1. Song" {
		t.Errorf("unexpected title %q", item.Title())
	}
	if item.Description() != "Artist • Album • 3:00" {
		t.Errorf("unexpected description %q", item.Description())
	}
	if item.FilterValue() != "Song Artist" {
		t.Errorf("unexpected filter value %q", item.FilterValue())
	}
}
