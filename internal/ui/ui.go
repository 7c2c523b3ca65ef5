package ui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/crossfade/internal/models"
	"github.com/desertthunder/crossfade/internal/tasks"
)

// Model represents the TUI application state.
//
// Which screen is shown follows the [tasks.Flow] state; the model only adds the confirmation
// step between Ready and Converting.
type Model struct {
	ctx    context.Context
	cancel context.CancelFunc
	engine *tasks.Engine
	flow   *tasks.Flow

	width  int
	height int

	input   textinput.Model
	spinner spinner.Model
	tracks  list.Model
	bar     progress.Model
	help    help.Model
	keys    keyMap

	confirming   bool
	progressChan chan tasks.ProgressUpdate
	convertDone  chan error
	status       string
	err          error
}

// NewModel creates a new TUI model with the provided dependencies.
func NewModel(ctx context.Context, engine *tasks.Engine) *Model {
	ctx, cancel := context.WithCancel(ctx)

	input := textinput.New()
	input.Placeholder = "https://open.spotify.com/playlist/..."
	input.Prompt = "URL › "
	input.CharLimit = 512
	input.Width = 60
	input.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = styles.title.UnsetMarginBottom()

	return &Model{
		ctx:     ctx,
		cancel:  cancel,
		engine:  engine,
		flow:    tasks.NewFlow(),
		input:   input,
		spinner: sp,
		tracks:  list.New(nil, list.NewDefaultDelegate(), 0, 0),
		bar:     progress.New(progress.WithDefaultGradient()),
		help:    help.New(),
		keys:    newKeyMap(),
	}
}

// Flow exposes the flow the model renders.
func (m *Model) Flow() *tasks.Flow { return m.flow }

// Init starts the cursor blinking in the URL input.
func (m *Model) Init() tea.Cmd {
	return textinput.Blink
}

// Update handles incoming messages and updates the model state.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.tracks.SetSize(msg.Width-4, msg.Height-8)
		m.bar.Width = min(msg.Width-4, 80)
		return m, nil

	case tea.KeyMsg:
		switch m.flow.State() {
		case tasks.Idle:
			return m.handleInputKeys(msg)
		case tasks.Scanning, tasks.Converting:
			if key.Matches(msg, m.keys.cancel) {
				return m.quit()
			}
			return m, nil
		case tasks.Ready:
			if m.progressChan != nil {
				return m, nil
			}
			if m.confirming {
				return m.handleConfirmKeys(msg)
			}
			return m.handleTrackListKeys(msg)
		case tasks.Done, tasks.Failed:
			return m.handleResultKeys(msg)
		}

	case spinner.TickMsg:
		if m.flow.State() != tasks.Scanning {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case Msg:
		return m.handleMsg(msg)
	}

	return m.updateComponents(msg)
}

func (m *Model) handleMsg(msg Msg) (tea.Model, tea.Cmd) {
	switch msg.kind {
	case MsgScanned:
		res := msg.data.(scanResult)
		if res.err != nil {
			m.err = m.flow.Fail(res.err)
			return m, nil
		}
		if err := m.flow.Scanned(res.playlist); err != nil {
			m.err = err
			return m, nil
		}
		m.tracks.SetItems(trackItems(res.playlist.Tracks))
		m.tracks.Title = fmt.Sprintf("%s · %d tracks on %s",
			res.playlist.Title, len(res.playlist.Tracks), res.playlist.SourcePlatform.Name())
		m.tracks.ResetSelected()
		return m, nil

	case MsgProgressUpdate:
		m.status = msg.data.(tasks.ProgressUpdate).Message
		return m, m.waitForProgress()

	case MsgConvertDone:
		m.progressChan, m.convertDone = nil, nil
		if err, ok := msg.data.(error); ok && m.flow.State() == tasks.Ready {
			// the flow never left Ready, so there is no outcome to show
			m.err = err
		}
		return m, nil
	}
	return m, nil
}

func (m *Model) handleInputKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.cancel):
		return m.quit()
	case key.Matches(msg, m.keys.submit):
		raw := strings.TrimSpace(m.input.Value())
		if raw == "" {
			return m, nil
		}
		if err := m.flow.Scan(); err != nil {
			m.err = err
			return m, nil
		}
		m.err = nil
		m.status = ""
		m.input.Blur()
		return m, tea.Batch(m.spinner.Tick, m.scan(raw))
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *Model) handleTrackListKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.tracks.FilterState() == list.Filtering {
		var cmd tea.Cmd
		m.tracks, cmd = m.tracks.Update(msg)
		return m, cmd
	}

	switch {
	case key.Matches(msg, m.keys.quit):
		return m.quit()
	case key.Matches(msg, m.keys.back):
		return m.restart()
	case key.Matches(msg, m.keys.convert):
		m.confirming = true
		return m, nil
	}

	var cmd tea.Cmd
	m.tracks, cmd = m.tracks.Update(msg)
	return m, cmd
}

func (m *Model) handleConfirmKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.cancel):
		return m.quit()
	case key.Matches(msg, m.keys.no):
		m.confirming = false
		return m, nil
	case key.Matches(msg, m.keys.yes):
		m.confirming = false
		m.err = nil
		return m, m.startConvert()
	}
	return m, nil
}

func (m *Model) handleResultKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.quit):
		return m.quit()
	case key.Matches(msg, m.keys.restart):
		return m.restart()
	}
	return m, nil
}

func (m *Model) restart() (tea.Model, tea.Cmd) {
	m.flow.Reset()
	m.confirming = false
	m.status = ""
	m.err = nil
	m.input.Reset()
	m.tracks.SetItems(nil)
	return m, m.input.Focus()
}

func (m *Model) quit() (tea.Model, tea.Cmd) {
	m.cancel()
	return m, tea.Quit
}

func (m *Model) updateComponents(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	switch m.flow.State() {
	case tasks.Idle:
		m.input, cmd = m.input.Update(msg)
	case tasks.Ready:
		m.tracks, cmd = m.tracks.Update(msg)
	}
	return m, cmd
}

func (m *Model) scan(raw string) tea.Cmd {
	return func() tea.Msg {
		data, err := m.engine.Scan(m.ctx, raw, nil)
		return scannedMsg(data, err)
	}
}

func (m *Model) startConvert() tea.Cmd {
	progress := make(chan tasks.ProgressUpdate, 50)
	done := make(chan error, 1)
	m.progressChan, m.convertDone = progress, done

	go func() {
		done <- m.engine.ConvertFlow(m.ctx, m.flow, progress)
		close(progress)
	}()

	return m.waitForProgress()
}

func (m *Model) waitForProgress() tea.Cmd {
	progress, done := m.progressChan, m.convertDone
	return func() tea.Msg {
		if progress == nil {
			return convertDoneMsg(nil)
		}
		if update, ok := <-progress; ok {
			return progressUpdateMsg(update)
		}
		return convertDoneMsg(<-done)
	}
}

// View renders the UI based on the current flow state.
func (m *Model) View() string {
	snap := m.flow.Snapshot()

	switch snap.State {
	case tasks.Idle:
		return m.renderInput()
	case tasks.Scanning:
		return m.renderScanning()
	case tasks.Ready:
		if m.progressChan != nil {
			return m.renderConverting(snap)
		}
		if m.confirming {
			return m.renderConfirm(snap)
		}
		return m.renderTrackList()
	case tasks.Converting:
		return m.renderConverting(snap)
	case tasks.Done:
		return m.renderResult(snap)
	case tasks.Failed:
		return m.renderFailed(snap)
	default:
		return ""
	}
}

func (m *Model) renderInput() string {
	title := styles.title.Render("crossfade")
	prompt := fmt.Sprintf("Paste a %s or %s playlist URL:",
		styles.As("Spotify", platformColor(models.Spotify.Name())),
		styles.As("YouTube Music", platformColor(models.YouTube.Name())),
	)

	var errLine string
	if m.err != nil {
		errLine = "\n" + styles.err.Render(fmt.Sprintf("Error: %v", m.err))
	}

	helpView := m.help.ShortHelpView([]key.Binding{m.keys.submit, m.keys.cancel})
	return fmt.Sprintf("%s\n%s\n\n%s%s\n\n%s", title, prompt, m.input.View(), errLine, helpView)
}

func (m *Model) renderScanning() string {
	return fmt.Sprintf("%s Fetching playlist...\n\n%s",
		m.spinner.View(),
		m.help.ShortHelpView([]key.Binding{m.keys.cancel}))
}

func (m *Model) renderTrackList() string {
	var errLine string
	if m.err != nil {
		errLine = styles.err.Render(fmt.Sprintf("Error: %v", m.err)) + "\n"
	}
	helpKeys := []key.Binding{m.keys.convert, m.keys.back, m.keys.quit}
	helpView := m.help.ShortHelpView(helpKeys)
	return fmt.Sprintf("%s\n%s\n%s", m.tracks.View(), errLine, helpView)
}

func (m *Model) renderConfirm(snap tasks.Snapshot) string {
	dest := snap.Playlist.SourcePlatform.Other().Name()
	title := styles.title.Render(fmt.Sprintf("Convert '%s' to %s?", snap.Playlist.Title, dest))
	info := styles.box.Render(fmt.Sprintf("Playlist: %s\nFrom: %s\nTracks: %d",
		snap.Playlist.Title, snap.Playlist.SourcePlatform.Name(), len(snap.Playlist.Tracks)))

	helpKeys := []key.Binding{m.keys.yes, m.keys.no, m.keys.cancel}
	helpView := m.help.ShortHelpView(helpKeys)

	return fmt.Sprintf("%s\n%s\n\n%s", title, info, helpView)
}

func (m *Model) renderConverting(snap tasks.Snapshot) string {
	dest := snap.Playlist.SourcePlatform.Other().Name()
	title := styles.title.Render(fmt.Sprintf("Converting to %s", styles.As(dest, platformColor(dest))))

	p := snap.Progress
	position := fmt.Sprintf("%d/%d", p.Current, p.Total)
	if p.Title != "" {
		position = fmt.Sprintf("%s  %s", position, p.Title)
	}

	return fmt.Sprintf("%s\n%s\n%s\n%s\n\n%s",
		title,
		m.bar.ViewAs(p.Percent()),
		position,
		styles.help.Render(m.status),
		m.help.ShortHelpView([]key.Binding{m.keys.cancel}),
	)
}

func (m *Model) renderResult(snap tasks.Snapshot) string {
	result := snap.Result
	if result == nil {
		return styles.err.Render("No result available\n\nPress r to start over, q to quit")
	}

	title := styles.ok.Render("✓ Conversion Complete!")
	info := fmt.Sprintf(
		"\nSource: %s (%d tracks)\nDestination: %s\nAdded: %d/%d (%.1f%%)",
		snap.Playlist.Title,
		len(snap.Playlist.Tracks),
		result.DestinationPlaylistURL,
		result.AddedCount,
		result.Total(),
		result.MatchRate(),
	)

	var failed strings.Builder
	if n := len(result.FailedTracks); n > 0 {
		failed.WriteString("\n\n")
		failed.WriteString(styles.warn.Render(fmt.Sprintf("Failed to match %d tracks:", n)))
		for _, label := range result.FailedTracks {
			failed.WriteString("\n  • " + label)
		}
	}

	helpKeys := []key.Binding{m.keys.restart, m.keys.quit}
	helpView := m.help.ShortHelpView(helpKeys)

	return fmt.Sprintf("%s\n%s%s\n\n%s", title, info, failed.String(), helpView)
}

func (m *Model) renderFailed(snap tasks.Snapshot) string {
	action := "Conversion"
	if snap.Playlist == nil {
		action = "Scan"
	}
	helpView := m.help.ShortHelpView([]key.Binding{m.keys.restart, m.keys.quit})
	return fmt.Sprintf("%s\n\n%s",
		styles.err.Render(fmt.Sprintf("%s failed: %s", action, snap.Error)),
		helpView)
}

// Run starts the program on the terminal's alternate screen and blocks until it exits.
func Run(ctx context.Context, engine *tasks.Engine) (*tasks.Flow, error) {
	m := NewModel(ctx, engine)
	defer m.cancel()
	_, err := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx)).Run()
	return m.flow, err
}
