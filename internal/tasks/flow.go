package tasks

import (
	"errors"
	"fmt"
	"sync"

	"github.com/desertthunder/crossfade/internal/models"
)

// ErrInvalidTransition is returned when a Flow event is not allowed in the current state.
var ErrInvalidTransition = errors.New("invalid state transition")

// State is the state of a [Flow].
type State int

const (
	Idle State = iota
	Scanning
	Ready
	Converting
	Done
	Failed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Scanning:
		return "scanning"
	case Ready:
		return "ready"
	case Converting:
		return "converting"
	case Done:
		return "done"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further events other than Scan or Reset are expected.
func (s State) Terminal() bool { return s == Done || s == Failed }

// MarshalText renders the state by name in JSON snapshots.
func (s State) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// Progress is the per-track position of a running conversion.
type Progress struct {
	Current int    `json:"current"`
	Total   int    `json:"total"`
	Title   string `json:"title,omitempty"`
}

// Percent is the completed share in [0, 1].
func (p Progress) Percent() float64 {
	if p.Total == 0 {
		return 0
	}
	return float64(p.Current) / float64(p.Total)
}

// Snapshot is a point-in-time copy of a Flow.
type Snapshot struct {
	State    State                    `json:"state"`
	Playlist *models.PlaylistData     `json:"playlist,omitempty"`
	Progress Progress                 `json:"progress"`
	Result   *models.ConversionResult `json:"result,omitempty"`
	Error    string                   `json:"error,omitempty"`
}

// Flow drives one scan-then-convert session:
//
//	Idle -> Scanning -> Ready -> Converting -> Done | Failed
//
// State is the single source of truth; the playlist, progress, result and error are only meaningful
// in the states that set them. Flow is safe for concurrent use.
type Flow struct {
	mu       sync.RWMutex
	state    State
	playlist *models.PlaylistData
	progress Progress
	result   *models.ConversionResult
	err      error
}

// NewFlow returns an idle Flow.
func NewFlow() *Flow {
	return &Flow{}
}

func (f *Flow) transition(event string, allowed ...State) error {
	for _, s := range allowed {
		if f.state == s {
			return nil
		}
	}
	return fmt.Errorf("%w: %s from %s", ErrInvalidTransition, event, f.state)
}

// Scan starts a new lookup and discards any previous playlist or outcome.
func (f *Flow) Scan() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.transition("scan", Idle, Ready, Done, Failed); err != nil {
		return err
	}
	f.state = Scanning
	f.playlist, f.result, f.err = nil, nil, nil
	f.progress = Progress{}
	return nil
}

// Scanned stores the fetched playlist.
func (f *Flow) Scanned(data *models.PlaylistData) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.transition("scanned", Scanning); err != nil {
		return err
	}
	if data == nil {
		return fmt.Errorf("%w: scanned without a playlist", ErrInvalidTransition)
	}
	f.state = Ready
	f.playlist = data
	f.progress = Progress{Total: len(data.Tracks)}
	return nil
}

// Convert starts converting the scanned playlist.
func (f *Flow) Convert() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.transition("convert", Ready); err != nil {
		return err
	}
	f.state = Converting
	return nil
}

// Progress records the track currently being matched.
func (f *Flow) Progress(current, total int, title string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.transition("progress", Converting); err != nil {
		return err
	}
	f.progress = Progress{Current: current, Total: total, Title: title}
	return nil
}

// Complete stores the conversion result.
func (f *Flow) Complete(result *models.ConversionResult) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.transition("complete", Converting); err != nil {
		return err
	}
	f.state = Done
	f.result = result
	f.progress.Current = f.progress.Total
	return nil
}

// Fail records a fatal scan or conversion error.
func (f *Flow) Fail(err error) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if terr := f.transition("fail", Scanning, Converting); terr != nil {
		return terr
	}
	f.state = Failed
	f.err = err
	return nil
}

// Reset returns the Flow to Idle from any state.
func (f *Flow) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.state = Idle
	f.playlist, f.result, f.err = nil, nil, nil
	f.progress = Progress{}
}

// State returns the current state.
func (f *Flow) State() State {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.state
}

// Snapshot copies the Flow without holding the lock afterwards.
func (f *Flow) Snapshot() Snapshot {
	f.mu.RLock()
	defer f.mu.RUnlock()

	s := Snapshot{
		State:    f.state,
		Playlist: f.playlist,
		Progress: f.progress,
		Result:   f.result,
	}
	if f.err != nil {
		s.Error = f.err.Error()
	}
	return s
}
