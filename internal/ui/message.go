package ui

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/crossfade/internal/models"
	"github.com/desertthunder/crossfade/internal/tasks"
)

// MsgKind enumerates all message types in the application.
type MsgKind int

// Msg represents all possible messages in the TUI (Elm-style message union).
type Msg struct {
	kind MsgKind
	data any
}

var (
	_ tea.Msg = Msg{}
)

const (
	MsgScanned MsgKind = iota
	MsgProgressUpdate
	MsgConvertDone
)

// scanResult is the payload of [MsgScanned].
type scanResult struct {
	playlist *models.PlaylistData
	err      error
}

// scannedMsg is the constructor for [MsgScanned]
func scannedMsg(playlist *models.PlaylistData, err error) Msg {
	return Msg{kind: MsgScanned, data: scanResult{playlist, err}}
}

// progressUpdateMsg is the constructor for [MsgProgressUpdate]
func progressUpdateMsg(update tasks.ProgressUpdate) Msg {
	return Msg{kind: MsgProgressUpdate, data: update}
}

// convertDoneMsg is the constructor for [MsgConvertDone]. The outcome itself lives in the flow;
// err is only set when the flow could not be driven.
func convertDoneMsg(err error) Msg {
	return Msg{kind: MsgConvertDone, data: err}
}
