// Package tasks drives playlist conversions between Spotify and YouTube Music with real-time progress reporting.
//
// # Engine
//
// [Engine] holds one [services.Client] per platform and exposes:
//
//  1. [Engine.Scan] : parse a playlist link and fetch the playlist from its source platform
//  2. [Engine.Convert] : refresh the destination session, then create and populate a playlist on the
//     other platform
//  3. [Engine.BulkExport] : fetch many playlists and write them to disk through a worker pool
//
// Finished conversions are stored through an optional [Recorder].
//
// # Flow
//
// [Flow] is the explicit state machine shared by the TUI and the web jobs:
//
//	Idle -> Scanning -> Ready -> Converting -> Done | Failed
//
// [Engine.ScanFlow] and [Engine.ConvertFlow] run the engine and move a Flow through its states.
//
// # Progress Reporting
//
// The [ProgressUpdate] struct contains phase, step counters, messages, and optional data for advanced UI rendering.
// Updates use select with default to prevent blocking.
package tasks
