// Package ui implements an interactive terminal interface using bubbletea's Elm architecture.
//
// The screen follows the state of a [tasks.Flow]:
//  1. Idle : paste a Spotify or YouTube Music playlist URL
//  2. Scanning : spinner while the source playlist is fetched
//  3. Ready : browse (and filter) the tracks, then confirm the conversion
//  4. Converting : progress bar with the track currently being matched
//  5. Done / Failed : destination URL, match rate and the tracks that could not be matched
//
// The (view) [Model] implements bubbletea/Elm's standard Init/Update/View pattern, receiving messages via the Msg union type.
// Conversion progress flows through a channel from the [tasks.Engine], providing non-blocking status reporting.
//
// Keyboard navigation uses vim-style bindings (j/k, enter, esc, y/n, r, q) with contextual help displayed via charmbracelet/bubbles/help.
package ui
