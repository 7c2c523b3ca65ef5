// Package services implements the platform clients for Spotify and YouTube Music and the shared
// track-matching converter that recreates a playlist on either of them.
//
// # Clients
//
// [SpotifyService] wraps github.com/zmb3/spotify/v2. Reads work with an app-level client-credentials
// token when no user session is present. Writes require the user's delegated token.
//
// [YouTubeService] wraps google.golang.org/api/youtube/v3. Every call requires the user's token.
//
// Both implement [Client]: [Authenticator] for the OAuth authorization-code flow, [Source] for
// reading a playlist and [Destination] for the primitive write operations.
//
// # Converter
//
// [Populate] is the single conversion algorithm. It walks the source tracks in order, searches the
// destination with a field-scoped query and then a relaxed one, and adds the matches in batches sized
// by the destination's [Limits]. Per-track failures are recorded as misses. A failed batch moves its
// tracks to the failed list, so AddedCount + len(FailedTracks) always equals the number of source tracks.
//
// # Error Handling
//
// Clients return the typed errors from the shared package:
//   - [shared.ConfigurationError] : client id or secret missing, raised before any request
//   - [shared.AuthError] : no usable session, or a rejected code exchange (invalid_grant)
//   - [shared.UpstreamError] : non-success response from the platform API
package services
