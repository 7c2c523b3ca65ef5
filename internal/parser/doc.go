// Package parser recognizes playlist links and extracts the platform-native playlist id.
//
// Spotify playlist links and YouTube or YouTube Music links carrying a list parameter are
// accepted. A bare id is only accepted when the caller names its platform.
package parser
