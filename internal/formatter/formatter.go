// package formatter exports playlist and conversion data to JSON, CSV, Markdown and plain text
package formatter

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"unicode"

	"github.com/desertthunder/crossfade/internal/models"
	"github.com/desertthunder/crossfade/internal/shared"
)

// Format is an export file format.
type Format string

const (
	FormatJSON     Format = "json"
	FormatCSV      Format = "csv"
	FormatMarkdown Format = "markdown"
	FormatText     Format = "text"
)

// Formats lists the supported formats in help order.
var Formats = []Format{FormatJSON, FormatCSV, FormatMarkdown, FormatText}

// ParseFormat accepts a format name or its common short form.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "json":
		return FormatJSON, nil
	case "csv":
		return FormatCSV, nil
	case "markdown", "md":
		return FormatMarkdown, nil
	case "text", "txt":
		return FormatText, nil
	}
	return "", fmt.Errorf("%w: unknown format %q", shared.ErrInvalidArgument, s)
}

// Extension returns the file extension for f, including the dot.
func (f Format) Extension() string {
	switch f {
	case FormatCSV:
		return ".csv"
	case FormatMarkdown:
		return ".md"
	case FormatText:
		return ".txt"
	default:
		return ".json"
	}
}

var csvHeaders = []string{"position", "title", "artist", "album", "duration", "source_id"}

// ExportToJSON renders the playlist with indentation.
func ExportToJSON(data *models.PlaylistData) ([]byte, error) {
	return shared.MarshalJSON(data, true)
}

// ExportToCSV writes one row per track with columns position, title, artist, album, duration, source_id.
// Positions are 1-based.
func ExportToCSV(data *models.PlaylistData) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	if err := writer.Write(csvHeaders); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for i, track := range data.Tracks {
		record := []string{
			strconv.Itoa(i + 1),
			track.Title,
			track.Artist,
			track.Album,
			track.Duration,
			track.SourceID,
		}
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}
	return buf.Bytes(), nil
}

// ExportToMarkdown renders a heading, the description and a numbered track list.
func ExportToMarkdown(data *models.PlaylistData) ([]byte, error) {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "# %s\n\n", data.Title)
	if data.Description != "" {
		fmt.Fprintf(&buf, "**Description**: %s\n\n", data.Description)
	}
	fmt.Fprintf(&buf, "**Source**: [%s](%s)\n", data.SourcePlatform.Name(), data.OriginalURL)
	fmt.Fprintf(&buf, "**Tracks**: %d\n\n", len(data.Tracks))

	buf.WriteString("## Tracks\n\n")
	for i, track := range data.Tracks {
		albumPart := ""
		if track.Album != "" {
			albumPart = fmt.Sprintf(" (%s)", track.Album)
		}
		durationPart := ""
		if track.Duration != "" {
			durationPart = fmt.Sprintf(" [%s]", track.Duration)
		}
		fmt.Fprintf(&buf, "%d. %s - %s%s%s\n", i+1, track.Artist, track.Title, albumPart, durationPart)
	}
	return buf.Bytes(), nil
}

// ExportToText renders a plain header and one "artist - title" line per track.
func ExportToText(data *models.PlaylistData) ([]byte, error) {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "Playlist: %s\n", data.Title)
	if data.Description != "" {
		fmt.Fprintf(&buf, "Description: %s\n", data.Description)
	}
	fmt.Fprintf(&buf, "Source: %s\n", data.OriginalURL)
	fmt.Fprintf(&buf, "Tracks: %d\n\n", len(data.Tracks))

	for i, track := range data.Tracks {
		fmt.Fprintf(&buf, "%d. %s - %s\n", i+1, track.Artist, track.Title)
	}
	return buf.Bytes(), nil
}

// Export renders data in format f.
func Export(data *models.PlaylistData, f Format) ([]byte, error) {
	switch f {
	case FormatCSV:
		return ExportToCSV(data)
	case FormatMarkdown:
		return ExportToMarkdown(data)
	case FormatText:
		return ExportToText(data)
	case FormatJSON:
		return ExportToJSON(data)
	}
	return nil, fmt.Errorf("%w: unknown format %q", shared.ErrInvalidArgument, f)
}

// WriteExport renders data and writes it to path, which defaults to [FileName] in the working directory.
// It returns the path written.
func WriteExport(data *models.PlaylistData, f Format, path string) (string, error) {
	if path == "" {
		path = FileName(data.Title, f)
	}

	out, err := Export(data, f)
	if err != nil {
		return "", err
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return "", fmt.Errorf("failed to create directory: %w", err)
		}
	}
	if err := os.WriteFile(path, out, 0644); err != nil {
		return "", fmt.Errorf("failed to write %s file: %w", f, err)
	}
	return path, nil
}

// FileName derives a file name from a playlist title, e.g. "Road Trip!" becomes road-trip.md.
func FileName(title string, f Format) string {
	return Slug(title) + f.Extension()
}

// Slug lower-cases s and joins its letter and digit runs with hyphens.
func Slug(s string) string {
	var b strings.Builder
	pending := false
	for _, r := range strings.ToLower(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if pending && b.Len() > 0 {
				b.WriteByte('-')
			}
			b.WriteRune(r)
			pending = false
			continue
		}
		pending = true
	}
	if b.Len() == 0 {
		return "playlist"
	}
	return b.String()
}
