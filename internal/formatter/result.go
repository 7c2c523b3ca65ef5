package formatter

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strconv"

	"github.com/desertthunder/crossfade/internal/models"
	"github.com/desertthunder/crossfade/internal/shared"
)

// ExportResult renders the outcome of converting data. CSV lists one row per source track.
func ExportResult(data *models.PlaylistData, result *models.ConversionResult, f Format) ([]byte, error) {
	switch f {
	case FormatJSON:
		return shared.MarshalJSON(result, true)
	case FormatCSV:
		return resultToCSV(result)
	case FormatMarkdown:
		return resultToMarkdown(data, result), nil
	case FormatText:
		return resultToText(data, result), nil
	}
	return nil, fmt.Errorf("%w: unknown format %q", shared.ErrInvalidArgument, f)
}

func resultToCSV(result *models.ConversionResult) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	if err := writer.Write([]string{"position", "title", "artist", "destination_id", "tier", "score", "added"}); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}
	for i, m := range result.Matches {
		record := []string{
			strconv.Itoa(i + 1),
			m.Track.Title,
			m.Track.Artist,
			m.DestinationID,
			string(m.Tier),
			strconv.FormatFloat(m.Score, 'f', 3, 64),
			strconv.FormatBool(m.Added),
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

func resultToMarkdown(data *models.PlaylistData, result *models.ConversionResult) []byte {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "# %s\n\n", data.Title)
	fmt.Fprintf(&buf, "**From**: [%s](%s)\n", data.SourcePlatform.Name(), data.OriginalURL)
	fmt.Fprintf(&buf, "**To**: [%s](%s)\n", data.SourcePlatform.Other().Name(), result.DestinationPlaylistURL)
	fmt.Fprintf(&buf, "**Added**: %d of %d (%.0f%%)\n\n", result.AddedCount, result.Total(), result.MatchRate())

	if len(result.FailedTracks) > 0 {
		buf.WriteString("## Not found\n\n")
		for _, label := range result.FailedTracks {
			fmt.Fprintf(&buf, "- %s\n", label)
		}
	}
	return buf.Bytes()
}

func resultToText(data *models.PlaylistData, result *models.ConversionResult) []byte {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "Converted: %s\n", data.Title)
	fmt.Fprintf(&buf, "Playlist: %s\n", result.DestinationPlaylistURL)
	fmt.Fprintf(&buf, "Added: %d/%d\n", result.AddedCount, result.Total())

	if len(result.FailedTracks) > 0 {
		fmt.Fprintf(&buf, "\nFailed (%d):\n", len(result.FailedTracks))
		for _, label := range result.FailedTracks {
			fmt.Fprintf(&buf, "  %s\n", label)
		}
	}
	return buf.Bytes()
}
