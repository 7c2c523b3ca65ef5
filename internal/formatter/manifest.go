package formatter

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/desertthunder/crossfade/internal/shared"
)

// ManifestEntry describes one playlist of a bulk export.
type ManifestEntry struct {
	URL      string   `json:"url"`
	Title    string   `json:"title,omitempty"`
	Platform string   `json:"platform,omitempty"`
	Tracks   int      `json:"tracks"`
	Status   string   `json:"status"`
	Files    []string `json:"files,omitempty"`
	Error    string   `json:"error,omitempty"`
}

// Manifest summarizes a bulk export and is written next to the exported files.
type Manifest struct {
	CreatedAt  time.Time       `json:"created_at"`
	Format     Format          `json:"format"`
	Total      int             `json:"total_playlists"`
	Successful int             `json:"successful_exports"`
	Failed     int             `json:"failed_exports"`
	Entries    []ManifestEntry `json:"playlists"`
}

// Add appends an entry and updates the counters. A non-nil err marks the entry failed.
func (m *Manifest) Add(entry ManifestEntry, err error) {
	if err != nil {
		entry.Status = "failed"
		entry.Error = err.Error()
		m.Failed++
	} else {
		entry.Status = "success"
		m.Successful++
	}
	m.Entries = append(m.Entries, entry)
}

// WriteManifest writes m as indented JSON to path.
func WriteManifest(m *Manifest, path string) error {
	data, err := shared.MarshalJSON(m, true)
	if err != nil {
		return fmt.Errorf("failed to marshal manifest: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write manifest: %w", err)
	}
	return nil
}
