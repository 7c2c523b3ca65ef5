package tasks

import (
	"fmt"

	"github.com/desertthunder/crossfade/internal/models"
	"github.com/desertthunder/crossfade/internal/services"
)

// ProgressUpdate represents a progress event during a long-running operation.
//
// Used to send real-time updates to the CLI or UI layer for display.
type ProgressUpdate struct {
	Phase   Phase  // Operation phase
	Step    int    // Current step number within phase
	Total   int    // Total steps in this phase
	Message string // Human-readable message for display
	Data    any    // Optional phase-specific data for advanced UIs
}

// Operation phase enumeration
type Phase int

const (
	ParseURL Phase = iota
	FetchSource
	RefreshSession
	CreatePlaylist
	SearchTracks
	AddTracks
	Completed
	ExportPlaylist
)

func (p Phase) String() string {
	switch p {
	case ParseURL:
		return "parse_url"
	case FetchSource:
		return "fetch_source"
	case RefreshSession:
		return "refresh_session"
	case CreatePlaylist:
		return "create_playlist"
	case SearchTracks:
		return "search_tracks"
	case AddTracks:
		return "add_tracks"
	case Completed:
		return "completed"
	case ExportPlaylist:
		return "export_playlist"
	default:
		return ""
	}
}

// stagePhase maps a converter stage to the phase reported for it.
func stagePhase(s services.Stage) Phase {
	switch s {
	case services.StageCreated:
		return CreatePlaylist
	case services.StagePopulatingTracks:
		return SearchTracks
	case services.StageAddingBatches:
		return AddTracks
	default:
		return Completed
	}
}

func parseURLUpdate(p models.Platform, id string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   ParseURL,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Recognized %s playlist %s", p.Name(), id),
	}
}

func fetchingSourceUpdate(p models.Platform) ProgressUpdate {
	return ProgressUpdate{
		Phase:   FetchSource,
		Step:    0,
		Total:   1,
		Message: fmt.Sprintf("Fetching source playlist from %s...", p.Name()),
	}
}

func foundPlaylistUpdate(data *models.PlaylistData) ProgressUpdate {
	return ProgressUpdate{
		Phase:   FetchSource,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Found playlist: %s (%d tracks)", data.Title, len(data.Tracks)),
		Data:    data,
	}
}

func refreshSessionUpdate(p models.Platform) ProgressUpdate {
	return ProgressUpdate{
		Phase:   RefreshSession,
		Message: fmt.Sprintf("Checking %s session...", p.Name()),
	}
}

func stageUpdate(s services.Stage, dest models.Platform, total int) ProgressUpdate {
	var msg string
	switch s {
	case services.StageCreated:
		msg = fmt.Sprintf("Creating playlist on %s...", dest.Name())
	case services.StagePopulatingTracks:
		msg = fmt.Sprintf("Searching for tracks on %s...", dest.Name())
	case services.StageAddingBatches:
		msg = "Adding matched tracks..."
	default:
		msg = "Finishing up..."
	}
	return ProgressUpdate{Phase: stagePhase(s), Total: total, Message: msg, Data: s}
}

func searchTrackUpdate(step, total int, title string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   SearchTracks,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] %s", step, total, title),
	}
}

func completedUpdate(result *models.ConversionResult) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Completed,
		Step:    result.Total(),
		Total:   result.Total(),
		Message: fmt.Sprintf("Added %d of %d tracks", result.AddedCount, result.Total()),
		Data:    result,
	}
}

func exportingPlaylistUpdate(step, total int, name string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   ExportPlaylist,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] Exporting: %s...", step, total, name),
	}
}

func exportCompletedUpdate(step, total int, name string, filesCount int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   ExportPlaylist,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] ✓ %s (%d files)", step, total, name, filesCount),
	}
}

func exportFailedUpdate(step, total int, name string, err error) ProgressUpdate {
	return ProgressUpdate{
		Phase:   ExportPlaylist,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] ✗ %s: %v", step, total, name, err),
	}
}
