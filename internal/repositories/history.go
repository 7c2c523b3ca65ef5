package repositories

import (
	"fmt"

	"github.com/desertthunder/crossfade/internal/models"
)

// History records conversion runs as they start and finish.
type History struct {
	repo *ConversionRepository
}

// NewHistory wraps repo.
func NewHistory(repo *ConversionRepository) *History {
	return &History{repo: repo}
}

// Start stores a converting record for data and returns its ID.
func (h *History) Start(data *models.PlaylistData) (string, error) {
	record := models.NewConversionRecord(data)
	if err := h.repo.Create(record); err != nil {
		return "", fmt.Errorf("failed to record conversion start: %w", err)
	}
	return record.ID(), nil
}

// Finish marks the record completed with result, or failed when runErr is set.
func (h *History) Finish(id string, result *models.ConversionResult, runErr error) error {
	record, err := h.repo.Get(id)
	if err != nil {
		return err
	}

	if runErr != nil || result == nil {
		record.Fail(runErr)
	} else {
		record.Complete(result)
	}

	if err := h.repo.Update(record); err != nil {
		return fmt.Errorf("failed to record conversion outcome: %w", err)
	}
	return nil
}
