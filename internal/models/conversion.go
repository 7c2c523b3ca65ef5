package models

import (
	"errors"
	"fmt"
	"time"
)

// ConversionStatus is the stored lifecycle state of a conversion run.
type ConversionStatus string

const (
	StatusConverting ConversionStatus = "converting"
	StatusCompleted  ConversionStatus = "completed"
	StatusFailed     ConversionStatus = "failed"
)

var _ Model = (*ConversionRecord)(nil)

// ConversionRecord is a persisted conversion run.
type ConversionRecord struct {
	id             string
	sequence       int
	sourcePlatform Platform
	sourceURL      string
	sourceTitle    string
	destPlatform   Platform
	destinationID  string
	destinationURL string
	totalTracks    int
	addedCount     int
	failedCount    int
	status         ConversionStatus
	errMessage     string
	createdAt      time.Time
	updatedAt      time.Time
	deletedAt      *time.Time
	tracks         []ConversionTrack
}

// ConversionTrack is the stored outcome of one source track.
type ConversionTrack struct {
	Position      int
	Title         string
	Artist        string
	DestinationID string
	Tier          QueryTier
	Score         float64
	Added         bool
}

// NewConversionRecord starts a record for converting data to its counterpart platform.
func NewConversionRecord(data *PlaylistData) *ConversionRecord {
	now := time.Now().UTC()
	return &ConversionRecord{
		sourcePlatform: data.SourcePlatform,
		sourceURL:      data.OriginalURL,
		sourceTitle:    data.Title,
		destPlatform:   data.SourcePlatform.Other(),
		totalTracks:    len(data.Tracks),
		status:         StatusConverting,
		createdAt:      now,
		updatedAt:      now,
	}
}

// RestoreConversionRecord rebuilds a record from stored columns.
func RestoreConversionRecord(
	id string, sequence int,
	sourcePlatform Platform, sourceURL, sourceTitle string,
	destPlatform Platform, destinationID, destinationURL string,
	total, added, failed int,
	status ConversionStatus, errMessage string,
	createdAt, updatedAt time.Time, deletedAt *time.Time,
) *ConversionRecord {
	return &ConversionRecord{
		id: id, sequence: sequence,
		sourcePlatform: sourcePlatform, sourceURL: sourceURL, sourceTitle: sourceTitle,
		destPlatform: destPlatform, destinationID: destinationID, destinationURL: destinationURL,
		totalTracks: total, addedCount: added, failedCount: failed,
		status: status, errMessage: errMessage,
		createdAt: createdAt, updatedAt: updatedAt, deletedAt: deletedAt,
	}
}

func (c *ConversionRecord) ID() string                    { return c.id }
func (c *ConversionRecord) Sequence() int                 { return c.sequence }
func (c *ConversionRecord) SourcePlatform() Platform      { return c.sourcePlatform }
func (c *ConversionRecord) SourceURL() string             { return c.sourceURL }
func (c *ConversionRecord) SourceTitle() string           { return c.sourceTitle }
func (c *ConversionRecord) DestinationPlatform() Platform { return c.destPlatform }
func (c *ConversionRecord) DestinationID() string         { return c.destinationID }
func (c *ConversionRecord) DestinationURL() string        { return c.destinationURL }
func (c *ConversionRecord) TotalTracks() int              { return c.totalTracks }
func (c *ConversionRecord) AddedCount() int               { return c.addedCount }
func (c *ConversionRecord) FailedCount() int              { return c.failedCount }
func (c *ConversionRecord) Status() ConversionStatus      { return c.status }
func (c *ConversionRecord) Error() string                 { return c.errMessage }
func (c *ConversionRecord) CreatedAt() time.Time          { return c.createdAt }
func (c *ConversionRecord) UpdatedAt() time.Time          { return c.updatedAt }
func (c *ConversionRecord) DeletedAt() *time.Time         { return c.deletedAt }
func (c *ConversionRecord) Tracks() []ConversionTrack     { return c.tracks }

func (c *ConversionRecord) SetID(id string)               { c.id = id }
func (c *ConversionRecord) SetSequence(seq int)           { c.sequence = seq }
func (c *ConversionRecord) SetUpdatedAt(t time.Time)      { c.updatedAt = t }
func (c *ConversionRecord) SetTracks(t []ConversionTrack) { c.tracks = t }

// Complete stores a finished conversion and its per-track outcomes.
func (c *ConversionRecord) Complete(result *ConversionResult) {
	c.status = StatusCompleted
	c.destinationID = result.DestinationPlaylistID
	c.destinationURL = result.DestinationPlaylistURL
	c.addedCount = result.AddedCount
	c.failedCount = len(result.FailedTracks)
	c.tracks = make([]ConversionTrack, len(result.Matches))
	for i, m := range result.Matches {
		c.tracks[i] = ConversionTrack{
			Position:      i,
			Title:         m.Track.Title,
			Artist:        m.Track.Artist,
			DestinationID: m.DestinationID,
			Tier:          m.Tier,
			Score:         m.Score,
			Added:         m.Added,
		}
	}
}

// Fail marks the conversion as aborted with err.
func (c *ConversionRecord) Fail(err error) {
	c.status = StatusFailed
	if err != nil {
		c.errMessage = err.Error()
	}
}

// Validate checks required fields and the added/failed reconciliation of completed runs.
func (c *ConversionRecord) Validate() error {
	switch {
	case !c.sourcePlatform.Valid():
		return fmt.Errorf("invalid source platform %q", c.sourcePlatform)
	case !c.destPlatform.Valid():
		return fmt.Errorf("invalid destination platform %q", c.destPlatform)
	case c.sourceURL == "":
		return errors.New("source url is required")
	}

	switch c.status {
	case StatusConverting, StatusFailed:
	case StatusCompleted:
		if c.addedCount+c.failedCount != c.totalTracks {
			return fmt.Errorf("added (%d) + failed (%d) does not match total (%d)", c.addedCount, c.failedCount, c.totalTracks)
		}
	default:
		return fmt.Errorf("invalid status %q", c.status)
	}
	return nil
}
