package repositories

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/crossfade/internal/models"
	"github.com/desertthunder/crossfade/internal/shared"
)

const conversionColumns = `id, sequence, source_platform, source_url, source_title, destination_platform, destination_id,
	destination_url, total_tracks, added_count, failed_count, status, error, created_at, updated_at, deleted_at`

var _ models.Repository[*models.ConversionRecord] = (*ConversionRepository)(nil)

// ConversionRepository implements models.Repository[*models.ConversionRecord] for conversion history.
//
// A record's per-track outcomes live in conversion_tracks and are written and read together with it.
type ConversionRepository struct {
	db *sql.DB
}

// NewConversionRepository creates a new ConversionRepository with the given database connection
func NewConversionRepository(db *sql.DB) *ConversionRepository {
	return &ConversionRepository{db: db}
}

// Create inserts a new conversion with a generated ID and sequence
func (r *ConversionRepository) Create(c *models.ConversionRecord) error {
	if err := c.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	sequence, err := NextSequence(tx, "conversions")
	if err != nil {
		return fmt.Errorf("failed to generate sequence: %w", err)
	}
	c.SetID(shared.GenerateID())
	c.SetSequence(sequence)

	query := `
		INSERT INTO conversions (id, sequence, source_platform, source_url, source_title, destination_platform, destination_id,
			destination_url, total_tracks, added_count, failed_count, status, error, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err = tx.Exec(query,
		c.ID(),
		c.Sequence(),
		c.SourcePlatform(),
		c.SourceURL(),
		c.SourceTitle(),
		c.DestinationPlatform(),
		c.DestinationID(),
		c.DestinationURL(),
		c.TotalTracks(),
		c.AddedCount(),
		c.FailedCount(),
		c.Status(),
		c.Error(),
		c.CreatedAt(),
		c.UpdatedAt(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert conversion: %w", err)
	}

	if err := insertTracks(tx, c.ID(), c.Tracks()); err != nil {
		return err
	}
	return tx.Commit()
}

// Get retrieves a conversion and its tracks by ID, excluding soft-deleted conversions
func (r *ConversionRepository) Get(id string) (*models.ConversionRecord, error) {
	query := `SELECT ` + conversionColumns + ` FROM conversions WHERE id = ? AND deleted_at IS NULL`

	c, err := scanConversion(r.db.QueryRow(query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("conversion %s: %w", id, shared.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}

	tracks, err := r.Tracks(id)
	if err != nil {
		return nil, err
	}
	c.SetTracks(tracks)
	return c, nil
}

// Update stores the outcome of a conversion and replaces its tracks
func (r *ConversionRepository) Update(c *models.ConversionRecord) error {
	if err := c.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	now := time.Now().UTC()
	c.SetUpdatedAt(now)

	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
		UPDATE conversions
		SET destination_id = ?, destination_url = ?, added_count = ?, failed_count = ?, status = ?, error = ?, updated_at = ?
		WHERE id = ? AND deleted_at IS NULL
	`
	result, err := tx.Exec(query,
		c.DestinationID(),
		c.DestinationURL(),
		c.AddedCount(),
		c.FailedCount(),
		c.Status(),
		c.Error(),
		now,
		c.ID(),
	)
	if err != nil {
		return fmt.Errorf("failed to update conversion: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("conversion not found or already deleted: %s: %w", c.ID(), shared.ErrNotFound)
	}

	if _, err := tx.Exec("DELETE FROM conversion_tracks WHERE conversion_id = ?", c.ID()); err != nil {
		return fmt.Errorf("failed to clear conversion tracks: %w", err)
	}
	if err := insertTracks(tx, c.ID(), c.Tracks()); err != nil {
		return err
	}
	return tx.Commit()
}

// Delete soft-deletes a conversion by ID
func (r *ConversionRepository) Delete(id string) error {
	query := `UPDATE conversions SET deleted_at = ? WHERE id = ? AND deleted_at IS NULL`

	result, err := r.db.Exec(query, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to delete conversion: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("conversion not found or already deleted: %s: %w", id, shared.ErrNotFound)
	}
	return nil
}

// List retrieves conversions newest first, without their tracks.
//
// Supported criteria: source_platform, destination_platform, status, source_url (strings) and limit (int).
func (r *ConversionRepository) List(criteria map[string]any) ([]*models.ConversionRecord, error) {
	query := `SELECT ` + conversionColumns + ` FROM conversions WHERE deleted_at IS NULL`
	args := []any{}

	for _, key := range []string{"source_platform", "destination_platform", "status", "source_url"} {
		if v, ok := criteria[key]; ok {
			if s := fmt.Sprint(v); s != "" {
				query += " AND " + key + " = ?"
				args = append(args, s)
			}
		}
	}

	query += " ORDER BY sequence DESC"
	if limit, ok := criteria["limit"].(int); ok && limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query conversions: %w", err)
	}
	defer rows.Close()

	var conversions []*models.ConversionRecord
	for rows.Next() {
		c, err := scanConversion(rows)
		if err != nil {
			return nil, err
		}
		conversions = append(conversions, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return conversions, nil
}

// Tracks returns the stored per-track outcomes of a conversion in source order
func (r *ConversionRepository) Tracks(conversionID string) ([]models.ConversionTrack, error) {
	query := `
		SELECT position, title, artist, destination_id, query_tier, score, added
		FROM conversion_tracks
		WHERE conversion_id = ?
		ORDER BY position ASC
	`
	rows, err := r.db.Query(query, conversionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query conversion tracks: %w", err)
	}
	defer rows.Close()

	tracks := []models.ConversionTrack{}
	for rows.Next() {
		var (
			t    models.ConversionTrack
			tier string
		)
		if err := rows.Scan(&t.Position, &t.Title, &t.Artist, &t.DestinationID, &tier, &t.Score, &t.Added); err != nil {
			return nil, fmt.Errorf("failed to scan conversion track: %w", err)
		}
		t.Tier = models.QueryTier(tier)
		tracks = append(tracks, t)
	}
	return tracks, rows.Err()
}

// ConversionStats summarizes the stored history.
type ConversionStats struct {
	Conversions int
	Completed   int
	Failed      int
	Tracks      int
	Added       int
}

// MatchRate is the share of tracks added across completed conversions, as a percentage.
func (s ConversionStats) MatchRate() float64 {
	if s.Tracks == 0 {
		return 0
	}
	return float64(s.Added) / float64(s.Tracks) * 100
}

// Stats aggregates all non-deleted conversions
func (r *ConversionRepository) Stats() (ConversionStats, error) {
	query := `
		SELECT
			COUNT(*),
			COALESCE(SUM(CASE WHEN status = ? THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN status = ? THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN status = ? THEN total_tracks ELSE 0 END), 0),
			COALESCE(SUM(added_count), 0)
		FROM conversions
		WHERE deleted_at IS NULL
	`

	var s ConversionStats
	err := r.db.QueryRow(query, models.StatusCompleted, models.StatusFailed, models.StatusCompleted).
		Scan(&s.Conversions, &s.Completed, &s.Failed, &s.Tracks, &s.Added)
	if err != nil {
		return s, fmt.Errorf("failed to aggregate conversions: %w", err)
	}
	return s, nil
}

func insertTracks(tx *sql.Tx, conversionID string, tracks []models.ConversionTrack) error {
	if len(tracks) == 0 {
		return nil
	}

	stmt, err := tx.Prepare(`
		INSERT INTO conversion_tracks (conversion_id, position, title, artist, destination_id, query_tier, score, added)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare track insert: %w", err)
	}
	defer stmt.Close()

	for _, t := range tracks {
		if _, err := stmt.Exec(conversionID, t.Position, t.Title, t.Artist, t.DestinationID, string(t.Tier), t.Score, t.Added); err != nil {
			return fmt.Errorf("failed to insert conversion track %d: %w", t.Position, err)
		}
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

// scanConversion reads one row selected with conversionColumns.
func scanConversion(row scanner) (*models.ConversionRecord, error) {
	var (
		id             string
		sequence       int
		sourcePlatform string
		sourceURL      string
		sourceTitle    string
		destPlatform   string
		destinationID  string
		destinationURL string
		total          int
		added          int
		failed         int
		status         string
		errMessage     string
		createdAt      time.Time
		updatedAt      time.Time
		deletedAt      sql.NullTime
	)

	err := row.Scan(&id, &sequence, &sourcePlatform, &sourceURL, &sourceTitle, &destPlatform, &destinationID,
		&destinationURL, &total, &added, &failed, &status, &errMessage, &createdAt, &updatedAt, &deletedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan conversion: %w", err)
	}

	var deleted *time.Time
	if deletedAt.Valid {
		deleted = &deletedAt.Time
	}

	return models.RestoreConversionRecord(
		id, sequence,
		models.Platform(sourcePlatform), sourceURL, sourceTitle,
		models.Platform(destPlatform), destinationID, destinationURL,
		total, added, failed,
		models.ConversionStatus(status), errMessage,
		createdAt, updatedAt, deleted,
	), nil
}
