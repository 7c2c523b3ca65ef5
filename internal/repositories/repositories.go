package repositories

import (
	"database/sql"
	"errors"
	"fmt"
)

// NextSequence increments and returns the counter of table inside tx, so a rolled back insert
// does not consume a number.
//
// The table must have a companion <table>_sequence table holding a single row with id 1.
func NextSequence(tx *sql.Tx, table string) (int, error) {
	query := fmt.Sprintf("UPDATE %s_sequence SET value = value + 1 WHERE id = 1 RETURNING value", table)

	var sequence int
	err := tx.QueryRow(query).Scan(&sequence)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("sequence table for %s has no counter row", table)
	}
	if err != nil {
		return 0, fmt.Errorf("failed to increment sequence: %w", err)
	}
	return sequence, nil
}
