// Package repositories implements SQLite persistence for conversion history.
//
// Key Implementations:
//   - [ConversionRepository] : conversion runs and their per-track outcomes
//   - [History] : records runs as they start and finish
//
// Records are soft deleted via deleted_at and excluded from queries by default.
// Sequence numbers provide stable, human-readable ordering independent of UUIDs and creation timestamps.
// [NextSequence] bumps a per-table counter within the caller's insert transaction.
package repositories
