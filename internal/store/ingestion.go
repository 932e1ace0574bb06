package store

import "fmt"

// IngestionRecord mirrors ingestion_metadata: one row per distinct
// payload seen from a source, keyed by (source, checksum) so that
// re-ingesting identical content is a no-op (spec §4.3: dedup by
// content checksum, not by arrival time).
type IngestionRecord struct {
	ID               int64
	Source           string
	Checksum         string
	RecordsCount     int
	IngestedAt       string
	ValidationStatus string // valid, invalid, partial
	Errors           string
	Dismissed        bool
}

// RecordIngestion inserts a new ingestion_metadata row. Callers must
// check HasSeenChecksum first; inserting a duplicate (source,
// checksum) pair violates the unique constraint.
func (s *Store) RecordIngestion(source, checksum string, recordsCount int) (int64, error) {
	return s.RecordIngestionWithValidation(source, checksum, recordsCount, "valid", "")
}

// RecordIngestionWithValidation inserts a new ingestion_metadata row
// carrying the validator's outcome (spec §4.3 pipeline: validate, then
// record, regardless of outcome, so rejected payloads are never
// silently retried).
func (s *Store) RecordIngestionWithValidation(source, checksum string, recordsCount int, validationStatus, errs string) (int64, error) {
	res, err := s.conn.Exec(`
		INSERT INTO ingestion_metadata (source, checksum, records_count, ingested_at, validation_status, errors, dismissed)
		VALUES (?, ?, ?, datetime('now'), ?, ?, 0)
	`, source, checksum, recordsCount, validationStatus, errs)
	if err != nil {
		return 0, fmt.Errorf("store: record ingestion: %w", err)
	}
	return res.LastInsertId()
}

// HasSeenChecksum reports whether (source, checksum) was already ingested.
func (s *Store) HasSeenChecksum(source, checksum string) (bool, error) {
	row := s.conn.QueryRow(`
		SELECT COUNT(*) FROM ingestion_metadata WHERE source = ? AND checksum = ?
	`, source, checksum)

	var count int
	if err := row.Scan(&count); err != nil {
		return false, fmt.Errorf("store: has seen checksum: %w", err)
	}
	return count > 0, nil
}

// DismissIngestion marks an ingestion_metadata row dismissed, e.g. when
// a payload was accepted by the runner but rejected by the validator
// and should not be retried (spec §4.3).
func (s *Store) DismissIngestion(id int64) error {
	_, err := s.conn.Exec(`UPDATE ingestion_metadata SET dismissed = 1 WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("store: dismiss ingestion: %w", err)
	}
	return nil
}

// GetRecentIngestions returns the most recent ingestion_metadata rows
// for a source, newest first, for status-surface reporting.
func (s *Store) GetRecentIngestions(source string, limit int) ([]IngestionRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.conn.Query(`
		SELECT id, source, checksum, records_count, ingested_at, validation_status, COALESCE(errors, ''), dismissed
		FROM ingestion_metadata WHERE source = ? ORDER BY ingested_at DESC, id DESC LIMIT ?
	`, source, limit)
	if err != nil {
		return nil, fmt.Errorf("store: get recent ingestions: %w", err)
	}
	defer rows.Close()

	var records []IngestionRecord
	for rows.Next() {
		var r IngestionRecord
		if err := rows.Scan(&r.ID, &r.Source, &r.Checksum, &r.RecordsCount, &r.IngestedAt,
			&r.ValidationStatus, &r.Errors, &r.Dismissed); err != nil {
			return nil, fmt.Errorf("store: scan ingestion record: %w", err)
		}
		records = append(records, r)
	}
	return records, rows.Err()
}
