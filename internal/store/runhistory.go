package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
)

// RunRecord mirrors run_history: one row per scheduler task execution
// (spec §4.8). Persisting this row must never block task completion —
// callers are expected to log-and-swallow errors from these calls.
type RunRecord struct {
	ID              int64
	CorrelationID   string
	RunType         string
	Domain          string
	StartedAt       string
	CompletedAt     string
	DurationSeconds float64
	Success         bool
	Stopped         bool
	Skipped         bool
	SkipReason      string
	ResultData      string // JSON, run through JSONSafe before persisting
	Errors          string
}

// InsertRunHistory records the start of a task run under a fresh
// correlation id and returns its row id. The correlation id threads
// this run through logs and result data independently of the
// autoincrement id, which is only stable within this database.
func (s *Store) InsertRunHistory(runType, domain string) (int64, error) {
	res, err := s.conn.Exec(`
		INSERT INTO run_history (run_type, domain, correlation_id, started_at, success, stopped, skipped)
		VALUES (?, ?, ?, datetime('now'), 0, 0, 0)
	`, runType, domain, uuid.NewString())
	if err != nil {
		return 0, fmt.Errorf("store: insert run history: %w", err)
	}
	return res.LastInsertId()
}

// FinishRunHistory records the outcome of a completed task run.
func (s *Store) FinishRunHistory(id int64, success bool, resultData, errs string) error {
	_, err := s.conn.Exec(`
		UPDATE run_history SET
			completed_at = datetime('now'),
			duration_seconds = (julianday(datetime('now')) - julianday(started_at)) * 86400.0,
			success = ?, result_data = ?, errors = ?
		WHERE id = ?
	`, success, resultData, errs, id)
	if err != nil {
		return fmt.Errorf("store: finish run history: %w", err)
	}
	return nil
}

// StopRunHistory records that a run was cancelled mid-flight via the
// scheduler's stop-task event (spec §4.8).
func (s *Store) StopRunHistory(id int64) error {
	_, err := s.conn.Exec(`
		UPDATE run_history SET
			completed_at = datetime('now'),
			duration_seconds = (julianday(datetime('now')) - julianday(started_at)) * 86400.0,
			stopped = 1, success = 0
		WHERE id = ?
	`, id)
	if err != nil {
		return fmt.Errorf("store: stop run history: %w", err)
	}
	return nil
}

// SkipRunHistory records a run that was skipped before it started
// (e.g. another task already holds the current_task slot).
func (s *Store) SkipRunHistory(runType, domain, reason string) error {
	_, err := s.conn.Exec(`
		INSERT INTO run_history (run_type, domain, correlation_id, started_at, completed_at, success, stopped, skipped, skip_reason)
		VALUES (?, ?, ?, datetime('now'), datetime('now'), 0, 0, 1, ?)
	`, runType, domain, uuid.NewString(), reason)
	if err != nil {
		return fmt.Errorf("store: skip run history: %w", err)
	}
	return nil
}

// GetRecentRuns returns the most recent run_history rows for a run
// type, newest first, for status-surface reporting. An empty runType
// returns rows across all run types.
func (s *Store) GetRecentRuns(runType string, limit int) ([]RunRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	query := `SELECT id, COALESCE(correlation_id, ''), run_type, domain, started_at, COALESCE(completed_at, ''),
		COALESCE(duration_seconds, 0), success, stopped, skipped, COALESCE(skip_reason, ''),
		COALESCE(result_data, ''), COALESCE(errors, '')
		FROM run_history`
	var args []interface{}
	if runType != "" {
		query += " WHERE run_type = ?"
		args = append(args, runType)
	}
	query += " ORDER BY started_at DESC LIMIT ?"
	args = append(args, limit)

	rows, err := s.conn.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("store: get recent runs: %w", err)
	}
	defer rows.Close()

	var records []RunRecord
	for rows.Next() {
		var r RunRecord
		if err := rows.Scan(&r.ID, &r.CorrelationID, &r.RunType, &r.Domain, &r.StartedAt, &r.CompletedAt, &r.DurationSeconds,
			&r.Success, &r.Stopped, &r.Skipped, &r.SkipReason, &r.ResultData, &r.Errors); err != nil {
			return nil, fmt.Errorf("store: scan run record: %w", err)
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

// PruneRunHistory deletes all but the newest keepN run_history rows,
// mirroring PruneOldVersions' keep-newest-N retention policy (spec
// §4.8). Unlike model versions there is no "active" row to protect:
// every row describes a completed or in-flight run.
func (s *Store) PruneRunHistory(keepN int) (int64, error) {
	rows, err := s.conn.Query(`SELECT id FROM run_history ORDER BY started_at DESC`)
	if err != nil {
		return 0, fmt.Errorf("store: list run history ids: %w", err)
	}
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return 0, fmt.Errorf("store: scan run history id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return 0, err
	}
	rows.Close()

	if len(ids) <= keepN {
		return 0, nil
	}
	toDelete := ids[keepN:]

	var deleted int64
	err = s.WithTx(context.Background(), func(tx *sql.Tx) error {
		for _, id := range toDelete {
			res, err := tx.Exec(`DELETE FROM run_history WHERE id = ?`, id)
			if err != nil {
				return fmt.Errorf("store: prune run history %d: %w", id, err)
			}
			n, _ := res.RowsAffected()
			deleted += n
		}
		return nil
	})
	return deleted, err
}

// InsertLogSnapshot persists a pre-marshaled JSON snapshot of the
// scheduler's in-memory log ring buffer. It takes the JSON string
// rather than a typed entry slice so that store, which scheduler
// imports, never needs to import scheduler's log types back.
func (s *Store) InsertLogSnapshot(entriesJSON string) (int64, error) {
	res, err := s.conn.Exec(`
		INSERT INTO log_snapshots (captured_at, entries_json) VALUES (datetime('now'), ?)
	`, entriesJSON)
	if err != nil {
		return 0, fmt.Errorf("store: insert log snapshot: %w", err)
	}
	return res.LastInsertId()
}

// PruneLogSnapshots deletes all but the newest keepN log snapshot rows.
func (s *Store) PruneLogSnapshots(keepN int) (int64, error) {
	rows, err := s.conn.Query(`SELECT id FROM log_snapshots ORDER BY captured_at DESC`)
	if err != nil {
		return 0, fmt.Errorf("store: list log snapshot ids: %w", err)
	}
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return 0, fmt.Errorf("store: scan log snapshot id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return 0, err
	}
	rows.Close()

	if len(ids) <= keepN {
		return 0, nil
	}
	toDelete := ids[keepN:]

	var deleted int64
	err = s.WithTx(context.Background(), func(tx *sql.Tx) error {
		for _, id := range toDelete {
			res, err := tx.Exec(`DELETE FROM log_snapshots WHERE id = ?`, id)
			if err != nil {
				return fmt.Errorf("store: prune log snapshot %d: %w", id, err)
			}
			n, _ := res.RowsAffected()
			deleted += n
		}
		return nil
	})
	return deleted, err
}
