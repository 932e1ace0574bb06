package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
)

// ModelVersion mirrors the model_versions table (spec §4.7). Domain
// scopes a version to "betting" or "trading"; only one version per
// (domain, market) may be active at a time. VersionID doubles as the
// monotonic version number since rows are never renumbered.
// CorrelationID is a uuid assigned at training time so a version can
// be traced back to the training run that produced it independently
// of the autoincrement VersionID.
type ModelVersion struct {
	VersionID          int64
	CorrelationID      string
	Domain             string
	Market             string
	ModelPath          string
	TrainedAt          string
	TrainingSamples    int
	CVScore            float64
	IsActive           bool
	PerformanceMetrics string // JSON blob, run through JSONSafe before persisting
}

// InsertModelVersion records a newly trained model version as inactive
// under a fresh correlation id. Activation is a separate, explicit
// step (SetActive).
func (s *Store) InsertModelVersion(mv ModelVersion) (int64, error) {
	res, err := s.conn.Exec(`
		INSERT INTO model_versions (domain, market, correlation_id, model_path, trained_at, training_samples, cv_score, is_active, performance_metrics)
		VALUES (?, ?, ?, ?, datetime('now'), ?, ?, 0, ?)
	`, mv.Domain, mv.Market, uuid.NewString(), mv.ModelPath, mv.TrainingSamples, mv.CVScore, mv.PerformanceMetrics)
	if err != nil {
		return 0, fmt.Errorf("store: insert model version: %w", err)
	}
	return res.LastInsertId()
}

// SetActive atomically deactivates all other versions for (domain,
// market) and activates the given version id, so exactly one row is
// active per (domain, market) at all times (spec §4.7).
func (s *Store) SetActive(domain, market string, versionID int64) error {
	return s.WithTx(context.Background(), func(tx *sql.Tx) error {
		if _, err := tx.Exec(`
			UPDATE model_versions SET is_active = 0 WHERE domain = ? AND market = ?
		`, domain, market); err != nil {
			return fmt.Errorf("store: deactivate model versions: %w", err)
		}

		res, err := tx.Exec(`
			UPDATE model_versions SET is_active = 1 WHERE version_id = ? AND domain = ? AND market = ?
		`, versionID, domain, market)
		if err != nil {
			return fmt.Errorf("store: activate model version: %w", err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if affected == 0 {
			return fmt.Errorf("store: model version %d not found for domain=%s market=%s", versionID, domain, market)
		}
		return nil
	})
}

// GetActive returns the currently active version for (domain, market), or nil.
func (s *Store) GetActive(domain, market string) (*ModelVersion, error) {
	row := s.conn.QueryRow(`
		SELECT version_id, COALESCE(correlation_id, ''), domain, market, model_path, trained_at,
			COALESCE(training_samples, 0), COALESCE(cv_score, 0), is_active, COALESCE(performance_metrics, '')
		FROM model_versions WHERE domain = ? AND market = ? AND is_active = 1
	`, domain, market)

	var mv ModelVersion
	if err := row.Scan(&mv.VersionID, &mv.CorrelationID, &mv.Domain, &mv.Market, &mv.ModelPath, &mv.TrainedAt,
		&mv.TrainingSamples, &mv.CVScore, &mv.IsActive, &mv.PerformanceMetrics); err != nil {
		if err.Error() == "sql: no rows in result set" {
			return nil, nil
		}
		return nil, fmt.Errorf("store: get active model version: %w", err)
	}
	return &mv, nil
}

// GetAllVersions returns every version for (domain, market), newest first.
func (s *Store) GetAllVersions(domain, market string) ([]ModelVersion, error) {
	rows, err := s.conn.Query(`
		SELECT version_id, COALESCE(correlation_id, ''), domain, market, model_path, trained_at,
			COALESCE(training_samples, 0), COALESCE(cv_score, 0), is_active, COALESCE(performance_metrics, '')
		FROM model_versions WHERE domain = ? AND market = ? ORDER BY version_id DESC
	`, domain, market)
	if err != nil {
		return nil, fmt.Errorf("store: get all model versions: %w", err)
	}
	defer rows.Close()

	var versions []ModelVersion
	for rows.Next() {
		var mv ModelVersion
		if err := rows.Scan(&mv.VersionID, &mv.CorrelationID, &mv.Domain, &mv.Market, &mv.ModelPath, &mv.TrainedAt,
			&mv.TrainingSamples, &mv.CVScore, &mv.IsActive, &mv.PerformanceMetrics); err != nil {
			return nil, fmt.Errorf("store: scan model version: %w", err)
		}
		versions = append(versions, mv)
	}
	return versions, rows.Err()
}

// GetActiveVersions returns the active model version for every market
// under a domain, for callers that iterate "each active model, per
// market" (spec §4.8 betting task).
func (s *Store) GetActiveVersions(domain string) ([]ModelVersion, error) {
	rows, err := s.conn.Query(`
		SELECT version_id, COALESCE(correlation_id, ''), domain, market, model_path, trained_at,
			COALESCE(training_samples, 0), COALESCE(cv_score, 0), is_active, COALESCE(performance_metrics, '')
		FROM model_versions WHERE domain = ? AND is_active = 1 ORDER BY market
	`, domain)
	if err != nil {
		return nil, fmt.Errorf("store: get active model versions: %w", err)
	}
	defer rows.Close()

	var versions []ModelVersion
	for rows.Next() {
		var mv ModelVersion
		if err := rows.Scan(&mv.VersionID, &mv.CorrelationID, &mv.Domain, &mv.Market, &mv.ModelPath, &mv.TrainedAt,
			&mv.TrainingSamples, &mv.CVScore, &mv.IsActive, &mv.PerformanceMetrics); err != nil {
			return nil, fmt.Errorf("store: scan active model version: %w", err)
		}
		versions = append(versions, mv)
	}
	return versions, rows.Err()
}

// PruneOldVersions deletes all but the newest keepN inactive versions
// for (domain, market); the active version is never pruned regardless
// of age (spec §4.7: retention policy).
func (s *Store) PruneOldVersions(domain, market string, keepN int) (int64, error) {
	versions, err := s.GetAllVersions(domain, market)
	if err != nil {
		return 0, err
	}

	var kept int
	var toDelete []int64
	for _, mv := range versions {
		if mv.IsActive {
			continue
		}
		kept++
		if kept > keepN {
			toDelete = append(toDelete, mv.VersionID)
		}
	}
	if len(toDelete) == 0 {
		return 0, nil
	}

	var deleted int64
	err = s.WithTx(context.Background(), func(tx *sql.Tx) error {
		for _, id := range toDelete {
			res, err := tx.Exec(`DELETE FROM model_versions WHERE version_id = ?`, id)
			if err != nil {
				return fmt.Errorf("store: prune model version %d: %w", id, err)
			}
			n, _ := res.RowsAffected()
			deleted += n
		}
		return nil
	})
	return deleted, err
}
