// Package modelversion manages per-(domain, market) model versions
// with atomic activation and automatic-rollback detection (spec §4.7).
package modelversion

import (
	"context"
	"fmt"

	"github.com/antonkoetzler/arbihawk/internal/store"
)

// Backuper is invoked before a rollback (spec §4.7: "invokes the
// backup collaborator"). Its own implementation is out of scope for
// this package (internal/backup satisfies it).
type Backuper interface {
	Backup(ctx context.Context, label string) (string, error)
}

// Config tunes automatic rollback detection.
type Config struct {
	MaxVersionsToKeep      int
	RollbackEnabled        bool
	RollbackROIThreshold   float64 // negative, e.g. -0.1
	RollbackMinSettledBets int
}

// Manager is the model-version collaborator bound to a store.
type Manager struct {
	store   *store.Store
	backup  Backuper
	cfg     Config
}

// New constructs a Manager.
func New(s *store.Store, backup Backuper, cfg Config) *Manager {
	if cfg.MaxVersionsToKeep == 0 {
		cfg.MaxVersionsToKeep = 5
	}
	if cfg.RollbackMinSettledBets == 0 {
		cfg.RollbackMinSettledBets = 20
	}
	return &Manager{store: s, backup: backup, cfg: cfg}
}

// SaveVersion records a newly trained model version, optionally
// activates it, and enforces retention (spec §4.7).
func (m *Manager) SaveVersion(domain, market, modelPath string, trainingSamples int, cvScore float64, performanceMetrics string, activate bool) (int64, error) {
	versionID, err := m.store.InsertModelVersion(store.ModelVersion{
		Domain: domain, Market: market, ModelPath: modelPath,
		TrainingSamples: trainingSamples, CVScore: cvScore, PerformanceMetrics: performanceMetrics,
	})
	if err != nil {
		return 0, fmt.Errorf("modelversion: save version: %w", err)
	}

	if activate {
		if err := m.store.SetActive(domain, market, versionID); err != nil {
			return versionID, fmt.Errorf("modelversion: activate new version: %w", err)
		}
	}

	if _, err := m.store.PruneOldVersions(domain, market, m.cfg.MaxVersionsToKeep); err != nil {
		return versionID, fmt.Errorf("modelversion: prune old versions: %w", err)
	}

	return versionID, nil
}

// SetActive atomically activates a version for (domain, market).
func (m *Manager) SetActive(domain, market string, versionID int64) error {
	return m.store.SetActive(domain, market, versionID)
}

// GetActive returns the active version for (domain, market), or nil.
func (m *Manager) GetActive(domain, market string) (*store.ModelVersion, error) {
	return m.store.GetActive(domain, market)
}

// RollbackToVersion backs up the database, then activates versionID
// under its own (domain, market) (spec §4.7).
func (m *Manager) RollbackToVersion(ctx context.Context, domain, market string, versionID int64) (bool, error) {
	versions, err := m.store.GetAllVersions(domain, market)
	if err != nil {
		return false, fmt.Errorf("modelversion: list versions for rollback: %w", err)
	}

	var target *store.ModelVersion
	for i := range versions {
		if versions[i].VersionID == versionID {
			target = &versions[i]
			break
		}
	}
	if target == nil {
		return false, nil
	}

	if m.backup != nil {
		if _, err := m.backup.Backup(ctx, "pre_rollback"); err != nil {
			return false, fmt.Errorf("modelversion: backup before rollback: %w", err)
		}
	}

	if err := m.store.SetActive(target.Domain, target.Market, target.VersionID); err != nil {
		return false, fmt.Errorf("modelversion: activate rollback target: %w", err)
	}
	return true, nil
}

// CheckShouldRollback evaluates recent ROI for a market's active model
// and, if automatic rollback is enabled and ROI has fallen below the
// configured negative threshold over at least the configured minimum
// number of settled bets, returns the previous-active version id to
// roll back to (spec §4.7).
func (m *Manager) CheckShouldRollback(domain, market string) (int64, bool, error) {
	if !m.cfg.RollbackEnabled {
		return 0, false, nil
	}

	stats, err := m.store.GetBankrollStats(market)
	if err != nil {
		return 0, false, fmt.Errorf("modelversion: bankroll stats for %s: %w", market, err)
	}
	if stats.SettledBets < m.cfg.RollbackMinSettledBets {
		return 0, false, nil
	}
	if stats.ROI >= m.cfg.RollbackROIThreshold {
		return 0, false, nil
	}

	versions, err := m.store.GetAllVersions(domain, market)
	if err != nil {
		return 0, false, fmt.Errorf("modelversion: list versions for %s: %w", market, err)
	}

	var activeIdx = -1
	for i, v := range versions {
		if v.IsActive {
			activeIdx = i
			break
		}
	}
	// versions is newest-first; the previous active version is the
	// next-older non-active row.
	if activeIdx == -1 || activeIdx+1 >= len(versions) {
		return 0, false, nil
	}
	return versions[activeIdx+1].VersionID, true, nil
}
