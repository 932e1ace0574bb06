package scheduler

import (
	"encoding/json"

	"github.com/robfig/cron/v3"
)

// StartMaintenanceCron registers a fixed-time maintenance sweep on its
// own cron schedule (spec §4.8), independent of the betting/trading
// daemon loops in daemon.go, which only ever sleep on a fixed interval
// between runs. Each tick snapshots the in-memory log ring buffer into
// run_history's sibling log_snapshots table and prunes both tables
// down to their configured retention, so neither grows unbounded on a
// long-lived process. Returns an error if the cron spec is invalid;
// if a sweep is already scheduled it does nothing and returns nil.
func (s *Scheduler) StartMaintenanceCron(spec string, runHistoryRetention, logSnapshotRetention int) error {
	s.maintenanceMu.Lock()
	defer s.maintenanceMu.Unlock()
	if s.maintenanceCron != nil {
		return nil
	}

	c := cron.New()
	if _, err := c.AddFunc(spec, func() {
		s.runMaintenanceSweep(runHistoryRetention, logSnapshotRetention)
	}); err != nil {
		return err
	}

	s.maintenanceCron = c
	c.Start()
	return nil
}

// StopMaintenanceCron stops the maintenance cron and waits for any
// in-flight sweep to finish.
func (s *Scheduler) StopMaintenanceCron() {
	s.maintenanceMu.Lock()
	c := s.maintenanceCron
	s.maintenanceCron = nil
	s.maintenanceMu.Unlock()
	if c == nil {
		return
	}
	<-c.Stop().Done()
}

// runMaintenanceSweep snapshots the current log ring buffer and prunes
// run_history and log_snapshots to their retention bounds. Failures are
// logged and swallowed: a missed sweep must never take down the
// process, matching recordOutcome's guarded-call treatment of
// run_history persistence.
func (s *Scheduler) runMaintenanceSweep(runHistoryRetention, logSnapshotRetention int) {
	entries := s.logs.tail(0)
	blob, err := json.Marshal(entries)
	if err != nil {
		s.log.Warn().Err(err).Msg("maintenance sweep: failed to marshal log snapshot")
	} else if _, err := s.store.InsertLogSnapshot(string(blob)); err != nil {
		s.log.Warn().Err(err).Msg("maintenance sweep: failed to persist log snapshot")
	}

	if deleted, err := s.store.PruneRunHistory(runHistoryRetention); err != nil {
		s.log.Warn().Err(err).Msg("maintenance sweep: failed to prune run history")
	} else if deleted > 0 {
		s.log.Info().Int64("deleted", deleted).Msg("maintenance sweep: pruned run history")
	}

	if deleted, err := s.store.PruneLogSnapshots(logSnapshotRetention); err != nil {
		s.log.Warn().Err(err).Msg("maintenance sweep: failed to prune log snapshots")
	} else if deleted > 0 {
		s.log.Info().Int64("deleted", deleted).Msg("maintenance sweep: pruned log snapshots")
	}
}
