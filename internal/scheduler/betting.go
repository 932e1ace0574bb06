package scheduler

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/antonkoetzler/arbihawk/internal/store"
)

// TrainingTaskResult summarises one training task run (spec §4.8).
type TrainingTaskResult struct {
	Market       string `json:"market"`
	Success      bool   `json:"success"`
	HasData      bool   `json:"has_data"`
	NoDataReason string `json:"no_data_reason,omitempty"`
	Samples      int    `json:"training_samples,omitempty"`
	CVScore      float64 `json:"cv_score,omitempty"`
}

// TriggerTraining starts the training task for one market (spec §4.8:
// "invokes the backup collaborator with label pre_training").
func (s *Scheduler) TriggerTraining(market string) triggerResult {
	return s.startTask(TaskTraining, domainBetting, func(ctx context.Context, stop <-chan struct{}) taskOutcome {
		return s.runTraining(ctx, stop, "betting", market)
	})
}

func (s *Scheduler) runTraining(ctx context.Context, stop <-chan struct{}, domain, market string) taskOutcome {
	if s.backup != nil {
		if _, err := s.backup.Backup(ctx, "pre_training"); err != nil {
			s.emit(domain, "error", fmt.Sprintf("training: pre-training backup failed: %v", err))
			return taskOutcome{Errors: err.Error()}
		}
	}
	if stopped(stop) {
		return taskOutcome{Stopped: true}
	}
	if s.trainer == nil {
		return taskOutcome{Skipped: true, SkipReason: "no trainer configured"}
	}

	res, err := s.trainer.Train(ctx, domain, market)
	if err != nil {
		s.emit(domain, "error", fmt.Sprintf("training failed for %s: %v", market, err))
		return taskOutcome{Errors: err.Error()}
	}

	result := TrainingTaskResult{Market: market, Success: res.Success, HasData: res.HasData, NoDataReason: res.NoDataReason, Samples: res.Samples, CVScore: res.CVScore}
	if res.Success && !res.HasData {
		// Not an error per spec §4.8: emit a warning, not a failure.
		s.emit(domain, "warning", fmt.Sprintf("training for %s produced no data: %s", market, res.NoDataReason))
	}
	blob, _ := json.Marshal(result)
	return taskOutcome{ResultJSON: string(blob)}
}

// BettingTaskResult summarises one betting task run (spec §4.8).
type BettingTaskResult struct {
	Skipped    bool   `json:"skipped,omitempty"`
	SkipReason string `json:"reason,omitempty"`
	BetsPlaced int    `json:"bets_placed"`
	Markets    []string `json:"markets,omitempty"`
}

// TriggerBetting starts the betting task. fromFullRun governs the
// auto-bet-after-training gate (spec §4.8).
func (s *Scheduler) TriggerBetting(fromFullRun bool) triggerResult {
	return s.startTask(TaskBetting, domainBetting, func(ctx context.Context, stop <-chan struct{}) taskOutcome {
		return s.runBetting(ctx, stop, fromFullRun)
	})
}

func (s *Scheduler) runBetting(ctx context.Context, stop <-chan struct{}, fromFullRun bool) taskOutcome {
	if !s.cfg.FakeMoneyEnabled {
		return s.skippedBetting("Fake money disabled")
	}
	if fromFullRun && !s.cfg.AutoBetAfterTraining {
		return s.skippedBetting("Auto-betting disabled")
	}

	placed := 0
	asOf := time.Now().UTC().Format(time.RFC3339)
	var marketsRun []string

	for market, engine := range s.valuebet {
		if stopped(stop) {
			return s.finishBetting(placed, marketsRun, true)
		}
		marketsRun = append(marketsRun, market)
		placedForModel := 0

		fixtures, err := s.store.GetFixtures(fixtureWindow())
		if err != nil {
			s.emit(domainBetting, "error", fmt.Sprintf("betting: list fixtures for %s: %v", market, err))
			continue
		}

		for _, fx := range fixtures {
			if stopped(stop) {
				return s.finishBetting(placed, marketsRun, true)
			}
			if placedForModel >= s.cfg.LimitPerModel {
				break
			}
			candidates, err := engine.Evaluate(fx.FixtureID, market, asOf)
			if err != nil {
				s.emit(domainBetting, "error", fmt.Sprintf("betting: evaluate %s/%s: %v", fx.FixtureID, market, err))
				continue
			}
			for _, c := range candidates {
				if placedForModel >= s.cfg.LimitPerModel {
					break
				}
				if _, err := s.store.InsertBet(betFromCandidate(c, market)); err != nil {
					s.emit(domainBetting, "error", fmt.Sprintf("betting: insert bet %s: %v", c.FixtureID, err))
					continue
				}
				placed++
				placedForModel++
			}
		}
	}

	return s.finishBetting(placed, marketsRun, false)
}

func (s *Scheduler) skippedBetting(reason string) taskOutcome {
	blob, _ := json.Marshal(BettingTaskResult{Skipped: true, SkipReason: reason})
	return taskOutcome{Skipped: true, SkipReason: reason, ResultJSON: string(blob)}
}

func (s *Scheduler) finishBetting(placed int, markets []string, wasStopped bool) taskOutcome {
	blob, _ := json.Marshal(BettingTaskResult{BetsPlaced: placed, Markets: markets})
	return taskOutcome{Stopped: wasStopped, ResultJSON: string(blob)}
}

// TriggerFullRun chains collection -> training -> betting -> settlement,
// preserving current_task = "full_run" across the sub-tasks so status
// readers see a coherent picture (spec §4.8).
func (s *Scheduler) TriggerFullRun() triggerResult {
	return s.startTask(TaskFullRun, domainBetting, s.runFullRun)
}

// FullRunResult chains each sub-task's own result (spec §4.8).
type FullRunResult struct {
	Collection CollectionResult     `json:"collection"`
	Training   []TrainingTaskResult `json:"training,omitempty"`
	Betting    BettingTaskResult    `json:"betting"`
}

func (s *Scheduler) runFullRun(ctx context.Context, stop <-chan struct{}) taskOutcome {
	var result FullRunResult

	collectionOutcome := s.runCollection(ctx, stop)
	_ = json.Unmarshal([]byte(collectionOutcome.ResultJSON), &result.Collection)
	if collectionOutcome.Stopped {
		return s.finishFullRun(result, true)
	}

	for _, market := range s.cfg.BettingMarkets {
		if stopped(stop) {
			return s.finishFullRun(result, true)
		}
		trainingOutcome := s.runTraining(ctx, stop, "betting", market)
		var tr TrainingTaskResult
		_ = json.Unmarshal([]byte(trainingOutcome.ResultJSON), &tr)
		result.Training = append(result.Training, tr)
		if trainingOutcome.Stopped {
			return s.finishFullRun(result, true)
		}
	}

	bettingOutcome := s.runBetting(ctx, stop, true)
	_ = json.Unmarshal([]byte(bettingOutcome.ResultJSON), &result.Betting)
	if bettingOutcome.Stopped {
		return s.finishFullRun(result, true)
	}

	// Settle any bets that now have scores from the collection just run.
	if _, err := s.settle.SettlePendingBets(); err != nil {
		s.emit(domainBetting, "error", fmt.Sprintf("full_run: settlement: %v", err))
	}

	return s.finishFullRun(result, false)
}

func (s *Scheduler) finishFullRun(result FullRunResult, wasStopped bool) taskOutcome {
	blob, _ := json.Marshal(result)
	return taskOutcome{Stopped: wasStopped, ResultJSON: string(blob)}
}

// fixtureWindow scopes betting to fixtures starting within the next
// 48 hours, long enough for pre-match odds to be available.
func fixtureWindow() store.FixtureFilter {
	now := time.Now().UTC()
	to := now.Add(48 * time.Hour)
	return store.FixtureFilter{FromDate: &now, ToDate: &to}
}

func betFromCandidate(c ValuebetCandidate, modelMarket string) store.Bet {
	return store.Bet{
		FixtureID:   c.FixtureID,
		MarketID:    c.MarketID,
		MarketName:  c.MarketName,
		OutcomeID:   c.OutcomeID,
		OutcomeName: c.OutcomeName,
		Odds:        c.Odds,
		Stake:       c.Stake,
		ModelMarket: modelMarket,
	}
}
