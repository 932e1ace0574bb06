package scheduler

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/antonkoetzler/arbihawk/internal/ingestion"
	"github.com/antonkoetzler/arbihawk/internal/matchidentity"
)

// CollectionResult summarises one collection task run (spec §4.8).
type CollectionResult struct {
	BetanoLeaguesOK      int      `json:"betano_leagues_ok"`
	BetanoLeaguesFailed  int      `json:"betano_leagues_failed"`
	BetanoRecords        int      `json:"betano_records"`
	FlashscoreLeaguesOK  int      `json:"flashscore_leagues_ok"`
	FlashscoreRecords    int      `json:"flashscore_records"`
	UsedLivescoreFallback bool    `json:"used_livescore_fallback"`
	LivescoreRecords     int      `json:"livescore_records"`
	ScoresMatched        int      `json:"scores_matched"`
	ScoresUnmatched      int      `json:"scores_unmatched"`
	StaleScoresDeleted   int64    `json:"stale_scores_deleted"`
	BetsSettled          int      `json:"bets_settled"`
	Errors               []string `json:"errors,omitempty"`
}

// TriggerCollection starts the betting-domain collection task (spec §4.8).
func (s *Scheduler) TriggerCollection() triggerResult {
	return s.startTask(TaskCollection, domainBetting, s.runCollection)
}

func (s *Scheduler) runCollection(ctx context.Context, stop <-chan struct{}) taskOutcome {
	result := CollectionResult{}

	if len(s.cfg.BetanoLeagueIDs) > 0 && s.commands.Betano != nil {
		ok, failed, records, errs := s.runScraperPool(ctx, stop, domainBetting, ingestion.SourceBetano,
			s.cfg.BetanoLeagueIDs, s.cfg.MaxWorkersLeagues, s.commands.Betano)
		result.BetanoLeaguesOK, result.BetanoLeaguesFailed, result.BetanoRecords = ok, failed, records
		result.Errors = append(result.Errors, errs...)
	}
	if stopped(stop) {
		return s.finishCollection(result, true)
	}

	if len(s.cfg.FlashscoreLeagueSlugs) > 0 && s.commands.Flashscore != nil {
		ok, _, records, errs := s.runScraperPool(ctx, stop, domainBetting, ingestion.SourceFlashscore,
			s.cfg.FlashscoreLeagueSlugs, s.cfg.MaxWorkersLeaguesPlaywright, s.commands.Flashscore)
		result.FlashscoreLeaguesOK, result.FlashscoreRecords = ok, records
		result.Errors = append(result.Errors, errs...)
	}
	if stopped(stop) {
		return s.finishCollection(result, true)
	}

	if result.FlashscoreLeaguesOK == 0 && s.commands.Livescore != nil {
		s.emit(domainBetting, "warning", "flashscore collection failed for every league, falling back to livescore")
		result.UsedLivescoreFallback = true
		req := ingestion.Request{Command: s.commands.Livescore(), Source: ingestion.SourceLivescore, OnLog: s.logFuncFor(domainBetting)}
		res, err := s.ingest.Run(ctx, req)
		if err != nil {
			result.Errors = append(result.Errors, err.Error())
		}
		result.LivescoreRecords = res.Records
	}
	if stopped(stop) {
		return s.finishCollection(result, true)
	}

	matched, unmatched := s.runMatchBatch()
	result.ScoresMatched, result.ScoresUnmatched = matched, unmatched

	deleted, err := s.store.DeleteScoresByFixtureIDPrefix("fbref_")
	if err != nil {
		result.Errors = append(result.Errors, err.Error())
	}
	result.StaleScoresDeleted = deleted
	if stopped(stop) {
		return s.finishCollection(result, true)
	}

	batch, err := s.settle.SettlePendingBets()
	if err != nil {
		result.Errors = append(result.Errors, err.Error())
	}
	result.BetsSettled = batch.Settled

	return s.finishCollection(result, false)
}

func (s *Scheduler) finishCollection(result CollectionResult, wasStopped bool) taskOutcome {
	blob, _ := json.Marshal(result)
	errs := ""
	if len(result.Errors) > 0 {
		errs = fmt.Sprintf("%v", result.Errors)
	}
	return taskOutcome{Stopped: wasStopped, ResultJSON: string(blob), Errors: errs}
}

// runScraperPool runs the source's scraper binary concurrently over a
// set of discovered ids/slugs, bounded by poolSize (spec §4.8/§5:
// "bounded worker pool ... thread-per-subprocess is acceptable").
func (s *Scheduler) runScraperPool(ctx context.Context, stop <-chan struct{}, domain string, source ingestion.SourceKind,
	ids []string, poolSize int, buildCommand func(id string) []string) (ok, failed, records int, errs []string) {

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(poolSize)

	var mu sync.Mutex
	for _, id := range ids {
		id := id
		if stopped(stop) {
			break
		}
		g.Go(func() error {
			req := ingestion.Request{Command: buildCommand(id), Source: source, OnLog: s.logFuncFor(domain)}
			res, err := s.ingest.Run(gctx, req)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				failed++
				errs = append(errs, fmt.Sprintf("%s: %v", id, err))
				return nil
			}
			if res.Success {
				ok++
				records += res.Records
			} else {
				failed++
				errs = append(errs, fmt.Sprintf("%s: %s", id, res.Reason))
			}
			return nil
		})
	}
	_ = g.Wait()
	return ok, failed, records, errs
}

// runMatchBatch re-runs the Matcher over scores stuck under a
// synthetic id because no fixture had yet arrived when they were
// ingested (spec §4.8).
func (s *Scheduler) runMatchBatch() (matched, unmatched int) {
	scores, err := s.store.GetUnresolvedScores()
	if err != nil {
		s.emit(domainBetting, "error", fmt.Sprintf("match batch: list unresolved scores: %v", err))
		return 0, 0
	}

	for _, sc := range scores {
		parsed := matchidentity.ParseSyntheticID(sc.FixtureID)
		if parsed == nil {
			unmatched++
			continue
		}
		fixtureID := s.matcher.MatchScore(parsed.Home, parsed.Away, parsed.Date)
		if fixtureID == "" {
			unmatched++
			continue
		}
		syntheticID := sc.FixtureID
		sc.FixtureID = fixtureID
		if err := s.store.RehomeScore(syntheticID, sc); err != nil {
			s.emit(domainBetting, "error", fmt.Sprintf("match batch: rehome %s: %v", syntheticID, err))
			unmatched++
			continue
		}
		matched++
	}
	return matched, unmatched
}

func (s *Scheduler) logFuncFor(domain string) ingestion.LogFunc {
	return func(level, message string) {
		s.emit(domain, level, message)
	}
}
