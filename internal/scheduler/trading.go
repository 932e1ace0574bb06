package scheduler

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/antonkoetzler/arbihawk/internal/ingestion"
)

// TradingCollectionResult summarises one trading_collection run.
type TradingCollectionResult struct {
	StockRecords  int      `json:"stock_records"`
	CryptoRecords int      `json:"crypto_records"`
	Errors        []string `json:"errors,omitempty"`
}

// TriggerTradingCollection runs the stock/crypto scrapers (spec §4.8:
// "trading_collection runs stock and crypto scrapers").
func (s *Scheduler) TriggerTradingCollection() triggerResult {
	return s.startTask(TaskTradingCollection, domainTrading, s.runTradingCollection)
}

func (s *Scheduler) runTradingCollection(ctx context.Context, stop <-chan struct{}) taskOutcome {
	var result TradingCollectionResult

	if s.commands.Stocks != nil {
		req := ingestion.Request{Command: s.commands.Stocks(), Source: ingestion.SourceStocks, OnLog: s.logFuncFor(domainTrading)}
		res, err := s.ingest.Run(ctx, req)
		if err != nil {
			result.Errors = append(result.Errors, err.Error())
		}
		result.StockRecords = res.Records
	}
	if stopped(stop) {
		return s.finishTradingCollection(result, true)
	}

	if s.commands.Crypto != nil {
		req := ingestion.Request{Command: s.commands.Crypto(), Source: ingestion.SourceCrypto, OnLog: s.logFuncFor(domainTrading)}
		res, err := s.ingest.Run(ctx, req)
		if err != nil {
			result.Errors = append(result.Errors, err.Error())
		}
		result.CryptoRecords = res.Records
	}

	return s.finishTradingCollection(result, false)
}

func (s *Scheduler) finishTradingCollection(result TradingCollectionResult, wasStopped bool) taskOutcome {
	blob, _ := json.Marshal(result)
	errs := ""
	if len(result.Errors) > 0 {
		errs = fmt.Sprintf("%v", result.Errors)
	}
	return taskOutcome{Stopped: wasStopped, ResultJSON: string(blob), Errors: errs}
}

// TriggerTradingTraining trains strategy-specific models for one asset
// (spec §4.8: "trading_training trains strategy-specific models").
func (s *Scheduler) TriggerTradingTraining(symbol string) triggerResult {
	return s.startTask(TaskTradingTraining, domainTrading, func(ctx context.Context, stop <-chan struct{}) taskOutcome {
		return s.runTraining(ctx, stop, "trading", symbol)
	})
}

// TriggerTradingCycle runs one iteration of the trading pipeline (spec §4.8).
func (s *Scheduler) TriggerTradingCycle() triggerResult {
	return s.startTask(TaskTradingCycle, domainTrading, s.runTradingCycle)
}

func (s *Scheduler) runTradingCycle(ctx context.Context, stop <-chan struct{}) taskOutcome {
	if s.trader == nil {
		return taskOutcome{Skipped: true, SkipReason: "no trade cycler configured"}
	}
	if stopped(stop) {
		return taskOutcome{Stopped: true}
	}

	res, err := s.trader.RunCycle(ctx)
	if err != nil {
		s.emit(domainTrading, "error", fmt.Sprintf("trading cycle failed: %v", err))
		return taskOutcome{Errors: err.Error()}
	}

	blob, _ := json.Marshal(res)
	return taskOutcome{ResultJSON: string(blob)}
}

// TriggerTradingFullRun chains trading_collection -> trading_cycle
// (spec §4.8). No trading_training step runs inside it; training is
// triggered separately through TriggerTradingTraining.
func (s *Scheduler) TriggerTradingFullRun() triggerResult {
	return s.startTask(TaskTradingFullRun, domainTrading, s.runTradingFullRun)
}

// TradingFullRunResult chains each sub-task's result.
type TradingFullRunResult struct {
	Collection TradingCollectionResult `json:"collection"`
	Cycle      TradeCycleResult        `json:"cycle"`
}

func (s *Scheduler) runTradingFullRun(ctx context.Context, stop <-chan struct{}) taskOutcome {
	var result TradingFullRunResult

	collectionOutcome := s.runTradingCollection(ctx, stop)
	_ = json.Unmarshal([]byte(collectionOutcome.ResultJSON), &result.Collection)
	if collectionOutcome.Stopped {
		return s.finishTradingFullRun(result, true)
	}

	if stopped(stop) {
		return s.finishTradingFullRun(result, true)
	}

	if s.trader != nil {
		cycleRes, err := s.trader.RunCycle(ctx)
		if err != nil {
			s.emit(domainTrading, "error", fmt.Sprintf("trading_full_run: cycle: %v", err))
		}
		result.Cycle = cycleRes
	}

	return s.finishTradingFullRun(result, false)
}

func (s *Scheduler) finishTradingFullRun(result TradingFullRunResult, wasStopped bool) taskOutcome {
	blob, _ := json.Marshal(result)
	return taskOutcome{Stopped: wasStopped, ResultJSON: string(blob)}
}
