// Package main wires Arbihawk's orchestration kernel together and runs
// it as a long-lived process: a collection/training/betting/trading
// scheduler behind a minimal status HTTP server.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/antonkoetzler/arbihawk/internal/backup"
	"github.com/antonkoetzler/arbihawk/internal/config"
	"github.com/antonkoetzler/arbihawk/internal/ingestion"
	"github.com/antonkoetzler/arbihawk/internal/matcher"
	"github.com/antonkoetzler/arbihawk/internal/modelversion"
	"github.com/antonkoetzler/arbihawk/internal/predictor"
	"github.com/antonkoetzler/arbihawk/internal/scheduler"
	"github.com/antonkoetzler/arbihawk/internal/server"
	"github.com/antonkoetzler/arbihawk/internal/settlement"
	"github.com/antonkoetzler/arbihawk/internal/store"
	"github.com/antonkoetzler/arbihawk/internal/tradecycle"
	"github.com/antonkoetzler/arbihawk/internal/tradesignal"
	"github.com/antonkoetzler/arbihawk/internal/trainer"
	"github.com/antonkoetzler/arbihawk/internal/valuebet"
	"github.com/antonkoetzler/arbihawk/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.New(logger.Config{Level: "info", Pretty: true}).Fatal().Err(err).Msg("failed to load configuration")
	}

	log := logger.New(logger.Config{Level: cfg.LogLevel, Pretty: true})
	log.Info().Msg("starting arbihawk")

	db, err := store.Open(store.Config{Path: cfg.DBPath, Log: log})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open store")
	}
	defer db.Close()

	matchEngine := matcher.New(db, matcher.Config{ToleranceHours: cfg.MatchToleranceHours, MinMatchScore: cfg.MinMatchScore})
	ingest := ingestion.New(db, matchEngine, log)
	settle := settlement.New(db)

	var backupSvc *backup.Service
	if cfg.BackupBucket != "" {
		backupSvc, err = backup.New(context.Background(), backup.ClientConfig{
			Endpoint: cfg.BackupEndpoint, Region: cfg.BackupRegion, Bucket: cfg.BackupBucket,
			AccessKey: cfg.BackupAccessKey, SecretKey: cfg.BackupSecretKey, UseSSL: true,
		}, backup.Config{DBPath: cfg.DBPath, RetentionDays: 30, MinToKeep: cfg.MaxVersionsToKeep}, log)
		if err != nil {
			log.Error().Err(err).Msg("failed to construct backup service, continuing without backups")
		}
	} else {
		log.Warn().Msg("ARBIHAWK_BACKUP_BUCKET not set, backups disabled")
	}

	models := modelversion.New(db, modelversionBackuper(backupSvc), modelversion.Config{
		MaxVersionsToKeep:      cfg.MaxVersionsToKeep,
		RollbackEnabled:        cfg.AutoRollbackEnabled,
		RollbackROIThreshold:   cfg.RollbackThresholdPct / 100,
		RollbackMinSettledBets: cfg.RollbackEvaluationBets,
	})

	valuebetSources := buildValuebetSources(db, models, cfg, log)
	tradeCycler := buildTradeCycler(db, models, cfg, log)
	trainerSource := buildTrainerSource(cfg, log)

	sched := scheduler.New(
		db, ingest, matchEngine, settle,
		valuebetSources,
		trainerSource,
		tradeCycler,
		schedulerBackuper(backupSvc),
		buildScraperCommands(cfg),
		scheduler.Config{
			MaxWorkersLeagues:           cfg.MaxWorkersLeagues,
			MaxWorkersLeaguesPlaywright: cfg.MaxWorkersPlaywright,
			FakeMoneyEnabled:            cfg.FakeMoneyEnabled,
			AutoBetAfterTraining:        cfg.AutoBetAfterTrain,
			LimitPerModel:               cfg.LimitPerModel,
			BettingMarkets:              cfg.BettingMarkets,
			DaemonInterval:              cfg.DaemonInterval(),
			TradingDaemonInterval:       cfg.TradingDaemonInterval(),
			BetanoLeagueIDs:             cfg.BetanoLeagueIDs,
			FlashscoreLeagueSlugs:       cfg.FlashscoreLeagueSlugs,
		},
		log,
	)

	srv := server.New(server.Config{
		Log: log, Port: cfg.Port, Scheduler: sched, Store: db,
		TaskNames: []string{scheduler.TaskCollection, scheduler.TaskTraining, scheduler.TaskBetting,
			scheduler.TaskTradingCollection, scheduler.TaskTradingTraining, scheduler.TaskTradingCycle},
	})

	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("status server failed")
		}
	}()
	log.Info().Int("port", cfg.Port).Msg("status server started")

	sched.StartDaemon()
	log.Info().Msg("betting daemon started")
	if cfg.TradingEnabled {
		sched.StartTradingDaemon()
		log.Info().Msg("trading daemon started")
	}
	if err := sched.StartMaintenanceCron(cfg.MaintenanceCronSpec, cfg.RunHistoryRetention, cfg.LogSnapshotRetention); err != nil {
		log.Error().Err(err).Msg("failed to start maintenance cron, continuing without retention sweeps")
	} else {
		log.Info().Str("spec", cfg.MaintenanceCronSpec).Msg("maintenance cron started")
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down")
	sched.StopDaemon()
	sched.StopTradingDaemon()
	sched.StopMaintenanceCron()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("status server forced to shutdown")
	}

	log.Info().Msg("arbihawk stopped")
}

// modelversionBackuper and schedulerBackuper return an untyped nil
// interface when no backup service was constructed, rather than a
// non-nil interface wrapping a typed nil pointer, so the collaborators'
// `if m.backup != nil` checks behave correctly.
func modelversionBackuper(svc *backup.Service) modelversion.Backuper {
	if svc == nil {
		return nil
	}
	return svc
}

func schedulerBackuper(svc *backup.Service) scheduler.Backuper {
	if svc == nil {
		return nil
	}
	return svc
}

// buildValuebetSources wires one value-bet engine per supported
// betting market, each resolving its probabilities from the active
// model via the subprocess-backed predictor collaborator (spec §1:
// model inference is out of scope for this kernel).
func buildValuebetSources(db *store.Store, models *modelversion.Manager, cfg *config.Config, log zerolog.Logger) map[string]scheduler.ValuebetSource {
	runner := predictor.New(60*time.Second, log)
	probs := predictor.NewBettingSource(models, predictorCommand(cfg.PredictorBettingCmd), runner)

	sources := make(map[string]scheduler.ValuebetSource, len(cfg.BettingMarkets))
	for _, market := range cfg.BettingMarkets {
		engine := valuebet.New(db, probs, valuebet.Config{
			EVThreshold: cfg.EVThresholdDefault, FixedStake: cfg.FixedStake, LimitPerModel: cfg.LimitPerModel,
		})
		sources[market] = scheduler.NewValuebetSource(engine)
	}
	return sources
}

// buildTradeCycler wires the trade-cycle service for trading_cycle
// (spec §4.8). It always returns a cycler; with no trading watchlist
// configured it logs a warning and the cycler has nothing to evaluate.
func buildTradeCycler(db *store.Store, models *modelversion.Manager, cfg *config.Config, log zerolog.Logger) scheduler.TradeCycler {
	if len(cfg.TradingWatchlistStocks) == 0 && len(cfg.TradingWatchlistCrypto) == 0 {
		log.Warn().Msg("no trading watchlist configured, trading_cycle will have nothing to evaluate")
	}

	runner := predictor.New(60*time.Second, log)
	probs := predictor.NewTradingSource(models, tradingPredictorCommand(cfg.PredictorTradingCmd), runner)

	signals := tradesignal.New(db, probs, tradesignal.Config{
		ATRMultiple: cfg.ATRMultiple, RiskRewardMultiple: cfg.RiskRewardRatio, MinRiskReward: cfg.MinRiskReward,
	})

	svc := tradecycle.New(db, signals, tradecycle.Watchlist{
		Stocks: cfg.TradingWatchlistStocks, Crypto: cfg.TradingWatchlistCrypto,
	}, tradecycle.Config{
		Strategy: tradesignal.Strategy(cfg.TradingStrategy), PositionStakeUSD: cfg.TradeStakeUSD, StartingCash: cfg.StartingCashUSD,
	}, log)

	return scheduler.NewTradeCycler(svc)
}

// buildTrainerSource wires the subprocess-backed training collaborator
// (spec §4.8), or nil if no trainer command is configured.
func buildTrainerSource(cfg *config.Config, log zerolog.Logger) scheduler.Trainer {
	if cfg.TrainerCmd == "" {
		log.Warn().Msg("ARBIHAWK_TRAINER_CMD not set, training task will be skipped")
		return nil
	}
	runner := trainer.New(func(domain, market string) []string {
		return append(strings.Fields(cfg.TrainerCmd), domain, market)
	}, 10*time.Minute, log)
	return scheduler.NewTrainerSource(runner)
}

// buildScraperCommands turns configured subprocess command strings
// into the argv builders the scheduler invokes per task (spec §4.3).
// A blank command leaves the corresponding field nil, which the
// scheduler treats as "collaborator not configured" and skips.
func buildScraperCommands(cfg *config.Config) scheduler.ScraperCommands {
	var commands scheduler.ScraperCommands
	if cfg.ScraperBetanoCmd != "" {
		commands.Betano = func(leagueID string) []string { return append(strings.Fields(cfg.ScraperBetanoCmd), leagueID) }
	}
	if cfg.ScraperFlashscoreCmd != "" {
		commands.Flashscore = func(leagueSlug string) []string { return append(strings.Fields(cfg.ScraperFlashscoreCmd), leagueSlug) }
	}
	if cfg.ScraperLivescoreCmd != "" {
		commands.Livescore = func() []string { return strings.Fields(cfg.ScraperLivescoreCmd) }
	}
	if cfg.ScraperStocksCmd != "" {
		commands.Stocks = func() []string { return strings.Fields(cfg.ScraperStocksCmd) }
	}
	if cfg.ScraperCryptoCmd != "" {
		commands.Crypto = func() []string { return strings.Fields(cfg.ScraperCryptoCmd) }
	}
	return commands
}

func predictorCommand(base string) predictor.BettingCommand {
	return func(modelPath, fixtureID, market string) []string {
		return append(strings.Fields(base), modelPath, fixtureID, market)
	}
}

func tradingPredictorCommand(base string) predictor.TradingCommand {
	return func(modelPath, symbol, strategy string) []string {
		return append(strings.Fields(base), modelPath, symbol, strategy)
	}
}
