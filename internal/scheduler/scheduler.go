// Package scheduler is the control core: a single process-wide
// singleton owning one task slot at a time, dispatching the
// collection/training/betting/trading pipelines and a daemon loop
// (spec §4.8). Grounded on the teacher's internal/queue.Scheduler
// ticker/stop-channel idiom, not its work/ dependency-graph or
// priority-queue machinery — this scheduler has no job queue, just one
// cooperative-cancellation slot.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/antonkoetzler/arbihawk/internal/ingestion"
	"github.com/antonkoetzler/arbihawk/internal/matcher"
	"github.com/antonkoetzler/arbihawk/internal/settlement"
	"github.com/antonkoetzler/arbihawk/internal/store"
)

// Task names (spec §4.8: current_task enumeration).
const (
	TaskNone              = ""
	TaskCollection        = "collection"
	TaskTraining          = "training"
	TaskBetting           = "betting"
	TaskFullRun           = "full_run"
	TaskTradingCollection = "trading_collection"
	TaskTradingTraining   = "trading_training"
	TaskTradingCycle      = "trading_cycle"
	TaskTradingFullRun    = "trading_full_run"
)

const (
	domainBetting = "betting"
	domainTrading = "trading"
)

// Config tunes every task's behaviour (spec §4.8).
type Config struct {
	MaxWorkersLeagues           int
	MaxWorkersLeaguesPlaywright int
	FakeMoneyEnabled            bool
	AutoBetAfterTraining        bool
	LimitPerModel               int
	BettingMarkets              []string
	DaemonInterval              time.Duration
	TradingDaemonInterval       time.Duration
	BetanoLeagueIDs             []string
	FlashscoreLeagueSlugs       []string
	LogBufferSize               int
}

func (c *Config) applyDefaults() {
	if c.MaxWorkersLeagues <= 0 {
		c.MaxWorkersLeagues = 4
	}
	if c.MaxWorkersLeaguesPlaywright <= 0 {
		c.MaxWorkersLeaguesPlaywright = 2
	}
	if c.LimitPerModel <= 0 {
		c.LimitPerModel = 10
	}
	if c.DaemonInterval <= 0 {
		c.DaemonInterval = 15 * time.Minute
	}
	if c.TradingDaemonInterval <= 0 {
		c.TradingDaemonInterval = 30 * time.Minute
	}
	if c.LogBufferSize <= 0 {
		c.LogBufferSize = 1000
	}
}

// ScraperCommands builds the subprocess argv for each scraper source,
// parameterised by a discovered league id/slug where applicable. The
// discovery mechanism itself (how ids/slugs are found) is out of scope
// (spec §1); the scheduler is handed the list through Config.
type ScraperCommands struct {
	Betano     func(leagueID string) []string
	Flashscore func(leagueSlug string) []string
	Livescore  func() []string
	Stocks     func() []string
	Crypto     func() []string
}

// BroadcastFunc is the dashboard-installed log callback (spec §4.8:
// "always receives three arguments").
type BroadcastFunc func(level, message, domain string)

// Scheduler is the control-core singleton.
type Scheduler struct {
	mu              sync.Mutex
	currentTask     string
	stopTaskEvent   chan struct{}
	lastRun         map[string]time.Time
	lastDuration    map[string]time.Duration
	wg              sync.WaitGroup

	daemonMu      sync.Mutex
	daemonStop    chan struct{}
	daemonRunning bool

	tradingDaemonMu      sync.Mutex
	tradingDaemonStop    chan struct{}
	tradingDaemonRunning bool

	maintenanceMu   sync.Mutex
	maintenanceCron *cron.Cron

	logs      *logRingBuffer
	broadcast BroadcastFunc

	store    *store.Store
	ingest   *ingestion.Pipeline
	matcher  *matcher.Matcher
	settle   *settlement.Settlement
	valuebet map[string]ValuebetSource
	trainer  Trainer
	trader   TradeCycler
	backup   Backuper
	commands ScraperCommands
	cfg      Config
	log      zerolog.Logger
}

// New constructs a Scheduler bound to its collaborators.
func New(
	s *store.Store,
	ingest *ingestion.Pipeline,
	m *matcher.Matcher,
	settle *settlement.Settlement,
	valuebet map[string]ValuebetSource,
	trainer Trainer,
	trader TradeCycler,
	backup Backuper,
	commands ScraperCommands,
	cfg Config,
	log zerolog.Logger,
) *Scheduler {
	cfg.applyDefaults()
	return &Scheduler{
		stopTaskEvent: make(chan struct{}),
		lastRun:       make(map[string]time.Time),
		lastDuration:  make(map[string]time.Duration),
		logs:          newLogRingBuffer(cfg.LogBufferSize),
		store:         s,
		ingest:        ingest,
		matcher:       m,
		settle:        settle,
		valuebet:      valuebet,
		trainer:       trainer,
		trader:        trader,
		backup:        backup,
		commands:      commands,
		cfg:           cfg,
		log:           log.With().Str("component", "scheduler").Logger(),
	}
}

// SetBroadcast installs the dashboard's log callback (spec §4.8).
func (s *Scheduler) SetBroadcast(fn BroadcastFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.broadcast = fn
}

// CurrentTask reports the task slot's current occupant, "" if idle.
func (s *Scheduler) CurrentTask() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.currentTask
}

// LastRun reports the last start time and duration for a task name.
func (s *Scheduler) LastRun(task string) (time.Time, time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastRun[task], s.lastDuration[task]
}

// Logs returns the most recent n log entries (n <= 0 returns all).
func (s *Scheduler) Logs(n int) []LogEntry {
	return s.logs.tail(n)
}

// StopTask sets the cooperative-cancellation latch; the running task
// observes it at its next poll point and exits via its own cleanup
// (spec §5: "callers must treat the currently running task as
// stopping until it clears current_task").
func (s *Scheduler) StopTask() {
	s.mu.Lock()
	defer s.mu.Unlock()
	select {
	case <-s.stopTaskEvent:
	default:
		close(s.stopTaskEvent)
	}
}

// Shutdown stops both daemons and the current task, then waits for
// every background goroutine this scheduler has spawned to exit.
func (s *Scheduler) Shutdown() {
	s.StopDaemon()
	s.StopTradingDaemon()
	s.StopMaintenanceCron()
	s.StopTask()
	s.wg.Wait()
}

func (s *Scheduler) emit(domain, level, message string) {
	entry := LogEntry{Timestamp: time.Now().UTC().Format(time.RFC3339), Level: level, Message: message, Domain: domain}
	s.logs.append(entry)

	s.mu.Lock()
	broadcast := s.broadcast
	s.mu.Unlock()
	if broadcast != nil {
		broadcast(level, message, domain)
	}
}

// triggerResult is the synchronous reply every trigger method returns
// immediately, before the task's background work completes (spec §4.8
// step 3).
type triggerResult struct {
	Success bool
	Error   string
	Message string
}

// taskOutcome is what a task body hands back to the lifecycle wrapper
// for run-history persistence (spec §4.8 step 4).
type taskOutcome struct {
	Stopped    bool
	Skipped    bool
	SkipReason string
	ResultJSON string
	Errors     string
}

// startTask implements the common task lifecycle: reject if the slot
// is occupied, otherwise claim it and run work in the background
// (spec §4.8).
func (s *Scheduler) startTask(name, domain string, work func(ctx context.Context, stop <-chan struct{}) taskOutcome) triggerResult {
	s.mu.Lock()
	if s.currentTask != TaskNone {
		running := s.currentTask
		s.mu.Unlock()
		if err := s.store.SkipRunHistory(name, domain, fmt.Sprintf("task already running: %s", running)); err != nil {
			s.log.Warn().Err(err).Msg("failed to record skipped run history")
		}
		return triggerResult{Success: false, Error: fmt.Sprintf("Task already running: %s", running)}
	}

	s.stopTaskEvent = make(chan struct{})
	stop := s.stopTaskEvent
	s.currentTask = name
	s.mu.Unlock()

	runID, err := s.store.InsertRunHistory(name, domain)
	if err != nil {
		s.log.Warn().Err(err).Msg("failed to record run history start")
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		started := time.Now()

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		go func() {
			select {
			case <-stop:
				cancel()
			case <-ctx.Done():
			}
		}()

		outcome := work(ctx, stop)
		duration := time.Since(started)

		s.mu.Lock()
		s.lastRun[name] = started
		s.lastDuration[name] = duration
		s.currentTask = TaskNone
		s.mu.Unlock()

		s.recordOutcome(runID, outcome, duration)
	}()

	return triggerResult{Success: true, Message: fmt.Sprintf("%s started in background", name)}
}

// recordOutcome persists run history; failures here must never
// propagate (spec §4.8 step 4: "a guarded call").
func (s *Scheduler) recordOutcome(runID int64, outcome taskOutcome, duration time.Duration) {
	if runID == 0 {
		return
	}
	var err error
	switch {
	case outcome.Stopped:
		err = s.store.StopRunHistory(runID)
	default:
		err = s.store.FinishRunHistory(runID, outcome.Errors == "" && !outcome.Skipped, outcome.ResultJSON, outcome.Errors)
	}
	if err != nil {
		s.log.Warn().Err(err).Int64("run_id", runID).Msg("failed to finish run history")
	}
	_ = duration
}

func stopped(stop <-chan struct{}) bool {
	select {
	case <-stop:
		return true
	default:
		return false
	}
}
