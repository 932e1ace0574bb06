package scheduler

import "context"

// Backuper invokes a labeled database backup before a risky operation
// (spec §4.8: training task "invokes the backup collaborator with
// label pre_training"). Satisfied by internal/backup.
type Backuper interface {
	Backup(ctx context.Context, label string) (string, error)
}

// TrainingResult is the training collaborator's contract (spec §4.8:
// "success=true ∧ has_data=false is not an error").
type TrainingResult struct {
	Success      bool
	HasData      bool
	NoDataReason string
	ModelPath    string
	Samples      int
	CVScore      float64
	Metrics      string // JSON blob
}

// Trainer trains a model for one (domain, market) pair. Model
// persistence and activation are the collaborator's own
// responsibility when it reports Success && HasData (spec §4.8).
type Trainer interface {
	Train(ctx context.Context, domain, market string) (TrainingResult, error)
}

// TradeCycleResult summarises one trading_cycle pass (spec §4.8).
type TradeCycleResult struct {
	PositionsClosed  int
	SignalsGenerated int
	PositionsOpened  int
}

// TradeCycler runs one iteration of the trading pipeline: refresh
// prices, check stop-loss/take-profit, generate signals, open
// positions, snapshot the portfolio (spec §4.8).
type TradeCycler interface {
	RunCycle(ctx context.Context) (TradeCycleResult, error)
}

// ValuebetSource evaluates one fixture/market pair for value-bet
// candidates, capped by the caller at limit_per_model (spec §4.6/§4.8).
type ValuebetSource interface {
	Evaluate(fixtureID, market, asOf string) ([]ValuebetCandidate, error)
}

// ValuebetCandidate mirrors valuebet.Candidate without importing that
// package, so the scheduler depends only on the shape it needs.
type ValuebetCandidate struct {
	FixtureID   string
	MarketID    string
	MarketName  string
	OutcomeID   string
	OutcomeName string
	Odds        float64
	Stake       float64
}
