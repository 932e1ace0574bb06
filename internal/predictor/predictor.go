// Package predictor invokes a trained model's inference subprocess and
// decodes its stdout into the probability shapes valuebet and
// tradesignal expect. Model internals remain an out-of-scope
// collaborator (spec §1); this package only owns the subprocess
// boundary, grounded on internal/ingestion's exec.CommandContext
// collection pattern.
package predictor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"time"

	"github.com/rs/zerolog"

	"github.com/antonkoetzler/arbihawk/internal/modelversion"
	"github.com/antonkoetzler/arbihawk/internal/tradesignal"
)

// Runner executes a prediction subprocess and returns its trimmed
// stdout. Command construction is the caller's responsibility, so one
// Runner serves both the betting and trading probability sources.
type Runner struct {
	timeout time.Duration
	log     zerolog.Logger
}

// New constructs a Runner. A zero timeout means no deadline beyond ctx.
func New(timeout time.Duration, log zerolog.Logger) *Runner {
	return &Runner{timeout: timeout, log: log.With().Str("component", "predictor").Logger()}
}

func (r *Runner) run(ctx context.Context, command []string) ([]byte, error) {
	if len(command) == 0 {
		return nil, fmt.Errorf("predictor: empty command")
	}
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, command[0], command[1:]...)
	var stdout bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stdout

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("predictor: run %v: %w", command, err)
	}
	return bytes.TrimSpace(stdout.Bytes()), nil
}

// BettingCommand builds the argv for a betting-market prediction given
// the active model's file path, a fixture id, and a market name.
type BettingCommand func(modelPath, fixtureID, market string) []string

// BettingSource implements valuebet.ProbabilitySource by shelling out
// to the active (domain=betting, market) model.
type BettingSource struct {
	models  *modelversion.Manager
	command BettingCommand
	runner  *Runner
}

// NewBettingSource constructs a BettingSource.
func NewBettingSource(models *modelversion.Manager, command BettingCommand, runner *Runner) *BettingSource {
	return &BettingSource{models: models, command: command, runner: runner}
}

// Probabilities satisfies valuebet.ProbabilitySource.
func (b *BettingSource) Probabilities(fixtureID, market string) (map[string]float64, error) {
	version, err := b.models.GetActive("betting", market)
	if err != nil {
		return nil, fmt.Errorf("predictor: active model for betting/%s: %w", market, err)
	}
	if version == nil {
		return nil, nil // no trained model yet: no candidates, not an error
	}

	raw, err := b.runner.run(context.Background(), b.command(version.ModelPath, fixtureID, market))
	if err != nil {
		return nil, err
	}

	var probabilities map[string]float64
	if err := json.Unmarshal(raw, &probabilities); err != nil {
		return nil, fmt.Errorf("predictor: decode betting probabilities for %s/%s: %w", fixtureID, market, err)
	}
	return probabilities, nil
}

// TradingCommand builds the argv for a trading-strategy prediction
// given the active model's file path, a symbol, and a strategy name.
type TradingCommand func(modelPath, symbol, strategy string) []string

// TradingSource implements tradesignal.ProbabilitySource by shelling
// out to the active (domain=trading, market=symbol) model. One trained
// model per symbol is shared across its strategies.
type TradingSource struct {
	models  *modelversion.Manager
	command TradingCommand
	runner  *Runner
}

// NewTradingSource constructs a TradingSource.
func NewTradingSource(models *modelversion.Manager, command TradingCommand, runner *Runner) *TradingSource {
	return &TradingSource{models: models, command: command, runner: runner}
}

type tradingPredictionResponse struct {
	Probability float64 `json:"probability"`
}

// Probability satisfies tradesignal.ProbabilitySource.
func (t *TradingSource) Probability(symbol string, strategy tradesignal.Strategy) (float64, error) {
	version, err := t.models.GetActive("trading", symbol)
	if err != nil {
		return 0, fmt.Errorf("predictor: active model for trading/%s: %w", symbol, err)
	}
	if version == nil {
		return 0, fmt.Errorf("predictor: no active model for %s", symbol)
	}

	raw, err := t.runner.run(context.Background(), t.command(version.ModelPath, symbol, string(strategy)))
	if err != nil {
		return 0, err
	}

	var resp tradingPredictionResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return 0, fmt.Errorf("predictor: decode trading probability for %s/%s: %w", symbol, strategy, err)
	}
	return resp.Probability, nil
}
