// Package valuebet computes expected-value-gated bet candidates from
// model probabilities and stored odds (spec §4.6). Model training and
// inference are out of scope for the core (spec §1); callers supply
// probabilities through the ProbabilitySource collaborator.
package valuebet

import (
	"fmt"
	"strings"

	"github.com/antonkoetzler/arbihawk/internal/store"
)

// supportedMarkets are the market kinds the value-bet engine evaluates
// (spec §4.6).
var supportedMarkets = map[string]bool{"1x2": true, "over_under": true, "btts": true}

// ProbabilitySource supplies a model's probability vector for a
// fixture's outcomes, keyed by outcome_id. Training/inference
// internals are an out-of-scope collaborator (spec §1).
type ProbabilitySource interface {
	Probabilities(fixtureID, market string) (map[string]float64, error)
}

// Config tunes the EV gate (spec §4.6, §6).
type Config struct {
	MarketMargin  float64 // per-market bookmaker margin, e.g. 0.05
	EVThreshold   float64 // minimum EV to emit a candidate, e.g. 0.05
	FixedStake    float64
	LimitPerModel int // caps total candidates per run (enforced by caller/scheduler)
}

// Candidate is a bet the engine recommends placing.
type Candidate struct {
	FixtureID   string
	MarketID    string
	MarketName  string
	OutcomeID   string
	OutcomeName string
	Odds        float64
	ModelProb   float64
	EV          float64
	Stake       float64
}

// Engine evaluates fixtures against a model's probabilities and stored
// odds (spec §4.6).
type Engine struct {
	store *store.Store
	probs ProbabilitySource
	cfg   Config
}

// New constructs a value-bet Engine.
func New(s *store.Store, probs ProbabilitySource, cfg Config) *Engine {
	if cfg.EVThreshold == 0 {
		cfg.EVThreshold = 0.05
	}
	if cfg.FixedStake == 0 {
		cfg.FixedStake = 10
	}
	return &Engine{store: s, probs: probs, cfg: cfg}
}

// ComputeEV applies the contract formula (spec §6):
// EV = (p - (1/o)/(1+m)) * o
func ComputeEV(modelProb, odds, marketMargin float64) float64 {
	impliedAdjusted := (1 / odds) / (1 + marketMargin)
	return (modelProb - impliedAdjusted) * odds
}

// Evaluate emits candidates for one fixture's upcoming odds, gated by
// EV ≥ ev_threshold (spec §4.6). market must be one of 1x2,
// over_under, btts; any other value is rejected up front.
func (e *Engine) Evaluate(fixtureID, market, asOf string) ([]Candidate, error) {
	if !supportedMarkets[strings.ToLower(market)] {
		return nil, fmt.Errorf("valuebet: unsupported market %q", market)
	}

	probabilities, err := e.probs.Probabilities(fixtureID, market)
	if err != nil {
		return nil, fmt.Errorf("valuebet: probabilities for fixture %s: %w", fixtureID, err)
	}
	if len(probabilities) == 0 {
		return nil, nil
	}

	odds, err := e.store.LatestOddsPerOutcome(fixtureID, asOf)
	if err != nil {
		return nil, fmt.Errorf("valuebet: latest odds for fixture %s: %w", fixtureID, err)
	}

	var candidates []Candidate
	for _, o := range odds {
		modelProb, ok := probabilities[o.OutcomeID]
		if !ok || o.OddsValue <= 1 {
			continue
		}

		ev := ComputeEV(modelProb, o.OddsValue, e.cfg.MarketMargin)
		if ev < e.cfg.EVThreshold {
			continue
		}

		candidates = append(candidates, Candidate{
			FixtureID:   fixtureID,
			MarketID:    o.MarketID,
			MarketName:  o.MarketName,
			OutcomeID:   o.OutcomeID,
			OutcomeName: o.OutcomeName,
			Odds:        o.OddsValue,
			ModelProb:   modelProb,
			EV:          ev,
			Stake:       e.cfg.FixedStake,
		})
	}
	return candidates, nil
}

// EvaluateBatch runs Evaluate over several fixtures, collecting
// per-fixture errors without aborting the batch (spec §7: matching/
// batch errors are caught and logged, returning a partial result).
func (e *Engine) EvaluateBatch(fixtureIDs []string, market, asOf string) ([]Candidate, []error) {
	var all []Candidate
	var errs []error
	for _, fixtureID := range fixtureIDs {
		candidates, err := e.Evaluate(fixtureID, market, asOf)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		all = append(all, candidates...)
	}
	return all, errs
}
