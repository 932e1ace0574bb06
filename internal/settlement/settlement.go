// Package settlement evaluates pending bets against stored scores by
// market kind (spec §4.5). Grounded on the original BetSettlement
// collaborator (arbihawk/data/settlement.py), translated from its
// pandas row-scan shape to direct store calls.
package settlement

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/antonkoetzler/arbihawk/internal/store"
)

// Settlement evaluates bet_history rows against the scores table.
type Settlement struct {
	store *store.Store
}

// New constructs a Settlement bound to a store.
func New(s *store.Store) *Settlement {
	return &Settlement{store: s}
}

// Result is the outcome of settling a single bet.
type Result struct {
	BetID     int64
	FixtureID string
	Result    string // win, loss
	Stake     float64
	Odds      float64
	Payout    float64
	Profit    float64
}

// BatchResult aggregates SettlePendingBets over every pending bet.
type BatchResult struct {
	TotalPending int
	Settled      int
	Wins         int
	Losses       int
	TotalPayout  float64
	Results      []Result
}

var thresholdPattern = regexp.MustCompile(`[\d.]+`)

// EvaluateOneXTwo evaluates a 1x2 / Match Result outcome.
func EvaluateOneXTwo(homeScore, awayScore int, outcomeName string) bool {
	switch strings.ToLower(outcomeName) {
	case "1", "home", "home_win", "home win":
		return homeScore > awayScore
	case "x", "draw":
		return homeScore == awayScore
	case "2", "away", "away_win", "away win":
		return homeScore < awayScore
	}
	return false
}

// EvaluateOverUnder evaluates an over/under outcome. The threshold is
// extracted from the outcome name if present (e.g. "over 2.5"),
// falling back to 2.5 (spec §4.5).
func EvaluateOverUnder(homeScore, awayScore int, outcomeName string) bool {
	total := homeScore + awayScore
	threshold := 2.5
	if m := thresholdPattern.FindString(outcomeName); m != "" {
		if v, err := strconv.ParseFloat(m, 64); err == nil {
			threshold = v
		}
	}

	outcomeLower := strings.ToLower(outcomeName)
	switch {
	case strings.Contains(outcomeLower, "over"):
		return float64(total) > threshold
	case strings.Contains(outcomeLower, "under"):
		return float64(total) < threshold
	}
	return false
}

// EvaluateBTTS evaluates a Both Teams To Score outcome.
func EvaluateBTTS(homeScore, awayScore int, outcomeName string) bool {
	bothScored := homeScore > 0 && awayScore > 0
	switch strings.ToLower(outcomeName) {
	case "yes", "sim", "btts yes":
		return bothScored
	case "no", "não", "nao", "btts no":
		return !bothScored
	}
	return false
}

// evaluateDoubleChance evaluates a Double Chance outcome.
func evaluateDoubleChance(homeScore, awayScore int, outcomeName string) bool {
	outcomeLower := strings.ToLower(outcomeName)
	switch {
	case strings.Contains(outcomeLower, "1x") || (strings.Contains(outcomeLower, "home") && strings.Contains(outcomeLower, "draw")):
		return homeScore >= awayScore
	case strings.Contains(outcomeLower, "x2") || (strings.Contains(outcomeLower, "draw") && strings.Contains(outcomeLower, "away")):
		return homeScore <= awayScore
	case strings.Contains(outcomeLower, "12"):
		return homeScore != awayScore
	}
	return false
}

// EvaluateBet dispatches on market_name and returns (won, known). known
// is false when the market kind is unrecognized, in which case the
// bet must remain pending (spec §4.5).
func EvaluateBet(homeScore, awayScore int, marketName, outcomeName string) (won bool, known bool) {
	marketLower := strings.ToLower(marketName)

	switch {
	case containsAny(marketLower, "1x2", "match result", "resultado", "full time"):
		return EvaluateOneXTwo(homeScore, awayScore, outcomeName), true
	case containsAny(marketLower, "over", "under", "gols", "goals", "total"):
		return EvaluateOverUnder(homeScore, awayScore, outcomeName), true
	case containsAny(marketLower, "btts", "both teams", "ambas marcam", "ambos marcam"):
		return EvaluateBTTS(homeScore, awayScore, outcomeName), true
	case strings.Contains(marketLower, "double chance") || strings.Contains(marketLower, "dupla chance"):
		return evaluateDoubleChance(homeScore, awayScore, outcomeName), true
	}
	return false, false
}

func containsAny(s string, needles ...string) bool {
	for _, n := range needles {
		if strings.Contains(s, n) {
			return true
		}
	}
	return false
}

// SettleBet settles a single bet. Returns nil if the bet does not
// exist, is already settled, has no resolvable score, or has an
// unrecognized market kind (spec §4.5).
func (s *Settlement) SettleBet(betID int64) (*Result, error) {
	bet, err := s.store.GetBetByID(betID)
	if err != nil {
		return nil, fmt.Errorf("settlement: get bet: %w", err)
	}
	if bet == nil || bet.Result != "pending" {
		return nil, nil
	}

	score, err := s.resolveScore(bet.FixtureID)
	if err != nil {
		return nil, fmt.Errorf("settlement: resolve score for bet %d: %w", betID, err)
	}
	if score == nil || score.HomeScore == nil || score.AwayScore == nil {
		return nil, nil
	}

	won, known := EvaluateBet(*score.HomeScore, *score.AwayScore, bet.MarketName, bet.OutcomeName)
	if !known {
		return nil, nil
	}

	result := "loss"
	payout := 0.0
	if won {
		result = "win"
		payout = bet.Stake * bet.Odds
	}

	if err := s.store.SettleBet(betID, result, payout); err != nil {
		return nil, fmt.Errorf("settlement: settle bet %d: %w", betID, err)
	}

	return &Result{
		BetID:     betID,
		FixtureID: bet.FixtureID,
		Result:    result,
		Stake:     bet.Stake,
		Odds:      bet.Odds,
		Payout:    payout,
		Profit:    payout - bet.Stake,
	}, nil
}

// resolveScore looks up the score for a bet's fixture id directly,
// falling back to a (home, away, date) synthetic-id scan when the
// fixture's score was ingested before the fixture itself was known
// (spec §4.5).
func (s *Settlement) resolveScore(fixtureID string) (*store.Score, error) {
	score, err := s.store.GetScore(fixtureID)
	if err != nil {
		return nil, err
	}
	if score != nil {
		return score, nil
	}

	fixture, err := s.store.GetFixtureByID(fixtureID)
	if err != nil || fixture == nil {
		return nil, err
	}

	date := fixture.StartTime.Format("2006-01-02")
	return s.store.FindScoreByTeamsAndDate(fixture.HomeTeamName, fixture.AwayTeamName, date)
}

// SettlePendingBets settles every currently-pending bet. A bet whose
// settlement errors is skipped and stays pending; the error is not
// reported and never aborts the batch (spec §8: "one bad bet never
// aborts the batch").
func (s *Settlement) SettlePendingBets() (BatchResult, error) {
	pending, err := s.store.GetPendingBets()
	if err != nil {
		return BatchResult{}, fmt.Errorf("settlement: get pending bets: %w", err)
	}

	batch := BatchResult{TotalPending: len(pending)}
	for _, bet := range pending {
		result, err := s.SettleBet(bet.ID)
		if err != nil || result == nil {
			continue
		}

		batch.Settled++
		batch.TotalPayout += result.Payout
		batch.Results = append(batch.Results, *result)
		if result.Result == "win" {
			batch.Wins++
		} else {
			batch.Losses++
		}
	}
	return batch, nil
}

// GetSettlementStats returns overall settled-bet performance.
func (s *Settlement) GetSettlementStats() (store.BankrollStats, error) {
	return s.store.GetBankrollStats("")
}
