package tradesignal

import (
	"testing"
	"time"

	"github.com/antonkoetzler/arbihawk/internal/store"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(store.Config{Path: ":memory:", Log: zerolog.Nop()})
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

type fakeProbabilitySource float64

func (f fakeProbabilitySource) Probability(symbol string, strategy Strategy) (float64, error) {
	return float64(f), nil
}

func seedUptrend(t *testing.T, s *store.Store, symbol, assetType string) {
	t.Helper()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	var bars []store.PricePoint
	price := 100.0
	for i := 0; i < 60; i++ {
		price += 0.5
		bars = append(bars, store.PricePoint{
			Symbol: symbol, AssetType: assetType,
			Timestamp: base.AddDate(0, 0, i).Format(time.RFC3339),
			Open:      price - 0.5, High: price + 0.3, Low: price - 0.6, Close: price, Volume: 1000,
		})
	}
	require.NoError(t, s.InsertPriceHistoryBatch(bars))
}

func TestEvaluateReturnsNilWithInsufficientHistory(t *testing.T) {
	s := newTestStore(t)
	engine := New(s, fakeProbabilitySource(0.6), Config{})
	candidate, err := engine.Evaluate("AAPL", "stocks", StrategyMomentum)
	require.NoError(t, err)
	assert.Nil(t, candidate)
}

func TestEvaluateComputesLongCandidateOnUptrend(t *testing.T) {
	s := newTestStore(t)
	seedUptrend(t, s, "AAPL", "stocks")

	engine := New(s, fakeProbabilitySource(0.7), Config{MinRiskReward: 0})
	candidate, err := engine.Evaluate("AAPL", "stocks", StrategyMomentum)
	require.NoError(t, err)
	require.NotNil(t, candidate)
	assert.Greater(t, candidate.TakeProfit, candidate.Entry)
	assert.Less(t, candidate.StopLoss, candidate.Entry)

	indicators, err := s.LatestIndicators("AAPL", "stocks")
	require.NoError(t, err)
	assert.Contains(t, indicators, "rsi")
	assert.Contains(t, indicators, "atr")
}

func TestEvaluateGatesOnMinRiskReward(t *testing.T) {
	s := newTestStore(t)
	seedUptrend(t, s, "AAPL", "stocks")

	engine := New(s, fakeProbabilitySource(0.7), Config{MinRiskReward: 1000})
	candidate, err := engine.Evaluate("AAPL", "stocks", StrategyMomentum)
	require.NoError(t, err)
	assert.Nil(t, candidate)
}

func TestEvaluateGatesOnMinConfidence(t *testing.T) {
	s := newTestStore(t)
	seedUptrend(t, s, "AAPL", "stocks")

	engine := New(s, fakeProbabilitySource(0.7), Config{
		MinRiskReward:         0,
		StrategyMinConfidence: map[Strategy]float64{StrategyMomentum: 1.1}, // unreachable
	})
	candidate, err := engine.Evaluate("AAPL", "stocks", StrategyMomentum)
	require.NoError(t, err)
	assert.Nil(t, candidate)
}

func TestEvaluateWatchlistOrdersByEVDescending(t *testing.T) {
	s := newTestStore(t)
	seedUptrend(t, s, "AAPL", "stocks")
	seedUptrend(t, s, "MSFT", "stocks")

	engine := New(s, fakeProbabilitySource(0.9), Config{MinRiskReward: 0})
	candidates, errs := engine.EvaluateWatchlist([]string{"AAPL", "MSFT"}, "stocks", StrategyMomentum)
	assert.Empty(t, errs)
	for i := 1; i < len(candidates); i++ {
		assert.GreaterOrEqual(t, candidates[i-1].EV, candidates[i].EV)
	}
}

func TestStopLossAndTakeProfitDirectionDependent(t *testing.T) {
	stopLoss, takeProfit := stopLossAndTakeProfit(100, 2, "long", 2, 2)
	assert.Equal(t, 96.0, stopLoss)
	assert.Equal(t, 108.0, takeProfit)

	stopLoss, takeProfit = stopLossAndTakeProfit(100, 2, "short", 2, 2)
	assert.Equal(t, 104.0, stopLoss)
	assert.Equal(t, 92.0, takeProfit)
}
