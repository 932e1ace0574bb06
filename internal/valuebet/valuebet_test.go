package valuebet

import (
	"testing"

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

type fakeProbabilitySource map[string]float64

func (f fakeProbabilitySource) Probabilities(fixtureID, market string) (map[string]float64, error) {
	return f, nil
}

func TestComputeEVMatchesContractFormula(t *testing.T) {
	// p=0.5, o=2.5, m=0 -> EV = (0.5 - 0.4) * 2.5 = 0.25
	ev := ComputeEV(0.5, 2.5, 0)
	assert.InDelta(t, 0.25, ev, 0.0001)
}

func TestComputeEVAppliesMarketMargin(t *testing.T) {
	// p=0.5, o=2.5, m=0.05 -> adjusted_implied = 0.4/1.05 = 0.380952...
	ev := ComputeEV(0.5, 2.5, 0.05)
	assert.InDelta(t, (0.5-0.4/1.05)*2.5, ev, 0.0001)
}

func TestEvaluateEmitsCandidateAboveThreshold(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.UpsertOdds(store.Odds{
		FixtureID: "betano_1", BookmakerID: "betano", MarketID: "1x2", MarketName: "Match Result",
		OutcomeID: "1", OutcomeName: "Home", OddsValue: 3.0,
	}))

	engine := New(s, fakeProbabilitySource{"1": 0.5}, Config{EVThreshold: 0.05})
	candidates, err := engine.Evaluate("betano_1", "1x2", "")
	require.NoError(t, err)
	require.Len(t, candidates, 1)
	assert.Equal(t, "Home", candidates[0].OutcomeName)
	assert.Equal(t, 10.0, candidates[0].Stake)
}

func TestEvaluateSkipsBelowThreshold(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.UpsertOdds(store.Odds{
		FixtureID: "betano_1", BookmakerID: "betano", MarketID: "1x2", MarketName: "Match Result",
		OutcomeID: "1", OutcomeName: "Home", OddsValue: 1.5,
	}))

	engine := New(s, fakeProbabilitySource{"1": 0.5}, Config{EVThreshold: 0.05})
	candidates, err := engine.Evaluate("betano_1", "1x2", "")
	require.NoError(t, err)
	assert.Empty(t, candidates)
}

func TestEvaluateRejectsUnsupportedMarket(t *testing.T) {
	s := newTestStore(t)
	engine := New(s, fakeProbabilitySource{}, Config{})
	_, err := engine.Evaluate("betano_1", "correct_score", "")
	assert.Error(t, err)
}

func TestEvaluateMultipleOutcomesAllPassingEmitAll(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.UpsertOdds(store.Odds{
		FixtureID: "betano_1", BookmakerID: "betano", MarketID: "1x2", MarketName: "Match Result",
		OutcomeID: "1", OutcomeName: "Home", OddsValue: 3.0,
	}))
	require.NoError(t, s.UpsertOdds(store.Odds{
		FixtureID: "betano_1", BookmakerID: "betano", MarketID: "1x2", MarketName: "Match Result",
		OutcomeID: "2", OutcomeName: "Away", OddsValue: 4.0,
	}))

	engine := New(s, fakeProbabilitySource{"1": 0.5, "2": 0.4}, Config{EVThreshold: 0.05})
	candidates, err := engine.Evaluate("betano_1", "1x2", "")
	require.NoError(t, err)
	assert.Len(t, candidates, 2)
}

func TestEvaluateBatchCollectsPartialResultsOnError(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.UpsertOdds(store.Odds{
		FixtureID: "betano_1", BookmakerID: "betano", MarketID: "1x2", MarketName: "Match Result",
		OutcomeID: "1", OutcomeName: "Home", OddsValue: 3.0,
	}))

	engine := New(s, fakeProbabilitySource{"1": 0.5}, Config{EVThreshold: 0.05})
	candidates, errs := engine.EvaluateBatch([]string{"betano_1", "betano_2"}, "unsupported_market", "")
	assert.Empty(t, candidates)
	assert.Len(t, errs, 2)
}
