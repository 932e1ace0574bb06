package settlement

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

func intPtr(v int) *int { return &v }

func TestEvaluateOneXTwo(t *testing.T) {
	assert.True(t, EvaluateOneXTwo(2, 1, "1"))
	assert.True(t, EvaluateOneXTwo(2, 1, "Home"))
	assert.False(t, EvaluateOneXTwo(2, 1, "2"))
	assert.True(t, EvaluateOneXTwo(1, 1, "X"))
	assert.True(t, EvaluateOneXTwo(0, 3, "away_win"))
}

func TestEvaluateOverUnder(t *testing.T) {
	assert.True(t, EvaluateOverUnder(2, 1, "over 2.5"))
	assert.False(t, EvaluateOverUnder(2, 1, "under 2.5"))
	assert.True(t, EvaluateOverUnder(1, 0, "under 1.5"))
	// push at the extracted threshold is a loss for the stated side.
	assert.False(t, EvaluateOverUnder(2, 1, "over 3"))
	assert.False(t, EvaluateOverUnder(2, 1, "under 3"))
}

func TestEvaluateBTTS(t *testing.T) {
	assert.True(t, EvaluateBTTS(1, 1, "yes"))
	assert.False(t, EvaluateBTTS(1, 0, "yes"))
	assert.True(t, EvaluateBTTS(1, 0, "no"))
}

func TestEvaluateDoubleChance(t *testing.T) {
	won, known := EvaluateBet(2, 1, "Double Chance", "1X")
	assert.True(t, known)
	assert.True(t, won)

	won, known = EvaluateBet(1, 1, "Double Chance", "X2")
	assert.True(t, known)
	assert.True(t, won)

	won, known = EvaluateBet(2, 2, "Double Chance", "12")
	assert.True(t, known)
	assert.False(t, won)
}

func TestEvaluateBetUnknownMarket(t *testing.T) {
	_, known := EvaluateBet(1, 0, "Correct Score", "2-1")
	assert.False(t, known)
}

func TestSettleBetDirectScoreWin(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.UpsertFixture(store.Fixture{
		FixtureID: "betano_123", HomeTeamName: "Team A", AwayTeamName: "Team B",
		StartTime: time.Date(2025, 1, 20, 15, 0, 0, 0, time.UTC),
	}))
	require.NoError(t, s.UpsertScore(store.Score{FixtureID: "betano_123", HomeScore: intPtr(2), AwayScore: intPtr(1), Status: "finished"}))
	betID, err := s.InsertBet(store.Bet{FixtureID: "betano_123", MarketName: "1x2", OutcomeName: "1", Odds: 2.5, Stake: 10})
	require.NoError(t, err)

	svc := New(s)
	result, err := svc.SettleBet(betID)
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, "win", result.Result)
	assert.Equal(t, 25.0, result.Payout)
	assert.Equal(t, 15.0, result.Profit)

	bet, err := s.GetBetByID(betID)
	require.NoError(t, err)
	assert.Equal(t, "win", bet.Result)
}

func TestSettleBetSyntheticFallbackWin(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.UpsertFixture(store.Fixture{
		FixtureID: "betano_123", HomeTeamName: "Team A", AwayTeamName: "Team B",
		StartTime: time.Date(2025, 1, 20, 15, 0, 0, 0, time.UTC),
	}))
	require.NoError(t, s.UpsertScore(store.Score{
		FixtureID: "flashscore_Team_A_Team_B_2025-01-20", HomeScore: intPtr(2), AwayScore: intPtr(1), Status: "finished",
	}))
	betID, err := s.InsertBet(store.Bet{FixtureID: "betano_123", MarketName: "1x2", OutcomeName: "1", Odds: 2.5, Stake: 10})
	require.NoError(t, err)

	svc := New(s)
	result, err := svc.SettleBet(betID)
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, "win", result.Result)
	assert.Equal(t, 25.0, result.Payout)
}

func TestSettleBetLoss(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.UpsertFixture(store.Fixture{FixtureID: "betano_1", StartTime: time.Now()}))
	require.NoError(t, s.UpsertScore(store.Score{FixtureID: "betano_1", HomeScore: intPtr(0), AwayScore: intPtr(2), Status: "finished"}))
	betID, err := s.InsertBet(store.Bet{FixtureID: "betano_1", MarketName: "Match Result", OutcomeName: "home", Odds: 1.8, Stake: 5})
	require.NoError(t, err)

	svc := New(s)
	result, err := svc.SettleBet(betID)
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, "loss", result.Result)
	assert.Equal(t, 0.0, result.Payout)
}

func TestSettleBetNoScoreYieldsNilResult(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.UpsertFixture(store.Fixture{FixtureID: "betano_2", StartTime: time.Now()}))
	betID, err := s.InsertBet(store.Bet{FixtureID: "betano_2", MarketName: "1x2", OutcomeName: "1", Odds: 2.0, Stake: 5})
	require.NoError(t, err)

	svc := New(s)
	result, err := svc.SettleBet(betID)
	require.NoError(t, err)
	assert.Nil(t, result)

	bet, err := s.GetBetByID(betID)
	require.NoError(t, err)
	assert.Equal(t, "pending", bet.Result)
}

func TestSettleBetUnknownMarketStaysPending(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.UpsertFixture(store.Fixture{FixtureID: "betano_3", StartTime: time.Now()}))
	require.NoError(t, s.UpsertScore(store.Score{FixtureID: "betano_3", HomeScore: intPtr(2), AwayScore: intPtr(1), Status: "finished"}))
	betID, err := s.InsertBet(store.Bet{FixtureID: "betano_3", MarketName: "Correct Score", OutcomeName: "2-1", Odds: 6.0, Stake: 5})
	require.NoError(t, err)

	svc := New(s)
	result, err := svc.SettleBet(betID)
	require.NoError(t, err)
	assert.Nil(t, result)
}

func TestSettleBetIsIdempotent(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.UpsertFixture(store.Fixture{FixtureID: "betano_4", StartTime: time.Now()}))
	require.NoError(t, s.UpsertScore(store.Score{FixtureID: "betano_4", HomeScore: intPtr(1), AwayScore: intPtr(0), Status: "finished"}))
	betID, err := s.InsertBet(store.Bet{FixtureID: "betano_4", MarketName: "1x2", OutcomeName: "home", Odds: 2.0, Stake: 10})
	require.NoError(t, err)

	svc := New(s)
	first, err := svc.SettleBet(betID)
	require.NoError(t, err)
	require.NotNil(t, first)

	second, err := svc.SettleBet(betID)
	require.NoError(t, err)
	assert.Nil(t, second)
}

func TestSettlePendingBetsAggregates(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.UpsertFixture(store.Fixture{FixtureID: "betano_win", StartTime: time.Now()}))
	require.NoError(t, s.UpsertScore(store.Score{FixtureID: "betano_win", HomeScore: intPtr(2), AwayScore: intPtr(0), Status: "finished"}))
	winID, err := s.InsertBet(store.Bet{FixtureID: "betano_win", MarketName: "1x2", OutcomeName: "home", Odds: 2.0, Stake: 10})
	require.NoError(t, err)

	require.NoError(t, s.UpsertFixture(store.Fixture{FixtureID: "betano_loss", StartTime: time.Now()}))
	require.NoError(t, s.UpsertScore(store.Score{FixtureID: "betano_loss", HomeScore: intPtr(0), AwayScore: intPtr(1), Status: "finished"}))
	lossID, err := s.InsertBet(store.Bet{FixtureID: "betano_loss", MarketName: "1x2", OutcomeName: "home", Odds: 3.0, Stake: 10})
	require.NoError(t, err)

	require.NoError(t, s.UpsertFixture(store.Fixture{FixtureID: "betano_unsettled", StartTime: time.Now()}))
	_, err = s.InsertBet(store.Bet{FixtureID: "betano_unsettled", MarketName: "1x2", OutcomeName: "home", Odds: 2.0, Stake: 10})
	require.NoError(t, err)

	svc := New(s)
	batch, err := svc.SettlePendingBets()
	require.NoError(t, err)
	assert.Equal(t, 3, batch.TotalPending)
	assert.Equal(t, 2, batch.Settled)
	assert.Equal(t, 1, batch.Wins)
	assert.Equal(t, 1, batch.Losses)
	assert.Equal(t, 20.0, batch.TotalPayout)
	assert.Len(t, batch.Results, 2)

	stats, err := svc.GetSettlementStats()
	require.NoError(t, err)
	assert.Equal(t, 2, stats.SettledBets)

	_ = winID
	_ = lossID
}
