package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInsertAndSettleBet(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.UpsertFixture(Fixture{FixtureID: "f1"}))

	id, err := s.InsertBet(Bet{
		FixtureID: "f1", MarketID: "1x2", OutcomeID: "home",
		Odds: 2.0, Stake: 10, ModelMarket: "1x2",
	})
	require.NoError(t, err)

	pending, err := s.GetPendingBets()
	require.NoError(t, err)
	require.Len(t, pending, 1)

	require.NoError(t, s.SettleBet(id, "win", 20))

	bet, err := s.GetBetByID(id)
	require.NoError(t, err)
	assert.Equal(t, "win", bet.Result)
	assert.Equal(t, 20.0, bet.Payout)

	pending, err = s.GetPendingBets()
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestSettleBetIsIdempotent(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.UpsertFixture(Fixture{FixtureID: "f1"}))

	id, err := s.InsertBet(Bet{FixtureID: "f1", MarketID: "1x2", OutcomeID: "home", Odds: 2.0, Stake: 10, ModelMarket: "1x2"})
	require.NoError(t, err)

	require.NoError(t, s.SettleBet(id, "win", 20))
	require.NoError(t, s.SettleBet(id, "loss", 0)) // second call is a no-op

	bet, err := s.GetBetByID(id)
	require.NoError(t, err)
	assert.Equal(t, "win", bet.Result)
	assert.Equal(t, 20.0, bet.Payout)
}

func TestGetBankrollStatsComputesROI(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.UpsertFixture(Fixture{FixtureID: "f1"}))

	id1, err := s.InsertBet(Bet{FixtureID: "f1", MarketID: "1x2", OutcomeID: "home", Odds: 2.0, Stake: 10, ModelMarket: "1x2"})
	require.NoError(t, err)
	id2, err := s.InsertBet(Bet{FixtureID: "f1", MarketID: "1x2", OutcomeID: "away", Odds: 3.0, Stake: 10, ModelMarket: "1x2"})
	require.NoError(t, err)

	require.NoError(t, s.SettleBet(id1, "win", 20))
	require.NoError(t, s.SettleBet(id2, "loss", 0))

	stats, err := s.GetBankrollStats("1x2")
	require.NoError(t, err)
	assert.Equal(t, 2, stats.SettledBets)
	assert.Equal(t, 1, stats.Wins)
	assert.Equal(t, 1, stats.Losses)
	assert.InDelta(t, 0.0, stats.ROI, 0.0001) // (20 - 20) / 20
}
