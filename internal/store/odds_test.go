package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUpsertOddsRejectsInvalidValue(t *testing.T) {
	s := newTestStore(t)
	err := s.UpsertOdds(Odds{FixtureID: "f1", BookmakerID: "b1", MarketID: "1x2", OutcomeID: "home", OddsValue: 0.9})
	assert.Error(t, err)
}

func TestUpsertOddsOverwritesInPlace(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.UpsertFixture(Fixture{FixtureID: "f1"}))

	base := Odds{FixtureID: "f1", BookmakerID: "b1", MarketID: "1x2", OutcomeID: "home", OddsValue: 1.8}
	require.NoError(t, s.UpsertOdds(base))

	base.OddsValue = 2.1
	require.NoError(t, s.UpsertOdds(base))

	rows, err := s.GetOdds("f1", "")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, 2.1, rows[0].OddsValue)
}

func TestInsertOddsBatchAtomic(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.UpsertFixture(Fixture{FixtureID: "f1"}))

	batch := []Odds{
		{FixtureID: "f1", BookmakerID: "b1", MarketID: "1x2", OutcomeID: "home", OddsValue: 1.5},
		{FixtureID: "f1", BookmakerID: "b1", MarketID: "1x2", OutcomeID: "away", OddsValue: 2.5},
	}
	require.NoError(t, s.InsertOddsBatch(batch))

	rows, err := s.GetOdds("f1", "")
	require.NoError(t, err)
	assert.Len(t, rows, 2)
}

func TestInsertOddsBatchRollsBackOnInvalidRow(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.UpsertFixture(Fixture{FixtureID: "f1"}))

	batch := []Odds{
		{FixtureID: "f1", BookmakerID: "b1", MarketID: "1x2", OutcomeID: "home", OddsValue: 1.5},
		{FixtureID: "f1", BookmakerID: "b1", MarketID: "1x2", OutcomeID: "away", OddsValue: 0.5},
	}
	err := s.InsertOddsBatch(batch)
	assert.Error(t, err)

	rows, err := s.GetOdds("f1", "")
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestLatestOddsPerOutcomeDedups(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.UpsertFixture(Fixture{FixtureID: "f1"}))

	require.NoError(t, s.UpsertOdds(Odds{FixtureID: "f1", BookmakerID: "b1", MarketID: "1x2", OutcomeID: "home", OddsValue: 1.5}))
	require.NoError(t, s.UpsertOdds(Odds{FixtureID: "f1", BookmakerID: "b2", MarketID: "1x2", OutcomeID: "home", OddsValue: 1.6}))

	latest, err := s.LatestOddsPerOutcome("f1", "")
	require.NoError(t, err)
	assert.Len(t, latest, 1)
}
