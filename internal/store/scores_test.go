package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func intPtr(v int) *int { return &v }

func TestUpsertAndGetScore(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.UpsertFixture(Fixture{FixtureID: "f1"}))

	require.NoError(t, s.UpsertScore(Score{FixtureID: "f1", HomeScore: intPtr(1), AwayScore: intPtr(0), Status: "finished"}))

	sc, err := s.GetScore("f1")
	require.NoError(t, err)
	require.NotNil(t, sc)
	assert.Equal(t, 1, *sc.HomeScore)
	assert.Equal(t, "finished", sc.Status)
}

func TestFindScoreByTeamsAndDateSyntheticFallback(t *testing.T) {
	s := newTestStore(t)

	require.NoError(t, s.UpsertScore(Score{
		FixtureID: "flashscore_manchester_united_chelsea_2026-08-01",
		HomeScore: intPtr(2), AwayScore: intPtr(1), Status: "finished",
	}))

	sc, err := s.FindScoreByTeamsAndDate("manchester united", "chelsea", "2026-08-01")
	require.NoError(t, err)
	require.NotNil(t, sc)
	assert.Equal(t, 2, *sc.HomeScore)
}

func TestFindScoreByTeamsAndDateNoMatch(t *testing.T) {
	s := newTestStore(t)
	sc, err := s.FindScoreByTeamsAndDate("arsenal", "chelsea", "2026-08-01")
	require.NoError(t, err)
	assert.Nil(t, sc)
}

func TestDeleteScoresByFixtureIDPrefix(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.UpsertScore(Score{FixtureID: "fbref_old_1", Status: "finished"}))
	require.NoError(t, s.UpsertScore(Score{FixtureID: "betano_1", Status: "finished"}))

	n, err := s.DeleteScoresByFixtureIDPrefix("fbref_")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	sc, err := s.GetScore("betano_1")
	require.NoError(t, err)
	assert.NotNil(t, sc)
}
