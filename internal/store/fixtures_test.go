package store

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUpsertAndGetFixture(t *testing.T) {
	s := newTestStore(t)

	f := Fixture{
		FixtureID:      "betano_123",
		TournamentID:   "t1",
		TournamentName: "Premier League",
		HomeTeamID:     "h1",
		HomeTeamName:   "Arsenal",
		AwayTeamID:     "a1",
		AwayTeamName:   "Chelsea",
		StartTime:      time.Date(2026, 8, 1, 15, 0, 0, 0, time.UTC),
		Status:         "scheduled",
	}
	require.NoError(t, s.UpsertFixture(f))

	got, err := s.GetFixtureByID("betano_123")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Arsenal", got.HomeTeamName)
	assert.Equal(t, "scheduled", got.Status)

	f.Status = "live"
	require.NoError(t, s.UpsertFixture(f))

	got2, err := s.GetFixtureByID("betano_123")
	require.NoError(t, err)
	assert.Equal(t, "live", got2.Status)
}

func TestGetFixturesFilterByDateRange(t *testing.T) {
	s := newTestStore(t)

	early := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	late := time.Date(2026, 12, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, s.UpsertFixture(Fixture{FixtureID: "f1", StartTime: early}))
	require.NoError(t, s.UpsertFixture(Fixture{FixtureID: "f2", StartTime: late}))

	from := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	fixtures, err := s.GetFixtures(FixtureFilter{FromDate: &from})
	require.NoError(t, err)
	require.Len(t, fixtures, 1)
	assert.Equal(t, "f2", fixtures[0].FixtureID)
}

func TestGetFixtureByIDMissing(t *testing.T) {
	s := newTestStore(t)
	got, err := s.GetFixtureByID("nope")
	require.NoError(t, err)
	assert.Nil(t, got)
}
