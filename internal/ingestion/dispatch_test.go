package ingestion

import (
	"testing"

	"github.com/antonkoetzler/arbihawk/internal/matcher"
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

func TestDispatchBetanoUpsertsFixturesAndOdds(t *testing.T) {
	s := newTestStore(t)
	p := New(s, matcher.New(s, matcher.Config{}), zerolog.Nop())

	payload := map[string]interface{}{
		"league_id": "epl",
		"fixtures": []interface{}{
			map[string]interface{}{
				"fixture_id": "betano_1", "home_team_name": "Team A", "away_team_name": "Team B",
				"start_time": "2025-01-20T15:00:00Z", "status": "scheduled",
				"odds": []interface{}{
					map[string]interface{}{"market_id": "1x2", "market_name": "Match Result", "outcome_id": "1", "outcome_name": "Home", "odds_value": 2.1},
				},
			},
		},
	}
	records, err := p.dispatch(SourceBetano, payload)
	require.NoError(t, err)
	assert.Equal(t, 2, records) // 1 fixture + 1 odds row

	fixture, err := s.GetFixtureByID("betano_1")
	require.NoError(t, err)
	require.NotNil(t, fixture)
	assert.Equal(t, "Team A", fixture.HomeTeamName)

	odds, err := s.GetOdds("betano_1", "")
	require.NoError(t, err)
	require.Len(t, odds, 1)
	assert.Equal(t, "betano", odds[0].BookmakerID)
}

func TestDispatchBetanoListOfLeagues(t *testing.T) {
	s := newTestStore(t)
	p := New(s, matcher.New(s, matcher.Config{}), zerolog.Nop())

	payload := []interface{}{
		map[string]interface{}{"league_id": "epl", "fixtures": []interface{}{
			map[string]interface{}{"fixture_id": "betano_1", "home_team_name": "A", "away_team_name": "B", "start_time": "2025-01-20T15:00:00Z"},
		}},
		map[string]interface{}{"league_id": "laliga", "fixtures": []interface{}{
			map[string]interface{}{"fixture_id": "betano_2", "home_team_name": "C", "away_team_name": "D", "start_time": "2025-01-20T15:00:00Z"},
		}},
	}
	records, err := p.dispatch(SourceBetano, payload)
	require.NoError(t, err)
	assert.Equal(t, 2, records)
}

func TestDispatchScoresResolvesExistingFixture(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.UpsertFixture(store.Fixture{
		FixtureID: "betano_1", HomeTeamName: "Team A", AwayTeamName: "Team B",
		StartTime: parseTime("2025-01-20T15:00:00Z"),
	}))
	p := New(s, matcher.New(s, matcher.Config{ToleranceHours: 24, MinMatchScore: 75}), zerolog.Nop())

	payload := map[string]interface{}{
		"matches": []interface{}{
			map[string]interface{}{
				"home_team_name": "Team A", "away_team_name": "Team B", "start_time": "2025-01-20T15:00:00Z",
				"home_score": 2.0, "away_score": 1.0,
			},
		},
	}
	records, err := p.dispatch(SourceFlashscore, payload)
	require.NoError(t, err)
	assert.Equal(t, 1, records)

	score, err := s.GetScore("betano_1")
	require.NoError(t, err)
	require.NotNil(t, score)
	assert.Equal(t, 2, *score.HomeScore)
}

func TestDispatchScoresFallsBackToSyntheticID(t *testing.T) {
	s := newTestStore(t)
	p := New(s, matcher.New(s, matcher.Config{}), zerolog.Nop())

	payload := map[string]interface{}{
		"matches": []interface{}{
			map[string]interface{}{
				"home_team_name": "Unknown A", "away_team_name": "Unknown B", "start_time": "2025-01-20",
				"home_score": 0.0, "away_score": 0.0,
			},
		},
	}
	records, err := p.dispatch(SourceFlashscore, payload)
	require.NoError(t, err)
	assert.Equal(t, 1, records)

	score, err := s.FindScoreByTeamsAndDate("Unknown A", "Unknown B", "2025-01-20")
	require.NoError(t, err)
	require.NotNil(t, score)
}

func TestDispatchScoresSkipsIncompleteMatches(t *testing.T) {
	s := newTestStore(t)
	p := New(s, matcher.New(s, matcher.Config{}), zerolog.Nop())

	payload := map[string]interface{}{
		"matches": []interface{}{
			map[string]interface{}{"home_team_name": "A", "away_team_name": "B", "start_time": "2025-01-20"},
		},
	}
	records, err := p.dispatch(SourceFlashscore, payload)
	require.NoError(t, err)
	assert.Equal(t, 0, records)
}

func TestDispatchPricesWritesInstrumentAndBars(t *testing.T) {
	s := newTestStore(t)
	p := New(s, matcher.New(s, matcher.Config{}), zerolog.Nop())

	payload := map[string]interface{}{
		"symbol": "BTC",
		"metadata": map[string]interface{}{"name": "Bitcoin", "market_cap": 1_000_000.0},
		"prices": []interface{}{
			map[string]interface{}{"timestamp": "2026-01-01T00:00:00Z", "open": 1.0, "high": 2.0, "low": 1.0, "close": 1.5, "volume": 100.0},
		},
	}
	records, err := p.dispatch(SourceCrypto, payload)
	require.NoError(t, err)
	assert.Equal(t, 2, records)

	points, err := s.GetPriceHistory("BTC", "crypto", 10)
	require.NoError(t, err)
	require.Len(t, points, 1)
	assert.Equal(t, 1.5, points[0].Close)
}
