package validator

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateBetanoSingleLeague(t *testing.T) {
	payload := map[string]interface{}{
		"league_id": "epl",
		"fixtures": []interface{}{
			map[string]interface{}{
				"fixture_id": "betano_123", "home_team_id": "h1", "home_team_name": "Team A",
				"away_team_id": "a1", "away_team_name": "Team B", "start_time": "2025-01-20T15:00:00Z", "status": "scheduled",
				"odds": []interface{}{
					map[string]interface{}{"market_id": "1x2", "market_name": "Match Result", "outcome_id": "1", "outcome_name": "Home", "odds_value": 2.5},
				},
			},
		},
	}
	result := Validate(SourceBetano, payload)
	assert.True(t, result.Valid, result.ErrorString())
	assert.Empty(t, result.Errors)
}

func TestValidateBetanoListOfLeagues(t *testing.T) {
	payload := []interface{}{
		map[string]interface{}{"league_id": "epl", "fixtures": []interface{}{}},
		map[string]interface{}{"league_id": "laliga", "fixtures": []interface{}{}},
	}
	result := Validate(SourceBetano, payload)
	assert.True(t, result.Valid)
}

func TestValidateBetanoMissingFieldsFails(t *testing.T) {
	payload := map[string]interface{}{"fixtures": []interface{}{}}
	result := Validate(SourceBetano, payload)
	assert.False(t, result.Valid)
	assert.NotEmpty(t, result.Errors)
}

func TestValidateFlashscoreMatches(t *testing.T) {
	payload := map[string]interface{}{
		"matches": []interface{}{
			map[string]interface{}{"home_team_name": "Team A", "away_team_name": "Team B", "start_time": "2025-01-20", "home_score": 2, "away_score": 1},
		},
	}
	result := Validate(SourceFlashscore, payload)
	assert.True(t, result.Valid)
}

func TestValidateFlashscoreMissingMatchesArrayFails(t *testing.T) {
	result := Validate(SourceFlashscore, map[string]interface{}{})
	assert.False(t, result.Valid)
}

func TestValidatePriceSourceBars(t *testing.T) {
	payload := map[string]interface{}{
		"symbol": "BTC",
		"prices": []interface{}{
			map[string]interface{}{"timestamp": "2026-01-01", "open": 1.0, "high": 2.0, "low": 1.0, "close": 1.5, "volume": 100.0},
		},
	}
	result := Validate(SourceCrypto, payload)
	assert.True(t, result.Valid)
}

func TestValidatePriceSourceMissingSymbolFails(t *testing.T) {
	payload := map[string]interface{}{"prices": []interface{}{}}
	result := Validate(SourceStocks, payload)
	assert.False(t, result.Valid)
}

func TestValidateUnknownSourceKind(t *testing.T) {
	result := Validate(SourceKind("unknown"), map[string]interface{}{})
	assert.False(t, result.Valid)
}
