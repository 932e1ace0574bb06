package ingestion

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractJSONSingleLinePrefersLatest(t *testing.T) {
	lines := []string{
		`{"stale": true}`,
		"✓ scraping complete",
		`{"league_id": "epl", "fixtures": []}`,
	}
	payload, ok := extractJSON(lines, SourceBetano)
	require.True(t, ok)
	m := payload.value.(map[string]interface{})
	assert.Equal(t, "epl", m["league_id"])
}

func TestExtractJSONMultiLineReassembly(t *testing.T) {
	lines := []string{
		"starting scrape",
		`{`,
		`  "league_id": "laliga",`,
		`  "fixtures": []`,
		`}`,
	}
	payload, ok := extractJSON(lines, SourceBetano)
	require.True(t, ok)
	m := payload.value.(map[string]interface{})
	assert.Equal(t, "laliga", m["league_id"])
}

func TestExtractJSONBalancedScanFallback(t *testing.T) {
	lines := []string{
		`log prefix {"ignored": 1} noise {"matches": [{"home_team_name": "A", "away_team_name": "B"}]} trailing`,
	}
	payload, ok := extractJSON(lines, SourceFlashscore)
	require.True(t, ok)
	m := payload.value.(map[string]interface{})
	assert.Contains(t, m, "matches")
}

func TestExtractJSONNoPayloadFound(t *testing.T) {
	lines := []string{"just some log output", "nothing structured here"}
	_, ok := extractJSON(lines, SourceBetano)
	assert.False(t, ok)
}

func TestExtractJSONRejectsWrongShapeForSource(t *testing.T) {
	lines := []string{`{"symbol": "BTC", "prices": []}`}
	_, ok := extractJSON(lines, SourceFlashscore)
	assert.False(t, ok)
}

func TestExtractJSONPriceSourceShape(t *testing.T) {
	lines := []string{`{"symbol": "BTC", "prices": [{"timestamp": "2026-01-01", "open": 1, "high": 2, "low": 1, "close": 1.5, "volume": 10}]}`}
	payload, ok := extractJSON(lines, SourceCrypto)
	require.True(t, ok)
	m := payload.value.(map[string]interface{})
	assert.Equal(t, "BTC", m["symbol"])
}
