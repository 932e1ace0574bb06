package predictor

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/antonkoetzler/arbihawk/internal/modelversion"
	"github.com/antonkoetzler/arbihawk/internal/store"
	"github.com/antonkoetzler/arbihawk/internal/tradesignal"
)

func newTestManager(t *testing.T) *modelversion.Manager {
	t.Helper()
	s, err := store.Open(store.Config{Path: ":memory:", Log: zerolog.Nop()})
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return modelversion.New(s, nil, modelversion.Config{})
}

func TestBettingSourceNoActiveModelReturnsNilNotError(t *testing.T) {
	models := newTestManager(t)
	runner := New(5*time.Second, zerolog.Nop())
	src := NewBettingSource(models, func(string, string, string) []string {
		t.Fatal("command should not be built without an active model")
		return nil
	}, runner)

	probs, err := src.Probabilities("fixture_1", "1x2")
	require.NoError(t, err)
	assert.Nil(t, probs)
}

func TestBettingSourceRunsCommandAndDecodes(t *testing.T) {
	models := newTestManager(t)
	versionID, err := models.SaveVersion("betting", "1x2", "/models/1x2.bin", 100, 0.8, "", false)
	require.NoError(t, err)
	require.NoError(t, models.SetActive("betting", "1x2", versionID))

	runner := New(5*time.Second, zerolog.Nop())
	src := NewBettingSource(models, func(modelPath, fixtureID, market string) []string {
		assert.Equal(t, "/models/1x2.bin", modelPath)
		assert.Equal(t, "fixture_1", fixtureID)
		assert.Equal(t, "1x2", market)
		return []string{"echo", `{"1": 0.55, "2": 0.25}`}
	}, runner)

	probs, err := src.Probabilities("fixture_1", "1x2")
	require.NoError(t, err)
	assert.InDelta(t, 0.55, probs["1"], 0.0001)
	assert.InDelta(t, 0.25, probs["2"], 0.0001)
}

func TestBettingSourceInvalidJSONErrors(t *testing.T) {
	models := newTestManager(t)
	versionID, err := models.SaveVersion("betting", "1x2", "/models/1x2.bin", 100, 0.8, "", false)
	require.NoError(t, err)
	require.NoError(t, models.SetActive("betting", "1x2", versionID))

	runner := New(5*time.Second, zerolog.Nop())
	src := NewBettingSource(models, func(string, string, string) []string {
		return []string{"echo", "not json"}
	}, runner)

	_, err = src.Probabilities("fixture_1", "1x2")
	assert.Error(t, err)
}

func TestTradingSourceNoActiveModelErrors(t *testing.T) {
	models := newTestManager(t)
	runner := New(5*time.Second, zerolog.Nop())
	src := NewTradingSource(models, func(string, string, string) []string { return nil }, runner)

	_, err := src.Probability("AAPL", tradesignal.StrategyMomentum)
	assert.Error(t, err)
}

func TestTradingSourceRunsCommandAndDecodes(t *testing.T) {
	models := newTestManager(t)
	versionID, err := models.SaveVersion("trading", "AAPL", "/models/aapl.bin", 200, 0.7, "", false)
	require.NoError(t, err)
	require.NoError(t, models.SetActive("trading", "AAPL", versionID))

	runner := New(5*time.Second, zerolog.Nop())
	src := NewTradingSource(models, func(modelPath, symbol, strategy string) []string {
		assert.Equal(t, "/models/aapl.bin", modelPath)
		assert.Equal(t, "AAPL", symbol)
		assert.Equal(t, "momentum", strategy)
		return []string{"echo", `{"probability": 0.62}`}
	}, runner)

	p, err := src.Probability("AAPL", tradesignal.StrategyMomentum)
	require.NoError(t, err)
	assert.InDelta(t, 0.62, p, 0.0001)
}

func TestRunRejectsEmptyCommand(t *testing.T) {
	runner := New(5*time.Second, zerolog.Nop())
	_, err := runner.run(nil, nil)
	assert.Error(t, err)
}
