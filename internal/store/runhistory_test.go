package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunHistoryLifecycle(t *testing.T) {
	s := newTestStore(t)

	id, err := s.InsertRunHistory("collection", "betting")
	require.NoError(t, err)

	require.NoError(t, s.FinishRunHistory(id, true, `{"fixtures":10}`, ""))

	runs, err := s.GetRecentRuns("collection", 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.True(t, runs[0].Success)
	assert.False(t, runs[0].Stopped)
}

func TestRunHistoryStopped(t *testing.T) {
	s := newTestStore(t)

	id, err := s.InsertRunHistory("full_run", "betting")
	require.NoError(t, err)
	require.NoError(t, s.StopRunHistory(id))

	runs, err := s.GetRecentRuns("full_run", 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.True(t, runs[0].Stopped)
	assert.False(t, runs[0].Success)
}

func TestRunHistorySkipped(t *testing.T) {
	s := newTestStore(t)

	require.NoError(t, s.SkipRunHistory("trading", "trading", "another task is already running"))

	runs, err := s.GetRecentRuns("trading", 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.True(t, runs[0].Skipped)
	assert.Equal(t, "another task is already running", runs[0].SkipReason)
}
