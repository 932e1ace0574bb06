package modelversion

import (
	"context"
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

type fakeBackuper struct {
	calls  int
	label  string
	result string
}

func (f *fakeBackuper) Backup(ctx context.Context, label string) (string, error) {
	f.calls++
	f.label = label
	return f.result, nil
}

func TestSaveVersionActivatesWhenRequested(t *testing.T) {
	s := newTestStore(t)
	m := New(s, nil, Config{})

	versionID, err := m.SaveVersion("betting", "1x2", "/models/v1.pkl", 1000, 0.82, "{}", true)
	require.NoError(t, err)

	active, err := m.GetActive("betting", "1x2")
	require.NoError(t, err)
	require.NotNil(t, active)
	assert.Equal(t, versionID, active.VersionID)
}

func TestSaveVersionWithoutActivateLeavesExistingActive(t *testing.T) {
	s := newTestStore(t)
	m := New(s, nil, Config{})

	first, err := m.SaveVersion("betting", "1x2", "/models/v1.pkl", 1000, 0.82, "{}", true)
	require.NoError(t, err)

	_, err = m.SaveVersion("betting", "1x2", "/models/v2.pkl", 1200, 0.85, "{}", false)
	require.NoError(t, err)

	active, err := m.GetActive("betting", "1x2")
	require.NoError(t, err)
	assert.Equal(t, first, active.VersionID)
}

func TestSaveVersionEnforcesRetention(t *testing.T) {
	s := newTestStore(t)
	m := New(s, nil, Config{MaxVersionsToKeep: 2})

	for i := 0; i < 5; i++ {
		_, err := m.SaveVersion("betting", "1x2", "/models/v.pkl", 100, 0.8, "{}", false)
		require.NoError(t, err)
	}

	versions, err := m.store.GetAllVersions("betting", "1x2")
	require.NoError(t, err)
	assert.LessOrEqual(t, len(versions), 2)
}

func TestRollbackToVersionInvokesBackupAndActivates(t *testing.T) {
	s := newTestStore(t)
	backuper := &fakeBackuper{result: "/backups/pre_rollback.tar.gz"}
	m := New(s, backuper, Config{})

	v1, err := m.SaveVersion("betting", "1x2", "/models/v1.pkl", 100, 0.7, "{}", true)
	require.NoError(t, err)
	_, err = m.SaveVersion("betting", "1x2", "/models/v2.pkl", 200, 0.9, "{}", true)
	require.NoError(t, err)

	ok, err := m.RollbackToVersion(context.Background(), "betting", "1x2", v1)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 1, backuper.calls)
	assert.Equal(t, "pre_rollback", backuper.label)

	active, err := m.GetActive("betting", "1x2")
	require.NoError(t, err)
	assert.Equal(t, v1, active.VersionID)
}

func TestRollbackToUnknownVersionReturnsFalse(t *testing.T) {
	s := newTestStore(t)
	m := New(s, &fakeBackuper{}, Config{})
	ok, err := m.RollbackToVersion(context.Background(), "betting", "1x2", 999)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCheckShouldRollbackDisabledByDefault(t *testing.T) {
	s := newTestStore(t)
	m := New(s, nil, Config{})
	_, should, err := m.CheckShouldRollback("betting", "1x2")
	require.NoError(t, err)
	assert.False(t, should)
}

func TestCheckShouldRollbackRequiresMinimumSettledBets(t *testing.T) {
	s := newTestStore(t)
	m := New(s, nil, Config{RollbackEnabled: true, RollbackROIThreshold: -0.1, RollbackMinSettledBets: 5})

	for i := 0; i < 3; i++ {
		require.NoError(t, s.UpsertFixture(store.Fixture{FixtureID: "betano_x", StartTime: time.Now()}))
		id, err := s.InsertBet(store.Bet{FixtureID: "betano_x", Odds: 2.0, Stake: 10, ModelMarket: "1x2"})
		require.NoError(t, err)
		require.NoError(t, s.SettleBet(id, "loss", 0))
	}

	_, should, err := m.CheckShouldRollback("betting", "1x2")
	require.NoError(t, err)
	assert.False(t, should)
}

func TestCheckShouldRollbackReturnsPreviousActiveVersion(t *testing.T) {
	s := newTestStore(t)
	m := New(s, nil, Config{RollbackEnabled: true, RollbackROIThreshold: -0.1, RollbackMinSettledBets: 3})

	v1, err := m.SaveVersion("betting", "1x2", "/models/v1.pkl", 100, 0.7, "{}", true)
	require.NoError(t, err)
	_, err = m.SaveVersion("betting", "1x2", "/models/v2.pkl", 200, 0.9, "{}", true)
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		require.NoError(t, s.UpsertFixture(store.Fixture{FixtureID: "betano_x", StartTime: time.Now()}))
		id, err := s.InsertBet(store.Bet{FixtureID: "betano_x", Odds: 2.0, Stake: 10, ModelMarket: "1x2"})
		require.NoError(t, err)
		require.NoError(t, s.SettleBet(id, "loss", 0))
	}

	versionID, should, err := m.CheckShouldRollback("betting", "1x2")
	require.NoError(t, err)
	require.True(t, should)
	assert.Equal(t, v1, versionID)
}
