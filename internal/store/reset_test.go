package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeBackuper struct {
	path  string
	calls int
}

func (f *fakeBackuper) Backup(ctx context.Context, dbPath string) (string, error) {
	f.calls++
	return f.path, nil
}

func TestResetBettingDomainTruncatesAndBacksUp(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.UpsertFixture(Fixture{FixtureID: "f1"}))
	require.NoError(t, s.UpsertScore(Score{FixtureID: "f1", Status: "finished"}))
	_, err := s.InsertBet(Bet{FixtureID: "f1", MarketID: "1x2", OutcomeID: "home", Odds: 2, Stake: 10})
	require.NoError(t, err)

	backuper := &fakeBackuper{path: "/backups/arbihawk-20260730.tar.gz"}
	report, err := s.ResetBettingDomain(context.Background(), backuper)
	require.NoError(t, err)

	assert.Equal(t, 1, backuper.calls)
	assert.Equal(t, backuper.path, report.BackupPath)
	assert.Equal(t, int64(1), report.RecordsDeleted["fixtures"])
	assert.Equal(t, int64(1), report.RecordsDeleted["bet_history"])
	assert.Greater(t, report.TotalDeleted, int64(0))

	fixtures, err := s.GetFixtures(FixtureFilter{})
	require.NoError(t, err)
	assert.Empty(t, fixtures)
}

func TestResetDatabasePreservesModelsWhenRequested(t *testing.T) {
	s := newTestStore(t)
	id, err := s.InsertModelVersion(ModelVersion{Domain: "betting", Market: "1x2", ModelPath: "v1.pkl"})
	require.NoError(t, err)
	require.NoError(t, s.SetActive("betting", "1x2", id))

	_, err = s.ResetDatabase(context.Background(), nil, true)
	require.NoError(t, err)

	active, err := s.GetActive("betting", "1x2")
	require.NoError(t, err)
	assert.NotNil(t, active, "model_versions must survive a preserve_models reset")
}

func TestResetDatabaseWipesModelsWhenNotPreserved(t *testing.T) {
	s := newTestStore(t)
	id, err := s.InsertModelVersion(ModelVersion{Domain: "betting", Market: "1x2", ModelPath: "v1.pkl"})
	require.NoError(t, err)
	require.NoError(t, s.SetActive("betting", "1x2", id))

	_, err = s.ResetDatabase(context.Background(), nil, false)
	require.NoError(t, err)

	active, err := s.GetActive("betting", "1x2")
	require.NoError(t, err)
	assert.Nil(t, active)
}
