package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetActiveEnforcesSingleActivePerDomainMarket(t *testing.T) {
	s := newTestStore(t)

	id1, err := s.InsertModelVersion(ModelVersion{Domain: "betting", Market: "1x2", ModelPath: "v1.pkl"})
	require.NoError(t, err)
	id2, err := s.InsertModelVersion(ModelVersion{Domain: "betting", Market: "1x2", ModelPath: "v2.pkl"})
	require.NoError(t, err)

	require.NoError(t, s.SetActive("betting", "1x2", id1))
	active, err := s.GetActive("betting", "1x2")
	require.NoError(t, err)
	require.NotNil(t, active)
	assert.Equal(t, id1, active.VersionID)

	require.NoError(t, s.SetActive("betting", "1x2", id2))
	active, err = s.GetActive("betting", "1x2")
	require.NoError(t, err)
	assert.Equal(t, id2, active.VersionID)

	all, err := s.GetAllVersions("betting", "1x2")
	require.NoError(t, err)
	activeCount := 0
	for _, v := range all {
		if v.IsActive {
			activeCount++
		}
	}
	assert.Equal(t, 1, activeCount)
}

func TestSetActiveUnknownVersionFails(t *testing.T) {
	s := newTestStore(t)
	err := s.SetActive("betting", "1x2", 999)
	assert.Error(t, err)
}

func TestDomainScopesModelVersionsIndependently(t *testing.T) {
	s := newTestStore(t)

	bettingID, err := s.InsertModelVersion(ModelVersion{Domain: "betting", Market: "1x2", ModelPath: "b.pkl"})
	require.NoError(t, err)
	tradingID, err := s.InsertModelVersion(ModelVersion{Domain: "trading", Market: "AAPL", ModelPath: "t.pkl"})
	require.NoError(t, err)

	require.NoError(t, s.SetActive("betting", "1x2", bettingID))
	require.NoError(t, s.SetActive("trading", "AAPL", tradingID))

	bettingActive, err := s.GetActive("betting", "1x2")
	require.NoError(t, err)
	tradingActive, err := s.GetActive("trading", "AAPL")
	require.NoError(t, err)

	assert.Equal(t, bettingID, bettingActive.VersionID)
	assert.Equal(t, tradingID, tradingActive.VersionID)
}

func TestPruneOldVersionsKeepsActiveRegardlessOfAge(t *testing.T) {
	s := newTestStore(t)

	var ids []int64
	for i := 0; i < 5; i++ {
		id, err := s.InsertModelVersion(ModelVersion{Domain: "betting", Market: "1x2", ModelPath: "v.pkl"})
		require.NoError(t, err)
		ids = append(ids, id)
	}
	require.NoError(t, s.SetActive("betting", "1x2", ids[0])) // oldest, but active

	deleted, err := s.PruneOldVersions("betting", "1x2", 2)
	require.NoError(t, err)
	assert.Equal(t, int64(2), deleted)

	remaining, err := s.GetAllVersions("betting", "1x2")
	require.NoError(t, err)
	assert.Len(t, remaining, 3)

	active, err := s.GetActive("betting", "1x2")
	require.NoError(t, err)
	require.NotNil(t, active)
	assert.Equal(t, ids[0], active.VersionID)
}
