package store

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dense-analysis/pricetracker/internal/model"
)

var baseTime = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func commitAsset(t *testing.T, s *Memory, externalID string, prices ...int64) *model.Asset {
	t.Helper()
	asset := &model.Asset{ExternalID: externalID, Name: externalID, Symbol: externalID}
	changes := NewChanges()
	changes.AddAsset(asset)

	for i, price := range prices {
		changes.AppendHistory(asset, baseTime.Add(time.Duration(i)*time.Hour), decimal.NewFromInt(price))
	}

	require.NoError(t, s.CommitPage(context.Background(), changes))

	return asset
}

func TestMemoryCommitAssignsIDs(t *testing.T) {
	s := NewMemory()
	first := commitAsset(t, s, "bitcoin", 100)
	second := commitAsset(t, s, "ethereum")

	assert.Equal(t, int64(1), first.ID)
	assert.Equal(t, int64(2), second.ID)

	snapshots, err := s.LoadAssets(context.Background())
	require.NoError(t, err)
	require.Len(t, snapshots, 2)
	require.NotNil(t, snapshots[0].LastHistory)
	assert.Equal(t, baseTime, *snapshots[0].LastHistory)
	assert.Nil(t, snapshots[1].LastHistory)
}

func TestMemoryCommitIsAllOrNothing(t *testing.T) {
	s := NewMemory()
	commitAsset(t, s, "bitcoin")

	changes := NewChanges()
	changes.AddAsset(&model.Asset{ExternalID: "ethereum"})
	changes.AddAsset(&model.Asset{ExternalID: "bitcoin"})

	require.Error(t, s.CommitPage(context.Background(), changes))

	snapshots, err := s.LoadAssets(context.Background())
	require.NoError(t, err)
	assert.Len(t, snapshots, 1)
}

func TestMemoryUpdatesAreNotSharedBeforeCommit(t *testing.T) {
	s := NewMemory()
	asset := commitAsset(t, s, "bitcoin")
	asset.Name = "Changed"

	history, err := s.RecentHistory(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, "bitcoin", history[0].Asset.Name)

	changes := NewChanges()
	changes.TouchAsset(asset)
	require.NoError(t, s.CommitPage(context.Background(), changes))

	history, err = s.RecentHistory(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, "Changed", history[0].Asset.Name)
}

func TestMemoryRecentHistoryIsNewestFirst(t *testing.T) {
	s := NewMemory()
	commitAsset(t, s, "bitcoin", 1, 2, 3)
	commitAsset(t, s, "ethereum")

	history, err := s.RecentHistory(context.Background(), 2)
	require.NoError(t, err)
	require.Len(t, history, 2)
	require.Len(t, history[0].Entries, 2)
	assert.Equal(t, "3", history[0].Entries[0].Price.String())
	assert.Equal(t, "2", history[0].Entries[1].Price.String())
	assert.Empty(t, history[1].Entries)
}

func TestMemoryHistorySince(t *testing.T) {
	s := NewMemory()
	asset := commitAsset(t, s, "bitcoin", 1, 2, 3)

	entries, err := s.HistorySince(context.Background(), asset.ID, baseTime.Add(time.Hour))
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "2", entries[0].Price.String())
	assert.Equal(t, "3", entries[1].Price.String())
}

func TestMemoryDeleteAssetCascadesToHistory(t *testing.T) {
	s := NewMemory()
	asset := commitAsset(t, s, "bitcoin", 1, 2)
	other := commitAsset(t, s, "ethereum", 5)

	require.NoError(t, s.DeleteAsset(context.Background(), asset.ID))
	assert.Zero(t, s.HistoryCount(asset.ID))
	assert.Equal(t, 1, s.HistoryCount(other.ID))
	assert.ErrorIs(t, s.DeleteAsset(context.Background(), asset.ID), ErrAssetNotFound)

	snapshots, err := s.LoadAssets(context.Background())
	require.NoError(t, err)
	require.Len(t, snapshots, 1)
	assert.Equal(t, "ethereum", snapshots[0].Asset.ExternalID)
}

func TestChangesWriteEachAssetOnce(t *testing.T) {
	changes := NewChanges()
	created := &model.Asset{ExternalID: "new"}
	existing := &model.Asset{ID: 4, ExternalID: "old"}

	assert.True(t, changes.Empty())
	changes.AddAsset(created)
	changes.TouchAsset(created)
	changes.TouchAsset(existing)
	changes.TouchAsset(existing)

	assert.Len(t, changes.NewAssets, 1)
	assert.Len(t, changes.UpdatedAssets, 1)
	assert.False(t, changes.Empty())
}
