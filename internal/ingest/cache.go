package ingest

import (
	"context"
	"time"

	"github.com/dense-analysis/pricetracker/internal/model"
	"github.com/dense-analysis/pricetracker/internal/store"
)

// CacheEntry is an asset known to the current run with its newest history time.
type CacheEntry struct {
	Asset       *model.Asset
	LastHistory *time.Time
}

// AssetCache indexes the assets of one run by external identifier.
//
// It is a snapshot taken when the run starts and is not shared between runs.
type AssetCache map[string]*CacheEntry

// BuildCache loads every persisted asset into a new AssetCache.
func BuildCache(ctx context.Context, s store.Store) (AssetCache, error) {
	snapshots, err := s.LoadAssets(ctx)

	if err != nil {
		return nil, err
	}

	cache := make(AssetCache, len(snapshots))

	for _, snapshot := range snapshots {
		var lastHistory *time.Time

		if snapshot.LastHistory != nil {
			utc := snapshot.LastHistory.UTC()
			lastHistory = &utc
		}

		cache[snapshot.Asset.ExternalID] = &CacheEntry{
			Asset:       snapshot.Asset,
			LastHistory: lastHistory,
		}
	}

	return cache, nil
}
