package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/dense-analysis/pricetracker/internal/model"
)

// Memory keeps assets and history in process memory.
//
// Assets are copied on the way in and out so callers never share state with
// the store.
type Memory struct {
	mu      sync.Mutex
	nextID  int64
	assets  []model.Asset
	history map[int64][]model.HistoryEntry
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{nextID: 1, history: map[int64][]model.HistoryEntry{}}
}

func (m *Memory) indexOf(assetID int64) int {
	for i := range m.assets {
		if m.assets[i].ID == assetID {
			return i
		}
	}

	return -1
}

func (m *Memory) LoadAssets(ctx context.Context) ([]AssetSnapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	snapshots := make([]AssetSnapshot, 0, len(m.assets))

	for _, asset := range m.assets {
		copied := asset
		snapshot := AssetSnapshot{Asset: &copied}

		for _, entry := range m.history[asset.ID] {
			if snapshot.LastHistory == nil || entry.Time.After(*snapshot.LastHistory) {
				last := entry.Time.UTC()
				snapshot.LastHistory = &last
			}
		}

		snapshots = append(snapshots, snapshot)
	}

	return snapshots, nil
}

func (m *Memory) CommitPage(ctx context.Context, changes *Changes) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	// Check everything before writing anything, so a bad page changes nothing.
	for _, asset := range changes.NewAssets {
		for _, existing := range m.assets {
			if existing.ExternalID == asset.ExternalID {
				return fmt.Errorf("duplicate external id %q", asset.ExternalID)
			}
		}
	}

	for _, asset := range changes.UpdatedAssets {
		if m.indexOf(asset.ID) < 0 {
			return fmt.Errorf("update of unknown asset %d: %w", asset.ID, ErrAssetNotFound)
		}
	}

	created := make(map[*model.Asset]int64, len(changes.NewAssets))

	for i, asset := range changes.NewAssets {
		created[asset] = m.nextID + int64(i)
	}

	for _, entry := range changes.History {
		if entry.Price.IsNegative() {
			return fmt.Errorf("negative price for %q", entry.Asset.ExternalID)
		}

		if _, ok := created[entry.Asset]; !ok && m.indexOf(entry.Asset.ID) < 0 {
			return fmt.Errorf("history for unknown asset %d: %w", entry.Asset.ID, ErrAssetNotFound)
		}
	}

	for _, asset := range changes.NewAssets {
		asset.ID = created[asset]
		m.assets = append(m.assets, *asset)
	}

	m.nextID += int64(len(created))

	for _, asset := range changes.UpdatedAssets {
		stored := &m.assets[m.indexOf(asset.ID)]
		stored.Name = asset.Name
		stored.Symbol = asset.Symbol
		stored.IconURL = asset.IconURL
	}

	for _, entry := range changes.History {
		m.history[entry.Asset.ID] = append(m.history[entry.Asset.ID], model.HistoryEntry{
			AssetID: entry.Asset.ID,
			Time:    entry.Time.UTC(),
			Price:   entry.Price,
		})
	}

	return nil
}

func (m *Memory) RecentHistory(ctx context.Context, limit int) ([]AssetHistory, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	result := make([]AssetHistory, 0, len(m.assets))

	for _, asset := range m.assets {
		entries := append([]model.HistoryEntry(nil), m.history[asset.ID]...)
		sort.SliceStable(entries, func(i, j int) bool {
			return entries[i].Time.After(entries[j].Time)
		})

		if len(entries) > limit {
			entries = entries[:limit]
		}

		result = append(result, AssetHistory{Asset: asset, Entries: entries})
	}

	return result, nil
}

func (m *Memory) HistorySince(ctx context.Context, assetID int64, since time.Time) ([]model.HistoryEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	var entries []model.HistoryEntry

	for _, entry := range m.history[assetID] {
		if !entry.Time.Before(since) {
			entries = append(entries, entry)
		}
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Time.Before(entries[j].Time)
	})

	return entries, nil
}

// DeleteAsset removes the asset's history and then the asset itself.
func (m *Memory) DeleteAsset(ctx context.Context, assetID int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	index := m.indexOf(assetID)

	if index < 0 {
		return ErrAssetNotFound
	}

	delete(m.history, assetID)
	m.assets = append(m.assets[:index], m.assets[index+1:]...)

	return nil
}

// HistoryCount returns the number of history entries stored for an asset.
func (m *Memory) HistoryCount(assetID int64) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return len(m.history[assetID])
}
