// Package store persists assets and their price history.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/dense-analysis/pricetracker/internal/model"
)

// ErrAssetNotFound is returned when deleting an asset which does not exist.
var ErrAssetNotFound = errors.New("asset not found")

// AssetSnapshot is a persisted asset with the time of its newest history entry.
type AssetSnapshot struct {
	Asset       *model.Asset
	LastHistory *time.Time
}

// AssetHistory is an asset with some of its newest history entries, newest first.
type AssetHistory struct {
	Asset   model.Asset
	Entries []model.HistoryEntry
}

// PendingEntry is a history entry waiting to be committed.
//
// The entry points at its asset, so assets created on the same page receive
// their ID before the entry is written.
type PendingEntry struct {
	Asset *model.Asset
	Time  time.Time
	Price decimal.Decimal
}

// Store is the storage used by ingestion and the price views.
type Store interface {
	// LoadAssets loads every asset with the time of its newest history entry.
	LoadAssets(ctx context.Context) ([]AssetSnapshot, error)
	// CommitPage writes the changes for one page in a single transaction.
	CommitPage(ctx context.Context, changes *Changes) error
	// RecentHistory loads every asset in ID order with up to `limit` entries.
	RecentHistory(ctx context.Context, limit int) ([]AssetHistory, error)
	// HistorySince loads the entries for an asset at or after `since`, oldest first.
	HistorySince(ctx context.Context, assetID int64, since time.Time) ([]model.HistoryEntry, error)
	// DeleteAsset deletes an asset and all of its history.
	DeleteAsset(ctx context.Context, assetID int64) error
}

// Changes collects the writes produced while merging one page.
type Changes struct {
	NewAssets     []*model.Asset
	UpdatedAssets []*model.Asset
	History       []PendingEntry

	seen map[*model.Asset]bool
}

// NewChanges returns an empty set of changes.
func NewChanges() *Changes {
	return &Changes{seen: map[*model.Asset]bool{}}
}

// AddAsset records an asset to create.
func (changes *Changes) AddAsset(asset *model.Asset) {
	if !changes.seen[asset] {
		changes.seen[asset] = true
		changes.NewAssets = append(changes.NewAssets, asset)
	}
}

// TouchAsset records an existing asset to update.
//
// Assets already recorded on this page are written once.
func (changes *Changes) TouchAsset(asset *model.Asset) {
	if !changes.seen[asset] {
		changes.seen[asset] = true
		changes.UpdatedAssets = append(changes.UpdatedAssets, asset)
	}
}

// AppendHistory records a new history entry for an asset.
func (changes *Changes) AppendHistory(asset *model.Asset, timestamp time.Time, price decimal.Decimal) {
	changes.History = append(changes.History, PendingEntry{asset, timestamp, price})
}

// Empty returns true if there is nothing to write.
func (changes *Changes) Empty() bool {
	return len(changes.NewAssets) == 0 &&
		len(changes.UpdatedAssets) == 0 &&
		len(changes.History) == 0
}
