package ingest

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/dense-analysis/pricetracker/internal/model"
	"github.com/dense-analysis/pricetracker/internal/store"
	"github.com/dense-analysis/pricetracker/internal/validate"
)

// PageCounts are the totals for one merged page.
type PageCounts struct {
	NewAssets    int
	PriceUpdates int
}

// Merger reconciles fetched records with an AssetCache.
type Merger struct {
	// Currency is the quote currency stored on new assets.
	Currency string
	Logger   *slog.Logger
}

func newAsset(record *model.MarketRecord, currency string) *model.Asset {
	asset := &model.Asset{ExternalID: record.ID, Currency: currency}

	if record.Name != nil {
		asset.Name = *record.Name
	}

	if record.Symbol != nil {
		asset.Symbol = *record.Symbol
	}

	if record.Image != nil {
		asset.IconURL = *record.Image
	}

	return asset
}

func refreshAsset(asset *model.Asset, record *model.MarketRecord) {
	if record.Name != nil {
		asset.Name = *record.Name
	}

	if record.Symbol != nil {
		asset.Symbol = strings.ToUpper(*record.Symbol)
	}

	if record.Image != nil {
		asset.IconURL = *record.Image
	}
}

// Merge applies one page of records to the cache and records the writes in changes.
//
// Records without an identifier are skipped. A history entry is appended
// only when the record's timestamp is newer than the newest one known for the
// asset. Records without a timestamp use runStart, records without a price
// store 0 and negative prices are not recorded. Nothing is persisted here.
func (m *Merger) Merge(
	ctx context.Context,
	records []*model.MarketRecord,
	cache AssetCache,
	runStart time.Time,
	changes *store.Changes,
) (PageCounts, error) {
	var counts PageCounts

	for _, record := range records {
		if err := ctx.Err(); err != nil {
			return counts, err
		}

		if !validate.IsValidRecord(record) {
			m.Logger.Warn("skipping market record without an id", "record", record)

			continue
		}

		entry, found := cache[record.ID]

		if !found {
			entry = &CacheEntry{Asset: newAsset(record, m.Currency)}
			cache[record.ID] = entry
			changes.AddAsset(entry.Asset)
			counts.NewAssets++
			m.Logger.Debug("new asset", "asset", record.ID, "symbol", entry.Asset.Symbol)
		} else {
			refreshAsset(entry.Asset, record)
			changes.TouchAsset(entry.Asset)
		}

		effective := validate.NormalizeToUTC(record.LastUpdated, runStart)

		if !validate.IsUpdateNeeded(entry.LastHistory, effective) {
			m.Logger.Debug("price already recorded", "asset", record.ID, "time", effective)

			continue
		}

		price := decimal.Zero

		if record.CurrentPrice != nil && record.CurrentPrice.IsNegative() {
			m.Logger.Warn("skipping negative price", "asset", record.ID, "price", record.CurrentPrice.String())

			continue
		} else if record.CurrentPrice != nil {
			price = *record.CurrentPrice
		} else {
			m.Logger.Warn("market record has no current price, storing 0", "asset", record.ID, "time", effective)
		}

		changes.AppendHistory(entry.Asset, effective, price)
		entry.LastHistory = &effective
		counts.PriceUpdates++
	}

	return counts, nil
}
