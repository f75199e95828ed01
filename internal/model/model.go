package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Asset represents a tracked crypto asset in the database
type Asset struct {
	ID         int64
	ExternalID string
	Name       string
	Symbol     string
	Currency   string
	IconURL    string
}

// HistoryEntry is one timestamped price observation for an Asset.
//
// Entries are append-only and are only removed when their Asset is deleted.
type HistoryEntry struct {
	AssetID int64
	Time    time.Time
	Price   decimal.Decimal
}
