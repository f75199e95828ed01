package model

import "github.com/shopspring/decimal"

// MarketRecord is one entry of the market data returned by the price API.
//
// Field names are matched case-insensitively and unknown fields are ignored.
type MarketRecord struct {
	ID           string           `json:"id"`
	Symbol       *string          `json:"symbol"`
	Name         *string          `json:"name"`
	Image        *string          `json:"image"`
	CurrentPrice *decimal.Decimal `json:"current_price"`
	LastUpdated  *Timestamp       `json:"last_updated"`
}
