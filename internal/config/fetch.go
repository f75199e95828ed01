package config

import "time"

// Fetch holds the options for reading market data from the price API.
type Fetch struct {
	BaseURL    string
	MarketPath string
	VsCurrency string
	PerPage    int
	MaxPage    int
	UserAgent  string
	Timeout    time.Duration
}

// DefaultFetch returns the options used when nothing is configured.
func DefaultFetch() Fetch {
	return Fetch{
		BaseURL:    "https://api.coingecko.com",
		MarketPath: "/api/v3/coins/markets",
		VsCurrency: "usd",
		PerPage:    250,
		MaxPage:    1,
		UserAgent:  "CryptoPriceService/1.1",
		Timeout:    30 * time.Second,
	}
}
