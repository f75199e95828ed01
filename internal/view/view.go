// Package view derives the latest price and chart views from stored history.
package view

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/dense-analysis/pricetracker/internal/cache"
	"github.com/dense-analysis/pricetracker/internal/model"
	"github.com/dense-analysis/pricetracker/internal/store"
	"github.com/dense-analysis/pricetracker/internal/validate"
)

func init() {
	// Percentages and chart prices are read as JSON numbers.
	decimal.MarshalJSONWithoutQuotes = true
}

// ChartWindow is how far back the charts reach.
const ChartWindow = 30 * 24 * time.Hour

// priceDigits is the most fractional digits shown for a price.
const priceDigits = 16

// AssetPriceView is the newest price of an asset with its trend.
type AssetPriceView struct {
	Name         string     `json:"name"`
	Symbol       string     `json:"symbol"`
	CurrentPrice string     `json:"currentPrice"`
	Currency     string     `json:"currency"`
	IconURL      string     `json:"iconUrl"`
	LastUpdated  time.Time  `json:"lastUpdated"`
	Trend        *TrendView `json:"trend"`
}

// PricePoint is the average price of an asset on one UTC date.
type PricePoint struct {
	Date  time.Time       `json:"date"`
	Price decimal.Decimal `json:"price"`
}

// ChartView is the daily price history of an asset.
type ChartView struct {
	CoinName     string       `json:"coinName"`
	CoinSymbol   string       `json:"coinSymbol"`
	PriceHistory []PricePoint `json:"priceHistory"`
}

// Service builds views over a store.
type Service struct {
	store    store.Store
	cache    *cache.Cache
	cacheTTL time.Duration
	currency string
	logger   *slog.Logger
	now      func() time.Time
}

// Option configures a new Service.
type Option func(*Service)

// WithCache serves the latest prices from c for ttl.
func WithCache(c *cache.Cache, ttl time.Duration) Option {
	return func(s *Service) {
		s.cache = c
		s.cacheTTL = ttl
	}
}

// WithLogger injects a logger, slog.Default() is used otherwise.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithClock replaces time.Now for the chart window.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// NewService creates a Service. Prices are labelled with the quote currency.
func NewService(s store.Store, currency string, opts ...Option) *Service {
	service := &Service{
		store:    s,
		currency: strings.ToUpper(currency),
		logger:   slog.Default(),
		now:      time.Now,
	}

	for _, opt := range opts {
		opt(service)
	}

	return service
}

// FormatPrice formats a price with up to 16 fractional digits and no trailing zeros.
func FormatPrice(price decimal.Decimal) string {
	return price.Round(priceDigits).String()
}

func (s *Service) recentHistory(ctx context.Context) ([]store.AssetHistory, error) {
	if s.cache == nil {
		return s.store.RecentHistory(ctx, 2)
	}

	return cache.GetOrPopulate(ctx, s.cache, cache.PricesKey, s.cacheTTL, func(ctx context.Context) ([]store.AssetHistory, error) {
		return s.store.RecentHistory(ctx, 2)
	})
}

// LatestPrices returns the newest price and trend of every asset with history.
//
// Assets are listed in the order they were created.
func (s *Service) LatestPrices(ctx context.Context) ([]AssetPriceView, error) {
	history, err := s.recentHistory(ctx)

	if err != nil {
		return nil, err
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	views := make([]AssetPriceView, 0, len(history))

	for _, item := range history {
		if !validate.HasSufficientHistoryForTrend(item.Entries) {
			s.logger.Debug("asset has no price history", "asset", item.Asset.ExternalID)

			continue
		}

		latest := item.Entries[0]
		var previous *decimal.Decimal

		if len(item.Entries) > 1 {
			previous = &item.Entries[1].Price
		}

		trend := ComputeTrend(latest.Price, previous)

		views = append(views, AssetPriceView{
			Name:         item.Asset.Name,
			Symbol:       item.Asset.Symbol,
			CurrentPrice: FormatPrice(latest.Price),
			Currency:     s.currency,
			IconURL:      item.Asset.IconURL,
			LastUpdated:  latest.Time.UTC(),
			Trend:        &trend,
		})
	}

	s.logger.Info("built latest prices", "count", len(views))

	return views, nil
}

// DailyAverages averages entries per UTC date, oldest date first.
func DailyAverages(entries []model.HistoryEntry) []PricePoint {
	type bucket struct {
		sum   decimal.Decimal
		count int64
	}

	buckets := map[time.Time]*bucket{}

	for _, entry := range entries {
		t := entry.Time.UTC()
		date := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
		current, ok := buckets[date]

		if !ok {
			current = &bucket{}
			buckets[date] = current
		}

		current.sum = current.sum.Add(entry.Price)
		current.count++
	}

	points := make([]PricePoint, 0, len(buckets))

	for date, current := range buckets {
		points = append(points, PricePoint{
			Date:  date,
			Price: current.sum.Div(decimal.NewFromInt(current.count)),
		})
	}

	sort.Slice(points, func(i, j int) bool {
		return points[i].Date.Before(points[j].Date)
	})

	return points
}

// TopCharts returns daily charts for the count assets with the highest latest price.
//
// Ranking uses each asset's newest price of all time. The chart itself only
// covers the last 30 days, so a ranked asset can have an empty chart.
func (s *Service) TopCharts(ctx context.Context, count int) ([]ChartView, error) {
	if count <= 0 {
		s.logger.Warn("requested a non-positive number of top assets", "count", count)

		return []ChartView{}, nil
	}

	history, err := s.store.RecentHistory(ctx, 1)

	if err != nil {
		return nil, err
	}

	ranked := make([]store.AssetHistory, 0, len(history))

	for _, item := range history {
		if len(item.Entries) > 0 {
			ranked = append(ranked, item)
		}
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Entries[0].Price.GreaterThan(ranked[j].Entries[0].Price)
	})

	if len(ranked) > count {
		ranked = ranked[:count]
	}

	since := s.now().UTC().Add(-ChartWindow)
	charts := make([]ChartView, 0, len(ranked))

	for _, item := range ranked {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		entries, err := s.store.HistorySince(ctx, item.Asset.ID, since)

		if err != nil {
			return nil, err
		}

		points := DailyAverages(entries)

		if len(points) == 0 {
			s.logger.Debug("asset has no price history in the chart window", "asset", item.Asset.ExternalID)
		}

		charts = append(charts, ChartView{
			CoinName:     item.Asset.Name,
			CoinSymbol:   item.Asset.Symbol,
			PriceHistory: points,
		})
	}

	s.logger.Info("built top asset charts", "count", len(charts))

	return charts, nil
}
