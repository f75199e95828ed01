package view

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dense-analysis/pricetracker/internal/cache"
	"github.com/dense-analysis/pricetracker/internal/model"
	"github.com/dense-analysis/pricetracker/internal/store"
)

var now = time.Date(2024, 6, 15, 18, 0, 0, 0, time.UTC)

type point struct {
	at    time.Time
	price string
}

type countingStore struct {
	*store.Memory
	recent int
	since  int
}

func (s *countingStore) RecentHistory(ctx context.Context, limit int) ([]store.AssetHistory, error) {
	s.recent++

	return s.Memory.RecentHistory(ctx, limit)
}

func (s *countingStore) HistorySince(ctx context.Context, assetID int64, since time.Time) ([]model.HistoryEntry, error) {
	s.since++

	return s.Memory.HistorySince(ctx, assetID, since)
}

func addAsset(t *testing.T, s *store.Memory, name string, points ...point) {
	t.Helper()
	asset := &model.Asset{ExternalID: name, Name: name, Symbol: "SYM-" + name, IconURL: name + ".png", Currency: "usd"}
	changes := store.NewChanges()
	changes.AddAsset(asset)

	for _, p := range points {
		changes.AppendHistory(asset, p.at, dec(p.price))
	}

	require.NoError(t, s.CommitPage(context.Background(), changes))
}

func newTestService(s store.Store, opts ...Option) *Service {
	opts = append([]Option{
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithClock(func() time.Time { return now }),
	}, opts...)

	return NewService(s, "usd", opts...)
}

func TestLatestPrices(t *testing.T) {
	memory := store.NewMemory()
	addAsset(t, memory, "bitcoin",
		point{now.Add(-2 * time.Hour), "100"},
		point{now.Add(-time.Hour), "150.50"},
		point{now.Add(-3 * time.Hour), "1"},
	)
	addAsset(t, memory, "empty")
	addAsset(t, memory, "single", point{now, "7"})

	views, err := newTestService(memory).LatestPrices(context.Background())
	require.NoError(t, err)
	require.Len(t, views, 2, "assets without history are left out")

	assert.Equal(t, "bitcoin", views[0].Name)
	assert.Equal(t, "150.5", views[0].CurrentPrice)
	assert.Equal(t, "USD", views[0].Currency)
	assert.Equal(t, "bitcoin.png", views[0].IconURL)
	assert.Equal(t, now.Add(-time.Hour), views[0].LastUpdated)
	require.NotNil(t, views[0].Trend)
	assert.Equal(t, DirectionUp, views[0].Trend.Direction)
	assert.True(t, dec("50.5").Equal(*views[0].Trend.PercentageChange))

	assert.Equal(t, "single", views[1].Name)
	assert.Equal(t, DirectionNeutral, views[1].Trend.Direction)
	assert.Nil(t, views[1].Trend.PercentageChange)
}

func TestLatestPricesUsesTheCache(t *testing.T) {
	counting := &countingStore{Memory: store.NewMemory()}
	addAsset(t, counting.Memory, "bitcoin", point{now, "1"})
	service := newTestService(counting, WithCache(cache.New(4), time.Minute))

	for i := 0; i < 3; i++ {
		views, err := service.LatestPrices(context.Background())
		require.NoError(t, err)
		require.Len(t, views, 1)
	}

	assert.Equal(t, 1, counting.recent)
}

func TestLatestPricesJSON(t *testing.T) {
	memory := store.NewMemory()
	addAsset(t, memory, "bitcoin", point{now.Add(-time.Hour), "100"}, point{now, "150"})

	views, err := newTestService(memory).LatestPrices(context.Background())
	require.NoError(t, err)

	encoded, err := json.Marshal(views)
	require.NoError(t, err)
	assert.JSONEq(t, `[{
		"name": "bitcoin",
		"symbol": "SYM-bitcoin",
		"currentPrice": "150",
		"currency": "USD",
		"iconUrl": "bitcoin.png",
		"lastUpdated": "2024-06-15T18:00:00Z",
		"trend": {"direction": "up", "percentageChange": 50}
	}]`, string(encoded))
}

func TestTopChartsOrdersByLatestPrice(t *testing.T) {
	memory := store.NewMemory()
	addAsset(t, memory, "a", point{now, "100"})
	addAsset(t, memory, "b", point{now, "300"})
	addAsset(t, memory, "c", point{now, "200"})
	addAsset(t, memory, "d", point{now, "50"})
	addAsset(t, memory, "none")

	charts, err := newTestService(memory).TopCharts(context.Background(), 3)
	require.NoError(t, err)

	names := make([]string, 0, len(charts))

	for _, chart := range charts {
		names = append(names, chart.CoinName)
	}

	assert.Equal(t, []string{"b", "c", "a"}, names)
}

func TestTopChartsWithMoreThanAvailable(t *testing.T) {
	memory := store.NewMemory()
	addAsset(t, memory, "a", point{now, "100"})
	addAsset(t, memory, "b", point{now, "300"})

	charts, err := newTestService(memory).TopCharts(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, charts, 2)
	assert.Equal(t, "b", charts[0].CoinName)
	assert.Equal(t, "a", charts[1].CoinName)
}

func TestTopChartsWithNonPositiveCount(t *testing.T) {
	counting := &countingStore{Memory: store.NewMemory()}
	addAsset(t, counting.Memory, "a", point{now, "100"})
	service := newTestService(counting)

	for _, count := range []int{0, -1} {
		charts, err := service.TopCharts(context.Background(), count)
		require.NoError(t, err)
		assert.NotNil(t, charts)
		assert.Empty(t, charts)
	}

	assert.Zero(t, counting.recent)
	assert.Zero(t, counting.since)
}

func TestTopChartsDailyAveragesInWindow(t *testing.T) {
	memory := store.NewMemory()
	day := time.Date(2024, 6, 10, 0, 0, 0, 0, time.UTC)
	addAsset(t, memory, "bitcoin",
		point{now.Add(-31 * 24 * time.Hour), "999"},
		point{day.Add(20 * time.Hour), "110"},
		point{day.Add(2 * time.Hour), "100"},
		point{day.Add(-24 * time.Hour), "90"},
		point{now, "120"},
	)

	charts, err := newTestService(memory).TopCharts(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, charts, 1)

	history := charts[0].PriceHistory
	require.Len(t, history, 3)

	assert.Equal(t, day.Add(-24*time.Hour), history[0].Date)
	assert.True(t, dec("90").Equal(history[0].Price))
	assert.Equal(t, day, history[1].Date)
	assert.True(t, dec("105").Equal(history[1].Price))
	assert.Equal(t, time.Date(2024, 6, 15, 0, 0, 0, 0, time.UTC), history[2].Date)

	windowStart := now.Add(-ChartWindow)

	for _, p := range history {
		assert.False(t, p.Date.Add(24*time.Hour).Before(windowStart))
	}
}

func TestTopChartsKeepsRankedAssetsWithOldHistory(t *testing.T) {
	memory := store.NewMemory()
	addAsset(t, memory, "old", point{now.Add(-40 * 24 * time.Hour), "1000"})
	addAsset(t, memory, "fresh", point{now, "1"})

	charts, err := newTestService(memory).TopCharts(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, charts, 1)
	assert.Equal(t, "old", charts[0].CoinName)
	assert.NotNil(t, charts[0].PriceHistory)
	assert.Empty(t, charts[0].PriceHistory)

	encoded, err := json.Marshal(charts[0])
	require.NoError(t, err)
	assert.JSONEq(t, `{"coinName": "old", "coinSymbol": "SYM-old", "priceHistory": []}`, string(encoded))
}
