package market

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dense-analysis/pricetracker/internal/config"
	"github.com/dense-analysis/pricetracker/internal/validate"
)

const marketBody = `[
	{"id": "bitcoin", "symbol": "btc", "name": "Bitcoin", "image": "https://img/btc.png",
	 "current_price": 64000.12, "last_updated": "2024-05-01T10:30:00.000Z", "market_cap": 1200000000},
	{"id": "tether", "symbol": "usdt", "name": "Tether", "current_price": null}
]`

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	cfg := config.DefaultFetch()
	cfg.BaseURL = server.URL
	cfg.PerPage = 2
	cfg.Timeout = time.Second

	client, err := NewClient(cfg, WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	require.NoError(t, err)

	return client, server
}

func TestNewClientValidatesOptions(t *testing.T) {
	cfg := config.DefaultFetch()
	cfg.UserAgent = ""

	_, err := NewClient(cfg)

	var configErr *validate.ConfigurationError
	require.True(t, errors.As(err, &configErr))
	assert.Equal(t, "UserAgent", configErr.Option)
}

func TestFetchPageSendsQueryAndUserAgent(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v3/coins/markets", r.URL.Path)
		assert.Equal(t, "usd", r.URL.Query().Get("vs_currency"))
		assert.Equal(t, "2", r.URL.Query().Get("per_page"))
		assert.Equal(t, "3", r.URL.Query().Get("page"))
		assert.Equal(t, "CryptoPriceService/1.1", r.UserAgent())
		_, _ = w.Write([]byte(marketBody))
	})

	records, err := client.FetchPage(context.Background(), 3)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "bitcoin", records[0].ID)
	assert.Equal(t, "64000.12", records[0].CurrentPrice.String())
	assert.Nil(t, records[1].CurrentPrice)
	assert.Nil(t, records[1].LastUpdated)
	assert.Nil(t, records[1].Image)
}

func TestFetchPageTreatsErrorStatusAsNoData(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	})

	records, err := client.FetchPage(context.Background(), 1)
	require.NoError(t, err)
	assert.Nil(t, records)
}

func TestFetchPageTreatsMalformedBodyAsNoData(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status": {"error_code": 429}}`))
	})

	records, err := client.FetchPage(context.Background(), 1)
	require.NoError(t, err)
	assert.Nil(t, records)
}

func TestFetchPageTreatsTransportErrorAsNoData(t *testing.T) {
	client, server := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {})
	server.Close()

	records, err := client.FetchPage(context.Background(), 1)
	require.NoError(t, err)
	assert.Nil(t, records)
}

func TestFetchPageTreatsTimeoutAsNoData(t *testing.T) {
	release := make(chan struct{})
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	})
	defer close(release)
	client.httpClient.Timeout = 50 * time.Millisecond

	records, err := client.FetchPage(context.Background(), 1)
	require.NoError(t, err)
	assert.Nil(t, records)
}

func TestFetchPagePropagatesCancellation(t *testing.T) {
	started := make(chan struct{})
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		close(started)
		<-r.Context().Done()
	})

	ctx, cancel := context.WithCancel(context.Background())

	go func() {
		<-started
		cancel()
	}()

	records, err := client.FetchPage(ctx, 1)
	assert.Nil(t, records)
	require.ErrorIs(t, err, context.Canceled)
}
