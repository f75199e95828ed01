package market

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/dnaeon/go-vcr/recorder"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dense-analysis/pricetracker/internal/config"
)

// Records a page from a fake upstream, then replays it with the upstream gone.
func TestFetchPageRecordAndReplay(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(marketBody))
	}))

	cfg := config.DefaultFetch()
	cfg.BaseURL = server.URL
	cfg.PerPage = 2
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	cassette := filepath.Join(t.TempDir(), "coins_markets")

	recording, err := recorder.NewAsMode(cassette, recorder.ModeRecording, http.DefaultTransport)
	require.NoError(t, err)

	client, err := NewClient(cfg, WithHTTPClient(&http.Client{Transport: recording}), WithLogger(logger))
	require.NoError(t, err)

	recorded, err := client.FetchPage(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, recorded, 2)
	require.NoError(t, recording.Stop())
	server.Close()

	_, err = os.Stat(cassette + ".yaml")
	require.NoError(t, err, "cassette should be written on stop")

	replaying, err := recorder.NewAsMode(cassette, recorder.ModeReplaying, nil)
	require.NoError(t, err)
	defer func() { _ = replaying.Stop() }()

	client, err = NewClient(cfg, WithHTTPClient(&http.Client{Transport: replaying}), WithLogger(logger))
	require.NoError(t, err)

	replayed, err := client.FetchPage(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, replayed, 2)
	assert.Equal(t, recorded[0].ID, replayed[0].ID)
	assert.True(t, recorded[0].CurrentPrice.Equal(*replayed[0].CurrentPrice))
}
