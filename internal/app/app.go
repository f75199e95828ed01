// Package app connects the configured stores and services for the binaries.
package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/dense-analysis/pricetracker/internal/cache"
	"github.com/dense-analysis/pricetracker/internal/config"
	"github.com/dense-analysis/pricetracker/internal/database"
	"github.com/dense-analysis/pricetracker/internal/ingest"
	"github.com/dense-analysis/pricetracker/internal/market"
	"github.com/dense-analysis/pricetracker/internal/mirror"
	"github.com/dense-analysis/pricetracker/internal/store"
	"github.com/dense-analysis/pricetracker/internal/view"
)

// ParseLevel reads a LOG_LEVEL value. Unknown values mean info.
func ParseLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// NewLogger creates a text logger writing at the given level.
func NewLogger(writer io.Writer, level string) *slog.Logger {
	return slog.New(slog.NewTextHandler(writer, &slog.HandlerOptions{Level: ParseLevel(level)}))
}

// Runtime holds the services built from a Config.
type Runtime struct {
	Store  store.Store
	Job    *ingest.Job
	Views  *view.Service
	Cache  *cache.Cache
	logger *slog.Logger
	close  []func()
}

// Open builds every service from the configuration.
//
// A ClickHouse mirror that cannot be reached is logged and left out.
func Open(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Runtime, error) {
	runtime := &Runtime{logger: logger}

	switch cfg.StoreDriver {
	case "memory":
		runtime.Store = store.NewMemory()
	default:
		conn, err := database.Connect(ctx, cfg.Database)

		if err != nil {
			return nil, fmt.Errorf("connecting to postgres: %w", err)
		}

		runtime.close = append(runtime.close, conn.Close)
		runtime.Store = store.NewPostgres(conn)
	}

	client, err := market.NewClient(cfg.Fetch, market.WithLogger(logger))

	if err != nil {
		runtime.Close()

		return nil, err
	}

	jobOptions := []ingest.Option{ingest.WithLogger(logger)}

	if cfg.IngestExclusive {
		jobOptions = append(jobOptions, ingest.Exclusive())
	}

	if cfg.ClickHouse.Enabled() {
		sink, err := mirror.Connect(ctx, cfg.ClickHouse)

		if err != nil {
			logger.Warn("clickhouse mirror disabled", "host", cfg.ClickHouse.Host, "error", err)
		} else {
			runtime.close = append(runtime.close, func() { _ = sink.Close() })
			jobOptions = append(jobOptions, ingest.WithMirror(sink))
		}
	}

	runtime.Job, err = ingest.NewJob(client, runtime.Store, cfg.Fetch, jobOptions...)

	if err != nil {
		runtime.Close()

		return nil, err
	}

	runtime.Cache = cache.New(0)
	runtime.Views = view.NewService(
		runtime.Store,
		cfg.Fetch.VsCurrency,
		view.WithCache(runtime.Cache, cfg.PricesCacheTTL),
		view.WithLogger(logger),
	)

	return runtime, nil
}

// Close releases connections in reverse order of opening.
func (runtime *Runtime) Close() {
	for i := len(runtime.close) - 1; i >= 0; i-- {
		runtime.close[i]()
	}

	runtime.close = nil
}
