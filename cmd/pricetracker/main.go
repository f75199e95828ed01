// Serve the cryptocurrency price API
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"golang.org/x/sync/errgroup"

	"github.com/dense-analysis/pricetracker/internal/app"
	"github.com/dense-analysis/pricetracker/internal/config"
	"github.com/dense-analysis/pricetracker/internal/env"
	"github.com/dense-analysis/pricetracker/internal/ingest"
	"github.com/dense-analysis/pricetracker/internal/route/crypto"
	"github.com/dense-analysis/pricetracker/internal/route/util"
	"github.com/dense-analysis/pricetracker/pkg/lax"
)

func readCliOptions() {
	debugPtr := flag.Bool("debug", false, "Run the server in debug mode")
	flag.Parse()

	if *debugPtr {
		lax.EnableDebugMode()
	}
}

func recoverPanics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		defer func() {
			if value := recover(); value != nil {
				util.RespondInternalServerError(writer, fmt.Errorf("panic: %v", value))
			}
		}()

		next.ServeHTTP(writer, request)
	})
}

// runScheduler starts an ingestion run at every tick until ctx ends.
func runScheduler(ctx context.Context, job *ingest.Job, interval time.Duration, logger *slog.Logger) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			summary := job.Run(ctx)

			if summary.Outcome == ingest.OutcomeFailed {
				logger.Error("scheduled ingestion failed", "error", summary.Err)
			}
		}
	}
}

func main() {
	readCliOptions()
	env.LoadEnvironmentVariables()

	cfg, err := config.Load()

	if err != nil {
		fmt.Fprintf(os.Stderr, "Configuration error: %s\n", err)
		os.Exit(1)
	}

	logger := app.NewLogger(os.Stderr, cfg.LogLevel)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	runtime, err := app.Open(ctx, cfg, logger)

	if err != nil {
		fmt.Fprintf(os.Stderr, "Startup error: %s\n", err)
		os.Exit(1)
	}

	defer runtime.Close()

	router := mux.NewRouter().StrictSlash(true)
	crypto.New(runtime.Job, runtime.Views, runtime.Store, logger).Register(router)

	server := http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           recoverPanics(router),
		ReadHeaderTimeout: 10 * time.Second,
	}

	group, groupCtx := errgroup.WithContext(ctx)

	group.Go(func() error {
		logger.Info("server started", "addr", cfg.HTTPAddr)

		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}

		return nil
	})

	group.Go(func() error {
		<-groupCtx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		return server.Shutdown(shutdownCtx)
	})

	if cfg.IngestInterval > 0 {
		group.Go(func() error {
			logger.Info("ingestion scheduler started", "interval", cfg.IngestInterval)

			return runScheduler(groupCtx, runtime.Job, cfg.IngestInterval, logger)
		})
	}

	if err := group.Wait(); err != nil {
		logger.Error("server stopped", "error", err)
		os.Exit(1)
	}

	logger.Info("server shut down successfully")
}
