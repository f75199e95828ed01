// Read cryptocurrency market data into the database
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/dense-analysis/pricetracker/internal/app"
	"github.com/dense-analysis/pricetracker/internal/config"
	"github.com/dense-analysis/pricetracker/internal/env"
	"github.com/dense-analysis/pricetracker/internal/ingest"
)

func main() {
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

	summary := runtime.Job.Run(ctx)
	runtime.Close()

	if summary.Outcome != ingest.OutcomeCompleted {
		fmt.Fprintf(os.Stderr, "Ingestion %s: %v\n", summary.Outcome, summary.Err)
		os.Exit(1)
	}
}
