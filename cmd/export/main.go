// Export price tracker tables into CSV files for ClickHouse imports.
package main

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/dense-analysis/pricetracker/internal/config"
	"github.com/dense-analysis/pricetracker/internal/database"
	"github.com/dense-analysis/pricetracker/internal/env"
)

var assetHeader = []string{"id", "external_id", "name", "symbol", "currency", "icon_url"}

var historyHeader = []string{"time", "asset_id", "external_id", "symbol", "currency", "value"}

func main() {
	env.LoadEnvironmentVariables()

	cfg, err := config.Load()

	if err != nil {
		exitWithError("Configuration", err)
	}

	ctx := context.Background()
	conn, err := database.Connect(ctx, cfg.Database)

	if err != nil {
		exitWithError("Connection", err)
	}

	defer conn.Close()

	outputDir := argOrDefault(1, "export")

	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		exitWithError("Creating output directory", err)
	}

	if err := exportTable(ctx, conn, filepath.Join(outputDir, "crypto_asset.csv"), exportAssets); err != nil {
		exitWithError("Export assets", err)
	}

	if err := exportTable(ctx, conn, filepath.Join(outputDir, "crypto_asset_prices.csv"), exportHistory); err != nil {
		exitWithError("Export prices", err)
	}
}

type exporter func(ctx context.Context, conn database.Queryable, writer *csv.Writer) error

func exportTable(ctx context.Context, conn database.Queryable, path string, export exporter) error {
	file, err := os.Create(path)

	if err != nil {
		return err
	}

	defer file.Close()

	return writeCSV(ctx, conn, file, export)
}

func writeCSV(ctx context.Context, conn database.Queryable, output io.Writer, export exporter) error {
	writer := csv.NewWriter(output)

	if err := export(ctx, conn, writer); err != nil {
		return err
	}

	writer.Flush()

	return writer.Error()
}

func exportAssets(ctx context.Context, conn database.Queryable, writer *csv.Writer) error {
	rows, err := conn.Query(
		ctx,
		"select id, external_id, name, symbol, currency, icon_url from crypto_asset order by id",
	)

	if err != nil {
		return err
	}

	defer rows.Close()

	if err := writer.Write(assetHeader); err != nil {
		return err
	}

	for rows.Next() {
		var id int64
		var externalID string
		var name string
		var symbol string
		var currency string
		var iconURL string

		if err := rows.Scan(&id, &externalID, &name, &symbol, &currency, &iconURL); err != nil {
			return err
		}

		if err := writer.Write([]string{
			strconv.FormatInt(id, 10),
			externalID,
			name,
			symbol,
			currency,
			iconURL,
		}); err != nil {
			return err
		}
	}

	return rows.Err()
}

func exportHistory(ctx context.Context, conn database.Queryable, writer *csv.Writer) error {
	rows, err := conn.Query(
		ctx,
		`
			select
				history.time,
				asset.id,
				asset.external_id,
				asset.symbol,
				asset.currency,
				history.price::text
			from crypto_price_history as history
			inner join crypto_asset as asset
				on asset.id = history.asset_id
			order by history.time, asset.id
		`,
	)

	if err != nil {
		return err
	}

	defer rows.Close()

	if err := writer.Write(historyHeader); err != nil {
		return err
	}

	for rows.Next() {
		var timestamp time.Time
		var assetID int64
		var externalID string
		var symbol string
		var currency string
		var value string

		if err := rows.Scan(&timestamp, &assetID, &externalID, &symbol, &currency, &value); err != nil {
			return err
		}

		if err := writer.Write([]string{
			formatTime(timestamp),
			strconv.FormatInt(assetID, 10),
			externalID,
			symbol,
			currency,
			value,
		}); err != nil {
			return err
		}
	}

	return rows.Err()
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func argOrDefault(position int, fallback string) string {
	if len(os.Args) > position {
		return os.Args[position]
	}

	return fallback
}

func exitWithError(action string, err error) {
	fmt.Fprintf(os.Stderr, "%s error: %s\n", action, err)
	os.Exit(1)
}
