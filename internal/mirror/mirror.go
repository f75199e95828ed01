// Package mirror copies committed price history into ClickHouse for analytics.
package mirror

import (
	"context"
	"fmt"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"

	"github.com/dense-analysis/pricetracker/internal/config"
	"github.com/dense-analysis/pricetracker/internal/store"
)

var insertQuery = `insert into crypto_asset_prices
	(time, asset_id, external_id, symbol, name, currency, value)
values (?, ?, ?, ?, ?, ?, ?)`

var createTableQuery = `create table if not exists crypto_asset_prices (
	time DateTime64(9, 'UTC'),
	asset_id Int64,
	external_id String,
	symbol String,
	name String,
	currency LowCardinality(String),
	value Decimal(38, 18)
)
engine = MergeTree
order by (external_id, time)`

// Batch is the part of a ClickHouse batch the mirror uses.
type Batch interface {
	Append(values ...any) error
	Send() error
}

// Preparer starts a batch insert.
type Preparer interface {
	PrepareBatch(ctx context.Context, query string) (Batch, error)
}

// ClickHouse writes history entries to the crypto_asset_prices table.
type ClickHouse struct {
	conn   Preparer
	closer func() error
}

type driverConn struct {
	conn driver.Conn
}

func (c driverConn) PrepareBatch(ctx context.Context, query string) (Batch, error) {
	batch, err := c.conn.PrepareBatch(ctx, query)

	if err != nil {
		return nil, err
	}

	return batch, nil
}

// Connect opens a ClickHouse connection and makes sure the table exists.
func Connect(ctx context.Context, options config.ClickHouse) (*ClickHouse, error) {
	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{fmt.Sprintf("%s:%s", options.Host, options.Port)},
		Auth: clickhouse.Auth{
			Database: options.Name,
			Username: options.Username,
			Password: options.Password,
		},
		DialTimeout: time.Second * 5,
	})

	if err != nil {
		return nil, err
	}

	if err := conn.Ping(ctx); err != nil {
		_ = conn.Close()

		return nil, err
	}

	if err := conn.Exec(ctx, createTableQuery); err != nil {
		_ = conn.Close()

		return nil, err
	}

	return &ClickHouse{conn: driverConn{conn}, closer: conn.Close}, nil
}

// New creates a mirror over an existing batch preparer.
func New(conn Preparer) *ClickHouse {
	return &ClickHouse{conn: conn}
}

// Close closes the connection if the mirror opened it.
func (m *ClickHouse) Close() error {
	if m.closer == nil {
		return nil
	}

	return m.closer()
}

// Write sends one batch with every entry.
func (m *ClickHouse) Write(ctx context.Context, entries []store.PendingEntry) error {
	if len(entries) == 0 {
		return nil
	}

	batch, err := m.conn.PrepareBatch(ctx, insertQuery)

	if err != nil {
		return err
	}

	for _, entry := range entries {
		if err := batch.Append(
			entry.Time.UTC(),
			entry.Asset.ID,
			entry.Asset.ExternalID,
			entry.Asset.Symbol,
			entry.Asset.Name,
			entry.Asset.Currency,
			entry.Price,
		); err != nil {
			return err
		}
	}

	return batch.Send()
}
