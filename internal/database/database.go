// Package database wraps the database implementation used for the price tracker.
package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"github.com/dense-analysis/pricetracker/internal/config"
)

type Conn struct {
	pool *pgxpool.Pool
}

type Row interface {
	Scan(dest ...any) error
}

type Rows interface {
	Next() bool
	Scan(dest ...any) error
	Close()
	Err() error
}

// Batch queues statements to send in one round trip.
type Batch = pgx.Batch

var ErrNoRows = pgx.ErrNoRows

// URL builds a postgres connection URL for the database options.
func URL(options config.Database) string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s",
		options.Username,
		options.Password,
		options.Host,
		options.Port,
		options.Name,
	)
}

// Connect connects to Postgres with the configured database options.
func Connect(ctx context.Context, options config.Database) (*Conn, error) {
	pool, err := pgxpool.Connect(ctx, URL(options))

	if err != nil {
		return nil, err
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()

		return nil, err
	}

	return &Conn{pool: pool}, nil
}

// Close closes all connections in the pool.
func (conn *Conn) Close() {
	conn.pool.Close()
}

// Exec executes a database query, returning the number of affected rows.
func (conn *Conn) Exec(ctx context.Context, sql string, arguments ...any) (int64, error) {
	tag, err := conn.pool.Exec(ctx, sql, arguments...)

	return tag.RowsAffected(), err
}

// Query executes a database query.
func (conn *Conn) Query(ctx context.Context, sql string, arguments ...any) (Rows, error) {
	return conn.pool.Query(ctx, sql, arguments...)
}

// QueryRow executes a database query returning Row data.
func (conn *Conn) QueryRow(ctx context.Context, sql string, arguments ...any) Row {
	return conn.pool.QueryRow(ctx, sql, arguments...)
}

// Begin starts a transaction.
func (conn *Conn) Begin(ctx context.Context) (*Tx, error) {
	tx, err := conn.pool.Begin(ctx)

	if err != nil {
		return nil, err
	}

	return &Tx{tx: tx}, nil
}

// Tx is an open transaction.
type Tx struct {
	tx pgx.Tx
}

func (tx *Tx) Exec(ctx context.Context, sql string, arguments ...any) (int64, error) {
	tag, err := tx.tx.Exec(ctx, sql, arguments...)

	return tag.RowsAffected(), err
}

func (tx *Tx) Query(ctx context.Context, sql string, arguments ...any) (Rows, error) {
	return tx.tx.Query(ctx, sql, arguments...)
}

func (tx *Tx) QueryRow(ctx context.Context, sql string, arguments ...any) Row {
	return tx.tx.QueryRow(ctx, sql, arguments...)
}

// SendBatch runs every queued statement, stopping at the first error.
func (tx *Tx) SendBatch(ctx context.Context, batch *Batch) error {
	results := tx.tx.SendBatch(ctx, batch)

	for i := 0; i < batch.Len(); i++ {
		if _, err := results.Exec(); err != nil {
			_ = results.Close()

			return err
		}
	}

	return results.Close()
}

// Commit commits the transaction.
func (tx *Tx) Commit(ctx context.Context) error {
	return tx.tx.Commit(ctx)
}

// Rollback rolls the transaction back. It does nothing after Commit.
func (tx *Tx) Rollback(ctx context.Context) error {
	err := tx.tx.Rollback(ctx)

	if err == pgx.ErrTxClosed {
		return nil
	}

	return err
}

// Queryable defines an interface for a connection or transaction.
type Queryable interface {
	Exec(ctx context.Context, sql string, arguments ...any) (int64, error)
	Query(ctx context.Context, sql string, arguments ...any) (Rows, error)
	QueryRow(ctx context.Context, sql string, arguments ...any) Row
}
