// Package ch provides a clickhouse client for mirroring job outcomes into
// columnar storage, wrapping the native clickhouse-go/v2 driver with
// chunked, retried batch inserts -- the same pool-wrapper shape as the pg
// package.
package ch

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	chdriver "github.com/ClickHouse/clickhouse-go/v2/lib/driver"
)

// Config configures the native-protocol clickhouse connection and the
// batch-insert behavior layered on top of it.
type Config struct {
	Addrs       []string
	Protocol    clickhouse.Protocol
	TLS         *tls.Config
	Auth        clickhouse.Auth
	Dialer      func(ctx context.Context, addr string) (net.Conn, error)
	Settings    clickhouse.Settings
	ClientInfo  clickhouse.ClientInfo
	DialTimeout time.Duration
	ReadTimeout time.Duration
	Compression *clickhouse.Compression

	// InsertChunk caps rows per batch; <= 0 sends every row in one batch.
	InsertChunk int
	// MaxRetries bounds attempts per chunk; any prepare/append/send error is
	// retried until then. < 1 means a single attempt, no retry.
	MaxRetries int
	RetryBase  time.Duration

	Tracer QueryTracer
}

// Rows is the minimal result set iteration ch exposes to its callers.
type Rows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
	Columns() []string
	Close() error
}

// batch is the minimal batch-insert surface Insert needs.
type batch interface {
	Append(v ...any) error
	Send() error
	Abort() error
}

// driverConn is the subset of the native driver connection CH depends on,
// seamed so Insert/Query's chunking and retry behavior can be unit tested
// without a live clickhouse server.
type driverConn interface {
	Query(ctx context.Context, query string, args ...any) (Rows, error)
	PrepareBatch(ctx context.Context, query string) (batch, error)
	Ping(ctx context.Context) error
	Close() error
}

// nativeConn adapts the real clickhouse-go driver connection to driverConn.
type nativeConn struct{ c chdriver.Conn }

func (n *nativeConn) Query(ctx context.Context, query string, args ...any) (Rows, error) {
	return n.c.Query(ctx, query, args...)
}

func (n *nativeConn) PrepareBatch(ctx context.Context, query string) (batch, error) {
	return n.c.PrepareBatch(ctx, query)
}

func (n *nativeConn) Ping(ctx context.Context) error { return n.c.Ping(ctx) }
func (n *nativeConn) Close() error                   { return n.c.Close() }

// dialNative is a seam over clickhouse.Open so Open's failure path can be
// exercised without a live server.
var dialNative = clickhouse.Open

// CH is a clickhouse client: a native driver connection plus the
// chunk/retry/tracing policy layered on top of it.
type CH struct {
	conn driverConn
	cfg  Config
}

// Open dials clickhouse over the native protocol and verifies connectivity
// with a Ping before returning.
func Open(ctx context.Context, cfg Config) (*CH, error) {
	opts := &clickhouse.Options{
		Protocol:    cfg.Protocol,
		TLS:         cfg.TLS,
		Addr:        cfg.Addrs,
		Auth:        cfg.Auth,
		Settings:    cfg.Settings,
		ClientInfo:  cfg.ClientInfo,
		DialTimeout: cfg.DialTimeout,
		ReadTimeout: cfg.ReadTimeout,
		Compression: cfg.Compression,
	}
	if cfg.Dialer != nil {
		opts.DialContext = cfg.Dialer
	}

	raw, err := dialNative(opts)
	if err != nil {
		return nil, fmt.Errorf("ch: open: %w", err)
	}
	conn := &nativeConn{c: raw}
	if err := conn.Ping(ctx); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("ch: ping: %w", err)
	}
	return &CH{conn: conn, cfg: cfg}, nil
}

// Insert batch-inserts rows into table. data must be [][]any, one slice of
// positional column values per row, matching the column order of table.
// Rows are chunked at cfg.InsertChunk and each chunk is attempted up to
// cfg.MaxRetries times (at least once); any error is retried unless ctx is done.
func (c *CH) Insert(ctx context.Context, table string, data any) error {
	rows, ok := data.([][]any)
	if !ok {
		return fmt.Errorf("ch: insert expects [][]any rows, got %T", data)
	}
	if len(rows) == 0 {
		return nil
	}

	chunk := c.cfg.InsertChunk
	if chunk <= 0 {
		chunk = len(rows)
	}

	for start := 0; start < len(rows); start += chunk {
		end := start + chunk
		if end > len(rows) {
			end = len(rows)
		}
		if err := c.insertChunk(ctx, table, rows[start:end]); err != nil {
			return err
		}
	}
	return nil
}

func (c *CH) insertChunk(ctx context.Context, table string, rows [][]any) error {
	attempts := c.cfg.MaxRetries
	if attempts < 1 {
		attempts = 1
	}
	backoff := c.cfg.RetryBase
	if backoff <= 0 {
		backoff = 200 * time.Millisecond
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		started := time.Now()
		err := c.sendBatch(ctx, table, rows)
		c.trace(ctx, fmt.Sprintf("INSERT INTO %s (%d rows)", table, len(rows)), nil, time.Since(started), err)
		if err == nil {
			return nil
		}
		lastErr = err
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if attempt < attempts-1 {
			time.Sleep(backoff * time.Duration(attempt+1))
		}
	}
	return fmt.Errorf("ch: insert into %s failed after %d attempts: %w", table, attempts, lastErr)
}

func (c *CH) sendBatch(ctx context.Context, table string, rows [][]any) error {
	b, err := c.conn.PrepareBatch(ctx, "INSERT INTO "+table)
	if err != nil {
		return err
	}
	for _, row := range rows {
		if err := b.Append(row...); err != nil {
			_ = b.Abort()
			return err
		}
	}
	return b.Send()
}

// Query runs sql and returns the driver's rows.
func (c *CH) Query(ctx context.Context, sql string, args ...any) (Rows, error) {
	started := time.Now()
	rows, err := c.conn.Query(ctx, sql, args...)
	c.trace(ctx, sql, args, time.Since(started), err)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (c *CH) trace(ctx context.Context, sql string, args any, elapsed time.Duration, err error) {
	if c.cfg.Tracer == nil {
		return
	}
	c.cfg.Tracer.OnQuery(ctx, QueryEvent{SQL: sql, Args: args, ElapsedUS: elapsed.Microseconds(), Err: err})
}

// Close closes the underlying connection.
func (c *CH) Close() error {
	if c == nil || c.conn == nil {
		return nil
	}
	return c.conn.Close()
}
