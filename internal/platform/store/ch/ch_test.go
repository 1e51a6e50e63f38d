package ch

import (
	"context"
	"errors"
	"testing"

	"github.com/ClickHouse/clickhouse-go/v2"
	chdriver "github.com/ClickHouse/clickhouse-go/v2/lib/driver"
)

type fakeRows struct {
	cols   []string
	closed bool
}

func (f *fakeRows) Next() bool             { return false }
func (f *fakeRows) Scan(dest ...any) error { return nil }
func (f *fakeRows) Err() error             { return nil }
func (f *fakeRows) Columns() []string      { return f.cols }
func (f *fakeRows) Close() error           { f.closed = true; return nil }

type fakeBatch struct {
	appended [][]any
	sent     bool
	aborted  bool
	failOn   int // Append fails on this row index, -1 disables
}

func (b *fakeBatch) Append(v ...any) error {
	if b.failOn >= 0 && len(b.appended) == b.failOn {
		return errors.New("append failed")
	}
	b.appended = append(b.appended, v)
	return nil
}
func (b *fakeBatch) Send() error  { b.sent = true; return nil }
func (b *fakeBatch) Abort() error { b.aborted = true; return nil }

type fakeConn struct {
	queryRows    *fakeRows
	queryErr     error
	batchErr     error
	batches      []*fakeBatch
	failSendTill int // this many PrepareBatch-produced batches fail Append
	sendCalls    int
	pingErr      error
	closed       bool
}

func (c *fakeConn) Query(_ context.Context, _ string, _ ...any) (Rows, error) {
	if c.queryErr != nil {
		return nil, c.queryErr
	}
	return c.queryRows, nil
}

func (c *fakeConn) PrepareBatch(_ context.Context, _ string) (batch, error) {
	if c.batchErr != nil {
		return nil, c.batchErr
	}
	c.sendCalls++
	b := &fakeBatch{failOn: -1}
	if c.sendCalls <= c.failSendTill {
		b.failOn = 0
	}
	c.batches = append(c.batches, b)
	return b, nil
}

func (c *fakeConn) Ping(_ context.Context) error { return c.pingErr }
func (c *fakeConn) Close() error                 { c.closed = true; return nil }

func TestInsert_ChunksRows(t *testing.T) {
	t.Parallel()

	fc := &fakeConn{}
	c := &CH{conn: fc, cfg: Config{InsertChunk: 2, MaxRetries: 1}}

	rows := [][]any{{1}, {2}, {3}, {4}, {5}}
	if err := c.Insert(context.Background(), "events", rows); err != nil {
		t.Fatalf("Insert returned error: %v", err)
	}
	if len(fc.batches) != 3 {
		t.Fatalf("expected 3 chunks (2+2+1), got %d", len(fc.batches))
	}
	for i, b := range fc.batches {
		if !b.sent {
			t.Fatalf("batch %d never sent", i)
		}
	}
}

func TestInsert_EmptyRowsIsNoop(t *testing.T) {
	t.Parallel()

	fc := &fakeConn{}
	c := &CH{conn: fc, cfg: Config{}}
	if err := c.Insert(context.Background(), "events", [][]any{}); err != nil {
		t.Fatalf("expected nil error for empty rows, got %v", err)
	}
	if len(fc.batches) != 0 {
		t.Fatalf("expected no batches prepared for empty rows")
	}
}

func TestInsert_RejectsWrongShape(t *testing.T) {
	t.Parallel()

	c := &CH{conn: &fakeConn{}, cfg: Config{}}
	if err := c.Insert(context.Background(), "events", struct{}{}); err == nil {
		t.Fatalf("expected error for non-[][]any data")
	}
}

func TestInsert_RetriesThenSucceeds(t *testing.T) {
	t.Parallel()

	fc := &fakeConn{failSendTill: 1} // first PrepareBatch call's batch fails Append
	c := &CH{conn: fc, cfg: Config{InsertChunk: 0, MaxRetries: 3, RetryBase: 0}}

	if err := c.Insert(context.Background(), "events", [][]any{{1}, {2}}); err != nil {
		t.Fatalf("expected retry to succeed, got %v", err)
	}
	if fc.sendCalls != 2 {
		t.Fatalf("expected 2 PrepareBatch calls (1 failed retry + 1 success), got %d", fc.sendCalls)
	}
}

func TestInsert_ExhaustsRetriesAndFails(t *testing.T) {
	t.Parallel()

	fc := &fakeConn{failSendTill: 10}
	c := &CH{conn: fc, cfg: Config{MaxRetries: 2, RetryBase: 0}}

	err := c.Insert(context.Background(), "events", [][]any{{1}})
	if err == nil {
		t.Fatalf("expected error after exhausting retries")
	}
	if fc.sendCalls != 2 {
		t.Fatalf("expected exactly MaxRetries attempts, got %d", fc.sendCalls)
	}
}

func TestQuery_ReturnsDriverRows(t *testing.T) {
	t.Parallel()

	fc := &fakeConn{queryRows: &fakeRows{cols: []string{"a", "b"}}}
	c := &CH{conn: fc, cfg: Config{}}

	rows, err := c.Query(context.Background(), "SELECT a, b FROM t")
	if err != nil {
		t.Fatalf("Query returned error: %v", err)
	}
	if got := rows.Columns(); len(got) != 2 {
		t.Fatalf("expected 2 columns, got %v", got)
	}
}

func TestQuery_PropagatesError(t *testing.T) {
	t.Parallel()

	fc := &fakeConn{queryErr: errors.New("boom")}
	c := &CH{conn: fc, cfg: Config{}}

	if _, err := c.Query(context.Background(), "SELECT 1"); err == nil {
		t.Fatalf("expected Query to propagate connection error")
	}
}

func TestClose_ClosesUnderlyingConn(t *testing.T) {
	t.Parallel()

	fc := &fakeConn{}
	c := &CH{conn: fc, cfg: Config{}}
	if err := c.Close(); err != nil {
		t.Fatalf("Close returned error: %v", err)
	}
	if !fc.closed {
		t.Fatalf("expected underlying connection to be closed")
	}
}

func TestClose_NilConnIsNoop(t *testing.T) {
	t.Parallel()

	c := &CH{}
	if err := c.Close(); err != nil {
		t.Fatalf("Close on nil conn returned error: %v", err)
	}
}

func TestOpen_PropagatesDialError(t *testing.T) {
	orig := dialNative
	defer func() { dialNative = orig }()

	dialNative = func(_ *clickhouse.Options) (chdriver.Conn, error) {
		return nil, errors.New("dial failed")
	}

	_, err := Open(context.Background(), Config{Addrs: []string{"127.0.0.1:9000"}})
	if err == nil {
		t.Fatalf("expected Open to propagate dial error")
	}
}
