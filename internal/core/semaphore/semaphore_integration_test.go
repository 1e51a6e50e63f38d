//go:build integration_redis
// +build integration_redis

package semaphore

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"
)

func startRedis(t *testing.T) *redis.Client {
	t.Helper()
	ctx := context.Background()
	c, err := tcredis.Run(ctx, "redis:7-alpine")
	if err != nil {
		t.Fatalf("start redis: %v", err)
	}
	t.Cleanup(func() { _ = c.Terminate(context.Background()) })

	addr, err := c.Endpoint(ctx, "")
	if err != nil {
		t.Fatalf("endpoint: %v", err)
	}
	return redis.NewClient(&redis.Options{Addr: addr})
}

func TestAcquireRelease_RespectsCapacity(t *testing.T) {
	rds := startRedis(t)
	ctx := context.Background()
	sem := New(rds, "sw1:22", 2, time.Minute)

	ok1, err := sem.AcquireLease(ctx, "job-1")
	if err != nil || !ok1 {
		t.Fatalf("acquire job-1: ok=%v err=%v", ok1, err)
	}
	ok2, err := sem.AcquireLease(ctx, "job-2")
	if err != nil || !ok2 {
		t.Fatalf("acquire job-2: ok=%v err=%v", ok2, err)
	}
	ok3, err := sem.AcquireLease(ctx, "job-3")
	if err != nil {
		t.Fatalf("acquire job-3 errored: %v", err)
	}
	if ok3 {
		t.Fatalf("acquire job-3 should have been denied at capacity")
	}

	if err := sem.ReleaseLease(ctx, "job-1"); err != nil {
		t.Fatalf("release job-1: %v", err)
	}
	ok3b, err := sem.AcquireLease(ctx, "job-3")
	if err != nil || !ok3b {
		t.Fatalf("acquire job-3 after release: ok=%v err=%v", ok3b, err)
	}

	n, err := sem.InFlight(ctx)
	if err != nil || n != 2 {
		t.Fatalf("InFlight = %d, err=%v, want 2", n, err)
	}
}

func TestAcquireRelease_StaleMemberIsSweptOnAcquire(t *testing.T) {
	rds := startRedis(t)
	ctx := context.Background()
	sem := New(rds, "sw2:22", 1, 10*time.Millisecond)

	ok1, err := sem.AcquireLease(ctx, "job-stale")
	if err != nil || !ok1 {
		t.Fatalf("acquire job-stale: ok=%v err=%v", ok1, err)
	}
	time.Sleep(50 * time.Millisecond)

	ok2, err := sem.AcquireLease(ctx, "job-fresh")
	if err != nil || !ok2 {
		t.Fatalf("acquire job-fresh after stale sweep: ok=%v err=%v", ok2, err)
	}
}
