//go:build integration_redis
// +build integration_redis

package queue

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

func TestEnqueueClaimComplete(t *testing.T) {
	ctx := context.Background()
	q := New(startRedis(t))

	j, err := q.Enqueue(ctx, ExecutionRequest{
		Device: "sw1", Port: 22, Driver: "drivera",
		CredentialID: "cred-1", Commands: []string{"show version"},
	})
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if j.Status != StatusQueued {
		t.Fatalf("Status = %q, want queued", j.Status)
	}

	claimed, err := q.Claim(ctx, "worker-1", time.Minute)
	if err != nil {
		t.Fatalf("Claim: %v", err)
	}
	if claimed == nil {
		t.Fatalf("Claim returned nil, want job")
	}
	if claimed.ID != j.ID || claimed.Status != StatusActive || claimed.Attempts != 1 {
		t.Fatalf("unexpected claimed job: %+v", claimed)
	}

	if again, err := q.Claim(ctx, "worker-2", time.Minute); err != nil || again != nil {
		t.Fatalf("second Claim should be empty, got job=%v err=%v", again, err)
	}

	if err := q.Complete(ctx, claimed, []CommandResult{{Command: "show version", Output: "ok", CacheState: "miss"}}); err != nil {
		t.Fatalf("Complete: %v", err)
	}

	got, err := q.Get(ctx, j.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Status != StatusComplete || len(got.Results) != 1 {
		t.Fatalf("unexpected final job: %+v", got)
	}
}

func TestRequeueMakesJobClaimableAgain(t *testing.T) {
	ctx := context.Background()
	q := New(startRedis(t))

	j, err := q.Enqueue(ctx, ExecutionRequest{Device: "sw2", Port: 22, Driver: "drivera", CredentialID: "c", Commands: []string{"x"}})
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	claimed, err := q.Claim(ctx, "worker-1", time.Minute)
	if err != nil || claimed == nil {
		t.Fatalf("Claim: job=%v err=%v", claimed, err)
	}

	if err := q.Requeue(ctx, claimed, time.Now().UTC()); err != nil {
		t.Fatalf("Requeue: %v", err)
	}

	reclaimed, err := q.Claim(ctx, "worker-2", time.Minute)
	if err != nil || reclaimed == nil {
		t.Fatalf("reclaim after requeue: job=%v err=%v", reclaimed, err)
	}
	if reclaimed.ID != j.ID || reclaimed.Attempts != 2 {
		t.Fatalf("unexpected reclaimed job: %+v", reclaimed)
	}
}

func TestSweepExpiredLeasesFindsStaleActiveJob(t *testing.T) {
	ctx := context.Background()
	q := New(startRedis(t))

	_, err := q.Enqueue(ctx, ExecutionRequest{Device: "sw3", Port: 22, Driver: "drivera", CredentialID: "c", Commands: []string{"x"}})
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	claimed, err := q.Claim(ctx, "worker-1", 10*time.Millisecond)
	if err != nil || claimed == nil {
		t.Fatalf("Claim: job=%v err=%v", claimed, err)
	}
	time.Sleep(50 * time.Millisecond)

	stale, err := q.SweepExpiredLeases(ctx)
	if err != nil {
		t.Fatalf("SweepExpiredLeases: %v", err)
	}
	if len(stale) != 1 || stale[0].ID != claimed.ID {
		t.Fatalf("SweepExpiredLeases = %+v, want [%s]", stale, claimed.ID)
	}
}

func TestAbortTransitionsToAborting(t *testing.T) {
	ctx := context.Background()
	q := New(startRedis(t))

	j, err := q.Enqueue(ctx, ExecutionRequest{Device: "sw4", Port: 22, Driver: "drivera", CredentialID: "c", Commands: []string{"x"}})
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if err := q.Abort(ctx, j.ID); err != nil {
		t.Fatalf("Abort: %v", err)
	}
	got, err := q.Get(ctx, j.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Status != StatusAborting {
		t.Fatalf("Status = %q, want aborting", got.Status)
	}

	if err := q.AckAborted(ctx, got); err != nil {
		t.Fatalf("AckAborted: %v", err)
	}
	final, err := q.Get(ctx, j.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if final.Status != StatusAborted || final.CompletedAt == nil {
		t.Fatalf("unexpected final job: %+v", final)
	}
}
