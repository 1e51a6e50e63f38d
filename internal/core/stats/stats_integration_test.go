//go:build integration_redis
// +build integration_redis

package stats

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

func TestRecordJobUpdatesCounters(t *testing.T) {
	ctx := context.Background()
	rds := startRedis(t)
	r := New(rds)

	r.RecordJob(ctx, JobRecord{WorkerID: "w1", Device: "sw1", Outcome: OutcomeSuccess})
	r.RecordJob(ctx, JobRecord{WorkerID: "w1", Device: "sw1", Outcome: OutcomeFailed, Error: "connection refused"})

	worker, err := rds.HGetAll(ctx, workerKey("w1")).Result()
	if err != nil {
		t.Fatalf("HGetAll worker: %v", err)
	}
	if worker["complete"] != "1" || worker["failed"] != "1" || worker["network_failed"] != "1" {
		t.Fatalf("unexpected worker stats: %+v", worker)
	}

	global, err := rds.HGetAll(ctx, globalKey).Result()
	if err != nil {
		t.Fatalf("HGetAll global: %v", err)
	}
	if global["complete"] != "1" || global["failed"] != "1" {
		t.Fatalf("unexpected global stats: %+v", global)
	}

	ttl, err := rds.TTL(ctx, workerKey("w1")).Result()
	if err != nil || ttl <= 0 {
		t.Fatalf("TTL = %v, err=%v, want positive", ttl, err)
	}
}

func TestRecordJobAppendsStreams(t *testing.T) {
	ctx := context.Background()
	rds := startRedis(t)
	r := New(rds)

	r.RecordJob(ctx, JobRecord{WorkerID: "w1", Device: "sw1", Outcome: OutcomeFailed, Error: "bad credential", Command: "show run"})

	metrics, err := rds.XRange(ctx, metricsStream, "-", "+").Result()
	if err != nil || len(metrics) != 1 {
		t.Fatalf("XRange metrics = %v, err=%v, want 1 entry", metrics, err)
	}

	failed, err := rds.XRange(ctx, failedStream, "-", "+").Result()
	if err != nil || len(failed) != 1 {
		t.Fatalf("XRange failed = %v, err=%v, want 1 entry", failed, err)
	}
	if failed[0].Values["error_type"] != "auth" {
		t.Fatalf("failed entry error_type = %v, want auth", failed[0].Values["error_type"])
	}
}

func TestHeartbeatWritesKeyWithTTL(t *testing.T) {
	ctx := context.Background()
	rds := startRedis(t)
	r := New(rds)

	if err := r.Heartbeat(ctx, "w1", "1.0.0"); err != nil {
		t.Fatalf("Heartbeat: %v", err)
	}

	ttl, err := rds.TTL(ctx, "tom:worker:heartbeat:w1").Result()
	if err != nil {
		t.Fatalf("TTL: %v", err)
	}
	if ttl <= 0 || ttl > heartbeatTTL {
		t.Fatalf("TTL = %v, want (0, %v]", ttl, heartbeatTTL)
	}
}

func TestListWorkersReportsFreshnessFromHeartbeat(t *testing.T) {
	ctx := context.Background()
	rds := startRedis(t)
	r := New(rds)

	if err := r.Heartbeat(ctx, "w1", "1.0.0"); err != nil {
		t.Fatalf("Heartbeat: %v", err)
	}

	workers, err := r.ListWorkers(ctx)
	if err != nil {
		t.Fatalf("ListWorkers: %v", err)
	}
	if len(workers) != 1 {
		t.Fatalf("len(workers) = %d, want 1", len(workers))
	}
	if workers[0].ID != "w1" || workers[0].Status != "healthy" {
		t.Fatalf("unexpected worker status: %+v", workers[0])
	}
}

func TestListFailedCommandsFiltersByDevice(t *testing.T) {
	ctx := context.Background()
	rds := startRedis(t)
	r := New(rds)

	r.RecordJob(ctx, JobRecord{WorkerID: "w1", Device: "sw1", Outcome: OutcomeFailed, Error: "auth failure", Command: "show run"})
	r.RecordJob(ctx, JobRecord{WorkerID: "w1", Device: "sw2", Outcome: OutcomeFailed, Error: "connection refused", Command: "show arp"})

	failures, err := r.ListFailedCommands(ctx, FailedCommandFilter{Device: "sw1"})
	if err != nil {
		t.Fatalf("ListFailedCommands: %v", err)
	}
	if len(failures) != 1 || failures[0].Device != "sw1" {
		t.Fatalf("unexpected filtered failures: %+v", failures)
	}
}

func TestGetDeviceStatsComputesFailureRate(t *testing.T) {
	ctx := context.Background()
	rds := startRedis(t)
	r := New(rds)

	r.RecordJob(ctx, JobRecord{WorkerID: "w1", Device: "sw1", Outcome: OutcomeSuccess})
	r.RecordJob(ctx, JobRecord{WorkerID: "w1", Device: "sw1", Outcome: OutcomeFailed, Error: "timeout"})

	ds, err := r.GetDeviceStats(ctx, "sw1")
	if err != nil {
		t.Fatalf("GetDeviceStats: %v", err)
	}
	if ds.Total != 2 || ds.FailureRate != 50 {
		t.Fatalf("unexpected device stats: %+v", ds)
	}
	if ds.ErrorBreakdown["timeout"] != 1 {
		t.Fatalf("unexpected error breakdown: %+v", ds.ErrorBreakdown)
	}
	if len(ds.RecentFailures) != 1 {
		t.Fatalf("expected 1 recent failure, got %d", len(ds.RecentFailures))
	}
}

func TestGetSummaryAggregatesGlobalWorkersAndTopDevices(t *testing.T) {
	ctx := context.Background()
	rds := startRedis(t)
	r := New(rds)

	r.RecordJob(ctx, JobRecord{WorkerID: "w1", Device: "sw1", Outcome: OutcomeSuccess})
	r.RecordJob(ctx, JobRecord{WorkerID: "w1", Device: "sw2", Outcome: OutcomeFailed, Error: "timeout"})

	sum, err := r.GetSummary(ctx)
	if err != nil {
		t.Fatalf("GetSummary: %v", err)
	}
	if sum.Global.TotalJobs != 2 || sum.Global.Successful != 1 || sum.Global.Failed != 1 {
		t.Fatalf("unexpected global summary: %+v", sum.Global)
	}
	if len(sum.Workers) != 1 || sum.Workers[0].Total != 2 {
		t.Fatalf("unexpected workers summary: %+v", sum.Workers)
	}
	if len(sum.TopDevices) != 2 {
		t.Fatalf("unexpected top devices: %+v", sum.TopDevices)
	}
}

func TestRunHeartbeatStopsOnContextCancel(t *testing.T) {
	rds := startRedis(t)
	r := New(rds)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		r.RunHeartbeat(ctx, "w2", "1.0.0")
		close(done)
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("RunHeartbeat did not stop after context cancel")
	}
}
