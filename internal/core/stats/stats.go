// Package stats records job completion statistics and worker heartbeats to
// Redis for short-term operational visibility, and mirrors the same
// counters onto Prometheus metrics for long-term scraping. Grounded on the
// worker monitoring module's record_job_stats/classify_error/heartbeat_task
// functions.
package stats

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"tower/internal/platform/logger"
	"tower/internal/platform/store"
)

const jobEventsTable = "tower_job_events"

const (
	statsTTL       = time.Hour
	metricsStream  = "tom:metrics:stream"
	metricsMaxLen  = 10000
	failedStream   = "tom:failed_commands"
	failedMaxLen   = 1000
	heartbeatTTL   = 60 * time.Second
	heartbeatEvery = 30 * time.Second
)

// Outcome is the completion status of a job used for stats keys.
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeFailed  Outcome = "failed"
)

// ErrorType buckets a failure for aggregate reporting.
type ErrorType string

const (
	ErrorTypeAuth    ErrorType = "auth"
	ErrorTypeGating  ErrorType = "gating"
	ErrorTypeTimeout ErrorType = "timeout"
	ErrorTypeNetwork ErrorType = "network"
	ErrorTypeOther   ErrorType = "other"
)

// ClassifyError buckets an error message into one of the ErrorType
// categories by substring match, same heuristic as classify_error.
func ClassifyError(errMsg string) ErrorType {
	if errMsg == "" {
		return ErrorTypeOther
	}
	lower := strings.ToLower(errMsg)
	switch {
	case containsAny(lower, "auth", "password", "credential", "permission"):
		return ErrorTypeAuth
	case containsAny(lower, "gating", "busy", "lease"):
		return ErrorTypeGating
	case containsAny(lower, "timeout", "timed out"):
		return ErrorTypeTimeout
	case containsAny(lower, "connection", "network", "unreachable"):
		return ErrorTypeNetwork
	default:
		return ErrorTypeOther
	}
}

func containsAny(s string, terms ...string) bool {
	for _, t := range terms {
		if strings.Contains(s, t) {
			return true
		}
	}
	return false
}

var (
	jobsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "tower_jobs_total",
		Help: "Total completed jobs by outcome and error type.",
	}, []string{"outcome", "error_type"})

	jobDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "tower_job_duration_seconds",
		Help:    "Job execution duration in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"outcome"})
)

// MustRegister registers the package's collectors with reg. Call once at
// process startup for whichever service exposes /metrics.
func MustRegister(reg prometheus.Registerer) {
	reg.MustRegister(jobsTotal, jobDuration)
}

// JobRecord is the input to RecordJob.
type JobRecord struct {
	WorkerID     string
	Device       string
	Outcome      Outcome
	Error        string
	Duration     time.Duration
	JobID        string
	CredentialID string
	Command      string
	Attempts     int
}

// Recorder writes job stats and heartbeats to Redis and mirrors them onto
// Prometheus, with an optional additional mirror into ClickHouse for
// long-horizon graphing beyond Redis's capped streams.
type Recorder struct {
	rds *redis.Client
	ch  store.Clickhouse
}

// Option configures optional Recorder behavior.
type Option func(*Recorder)

// WithClickhouse mirrors every RecordJob call into table jobEventsTable via
// ch. Pass a nil ch (e.g. an unopened store.Store.CH) to leave the mirror
// disabled -- RecordJob then behaves exactly as without this option.
func WithClickhouse(ch store.Clickhouse) Option {
	return func(r *Recorder) { r.ch = ch }
}

func New(rds *redis.Client, opts ...Option) *Recorder {
	r := &Recorder{rds: rds}
	for _, o := range opts {
		o(r)
	}
	return r
}

func workerKey(id string) string { return fmt.Sprintf("tom:stats:worker:%s", id) }
func deviceKey(name string) string { return fmt.Sprintf("tom:stats:device:%s", name) }

const globalKey = "tom:stats:global"

// RecordJob updates worker/device/global Redis counters, appends to the
// metrics and (on failure) failed-commands streams, and mirrors the
// outcome onto Prometheus. Redis errors are logged, never returned --
// stats recording must never fail a job.
func (r *Recorder) RecordJob(ctx context.Context, rec JobRecord) {
	log := logger.Named("stats")

	var errType ErrorType
	if rec.Outcome == OutcomeFailed {
		errType = ClassifyError(rec.Error)
	}

	for _, key := range []string{workerKey(rec.WorkerID), deviceKey(rec.Device), globalKey} {
		r.bumpCounters(ctx, key, rec.Outcome, errType)
	}

	jobsTotal.WithLabelValues(string(rec.Outcome), string(errType)).Inc()
	if rec.Duration > 0 {
		jobDuration.WithLabelValues(string(rec.Outcome)).Observe(rec.Duration.Seconds())
	}

	streamVals := map[string]any{
		"timestamp":  time.Now().Unix(),
		"worker":     rec.WorkerID,
		"device":     rec.Device,
		"status":     string(rec.Outcome),
		"error_type": emptyToNone(string(errType)),
	}
	if rec.Duration > 0 {
		streamVals["duration"] = rec.Duration.Seconds()
	}
	if err := r.rds.XAdd(ctx, &redis.XAddArgs{
		Stream: metricsStream, MaxLen: metricsMaxLen, Approx: true, Values: streamVals,
	}).Err(); err != nil {
		log.Error().Err(err).Msg("failed to append metrics stream entry")
	}

	if rec.Outcome == OutcomeFailed {
		if err := r.rds.XAdd(ctx, &redis.XAddArgs{
			Stream: failedStream, MaxLen: failedMaxLen, Approx: true,
			Values: map[string]any{
				"device":        rec.Device,
				"command":       truncate(rec.Command, 500, "unknown"),
				"error":         truncate(rec.Error, 1000, "Unknown error"),
				"error_type":    string(errType),
				"job_id":        rec.JobID,
				"worker_id":     rec.WorkerID,
				"credential_id": rec.CredentialID,
				"attempts":      rec.Attempts,
				"timestamp":     time.Now().Unix(),
			},
		}).Err(); err != nil {
			log.Error().Err(err).Msg("failed to append failed-commands stream entry")
		}
	}

	if r.ch != nil {
		r.mirrorToClickhouse(ctx, rec, errType)
	}

	log.Debug().Str("worker", rec.WorkerID).Str("device", rec.Device).
		Str("status", string(rec.Outcome)).Msg("recorded job stats")
}

// mirrorToClickhouse appends rec as one row to jobEventsTable. Errors are
// logged, never returned -- the ClickHouse mirror is additive and must
// never fail a job the way the Redis counters above must not either.
func (r *Recorder) mirrorToClickhouse(ctx context.Context, rec JobRecord, errType ErrorType) {
	log := logger.Named("stats")
	row := [][]any{{
		time.Now().UTC(),
		rec.WorkerID,
		rec.Device,
		string(rec.Outcome),
		string(errType),
		rec.JobID,
		rec.CredentialID,
		truncate(rec.Error, 1000, ""),
		rec.Duration.Seconds(),
		rec.Attempts,
	}}
	if err := r.ch.Insert(ctx, jobEventsTable, row); err != nil {
		log.Warn().Err(err).Str("job_id", rec.JobID).Msg("clickhouse mirror insert failed")
	}
}

func (r *Recorder) bumpCounters(ctx context.Context, key string, outcome Outcome, errType ErrorType) {
	log := logger.Named("stats")
	field := "complete"
	if outcome == OutcomeFailed {
		field = "failed"
	}
	if err := r.rds.HIncrBy(ctx, key, field, 1).Err(); err != nil {
		log.Error().Err(err).Str("key", key).Msg("failed to increment stats counter")
		return
	}
	if outcome == OutcomeFailed && errType != "" {
		if err := r.rds.HIncrBy(ctx, key, string(errType)+"_failed", 1).Err(); err != nil {
			log.Error().Err(err).Str("key", key).Msg("failed to increment error-type counter")
		}
	}
	if err := r.rds.Expire(ctx, key, statsTTL).Err(); err != nil {
		log.Error().Err(err).Str("key", key).Msg("failed to refresh stats TTL")
	}
}

func truncate(s string, n int, fallback string) string {
	if s == "" {
		return fallback
	}
	if len(s) <= n {
		return s
	}
	return s[:n]
}

func emptyToNone(s string) string {
	if s == "" {
		return "none"
	}
	return s
}

type heartbeat struct {
	WorkerID  string  `json:"worker_id"`
	Hostname  string  `json:"hostname"`
	Timestamp float64 `json:"timestamp"`
	Version   string  `json:"version"`
	Status    string  `json:"status"`
	PID       int     `json:"pid"`
}

// Heartbeat writes one heartbeat entry for workerID with a 60s TTL.
func (r *Recorder) Heartbeat(ctx context.Context, workerID, version string) error {
	hostname, _ := os.Hostname()
	hb := heartbeat{
		WorkerID: workerID, Hostname: hostname, Timestamp: float64(time.Now().UnixNano()) / 1e9,
		Version: version, Status: "healthy", PID: os.Getpid(),
	}
	b, err := json.Marshal(hb)
	if err != nil {
		return fmt.Errorf("encode heartbeat: %w", err)
	}
	return r.rds.SetEx(ctx, fmt.Sprintf("tom:worker:heartbeat:%s", workerID), b, heartbeatTTL).Err()
}

// RunHeartbeat sends a heartbeat immediately and then every 30s until ctx is
// canceled. Intended to run in its own goroutine alongside the worker loop.
func (r *Recorder) RunHeartbeat(ctx context.Context, workerID, version string) {
	log := logger.Named("stats")
	log.Info().Str("worker_id", workerID).Msg("starting heartbeat task")

	ticker := time.NewTicker(heartbeatEvery)
	defer ticker.Stop()

	send := func() {
		if err := r.Heartbeat(ctx, workerID, version); err != nil {
			log.Error().Err(err).Msg("failed to send heartbeat")
		}
	}
	send()
	for {
		select {
		case <-ctx.Done():
			log.Info().Str("worker_id", workerID).Msg("heartbeat task stopped")
			return
		case <-ticker.C:
			send()
		}
	}
}
