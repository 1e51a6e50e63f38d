// Package worker implements the job-claiming worker loop: poll the queue,
// gate on the device semaphore, resolve credentials, open a driver
// session, run commands through the cache-aware runner, and record the
// outcome -- guaranteeing lease release on every exit path. Grounded on
// the teacher's bouncer worker's ticker + bounded-concurrency loop.
package worker

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"tower/internal/core/cache"
	perr "tower/internal/platform/errors"
	"tower/internal/platform/logger"

	"tower/internal/core/plugins"
	"tower/internal/core/queue"
	"tower/internal/core/retry"
	"tower/internal/core/runner"
	"tower/internal/core/semaphore"
	"tower/internal/core/stats"
)

// Config tunes the worker's poll loop and defaults applied when a job
// doesn't override them.
type Config struct {
	WorkerID    string
	Version     string
	Concurrency int
	PollEvery   time.Duration
	LeaseFor    time.Duration

	DeviceMaxConcurrent int
	DeviceLeaseTTL      time.Duration

	DefaultMaxQueueWait time.Duration
}

func (c *Config) applyDefaults() {
	if c.Concurrency < 1 {
		c.Concurrency = 4
	}
	if c.PollEvery <= 0 {
		c.PollEvery = 500 * time.Millisecond
	}
	if c.LeaseFor <= 0 {
		c.LeaseFor = 5 * time.Minute
	}
	if c.DeviceMaxConcurrent < 1 {
		c.DeviceMaxConcurrent = 1
	}
	if c.DeviceLeaseTTL <= 0 {
		c.DeviceLeaseTTL = 120 * time.Second
	}
	if c.DefaultMaxQueueWait <= 0 {
		c.DefaultMaxQueueWait = 300 * time.Second
	}
}

// Deps are the ports the worker composes.
type Deps struct {
	Redis       *redis.Client
	Queue       *queue.Queue
	Cache       *cache.Manager
	Stats       *stats.Recorder
	Credentials plugins.CredentialPort
	Drivers     map[string]plugins.DriverPort // keyed by ExecutionRequest.Driver ("drivera"|"driverb")
}

// Worker pulls jobs off the queue and executes them against devices.
type Worker struct {
	cfg   Config
	deps  Deps
	run   *runner.Runner
	log   *logger.Logger
}

func New(cfg Config, deps Deps) *Worker {
	cfg.applyDefaults()
	return &Worker{
		cfg:  cfg,
		deps: deps,
		run:  runner.New(deps.Cache),
		log:  logger.Named("worker"),
	}
}

// Run starts the poll loop and blocks until ctx is canceled. A background
// heartbeat goroutine publishes liveness every 30s until shutdown.
func (w *Worker) Run(ctx context.Context) error {
	go w.deps.Stats.RunHeartbeat(ctx, w.cfg.WorkerID, w.cfg.Version)

	sem := make(chan struct{}, w.cfg.Concurrency)
	ticker := time.NewTicker(w.cfg.PollEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			for {
				select {
				case sem <- struct{}{}:
				default:
					goto drained // concurrency slots full, wait for next tick
				}
				j, err := w.deps.Queue.Claim(ctx, w.cfg.WorkerID, w.cfg.LeaseFor)
				if err != nil {
					w.log.Error().Err(err).Msg("claim failed")
					<-sem
					goto drained
				}
				if j == nil {
					<-sem
					goto drained
				}
				go func(job *queue.Job) {
					defer func() { <-sem }()
					w.handleJob(ctx, job)
				}(j)
			}
		drained:
		}
	}
}

// handleJob runs the full lease -> run -> release flow for one claimed job,
// never letting a panic or early return skip lease release.
func (w *Worker) handleJob(ctx context.Context, j *queue.Job) {
	started := time.Now()
	sem := semaphore.New(w.deps.Redis, j.DeviceKey, w.cfg.DeviceMaxConcurrent, w.cfg.DeviceLeaseTTL)

	ok, err := sem.AcquireLease(ctx, j.ID)
	if err != nil {
		w.log.Warn().Err(err).Str("job_id", j.ID).Msg("semaphore acquire errored, retrying as transient")
		w.requeueTransient(ctx, j, err)
		return
	}
	if !ok {
		maxQueueWait := w.maxQueueWait(j)
		switch retry.HandleDeviceBusy(j, maxQueueWait) {
		case retry.VerdictPermanent:
			w.fail(ctx, j, started, perr.GatingExhaustedf("device %s busy past max_queue_wait %s", j.DeviceKey, maxQueueWait))
		default:
			if err := w.deps.Queue.Requeue(ctx, j, time.Now().UTC().Add(retry.GatingRetryInterval)); err != nil {
				w.log.Error().Err(err).Str("job_id", j.ID).Msg("requeue (gating) failed")
			}
		}
		return
	}
	defer func() {
		if err := sem.ReleaseLease(context.Background(), j.ID); err != nil {
			w.log.Error().Err(err).Str("job_id", j.ID).Str("device", j.DeviceKey).Msg("lease release failed")
		}
	}()

	retry.RestoreOriginalSettings(j)

	creds, err := w.deps.Credentials.GetSSHCredentials(ctx, j.Request.CredentialID)
	if err != nil {
		w.fail(ctx, j, started, perr.Permanentf("resolve credential %s: %v", j.Request.CredentialID, err))
		return
	}

	driver, ok := w.deps.Drivers[j.Request.Driver]
	if !ok {
		w.fail(ctx, j, started, perr.Permanentf("no driver registered for %q", j.Request.Driver))
		return
	}

	cfg := plugins.DeviceConfig{
		Name:          j.Request.Device,
		AdapterDriver: j.Request.Driver,
		Host:          j.Request.Device,
		Port:          j.Request.Port,
		CredentialID:  j.Request.CredentialID,
	}

	sess, err := driver.Dial(ctx, cfg, creds)
	if err != nil {
		w.handleExecutionError(ctx, j, started, err)
		return
	}
	defer sess.Close()

	policy := runner.CachePolicy{
		Use:     j.Request.UseCache,
		Refresh: j.Request.CacheRefresh,
		TTL:     time.Duration(j.Request.CacheTTL) * time.Second,
	}

	result, err := w.run.Run(ctx, j.Request.Device, j.Request.Commands, sess, policy)
	if err != nil {
		w.handleExecutionError(ctx, j, started, err)
		return
	}

	w.complete(ctx, j, started, result)
}

// handleExecutionError classifies a failure raised during driver dial or
// command execution and either requeues for a transient retry or fails the
// job outright for auth/permanent errors.
func (w *Worker) handleExecutionError(ctx context.Context, j *queue.Job, started time.Time, err error) {
	switch perr.CodeOf(err) {
	case perr.ErrorCodeUnauthorized, perr.ErrorCodePermanent:
		w.fail(ctx, j, started, err)
		return
	}
	if retry.ExhaustedTransientBudget(j) {
		w.fail(ctx, j, started, perr.Transientf("retries exhausted: %v", err))
		return
	}
	w.requeueTransient(ctx, j, err)
}

func (w *Worker) requeueTransient(ctx context.Context, j *queue.Job, cause error) {
	delay := retry.NextTransientDelay(j, j.Attempts)
	if err := w.deps.Queue.Requeue(ctx, j, time.Now().UTC().Add(delay)); err != nil {
		w.log.Error().Err(err).Str("job_id", j.ID).Msg("requeue (transient) failed")
	}
	w.log.Warn().Str("job_id", j.ID).Err(cause).Dur("delay", delay).Msg("transient failure, requeued")
}

func (w *Worker) complete(ctx context.Context, j *queue.Job, started time.Time, result *runner.Result) {
	results := make([]queue.CommandResult, 0, len(result.Order))
	for _, key := range result.Order {
		d := result.Detail[key]
		results = append(results, queue.CommandResult{
			Command:    d.Command,
			Output:     result.Data[key],
			Error:      d.Error,
			CacheState: d.CacheState,
		})
	}
	if err := w.deps.Queue.Complete(ctx, j, results); err != nil {
		w.log.Error().Err(err).Str("job_id", j.ID).Msg("mark complete failed")
	}
	w.deps.Stats.RecordJob(ctx, stats.JobRecord{
		WorkerID:     w.cfg.WorkerID,
		Device:       j.Request.Device,
		Outcome:      stats.OutcomeSuccess,
		Duration:     time.Since(started),
		JobID:        j.ID,
		CredentialID: j.Request.CredentialID,
		Attempts:     j.Attempts,
	})
}

func (w *Worker) fail(ctx context.Context, j *queue.Job, started time.Time, cause error) {
	// a job that terminates here has exhausted its retry budget by
	// definition (auth/permanent errors skip retry entirely) -- pin
	// retries to attempts so a poll afterward reports a consistent record.
	j.Retries = j.Attempts
	if err := w.deps.Queue.Fail(ctx, j, cause); err != nil {
		w.log.Error().Err(err).Str("job_id", j.ID).Msg("mark failed failed")
	}
	w.deps.Stats.RecordJob(ctx, stats.JobRecord{
		WorkerID:     w.cfg.WorkerID,
		Device:       j.Request.Device,
		Outcome:      stats.OutcomeFailed,
		Error:        cause.Error(),
		Duration:     time.Since(started),
		JobID:        j.ID,
		CredentialID: j.Request.CredentialID,
		Attempts:     j.Attempts,
	})
}

func (w *Worker) maxQueueWait(j *queue.Job) time.Duration {
	if j.Request.MaxQueueWait > 0 {
		return time.Duration(j.Request.MaxQueueWait) * time.Second
	}
	return w.cfg.DefaultMaxQueueWait
}
