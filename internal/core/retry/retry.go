// Package retry implements the two orthogonal retry budgets that govern a
// job's life between the queue and a device: a gating budget (fixed 2s
// interval, wall-clock max_queue_wait cutoff) while waiting on the device
// semaphore, and a transient budget (exponential backoff, fixed attempt
// count) once execution has actually started against the device.
package retry

import (
	"math"
	"time"

	"tower/internal/core/queue"
	"tower/internal/platform/logger"
)

// GatingRetryInterval is the fixed wait between semaphore-acquisition
// attempts while a job is gated on device concurrency.
const GatingRetryInterval = 2 * time.Second

// Verdict is the outcome of evaluating a job against its retry budgets.
type Verdict string

const (
	// VerdictOK means the job may proceed to (or continue) execution.
	VerdictOK Verdict = "ok"
	// VerdictGateBusy means the device semaphore is full; requeue at a
	// fixed interval and keep counting against max_queue_wait.
	VerdictGateBusy Verdict = "gate_busy"
	// VerdictTransient means an error occurred after semaphore
	// acquisition that should be retried with exponential backoff.
	VerdictTransient Verdict = "transient"
	// VerdictAuth means a credential/authorization error occurred; not
	// retryable, surfaced distinctly from other permanent failures for
	// stats classification.
	VerdictAuth Verdict = "auth"
	// VerdictPermanent means the job has exhausted its budget or hit a
	// non-retryable error and must be failed.
	VerdictPermanent Verdict = "permanent"
)

// HandleDeviceBusy evaluates a semaphore-denied acquisition attempt against
// j's gating budget. On first call it stashes the job's original retry
// settings and switches the job onto fixed-interval gating retries; on
// every call it advances the gating attempt count and compares elapsed
// time against maxQueueWait.
//
// Returns VerdictGateBusy (with j mutated so the caller requeues at
// GatingRetryInterval) while budget remains, or VerdictPermanent once
// elapsed time meets or exceeds maxQueueWait.
func HandleDeviceBusy(j *queue.Job, maxQueueWait time.Duration) Verdict {
	log := logger.Named("retry")
	now := time.Now().UTC()

	if j.Gating == nil {
		j.Gating = &queue.GatingState{
			StartedAt:            now,
			Count:                0,
			OriginalRetries:      j.Retries,
			OriginalRetryDelayMs: j.RetryDelayMs,
			OriginalRetryBackoff: j.RetryBackoff,
		}
		j.Retries = math.MaxInt32
		j.RetryDelayMs = int(GatingRetryInterval.Milliseconds())
		j.RetryBackoff = false

		log.Info().Str("job_id", j.ID).Str("device", j.DeviceKey).
			Dur("max_queue_wait", maxQueueWait).
			Msg("device semaphore not available, entering gating retry")
	}

	elapsed := now.Sub(j.Gating.StartedAt)
	j.Gating.Count++

	if elapsed >= maxQueueWait {
		log.Error().Str("job_id", j.ID).Str("device", j.DeviceKey).
			Int("attempts", j.Gating.Count).Dur("elapsed", elapsed).
			Msg("semaphore acquisition timed out")
		j.Gating = nil
		return VerdictPermanent
	}

	switch {
	case j.Gating.Count == 1:
		log.Info().Str("job_id", j.ID).Str("device", j.DeviceKey).
			Dur("interval", GatingRetryInterval).Msg("waiting for device semaphore")
	case j.Gating.Count%10 == 0:
		log.Info().Str("job_id", j.ID).Str("device", j.DeviceKey).
			Int("attempts", j.Gating.Count).Dur("elapsed", elapsed).
			Dur("remaining", maxQueueWait-elapsed).
			Msg("still waiting for device semaphore")
	default:
		log.Debug().Str("job_id", j.ID).Int("attempts", j.Gating.Count).Msg("device semaphore busy")
	}
	return VerdictGateBusy
}

// RestoreOriginalSettings restores j's pre-gating retry configuration once
// the semaphore has been acquired, so transient failures during actual
// execution use the caller's configured retry budget rather than the
// gating budget's effectively-unlimited attempt count.
func RestoreOriginalSettings(j *queue.Job) {
	if j.Gating == nil {
		return
	}
	log := logger.Named("retry")
	original := j.Gating

	j.Retries = original.OriginalRetries
	j.RetryDelayMs = original.OriginalRetryDelayMs
	j.RetryBackoff = original.OriginalRetryBackoff

	log.Info().Str("job_id", j.ID).Int("attempts", original.Count).
		Dur("total_gating_time", time.Since(original.StartedAt)).
		Int("retries", j.Retries).Int("retry_delay_ms", j.RetryDelayMs).
		Bool("retry_backoff", j.RetryBackoff).
		Msg("semaphore acquired, restored original retry settings")

	j.Gating = nil
}

// NextTransientDelay computes the delay before attempt number attempt
// (1-indexed) of a transient retry, honoring j's retry_backoff flag:
// a fixed delay when backoff is disabled, or delay*2^(attempt-1) capped
// at one minute when enabled.
func NextTransientDelay(j *queue.Job, attempt int) time.Duration {
	base := time.Duration(j.RetryDelayMs) * time.Millisecond
	if base <= 0 {
		base = time.Second
	}
	if !j.RetryBackoff || attempt <= 1 {
		return base
	}
	const cap = time.Minute
	d := base * time.Duration(math.Pow(2, float64(attempt-1)))
	if d > cap || d <= 0 {
		return cap
	}
	return d
}

// ExhaustedTransientBudget reports whether j has used up its configured
// transient-retry attempts.
func ExhaustedTransientBudget(j *queue.Job) bool {
	return j.Attempts > j.Retries
}
