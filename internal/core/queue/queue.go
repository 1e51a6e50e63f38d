package queue

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	perr "tower/internal/platform/errors"
)

const (
	readyZSet   = "queue:ready"   // member=job id, score=next_attempt unix millis
	jobHashFmt  = "queue:job:%s"  // string value holding the marshaled Job
	activeZSet  = "queue:active"  // member=job id, score=lease_expires_at unix millis
	defaultLeaseFor = 5 * time.Minute
)

// claimScript atomically pops the earliest ready job whose next_attempt has
// elapsed, moves it into the active set scored by lease expiry, and returns
// its id. Mirrors the teacher's `FOR UPDATE SKIP LOCKED` lease semantics,
// translated from a row lock to a sorted-set pop since there is no
// transactional row store backing the queue.
var claimScript = redis.NewScript(`
local ready = KEYS[1]
local active = KEYS[2]
local now = tonumber(ARGV[1])
local lease_expires = tonumber(ARGV[2])

local ids = redis.call('ZRANGEBYSCORE', ready, '-inf', now, 'LIMIT', 0, 1)
if #ids == 0 then
	return nil
end
local id = ids[1]
redis.call('ZREM', ready, id)
redis.call('ZADD', active, lease_expires, id)
return id
`)

// Queue is the Redis-backed job store and claim/lease coordinator.
type Queue struct {
	rds *redis.Client
}

func New(rds *redis.Client) *Queue {
	return &Queue{rds: rds}
}

func jobKey(id string) string { return fmt.Sprintf(jobHashFmt, id) }

// Enqueue creates a new Job from req and places it on the ready set scored
// by now (FIFO for jobs with no prior backoff delay).
func (q *Queue) Enqueue(ctx context.Context, req ExecutionRequest) (*Job, error) {
	now := time.Now().UTC()
	j := &Job{
		ID:           uuid.NewString(),
		Status:       StatusQueued,
		Request:      req,
		Retries:      req.Retries,
		RetryDelayMs: req.RetryDelayMs,
		RetryBackoff: req.RetryBackoff,
		DeviceKey:    fmt.Sprintf("%s:%d", req.Device, req.Port),
		SubmittedAt:  now,
		NextAttempt:  now,
	}
	if err := q.save(ctx, j); err != nil {
		return nil, err
	}
	if err := q.rds.ZAdd(ctx, readyZSet, redis.Z{Score: float64(now.UnixMilli()), Member: j.ID}).Err(); err != nil {
		return nil, perr.Storef("enqueue job %s: %v", j.ID, err)
	}
	return j, nil
}

func (q *Queue) save(ctx context.Context, j *Job) error {
	b, err := j.Marshal()
	if err != nil {
		return perr.Storef("marshal job %s: %v", j.ID, err)
	}
	if err := q.rds.Set(ctx, jobKey(j.ID), b, 0).Err(); err != nil {
		return perr.Storef("persist job %s: %v", j.ID, err)
	}
	return nil
}

// Get fetches a job's current record for poll/status reads.
func (q *Queue) Get(ctx context.Context, id string) (*Job, error) {
	b, err := q.rds.Get(ctx, jobKey(id)).Bytes()
	if err == redis.Nil {
		return nil, perr.NotFoundf("job %s not found", id)
	}
	if err != nil {
		return nil, perr.Storef("fetch job %s: %v", id, err)
	}
	return UnmarshalJob(b)
}

// Claim pops the earliest ready job (if any) and marks it active under a
// lease held by workerID. Returns (nil, nil) when the queue has nothing
// ready -- callers poll on a ticker rather than treating this as an error.
func (q *Queue) Claim(ctx context.Context, workerID string, leaseFor time.Duration) (*Job, error) {
	if leaseFor <= 0 {
		leaseFor = defaultLeaseFor
	}
	now := time.Now().UTC()
	leaseExpires := now.Add(leaseFor)

	id, err := claimScript.Run(ctx, q.rds, []string{readyZSet, activeZSet},
		now.UnixMilli(), leaseExpires.UnixMilli()).Text()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, perr.Storef("claim: %v", err)
	}

	j, err := q.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	j.Status = StatusActive
	j.WorkerID = workerID
	started := now
	j.StartedAt = &started
	j.Attempts++
	if err := q.save(ctx, j); err != nil {
		return nil, err
	}
	return j, nil
}

// Complete records a terminal success and removes the job from the active
// lease set. The job record itself is kept (not deleted, unlike the
// teacher's verification table) so poll requests after completion still
// resolve -- the API surface is poll-based, not push-based.
func (q *Queue) Complete(ctx context.Context, j *Job, results []CommandResult) error {
	now := time.Now().UTC()
	j.Status = StatusComplete
	j.Results = results
	j.CompletedAt = &now
	if err := q.rds.ZRem(ctx, activeZSet, j.ID).Err(); err != nil {
		return perr.Storef("complete job %s: %v", j.ID, err)
	}
	return q.save(ctx, j)
}

// Fail records a terminal failure (no further retries remain, or the error
// was classified permanent/unauthorized).
func (q *Queue) Fail(ctx context.Context, j *Job, cause error) error {
	now := time.Now().UTC()
	j.Status = StatusFailed
	j.Error = cause.Error()
	j.CompletedAt = &now
	if err := q.rds.ZRem(ctx, activeZSet, j.ID).Err(); err != nil {
		return perr.Storef("fail job %s: %v", j.ID, err)
	}
	return q.save(ctx, j)
}

// Requeue puts the job back on the ready set at nextAttempt, for transient
// errors and gating backoff alike. The caller (retry controller) decides
// nextAttempt and mutates j.Gating/j.RetryDelayMs beforehand.
func (q *Queue) Requeue(ctx context.Context, j *Job, nextAttempt time.Time) error {
	j.Status = StatusQueued
	j.NextAttempt = nextAttempt
	j.WorkerID = ""
	j.StartedAt = nil
	if err := q.rds.ZRem(ctx, activeZSet, j.ID).Err(); err != nil {
		return perr.Storef("requeue job %s: %v", j.ID, err)
	}
	if err := q.save(ctx, j); err != nil {
		return err
	}
	if err := q.rds.ZAdd(ctx, readyZSet, redis.Z{Score: float64(nextAttempt.UnixMilli()), Member: j.ID}).Err(); err != nil {
		return perr.Storef("requeue job %s: %v", j.ID, err)
	}
	return nil
}

// Abort marks a job as aborting; a worker observing this status on its next
// lease-renewal check must stop and call AckAborted rather than retry.
func (q *Queue) Abort(ctx context.Context, id string) error {
	j, err := q.Get(ctx, id)
	if err != nil {
		return err
	}
	if j.Terminal() {
		return nil
	}
	j.Status = StatusAborting
	return q.save(ctx, j)
}

// AckAborted finalizes an aborting job once the worker has stopped acting
// on it.
func (q *Queue) AckAborted(ctx context.Context, j *Job) error {
	now := time.Now().UTC()
	j.Status = StatusAborted
	j.CompletedAt = &now
	if err := q.rds.ZRem(ctx, activeZSet, j.ID).Err(); err != nil {
		return perr.Storef("abort job %s: %v", j.ID, err)
	}
	return q.save(ctx, j)
}

// SweepExpiredLeases returns active jobs whose lease has expired without
// completion (worker crash) so the caller can requeue them. Grounded on the
// same self-healing idea as the semaphore's score-based sweep.
func (q *Queue) SweepExpiredLeases(ctx context.Context) ([]*Job, error) {
	now := time.Now().UTC()
	ids, err := q.rds.ZRangeByScore(ctx, activeZSet, &redis.ZRangeBy{
		Min: "-inf", Max: fmt.Sprintf("%d", now.UnixMilli()),
	}).Result()
	if err != nil {
		return nil, perr.Storef("sweep expired leases: %v", err)
	}
	out := make([]*Job, 0, len(ids))
	for _, id := range ids {
		j, err := q.Get(ctx, id)
		if err != nil {
			continue
		}
		out = append(out, j)
	}
	return out, nil
}
