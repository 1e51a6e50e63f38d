// Package semaphore implements the per-device concurrency gate: a Redis
// sorted set of in-flight job ids scored by acquisition time, capped at a
// configurable concurrency limit and self-cleaning via a score-based
// expiry sweep on every acquire attempt.
package semaphore

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	perr "tower/internal/platform/errors"
)

const keyPrefix = "device_lease:"

// acquireScript mirrors the Python DeviceSemaphore.acquire_lease Lua body:
// sweep stale members scored before (now - ttl), check capacity, and only
// then add the new member with an EXPIRE refreshed to 2x the lease TTL
// (rounded up to whole seconds, since EXPIRE takes an integer) so the set
// self-heals even if ReleaseLease is never called (worker crash).
var acquireScript = redis.NewScript(`
local now = tonumber(ARGV[1])
local ttl = tonumber(ARGV[2])
local job_id = ARGV[3]
local max_concurrent = tonumber(ARGV[4])

redis.call('ZREMRANGEBYSCORE', KEYS[1], '-inf', now - ttl)
local current = redis.call('ZCARD', KEYS[1])
if current >= max_concurrent then
	return 0
end
redis.call('ZADD', KEYS[1], now, job_id)
redis.call('EXPIRE', KEYS[1], math.ceil(ttl * 2))
return 1
`)

// Semaphore gates concurrent command execution against a single device.
type Semaphore struct {
	rds      *redis.Client
	deviceID string
	maxConc  int
	leaseTTL time.Duration
}

// New constructs a Semaphore for one device. leaseTTL bounds how long a
// lease survives without being released (worker crash safety net);
// maxConcurrent is the device's configured concurrency ceiling.
func New(rds *redis.Client, deviceID string, maxConcurrent int, leaseTTL time.Duration) *Semaphore {
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}
	if leaseTTL <= 0 {
		leaseTTL = 120 * time.Second
	}
	return &Semaphore{rds: rds, deviceID: deviceID, maxConc: maxConcurrent, leaseTTL: leaseTTL}
}

func (s *Semaphore) key() string { return keyPrefix + s.deviceID }

// AcquireLease attempts to reserve one of the device's concurrency slots
// for jobID. It returns false (not an error) when the device is already at
// capacity; callers should treat that as a gating signal, not a failure.
func (s *Semaphore) AcquireLease(ctx context.Context, jobID string) (bool, error) {
	now := float64(time.Now().UnixMilli()) / 1000.0
	res, err := acquireScript.Run(ctx, s.rds, []string{s.key()},
		now, s.leaseTTL.Seconds(), jobID, s.maxConc).Int()
	if err != nil {
		return false, perr.Storef("semaphore acquire for device %s: %v", s.deviceID, err)
	}
	return res == 1, nil
}

// ReleaseLease removes jobID's slot. Safe to call even if AcquireLease was
// never called or already expired naturally; a failure here is logged by
// the caller but must never block job completion (the TTL-based EXPIRE set
// at acquire time is the real backstop).
func (s *Semaphore) ReleaseLease(ctx context.Context, jobID string) error {
	if err := s.rds.ZRem(ctx, s.key(), jobID).Err(); err != nil {
		return perr.Storef("semaphore release for device %s: %v", s.deviceID, err)
	}
	return nil
}

// InFlight returns the current number of active leases for the device,
// useful for the monitoring/device-stats HTTP surface.
func (s *Semaphore) InFlight(ctx context.Context) (int64, error) {
	n, err := s.rds.ZCard(ctx, s.key()).Result()
	if err != nil {
		return 0, perr.Storef("semaphore count for device %s: %v", s.deviceID, err)
	}
	return n, nil
}

// DeviceKey returns the device's leased-job id key for operator tooling.
func DeviceKey(deviceID string) string { return keyPrefix + deviceID }

// String renders the semaphore's device/limit for log lines.
func (s *Semaphore) String() string {
	return fmt.Sprintf("semaphore(device=%s, max=%d, ttl=%s)", s.deviceID, s.maxConc, s.leaseTTL)
}
