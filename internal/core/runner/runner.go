// Package runner implements the cache-aware command runner: for each
// requested command it attempts a cache read, falls back to live
// execution on a miss, writes the result back under the effective TTL,
// and aggregates per-command cache status into one overall verdict.
package runner

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"tower/internal/core/cache"
	"tower/internal/core/plugins"
	"tower/internal/platform/logger"
)

// AggregateStatus summarizes cache behavior across every command in a run.
type AggregateStatus string

const (
	AggregateHit      AggregateStatus = "hit"
	AggregateMiss     AggregateStatus = "miss"
	AggregatePartial  AggregateStatus = "partial"
	AggregateDisabled AggregateStatus = "disabled"
)

// CachePolicy controls whether and how the cache participates in a run.
type CachePolicy struct {
	Use     bool
	Refresh bool          // force a live execution even on a would-be hit
	TTL     time.Duration // 0 means use the cache's configured default
}

// CommandDetail is the per-command cache/execution outcome. Command holds
// the deduplicated key (cmd, cmd_1, cmd_2, ...), not the raw command text,
// so repeated commands stay distinguishable once this flows into
// queue.CommandResult and the dispatch response maps.
type CommandDetail struct {
	Command    string    `json:"command"`
	CacheState string    `json:"cache_state"` // hit|miss
	Age        float64   `json:"age_seconds,omitempty"`
	CachedAt   time.Time `json:"cached_at,omitempty"`
	TTL        int       `json:"ttl,omitempty"`
	Error      string    `json:"error,omitempty"`
}

// Result is the runner's full output for one ExecutionRequest's commands.
type Result struct {
	Data   map[string]string        `json:"data"` // deduplicated key -> raw output
	Status AggregateStatus          `json:"status"`
	Detail map[string]CommandDetail `json:"detail"`
	Order  []string                 `json:"-"` // keys of Data/Detail in execution order
}

// Runner composes a result cache with a live device session.
type Runner struct {
	cache *cache.Manager
}

func New(c *cache.Manager) *Runner { return &Runner{cache: c} }

// Run executes commands in order against sess, using deviceName to scope
// cache keys. Duplicate commands in the request are suffixed _1, _2, ...
// so every entry in Data/Detail has a unique key while execution order is
// preserved.
func (r *Runner) Run(ctx context.Context, deviceName string, commands []string, sess plugins.DriverSession, policy CachePolicy) (*Result, error) {
	log := logger.Named("runner")
	res := &Result{
		Data:   make(map[string]string, len(commands)),
		Detail: make(map[string]CommandDetail, len(commands)),
	}

	seen := make(map[string]int, len(commands))
	var hits, misses int

	for _, cmd := range commands {
		key := dedupeKey(seen, cmd)
		res.Order = append(res.Order, key)

		if !policy.Use {
			out, err := r.execute(ctx, sess, cmd)
			if err != nil {
				res.Detail[key] = CommandDetail{Command: key, CacheState: "miss", Error: err.Error()}
				return res, err
			}
			res.Data[key] = out
			res.Detail[key] = CommandDetail{Command: key, CacheState: "miss"}
			misses++
			continue
		}

		cacheKey := r.cache.GenerateCacheKey(deviceName, cmd)

		if !policy.Refresh {
			got := r.cache.Get(ctx, cacheKey)
			if got.Status == cache.StatusHit {
				var out string
				if err := json.Unmarshal(got.Value, &out); err == nil {
					res.Data[key] = out
					res.Detail[key] = CommandDetail{
						Command: key, CacheState: "hit",
						Age: got.AgeSeconds, CachedAt: got.CachedAt, TTL: got.TTL,
					}
					hits++
					continue
				}
				log.Warn().Str("command", cmd).Msg("cache hit decode failed, falling back to live execution")
			}
		}

		out, err := r.execute(ctx, sess, cmd)
		if err != nil {
			res.Detail[key] = CommandDetail{Command: key, CacheState: "miss", Error: err.Error()}
			return res, err
		}
		res.Data[key] = out
		res.Detail[key] = CommandDetail{Command: key, CacheState: "miss"}
		misses++

		if b, err := json.Marshal(out); err == nil {
			if err := r.cache.Set(ctx, cacheKey, b, policy.TTL); err != nil {
				log.Warn().Err(err).Str("command", cmd).Msg("cache write-back failed")
			}
		}
	}

	res.Status = aggregateStatus(policy.Use, hits, misses)
	return res, nil
}

func (r *Runner) execute(ctx context.Context, sess plugins.DriverSession, cmd string) (string, error) {
	out, err := sess.RunCommand(ctx, cmd)
	if err != nil {
		return "", fmt.Errorf("execute %q: %w", cmd, err)
	}
	return out, nil
}

func aggregateStatus(cacheUsed bool, hits, misses int) AggregateStatus {
	if !cacheUsed {
		return AggregateDisabled
	}
	switch {
	case hits > 0 && misses == 0:
		return AggregateHit
	case misses > 0 && hits == 0:
		return AggregateMiss
	default:
		return AggregatePartial
	}
}

// dedupeKey returns cmd unchanged on first occurrence, then cmd_1, cmd_2,
// ... on subsequent occurrences, preserving per-command execution order in
// the result maps even when the caller repeats a command.
func dedupeKey(seen map[string]int, cmd string) string {
	n := seen[cmd]
	seen[cmd] = n + 1
	if n == 0 {
		return cmd
	}
	return fmt.Sprintf("%s_%d", cmd, n)
}
