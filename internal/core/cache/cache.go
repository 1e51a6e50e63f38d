// Package cache implements the Redis-backed result cache for device
// command output: SETEX-based entries with a JSON envelope of
// {result, ttl, cached_at}, device-scoped invalidation, and a normalized
// cache-key scheme shared with the command runner.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"tower/internal/core/normalize"
	"tower/internal/platform/logger"
)

// Status mirrors the Python CacheManager's hit/miss/disabled/error states.
type Status string

const (
	StatusHit      Status = "hit"
	StatusMiss     Status = "miss"
	StatusDisabled Status = "disabled"
	StatusError    Status = "error"
)

// Result is the outcome of a Get call.
type Result struct {
	Status     Status
	Value      json.RawMessage
	TTL        int
	CachedAt   time.Time
	AgeSeconds float64
}

// entry is the on-wire envelope stored in Redis.
type entry struct {
	Result   json.RawMessage `json:"result"`
	TTL      int             `json:"ttl"`
	CachedAt time.Time       `json:"cached_at"`
}

// Config controls cache enablement and TTL bounds.
type Config struct {
	Enabled    bool
	KeyPrefix  string // defaults to "cmd_cache"
	DefaultTTL time.Duration
	MaxTTL     time.Duration
	ScanCount  int64 // SCAN batch size, defaults to 200
}

// Manager is the Redis-backed result cache.
type Manager struct {
	rds  *redis.Client
	cfg  Config
	norm *normalize.Normalizer
}

func New(rds *redis.Client, cfg Config) *Manager {
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = "cmd_cache"
	}
	if cfg.DefaultTTL <= 0 {
		cfg.DefaultTTL = 5 * time.Minute
	}
	if cfg.MaxTTL <= 0 {
		cfg.MaxTTL = time.Hour
	}
	if cfg.ScanCount <= 0 {
		cfg.ScanCount = 200
	}
	return &Manager{rds: rds, cfg: cfg, norm: normalize.New()}
}

// Config returns the manager's resolved configuration, for callers (such as
// the cache administration API) that need to report enablement and TTL
// bounds alongside key data.
func (m *Manager) Config() Config { return m.cfg }

func badResult(status Status) Result { return Result{Status: status} }

func (m *Manager) fullKey(key string) string {
	if strings.HasPrefix(key, m.cfg.KeyPrefix+":") {
		return key
	}
	return m.cfg.KeyPrefix + ":" + key
}

// GenerateCacheKey derives the cache key for a device+command pair using
// the same normalization pipeline the command runner applies to its
// inputs, so a cache set by one call path is found by any equivalent one.
func (m *Manager) GenerateCacheKey(deviceName, commandName string) string {
	d := m.norm.CacheKeyPart(strings.ToLower(strings.TrimSpace(deviceName)))
	c := m.norm.CacheKeyPart(strings.ToLower(strings.TrimSpace(commandName)))
	return fmt.Sprintf("%s:%s:%s", m.cfg.KeyPrefix, d, c)
}

// Get fetches a cached entry. A disabled cache, a miss, and a decode error
// are all distinguished so callers (and stats) can report precisely.
func (m *Manager) Get(ctx context.Context, key string) Result {
	log := logger.Named("cache")
	if !m.cfg.Enabled {
		return badResult(StatusDisabled)
	}
	full := m.fullKey(key)

	raw, err := m.rds.Get(ctx, full).Bytes()
	if err == redis.Nil {
		log.Debug().Str("key", full).Msg("cache miss")
		return badResult(StatusMiss)
	}
	if err != nil {
		log.Error().Err(err).Str("key", full).Msg("cache get failed")
		return badResult(StatusError)
	}

	var e entry
	if err := json.Unmarshal(raw, &e); err != nil {
		log.Warn().Err(err).Str("key", full).Msg("cache entry decode failed")
		return badResult(StatusError)
	}
	return Result{
		Status:     StatusHit,
		Value:      e.Result,
		TTL:        e.TTL,
		CachedAt:   e.CachedAt,
		AgeSeconds: time.Since(e.CachedAt).Seconds(),
	}
}

// Set stores value under key with a TTL capped at the configured max,
// falling back to the configured default when ttl is zero. A negative ttl
// is refused with an error.
func (m *Manager) Set(ctx context.Context, key string, value json.RawMessage, ttl time.Duration) error {
	log := logger.Named("cache")
	if !m.cfg.Enabled {
		return nil
	}
	full := m.fullKey(key)

	if ttl < 0 {
		return fmt.Errorf("cache ttl for %s must not be negative, got %v", full, ttl)
	}
	if ttl == 0 {
		ttl = m.cfg.DefaultTTL
	}
	if ttl > m.cfg.MaxTTL {
		ttl = m.cfg.MaxTTL
	}

	e := entry{Result: value, TTL: int(ttl.Seconds()), CachedAt: time.Now().UTC()}
	b, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encode cache entry %s: %w", full, err)
	}

	if err := m.rds.SetEx(ctx, full, b, ttl).Err(); err != nil {
		log.Error().Err(err).Str("key", full).Msg("cache set failed")
		return nil
	}
	log.Debug().Str("key", full).Dur("ttl", ttl).Msg("cache set")
	return nil
}

// Delete removes a single cache entry.
func (m *Manager) Delete(ctx context.Context, key string) error {
	if !m.cfg.Enabled {
		return nil
	}
	full := m.fullKey(key)
	if err := m.rds.Del(ctx, full).Err(); err != nil {
		logger.Named("cache").Error().Err(err).Str("key", full).Msg("cache delete failed")
		return nil
	}
	return nil
}

// scanKeys walks the keyspace with SCAN rather than the blocking KEYS
// command the Python implementation used, so invalidation and listing
// never stall other Redis clients on a large keyspace.
func (m *Manager) scanKeys(ctx context.Context, pattern string) ([]string, error) {
	var out []string
	var cursor uint64
	for {
		keys, next, err := m.rds.Scan(ctx, cursor, pattern, m.cfg.ScanCount).Result()
		if err != nil {
			return nil, err
		}
		out = append(out, keys...)
		cursor = next
		if cursor == 0 {
			break
		}
	}
	return out, nil
}

// InvalidateDevice deletes every cache entry for deviceName, returning the
// number of keys removed.
func (m *Manager) InvalidateDevice(ctx context.Context, deviceName string) (int64, error) {
	log := logger.Named("cache")
	if !m.cfg.Enabled {
		return 0, nil
	}
	d := m.norm.CacheKeyPart(strings.ToLower(strings.TrimSpace(deviceName)))
	pattern := fmt.Sprintf("%s:%s:*", m.cfg.KeyPrefix, d)

	keys, err := m.scanKeys(ctx, pattern)
	if err != nil {
		log.Error().Err(err).Str("device", deviceName).Msg("invalidate device scan failed")
		return 0, nil
	}
	if len(keys) == 0 {
		return 0, nil
	}
	n, err := m.rds.Del(ctx, keys...).Result()
	if err != nil {
		log.Error().Err(err).Str("device", deviceName).Msg("invalidate device delete failed")
		return 0, nil
	}
	log.Debug().Int64("deleted", n).Str("device", deviceName).Msg("invalidated device cache")
	return n, nil
}

// ClearAll deletes every cache entry under the configured prefix.
func (m *Manager) ClearAll(ctx context.Context) (int64, error) {
	log := logger.Named("cache")
	if !m.cfg.Enabled {
		return 0, nil
	}
	keys, err := m.scanKeys(ctx, m.cfg.KeyPrefix+":*")
	if err != nil {
		log.Error().Err(err).Msg("clear all scan failed")
		return 0, nil
	}
	if len(keys) == 0 {
		return 0, nil
	}
	n, err := m.rds.Del(ctx, keys...).Result()
	if err != nil {
		log.Error().Err(err).Msg("clear all delete failed")
		return 0, nil
	}
	log.Debug().Int64("deleted", n).Msg("cleared all cache entries")
	return n, nil
}

// ListKeys lists cache keys with the configured prefix stripped, optionally
// filtered to one device.
func (m *Manager) ListKeys(ctx context.Context, deviceName string) ([]string, error) {
	if !m.cfg.Enabled {
		return nil, nil
	}
	pattern := m.cfg.KeyPrefix + ":*"
	if deviceName != "" {
		d := m.norm.CacheKeyPart(strings.ToLower(strings.TrimSpace(deviceName)))
		pattern = fmt.Sprintf("%s:%s:*", m.cfg.KeyPrefix, d)
	}

	keys, err := m.scanKeys(ctx, pattern)
	if err != nil {
		logger.Named("cache").Error().Err(err).Msg("list keys scan failed")
		return nil, nil
	}
	prefixLen := len(m.cfg.KeyPrefix) + 1
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		if len(k) > prefixLen {
			out = append(out, k[prefixLen:])
		}
	}
	return out, nil
}
