// Package service implements cache administration on top of the result
// cache manager.
package service

import (
	"context"
	"fmt"
	"strings"

	"tower/internal/core/cache"
	"tower/internal/services/cacheadmin/domain"
)

// Service is the cache administration port.
type Service interface {
	domain.ServicePort
}

// Svc adapts cache.Manager to domain.ServicePort.
type Svc struct {
	cache *cache.Manager
}

// New constructs the cache administration service.
func New(c *cache.Manager) *Svc {
	if c == nil {
		panic("cacheadmin: cache manager is required")
	}
	return &Svc{cache: c}
}

// ClearAll purges every cache entry.
func (s *Svc) ClearAll(ctx context.Context) (domain.InvalidateResult, error) {
	n, err := s.cache.ClearAll(ctx)
	if err != nil {
		return domain.InvalidateResult{}, err
	}
	return domain.InvalidateResult{
		DeletedCount: n,
		Message:      fmt.Sprintf("Cleared %d cache entries", n),
	}, nil
}

// InvalidateDevice purges every cache entry scoped to one device.
func (s *Svc) InvalidateDevice(ctx context.Context, device string) (domain.InvalidateResult, error) {
	n, err := s.cache.InvalidateDevice(ctx, device)
	if err != nil {
		return domain.InvalidateResult{}, err
	}
	return domain.InvalidateResult{
		Device:       device,
		DeletedCount: n,
		Message:      fmt.Sprintf("Invalidated %d cache entries for %s", n, device),
	}, nil
}

// ListKeys lists cache keys, optionally scoped to one device.
func (s *Svc) ListKeys(ctx context.Context, device string) (domain.ListKeysResult, error) {
	keys, err := s.cache.ListKeys(ctx, device)
	if err != nil {
		return domain.ListKeysResult{}, err
	}
	return domain.ListKeysResult{DeviceFilter: device, Count: len(keys), Keys: keys}, nil
}

// Stats summarizes the cache: total entries, entries grouped by device
// (each listed key is "device:command", the key prefix already stripped),
// and the configured TTL bounds.
func (s *Svc) Stats(ctx context.Context) (domain.StatsResult, error) {
	keys, err := s.cache.ListKeys(ctx, "")
	if err != nil {
		return domain.StatsResult{}, err
	}

	perDevice := make(map[string]int, len(keys))
	for _, k := range keys {
		device, _, ok := strings.Cut(k, ":")
		if !ok {
			device = k
		}
		perDevice[device]++
	}

	cfg := s.cache.Config()
	return domain.StatsResult{
		Enabled:          cfg.Enabled,
		TotalEntries:     len(keys),
		DevicesCached:    len(perDevice),
		EntriesPerDevice: perDevice,
		DefaultTTL:       int(cfg.DefaultTTL.Seconds()),
		MaxTTL:           int(cfg.MaxTTL.Seconds()),
		KeyPrefix:        cfg.KeyPrefix,
	}, nil
}
