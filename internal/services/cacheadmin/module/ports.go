package module

import (
	"context"

	"tower/internal/services/cacheadmin/domain"
	cachesvc "tower/internal/services/cacheadmin/service"
)

// Ports returns the module ports.
func (m *Module) Ports() any { return m.ports }

type adaptCachePort struct{ svc cachesvc.Service }

func (a adaptCachePort) ClearAll(ctx context.Context) (domain.InvalidateResult, error) {
	return a.svc.ClearAll(ctx)
}

func (a adaptCachePort) InvalidateDevice(ctx context.Context, device string) (domain.InvalidateResult, error) {
	return a.svc.InvalidateDevice(ctx, device)
}

func (a adaptCachePort) ListKeys(ctx context.Context, device string) (domain.ListKeysResult, error) {
	return a.svc.ListKeys(ctx, device)
}

func (a adaptCachePort) Stats(ctx context.Context) (domain.StatsResult, error) {
	return a.svc.Stats(ctx)
}
