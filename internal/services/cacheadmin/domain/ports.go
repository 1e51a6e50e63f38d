package domain

import "context"

// ServicePort is consumed by HTTP handlers and other modules.
type ServicePort interface {
	ClearAll(ctx context.Context) (InvalidateResult, error)
	InvalidateDevice(ctx context.Context, device string) (InvalidateResult, error)
	ListKeys(ctx context.Context, device string) (ListKeysResult, error)
	Stats(ctx context.Context) (StatsResult, error)
}
