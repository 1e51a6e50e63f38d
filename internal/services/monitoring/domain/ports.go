package domain

import "context"

// ServicePort is consumed by HTTP handlers and other modules.
type ServicePort interface {
	ListWorkers(ctx context.Context) (WorkersResult, error)
	ListFailedCommands(ctx context.Context, q FailedCommandsQuery) (FailedCommandsResult, error)
	GetDeviceStats(ctx context.Context, device string) (DeviceStats, error)
	GetSummary(ctx context.Context) (StatsSummary, error)
}
