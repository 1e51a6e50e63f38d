package module

import (
	"context"

	"tower/internal/services/monitoring/domain"
	monitoringsvc "tower/internal/services/monitoring/service"
)

// Ports returns the module ports.
func (m *Module) Ports() any { return m.ports }

type adaptMonitoringPort struct{ svc monitoringsvc.Service }

func (a adaptMonitoringPort) ListWorkers(ctx context.Context) (domain.WorkersResult, error) {
	return a.svc.ListWorkers(ctx)
}

func (a adaptMonitoringPort) ListFailedCommands(ctx context.Context, q domain.FailedCommandsQuery) (domain.FailedCommandsResult, error) {
	return a.svc.ListFailedCommands(ctx, q)
}

func (a adaptMonitoringPort) GetDeviceStats(ctx context.Context, device string) (domain.DeviceStats, error) {
	return a.svc.GetDeviceStats(ctx, device)
}

func (a adaptMonitoringPort) GetSummary(ctx context.Context) (domain.StatsSummary, error) {
	return a.svc.GetSummary(ctx)
}
