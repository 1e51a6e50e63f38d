package module

import (
	"context"

	"tower/internal/services/dispatch/domain"
	dispatchsvc "tower/internal/services/dispatch/service"
)

// Ports returns the module ports.
func (m *Module) Ports() any { return m.ports }

type adaptDispatchPort struct{ svc dispatchsvc.Service }

func (a adaptDispatchPort) SubmitRaw(ctx context.Context, driverFamily string, in domain.RawExecuteInput) (domain.JobEnvelope, error) {
	return a.svc.SubmitRaw(ctx, driverFamily, in)
}

func (a adaptDispatchPort) SubmitDevice(ctx context.Context, device string, in domain.DeviceExecuteInput) (domain.JobEnvelope, error) {
	return a.svc.SubmitDevice(ctx, device, in)
}

func (a adaptDispatchPort) SubmitDeviceBatch(ctx context.Context, device string, in domain.DeviceExecuteBatchInput) (domain.JobEnvelope, error) {
	return a.svc.SubmitDeviceBatch(ctx, device, in)
}

func (a adaptDispatchPort) Poll(ctx context.Context, jobID string) (domain.JobEnvelope, error) {
	return a.svc.Poll(ctx, jobID)
}
