package domain

import "context"

// ServicePort is consumed by HTTP handlers and other modules.
type ServicePort interface {
	SubmitRaw(ctx context.Context, driverFamily string, in RawExecuteInput) (JobEnvelope, error)
	SubmitDevice(ctx context.Context, device string, in DeviceExecuteInput) (JobEnvelope, error)
	SubmitDeviceBatch(ctx context.Context, device string, in DeviceExecuteBatchInput) (JobEnvelope, error)
	Poll(ctx context.Context, jobID string) (JobEnvelope, error)
}
