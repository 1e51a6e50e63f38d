// Package service implements the monitoring read API on top of the stats
// recorder's Redis-backed counters, streams, and heartbeats.
package service

import (
	"context"
	"time"

	"tower/internal/core/stats"
	"tower/internal/services/monitoring/domain"
)

// Service is the monitoring port.
type Service interface {
	domain.ServicePort
}

// Svc adapts stats.Recorder to domain.ServicePort.
type Svc struct {
	stats *stats.Recorder
}

// New constructs the monitoring service.
func New(s *stats.Recorder) *Svc {
	if s == nil {
		panic("monitoring: stats recorder is required")
	}
	return &Svc{stats: s}
}

// ListWorkers reports every worker's heartbeat freshness.
func (s *Svc) ListWorkers(ctx context.Context) (domain.WorkersResult, error) {
	workers, err := s.stats.ListWorkers(ctx)
	if err != nil {
		return domain.WorkersResult{}, err
	}
	out := make([]domain.Worker, 0, len(workers))
	for _, w := range workers {
		out = append(out, domain.Worker{
			ID: w.ID, Status: w.Status, LastHeartbeat: w.LastHeartbeat,
			SecondsSinceHeartbeat: w.SecondsSinceHeartbeat,
			Hostname:              w.Hostname, Version: w.Version, PID: w.PID,
		})
	}
	return domain.WorkersResult{Workers: out, Total: len(out)}, nil
}

// ListFailedCommands queries the capped failed-commands stream.
func (s *Svc) ListFailedCommands(ctx context.Context, q domain.FailedCommandsQuery) (domain.FailedCommandsResult, error) {
	var since time.Time
	if q.Since > 0 {
		since = time.Unix(q.Since, 0)
	}
	failures, err := s.stats.ListFailedCommands(ctx, stats.FailedCommandFilter{
		Device: q.Device, ErrorType: q.ErrorType, Since: since, Limit: q.Limit,
	})
	if err != nil {
		return domain.FailedCommandsResult{}, err
	}
	out := make([]domain.FailedCommand, 0, len(failures))
	for _, f := range failures {
		out = append(out, domain.FailedCommand{
			Timestamp: f.Timestamp, Device: f.Device, Command: f.Command,
			ErrorType: f.ErrorType, Error: f.Error, JobID: f.JobID,
			Worker: f.Worker, CredentialID: f.CredentialID, Attempts: f.Attempts,
		})
	}
	return domain.FailedCommandsResult{Failures: out, Total: len(out)}, nil
}

// GetDeviceStats reports success/failure counters and recent failures for
// one device.
func (s *Svc) GetDeviceStats(ctx context.Context, device string) (domain.DeviceStats, error) {
	ds, err := s.stats.GetDeviceStats(ctx, device)
	if err != nil {
		return domain.DeviceStats{}, err
	}
	out := domain.DeviceStats{Device: ds.Device}
	out.Stats.TotalSuccess = ds.TotalSuccess
	out.Stats.TotalFailed = ds.TotalFailed
	out.Stats.Total = ds.Total
	out.Stats.FailureRate = ds.FailureRate
	out.Stats.ErrorBreakdown = ds.ErrorBreakdown
	out.RecentFailures = make([]domain.FailedCommand, 0, len(ds.RecentFailures))
	for _, f := range ds.RecentFailures {
		out.RecentFailures = append(out.RecentFailures, domain.FailedCommand{
			Timestamp: f.Timestamp, Device: f.Device, Command: f.Command,
			ErrorType: f.ErrorType, Error: f.Error, JobID: f.JobID,
			Worker: f.Worker, CredentialID: f.CredentialID, Attempts: f.Attempts,
		})
	}
	return out, nil
}

// GetSummary reports the global, per-worker, and top-device counters.
func (s *Svc) GetSummary(ctx context.Context) (domain.StatsSummary, error) {
	sum, err := s.stats.GetSummary(ctx)
	if err != nil {
		return domain.StatsSummary{}, err
	}
	out := domain.StatsSummary{}
	out.Global.TotalJobs = sum.Global.TotalJobs
	out.Global.Successful = sum.Global.Successful
	out.Global.Failed = sum.Global.Failed
	out.Global.SuccessRate = sum.Global.SuccessRate
	out.Workers = convertCounterTotals(sum.Workers)
	out.TopDevices = convertCounterTotals(sum.TopDevices)
	return out, nil
}

func convertCounterTotals(in []stats.CounterTotal) []domain.CounterTotal {
	out := make([]domain.CounterTotal, 0, len(in))
	for _, c := range in {
		out = append(out, domain.CounterTotal{ID: c.ID, Complete: c.Complete, Failed: c.Failed, Total: c.Total})
	}
	return out
}
