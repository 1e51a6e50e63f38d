// Package service implements the dispatcher workflow: resolve inventory and
// credential (by calling the queue's already-resolved shape), enqueue, and
// optionally block on completion by re-polling the queue at a fixed
// interval -- the teacher's HTTP layer has no pub/sub primitive handy and
// neither does this broker, so we re-poll rather than invent one.
package service

import (
	"context"
	"strings"
	"time"

	"tower/internal/core/plugins"
	"tower/internal/core/queue"
	perr "tower/internal/platform/errors"
	"tower/internal/services/dispatch/domain"
)

// pollInterval is the fixed re-poll cadence for a wait=true submission.
const pollInterval = 250 * time.Millisecond

// Service defines the dispatcher's service contract.
type Service interface {
	domain.ServicePort
}

// Svc implements Service over the job queue and an inventory plugin for
// device-name resolution.
type Svc struct {
	Queue     *queue.Queue
	Inventory plugins.InventoryPort
}

func New(q *queue.Queue, inv plugins.InventoryPort) *Svc {
	if q == nil {
		panic("dispatch.Service requires a non nil Queue")
	}
	return &Svc{Queue: q, Inventory: inv}
}

func (s *Svc) SubmitRaw(ctx context.Context, driverFamily string, in domain.RawExecuteInput) (domain.JobEnvelope, error) {
	driver, err := normalizeDriverFamily(driverFamily)
	if err != nil {
		return domain.JobEnvelope{}, err
	}
	if err := validateRawOutput(in.ExecOptions, len(in.Commands)); err != nil {
		return domain.JobEnvelope{}, err
	}

	req := queue.ExecutionRequest{
		Device:       in.Host,
		Port:         in.Port,
		Driver:       driver,
		CredentialID: in.CredentialID,
		Commands:     in.Commands,
		UseCache:     in.UseCache,
		CacheRefresh: in.CacheRefresh,
		CacheTTL:     in.CacheTTL,
		MaxQueueWait: in.MaxQueueWait,
		Retries:      in.Retries,
		RetryDelayMs: in.RetryDelayMs,
		RetryBackoff: in.RetryBackoff,
	}
	return s.submit(ctx, req, in.ExecOptions)
}

func (s *Svc) SubmitDevice(ctx context.Context, device string, in domain.DeviceExecuteInput) (domain.JobEnvelope, error) {
	return s.submitFromInventory(ctx, device, []string{in.Command}, in.ExecOptions)
}

func (s *Svc) SubmitDeviceBatch(ctx context.Context, device string, in domain.DeviceExecuteBatchInput) (domain.JobEnvelope, error) {
	return s.submitFromInventory(ctx, device, in.Commands, in.ExecOptions)
}

func (s *Svc) submitFromInventory(ctx context.Context, device string, commands []string, opts domain.ExecOptions) (domain.JobEnvelope, error) {
	if s.Inventory == nil {
		return domain.JobEnvelope{}, perr.Internalf("no inventory plugin configured")
	}
	if err := validateRawOutput(opts, len(commands)); err != nil {
		return domain.JobEnvelope{}, err
	}

	cfg, err := s.Inventory.GetDeviceConfig(ctx, device)
	if err != nil {
		return domain.JobEnvelope{}, err
	}

	req := queue.ExecutionRequest{
		Device:       cfg.Host,
		Port:         cfg.Port,
		Driver:       cfg.Adapter,
		CredentialID: cfg.CredentialID,
		Commands:     commands,
		UseCache:     opts.UseCache,
		CacheRefresh: opts.CacheRefresh,
		CacheTTL:     opts.CacheTTL,
		MaxQueueWait: opts.MaxQueueWait,
		Retries:      opts.Retries,
		RetryDelayMs: opts.RetryDelayMs,
		RetryBackoff: opts.RetryBackoff,
	}
	return s.submit(ctx, req, opts)
}

func (s *Svc) submit(ctx context.Context, req queue.ExecutionRequest, opts domain.ExecOptions) (domain.JobEnvelope, error) {
	j, err := s.Queue.Enqueue(ctx, req)
	if err != nil {
		return domain.JobEnvelope{}, err
	}
	if !opts.Wait {
		return toEnvelope(j), nil
	}

	timeout := time.Duration(opts.Timeout) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return s.waitFor(ctx, j.ID, timeout)
}

// waitFor re-polls the queue at pollInterval until the job reaches a
// terminal status or timeout elapses. Timing out the wait never cancels
// the job -- it keeps running and the caller can poll /job/{id} later.
func (s *Svc) waitFor(ctx context.Context, jobID string, timeout time.Duration) (domain.JobEnvelope, error) {
	deadline := time.Now().Add(timeout)
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		j, err := s.Queue.Get(ctx, jobID)
		if err != nil {
			return domain.JobEnvelope{}, err
		}
		if j.Terminal() {
			return toEnvelope(j), nil
		}
		if time.Now().After(deadline) {
			return toEnvelope(j), nil
		}
		select {
		case <-ctx.Done():
			return domain.JobEnvelope{}, ctx.Err()
		case <-ticker.C:
		}
	}
}

func (s *Svc) Poll(ctx context.Context, jobID string) (domain.JobEnvelope, error) {
	j, err := s.Queue.Get(ctx, jobID)
	if err != nil {
		return domain.JobEnvelope{}, err
	}
	return toEnvelope(j), nil
}

func toEnvelope(j *queue.Job) domain.JobEnvelope {
	env := domain.JobEnvelope{
		ID:       j.ID,
		Status:   string(j.Status),
		Attempts: j.Attempts,
		Error:    j.Error,
	}
	if j.Status != queue.StatusComplete {
		return env
	}

	data := make(map[string]string, len(j.Results))
	detail := make(map[string]string, len(j.Results))
	hits, misses := 0, 0
	for _, r := range j.Results {
		data[r.Command] = r.Output
		detail[r.Command] = r.CacheState
		switch r.CacheState {
		case "hit":
			hits++
		case "miss":
			misses++
		}
	}
	env.Result = &domain.JobResult{
		Data: data,
		Meta: domain.JobMeta{Cache: domain.CacheMeta{
			CacheStatus: aggregateCacheStatus(j.Request.UseCache, hits, misses),
			Detail:      detail,
		}},
	}
	return env
}

func aggregateCacheStatus(cacheUsed bool, hits, misses int) string {
	if !cacheUsed {
		return "disabled"
	}
	switch {
	case hits > 0 && misses == 0:
		return "hit"
	case misses > 0 && hits == 0:
		return "miss"
	default:
		return "partial"
	}
}

// validateRawOutput enforces the spec's raw_output precondition: it
// requires wait=true and exactly one command in the request.
func validateRawOutput(opts domain.ExecOptions, commandCount int) error {
	if !opts.RawOutput {
		return nil
	}
	if !opts.Wait {
		return perr.InvalidArgf("raw_output requires wait=true")
	}
	if commandCount != 1 {
		return perr.InvalidArgf("raw_output requires exactly one command")
	}
	return nil
}

func normalizeDriverFamily(family string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(family)) {
	case "a", "drivera":
		return "drivera", nil
	case "b", "driverb":
		return "driverb", nil
	default:
		return "", perr.InvalidArgf("unknown driver family %q (expected a|b)", family)
	}
}
