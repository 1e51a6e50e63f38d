// Package domain holds DTOs for the dispatcher's submit/poll HTTP contract.
package domain

// ExecOptions are the flags common to every submission shape: cache policy,
// wait/timeout, and the retry/gating budgets a caller may override.
type ExecOptions struct {
	UseCache     bool `json:"use_cache"`
	CacheRefresh bool `json:"cache_refresh"`
	CacheTTL     int  `json:"cache_ttl_seconds,omitempty" validate:"omitempty,min=0"`

	Wait    bool `json:"wait"`
	Timeout int  `json:"timeout_seconds,omitempty" validate:"omitempty,min=1,max=600"`

	Retries      int  `json:"retries,omitempty" validate:"omitempty,min=0,max=50"`
	RetryDelayMs int  `json:"retry_delay_ms,omitempty" validate:"omitempty,min=0"`
	RetryBackoff bool `json:"retry_backoff,omitempty"`
	MaxQueueWait int  `json:"max_queue_wait_seconds,omitempty" validate:"omitempty,min=0"`

	// RawOutput requires Wait=true and exactly one command; the handler
	// unwraps the envelope to the command's raw text on success.
	RawOutput bool `json:"raw_output,omitempty"`
}

// RawExecuteInput is the "no inventory" submission: caller supplies the
// device address directly.
type RawExecuteInput struct {
	Host         string   `json:"host" validate:"required"`
	Port         int      `json:"port" validate:"required,min=1,max=65535"`
	CredentialID string   `json:"credential_id" validate:"required"`
	Commands     []string `json:"commands" validate:"required,min=1,dive,required"`
	ExecOptions
}

// DeviceExecuteInput is the single-command inventory-resolved submission.
type DeviceExecuteInput struct {
	Command string `json:"command" validate:"required"`
	ExecOptions
}

// DeviceExecuteBatchInput is the ordered multi-command inventory-resolved
// submission.
type DeviceExecuteBatchInput struct {
	Commands []string `json:"commands" validate:"required,min=1,dive,required"`
	ExecOptions
}

// CacheMeta reports the runner's aggregate and per-command cache outcome
// for a completed job.
type CacheMeta struct {
	CacheStatus string            `json:"cache_status"`
	Detail      map[string]string `json:"detail,omitempty"`
}

// JobMeta wraps the job's result metadata blocks; execution metadata is
// reserved for a future per-attempt timing breakdown.
type JobMeta struct {
	Cache CacheMeta `json:"cache"`
}

// JobResult is the job's success payload: commands mapped to raw output in
// request order, plus cache metadata.
type JobResult struct {
	Data map[string]string `json:"data"`
	Meta JobMeta           `json:"meta"`
}

// JobEnvelope is the poll/submit response shape for a job.
type JobEnvelope struct {
	ID       string     `json:"id"`
	Status   string     `json:"status"`
	Attempts int        `json:"attempts"`
	Result   *JobResult `json:"result,omitempty"`
	Error    string     `json:"error,omitempty"`
}
