// Package queue implements the job-dispatch queue: a Redis-backed store of
// ExecutionRequest jobs with NEW/QUEUED/ACTIVE/COMPLETE/FAILED/ABORTED
// status transitions and at-least-once lease-based claiming, translating
// the teacher's SQL `FOR UPDATE SKIP LOCKED` dequeue pattern into a Redis
// sorted-set claim script.
package queue

import (
	"encoding/json"
	"time"
)

// Status is the lifecycle state of a Job.
type Status string

const (
	StatusNew       Status = "new"
	StatusQueued    Status = "queued"
	StatusActive    Status = "active"
	StatusComplete  Status = "complete"
	StatusFailed    Status = "failed"
	StatusAborting  Status = "aborting"
	StatusAborted   Status = "aborted"
)

// ExecutionRequest is the caller-submitted payload describing what to run.
type ExecutionRequest struct {
	Device       string   `json:"device" validate:"required"`
	Port         int      `json:"port" validate:"required,min=1,max=65535"`
	Driver       string   `json:"driver" validate:"required,oneof=drivera driverb"`
	CredentialID string   `json:"credential_id" validate:"required"`
	Commands     []string `json:"commands" validate:"required,min=1,dive,required"`
	UseCache     bool     `json:"use_cache"`
	CacheRefresh bool     `json:"cache_refresh"`
	CacheTTL     int      `json:"cache_ttl_seconds,omitempty"`
	MaxQueueWait int      `json:"max_queue_wait_seconds,omitempty"`
	Retries      int      `json:"retries,omitempty"`
	RetryDelayMs int      `json:"retry_delay_ms,omitempty"`
	RetryBackoff bool     `json:"retry_backoff,omitempty"`
}

// CommandResult is the outcome of one command in an ExecutionRequest.
type CommandResult struct {
	Command    string `json:"command"`
	Output     string `json:"output,omitempty"`
	Error      string `json:"error,omitempty"`
	CacheState string `json:"cache_state"` // hit|miss
}

// GatingState is job-bound gating/backoff bookkeeping. It is stored on the
// Job record itself (not in worker-process memory) so a job survives
// worker crashes and queue migrations without losing its wait budget --
// the resolution to Open Question #1.
type GatingState struct {
	StartedAt            time.Time `json:"started_at"`
	Count                int       `json:"count"`
	OriginalRetries      int       `json:"original_retries"`
	OriginalRetryDelayMs int       `json:"original_retry_delay_ms"`
	OriginalRetryBackoff bool      `json:"original_retry_backoff"`
}

// Job is the full persisted record for one ExecutionRequest.
type Job struct {
	ID      string `json:"id"`
	Status  Status `json:"status"`
	Request ExecutionRequest `json:"request"`

	Attempts     int  `json:"attempts"`
	Retries      int  `json:"retries"`
	RetryDelayMs int  `json:"retry_delay_ms"`
	RetryBackoff bool `json:"retry_backoff"`

	Gating *GatingState `json:"gating,omitempty"`

	Results []CommandResult `json:"results,omitempty"`
	Error   string          `json:"error,omitempty"`

	WorkerID  string `json:"worker_id,omitempty"`
	DeviceKey string `json:"device_key"`

	SubmittedAt time.Time  `json:"submitted_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	NextAttempt time.Time  `json:"next_attempt"`
}

// Marshal/Unmarshal keep job encoding in one place so queue and worker code
// never hand-roll JSON shapes that could drift.

func (j *Job) Marshal() ([]byte, error) { return json.Marshal(j) }

func UnmarshalJob(b []byte) (*Job, error) {
	var j Job
	if err := json.Unmarshal(b, &j); err != nil {
		return nil, err
	}
	return &j, nil
}

// Terminal reports whether the job has reached an end state.
func (j *Job) Terminal() bool {
	switch j.Status {
	case StatusComplete, StatusFailed, StatusAborted:
		return true
	default:
		return false
	}
}
