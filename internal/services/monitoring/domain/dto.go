// Package domain holds the wire types for the monitoring API.
package domain

import "time"

// Worker mirrors stats.WorkerStatus on the wire.
type Worker struct {
	ID                    string    `json:"id"`
	Status                string    `json:"status"`
	LastHeartbeat         time.Time `json:"last_heartbeat"`
	SecondsSinceHeartbeat int64     `json:"seconds_since_heartbeat"`
	Hostname              string    `json:"hostname"`
	Version               string    `json:"version"`
	PID                   int       `json:"pid"`
}

// WorkersResult is returned by GET /monitoring/workers.
type WorkersResult struct {
	Workers []Worker `json:"workers"`
	Total   int      `json:"total"`
}

// FailedCommand mirrors stats.FailedCommand on the wire.
type FailedCommand struct {
	Timestamp    time.Time `json:"timestamp"`
	Device       string    `json:"device"`
	Command      string    `json:"command"`
	ErrorType    string    `json:"error_type"`
	Error        string    `json:"error"`
	JobID        string    `json:"job_id"`
	Worker       string    `json:"worker"`
	CredentialID string    `json:"credential_id"`
	Attempts     int       `json:"attempts"`
}

// FailedCommandsQuery is the GET /monitoring/failed_commands query.
type FailedCommandsQuery struct {
	Device    string
	ErrorType string
	Since     int64
	Limit     int
}

// FailedCommandsResult is returned by GET /monitoring/failed_commands.
type FailedCommandsResult struct {
	Failures []FailedCommand `json:"failures"`
	Total    int             `json:"total"`
}

// DeviceStats is returned by GET /monitoring/device_stats/{name}.
type DeviceStats struct {
	Device string `json:"device"`
	Stats  struct {
		TotalSuccess   int64            `json:"total_success"`
		TotalFailed    int64            `json:"total_failed"`
		Total          int64            `json:"total"`
		FailureRate    float64          `json:"failure_rate"`
		ErrorBreakdown map[string]int64 `json:"error_breakdown"`
	} `json:"stats"`
	RecentFailures []FailedCommand `json:"recent_failures"`
}

// CounterTotal is a complete/failed breakdown keyed by worker or device id.
type CounterTotal struct {
	ID       string `json:"id"`
	Complete int64  `json:"complete"`
	Failed   int64  `json:"failed"`
	Total    int64  `json:"total"`
}

// StatsSummary is returned by GET /monitoring/stats/summary.
type StatsSummary struct {
	Global struct {
		TotalJobs   int64   `json:"total_jobs"`
		Successful  int64   `json:"successful"`
		Failed      int64   `json:"failed"`
		SuccessRate float64 `json:"success_rate"`
	} `json:"global"`
	Workers    []CounterTotal `json:"workers"`
	TopDevices []CounterTotal `json:"top_devices"`
}
