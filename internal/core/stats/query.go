package stats

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"tower/internal/platform/logger"
)

const heartbeatKeyPrefix = "tom:worker:heartbeat:"

// WorkerStatus describes one worker's last known heartbeat.
type WorkerStatus struct {
	ID                    string    `json:"id"`
	Status                string    `json:"status"`
	LastHeartbeat         time.Time `json:"last_heartbeat"`
	SecondsSinceHeartbeat int64     `json:"seconds_since_heartbeat"`
	Hostname              string    `json:"hostname"`
	Version               string    `json:"version"`
	PID                   int       `json:"pid"`
}

// ListWorkers scans worker heartbeat keys and reports each worker's
// freshness: healthy under 60s, stale under 180s, unhealthy beyond that.
func (r *Recorder) ListWorkers(ctx context.Context) ([]WorkerStatus, error) {
	log := logger.Named("stats")
	var out []WorkerStatus

	iter := r.rds.Scan(ctx, 0, heartbeatKeyPrefix+"*", 200).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		raw, err := r.rds.Get(ctx, key).Bytes()
		if err != nil {
			continue
		}
		var hb heartbeat
		if err := json.Unmarshal(raw, &hb); err != nil {
			log.Warn().Err(err).Str("key", key).Msg("invalid heartbeat payload")
			continue
		}
		lastSeen := time.Unix(0, int64(hb.Timestamp*float64(time.Second)))
		secondsAgo := int64(time.Since(lastSeen).Seconds())

		status := "healthy"
		switch {
		case secondsAgo >= 180:
			status = "unhealthy"
		case secondsAgo >= 60:
			status = "stale"
		}

		out = append(out, WorkerStatus{
			ID:                    strings.TrimPrefix(key, heartbeatKeyPrefix),
			Status:                status,
			LastHeartbeat:         lastSeen,
			SecondsSinceHeartbeat: secondsAgo,
			Hostname:              hb.Hostname,
			Version:               hb.Version,
			PID:                   hb.PID,
		})
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("scan worker heartbeats: %w", err)
	}
	return out, nil
}

// FailedCommand is one entry from the failed-commands stream.
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

// FailedCommandFilter narrows ListFailedCommands.
type FailedCommandFilter struct {
	Device    string
	ErrorType string
	Since     time.Time
	Limit     int
}

// ListFailedCommands reads the capped failed-commands stream, newest
// first, applying the filter and capping at filter.Limit (default 100).
func (r *Recorder) ListFailedCommands(ctx context.Context, f FailedCommandFilter) ([]FailedCommand, error) {
	limit := f.Limit
	if limit <= 0 {
		limit = 100
	}

	max := "+"
	if !f.Since.IsZero() {
		max = fmt.Sprintf("%d-0", f.Since.UnixMilli())
	}

	entries, err := r.rds.XRevRangeN(ctx, failedStream, max, "-", int64(limit*2)).Result()
	if err != nil {
		return nil, fmt.Errorf("read failed-commands stream: %w", err)
	}

	out := make([]FailedCommand, 0, limit)
	for _, e := range entries {
		fc := FailedCommand{
			Device:       fieldString(e.Values, "device"),
			Command:      fieldString(e.Values, "command"),
			ErrorType:    fieldString(e.Values, "error_type"),
			Error:        fieldString(e.Values, "error"),
			JobID:        fieldString(e.Values, "job_id"),
			Worker:       fieldString(e.Values, "worker_id"),
			CredentialID: fieldString(e.Values, "credential_id"),
			Attempts:     1,
		}
		if a, err := strconv.Atoi(fieldString(e.Values, "attempts")); err == nil {
			fc.Attempts = a
		}
		if ts, ok := parseStreamID(e.ID); ok {
			fc.Timestamp = ts
		}

		if f.Device != "" && fc.Device != f.Device {
			continue
		}
		if f.ErrorType != "" && fc.ErrorType != f.ErrorType {
			continue
		}

		out = append(out, fc)
		if len(out) >= limit {
			break
		}
	}
	return out, nil
}

func parseStreamID(id string) (time.Time, bool) {
	ms, _, ok := strings.Cut(id, "-")
	n, err := strconv.ParseInt(ms, 10, 64)
	if !ok || err != nil {
		return time.Time{}, false
	}
	return time.UnixMilli(n), true
}

func fieldString(values map[string]interface{}, key string) string {
	v, ok := values[key]
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}

// DeviceStats is the success/failure breakdown and recent failures for one
// device.
type DeviceStats struct {
	Device         string           `json:"device"`
	TotalSuccess   int64            `json:"total_success"`
	TotalFailed    int64            `json:"total_failed"`
	Total          int64            `json:"total"`
	FailureRate    float64          `json:"failure_rate"`
	ErrorBreakdown map[string]int64 `json:"error_breakdown"`
	RecentFailures []FailedCommand  `json:"recent_failures"`
}

// GetDeviceStats reports device-scoped counters plus its 10 most recent
// failures from the shared failed-commands stream.
func (r *Recorder) GetDeviceStats(ctx context.Context, device string) (DeviceStats, error) {
	counters, err := r.rds.HGetAll(ctx, deviceKey(device)).Result()
	if err != nil {
		return DeviceStats{}, fmt.Errorf("read device counters: %w", err)
	}

	ds := DeviceStats{Device: device, ErrorBreakdown: map[string]int64{}}
	for field, raw := range counters {
		v, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			continue
		}
		switch {
		case field == "complete":
			ds.TotalSuccess = v
		case field == "failed":
			ds.TotalFailed = v
		case strings.HasSuffix(field, "_failed"):
			ds.ErrorBreakdown[strings.TrimSuffix(field, "_failed")] = v
		}
	}
	ds.Total = ds.TotalSuccess + ds.TotalFailed
	if ds.Total > 0 {
		ds.FailureRate = round2(float64(ds.TotalFailed) / float64(ds.Total) * 100)
	}

	recent, err := r.ListFailedCommands(ctx, FailedCommandFilter{Device: device, Limit: 10})
	if err != nil {
		return DeviceStats{}, err
	}
	ds.RecentFailures = recent
	return ds, nil
}

// GlobalStats is the system-wide success/failure summary.
type GlobalStats struct {
	TotalJobs   int64   `json:"total_jobs"`
	Successful  int64   `json:"successful"`
	Failed      int64   `json:"failed"`
	SuccessRate float64 `json:"success_rate"`
}

// CounterTotal is a complete/failed breakdown keyed by worker or device id.
type CounterTotal struct {
	ID       string `json:"id"`
	Complete int64  `json:"complete"`
	Failed   int64  `json:"failed"`
	Total    int64  `json:"total"`
}

// Summary is the overall system statistics summary.
type Summary struct {
	Global     GlobalStats    `json:"global"`
	Workers    []CounterTotal `json:"workers"`
	TopDevices []CounterTotal `json:"top_devices"`
}

// GetSummary aggregates the global counter hash, every per-worker counter
// hash, and the top 10 devices by job volume.
func (r *Recorder) GetSummary(ctx context.Context) (Summary, error) {
	var sum Summary

	global, err := r.rds.HGetAll(ctx, globalKey).Result()
	if err != nil {
		return Summary{}, fmt.Errorf("read global counters: %w", err)
	}
	sum.Global.Successful = counterField(global, "complete")
	sum.Global.Failed = counterField(global, "failed")
	sum.Global.TotalJobs = sum.Global.Successful + sum.Global.Failed
	if sum.Global.TotalJobs > 0 {
		sum.Global.SuccessRate = round2(float64(sum.Global.Successful) / float64(sum.Global.TotalJobs) * 100)
	}

	workers, err := r.scanCounterTotals(ctx, "tom:stats:worker:*")
	if err != nil {
		return Summary{}, err
	}
	sum.Workers = workers

	devices, err := r.scanCounterTotals(ctx, "tom:stats:device:*")
	if err != nil {
		return Summary{}, err
	}
	sort.Slice(devices, func(i, j int) bool { return devices[i].Total > devices[j].Total })
	if len(devices) > 10 {
		devices = devices[:10]
	}
	sum.TopDevices = devices

	return sum, nil
}

func (r *Recorder) scanCounterTotals(ctx context.Context, pattern string) ([]CounterTotal, error) {
	var out []CounterTotal
	iter := r.rds.Scan(ctx, 0, pattern, 200).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		idx := strings.LastIndex(key, ":")
		id := key
		if idx >= 0 {
			id = key[idx+1:]
		}
		counters, err := r.rds.HGetAll(ctx, key).Result()
		if err != nil {
			continue
		}
		complete := counterField(counters, "complete")
		failed := counterField(counters, "failed")
		out = append(out, CounterTotal{ID: id, Complete: complete, Failed: failed, Total: complete + failed})
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("scan %s: %w", pattern, err)
	}
	return out, nil
}

func counterField(m map[string]string, field string) int64 {
	v, err := strconv.ParseInt(m[field], 10, 64)
	if err != nil {
		return 0
	}
	return v
}

func round2(f float64) float64 {
	return float64(int64(f*100+0.5)) / 100
}
