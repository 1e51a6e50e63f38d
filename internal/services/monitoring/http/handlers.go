// Package http provides HTTP transport for the monitoring API.
package http

import (
	stdhttp "net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"tower/internal/modkit/httpkit"
	"tower/internal/services/monitoring/domain"
	svc "tower/internal/services/monitoring/service"
)

// Register mounts monitoring endpoints on the given router.
func Register(r httpkit.Router, s svc.Service) {
	h := &handlers{svc: s}

	httpkit.Get(r, "/monitoring/workers", h.workers)
	httpkit.Get(r, "/monitoring/failed_commands", h.failedCommands)
	httpkit.Get(r, "/monitoring/stats/summary", h.summary)
	httpkit.Get(r, "/monitoring/device_stats/{name}", h.deviceStats)
}

type handlers struct{ svc svc.Service }

// swagger:route GET /monitoring/workers Monitoring listWorkers
// @Summary Report heartbeat freshness for every known worker
// @Tags Monitoring
// @Produce json
// @Success 200 {object} domain.WorkersResult "ok"
// @Router /monitoring/workers [get]
func (h *handlers) workers(r *stdhttp.Request) (any, error) {
	return h.svc.ListWorkers(r.Context())
}

// swagger:route GET /monitoring/failed_commands Monitoring listFailedCommands
// @Summary Query recent failed commands from the failure stream
// @Tags Monitoring
// @Produce json
// @Param device query string false "filter by device"
// @Param error_type query string false "filter by error type"
// @Param since query int false "unix timestamp lower bound"
// @Param limit query int false "max results, default 100"
// @Success 200 {object} domain.FailedCommandsResult "ok"
// @Router /monitoring/failed_commands [get]
func (h *handlers) failedCommands(r *stdhttp.Request) (any, error) {
	q := r.URL.Query()
	query := domain.FailedCommandsQuery{
		Device:    q.Get("device"),
		ErrorType: q.Get("error_type"),
	}
	if since := q.Get("since"); since != "" {
		if v, err := strconv.ParseInt(since, 10, 64); err == nil {
			query.Since = v
		}
	}
	if limit := q.Get("limit"); limit != "" {
		if v, err := strconv.Atoi(limit); err == nil {
			query.Limit = v
		}
	}
	return h.svc.ListFailedCommands(r.Context(), query)
}

// swagger:route GET /monitoring/stats/summary Monitoring statsSummary
// @Summary Summarize global, per-worker, and top-device job counts
// @Tags Monitoring
// @Produce json
// @Success 200 {object} domain.StatsSummary "ok"
// @Router /monitoring/stats/summary [get]
func (h *handlers) summary(r *stdhttp.Request) (any, error) {
	return h.svc.GetSummary(r.Context())
}

// swagger:route GET /monitoring/device_stats/{name} Monitoring deviceStats
// @Summary Report success/failure counters and recent failures for a device
// @Tags Monitoring
// @Produce json
// @Param name path string true "device name"
// @Success 200 {object} domain.DeviceStats "ok"
// @Router /monitoring/device_stats/{name} [get]
func (h *handlers) deviceStats(r *stdhttp.Request) (any, error) {
	return h.svc.GetDeviceStats(r.Context(), chi.URLParam(r, "name"))
}
