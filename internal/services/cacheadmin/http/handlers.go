// Package http provides HTTP transport for cache administration.
package http

import (
	stdhttp "net/http"

	"github.com/go-chi/chi/v5"

	"tower/internal/modkit/httpkit"
	svc "tower/internal/services/cacheadmin/service"
)

// Register mounts cache administration endpoints on the given router.
func Register(r httpkit.Router, s svc.Service) {
	h := &handlers{svc: s}

	httpkit.Delete(r, "/cache", h.clearAll)
	httpkit.Delete(r, "/cache/{device}", h.invalidateDevice)
	httpkit.Get(r, "/cache", h.listKeys)
	httpkit.Get(r, "/cache/stats", h.stats)
}

type handlers struct{ svc svc.Service }

// swagger:route DELETE /cache Cache clearAllCache
// @Summary Purge every cache entry
// @Tags Cache
// @Produce json
// @Success 200 {object} domain.InvalidateResult "ok"
// @Router /cache [delete]
func (h *handlers) clearAll(r *stdhttp.Request) (any, error) {
	return h.svc.ClearAll(r.Context())
}

// swagger:route DELETE /cache/{device} Cache invalidateDeviceCache
// @Summary Purge cache entries for one device
// @Tags Cache
// @Produce json
// @Param device path string true "device name"
// @Success 200 {object} domain.InvalidateResult "ok"
// @Router /cache/{device} [delete]
func (h *handlers) invalidateDevice(r *stdhttp.Request) (any, error) {
	return h.svc.InvalidateDevice(r.Context(), chi.URLParam(r, "device"))
}

// swagger:route GET /cache Cache listCacheKeys
// @Summary List cache keys, optionally filtered by device
// @Tags Cache
// @Produce json
// @Param device_name query string false "filter by device"
// @Success 200 {object} domain.ListKeysResult "ok"
// @Router /cache [get]
func (h *handlers) listKeys(r *stdhttp.Request) (any, error) {
	return h.svc.ListKeys(r.Context(), r.URL.Query().Get("device_name"))
}

// swagger:route GET /cache/stats Cache cacheStats
// @Summary Summarize cache usage
// @Tags Cache
// @Produce json
// @Success 200 {object} domain.StatsResult "ok"
// @Router /cache/stats [get]
func (h *handlers) stats(r *stdhttp.Request) (any, error) {
	return h.svc.Stats(r.Context())
}
