// Package http provides HTTP transport for the inventory read API.
package http

import (
	stdhttp "net/http"

	"github.com/go-chi/chi/v5"

	"tower/internal/modkit/httpkit"
	svc "tower/internal/services/inventory/service"
)

// Register mounts inventory endpoints on the given router.
func Register(r httpkit.Router, s svc.Service) {
	h := &handlers{svc: s}

	httpkit.Get(r, "/inventory/export", h.export)
	httpkit.Get(r, "/inventory/{name}", h.get)
}

type handlers struct{ svc svc.Service }

// swagger:route GET /inventory/export Inventory exportInventory
// @Summary Export the inventory keyed by device name, optionally filtered
// @Tags Inventory
// @Produce json
// @Param filter query string false "field=regex, repeatable; see GetFilterableFields"
// @Success 200 {object} map[string]domain.DeviceConfig "ok"
// @Router /inventory/export [get]
func (h *handlers) export(r *stdhttp.Request) (any, error) {
	return h.svc.Export(r.Context(), queryFilters(r))
}

// queryFilters turns ?host=10\.0\..*&adapter=drivera style query params
// into the field->regex map Export matches nodes against. Params with an
// empty value are dropped rather than treated as an always-match pattern.
func queryFilters(r *stdhttp.Request) map[string]string {
	q := r.URL.Query()
	if len(q) == 0 {
		return nil
	}
	out := make(map[string]string, len(q))
	for field, vals := range q {
		if len(vals) > 0 && vals[0] != "" {
			out[field] = vals[0]
		}
	}
	return out
}

// swagger:route GET /inventory/{name} Inventory getDeviceConfig
// @Summary Resolve one device's inventory record
// @Tags Inventory
// @Produce json
// @Param name path string true "device name"
// @Success 200 {object} domain.DeviceConfig "ok"
// @Router /inventory/{name} [get]
func (h *handlers) get(r *stdhttp.Request) (any, error) {
	return h.svc.GetDeviceConfig(r.Context(), chi.URLParam(r, "name"))
}
