// Package http provides HTTP transport for the credentials read API.
package http

import (
	stdhttp "net/http"

	"tower/internal/modkit/httpkit"
	svc "tower/internal/services/credentials/service"
)

// Register mounts credential endpoints on the given router.
func Register(r httpkit.Router, s svc.Service) {
	h := &handlers{svc: s}
	httpkit.Get(r, "/credentials", h.list)
}

type handlers struct{ svc svc.Service }

// swagger:route GET /credentials Credentials listCredentials
// @Summary Enumerate known credential ids
// @Tags Credentials
// @Produce json
// @Success 200 {object} domain.ListResult "ok"
// @Router /credentials [get]
func (h *handlers) list(r *stdhttp.Request) (any, error) {
	return h.svc.List(r.Context())
}
