// Package http provides HTTP transport for the dispatcher.
package http

import (
	stdhttp "net/http"

	"github.com/go-chi/chi/v5"

	"tower/internal/modkit/httpkit"
	"tower/internal/services/dispatch/domain"
	svc "tower/internal/services/dispatch/service"
)

// Register mounts dispatcher endpoints on the given router.
func Register(r httpkit.Router, s svc.Service) {
	h := &handlers{svc: s}

	httpkit.PostJSON[domain.RawExecuteInput](r, "/raw/execute/{driver_family}", h.rawExecute)
	httpkit.PostJSON[domain.DeviceExecuteInput](r, "/device/{name}/execute", h.deviceExecute)
	httpkit.PostJSON[domain.DeviceExecuteBatchInput](r, "/device/{name}/execute_batch", h.deviceExecuteBatch)
	httpkit.Get(r, "/job/{id}", h.pollJob)
}

type handlers struct{ svc svc.Service }

// swagger:route POST /raw/execute/{driver_family} Dispatch rawExecute
// @Summary Execute commands against an explicit host, bypassing inventory
// @Tags Dispatch
// @Accept json
// @Produce json
// @Param driver_family path string true "driver family (a|b)"
// @Param payload body domain.RawExecuteInput true "execution request"
// @Success 200 {object} domain.JobEnvelope "ok"
// @Router /raw/execute/{driver_family} [post]
func (h *handlers) rawExecute(r *stdhttp.Request, in domain.RawExecuteInput) (any, error) {
	family := chi.URLParam(r, "driver_family")
	env, err := h.svc.SubmitRaw(r.Context(), family, in)
	if err != nil {
		return nil, err
	}
	return unwrapRawOutput(env, in.ExecOptions), nil
}

// swagger:route POST /device/{name}/execute Dispatch deviceExecute
// @Summary Execute a single command via inventory-resolved device
// @Tags Dispatch
// @Accept json
// @Produce json
// @Param name path string true "device name"
// @Param payload body domain.DeviceExecuteInput true "execution request"
// @Success 200 {object} domain.JobEnvelope "ok"
// @Router /device/{name}/execute [post]
func (h *handlers) deviceExecute(r *stdhttp.Request, in domain.DeviceExecuteInput) (any, error) {
	name := chi.URLParam(r, "name")
	env, err := h.svc.SubmitDevice(r.Context(), name, in)
	if err != nil {
		return nil, err
	}
	return unwrapRawOutput(env, in.ExecOptions), nil
}

// swagger:route POST /device/{name}/execute_batch Dispatch deviceExecuteBatch
// @Summary Execute an ordered list of commands via inventory-resolved device
// @Tags Dispatch
// @Accept json
// @Produce json
// @Param name path string true "device name"
// @Param payload body domain.DeviceExecuteBatchInput true "execution request"
// @Success 200 {object} domain.JobEnvelope "ok"
// @Router /device/{name}/execute_batch [post]
func (h *handlers) deviceExecuteBatch(r *stdhttp.Request, in domain.DeviceExecuteBatchInput) (any, error) {
	name := chi.URLParam(r, "name")
	env, err := h.svc.SubmitDeviceBatch(r.Context(), name, in)
	if err != nil {
		return nil, err
	}
	return unwrapRawOutput(env, in.ExecOptions), nil
}

// swagger:route GET /job/{id} Dispatch pollJob
// @Summary Poll a job's current status and result
// @Tags Dispatch
// @Produce json
// @Param id path string true "job id"
// @Success 200 {object} domain.JobEnvelope "ok"
// @Router /job/{id} [get]
func (h *handlers) pollJob(r *stdhttp.Request) (any, error) {
	return h.svc.Poll(r.Context(), chi.URLParam(r, "id"))
}

// unwrapRawOutput honors raw_output=true by returning the single command's
// text directly instead of the job envelope, once the job has completed.
func unwrapRawOutput(env domain.JobEnvelope, opts domain.ExecOptions) any {
	if !opts.RawOutput || env.Result == nil {
		return env
	}
	for _, out := range env.Result.Data {
		return out
	}
	return env
}
