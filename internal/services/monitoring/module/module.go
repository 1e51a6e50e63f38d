// Package module wires the monitoring API into the app using modkit.
package module

import (
	"net/http"

	"tower/internal/core/stats"
	modkit "tower/internal/modkit"
	"tower/internal/modkit/httpkit"
	str "tower/internal/platform/strings"
	monitoringhttp "tower/internal/services/monitoring/http"
	monitoringsvc "tower/internal/services/monitoring/service"
)

// Module implements the monitoring module.
type Module struct {
	name   string
	prefix string

	mws       []func(http.Handler) http.Handler
	ports     any
	swaggerOn bool

	subrouter func(httpkit.Router) httpkit.Router
	register  func(httpkit.Router)

	svc monitoringsvc.Service
}

// New constructs the monitoring module over an already-opened stats
// recorder.
func New(s *stats.Recorder, opts ...modkit.Option) modkit.Module {
	b := modkit.Build(append([]modkit.Option{modkit.WithName("monitoring"), modkit.WithPrefix("/api")}, opts...)...)

	svc := monitoringsvc.New(s)

	m := &Module{
		name:      b.Name,
		prefix:    b.Prefix,
		mws:       b.Mw,
		swaggerOn: b.SwaggerOn,
		subrouter: b.Subrouter,
		svc:       svc,
	}
	m.ports = adaptMonitoringPort{svc: svc}

	external := b.Register
	m.register = func(r httpkit.Router) {
		monitoringhttp.Register(r, m.svc)
		if external != nil {
			external(r)
		}
	}
	return m
}

// MountRoutes mounts the module routes on the given router.
func (m *Module) MountRoutes(r httpkit.Router) {
	r.Route(m.prefix, func(rr httpkit.Router) {
		for _, mw := range m.mws {
			rr.Use(mw)
		}
		if m.subrouter != nil {
			rr = m.subrouter(rr)
		}
		if m.register != nil {
			m.register(rr)
		}
	})
}

// Name returns the module name.
func (m *Module) Name() string { return str.MustString(m.name, "module name") }

// Prefix returns the module route prefix.
func (m *Module) Prefix() string { return str.MustPrefix(m.prefix) }

// Middlewares returns the module middlewares.
func (m *Module) Middlewares() []func(http.Handler) http.Handler { return m.mws }
