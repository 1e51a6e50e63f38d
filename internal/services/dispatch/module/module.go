// Package module wires the dispatcher into the API using modkit.
package module

import (
	"net/http"

	modkit "tower/internal/modkit"
	"tower/internal/modkit/httpkit"
	"tower/internal/core/plugins"
	"tower/internal/core/queue"
	str "tower/internal/platform/strings"
	dispatchhttp "tower/internal/services/dispatch/http"
	dispatchsvc "tower/internal/services/dispatch/service"
)

// Module implements the dispatcher module.
type Module struct {
	name   string
	prefix string

	mws       []func(http.Handler) http.Handler
	ports     any
	swaggerOn bool

	subrouter func(httpkit.Router) httpkit.Router
	register  func(httpkit.Router)

	svc dispatchsvc.Service
}

// New constructs the dispatcher module over an already-opened queue and the
// configured inventory plugin.
func New(q *queue.Queue, inv plugins.InventoryPort, opts ...modkit.Option) modkit.Module {
	b := modkit.Build(append([]modkit.Option{modkit.WithName("dispatch"), modkit.WithPrefix("/api")}, opts...)...)

	svc := dispatchsvc.New(q, inv)

	m := &Module{
		name:      b.Name,
		prefix:    b.Prefix,
		mws:       b.Mw,
		swaggerOn: b.SwaggerOn,
		subrouter: b.Subrouter,
		svc:       svc,
	}
	m.ports = adaptDispatchPort{svc: svc}

	external := b.Register
	m.register = func(r httpkit.Router) {
		dispatchhttp.Register(r, m.svc)
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
