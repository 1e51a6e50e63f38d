// Package module wires cache administration into the API using modkit.
package module

import (
	"net/http"

	"tower/internal/core/cache"
	modkit "tower/internal/modkit"
	"tower/internal/modkit/httpkit"
	str "tower/internal/platform/strings"
	cachehttp "tower/internal/services/cacheadmin/http"
	cachesvc "tower/internal/services/cacheadmin/service"
)

// Module implements the cache administration module.
type Module struct {
	name   string
	prefix string

	mws       []func(http.Handler) http.Handler
	ports     any
	swaggerOn bool

	subrouter func(httpkit.Router) httpkit.Router
	register  func(httpkit.Router)

	svc cachesvc.Service
}

// New constructs the cache administration module over an already-opened
// cache manager.
func New(c *cache.Manager, opts ...modkit.Option) modkit.Module {
	b := modkit.Build(append([]modkit.Option{modkit.WithName("cacheadmin"), modkit.WithPrefix("/api")}, opts...)...)

	svc := cachesvc.New(c)

	m := &Module{
		name:      b.Name,
		prefix:    b.Prefix,
		mws:       b.Mw,
		swaggerOn: b.SwaggerOn,
		subrouter: b.Subrouter,
		svc:       svc,
	}
	m.ports = adaptCachePort{svc: svc}

	external := b.Register
	m.register = func(r httpkit.Router) {
		cachehttp.Register(r, m.svc)
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
