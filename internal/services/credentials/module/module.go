// Package module wires credential enumeration into the app using modkit.
package module

import (
	"net/http"

	"tower/internal/core/plugins"
	modkit "tower/internal/modkit"
	"tower/internal/modkit/httpkit"
	str "tower/internal/platform/strings"
	credhttp "tower/internal/services/credentials/http"
	credsvc "tower/internal/services/credentials/service"
)

// Module implements the credentials module.
type Module struct {
	name   string
	prefix string

	mws       []func(http.Handler) http.Handler
	ports     any
	swaggerOn bool

	subrouter func(httpkit.Router) httpkit.Router
	register  func(httpkit.Router)

	svc credsvc.Service
}

// New constructs the credentials module over the configured
// CredentialPort.
func New(cred plugins.CredentialPort, opts ...modkit.Option) modkit.Module {
	b := modkit.Build(append([]modkit.Option{modkit.WithName("credentials"), modkit.WithPrefix("/api")}, opts...)...)

	svc := credsvc.New(cred)

	m := &Module{
		name:      b.Name,
		prefix:    b.Prefix,
		mws:       b.Mw,
		swaggerOn: b.SwaggerOn,
		subrouter: b.Subrouter,
		svc:       svc,
	}
	m.ports = adaptCredentialsPort{svc: svc}

	external := b.Register
	m.register = func(r httpkit.Router) {
		credhttp.Register(r, m.svc)
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
