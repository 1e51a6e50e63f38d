// Package metrics mounts the Prometheus scrape endpoint. Unlike the other
// services it has no domain/service split: it exposes one third-party
// handler (promhttp) and nothing else, so the usual layering would add
// indirection without a seam anyone needs.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	modkit "tower/internal/modkit"
	"tower/internal/modkit/httpkit"
	"tower/internal/core/stats"
	str "tower/internal/platform/strings"
)

// Module mounts GET /metrics, unauthenticated, outside the API prefix.
type Module struct {
	name   string
	prefix string
	mws    []func(http.Handler) http.Handler

	reg *prometheus.Registry
}

// New builds a fresh Prometheus registry, registers the stats package's
// collectors plus the Go/process default collectors, and returns a module
// that serves it at /metrics. Call before any code that records stats so
// the collectors are registered exactly once.
func New(opts ...modkit.Option) modkit.Module {
	b := modkit.Build(append([]modkit.Option{modkit.WithName("metrics"), modkit.WithPrefix("")}, opts...)...)

	reg := prometheus.NewRegistry()
	reg.MustRegister(prometheus.NewGoCollector())
	reg.MustRegister(prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}))
	stats.MustRegister(reg)

	return &Module{name: b.Name, prefix: b.Prefix, mws: b.Mw, reg: reg}
}

// MountRoutes mounts /metrics directly, bypassing the JSON envelope since
// Prometheus expects the text exposition format.
func (m *Module) MountRoutes(r httpkit.Router) {
	r.Handle("/metrics", promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{}))
}

// Name returns the module name.
func (m *Module) Name() string { return str.MustString(m.name, "module name") }

// Prefix returns the module route prefix (empty: /metrics is unprefixed).
func (m *Module) Prefix() string { return m.prefix }

// Middlewares returns the module middlewares (none: /metrics stays
// unauthenticated per spec).
func (m *Module) Middlewares() []func(http.Handler) http.Handler { return m.mws }

// Ports returns nil: nothing composes this module's port.
func (m *Module) Ports() any { return nil }
