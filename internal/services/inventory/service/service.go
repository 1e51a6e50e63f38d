// Package service implements the inventory read API over the configured
// InventoryPort plugin.
package service

import (
	"context"

	"tower/internal/core/plugins"
	perr "tower/internal/platform/errors"
	"tower/internal/services/inventory/domain"
)

// Service is the inventory port.
type Service interface {
	domain.ServicePort
}

// Svc adapts plugins.InventoryPort to domain.ServicePort.
type Svc struct {
	inv plugins.InventoryPort
}

// New constructs the inventory service.
func New(inv plugins.InventoryPort) *Svc {
	if inv == nil {
		panic("inventory: InventoryPort is required")
	}
	return &Svc{inv: inv}
}

// GetDeviceConfig resolves one device's inventory record.
func (s *Svc) GetDeviceConfig(ctx context.Context, name string) (domain.DeviceConfig, error) {
	cfg, err := s.inv.GetDeviceConfig(ctx, name)
	if err != nil {
		return domain.DeviceConfig{}, err
	}
	return toDomain(cfg), nil
}

// Export lists the inventory keyed by device name, optionally restricted
// to nodes matching every field=pattern in filters. Returns an unavailable
// error if the configured plugin cannot guarantee a complete, authoritative
// listing (see plugins.InventoryPort.SupportsExport), or an invalid-arg
// error if filters names a field the plugin doesn't expose.
func (s *Svc) Export(ctx context.Context, filters map[string]string) (map[string]domain.DeviceConfig, error) {
	if !s.inv.SupportsExport() {
		return nil, perr.Unavailablef("inventory plugin does not support bulk export")
	}
	nodes, err := s.inv.ListAllNodes(ctx)
	if err != nil {
		return nil, err
	}

	var matcher *plugins.InventoryFilter
	if len(filters) > 0 {
		fields := s.inv.GetFilterableFields()
		for field := range filters {
			if _, ok := fields[field]; !ok {
				return nil, perr.InvalidArgf("unknown filter field %q", field)
			}
		}
		matcher, err = plugins.NewInventoryFilter(filters)
		if err != nil {
			return nil, perr.InvalidArgf("%v", err)
		}
	}

	out := make(map[string]domain.DeviceConfig, len(nodes))
	for _, n := range nodes {
		if matcher != nil && !matcher.Matches(n.FilterableValues()) {
			continue
		}
		out[n.Name] = toDomain(n)
	}
	return out, nil
}

// FilterableFields exposes the configured plugin's filterable field set so
// callers (and the export handler) know which query params are valid.
func (s *Svc) FilterableFields() map[string]string {
	return s.inv.GetFilterableFields()
}

func toDomain(cfg plugins.DeviceConfig) domain.DeviceConfig {
	return domain.DeviceConfig{
		Name: cfg.Name, Adapter: cfg.Adapter, AdapterDriver: cfg.AdapterDriver,
		AdapterOptions: cfg.AdapterOptions, Host: cfg.Host, Port: cfg.Port,
		CredentialID: cfg.CredentialID,
	}
}
