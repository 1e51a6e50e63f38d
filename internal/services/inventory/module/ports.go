package module

import (
	"context"

	"tower/internal/services/inventory/domain"
	inventorysvc "tower/internal/services/inventory/service"
)

// Ports returns the module ports.
func (m *Module) Ports() any { return m.ports }

type adaptInventoryPort struct{ svc inventorysvc.Service }

func (a adaptInventoryPort) GetDeviceConfig(ctx context.Context, name string) (domain.DeviceConfig, error) {
	return a.svc.GetDeviceConfig(ctx, name)
}

func (a adaptInventoryPort) Export(ctx context.Context, filters map[string]string) (map[string]domain.DeviceConfig, error) {
	return a.svc.Export(ctx, filters)
}

func (a adaptInventoryPort) FilterableFields() map[string]string {
	return a.svc.FilterableFields()
}
