package domain

import "context"

// ServicePort is consumed by HTTP handlers and other modules.
type ServicePort interface {
	GetDeviceConfig(ctx context.Context, name string) (DeviceConfig, error)
	// Export lists the inventory, keyed by device name. filters is an
	// optional field -> regex map (see plugins.InventoryFilter); pass nil
	// or empty for an unfiltered export.
	Export(ctx context.Context, filters map[string]string) (map[string]DeviceConfig, error)
	// FilterableFields returns field_name -> description for the fields
	// Export's filters map can key on.
	FilterableFields() map[string]string
}
