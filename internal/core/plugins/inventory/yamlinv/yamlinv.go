// Package yamlinv implements plugins.InventoryPort by reading a static YAML
// file of device configurations, grounded on the controller's
// YamlInventoryStore.
package yamlinv

import (
	"context"
	"os"
	"sync"

	"gopkg.in/yaml.v3"

	"tower/internal/core/plugins"
	perr "tower/internal/platform/errors"
)

type rawDevice struct {
	Adapter        string         `yaml:"adapter"`
	AdapterDriver  string         `yaml:"adapter_driver"`
	AdapterOptions map[string]any `yaml:"adapter_options"`
	Host           string         `yaml:"host"`
	Port           int            `yaml:"port"`
	CredentialID   string         `yaml:"credential_id"`
}

// Store is a file-backed inventory; the whole file is loaded once, on first
// use or via Validate, and then held in memory.
type Store struct {
	path string

	mu   sync.RWMutex
	data map[string]rawDevice
}

// New constructs a Store for path but does not read it yet; call Validate
// (or GetDeviceConfig, which lazily loads) to populate it.
func New(path string) *Store {
	return &Store{path: path}
}

func init() {
	plugins.RegisterInventory("yaml", func(lookup func(key, def string) string) (plugins.InventoryPort, error) {
		return New(lookup("file", "inventory/inventory.yml")), nil
	})
}

func (s *Store) load() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.data != nil {
		return nil
	}
	b, err := os.ReadFile(s.path)
	if err != nil {
		return perr.NotFoundf("inventory file %s: %v", s.path, err)
	}
	var data map[string]rawDevice
	if err := yaml.Unmarshal(b, &data); err != nil {
		return perr.InvalidArgf("invalid YAML in inventory file %s: %v", s.path, err)
	}
	s.data = data
	return nil
}

// Validate loads the file eagerly so startup fails fast on a bad path or
// malformed YAML rather than on the first job that needs a device.
func (s *Store) Validate(_ context.Context) error { return s.load() }

func (s *Store) GetDeviceConfig(_ context.Context, deviceName string) (plugins.DeviceConfig, error) {
	if err := s.load(); err != nil {
		return plugins.DeviceConfig{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	d, ok := s.data[deviceName]
	if !ok {
		return plugins.DeviceConfig{}, perr.NotFoundf("device %s not found in %s", deviceName, s.path)
	}
	return toDeviceConfig(deviceName, d), nil
}

func (s *Store) ListAllNodes(_ context.Context) ([]plugins.DeviceConfig, error) {
	if err := s.load(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]plugins.DeviceConfig, 0, len(s.data))
	for name, d := range s.data {
		out = append(out, toDeviceConfig(name, d))
	}
	return out, nil
}

// SupportsExport is true: a YAML file is always a complete, cheap listing.
func (s *Store) SupportsExport() bool { return true }

// GetFilterableFields mirrors the Python YAML plugin's static
// field-description map for GET /inventory/export's inline filtering.
func (s *Store) GetFilterableFields() map[string]string {
	return map[string]string{
		"name":           "Device name (key in the inventory file)",
		"host":           "IP address or hostname",
		"adapter":        "Network adapter (drivera or driverb)",
		"adapter_driver": "Driver type (cisco_ios, arista_eos, etc.)",
		"credential_id":  "Credential reference",
		"port":           "SSH/Telnet port number",
	}
}

func toDeviceConfig(name string, d rawDevice) plugins.DeviceConfig {
	port := d.Port
	if port == 0 {
		port = 22
	}
	return plugins.DeviceConfig{
		Name:           name,
		Adapter:        d.Adapter,
		AdapterDriver:  d.AdapterDriver,
		AdapterOptions: d.AdapterOptions,
		Host:           d.Host,
		Port:           port,
		CredentialID:   d.CredentialID,
	}
}
