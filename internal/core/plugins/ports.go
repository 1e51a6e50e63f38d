// Package plugins defines the inventory/credential/driver plugin ports and
// a static compile-time registry of the built-in implementations. Ports
// are grounded on the controller's InventoryStore and the worker's
// CredentialStore abstract base classes; the registry replaces their
// dynamic plugin-discovery with an explicit Go map, per the project's
// preference for compile-time wiring over runtime plugin loading.
package plugins

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
)

// DeviceConfig is a device's inventory record: how to reach it and which
// driver dialect and credential to use.
type DeviceConfig struct {
	Name            string         `json:"name"`
	Adapter         string         `json:"adapter"` // "drivera" | "driverb"
	AdapterDriver   string         `json:"adapter_driver"`
	AdapterOptions  map[string]any `json:"adapter_options,omitempty"`
	Host            string         `json:"host"`
	Port            int            `json:"port"`
	CredentialID    string         `json:"credential_id"`
}

// FilterableValues stringifies the fields an InventoryFilter can match
// against, keyed the same way GetFilterableFields names them.
func (d DeviceConfig) FilterableValues() map[string]string {
	return map[string]string{
		"name":           d.Name,
		"host":           d.Host,
		"adapter":        d.Adapter,
		"adapter_driver": d.AdapterDriver,
		"credential_id":  d.CredentialID,
		"port":           strconv.Itoa(d.Port),
	}
}

// InventoryFilter matches inventory nodes against per-field regex patterns,
// the generic field=pattern export filtering every inventory plugin gets
// via GetFilterableFields.
type InventoryFilter struct {
	patterns map[string]*regexp.Regexp
}

// NewInventoryFilter compiles fieldPatterns (field name -> regex) into a
// ready-to-use filter. An empty pattern is skipped rather than compiled.
func NewInventoryFilter(fieldPatterns map[string]string) (*InventoryFilter, error) {
	f := &InventoryFilter{patterns: make(map[string]*regexp.Regexp, len(fieldPatterns))}
	for field, pattern := range fieldPatterns {
		if pattern == "" {
			continue
		}
		re, err := regexp.Compile("(?i)" + pattern)
		if err != nil {
			return nil, fmt.Errorf("invalid regex pattern for field %q: %w", field, err)
		}
		f.patterns[field] = re
	}
	return f, nil
}

// Matches reports whether every configured pattern matches its field's
// value in fields (field name -> stringified value, see FilterableValues).
func (f *InventoryFilter) Matches(fields map[string]string) bool {
	for field, re := range f.patterns {
		if !re.MatchString(fields[field]) {
			return false
		}
	}
	return true
}

// SSHCredentials is a resolved username/password pair for one credential id.
type SSHCredentials struct {
	CredentialID string
	Username     string
	Password     string
}

// InventoryPort resolves device names to DeviceConfig records and lists the
// full inventory for discovery/export tooling.
type InventoryPort interface {
	GetDeviceConfig(ctx context.Context, deviceName string) (DeviceConfig, error)
	ListAllNodes(ctx context.Context) ([]DeviceConfig, error)
	// SupportsExport reports whether ListAllNodes returns the complete,
	// authoritative inventory (true for file-backed stores) versus a
	// possibly-partial cached view (false for a store backed by an
	// external system whose full listing is expensive or paginated).
	// Resolves the question of whether the export API can rely on a
	// given plugin for bulk listing.
	SupportsExport() bool
	// GetFilterableFields returns field_name -> description for the
	// fields GET /inventory/export can filter on via inline
	// field=regex query parameters, matched with FilterableValues.
	GetFilterableFields() map[string]string
}

// NamedFilterPort is implemented by inventory plugins that expose preset,
// named filters in addition to the inline field=pattern filtering every
// plugin gets through GetFilterableFields. The inventory service
// type-asserts for this rather than requiring it on every InventoryPort,
// since only an external-catalog-backed store (the SolarWinds territory
// neither yamlinv nor pginv occupies) has presets worth naming.
type NamedFilterPort interface {
	GetAvailableFilters() map[string]string
	GetFilter(ctx context.Context, name string) (*InventoryFilter, error)
}

// CredentialPort resolves a credential id to SSH credentials.
type CredentialPort interface {
	GetSSHCredentials(ctx context.Context, credentialID string) (SSHCredentials, error)
}

// CredentialEnumerator is implemented by credential plugins that can list
// every known credential id (file-backed and Vault KV stores both can;
// a hypothetical store fronting a system with no listing API would not).
// The credentials API type-asserts for this rather than requiring it on
// every CredentialPort implementation.
type CredentialEnumerator interface {
	ListCredentialIDs(ctx context.Context) ([]string, error)
}

// DriverSession is an established connection to one device, capable of
// running commands against it. Implementations decide per-command vs.
// persistent-shell semantics (the netmiko/scrapli split this project's
// two driver plugins translate into Go).
type DriverSession interface {
	RunCommand(ctx context.Context, command string) (string, error)
	Close() error
}

// DriverPort dials a device and returns a live DriverSession.
type DriverPort interface {
	Dial(ctx context.Context, cfg DeviceConfig, creds SSHCredentials) (DriverSession, error)
}

// Validator is implemented by plugins that need a startup health check
// (e.g. the Vault credential store validating connectivity and token
// access before the worker accepts jobs).
type Validator interface {
	Validate(ctx context.Context) error
}
