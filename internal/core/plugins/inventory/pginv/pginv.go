// Package pginv implements plugins.InventoryPort against a Postgres-backed
// devices table, the capability the Python controller's SolarWinds/Nautobot
// plugins reach for an external system to provide; here a plain devices
// table plays that role so the inventory plugin set has both a
// file-backed and a database-backed implementation, exercising the
// platform's pgx-based query surface from a new domain.
package pginv

import (
	"context"
	"encoding/json"

	"tower/internal/core/plugins"
	perr "tower/internal/platform/errors"
	"tower/internal/platform/store"
)

// Store resolves devices from a `devices` table:
//
//	CREATE TABLE devices (
//	    name            text PRIMARY KEY,
//	    adapter         text NOT NULL,
//	    adapter_driver  text NOT NULL,
//	    adapter_options jsonb NOT NULL DEFAULT '{}',
//	    host            text NOT NULL,
//	    port            integer NOT NULL DEFAULT 22,
//	    credential_id   text NOT NULL
//	);
type Store struct {
	q store.RowQuerier
}

func New(q store.RowQuerier) *Store { return &Store{q: q} }

func (s *Store) GetDeviceConfig(ctx context.Context, deviceName string) (plugins.DeviceConfig, error) {
	const sqlq = `
		SELECT name, adapter, adapter_driver, adapter_options, host, port, credential_id
		  FROM devices
		 WHERE name = $1
	`
	var (
		cfg     plugins.DeviceConfig
		optsRaw []byte
	)
	row := s.q.QueryRow(ctx, sqlq, deviceName)
	if err := row.Scan(&cfg.Name, &cfg.Adapter, &cfg.AdapterDriver, &optsRaw, &cfg.Host, &cfg.Port, &cfg.CredentialID); err != nil {
		return plugins.DeviceConfig{}, perr.NotFoundf("device %s not found: %v", deviceName, err)
	}
	if len(optsRaw) > 0 {
		if err := json.Unmarshal(optsRaw, &cfg.AdapterOptions); err != nil {
			return plugins.DeviceConfig{}, perr.DBf("decode adapter_options for device %s: %v", deviceName, err)
		}
	}
	return cfg, nil
}

func (s *Store) ListAllNodes(ctx context.Context) ([]plugins.DeviceConfig, error) {
	const sqlq = `
		SELECT name, adapter, adapter_driver, adapter_options, host, port, credential_id
		  FROM devices
		 ORDER BY name
	`
	rows, err := s.q.Query(ctx, sqlq)
	if err != nil {
		return nil, perr.DBf("list devices: %v", err)
	}
	defer rows.Close()

	var out []plugins.DeviceConfig
	for rows.Next() {
		var (
			cfg     plugins.DeviceConfig
			optsRaw []byte
		)
		if err := rows.Scan(&cfg.Name, &cfg.Adapter, &cfg.AdapterDriver, &optsRaw, &cfg.Host, &cfg.Port, &cfg.CredentialID); err != nil {
			return nil, perr.DBf("scan device row: %v", err)
		}
		if len(optsRaw) > 0 {
			if err := json.Unmarshal(optsRaw, &cfg.AdapterOptions); err != nil {
				return nil, perr.DBf("decode adapter_options for device %s: %v", cfg.Name, err)
			}
		}
		out = append(out, cfg)
	}
	return out, rows.Err()
}

// SupportsExport is true: the devices table is the authoritative,
// inexpensively-listable inventory, unlike a paginated external system.
func (s *Store) SupportsExport() bool { return true }

// GetFilterableFields mirrors yamlinv's static field-description map;
// both plugins expose the same DeviceConfig shape to GET /inventory/export.
func (s *Store) GetFilterableFields() map[string]string {
	return map[string]string{
		"name":           "Device name (devices.name)",
		"host":           "IP address or hostname",
		"adapter":        "Network adapter (drivera or driverb)",
		"adapter_driver": "Driver type (cisco_ios, arista_eos, etc.)",
		"credential_id":  "Credential reference",
		"port":           "SSH/Telnet port number",
	}
}
