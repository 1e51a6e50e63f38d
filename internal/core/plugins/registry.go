package plugins

import (
	"context"
	"fmt"
	"sort"

	perr "tower/internal/platform/errors"
)

// InventoryFactory builds an InventoryPort from its plugin-scoped config
// lookup function (already prefixed per plugin name by the caller).
type InventoryFactory func(lookup func(key, def string) string) (InventoryPort, error)

// CredentialFactory builds a CredentialPort the same way.
type CredentialFactory func(lookup func(key, def string) string) (CredentialPort, error)

// inventoryRegistry and credentialRegistry are compile-time static
// registries: no runtime class discovery, matching the fixed plugin set
// this project ships versus the original's dynamic plugin loader.
var (
	inventoryRegistry = map[string]InventoryFactory{}
	credentialRegistry = map[string]CredentialFactory{}
)

// RegisterInventory adds a named inventory plugin factory. Called from each
// plugin subpackage's init() or explicitly from cmd/ wiring.
func RegisterInventory(name string, f InventoryFactory) { inventoryRegistry[name] = f }

// RegisterCredential adds a named credential plugin factory.
func RegisterCredential(name string, f CredentialFactory) { credentialRegistry[name] = f }

// BuildInventory constructs the named inventory plugin, or a startup-fatal
// error enumerating the valid names.
func BuildInventory(name string, lookup func(key, def string) string) (InventoryPort, error) {
	f, ok := inventoryRegistry[name]
	if !ok {
		return nil, perr.Permanentf("unknown inventory plugin %q (available: %s)", name, joinNames(inventoryNames()))
	}
	return f(lookup)
}

// BuildCredential constructs the named credential plugin, or a
// startup-fatal error enumerating the valid names.
func BuildCredential(name string, lookup func(key, def string) string) (CredentialPort, error) {
	f, ok := credentialRegistry[name]
	if !ok {
		return nil, perr.Permanentf("unknown credential plugin %q (available: %s)", name, joinNames(credentialNames()))
	}
	return f(lookup)
}

func inventoryNames() []string {
	names := make([]string, 0, len(inventoryRegistry))
	for n := range inventoryRegistry {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

func credentialNames() []string {
	names := make([]string, 0, len(credentialRegistry))
	for n := range credentialRegistry {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

func joinNames(names []string) string {
	out := ""
	for i, n := range names {
		if i > 0 {
			out += ", "
		}
		out += n
	}
	return out
}

// ValidateAll runs Validate on every plugin that implements Validator,
// failing fast at startup rather than on the first job that needs it.
func ValidateAll(ctx context.Context, plugins ...any) error {
	for _, p := range plugins {
		v, ok := p.(Validator)
		if !ok {
			continue
		}
		if err := v.Validate(ctx); err != nil {
			return fmt.Errorf("plugin validation failed for %T: %w", p, err)
		}
	}
	return nil
}
