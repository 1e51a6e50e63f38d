// Package service implements credential-id enumeration over the
// configured CredentialPort plugin.
//
// Unlike the original controller, which has no in-process access to the
// worker's credential plugin and must round-trip a "list_credentials" job
// through the queue, this service calls the plugin directly: the static
// compile-time plugin registry (see internal/core/plugins) is linked into
// both the API and worker binaries, so the API process already holds a
// live CredentialPort instance and no queue hop is needed.
package service

import (
	"context"
	"sort"

	"tower/internal/core/plugins"
	perr "tower/internal/platform/errors"
	"tower/internal/services/credentials/domain"
)

// Service is the credentials port.
type Service interface {
	domain.ServicePort
}

// Svc adapts plugins.CredentialPort to domain.ServicePort.
type Svc struct {
	cred plugins.CredentialPort
}

// New constructs the credentials service.
func New(cred plugins.CredentialPort) *Svc {
	if cred == nil {
		panic("credentials: CredentialPort is required")
	}
	return &Svc{cred: cred}
}

// List enumerates every credential id known to the configured plugin.
// Returns an unavailable error if the plugin cannot enumerate (it only
// implements point lookups).
func (s *Svc) List(ctx context.Context) (domain.ListResult, error) {
	enum, ok := s.cred.(plugins.CredentialEnumerator)
	if !ok {
		return domain.ListResult{}, perr.Unavailablef("credential plugin does not support enumeration")
	}
	ids, err := enum.ListCredentialIDs(ctx)
	if err != nil {
		return domain.ListResult{}, err
	}
	sort.Strings(ids)
	return domain.ListResult{CredentialIDs: ids, Count: len(ids)}, nil
}
