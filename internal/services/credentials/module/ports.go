package module

import (
	"context"

	"tower/internal/services/credentials/domain"
	credsvc "tower/internal/services/credentials/service"
)

// Ports returns the module ports.
func (m *Module) Ports() any { return m.ports }

type adaptCredentialsPort struct{ svc credsvc.Service }

func (a adaptCredentialsPort) List(ctx context.Context) (domain.ListResult, error) {
	return a.svc.List(ctx)
}
