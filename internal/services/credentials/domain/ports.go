package domain

import "context"

// ServicePort is consumed by HTTP handlers and other modules.
type ServicePort interface {
	List(ctx context.Context) (ListResult, error)
}
