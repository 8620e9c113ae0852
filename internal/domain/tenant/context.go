package tenant

import (
	"context"

	"github.com/google/uuid"
)

// Tenancy is the active tenant for one unit of work. It travels in the
// context rather than in any shared mutable state, so concurrent requests
// and background jobs each carry their own.
type Tenancy struct {
	ID       uuid.UUID
	UID      uuid.UUID
	Slug     string
	Database string
}

// TenancyOf builds the Tenancy for a tenant record
func TenancyOf(t *Tenant) Tenancy {
	return Tenancy{
		ID:       t.ID,
		UID:      t.UID,
		Slug:     t.Slug,
		Database: t.Database,
	}
}

type tenancyKey struct{}

// WithTenancy returns a context carrying the given tenant
func WithTenancy(ctx context.Context, t Tenancy) context.Context {
	return context.WithValue(ctx, tenancyKey{}, t)
}

// TenancyFromContext returns the active tenant, if any
func TenancyFromContext(ctx context.Context) (Tenancy, bool) {
	t, ok := ctx.Value(tenancyKey{}).(Tenancy)
	return t, ok
}
