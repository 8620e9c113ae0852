// Package tenant holds the tenant directory domain model.
//
// A tenant is an isolated customer organization (a recruitment agency).
// Directory rows live in the landlord database; each tenant's own data
// lives in a dedicated database whose name is derived from the slug once
// at creation time and never changes afterwards, so renaming a slug does
// not move data.
package tenant

import (
	"context"
	"strings"

	"github.com/crm/backend/internal/domain/shared"
	"github.com/google/uuid"
)

// DatabasePrefix is the fixed namespace prepended to every tenant database name.
const DatabasePrefix = "tenant_"

// Tenant represents a tenant/agency in the multi-tenant system.
// It is the aggregate root of the tenant directory.
type Tenant struct {
	shared.BaseAggregateRoot
	// UID is the opaque external identifier exposed to API clients.
	// Internal IDs never leave the landlord store.
	UID      uuid.UUID `gorm:"type:uuid;not null;uniqueIndex"`
	Name     string    `gorm:"type:varchar(255);not null"`
	Slug     string    `gorm:"type:varchar(64);not null;uniqueIndex"`
	Domain   string    `gorm:"type:varchar(255)"`
	Database string    `gorm:"type:varchar(80);not null"`
}

// TableName returns the table name for GORM
func (Tenant) TableName() string {
	return "tenants"
}

// New creates a tenant with a pre-resolved unique slug. The database name
// is derived here, once, and is immutable for the lifetime of the tenant.
func New(name, slug string) (*Tenant, error) {
	if strings.TrimSpace(name) == "" {
		return nil, shared.NewDomainError("INVALID_NAME", "Tenant name is required")
	}
	if !IsValidSlug(slug) {
		return nil, shared.NewDomainError("INVALID_SLUG", "Tenant slug must match [a-z0-9-]+")
	}
	return &Tenant{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		UID:               uuid.New(),
		Name:              name,
		Slug:              slug,
		Database:          DatabaseName(slug),
	}, nil
}

// DatabaseName derives the storage-connection descriptor for a slug:
// hyphens become underscores under the fixed namespace prefix.
func DatabaseName(slug string) string {
	return DatabasePrefix + strings.ReplaceAll(slug, "-", "_")
}

// Rename updates the display name. The slug and database are deliberately
// untouched; see package doc.
func (t *Tenant) Rename(name string) error {
	if strings.TrimSpace(name) == "" {
		return shared.NewDomainError("INVALID_NAME", "Tenant name is required")
	}
	t.Name = name
	t.IncrementVersion()
	return nil
}

// SetDomain assigns the optional custom routing domain.
func (t *Tenant) SetDomain(domain string) {
	t.Domain = strings.ToLower(strings.TrimSpace(domain))
	t.IncrementVersion()
}

// RoutingIdentity returns what discovery mode may expose to callers: the
// custom domain when present, otherwise the slug.
func (t *Tenant) RoutingIdentity() string {
	if t.Domain != "" {
		return t.Domain
	}
	return t.Slug
}

// Repository is the tenant directory contract backed by the landlord store.
type Repository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*Tenant, error)
	FindByUID(ctx context.Context, uid uuid.UUID) (*Tenant, error)
	FindBySlug(ctx context.Context, slug string) (*Tenant, error)
	FindAll(ctx context.Context) ([]Tenant, error)
	SlugExists(ctx context.Context, slug string) (bool, error)
	// Create persists the tenant. It must fail with
	// shared.ErrAlreadyExists when the slug is already taken, which the
	// unique-slug generator uses to resolve creation races.
	Create(ctx context.Context, t *Tenant) error
}
