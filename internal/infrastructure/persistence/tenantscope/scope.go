// Package tenantscope enforces tenant_id filtering on GORM queries.
//
// Tenant data already lives in a database per tenant; the scope is the
// second line of defense, extracting the active tenant from the context
// and adding WHERE tenant_id = ? to every query against tenant-owned
// tables. An operation without a tenant in context fails hard rather
// than running unfiltered.
package tenantscope

import (
	"context"
	"errors"

	"github.com/crm/backend/internal/domain/tenant"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ErrTenantRequired is returned when no tenant is found in the context
var ErrTenantRequired = errors.New("tenant is required but not found in context")

// Scope applies tenant filtering to GORM queries
func Scope(tenantID uuid.UUID) func(db *gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return db.Where("tenant_id = ?", tenantID)
	}
}

// ScopedDB wraps a GORM DB with automatic tenant scoping
type ScopedDB struct {
	db       *gorm.DB
	required bool
}

// New creates a ScopedDB that requires a tenant in context
func New(db *gorm.DB) *ScopedDB {
	return &ScopedDB{db: db, required: true}
}

// WithContext returns a GORM DB scoped to the tenant from context. When
// no tenant is present the returned DB errors on any operation instead
// of running unscoped.
func (s *ScopedDB) WithContext(ctx context.Context) *gorm.DB {
	t, ok := tenant.TenancyFromContext(ctx)
	if !ok || t.ID == uuid.Nil {
		db := s.db.WithContext(ctx)
		if s.required {
			_ = db.AddError(ErrTenantRequired)
		}
		return db
	}
	return s.db.WithContext(ctx).Scopes(Scope(t.ID))
}

// Transaction executes fn within a transaction carrying the tenant scope
func (s *ScopedDB) Transaction(ctx context.Context, fn func(tx *gorm.DB) error) error {
	t, ok := tenant.TenancyFromContext(ctx)
	if (!ok || t.ID == uuid.Nil) && s.required {
		return ErrTenantRequired
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if ok && t.ID != uuid.Nil {
			tx = tx.Scopes(Scope(t.ID))
		}
		return fn(tx)
	})
}

// Unscoped returns the underlying DB without tenant scoping. Reserved
// for migrations and system-level maintenance.
func (s *ScopedDB) Unscoped() *gorm.DB {
	return s.db
}
