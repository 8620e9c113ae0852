package persistence

import (
	"context"
	"errors"

	"github.com/crm/backend/internal/domain/imports"
	"github.com/crm/backend/internal/domain/shared"
	"github.com/crm/backend/internal/infrastructure/persistence/tenantscope"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormBatchRepository implements imports.BatchRepository on the landlord
// database. Batches are landlord data: their jobs run outside any tenant
// request and the poll endpoint must work even while the tenant database
// is busy. The table holds every tenant's rows, so access runs through
// a ScopedDB rather than the per-database scope callbacks.
type GormBatchRepository struct {
	scoped *tenantscope.ScopedDB
}

// NewGormBatchRepository creates a new GormBatchRepository
func NewGormBatchRepository(db *gorm.DB) *GormBatchRepository {
	return &GormBatchRepository{scoped: tenantscope.New(db)}
}

// FindByUID finds a batch by its public UID within the caller's tenant
func (r *GormBatchRepository) FindByUID(ctx context.Context, uid uuid.UUID) (*imports.Batch, error) {
	var b imports.Batch
	if err := r.scoped.WithContext(ctx).First(&b, "uid = ?", uid).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &b, nil
}

// Create inserts a batch
func (r *GormBatchRepository) Create(ctx context.Context, b *imports.Batch) error {
	return r.scoped.WithContext(ctx).Create(b).Error
}

// Update saves batch counters and status under optimistic locking
func (r *GormBatchRepository) Update(ctx context.Context, b *imports.Batch) error {
	result := r.scoped.WithContext(ctx).
		Model(b).
		Where("version = ?", b.Version-1).
		Updates(map[string]interface{}{
			"status":        b.Status,
			"success_count": b.SuccessCount,
			"failed_count":  b.FailedCount,
			"skipped_count": b.SkippedCount,
			"error_message": b.ErrorMessage,
			"started_at":    b.StartedAt,
			"completed_at":  b.CompletedAt,
			"version":       b.Version,
			"updated_at":    b.UpdatedAt,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrConcurrencyConflict
	}
	return nil
}

var _ imports.BatchRepository = (*GormBatchRepository)(nil)
