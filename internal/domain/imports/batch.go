// Package imports holds the CV import domain: the batch aggregate stored
// in the landlord database, the per-file import task, and the contracts
// for the parsing collaborator and the shared batch-progress store.
package imports

import (
	"context"
	"time"

	"github.com/crm/backend/internal/domain/shared"
	"github.com/google/uuid"
)

// BatchStatus enumerates the lifecycle of an import batch
type BatchStatus string

const (
	BatchStatusPending    BatchStatus = "pending"
	BatchStatusExtracting BatchStatus = "extracting"
	BatchStatusProcessing BatchStatus = "processing"
	BatchStatusCompleted  BatchStatus = "completed"
	BatchStatusFailed     BatchStatus = "failed"
)

// Batch tracks one group of CV import jobs. Rows live in the landlord
// store; the per-item results accumulate in the batch-progress store and
// are folded back into the row as jobs complete.
type Batch struct {
	shared.BaseAggregateRoot
	UID          uuid.UUID   `gorm:"type:uuid;not null;uniqueIndex"`
	TenantID     uuid.UUID   `gorm:"type:uuid;not null;index"`
	UserID       uuid.UUID   `gorm:"type:uuid;not null"`
	Status       BatchStatus `gorm:"type:varchar(20);not null;default:'pending'"`
	TotalFiles   int         `gorm:"not null;default:0"`
	SuccessCount int         `gorm:"not null;default:0"`
	FailedCount  int         `gorm:"not null;default:0"`
	SkippedCount int         `gorm:"not null;default:0"`
	ErrorMessage string      `gorm:"type:text"`
	StartedAt    *time.Time
	CompletedAt  *time.Time
}

// TableName returns the table name for GORM
func (Batch) TableName() string {
	return "cv_import_batches"
}

// NewBatch creates a pending batch for the given tenant and submitter
func NewBatch(tenantID, userID uuid.UUID, totalFiles int) *Batch {
	return &Batch{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		UID:               uuid.New(),
		TenantID:          tenantID,
		UserID:            userID,
		Status:            BatchStatusPending,
		TotalFiles:        totalFiles,
	}
}

// Start moves the batch into extraction: uploads are being spooled and
// handed to the queue.
func (b *Batch) Start() {
	now := time.Now()
	b.Status = BatchStatusExtracting
	b.StartedAt = &now
	b.IncrementVersion()
}

// BeginProcessing marks dispatch as finished; the workers own the batch
// from here on. A batch that already completed during dispatch stays
// where it is.
func (b *Batch) BeginProcessing() {
	if b.IsTerminal() {
		return
	}
	b.Status = BatchStatusProcessing
	b.IncrementVersion()
}

// Processed returns how many items have reached a terminal outcome
func (b *Batch) Processed() int {
	return b.SuccessCount + b.FailedCount + b.SkippedCount
}

// ApplyProgress folds the progress-store counts into the row and marks
// the batch completed once every item has a terminal outcome. The
// version always moves, even on a terminal batch, so a late fold still
// carries a usable optimistic-lock predicate.
func (b *Batch) ApplyProgress(success, failed, skipped int) {
	b.SuccessCount = success
	b.FailedCount = failed
	b.SkippedCount = skipped
	b.IncrementVersion()
	if b.IsTerminal() {
		return
	}
	if b.Processed() >= b.TotalFiles && b.TotalFiles > 0 {
		now := time.Now()
		b.Status = BatchStatusCompleted
		b.CompletedAt = &now
	}
}

// Fail marks the whole batch failed (e.g. the upload could not even be
// dispatched)
func (b *Batch) Fail(message string) {
	now := time.Now()
	b.Status = BatchStatusFailed
	b.ErrorMessage = message
	b.CompletedAt = &now
	b.IncrementVersion()
}

// IsTerminal reports whether the batch reached a final status
func (b *Batch) IsTerminal() bool {
	return b.Status == BatchStatusCompleted || b.Status == BatchStatusFailed
}

// BatchRepository is the landlord-store contract for batches
type BatchRepository interface {
	FindByUID(ctx context.Context, uid uuid.UUID) (*Batch, error)
	Create(ctx context.Context, b *Batch) error
	Update(ctx context.Context, b *Batch) error
}
