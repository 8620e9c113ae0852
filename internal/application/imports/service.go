package importapp

import (
	"context"
	"errors"
	"os"

	"github.com/crm/backend/internal/domain/imports"
	"github.com/crm/backend/internal/domain/shared"
	"github.com/crm/backend/internal/domain/tenant"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Submitter hands an import task to the background queue
type Submitter interface {
	Submit(task imports.Task) error
}

// BatchService dispatches CV import batches and reports their progress
type BatchService struct {
	batches  imports.BatchRepository
	progress imports.ProgressStore
	queue    Submitter
	logger   *zap.Logger
}

// NewBatchService creates a batch service
func NewBatchService(batches imports.BatchRepository, progress imports.ProgressStore, queue Submitter, logger *zap.Logger) *BatchService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BatchService{
		batches:  batches,
		progress: progress,
		queue:    queue,
		logger:   logger,
	}
}

// StartBatch creates (or extends) a batch row and queues one task per
// file. Files that cannot be queued are recorded as failed immediately
// so the batch can still complete.
func (s *BatchService) StartBatch(ctx context.Context, input StartBatchInput) (*StartBatchResult, error) {
	tc, ok := tenant.TenancyFromContext(ctx)
	if !ok {
		return nil, shared.ErrNoTenantAssociation
	}
	if len(input.Files) == 0 {
		return nil, shared.NewDomainError("NO_FILES", "At least one CV file is required")
	}

	batch, err := s.resolveBatch(ctx, tc, input)
	if err != nil {
		return nil, err
	}

	queued := 0
	for _, f := range input.Files {
		task := imports.Task{
			BatchUID:         batch.UID,
			TenantID:         tc.ID,
			UserID:           input.UserID,
			TempFilePath:     f.TempPath,
			OriginalFilename: f.OriginalFilename,
		}
		if err := s.queue.Submit(task); err != nil {
			s.logger.Error("failed to queue cv import task",
				zap.String("batch_uid", batch.UID.String()),
				zap.String("filename", f.OriginalFilename),
				zap.Error(err))
			s.recordDispatchFailure(ctx, batch.UID, f)
			continue
		}
		queued++
	}

	if queued == 0 && !batch.IsTerminal() {
		batch.Fail("No import tasks could be queued")
		if err := s.batches.Update(ctx, batch); err != nil {
			s.logger.Error("failed to mark batch failed",
				zap.String("batch_uid", batch.UID.String()), zap.Error(err))
		}
	} else if batch.Status == imports.BatchStatusExtracting {
		batch.BeginProcessing()
		if err := s.batches.Update(ctx, batch); err != nil {
			// A worker may have folded the batch first; its fold
			// already carries the status forward.
			s.logger.Warn("could not move batch into processing",
				zap.String("batch_uid", batch.UID.String()), zap.Error(err))
		}
	}

	s.logger.Info("cv import batch dispatched",
		zap.String("batch_uid", batch.UID.String()),
		zap.String("tenant", tc.Slug),
		zap.Int("queued", queued),
		zap.Int("total", batch.TotalFiles))

	return &StartBatchResult{BatchUID: batch.UID, QueuedCount: queued}, nil
}

// resolveBatch either starts a fresh batch or appends the new files to an
// existing, still-running one
func (s *BatchService) resolveBatch(ctx context.Context, tc tenant.Tenancy, input StartBatchInput) (*imports.Batch, error) {
	if input.BatchUID == uuid.Nil {
		batch := imports.NewBatch(tc.ID, input.UserID, len(input.Files))
		batch.Start()
		if err := s.batches.Create(ctx, batch); err != nil {
			return nil, err
		}
		return batch, nil
	}

	batch, err := s.batches.FindByUID(ctx, input.BatchUID)
	if err != nil {
		return nil, err
	}
	if batch.TenantID != tc.ID {
		return nil, shared.ErrNotFound
	}
	if batch.IsTerminal() {
		return nil, shared.NewDomainError("BATCH_CLOSED", "Batch already finished; start a new one")
	}
	batch.TotalFiles += len(input.Files)
	batch.IncrementVersion()
	if err := s.batches.Update(ctx, batch); err != nil {
		return nil, err
	}
	return batch, nil
}

func (s *BatchService) recordDispatchFailure(ctx context.Context, batchUID uuid.UUID, f FileUpload) {
	entry := imports.Entry{
		Outcome:  imports.OutcomeFailed,
		Filename: f.OriginalFilename,
		Reason:   "Could not queue file for processing",
	}
	if err := s.progress.Append(ctx, batchUID, entry); err != nil {
		s.logger.Error("failed to record dispatch failure",
			zap.String("batch_uid", batchUID.String()), zap.Error(err))
	}
	if err := os.Remove(f.TempPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		s.logger.Warn("failed to remove temp file",
			zap.String("path", f.TempPath), zap.Error(err))
	}
}

// GetBatch merges the batch row with the progress entries into one
// status view. Callers receive shared.ErrNotFound for batches belonging
// to other tenants.
func (s *BatchService) GetBatch(ctx context.Context, batchUID uuid.UUID) (*BatchStatusResult, error) {
	tc, ok := tenant.TenancyFromContext(ctx)
	if !ok {
		return nil, shared.ErrNoTenantAssociation
	}
	batch, err := s.batches.FindByUID(ctx, batchUID)
	if err != nil {
		return nil, err
	}
	if batch.TenantID != tc.ID {
		return nil, shared.ErrNotFound
	}

	progress, err := s.progress.Get(ctx, batch.UID)
	if err != nil {
		return nil, err
	}
	success, failed, skipped := progress.Counts()
	processed := success + failed + skipped

	return &BatchStatusResult{
		BatchUID:     batch.UID,
		Status:       batch.Status,
		Total:        batch.TotalFiles,
		Processed:    processed,
		SuccessCount: success,
		FailedCount:  failed,
		SkippedCount: skipped,
		IsComplete:   batch.IsTerminal() || (batch.TotalFiles > 0 && processed >= batch.TotalFiles),
		Success:      progress.Success,
		Failed:       progress.Failed,
		Skipped:      progress.Skipped,
		ErrorMessage: batch.ErrorMessage,
		StartedAt:    batch.StartedAt,
		CompletedAt:  batch.CompletedAt,
	}, nil
}
