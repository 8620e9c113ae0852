package importapp

import (
	"time"

	"github.com/crm/backend/internal/domain/imports"
	"github.com/google/uuid"
)

// FileUpload is one CV file already written to the import temp directory
type FileUpload struct {
	TempPath         string
	OriginalFilename string
}

// StartBatchInput contains the input for dispatching a CV import batch.
// BatchUID may name an existing batch to append files to; zero starts a
// new batch.
type StartBatchInput struct {
	UserID   uuid.UUID
	BatchUID uuid.UUID
	Files    []FileUpload
}

// StartBatchResult reports what was queued
type StartBatchResult struct {
	BatchUID    uuid.UUID
	QueuedCount int
}

// BatchStatusResult merges the batch row with the progress entries
// accumulated by the workers
type BatchStatusResult struct {
	BatchUID     uuid.UUID
	Status       imports.BatchStatus
	Total        int
	Processed    int
	SuccessCount int
	FailedCount  int
	SkippedCount int
	IsComplete   bool
	Success      []imports.Entry
	Failed       []imports.Entry
	Skipped      []imports.Entry
	ErrorMessage string
	StartedAt    *time.Time
	CompletedAt  *time.Time
}
