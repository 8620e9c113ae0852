package importapp

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/crm/backend/internal/domain/contact"
	"github.com/crm/backend/internal/domain/imports"
	"github.com/crm/backend/internal/domain/shared"
	"github.com/crm/backend/internal/domain/tenant"
	"github.com/crm/backend/internal/infrastructure/jobqueue"
	"github.com/crm/backend/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// batchFoldRetries bounds the optimistic-lock retry loop when folding
// progress counts back into the batch row
const batchFoldRetries = 3

// ImportExecutor processes one CV import task per invocation: parse the
// file, dedupe against existing contacts, create the contact and its
// document record, upload the CV, and record the outcome in the batch
// progress store.
type ImportExecutor struct {
	tenants   tenant.Repository
	contacts  contact.Repository
	documents contact.DocumentRepository
	batches   imports.BatchRepository
	progress  imports.ProgressStore
	parser    imports.Parser
	storage   ObjectStorage
	logger    *zap.Logger
	now       func() time.Time
}

// NewImportExecutor creates the executor with all its collaborators
func NewImportExecutor(
	tenants tenant.Repository,
	contacts contact.Repository,
	documents contact.DocumentRepository,
	batches imports.BatchRepository,
	progress imports.ProgressStore,
	parser imports.Parser,
	storage ObjectStorage,
	logger *zap.Logger,
) *ImportExecutor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ImportExecutor{
		tenants:   tenants,
		contacts:  contacts,
		documents: documents,
		batches:   batches,
		progress:  progress,
		parser:    parser,
		storage:   storage,
		logger:    logger,
		now:       time.Now,
	}
}

var _ jobqueue.Executor = (*ImportExecutor)(nil)

// Execute runs one attempt of the task. Returning a TerminalError (or
// exhausting the attempt budget) routes the job to OnExhausted; any
// other error is retried with backoff. The temp file survives retryable
// failures and is removed on every terminal path.
func (e *ImportExecutor) Execute(ctx context.Context, job *jobqueue.Job) (err error) {
	task := job.Task

	ctx, span := telemetry.StartServiceSpan(ctx, "cv_import", "process",
		attribute.String("batch_uid", task.BatchUID.String()),
		attribute.String("filename", task.OriginalFilename),
		attribute.Int("attempt", job.Attempt),
	)
	defer func() {
		telemetry.RecordError(span, err)
		span.End()
	}()

	t, err := e.tenants.FindByID(ctx, task.TenantID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return imports.Terminal("tenant no longer exists", err)
		}
		return fmt.Errorf("resolve tenant: %w", err)
	}
	ctx = tenant.WithTenancy(ctx, tenant.TenancyOf(t))

	if _, err := os.Stat(task.TempFilePath); err != nil {
		return imports.Terminal("uploaded file is no longer available", err)
	}

	parsed, err := e.parser.Parse(ctx, task.TempFilePath, task.OriginalFilename)
	if err != nil {
		return err
	}
	if !parsed.HasName() {
		return imports.Terminal("could not extract a name from the CV", nil)
	}

	firstName := contact.NormalizeName(parsed.FirstName)
	lastName := contact.NormalizeName(parsed.LastName)
	prefix := strings.ToLower(strings.TrimSpace(parsed.Prefix))

	existing, err := e.contacts.FindDuplicate(ctx, firstName, lastName, parsed.Email)
	if err != nil && !errors.Is(err, shared.ErrNotFound) {
		return fmt.Errorf("duplicate check: %w", err)
	}
	if existing != nil {
		return e.recordSkipped(ctx, job, existing, parsed.Email != "")
	}

	c, err := contact.New(t.ID, firstName, lastName)
	if err != nil {
		return imports.Terminal("parsed name is not usable", err)
	}
	c.Prefix = prefix
	c.Email = parsed.Email
	c.Phone = parsed.Phone
	c.Location = parsed.Location
	c.Education = parsed.Education
	c.CurrentCompany = parsed.CurrentCompany
	c.CompanyRole = parsed.CurrentRole
	c.DateOfBirth = parsed.DateOfBirth
	if parsed.Skills != "" {
		c.Notes = "Skills: " + parsed.Skills
	}
	c.AddNetworkRole(contact.NetworkRoleCandidate)

	if err := e.contacts.Create(ctx, c); err != nil {
		return fmt.Errorf("create contact: %w", err)
	}

	if err := e.attachCV(ctx, t, c, task); err != nil {
		// Contact exists but its CV does not; retrying would dedupe the
		// contact as skipped, so record the partial success instead.
		e.logger.Error("cv upload failed after contact creation",
			zap.String("batch_uid", task.BatchUID.String()),
			zap.String("contact_uid", c.UID.String()),
			zap.Error(err))
	}

	e.appendEntry(ctx, task.BatchUID, imports.Entry{
		Outcome:    imports.OutcomeSuccess,
		Filename:   task.OriginalFilename,
		ContactUID: c.UID,
		Name:       c.DisplayName(),
	})
	e.foldBatch(ctx, task.BatchUID)
	e.removeTempFile(task.TempFilePath)

	e.logger.Info("cv imported",
		zap.String("batch_uid", task.BatchUID.String()),
		zap.String("tenant", t.Slug),
		zap.String("contact_uid", c.UID.String()),
		zap.String("filename", task.OriginalFilename))
	return nil
}

// OnExhausted records the task as failed once retries are spent or the
// failure was terminal. It runs exactly once per task.
func (e *ImportExecutor) OnExhausted(ctx context.Context, job *jobqueue.Job, cause error) {
	task := job.Task

	// The queue hands us a bare context; the batch row lives under the
	// owning tenant, so re-establish the tenancy before folding.
	if t, terr := e.tenants.FindByID(ctx, task.TenantID); terr == nil {
		ctx = tenant.WithTenancy(ctx, tenant.TenancyOf(t))
	} else {
		e.logger.Error("tenant lookup failed while recording exhausted import",
			zap.String("batch_uid", task.BatchUID.String()),
			zap.String("tenant_id", task.TenantID.String()),
			zap.Error(terr))
	}

	reason := "CV processing failed"
	var te *imports.TerminalError
	if errors.As(cause, &te) {
		reason = te.Reason
	} else if cause != nil {
		reason = fmt.Sprintf("CV processing failed after %d attempts", job.Attempt)
	}

	e.logger.Warn("cv import exhausted",
		zap.String("batch_uid", task.BatchUID.String()),
		zap.String("filename", task.OriginalFilename),
		zap.Int("attempts", job.Attempt),
		zap.Error(cause))

	e.appendEntry(ctx, task.BatchUID, imports.Entry{
		Outcome:  imports.OutcomeFailed,
		Filename: task.OriginalFilename,
		Reason:   reason,
	})
	e.foldBatch(ctx, task.BatchUID)
	e.removeTempFile(task.TempFilePath)
}

// recordSkipped finishes the task as a duplicate without creating
// anything
func (e *ImportExecutor) recordSkipped(ctx context.Context, job *jobqueue.Job, existing *contact.Contact, matchedEmail bool) error {
	task := job.Task
	reason := "A contact with this name already exists"
	if matchedEmail {
		reason = "A contact with this name and email already exists"
	}
	e.appendEntry(ctx, task.BatchUID, imports.Entry{
		Outcome:    imports.OutcomeSkipped,
		Filename:   task.OriginalFilename,
		ContactUID: existing.UID,
		Name:       existing.DisplayName(),
		Reason:     reason,
	})
	e.foldBatch(ctx, task.BatchUID)
	e.removeTempFile(task.TempFilePath)
	return nil
}

// attachCV uploads the original file to object storage and records the
// document row
func (e *ImportExecutor) attachCV(ctx context.Context, t *tenant.Tenant, c *contact.Contact, task imports.Task) error {
	f, err := os.Open(task.TempFilePath)
	if err != nil {
		return fmt.Errorf("open temp file: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("stat temp file: %w", err)
	}

	storagePath := contact.CVStoragePath(t.UID, c.UID, task.OriginalFilename, e.now())
	mimeType := contact.MimeTypeForFilename(task.OriginalFilename)

	if err := e.storage.Upload(ctx, storagePath, f, mimeType); err != nil {
		return fmt.Errorf("upload cv: %w", err)
	}

	doc := contact.NewDocument(t.ID, c.ID, contact.DocumentTypeCV,
		task.OriginalFilename, storagePath, mimeType, info.Size())
	if err := e.documents.Create(ctx, doc); err != nil {
		return fmt.Errorf("create document record: %w", err)
	}
	return nil
}

func (e *ImportExecutor) appendEntry(ctx context.Context, batchUID uuid.UUID, entry imports.Entry) {
	if err := e.progress.Append(ctx, batchUID, entry); err != nil {
		e.logger.Error("failed to record import outcome",
			zap.String("batch_uid", batchUID.String()),
			zap.String("filename", entry.Filename),
			zap.Error(err))
	}
}

// foldBatch copies the progress counts into the batch row. Concurrent
// workers folding the same batch race on the row version; losers reload
// and reapply.
func (e *ImportExecutor) foldBatch(ctx context.Context, batchUID uuid.UUID) {
	var lastErr error
	for i := 0; i < batchFoldRetries; i++ {
		batch, err := e.batches.FindByUID(ctx, batchUID)
		if err != nil {
			lastErr = err
			break
		}
		progress, err := e.progress.Get(ctx, batchUID)
		if err != nil {
			lastErr = err
			break
		}
		batch.ApplyProgress(progress.Counts())
		if err := e.batches.Update(ctx, batch); err != nil {
			if errors.Is(err, shared.ErrConcurrencyConflict) {
				lastErr = err
				continue
			}
			lastErr = err
			break
		}
		return
	}
	e.logger.Error("failed to fold batch progress",
		zap.String("batch_uid", batchUID.String()), zap.Error(lastErr))
}

func (e *ImportExecutor) removeTempFile(path string) {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		e.logger.Warn("failed to remove temp file",
			zap.String("path", path), zap.Error(err))
	}
}
