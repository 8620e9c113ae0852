package handler

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	importapp "github.com/crm/backend/internal/application/imports"
	"github.com/crm/backend/internal/domain/imports"
	"github.com/crm/backend/internal/interfaces/http/dto"
	"github.com/crm/backend/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	maxCVFiles    = 50
	maxCVFileSize = 10 << 20 // 10MB per file
)

var allowedCVExtensions = map[string]bool{
	".pdf":  true,
	".doc":  true,
	".docx": true,
}

// ImportHandler handles CV import requests
type ImportHandler struct {
	BaseHandler
	service *importapp.BatchService
	tempDir string
	logger  *zap.Logger
}

// NewImportHandler creates a new import handler. Uploaded files are
// spooled to tempDir until a worker picks them up.
func NewImportHandler(service *importapp.BatchService, tempDir string, logger *zap.Logger) *ImportHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ImportHandler{service: service, tempDir: tempDir, logger: logger}
}

// UploadCVs accepts up to 50 CV files and queues them for asynchronous
// processing. An optional batch_id form field appends the files to an
// existing batch.
func (h *ImportHandler) UploadCVs(c *gin.Context) {
	form, err := c.MultipartForm()
	if err != nil {
		h.Error(c, 400, dto.ErrCodeBadRequest, "Invalid multipart form")
		return
	}

	files := form.File["files"]
	if len(files) == 0 {
		h.Error(c, 422, dto.ErrCodeValidation, "At least one CV file is required")
		return
	}
	if len(files) > maxCVFiles {
		h.Error(c, 422, dto.ErrCodeValidation, fmt.Sprintf("At most %d files can be uploaded per request", maxCVFiles))
		return
	}

	batchUID := uuid.Nil
	if raw := c.PostForm("batch_id"); raw != "" {
		batchUID, err = uuid.Parse(raw)
		if err != nil {
			h.BadRequest(c, "Invalid batch id")
			return
		}
	}

	claims := middleware.GetClaims(c)
	if claims == nil {
		h.Unauthorized(c, "Authentication required")
		return
	}
	userUID, err := claims.GetUserUUID()
	if err != nil {
		h.Unauthorized(c, "Authentication required")
		return
	}

	uploads := make([]importapp.FileUpload, 0, len(files))
	for _, file := range files {
		ext := strings.ToLower(filepath.Ext(file.Filename))
		if !allowedCVExtensions[ext] {
			h.cleanup(uploads)
			h.Error(c, 422, dto.ErrCodeValidation, fmt.Sprintf("Unsupported file type %q; only pdf, doc and docx are accepted", ext))
			return
		}
		if file.Size > maxCVFileSize {
			h.cleanup(uploads)
			h.Error(c, 422, dto.ErrCodeValidation, fmt.Sprintf("File %q exceeds the 10MB limit", file.Filename))
			return
		}

		tempPath := filepath.Join(h.tempDir, fmt.Sprintf("cv-%s%s", uuid.New().String(), ext))
		if err := c.SaveUploadedFile(file, tempPath); err != nil {
			h.logger.Error("Failed to spool uploaded CV", zap.String("filename", file.Filename), zap.Error(err))
			h.cleanup(uploads)
			h.InternalError(c, "Could not store uploaded file")
			return
		}
		uploads = append(uploads, importapp.FileUpload{
			TempPath:         tempPath,
			OriginalFilename: filepath.Base(file.Filename),
		})
	}

	result, err := h.service.StartBatch(c.Request.Context(), importapp.StartBatchInput{
		UserID:   userUID,
		BatchUID: batchUID,
		Files:    uploads,
	})
	if err != nil {
		h.cleanup(uploads)
		h.HandleError(c, err)
		return
	}

	h.Accepted(c, gin.H{
		"batch_id":     result.BatchUID,
		"queued_count": result.QueuedCount,
		"message":      "CV import queued",
	})
}

// GetBatchStatus answers the live progress of an import batch
func (h *ImportHandler) GetBatchStatus(c *gin.Context) {
	batchUID, err := uuid.Parse(c.Param("uid"))
	if err != nil {
		h.BadRequest(c, "Invalid batch id")
		return
	}

	result, err := h.service.GetBatch(c.Request.Context(), batchUID)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, toBatchStatusResponse(result))
}

func (h *ImportHandler) cleanup(uploads []importapp.FileUpload) {
	for _, u := range uploads {
		if err := os.Remove(u.TempPath); err != nil && !os.IsNotExist(err) {
			h.logger.Warn("Failed to remove spooled CV", zap.String("path", u.TempPath), zap.Error(err))
		}
	}
}

// BatchStatusResponse is the wire shape of an import batch's progress
type BatchStatusResponse struct {
	BatchID      uuid.UUID       `json:"batch_id"`
	Status       string          `json:"status"`
	Total        int             `json:"total"`
	Processed    int             `json:"processed"`
	SuccessCount int             `json:"success_count"`
	FailedCount  int             `json:"failed_count"`
	SkippedCount int             `json:"skipped_count"`
	IsComplete   bool            `json:"is_complete"`
	Success      []imports.Entry `json:"success"`
	Failed       []imports.Entry `json:"failed"`
	Skipped      []imports.Entry `json:"skipped"`
	ErrorMessage string          `json:"error_message,omitempty"`
	StartedAt    *time.Time      `json:"started_at,omitempty"`
	CompletedAt  *time.Time      `json:"completed_at,omitempty"`
}

func toBatchStatusResponse(r *importapp.BatchStatusResult) BatchStatusResponse {
	resp := BatchStatusResponse{
		BatchID:      r.BatchUID,
		Status:       string(r.Status),
		Total:        r.Total,
		Processed:    r.Processed,
		SuccessCount: r.SuccessCount,
		FailedCount:  r.FailedCount,
		SkippedCount: r.SkippedCount,
		IsComplete:   r.IsComplete,
		Success:      r.Success,
		Failed:       r.Failed,
		Skipped:      r.Skipped,
		ErrorMessage: r.ErrorMessage,
		StartedAt:    r.StartedAt,
		CompletedAt:  r.CompletedAt,
	}
	if resp.Success == nil {
		resp.Success = []imports.Entry{}
	}
	if resp.Failed == nil {
		resp.Failed = []imports.Entry{}
	}
	if resp.Skipped == nil {
		resp.Skipped = []imports.Entry{}
	}
	return resp
}
