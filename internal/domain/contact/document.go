package contact

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/crm/backend/internal/domain/shared"
	"github.com/google/uuid"
)

// DocumentType classifies an uploaded file
type DocumentType string

const (
	DocumentTypeCV DocumentType = "cv"
)

// Document is one uploaded file owned by a contact. Rows are immutable
// after creation; replacement is delete plus recreate.
type Document struct {
	shared.TenantAggregateRoot
	ContactID        uuid.UUID    `gorm:"type:uuid;not null;index"`
	Type             DocumentType `gorm:"type:varchar(20);not null"`
	OriginalFilename string       `gorm:"type:varchar(255);not null"`
	StoragePath      string       `gorm:"type:varchar(500);not null"`
	MimeType         string       `gorm:"type:varchar(120);not null"`
	FileSize         int64        `gorm:"not null"`
}

// TableName returns the table name for GORM
func (Document) TableName() string {
	return "contact_documents"
}

// NewDocument creates the metadata record for an already-uploaded file
func NewDocument(tenantID, contactID uuid.UUID, docType DocumentType, originalFilename, storagePath, mimeType string, size int64) *Document {
	return &Document{
		TenantAggregateRoot: shared.NewTenantAggregateRoot(tenantID),
		ContactID:           contactID,
		Type:                docType,
		OriginalFilename:    originalFilename,
		StoragePath:         storagePath,
		MimeType:            mimeType,
		FileSize:            size,
	}
}

// CVStoragePath derives the object-storage key for an imported CV:
// {tenant_uid}/contacts/{contact_uid}/cv-{timestamp}.{ext}
func CVStoragePath(tenantUID, contactUID uuid.UUID, originalFilename string, at time.Time) string {
	ext := strings.TrimPrefix(filepath.Ext(originalFilename), ".")
	if ext == "" {
		ext = "bin"
	}
	return fmt.Sprintf("%s/contacts/%s/cv-%s.%s",
		tenantUID, contactUID, at.Format("2006-01-02-150405"), strings.ToLower(ext))
}

// MimeTypeForFilename maps a CV filename extension to its MIME type
func MimeTypeForFilename(filename string) string {
	switch strings.ToLower(strings.TrimPrefix(filepath.Ext(filename), ".")) {
	case "pdf":
		return "application/pdf"
	case "doc":
		return "application/msword"
	case "docx":
		return "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	default:
		return "application/octet-stream"
	}
}

// DocumentRepository is the contact-document store contract
type DocumentRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*Document, error)
	FindByContact(ctx context.Context, contactID uuid.UUID) ([]Document, error)
	Create(ctx context.Context, d *Document) error
	Delete(ctx context.Context, id uuid.UUID) error
}
