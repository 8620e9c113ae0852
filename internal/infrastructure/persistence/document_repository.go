package persistence

import (
	"context"
	"errors"

	"github.com/crm/backend/internal/domain/contact"
	"github.com/crm/backend/internal/domain/shared"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormDocumentRepository implements contact.DocumentRepository against
// the tenant database of the tenant in the context.
type GormDocumentRepository struct {
	manager *ConnectionManager
}

// NewGormDocumentRepository creates a new GormDocumentRepository
func NewGormDocumentRepository(manager *ConnectionManager) *GormDocumentRepository {
	return &GormDocumentRepository{manager: manager}
}

// FindByID finds a document by its ID
func (r *GormDocumentRepository) FindByID(ctx context.Context, id uuid.UUID) (*contact.Document, error) {
	db, err := r.manager.Handle(ctx)
	if err != nil {
		return nil, err
	}
	var d contact.Document
	if err := db.WithContext(ctx).First(&d, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &d, nil
}

// FindByContact returns all documents attached to a contact
func (r *GormDocumentRepository) FindByContact(ctx context.Context, contactID uuid.UUID) ([]contact.Document, error) {
	db, err := r.manager.Handle(ctx)
	if err != nil {
		return nil, err
	}
	var docs []contact.Document
	if err := db.WithContext(ctx).
		Where("contact_id = ?", contactID).
		Order("created_at DESC").
		Find(&docs).Error; err != nil {
		return nil, err
	}
	return docs, nil
}

// Create inserts a document
func (r *GormDocumentRepository) Create(ctx context.Context, d *contact.Document) error {
	db, err := r.manager.Handle(ctx)
	if err != nil {
		return err
	}
	return db.WithContext(ctx).Create(d).Error
}

// Delete removes a document record
func (r *GormDocumentRepository) Delete(ctx context.Context, id uuid.UUID) error {
	db, err := r.manager.Handle(ctx)
	if err != nil {
		return err
	}
	result := db.WithContext(ctx).Delete(&contact.Document{}, "id = ?", id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrNotFound
	}
	return nil
}

var _ contact.DocumentRepository = (*GormDocumentRepository)(nil)
