package persistence

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/crm/backend/internal/domain/contact"
	"github.com/crm/backend/internal/domain/shared"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// contactSortColumns is the allow-list for contact ordering; anything
// else falls back to created_at.
var contactSortColumns = map[string]bool{
	"created_at": true,
	"updated_at": true,
	"first_name": true,
	"last_name":  true,
	"email":      true,
}

// GormContactRepository implements contact.Repository against the
// tenant database of the tenant in the context.
type GormContactRepository struct {
	manager *ConnectionManager
}

// NewGormContactRepository creates a new GormContactRepository
func NewGormContactRepository(manager *ConnectionManager) *GormContactRepository {
	return &GormContactRepository{manager: manager}
}

// FindByID finds a contact by its ID
func (r *GormContactRepository) FindByID(ctx context.Context, id uuid.UUID) (*contact.Contact, error) {
	db, err := r.manager.Handle(ctx)
	if err != nil {
		return nil, err
	}
	var c contact.Contact
	if err := db.WithContext(ctx).First(&c, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &c, nil
}

// FindByUID finds a contact by its public UID
func (r *GormContactRepository) FindByUID(ctx context.Context, uid uuid.UUID) (*contact.Contact, error) {
	db, err := r.manager.Handle(ctx)
	if err != nil {
		return nil, err
	}
	var c contact.Contact
	if err := db.WithContext(ctx).First(&c, "uid = ?", uid).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &c, nil
}

// FindAll returns contacts matching the filter with the total count
func (r *GormContactRepository) FindAll(ctx context.Context, filter contact.Filter) ([]contact.Contact, int64, error) {
	db, err := r.manager.Handle(ctx)
	if err != nil {
		return nil, 0, err
	}

	query := db.WithContext(ctx).Model(&contact.Contact{})

	if search := strings.TrimSpace(filter.Search); search != "" {
		pattern := "%" + strings.ToLower(search) + "%"
		query = query.Where(
			"LOWER(first_name) LIKE ? OR LOWER(last_name) LIKE ? OR LOWER(email) LIKE ?",
			pattern, pattern, pattern,
		)
	}
	if filter.NetworkRole != "" {
		// network_roles is stored as a JSON array of strings
		query = query.Where("network_roles LIKE ?", `%"`+string(filter.NetworkRole)+`"%`)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	orderBy := filter.OrderBy
	if !contactSortColumns[orderBy] {
		orderBy = "created_at"
	}
	dir := "DESC"
	if strings.EqualFold(filter.OrderDir, "asc") {
		dir = "ASC"
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize < 1 {
		pageSize = 20
	}

	var contacts []contact.Contact
	if err := query.
		Order(fmt.Sprintf("%s %s", orderBy, dir)).
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&contacts).Error; err != nil {
		return nil, 0, err
	}
	return contacts, total, nil
}

// FindDuplicate matches case-insensitively on first and last name, plus
// email when provided
func (r *GormContactRepository) FindDuplicate(ctx context.Context, firstName, lastName, email string) (*contact.Contact, error) {
	db, err := r.manager.Handle(ctx)
	if err != nil {
		return nil, err
	}

	query := db.WithContext(ctx).
		Where("LOWER(first_name) = ? AND LOWER(last_name) = ?",
			strings.ToLower(strings.TrimSpace(firstName)),
			strings.ToLower(strings.TrimSpace(lastName)))
	if email != "" {
		query = query.Where("LOWER(email) = ?", strings.ToLower(strings.TrimSpace(email)))
	}

	var c contact.Contact
	if err := query.First(&c).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &c, nil
}

// Create inserts a contact
func (r *GormContactRepository) Create(ctx context.Context, c *contact.Contact) error {
	db, err := r.manager.Handle(ctx)
	if err != nil {
		return err
	}
	return db.WithContext(ctx).Create(c).Error
}

// Update saves changes to a contact under optimistic locking
func (r *GormContactRepository) Update(ctx context.Context, c *contact.Contact) error {
	db, err := r.manager.Handle(ctx)
	if err != nil {
		return err
	}
	result := db.WithContext(ctx).
		Model(c).
		Where("version = ?", c.Version-1).
		Updates(map[string]interface{}{
			"first_name":      c.FirstName,
			"prefix":          c.Prefix,
			"last_name":       c.LastName,
			"date_of_birth":   c.DateOfBirth,
			"email":           c.Email,
			"phone":           c.Phone,
			"location":        c.Location,
			"education":       c.Education,
			"current_company": c.CurrentCompany,
			"company_role":    c.CompanyRole,
			"network_roles":   c.NetworkRoles,
			"current_salary":  c.CurrentSalary,
			"linkedin_url":    c.LinkedInURL,
			"notes":           c.Notes,
			"version":         c.Version,
			"updated_at":      c.UpdatedAt,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrConcurrencyConflict
	}
	return nil
}

// SoftDelete marks a contact deleted
func (r *GormContactRepository) SoftDelete(ctx context.Context, id uuid.UUID) error {
	db, err := r.manager.Handle(ctx)
	if err != nil {
		return err
	}
	result := db.WithContext(ctx).Delete(&contact.Contact{}, "id = ?", id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrNotFound
	}
	return nil
}

var _ contact.Repository = (*GormContactRepository)(nil)
