package persistence

import (
	"context"
	"errors"
	"strings"

	"github.com/crm/backend/internal/domain/identity"
	"github.com/crm/backend/internal/domain/shared"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormUserRepository implements identity.Repository against the tenant
// database of the tenant in the context.
type GormUserRepository struct {
	manager *ConnectionManager
}

// NewGormUserRepository creates a new GormUserRepository
func NewGormUserRepository(manager *ConnectionManager) *GormUserRepository {
	return &GormUserRepository{manager: manager}
}

// FindByID finds a user by its ID
func (r *GormUserRepository) FindByID(ctx context.Context, id uuid.UUID) (*identity.User, error) {
	db, err := r.manager.Handle(ctx)
	if err != nil {
		return nil, err
	}
	var u identity.User
	if err := db.WithContext(ctx).First(&u, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &u, nil
}

// FindByUID finds a user by its public UID
func (r *GormUserRepository) FindByUID(ctx context.Context, uid uuid.UUID) (*identity.User, error) {
	db, err := r.manager.Handle(ctx)
	if err != nil {
		return nil, err
	}
	var u identity.User
	if err := db.WithContext(ctx).First(&u, "uid = ?", uid).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &u, nil
}

// FindByEmail finds a user by email
func (r *GormUserRepository) FindByEmail(ctx context.Context, email string) (*identity.User, error) {
	db, err := r.manager.Handle(ctx)
	if err != nil {
		return nil, err
	}
	var u identity.User
	if err := db.WithContext(ctx).
		Where("email = ?", strings.ToLower(email)).
		First(&u).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &u, nil
}

// ExistsByEmail reports whether a user with the email exists
func (r *GormUserRepository) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	db, err := r.manager.Handle(ctx)
	if err != nil {
		return false, err
	}
	var count int64
	if err := db.WithContext(ctx).
		Model(&identity.User{}).
		Where("email = ?", strings.ToLower(email)).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// Create inserts a user
func (r *GormUserRepository) Create(ctx context.Context, u *identity.User) error {
	db, err := r.manager.Handle(ctx)
	if err != nil {
		return err
	}
	if err := db.WithContext(ctx).Create(u).Error; err != nil {
		if isUniqueViolation(err) {
			return shared.ErrAlreadyExists
		}
		return err
	}
	return nil
}

// Update saves changes to a user
func (r *GormUserRepository) Update(ctx context.Context, u *identity.User) error {
	db, err := r.manager.Handle(ctx)
	if err != nil {
		return err
	}
	result := db.WithContext(ctx).
		Model(u).
		Where("version = ?", u.Version-1).
		Updates(map[string]interface{}{
			"name":          u.Name,
			"email":         u.Email,
			"password_hash": u.PasswordHash,
			"role":          u.Role,
			"version":       u.Version,
			"updated_at":    u.UpdatedAt,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrConcurrencyConflict
	}
	return nil
}

var _ identity.Repository = (*GormUserRepository)(nil)
