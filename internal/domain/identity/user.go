// Package identity holds the user domain model. Users live in their
// tenant's database; which tenant a user belongs to is implicit from
// which storage context is active at lookup time.
package identity

import (
	"context"
	"regexp"
	"strings"

	"github.com/crm/backend/internal/domain/shared"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// Role represents a user's role within their tenant
type Role string

const (
	RoleOwner  Role = "owner"
	RoleMember Role = "member"
)

const bcryptCost = 12

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// User represents a user inside one tenant's isolated store
type User struct {
	shared.TenantAggregateRoot
	UID          uuid.UUID `gorm:"type:uuid;not null;uniqueIndex"`
	Name         string    `gorm:"type:varchar(255);not null"`
	Email        string    `gorm:"type:varchar(255);not null;uniqueIndex"`
	PasswordHash string    `gorm:"type:varchar(255);not null"`
	Role         Role      `gorm:"type:varchar(20);not null;default:'member'"`
}

// TableName returns the table name for GORM
func (User) TableName() string {
	return "users"
}

// NewUser creates a user with required fields and a hashed password
func NewUser(tenantID uuid.UUID, name, email, password string, role Role) (*User, error) {
	if strings.TrimSpace(name) == "" {
		return nil, shared.NewDomainError("INVALID_NAME", "Name is required")
	}
	email = strings.ToLower(strings.TrimSpace(email))
	if !emailPattern.MatchString(email) {
		return nil, shared.NewDomainError("INVALID_EMAIL", "A valid email address is required")
	}
	if err := ValidatePassword(password); err != nil {
		return nil, err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return nil, shared.NewDomainError("PASSWORD_HASH_ERROR", "Failed to hash password")
	}
	if role == "" {
		role = RoleMember
	}
	return &User{
		TenantAggregateRoot: shared.NewTenantAggregateRoot(tenantID),
		UID:                 uuid.New(),
		Name:                name,
		Email:               email,
		PasswordHash:        string(hash),
		Role:                role,
	}, nil
}

// ValidatePassword enforces the registration password policy: at least
// eight characters, one digit, one non-alphanumeric character.
func ValidatePassword(password string) error {
	if len(password) < 8 {
		return shared.NewDomainError("INVALID_PASSWORD", "Password must be at least 8 characters")
	}
	var hasDigit, hasSymbol bool
	for _, r := range password {
		switch {
		case r >= '0' && r <= '9':
			hasDigit = true
		case (r < 'a' || r > 'z') && (r < 'A' || r > 'Z') && (r < '0' || r > '9'):
			hasSymbol = true
		}
	}
	if !hasDigit {
		return shared.NewDomainError("INVALID_PASSWORD", "Password must contain a digit")
	}
	if !hasSymbol {
		return shared.NewDomainError("INVALID_PASSWORD", "Password must contain a symbol")
	}
	return nil
}

// VerifyPassword checks a plaintext password against the stored hash
func (u *User) VerifyPassword(password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) == nil
}

// IsOwner reports whether the user owns their tenant
func (u *User) IsOwner() bool {
	return u.Role == RoleOwner
}

// Repository is the user store contract. Implementations operate on
// whichever tenant database the caller's context resolves to.
type Repository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*User, error)
	FindByUID(ctx context.Context, uid uuid.UUID) (*User, error)
	FindByEmail(ctx context.Context, email string) (*User, error)
	ExistsByEmail(ctx context.Context, email string) (bool, error)
	Create(ctx context.Context, u *User) error
	Update(ctx context.Context, u *User) error
}
