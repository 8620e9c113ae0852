// Package contact holds the candidate/network-contact domain model.
package contact

import (
	"context"
	"strings"
	"time"

	"github.com/crm/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"gorm.io/gorm"
)

// NetworkRole tags a contact's relationship to the agency
type NetworkRole string

const (
	NetworkRoleCandidate     NetworkRole = "candidate"
	NetworkRoleAmbassador    NetworkRole = "ambassador"
	NetworkRoleDecisionMaker NetworkRole = "decision-maker"
	NetworkRoleFreelancer    NetworkRole = "freelancer"
)

// Education levels recognized by CV parsing
const (
	EducationMBO = "MBO"
	EducationHBO = "HBO"
	EducationUNI = "UNI"
)

// Contact represents a candidate or network contact inside one tenant's
// isolated store. Soft-deleted rows are retained for audit.
type Contact struct {
	shared.TenantAggregateRoot
	UID            uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex"`
	FirstName      string          `gorm:"type:varchar(120);not null"`
	Prefix         string          `gorm:"type:varchar(40)"`
	LastName       string          `gorm:"type:varchar(120);not null"`
	DateOfBirth    *time.Time      `gorm:"type:date"`
	Email          string          `gorm:"type:varchar(255);index"`
	Phone          string          `gorm:"type:varchar(50)"`
	Location       string          `gorm:"type:varchar(255)"`
	Education      string          `gorm:"type:varchar(10)"`
	CurrentCompany string          `gorm:"type:varchar(255)"`
	CompanyRole    string          `gorm:"type:varchar(255)"`
	NetworkRoles   RoleList        `gorm:"type:text"`
	CurrentSalary  decimal.Decimal `gorm:"type:numeric(12,2)"`
	LinkedInURL    string          `gorm:"type:varchar(500)"`
	Notes          string          `gorm:"type:text"`
	DeletedAt      gorm.DeletedAt  `gorm:"index"`
}

// TableName returns the table name for GORM
func (Contact) TableName() string {
	return "contacts"
}

// New creates a contact owned by the given tenant
func New(tenantID uuid.UUID, firstName, lastName string) (*Contact, error) {
	if strings.TrimSpace(firstName) == "" || strings.TrimSpace(lastName) == "" {
		return nil, shared.NewDomainError("INVALID_NAME", "First and last name are required")
	}
	return &Contact{
		TenantAggregateRoot: shared.NewTenantAggregateRoot(tenantID),
		UID:                 uuid.New(),
		FirstName:           strings.TrimSpace(firstName),
		LastName:            strings.TrimSpace(lastName),
		NetworkRoles:        RoleList{},
	}, nil
}

// DisplayName joins first name, prefix and last name
func (c *Contact) DisplayName() string {
	parts := []string{c.FirstName}
	if c.Prefix != "" {
		parts = append(parts, c.Prefix)
	}
	parts = append(parts, c.LastName)
	return strings.TrimSpace(strings.Join(parts, " "))
}

// AddNetworkRole tags the contact, ignoring duplicates
func (c *Contact) AddNetworkRole(role NetworkRole) {
	for _, r := range c.NetworkRoles {
		if r == string(role) {
			return
		}
	}
	c.NetworkRoles = append(c.NetworkRoles, string(role))
}

var titleCaser = cases.Title(language.Und)

// NormalizeName converts an all-upper-case or all-lower-case name to
// title case per hyphen-delimited segment ("JEAN-PIERRE" -> "Jean-Pierre").
// Mixed-case input is assumed already correctly cased and left untouched.
func NormalizeName(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return name
	}
	if name != strings.ToUpper(name) && name != strings.ToLower(name) {
		return name
	}
	segments := strings.Split(name, "-")
	for i, seg := range segments {
		segments[i] = titleCaser.String(strings.ToLower(seg))
	}
	return strings.Join(segments, "-")
}

// Filter narrows contact listings
type Filter struct {
	shared.Filter
	NetworkRole NetworkRole
}

// Repository is the contact store contract. Implementations operate on
// whichever tenant database the caller's context resolves to.
type Repository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*Contact, error)
	FindByUID(ctx context.Context, uid uuid.UUID) (*Contact, error)
	FindAll(ctx context.Context, filter Filter) ([]Contact, int64, error)
	// FindDuplicate matches case-insensitively on first and last name,
	// additionally constrained by a case-insensitive email match when
	// email is non-empty. Returns shared.ErrNotFound when no match.
	FindDuplicate(ctx context.Context, firstName, lastName, email string) (*Contact, error)
	Create(ctx context.Context, c *Contact) error
	Update(ctx context.Context, c *Contact) error
	SoftDelete(ctx context.Context, id uuid.UUID) error
}
