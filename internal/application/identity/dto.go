package identity

import (
	"github.com/crm/backend/internal/infrastructure/auth"
	"github.com/google/uuid"
)

// RegisterTenantInput contains the input for tenant self-registration
type RegisterTenantInput struct {
	Company  string
	Slug     string // optional; derived from Company when empty
	Name     string
	Email    string
	Password string
}

// LoginInput contains the input for user login. TenantSlug is optional:
// when empty the tenant is discovered from the email address.
type LoginInput struct {
	TenantSlug string
	Email      string
	Password   string
}

// TenantInfo is the tenant identity exposed to API clients
type TenantInfo struct {
	UID  uuid.UUID
	Name string
	Slug string
}

// UserInfo is the user identity exposed to API clients
type UserInfo struct {
	UID   uuid.UUID
	Name  string
	Email string
	Role  string
}

// AuthResult contains a fresh token with its user and tenant
type AuthResult struct {
	Token  *auth.Token
	User   UserInfo
	Tenant TenantInfo
}

// DiscoverInput contains the input for tenant discovery
type DiscoverInput struct {
	Email string
}

// DiscoverResult carries the routing identity of the matched tenant:
// its custom domain when configured, otherwise its slug. Internal ids
// are deliberately absent.
type DiscoverResult struct {
	Domain string
}

// MeResult contains the authenticated user's profile and tenant
type MeResult struct {
	User   UserInfo
	Tenant TenantInfo
}
