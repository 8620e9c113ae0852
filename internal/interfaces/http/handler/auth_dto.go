package handler

import (
	"time"

	"github.com/crm/backend/internal/application/identity"
)

// RegisterTenantRequest is the tenant self-registration payload
type RegisterTenantRequest struct {
	Company              string `json:"company" binding:"required,min=2,max=255"`
	Slug                 string `json:"slug" binding:"omitempty,min=2,max=64"`
	Name                 string `json:"name" binding:"required,min=2,max=255"`
	Email                string `json:"email" binding:"required,email,max=255"`
	Password             string `json:"password" binding:"required,min=8"`
	PasswordConfirmation string `json:"password_confirmation" binding:"required,eqfield=Password"`
}

// LoginRequest is the login payload; tenant is optional and discovered
// from the email when absent
type LoginRequest struct {
	Tenant   string `json:"tenant" binding:"omitempty,max=64"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// TenantLookupRequest asks which tenant an email address belongs to
type TenantLookupRequest struct {
	Email string `json:"email" binding:"required,email"`
}

// TenantResponse is the tenant identity in API responses
type TenantResponse struct {
	UID  string `json:"uid"`
	Name string `json:"name"`
	Slug string `json:"slug"`
}

// UserResponse is the user identity in API responses
type UserResponse struct {
	UID   string `json:"uid"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

// TokenResponse is an issued access token
type TokenResponse struct {
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// AuthResponse bundles token, user and tenant after registration/login
type AuthResponse struct {
	Token  TokenResponse  `json:"token"`
	User   UserResponse   `json:"user"`
	Tenant TenantResponse `json:"tenant"`
}

// TenantLookupResponse carries the routing identity of the matched tenant
type TenantLookupResponse struct {
	Domain string `json:"domain"`
}

// MeResponse is the authenticated principal with its tenant
type MeResponse struct {
	User   UserResponse   `json:"user"`
	Tenant TenantResponse `json:"tenant"`
}

func toAuthResponse(result *identity.AuthResult) AuthResponse {
	return AuthResponse{
		Token: TokenResponse{
			AccessToken: result.Token.AccessToken,
			TokenType:   result.Token.TokenType,
			ExpiresAt:   result.Token.ExpiresAt,
		},
		User:   toUserResponse(result.User),
		Tenant: toTenantResponse(result.Tenant),
	}
}

func toUserResponse(u identity.UserInfo) UserResponse {
	return UserResponse{
		UID:   u.UID.String(),
		Name:  u.Name,
		Email: u.Email,
		Role:  u.Role,
	}
}

func toTenantResponse(t identity.TenantInfo) TenantResponse {
	return TenantResponse{
		UID:  t.UID.String(),
		Name: t.Name,
		Slug: t.Slug,
	}
}
