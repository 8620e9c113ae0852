// Package identity implements tenant registration, authentication and
// tenant discovery on top of the tenant directory and per-tenant stores.
package identity

import (
	"context"
	"time"

	"github.com/crm/backend/internal/domain/identity"
	"github.com/crm/backend/internal/domain/shared"
	"github.com/crm/backend/internal/domain/tenant"
	"github.com/crm/backend/internal/infrastructure/auth"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// TenantProvisioner creates a tenant's dedicated database during
// registration. Implemented by the migration layer.
type TenantProvisioner interface {
	Provision(ctx context.Context, database string) error
}

// AuthService handles registration, login, discovery and logout
type AuthService struct {
	tenants     tenant.Repository
	users       identity.Repository
	provisioner TenantProvisioner
	jwtService  *auth.JWTService
	blacklist   auth.TokenBlacklist
	logger      *zap.Logger
}

// NewAuthService creates an AuthService
func NewAuthService(
	tenants tenant.Repository,
	users identity.Repository,
	provisioner TenantProvisioner,
	jwtService *auth.JWTService,
	blacklist auth.TokenBlacklist,
	logger *zap.Logger,
) *AuthService {
	return &AuthService{
		tenants:     tenants,
		users:       users,
		provisioner: provisioner,
		jwtService:  jwtService,
		blacklist:   blacklist,
		logger:      logger,
	}
}

// RegisterTenant creates a tenant with its dedicated database and an owner
// account, and signs the owner in. Slug collisions resolve by suffixing;
// an explicitly requested slug is still suffixed rather than rejected.
func (s *AuthService) RegisterTenant(ctx context.Context, input RegisterTenantInput) (*AuthResult, error) {
	base := input.Slug
	if base == "" {
		base = input.Company
	}

	t, err := tenant.CreateUnique(ctx, s.tenants, input.Company, base)
	if err != nil {
		return nil, err
	}

	s.logger.Info("Tenant registered",
		zap.String("tenant_uid", t.UID.String()),
		zap.String("slug", t.Slug),
		zap.String("database", t.Database))

	if err := s.provisioner.Provision(ctx, t.Database); err != nil {
		// The directory row stays behind; provisioning is idempotent and
		// a replayed registration under the same slug picks it up.
		s.logger.Error("Tenant database provisioning failed",
			zap.String("database", t.Database), zap.Error(err))
		return nil, shared.NewDomainError("PROVISIONING_FAILED", "Could not provision tenant storage")
	}

	owner, err := identity.NewUser(t.ID, input.Name, input.Email, input.Password, identity.RoleOwner)
	if err != nil {
		return nil, err
	}

	tctx := tenant.WithTenancy(ctx, tenant.TenancyOf(t))
	if err := s.users.Create(tctx, owner); err != nil {
		return nil, err
	}

	return s.issueToken(t, owner)
}

// Login authenticates a user inside one tenant. With a slug the lookup is
// direct; without one the tenant is discovered from the email address.
// Both unknown tenant and bad password answer INVALID_CREDENTIALS so the
// endpoint does not leak which tenants exist.
func (s *AuthService) Login(ctx context.Context, input LoginInput) (*AuthResult, error) {
	var (
		t   *tenant.Tenant
		err error
	)
	if input.TenantSlug != "" {
		t, err = s.tenants.FindBySlug(ctx, input.TenantSlug)
	} else {
		t, err = s.findTenantByEmail(ctx, input.Email)
	}
	if err != nil {
		s.logger.Warn("Login failed to resolve tenant",
			zap.String("slug", input.TenantSlug), zap.Error(err))
		return nil, shared.NewDomainError("INVALID_CREDENTIALS", "Invalid email or password")
	}

	tctx := tenant.WithTenancy(ctx, tenant.TenancyOf(t))
	user, err := s.users.FindByEmail(tctx, input.Email)
	if err != nil || !user.VerifyPassword(input.Password) {
		s.logger.Warn("Login rejected",
			zap.String("tenant_slug", t.Slug),
			zap.String("email", input.Email))
		return nil, shared.NewDomainError("INVALID_CREDENTIALS", "Invalid email or password")
	}

	s.logger.Info("User logged in",
		zap.String("tenant_slug", t.Slug),
		zap.String("user_uid", user.UID.String()))

	return s.issueToken(t, user)
}

// DiscoverTenant finds which tenant holds an account for the given email
// and returns only its routing identity. Used by the login screen before
// any credentials exist.
func (s *AuthService) DiscoverTenant(ctx context.Context, input DiscoverInput) (*DiscoverResult, error) {
	t, err := s.findTenantByEmail(ctx, input.Email)
	if err != nil {
		return nil, err
	}
	return &DiscoverResult{Domain: t.RoutingIdentity()}, nil
}

// findTenantByEmail scans every tenant store for the email. Each probe
// runs under that tenant's context only for the duration of the query; a
// tenant whose store is unreachable is skipped, not fatal.
func (s *AuthService) findTenantByEmail(ctx context.Context, email string) (*tenant.Tenant, error) {
	all, err := s.tenants.FindAll(ctx)
	if err != nil {
		return nil, err
	}

	for i := range all {
		t := &all[i]
		tctx := tenant.WithTenancy(ctx, tenant.TenancyOf(t))
		exists, err := s.users.ExistsByEmail(tctx, email)
		if err != nil {
			s.logger.Warn("Tenant store unreachable during discovery",
				zap.String("tenant_slug", t.Slug), zap.Error(err))
			continue
		}
		if exists {
			return t, nil
		}
	}
	return nil, shared.ErrNoAccountFound
}

// Me returns the authenticated user's profile with their tenant. The
// caller's tenancy decides which store the user is read from.
func (s *AuthService) Me(ctx context.Context, userUID string) (*MeResult, error) {
	tc, ok := tenant.TenancyFromContext(ctx)
	if !ok {
		return nil, shared.ErrNoTenantAssociation
	}

	t, err := s.tenants.FindByID(ctx, tc.ID)
	if err != nil {
		return nil, err
	}

	uid, err := uuid.Parse(userUID)
	if err != nil {
		return nil, shared.ErrUnauthenticated
	}
	user, err := s.users.FindByUID(ctx, uid)
	if err != nil {
		return nil, err
	}

	return &MeResult{
		User:   userInfo(user),
		Tenant: tenantInfo(t),
	}, nil
}

// Logout blacklists the presented token until its natural expiry
func (s *AuthService) Logout(ctx context.Context, jti string, remaining time.Duration) error {
	if jti == "" || remaining <= 0 {
		return nil
	}
	return s.blacklist.AddToBlacklist(ctx, jti, remaining)
}

func (s *AuthService) issueToken(t *tenant.Tenant, user *identity.User) (*AuthResult, error) {
	token, err := s.jwtService.GenerateToken(auth.GenerateTokenInput{
		TenantID:   t.UID,
		TenantSlug: t.Slug,
		UserID:     user.UID,
		Email:      user.Email,
		Role:       string(user.Role),
	})
	if err != nil {
		s.logger.Error("Failed to generate token", zap.Error(err))
		return nil, shared.NewDomainError("INTERNAL_ERROR", "Failed to generate authentication token")
	}

	return &AuthResult{
		Token:  token,
		User:   userInfo(user),
		Tenant: tenantInfo(t),
	}, nil
}

func userInfo(u *identity.User) UserInfo {
	return UserInfo{
		UID:   u.UID,
		Name:  u.Name,
		Email: u.Email,
		Role:  string(u.Role),
	}
}

func tenantInfo(t *tenant.Tenant) TenantInfo {
	return TenantInfo{
		UID:  t.UID,
		Name: t.Name,
		Slug: t.Slug,
	}
}
