package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	appidentity "github.com/crm/backend/internal/application/identity"
	domainidentity "github.com/crm/backend/internal/domain/identity"
	"github.com/crm/backend/internal/domain/shared"
	"github.com/crm/backend/internal/domain/tenant"
	"github.com/crm/backend/internal/infrastructure/auth"
	"github.com/crm/backend/internal/infrastructure/config"
	"github.com/crm/backend/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type authTestTenants struct {
	tenants []*tenant.Tenant
}

func (r *authTestTenants) FindByID(_ context.Context, id uuid.UUID) (*tenant.Tenant, error) {
	for _, t := range r.tenants {
		if t.ID == id {
			return t, nil
		}
	}
	return nil, shared.ErrNotFound
}

func (r *authTestTenants) FindByUID(_ context.Context, uid uuid.UUID) (*tenant.Tenant, error) {
	for _, t := range r.tenants {
		if t.UID == uid {
			return t, nil
		}
	}
	return nil, shared.ErrNotFound
}

func (r *authTestTenants) FindBySlug(_ context.Context, slug string) (*tenant.Tenant, error) {
	for _, t := range r.tenants {
		if t.Slug == slug {
			return t, nil
		}
	}
	return nil, shared.ErrNotFound
}

func (r *authTestTenants) FindAll(_ context.Context) ([]tenant.Tenant, error) {
	out := make([]tenant.Tenant, 0, len(r.tenants))
	for _, t := range r.tenants {
		out = append(out, *t)
	}
	return out, nil
}

func (r *authTestTenants) SlugExists(_ context.Context, slug string) (bool, error) {
	_, err := r.FindBySlug(context.Background(), slug)
	return err == nil, nil
}

func (r *authTestTenants) Create(_ context.Context, t *tenant.Tenant) error {
	for _, existing := range r.tenants {
		if existing.Slug == t.Slug {
			return shared.ErrAlreadyExists
		}
	}
	r.tenants = append(r.tenants, t)
	return nil
}

// authTestUsers keys its stores by tenancy, like the per-tenant databases
type authTestUsers struct {
	stores map[uuid.UUID]map[string]*domainidentity.User
}

func newAuthTestUsers() *authTestUsers {
	return &authTestUsers{stores: make(map[uuid.UUID]map[string]*domainidentity.User)}
}

func (r *authTestUsers) store(ctx context.Context) (map[string]*domainidentity.User, error) {
	tc, ok := tenant.TenancyFromContext(ctx)
	if !ok {
		return nil, shared.ErrNoTenantAssociation
	}
	users, ok := r.stores[tc.ID]
	if !ok {
		users = make(map[string]*domainidentity.User)
		r.stores[tc.ID] = users
	}
	return users, nil
}

func (r *authTestUsers) FindByID(ctx context.Context, id uuid.UUID) (*domainidentity.User, error) {
	users, err := r.store(ctx)
	if err != nil {
		return nil, err
	}
	for _, u := range users {
		if u.ID == id {
			return u, nil
		}
	}
	return nil, shared.ErrNotFound
}

func (r *authTestUsers) FindByUID(ctx context.Context, uid uuid.UUID) (*domainidentity.User, error) {
	users, err := r.store(ctx)
	if err != nil {
		return nil, err
	}
	for _, u := range users {
		if u.UID == uid {
			return u, nil
		}
	}
	return nil, shared.ErrNotFound
}

func (r *authTestUsers) FindByEmail(ctx context.Context, email string) (*domainidentity.User, error) {
	users, err := r.store(ctx)
	if err != nil {
		return nil, err
	}
	if u, ok := users[email]; ok {
		return u, nil
	}
	return nil, shared.ErrNotFound
}

func (r *authTestUsers) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	users, err := r.store(ctx)
	if err != nil {
		return false, err
	}
	_, ok := users[email]
	return ok, nil
}

func (r *authTestUsers) Create(ctx context.Context, u *domainidentity.User) error {
	users, err := r.store(ctx)
	if err != nil {
		return err
	}
	if _, ok := users[u.Email]; ok {
		return shared.ErrAlreadyExists
	}
	users[u.Email] = u
	return nil
}

func (r *authTestUsers) Update(ctx context.Context, u *domainidentity.User) error {
	users, err := r.store(ctx)
	if err != nil {
		return err
	}
	users[u.Email] = u
	return nil
}

type noopProvisioner struct{}

func (noopProvisioner) Provision(_ context.Context, _ string) error { return nil }

type authFixture struct {
	router    *gin.Engine
	tenants   *authTestTenants
	blacklist *auth.InMemoryTokenBlacklist
}

// newAuthFixture wires the real auth service and middleware chain over
// in-memory stores, so tests exercise the same path production requests
// take: token issued at login, resolved to a tenancy on the next call.
func newAuthFixture(t *testing.T) *authFixture {
	t.Helper()

	jwtService := auth.NewJWTService(config.JWTConfig{
		Secret:                "test-secret-0123456789abcdef0123456789",
		AccessTokenExpiration: time.Hour,
		Issuer:                "crm-test",
	})

	f := &authFixture{
		tenants:   &authTestTenants{},
		blacklist: auth.NewInMemoryTokenBlacklist(),
	}

	service := appidentity.NewAuthService(f.tenants, newAuthTestUsers(), noopProvisioner{}, jwtService, f.blacklist, zap.NewNop())
	h := NewAuthHandler(service)

	router := gin.New()
	public := router.Group("/auth")
	public.POST("/register-tenant", h.RegisterTenant)
	public.POST("/login", h.Login)
	public.POST("/tenant-lookup", h.TenantLookup)

	resolver := middleware.NewTenantResolver(f.tenants, nil)
	protected := router.Group("/auth")
	protected.Use(middleware.JWTAuth(middleware.JWTMiddlewareConfig{JWTService: jwtService, TokenBlacklist: f.blacklist}))
	protected.Use(resolver.Middleware())
	protected.GET("/me", h.Me)
	protected.POST("/logout", h.Logout)

	f.router = router
	return f
}

func (f *authFixture) register(t *testing.T, company, email string) AuthResponse {
	t.Helper()

	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, jsonRequest(t, http.MethodPost, "/auth/register-tenant", gin.H{
		"company":               company,
		"name":                  "Jane Owner",
		"email":                 email,
		"password":              "s3cret!pass",
		"password_confirmation": "s3cret!pass",
	}))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var body struct {
		Data AuthResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body.Data
}

func TestRegisterTenant(t *testing.T) {
	f := newAuthFixture(t)

	result := f.register(t, "Acme Recruitment", "jane@acme.test")

	assert.Equal(t, "acme-recruitment", result.Tenant.Slug)
	assert.Equal(t, "owner", result.User.Role)
	assert.Equal(t, "Bearer", result.Token.TokenType)
	assert.NotEmpty(t, result.Token.AccessToken)
}

func TestRegisterTenant_PasswordMismatch(t *testing.T) {
	f := newAuthFixture(t)

	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, jsonRequest(t, http.MethodPost, "/auth/register-tenant", gin.H{
		"company":               "Acme",
		"name":                  "Jane",
		"email":                 "jane@acme.test",
		"password":              "s3cret!pass",
		"password_confirmation": "different!pass",
	}))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "ERR_VALIDATION")
}

func TestLogin_WithTenantSlug(t *testing.T) {
	f := newAuthFixture(t)
	f.register(t, "Acme Recruitment", "jane@acme.test")

	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, jsonRequest(t, http.MethodPost, "/auth/login", gin.H{
		"tenant":   "acme-recruitment",
		"email":    "jane@acme.test",
		"password": "s3cret!pass",
	}))

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), "access_token")
}

func TestLogin_DiscoversTenantFromEmail(t *testing.T) {
	f := newAuthFixture(t)
	f.register(t, "Acme Recruitment", "jane@acme.test")

	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, jsonRequest(t, http.MethodPost, "/auth/login", gin.H{
		"email":    "jane@acme.test",
		"password": "s3cret!pass",
	}))

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}

func TestLogin_WrongPassword(t *testing.T) {
	f := newAuthFixture(t)
	f.register(t, "Acme Recruitment", "jane@acme.test")

	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, jsonRequest(t, http.MethodPost, "/auth/login", gin.H{
		"tenant":   "acme-recruitment",
		"email":    "jane@acme.test",
		"password": "wrong-password",
	}))

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, rec.Body.String(), "ERR_INVALID_CREDENTIALS")
}

func TestLogin_UnknownEmailMatchesWrongPasswordStatus(t *testing.T) {
	f := newAuthFixture(t)
	f.register(t, "Acme Recruitment", "jane@acme.test")

	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, jsonRequest(t, http.MethodPost, "/auth/login", gin.H{
		"email":    "nobody@nowhere.test",
		"password": "s3cret!pass",
	}))

	// Same status as a wrong password, so callers cannot probe for accounts
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestTenantLookup(t *testing.T) {
	f := newAuthFixture(t)
	f.register(t, "Acme Recruitment", "jane@acme.test")

	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, jsonRequest(t, http.MethodPost, "/auth/tenant-lookup", gin.H{
		"email": "jane@acme.test",
	}))

	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Data TenantLookupResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "acme-recruitment", body.Data.Domain)
}

func TestTenantLookup_UnknownEmail(t *testing.T) {
	f := newAuthFixture(t)

	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, jsonRequest(t, http.MethodPost, "/auth/tenant-lookup", gin.H{
		"email": "nobody@nowhere.test",
	}))

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, rec.Body.String(), "ERR_NO_ACCOUNT_FOUND")
}

func TestMe(t *testing.T) {
	f := newAuthFixture(t)
	registered := f.register(t, "Acme Recruitment", "jane@acme.test")

	req := httptest.NewRequest(http.MethodGet, "/auth/me", nil)
	req.Header.Set("Authorization", "Bearer "+registered.Token.AccessToken)
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var body struct {
		Data MeResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "jane@acme.test", body.Data.User.Email)
	assert.Equal(t, "acme-recruitment", body.Data.Tenant.Slug)
}

func TestMe_WithoutToken(t *testing.T) {
	f := newAuthFixture(t)

	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/auth/me", nil))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestLogout_RevokesToken(t *testing.T) {
	f := newAuthFixture(t)
	registered := f.register(t, "Acme Recruitment", "jane@acme.test")

	req := httptest.NewRequest(http.MethodPost, "/auth/logout", nil)
	req.Header.Set("Authorization", "Bearer "+registered.Token.AccessToken)
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	// The same token no longer works
	req = httptest.NewRequest(http.MethodGet, "/auth/me", nil)
	req.Header.Set("Authorization", "Bearer "+registered.Token.AccessToken)
	rec = httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "ERR_TOKEN_REVOKED")
}
