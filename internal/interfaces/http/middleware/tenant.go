package middleware

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/crm/backend/internal/domain/tenant"
	"github.com/crm/backend/internal/infrastructure/logger"
	"github.com/crm/backend/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Tenant context keys in gin.Context
const (
	TenantUIDKey  = "tenant_uid"
	TenantSlugKey = "tenant_slug"
)

// directoryCacheTTL bounds how long a resolved tenancy may be served
// without re-reading the directory row
const directoryCacheTTL = 30 * time.Second

// TenantResolver resolves the active tenant for authenticated requests
// from the token claims and installs the tenancy into the request
// context. Everything downstream — repositories, the connection manager,
// cache namespacing — reads it from there.
type TenantResolver struct {
	tenants tenant.Repository
	logger  *zap.Logger

	mu    sync.RWMutex
	cache map[uuid.UUID]cachedTenancy
}

type cachedTenancy struct {
	tenancy   tenant.Tenancy
	expiresAt time.Time
}

// NewTenantResolver creates a resolver backed by the tenant directory
func NewTenantResolver(tenants tenant.Repository, log *zap.Logger) *TenantResolver {
	if log == nil {
		log = zap.NewNop()
	}
	return &TenantResolver{
		tenants: tenants,
		logger:  log,
		cache:   make(map[uuid.UUID]cachedTenancy),
	}
}

// Middleware returns the gin middleware. It must run after JWTAuth.
// Requests without claims are rejected 401; claims naming a tenant that
// no longer exists are rejected 403 — the resolver fails closed.
func (r *TenantResolver) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		claims := GetClaims(c)
		if claims == nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized,
				dto.NewErrorResponse(dto.ErrCodeUnauthorized, "Authentication required"))
			return
		}

		tenantUID, err := claims.GetTenantUUID()
		if err != nil {
			c.AbortWithStatusJSON(http.StatusForbidden,
				dto.NewErrorResponse(dto.ErrCodeNoTenantAssociation, "Token carries no usable tenant"))
			return
		}

		tc, err := r.resolve(c.Request.Context(), tenantUID)
		if err != nil {
			r.logger.Warn("tenant resolution failed",
				zap.String("tenant_uid", tenantUID.String()),
				zap.Error(err))
			c.AbortWithStatusJSON(http.StatusForbidden,
				dto.NewErrorResponse(dto.ErrCodeNoTenantAssociation, "Tenant is unknown or inactive"))
			return
		}

		c.Set(TenantUIDKey, tc.UID.String())
		c.Set(TenantSlugKey, tc.Slug)

		ctx := tenant.WithTenancy(c.Request.Context(), tc)
		log := logger.FromContext(ctx)
		ctx, _ = logger.WithTenant(ctx, log, tc.UID.String(), tc.Slug)
		c.Request = c.Request.WithContext(ctx)

		c.Next()
	}
}

// resolve loads the tenancy for a tenant UID, serving from the local
// cache within its TTL
func (r *TenantResolver) resolve(ctx context.Context, uid uuid.UUID) (tenant.Tenancy, error) {
	r.mu.RLock()
	entry, ok := r.cache[uid]
	r.mu.RUnlock()
	if ok && time.Now().Before(entry.expiresAt) {
		return entry.tenancy, nil
	}

	t, err := r.tenants.FindByUID(ctx, uid)
	if err != nil {
		return tenant.Tenancy{}, err
	}
	tc := tenant.TenancyOf(t)

	r.mu.Lock()
	r.cache[uid] = cachedTenancy{tenancy: tc, expiresAt: time.Now().Add(directoryCacheTTL)}
	r.mu.Unlock()

	return tc, nil
}

// Evict drops a cached tenancy, forcing the next request to re-read the
// directory row
func (r *TenantResolver) Evict(uid uuid.UUID) {
	r.mu.Lock()
	delete(r.cache, uid)
	r.mu.Unlock()
}

// GetTenantSlug retrieves the resolved tenant slug from gin.Context
func GetTenantSlug(c *gin.Context) string {
	if slug, exists := c.Get(TenantSlugKey); exists {
		if s, ok := slug.(string); ok {
			return s
		}
	}
	return ""
}
