package router

import (
	"github.com/crm/backend/internal/infrastructure/config"
	"github.com/crm/backend/internal/infrastructure/logger"
	"github.com/crm/backend/internal/interfaces/http/handler"
	"github.com/crm/backend/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/zap"
)

// Deps carries everything the HTTP surface needs. All handlers are
// required; TenantResolver guards every tenant-scoped route.
type Deps struct {
	Config         *config.Config
	Logger         *zap.Logger
	JWTConfig      middleware.JWTMiddlewareConfig
	TenantResolver *middleware.TenantResolver
	Auth           *handler.AuthHandler
	Contacts       *handler.ContactHandler
	Imports        *handler.ImportHandler
	System         *handler.SystemHandler
}

// New builds the gin engine with the full middleware chain and all
// routes registered.
func New(deps Deps) *gin.Engine {
	cfg := deps.Config
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}

	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	middleware.SetupValidator()

	engine := gin.New()
	if len(cfg.HTTP.TrustedProxies) > 0 {
		_ = engine.SetTrustedProxies(cfg.HTTP.TrustedProxies)
	}

	engine.Use(middleware.RequestID())
	engine.Use(logger.Recovery(deps.Logger))
	engine.Use(logger.GinMiddleware(deps.Logger))
	engine.Use(middleware.Secure())
	engine.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: cfg.HTTP.CORSAllowOrigins,
		AllowMethods: cfg.HTTP.CORSAllowMethods,
		AllowHeaders: cfg.HTTP.CORSAllowHeaders,
	}))
	engine.Use(middleware.BodyLimit(cfg.HTTP.MaxBodySize))
	if cfg.Telemetry.Enabled {
		engine.Use(otelgin.Middleware(cfg.Telemetry.ServiceName))
	}

	engine.GET("/health", deps.System.Health)

	api := engine.Group("/api/v1")

	// Login and registration run before any tenant is known, so they
	// sit outside the JWT chain behind their own tighter rate limit.
	public := api.Group("/auth")
	if cfg.HTTP.AuthRateLimitEnabled {
		authLimiter := middleware.NewRateLimiter(cfg.HTTP.AuthRateLimitRequests, cfg.HTTP.AuthRateLimitWindow)
		public.Use(middleware.RateLimit(authLimiter))
	}
	public.POST("/register-tenant", deps.Auth.RegisterTenant)
	public.POST("/login", deps.Auth.Login)
	public.POST("/tenant-lookup", deps.Auth.TenantLookup)

	protected := api.Group("")
	protected.Use(middleware.JWTAuth(deps.JWTConfig))
	protected.Use(deps.TenantResolver.Middleware())
	if cfg.HTTP.RateLimitEnabled {
		limiter := middleware.NewRateLimiter(cfg.HTTP.RateLimitRequests, cfg.HTTP.RateLimitWindow)
		protected.Use(middleware.RateLimit(limiter))
	}

	protected.GET("/auth/me", deps.Auth.Me)
	protected.POST("/auth/logout", deps.Auth.Logout)

	protected.GET("/contacts", deps.Contacts.List)
	protected.POST("/contacts", deps.Contacts.Create)
	protected.GET("/contacts/:uid", deps.Contacts.Get)
	protected.PUT("/contacts/:uid", deps.Contacts.Update)
	protected.DELETE("/contacts/:uid", deps.Contacts.Delete)
	protected.GET("/contacts/:uid/documents", deps.Contacts.ListDocuments)

	protected.POST("/imports/cv", deps.Imports.UploadCVs)
	protected.GET("/imports/cv/:uid", deps.Imports.GetBatchStatus)

	return engine
}
