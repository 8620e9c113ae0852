package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	contactapp "github.com/crm/backend/internal/application/contact"
	identityapp "github.com/crm/backend/internal/application/identity"
	importapp "github.com/crm/backend/internal/application/imports"
	"github.com/crm/backend/internal/domain/imports"
	"github.com/crm/backend/internal/infrastructure/auth"
	"github.com/crm/backend/internal/infrastructure/cache"
	"github.com/crm/backend/internal/infrastructure/config"
	"github.com/crm/backend/internal/infrastructure/cvparse"
	"github.com/crm/backend/internal/infrastructure/jobqueue"
	"github.com/crm/backend/internal/infrastructure/logger"
	"github.com/crm/backend/internal/infrastructure/migration"
	"github.com/crm/backend/internal/infrastructure/persistence"
	"github.com/crm/backend/internal/infrastructure/storage"
	"github.com/crm/backend/internal/infrastructure/telemetry"
	"github.com/crm/backend/internal/interfaces/http/handler"
	"github.com/crm/backend/internal/interfaces/http/middleware"
	"github.com/crm/backend/internal/interfaces/http/router"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	log, err := logger.New(&logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() {
		_ = log.Sync()
	}()

	log.Info("Starting CRM Backend",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
	)

	// Tracing
	tracerProvider, err := telemetry.NewTracerProvider(context.Background(), telemetry.Config{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		SamplingRatio:     cfg.Telemetry.SamplingRatio,
		ServiceName:       cfg.Telemetry.ServiceName,
		Environment:       cfg.App.Env,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize tracing", zap.Error(err))
	}

	gormLog := logger.NewGormLogger(log, logger.MapGormLogLevel(cfg.Log.Level))

	// Landlord database: tenant directory and import batches
	landlordDB, err := persistence.NewDatabaseWithLogger(&cfg.Database, gormLog)
	if err != nil {
		log.Fatal("Failed to connect to landlord database", zap.Error(err))
	}
	defer func() {
		if err := landlordDB.Close(); err != nil {
			log.Error("Error closing landlord database", zap.Error(err))
		}
	}()
	log.Info("Landlord database connected", zap.String("database", cfg.Database.DBName))

	// Tenant databases: opened lazily per tenant, tenant-scoped
	dbTracing := telemetry.NewDBTracingPlugin(telemetry.DBTracingConfig{
		Enabled:         cfg.Telemetry.Enabled && cfg.Telemetry.DBTraceEnabled,
		SlowQueryThresh: telemetry.DefaultDBTracingConfig().SlowQueryThresh,
	}, log)
	manager := persistence.NewConnectionManager(&cfg.Database,
		persistence.WithGormLogger(gormLog),
		persistence.WithConnectionHook(func(db *gorm.DB) error {
			return dbTracing.RegisterOtelGorm(db, db.Migrator().CurrentDatabase())
		}),
	)
	defer func() {
		if err := manager.Close(); err != nil {
			log.Error("Error closing tenant connections", zap.Error(err))
		}
	}()

	// Redis: batch progress, the token blacklist, and the per-tenant cache
	redisClient, err := cache.NewRedisClient(cfg.Redis)
	if err != nil {
		log.Fatal("Failed to connect to Redis", zap.Error(err))
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			log.Error("Error closing Redis client", zap.Error(err))
		}
	}()

	blacklist := auth.NewRedisTokenBlacklist(redisClient)
	progressStore := cache.NewRedisProgressStore(redisClient, cfg.Import.ProgressTTL)
	tenantCache := cache.NewRedisTenantCache(redisClient)

	// Object storage for CV documents
	objectStorage, err := storage.NewS3ObjectStorage(&cfg.Storage, storage.WithLogger(log))
	if err != nil {
		log.Fatal("Failed to initialize object storage", zap.Error(err))
	}
	if err := objectStorage.EnsureBucket(context.Background()); err != nil {
		log.Fatal("Failed to ensure storage bucket", zap.Error(err))
	}

	// CV parser
	var parser imports.Parser
	if cfg.Parser.Endpoint != "" {
		parser, err = cvparse.NewClient(cfg.Parser, cvparse.WithLogger(log))
		if err != nil {
			log.Fatal("Failed to initialize CV parser client", zap.Error(err))
		}
	} else {
		log.Warn("No parser endpoint configured; using filename-based stub parser")
		parser = cvparse.NewStubParser()
	}

	// Repositories
	tenantRepo := persistence.NewGormTenantRepository(landlordDB.DB)
	batchRepo := persistence.NewGormBatchRepository(landlordDB.DB)
	userRepo := persistence.NewGormUserRepository(manager)
	contactRepo := persistence.NewGormContactRepository(manager)
	documentRepo := persistence.NewGormDocumentRepository(manager)

	// Services
	jwtService := auth.NewJWTService(cfg.JWT)
	provisioner := migration.NewTenantProvisioner(cfg.Database, migration.TenantPath("migrations"), log)
	authService := identityapp.NewAuthService(tenantRepo, userRepo, provisioner, jwtService, blacklist, log)
	contactService := contactapp.NewService(contactRepo, documentRepo, objectStorage, log,
		contactapp.WithListCache(tenantCache))

	// Import worker pool
	executor := importapp.NewImportExecutor(
		tenantRepo, contactRepo, documentRepo, batchRepo, progressStore, parser, objectStorage, log)
	queueConfig := jobqueue.DefaultConfig()
	if cfg.Import.Workers > 0 {
		queueConfig.Workers = cfg.Import.Workers
	}
	if cfg.Import.QueueCapacity > 0 {
		queueConfig.Capacity = cfg.Import.QueueCapacity
	}
	queue, err := jobqueue.NewQueue(queueConfig, executor, log)
	if err != nil {
		log.Fatal("Failed to create import queue", zap.Error(err))
	}
	queueCtx, cancelQueue := context.WithCancel(context.Background())
	defer cancelQueue()
	if err := queue.Start(queueCtx); err != nil {
		log.Fatal("Failed to start import queue", zap.Error(err))
	}

	batchService := importapp.NewBatchService(batchRepo, progressStore, queue, log)

	// HTTP surface
	tempDir := cfg.Import.TempDir
	if tempDir == "" {
		tempDir = os.TempDir()
	}
	if err := os.MkdirAll(tempDir, 0o755); err != nil {
		log.Fatal("Failed to create import temp directory", zap.Error(err))
	}

	engine := router.New(router.Deps{
		Config: cfg,
		Logger: log,
		JWTConfig: middleware.JWTMiddlewareConfig{
			JWTService:     jwtService,
			TokenBlacklist: blacklist,
			Logger:         log,
		},
		TenantResolver: middleware.NewTenantResolver(tenantRepo, log),
		Auth:           handler.NewAuthHandler(authService),
		Contacts:       handler.NewContactHandler(contactService),
		Imports:        handler.NewImportHandler(batchService, tempDir, log),
		System:         handler.NewSystemHandler(cfg.App.Name, cfg.App.Env),
	})

	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}
	if err := queue.Stop(shutdownCtx); err != nil {
		log.Error("Import queue did not drain cleanly", zap.Error(err))
	}
	if err := tracerProvider.Shutdown(shutdownCtx); err != nil {
		log.Error("Tracer shutdown failed", zap.Error(err))
	}

	log.Info("Server exited gracefully")
}
