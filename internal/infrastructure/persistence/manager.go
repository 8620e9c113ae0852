package persistence

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/crm/backend/internal/domain/tenant"
	"github.com/crm/backend/internal/infrastructure/config"
	"github.com/crm/backend/internal/infrastructure/persistence/tenantscope"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Dialector builds a GORM dialector for a tenant database. It exists so
// tests can substitute a non-postgres driver.
type Dialector func(database, dsn string) gorm.Dialector

// ManagerOption configures a ConnectionManager
type ManagerOption func(*ConnectionManager)

// WithDialector overrides the dialector used to open tenant databases
func WithDialector(d Dialector) ManagerOption {
	return func(m *ConnectionManager) {
		m.dialector = d
	}
}

// WithGormLogger sets the GORM logger for tenant connections
func WithGormLogger(l gormlogger.Interface) ManagerOption {
	return func(m *ConnectionManager) {
		m.gormLogger = l
	}
}

// WithConnectionHook adds a hook run once on every newly opened tenant
// connection, e.g. to register tracing plugins.
func WithConnectionHook(hook func(db *gorm.DB) error) ManagerOption {
	return func(m *ConnectionManager) {
		m.hooks = append(m.hooks, hook)
	}
}

// ConnectionManager hands out GORM handles for tenant databases. Handles
// are opened lazily, cached per database, and carry the tenant scope
// callbacks so every query on them is tenant-filtered.
type ConnectionManager struct {
	cfg        *config.DatabaseConfig
	dialector  Dialector
	gormLogger gormlogger.Interface
	hooks      []func(db *gorm.DB) error

	mu      sync.Mutex
	handles map[string]*gorm.DB // keyed by database name
}

// NewConnectionManager creates a ConnectionManager for tenant databases
func NewConnectionManager(cfg *config.DatabaseConfig, opts ...ManagerOption) *ConnectionManager {
	m := &ConnectionManager{
		cfg: cfg,
		dialector: func(_, dsn string) gorm.Dialector {
			return postgres.Open(dsn)
		},
		gormLogger: gormlogger.Default.LogMode(gormlogger.Silent),
		handles:    make(map[string]*gorm.DB),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Handle returns the GORM handle for the tenant in the context. It fails
// when no tenant is present; callers never get an unscoped connection by
// accident.
func (m *ConnectionManager) Handle(ctx context.Context) (*gorm.DB, error) {
	t, ok := tenant.TenancyFromContext(ctx)
	if !ok {
		return nil, tenantscope.ErrTenantRequired
	}
	return m.HandleFor(t)
}

// HandleFor returns the GORM handle for a specific tenant
func (m *ConnectionManager) HandleFor(t tenant.Tenancy) (*gorm.DB, error) {
	if t.Database == "" {
		return nil, fmt.Errorf("tenant %s has no database assigned", t.Slug)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if db, ok := m.handles[t.Database]; ok {
		return db, nil
	}

	db, err := m.open(t.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to open tenant database %s: %w", t.Database, err)
	}
	m.handles[t.Database] = db
	return db, nil
}

func (m *ConnectionManager) open(database string) (*gorm.DB, error) {
	db, err := gorm.Open(m.dialector(database, m.cfg.DSNFor(database)), &gorm.Config{
		Logger:                 m.gormLogger,
		SkipDefaultTransaction: true,
		PrepareStmt:            true,
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(m.cfg.TenantMaxOpenConns)
	sqlDB.SetMaxIdleConns(m.cfg.TenantMaxIdleConns)
	sqlDB.SetConnMaxLifetime(time.Duration(m.cfg.ConnMaxLifetime) * time.Minute)
	sqlDB.SetConnMaxIdleTime(time.Duration(m.cfg.ConnMaxIdleTime) * time.Minute)

	tenantscope.EnableAutoTenantFilter(db, true)

	for _, hook := range m.hooks {
		if err := hook(db); err != nil {
			return nil, err
		}
	}
	return db, nil
}

// Evict closes and forgets the handle for a database, e.g. after the
// tenant was deleted.
func (m *ConnectionManager) Evict(database string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	db, ok := m.handles[database]
	if !ok {
		return nil
	}
	delete(m.handles, database)

	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Close closes all cached tenant connections
func (m *ConnectionManager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var firstErr error
	for name, db := range m.handles {
		sqlDB, err := db.DB()
		if err == nil {
			err = sqlDB.Close()
		}
		if err != nil && firstErr == nil {
			firstErr = fmt.Errorf("closing tenant database %s: %w", name, err)
		}
		delete(m.handles, name)
	}
	return firstErr
}
