package migration

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	infraconfig "github.com/crm/backend/internal/infrastructure/config"
	"github.com/lib/pq"
	"go.uber.org/zap"
)

// TenantProvisioner creates a tenant's dedicated database and brings its
// schema up to date. Provisioning is idempotent so a crashed registration
// can be replayed.
type TenantProvisioner struct {
	cfg            infraconfig.DatabaseConfig
	migrationsPath string
	logger         *zap.Logger
}

// NewTenantProvisioner creates a TenantProvisioner. migrationsPath is the
// migrations root; the tenant schema is read from its tenant subdirectory.
func NewTenantProvisioner(cfg infraconfig.DatabaseConfig, migrationsPath string, logger *zap.Logger) *TenantProvisioner {
	return &TenantProvisioner{
		cfg:            cfg,
		migrationsPath: migrationsPath,
		logger:         logger,
	}
}

// Provision creates the database if it does not exist and runs all tenant
// migrations against it.
func (p *TenantProvisioner) Provision(ctx context.Context, database string) error {
	if database == "" {
		return fmt.Errorf("tenant database name is required")
	}

	if err := p.createDatabase(ctx, database); err != nil {
		return err
	}
	return p.Migrate(database)
}

// Migrate runs all pending tenant migrations against an existing database
func (p *TenantProvisioner) Migrate(database string) error {
	m, err := NewFromURL(p.cfg.DSNFor(database), TenantPath(p.migrationsPath), p.logger)
	if err != nil {
		return fmt.Errorf("failed to open tenant migrator for %s: %w", database, err)
	}
	defer m.Close()

	if err := m.Up(); err != nil {
		return fmt.Errorf("tenant migration failed for %s: %w", database, err)
	}

	p.logger.Info("Tenant database migrated", zap.String("database", database))
	return nil
}

// createDatabase issues CREATE DATABASE from a maintenance connection.
// Postgres has no CREATE DATABASE IF NOT EXISTS, so existence is checked
// first and a duplicate race is tolerated.
func (p *TenantProvisioner) createDatabase(ctx context.Context, database string) error {
	admin, err := sql.Open("postgres", p.cfg.DSNFor("postgres"))
	if err != nil {
		return fmt.Errorf("failed to open maintenance connection: %w", err)
	}
	defer admin.Close()

	var exists bool
	err = admin.QueryRowContext(ctx,
		"SELECT EXISTS(SELECT 1 FROM pg_database WHERE datname = $1)", database).Scan(&exists)
	if err != nil {
		return fmt.Errorf("failed to check database existence: %w", err)
	}
	if exists {
		return nil
	}

	p.logger.Info("Creating tenant database", zap.String("database", database))
	_, err = admin.ExecContext(ctx, "CREATE DATABASE "+pq.QuoteIdentifier(database))
	if err != nil {
		var pqErr *pq.Error
		// 42P04 duplicate_database: another request won the race.
		if errors.As(err, &pqErr) && pqErr.Code == "42P04" {
			return nil
		}
		return fmt.Errorf("failed to create tenant database %s: %w", database, err)
	}
	return nil
}

// Drop removes a tenant database. Used by tests and tenant offboarding.
func (p *TenantProvisioner) Drop(ctx context.Context, database string) error {
	admin, err := sql.Open("postgres", p.cfg.DSNFor("postgres"))
	if err != nil {
		return fmt.Errorf("failed to open maintenance connection: %w", err)
	}
	defer admin.Close()

	p.logger.Warn("Dropping tenant database", zap.String("database", database))
	_, err = admin.ExecContext(ctx, "DROP DATABASE IF EXISTS "+pq.QuoteIdentifier(database))
	if err != nil {
		return fmt.Errorf("failed to drop tenant database %s: %w", database, err)
	}
	return nil
}
