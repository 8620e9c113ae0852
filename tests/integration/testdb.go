// Package integration provides integration tests for the CRM backend.
// It uses testcontainers to run a real PostgreSQL server so the
// database-per-tenant routing is exercised end to end: the landlord
// schema is applied to the container's default database and every test
// tenant gets its own database provisioned through the same code path
// production uses.
package integration

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"

	"github.com/crm/backend/internal/domain/tenant"
	"github.com/crm/backend/internal/infrastructure/config"
	"github.com/crm/backend/internal/infrastructure/migration"
	"github.com/crm/backend/internal/infrastructure/persistence"
)

const (
	testDBUser     = "postgres"
	testDBPassword = "admin123"
	testDBLandlord = "crm_landlord_test"
)

// TestCluster is a PostgreSQL server hosting the landlord database plus
// any tenant databases provisioned during a test.
type TestCluster struct {
	Container   testcontainers.Container
	Config      config.DatabaseConfig
	Landlord    *persistence.Database
	Manager     *persistence.ConnectionManager
	TenantRepo  *persistence.GormTenantRepository
	Provisioner *migration.TenantProvisioner

	t *testing.T
}

// NewTestCluster starts a PostgreSQL container, migrates the landlord
// schema, and wires the connection manager and tenant provisioner
// against it. Everything is cleaned up when the test finishes.
func NewTestCluster(t *testing.T) *TestCluster {
	t.Helper()

	ctx := context.Background()

	container, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase(testDBLandlord),
		tcpostgres.WithUsername(testDBUser),
		tcpostgres.WithPassword(testDBPassword),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	require.NoError(t, err, "Failed to start PostgreSQL container")

	host, err := container.Host(ctx)
	require.NoError(t, err, "Failed to get container host")
	port, err := container.MappedPort(ctx, "5432/tcp")
	require.NoError(t, err, "Failed to get mapped port")

	cfg := config.DatabaseConfig{
		Host:               host,
		Port:               port.Int(),
		User:               testDBUser,
		Password:           testDBPassword,
		DBName:             testDBLandlord,
		SSLMode:            "disable",
		MaxOpenConns:       5,
		MaxIdleConns:       2,
		ConnMaxLifetime:    5,
		ConnMaxIdleTime:    5,
		TenantMaxOpenConns: 3,
		TenantMaxIdleConns: 1,
	}

	migrationsRoot := findMigrationsPath()
	require.NotEmpty(t, migrationsRoot, "Could not find migrations directory")

	runLandlordMigrations(t, &cfg, migrationsRoot)

	landlord, err := persistence.NewDatabase(&cfg)
	require.NoError(t, err, "Failed to connect to landlord database")

	cluster := &TestCluster{
		Container:   container,
		Config:      cfg,
		Landlord:    landlord,
		Manager:     persistence.NewConnectionManager(&cfg),
		TenantRepo:  persistence.NewGormTenantRepository(landlord.DB),
		Provisioner: migration.NewTenantProvisioner(cfg, migrationsRoot, zap.NewNop()),
		t:           t,
	}

	t.Cleanup(func() {
		cluster.Close()
	})

	return cluster
}

// CreateTenant registers a tenant in the landlord directory and
// provisions its dedicated database with the tenant schema applied.
func (c *TestCluster) CreateTenant(name, slug string) tenant.Tenancy {
	c.t.Helper()

	ctx := context.Background()

	tn, err := tenant.New(name, slug)
	require.NoError(c.t, err, "Failed to build tenant")
	require.NoError(c.t, c.TenantRepo.Create(ctx, tn), "Failed to save tenant")
	require.NoError(c.t, c.Provisioner.Provision(ctx, tn.Database),
		"Failed to provision tenant database %s", tn.Database)

	return tenant.TenancyOf(tn)
}

// Close tears down tenant connections, the landlord connection, and the
// container.
func (c *TestCluster) Close() {
	ctx := context.Background()

	if c.Manager != nil {
		if err := c.Manager.Close(); err != nil {
			c.t.Logf("Warning: failed to close tenant connections: %v", err)
		}
	}
	if c.Landlord != nil {
		if err := c.Landlord.Close(); err != nil {
			c.t.Logf("Warning: failed to close landlord connection: %v", err)
		}
	}
	if c.Container != nil {
		if err := c.Container.Terminate(ctx); err != nil {
			c.t.Logf("Warning: failed to terminate container: %v", err)
		}
	}
}

func runLandlordMigrations(t *testing.T, cfg *config.DatabaseConfig, migrationsRoot string) {
	t.Helper()

	m, err := migration.NewFromURL(cfg.DSN(), migration.LandlordPath(migrationsRoot), zap.NewNop())
	require.NoError(t, err, "Failed to open landlord migrator")
	defer m.Close()

	require.NoError(t, m.Up(), "Failed to run landlord migrations")
}

// findMigrationsPath locates the migrations directory relative to this
// source file, falling back to the working directory.
func findMigrationsPath() string {
	_, filename, _, ok := runtime.Caller(0)
	if ok {
		dir := filepath.Dir(filename)
		for i := 0; i < 5; i++ {
			candidate := filepath.Join(dir, "migrations")
			if _, err := os.Stat(candidate); err == nil {
				return candidate
			}
			dir = filepath.Dir(dir)
		}
	}

	if wd, err := os.Getwd(); err == nil {
		for _, p := range []string{
			filepath.Join(wd, "migrations"),
			filepath.Join(wd, "..", "migrations"),
			filepath.Join(wd, "..", "..", "migrations"),
		} {
			if _, err := os.Stat(p); err == nil {
				return p
			}
		}
	}

	return ""
}

// uniqueSlug appends a short random suffix so parallel tests never
// collide on slugs or database names.
func uniqueSlug(prefix string) string {
	return fmt.Sprintf("%s-%d", prefix, time.Now().UnixNano()%1_000_000)
}
