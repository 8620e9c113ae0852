package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/crm/backend/internal/infrastructure/config"
	"github.com/crm/backend/internal/infrastructure/logger"
	"github.com/crm/backend/internal/infrastructure/migration"
	"github.com/crm/backend/internal/infrastructure/persistence"
	_ "github.com/lib/pq"
	"go.uber.org/zap"
)

const defaultMigrationsPath = "migrations"

// The landlord target migrates the shared directory database. The tenant
// target migrates one tenant database when -database is given, otherwise
// every database listed in the tenant directory.
func main() {
	var (
		migrationsPath string
		target         string
		database       string
		logLevel       string
	)

	flag.StringVar(&migrationsPath, "path", "", "Path to migrations directory (default: ./migrations)")
	flag.StringVar(&target, "target", "landlord", "Migration target: landlord or tenant")
	flag.StringVar(&database, "database", "", "Tenant database name (tenant target only; empty = all tenants)")
	flag.StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		printUsage()
		os.Exit(1)
	}
	command := args[0]

	log, err := logger.New(&logger.Config{
		Level:  logLevel,
		Format: "console",
		Output: "stdout",
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = log.Sync()
	}()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load configuration", zap.Error(err))
	}

	if migrationsPath == "" {
		migrationsPath = defaultMigrationsPath
	}
	absPath, err := filepath.Abs(migrationsPath)
	if err != nil {
		log.Fatal("Failed to resolve migrations path", zap.Error(err))
	}
	migrationsPath = absPath

	var targetPath string
	switch target {
	case "landlord":
		targetPath = migration.LandlordPath(migrationsPath)
	case "tenant":
		targetPath = migration.TenantPath(migrationsPath)
	default:
		log.Fatal("Unknown target", zap.String("target", target))
	}

	log.Info("Migration CLI started",
		zap.String("command", command),
		zap.String("target", target),
		zap.String("migrations_path", targetPath),
	)

	// create and list work without a database connection
	switch command {
	case "create":
		if len(args) < 2 {
			log.Fatal("Migration name required. Usage: migrate -target <t> create <name>")
		}
		mf, err := migration.CreateMigration(targetPath, args[1])
		if err != nil {
			log.Fatal("Failed to create migration", zap.Error(err))
		}
		log.Info("Migration created",
			zap.String("version", mf.Version),
			zap.String("up_file", mf.UpPath),
			zap.String("down_file", mf.DownPath),
		)
		return

	case "list":
		migrations, err := migration.ListMigrations(targetPath)
		if err != nil {
			log.Fatal("Failed to list migrations", zap.Error(err))
		}
		if len(migrations) == 0 {
			log.Info("No migrations found")
			return
		}
		log.Info("Available migrations", zap.Int("count", len(migrations)))
		for _, m := range migrations {
			fmt.Println("  -", m)
		}
		return
	}

	databases, err := targetDatabases(&cfg.Database, target, database, log)
	if err != nil {
		log.Fatal("Failed to determine target databases", zap.Error(err))
	}
	if len(databases) == 0 {
		log.Info("No databases to migrate")
		return
	}

	for _, dbName := range databases {
		if err := runCommand(&cfg.Database, dbName, targetPath, command, args, log); err != nil {
			log.Fatal("Migration command failed",
				zap.String("database", dbName),
				zap.Error(err))
		}
	}
}

// targetDatabases resolves which databases the command runs against
func targetDatabases(cfg *config.DatabaseConfig, target, database string, log *zap.Logger) ([]string, error) {
	if target == "landlord" {
		return []string{cfg.DBName}, nil
	}
	if database != "" {
		return []string{database}, nil
	}

	// All tenants: read the directory from the landlord database
	landlord, err := persistence.NewDatabase(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to landlord database: %w", err)
	}
	defer func() {
		_ = landlord.Close()
	}()

	tenants, err := persistence.NewGormTenantRepository(landlord.DB).FindAll(context.Background())
	if err != nil {
		return nil, fmt.Errorf("failed to list tenants: %w", err)
	}

	databases := make([]string, 0, len(tenants))
	for _, t := range tenants {
		databases = append(databases, t.Database)
	}
	log.Info("Migrating all tenant databases", zap.Int("count", len(databases)))
	return databases, nil
}

func runCommand(cfg *config.DatabaseConfig, dbName, migrationsPath, command string, args []string, log *zap.Logger) error {
	db, err := sql.Open("postgres", cfg.DSNFor(dbName))
	if err != nil {
		return fmt.Errorf("failed to connect to %s: %w", dbName, err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		return fmt.Errorf("failed to ping %s: %w", dbName, err)
	}

	m, err := migration.New(db, migrationsPath, log.With(zap.String("database", dbName)))
	if err != nil {
		return err
	}
	defer m.Close()

	switch command {
	case "up":
		return m.Up()

	case "down":
		return m.Down()

	case "step":
		if len(args) < 2 {
			return fmt.Errorf("step count required")
		}
		n, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("invalid step count %q", args[1])
		}
		return m.Steps(n)

	case "version":
		version, dirty, err := m.Version()
		if err != nil {
			return err
		}
		if version == 0 {
			log.Info("No migrations applied", zap.String("database", dbName))
		} else {
			log.Info("Current migration version",
				zap.String("database", dbName),
				zap.Uint("version", version),
				zap.Bool("dirty", dirty),
			)
		}
		return nil

	case "force":
		if len(args) < 2 {
			return fmt.Errorf("version required")
		}
		version, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("invalid version number %q", args[1])
		}
		log.Warn("Forcing migration version - use with caution!")
		return m.Force(version)

	default:
		printUsage()
		return fmt.Errorf("unknown command %q", command)
	}
}

func printUsage() {
	fmt.Println(`CRM Database Migration Tool

Usage:
  migrate [flags] <command> [arguments]

Commands:
  up                    Apply all pending migrations
  down                  Roll back all migrations
  step <n>              Apply n migrations (positive=up, negative=down)
  version               Show current migration version
  force <version>       Force set migration version (use with caution)
  create <name>         Create a new migration file pair
  list                  List available migrations

Flags:
  -path string          Path to migrations directory (default: ./migrations)
  -target string        landlord (default) or tenant
  -database string      Single tenant database (tenant target only)
  -log-level string     Log level (default: info)

Examples:
  migrate up                                Migrate the landlord database
  migrate -target tenant up                 Migrate every tenant database
  migrate -target tenant -database tenant_acme up
  migrate -target tenant create add_contacts_index`)
}
