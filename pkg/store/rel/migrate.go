package rel

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	migratepg "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/jackc/pgx/v5/stdlib" // PostgreSQL driver for database/sql

	"github.com/aquilhq/actionlog/internal/logger"
	"github.com/aquilhq/actionlog/pkg/store/rel/migrations"
)

// runMigrations executes database migrations using golang-migrate.
// golang-migrate takes a PostgreSQL advisory lock, so concurrent instances
// racing at startup apply the schema exactly once.
func runMigrations(ctx context.Context, connString string) error {
	logger.Info("Running database migrations")

	// golang-migrate needs database/sql, not GORM
	db, err := sql.Open("pgx", connString)
	if err != nil {
		return fmt.Errorf("failed to open database connection: %w", err)
	}
	defer db.Close()

	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}

	driver, err := migratepg.WithInstance(db, &migratepg.Config{
		MigrationsTable: "schema_migrations",
	})
	if err != nil {
		return fmt.Errorf("failed to create postgres driver: %w", err)
	}

	sourceDriver, err := iofs.New(migrations.FS, ".")
	if err != nil {
		return fmt.Errorf("failed to create source driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", sourceDriver, "postgres", driver)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}

	err = m.Up()
	if err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("migration failed: %w", err)
	}

	if err == migrate.ErrNoChange {
		logger.Info("No migrations to apply, database is up to date")
	} else {
		logger.Info("Migrations completed successfully")
	}

	version, dirty, err := m.Version()
	if err != nil && err != migrate.ErrNilVersion {
		return fmt.Errorf("failed to get migration version: %w", err)
	}

	if err != migrate.ErrNilVersion {
		logger.Info("Current schema version", "version", version, "dirty", dirty)
		if dirty {
			logger.Warn("Database schema is in dirty state, manual intervention may be required")
		}
	}

	return nil
}

// RunMigrations applies the PostgreSQL schema migrations. Exposed for manual
// execution from the CLI.
func RunMigrations(ctx context.Context, cfg *PostgresConfig) error {
	if cfg.Host == "" || cfg.Database == "" || cfg.User == "" {
		return fmt.Errorf("postgres host, database, and user are required")
	}
	return runMigrations(ctx, cfg.DSN())
}
