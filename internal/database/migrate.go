package database

import (
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file" // file:// source driver

	"github.com/jonesrussell/gopost/internal/logger"
)

// newMigrator builds a migrate instance from a live connection and the
// on-disk migrations directory.
func newMigrator(cfg Config, migrationsPath string) (*migrate.Migrate, func(), error) {
	dsn := fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.DBName, cfg.SSLMode,
	)

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, nil, fmt.Errorf("open database connection: %w", err)
	}
	cleanup := func() { db.Close() }

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("create postgres driver: %w", err)
	}

	if absPath, absErr := filepath.Abs(migrationsPath); absErr == nil {
		migrationsPath = absPath
	}
	m, err := migrate.NewWithDatabaseInstance(
		fmt.Sprintf("file://%s", migrationsPath),
		"postgres",
		driver,
	)
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("create migrate instance: %w", err)
	}
	return m, cleanup, nil
}

// RunMigrations applies all pending migrations.
func RunMigrations(cfg Config, migrationsPath string, log logger.Logger) error {
	m, cleanup, err := newMigrator(cfg, migrationsPath)
	if err != nil {
		return err
	}
	defer cleanup()

	if err := m.Up(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			log.Info("No pending migrations",
				logger.String("migrations_path", migrationsPath),
			)
			return nil
		}
		return fmt.Errorf("run migrations: %w", err)
	}

	log.Info("Migrations applied successfully",
		logger.String("migrations_path", migrationsPath),
	)
	return nil
}

// MigrateDown rolls back N migrations (default: 1).
func MigrateDown(cfg Config, migrationsPath string, steps int, log logger.Logger) error {
	m, cleanup, err := newMigrator(cfg, migrationsPath)
	if err != nil {
		return err
	}
	defer cleanup()

	if steps <= 0 {
		steps = 1
	}

	if err := m.Steps(-steps); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			log.Info("No migrations to rollback")
			return nil
		}
		return fmt.Errorf("rollback migrations: %w", err)
	}

	log.Info("Migrations rolled back successfully",
		logger.Int("steps", steps),
	)
	return nil
}
