package database

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/jackc/pgx/v5/stdlib"
	"go.uber.org/zap"
)

// DefaultMigrationsSource is relative to the working directory of the binary
const DefaultMigrationsSource = "file://migrations"

// MigrationResult describes the schema state after Migrate
type MigrationResult struct {
	Version uint
	Applied bool
}

// Migrate applies all pending up migrations from source to databaseURL.
func Migrate(databaseURL, source string, logger *zap.Logger) (*MigrationResult, error) {
	if source == "" {
		source = DefaultMigrationsSource
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database for migrations: %w", err)
	}
	defer db.Close()

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to create migration driver: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance(source, "postgres", driver)
	if err != nil {
		return nil, fmt.Errorf("failed to create migrate instance: %w", err)
	}

	applied := true
	if err := m.Up(); err != nil {
		if !errors.Is(err, migrate.ErrNoChange) {
			return nil, fmt.Errorf("failed to apply migrations: %w", err)
		}
		applied = false
	}

	version, dirty, err := m.Version()
	if err != nil {
		if errors.Is(err, migrate.ErrNilVersion) {
			logger.Info("migrations: no migrations found", zap.String("source", source))
			return &MigrationResult{}, nil
		}
		return nil, fmt.Errorf("failed to get migration version: %w", err)
	}
	if dirty {
		return nil, fmt.Errorf("migration version %d is dirty - manual intervention required", version)
	}

	if applied {
		logger.Info("migrations: applied successfully", zap.Uint("version", version))
	} else {
		logger.Info("migrations: database is up to date", zap.Uint("version", version))
	}

	return &MigrationResult{Version: version, Applied: applied}, nil
}
