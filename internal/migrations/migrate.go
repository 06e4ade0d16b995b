// Package migrations applies the embedded PostgreSQL schema.
package migrations

import (
	"embed"
	"errors"
	"fmt"
	"net/url"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5" // registers the pgx5 driver
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"go.uber.org/zap"
)

//go:embed sql/*.sql
var files embed.FS

// Up applies all pending migrations.
func Up(databaseURL string, logger *zap.Logger) error {
	m, err := newMigrate(databaseURL)
	if err != nil {
		return err
	}
	defer closeMigrate(m, logger)

	if err := m.Up(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			logger.Info("no pending migrations")

			return nil
		}

		return fmt.Errorf("run migrations: %w", err)
	}

	version, _, _ := m.Version()
	logger.Info("migrations applied", zap.Uint("version", version))

	return nil
}

// Down rolls back the given number of migrations, at least one.
func Down(databaseURL string, steps int, logger *zap.Logger) error {
	m, err := newMigrate(databaseURL)
	if err != nil {
		return err
	}
	defer closeMigrate(m, logger)

	if steps <= 0 {
		steps = 1
	}

	if err := m.Steps(-steps); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			logger.Info("no migrations to roll back")

			return nil
		}

		return fmt.Errorf("roll back migrations: %w", err)
	}

	logger.Info("migrations rolled back", zap.Int("steps", steps))

	return nil
}

func newMigrate(databaseURL string) (*migrate.Migrate, error) {
	src, err := iofs.New(files, "sql")
	if err != nil {
		return nil, fmt.Errorf("open embedded migrations: %w", err)
	}

	dsn, err := driverURL(databaseURL)
	if err != nil {
		return nil, err
	}

	m, err := migrate.NewWithSourceInstance("iofs", src, dsn)
	if err != nil {
		return nil, fmt.Errorf("create migrate instance: %w", err)
	}

	return m, nil
}

func closeMigrate(m *migrate.Migrate, logger *zap.Logger) {
	srcErr, dbErr := m.Close()
	if srcErr != nil || dbErr != nil {
		logger.Warn("closing migrate instance", zap.NamedError("source", srcErr), zap.NamedError("database", dbErr))
	}
}

// driverURL rewrites a postgres:// URL to the pgx5:// scheme the migrate driver registers.
func driverURL(databaseURL string) (string, error) {
	u, err := url.Parse(databaseURL)
	if err != nil {
		return "", fmt.Errorf("parse database url: %w", err)
	}

	switch u.Scheme {
	case "postgres", "postgresql", "pgx5":
		u.Scheme = "pgx5"
	default:
		return "", fmt.Errorf("unsupported database url scheme %q", u.Scheme)
	}

	return u.String(), nil
}
