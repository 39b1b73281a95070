package database

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
)

// ErrDirtySchema is returned when a previous migration failed half way and
// the schema needs a manual fix before the detector can start.
var ErrDirtySchema = errors.New("schema is dirty")

// migrateLogger routes golang-migrate's progress lines through slog.
type migrateLogger struct {
	logger *slog.Logger
}

func (l migrateLogger) Printf(format string, v ...any) {
	l.logger.Debug(strings.TrimSpace(fmt.Sprintf(format, v...)), "component", "migrate")
}

func (l migrateLogger) Verbose() bool {
	return l.logger.Enabled(context.Background(), slog.LevelDebug)
}

// schemaVersion reports the applied version, zero for an empty schema.
func schemaVersion(m *migrate.Migrate) (uint, bool, error) {
	version, dirty, err := m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}
	return version, dirty, err
}

// RunMigrations applies every pending up-migration found in migrationsPath
// and returns the schema version it left behind. The
// suspicious_transactions unique key created there backs the at-most-one
// record per (transaction, reason) guarantee.
func RunMigrations(logger *slog.Logger, databaseURL, migrationsPath string) (uint, error) {
	absPath, err := filepath.Abs(migrationsPath)
	if err != nil {
		return 0, fmt.Errorf("resolve migrations path %q: %w", migrationsPath, err)
	}
	if info, err := os.Stat(absPath); err != nil || !info.IsDir() {
		return 0, fmt.Errorf("migrations directory does not exist: %s", absPath)
	}

	logger = logger.With("migrations_path", absPath)

	m, err := migrate.New("file://"+filepath.ToSlash(absPath), databaseURL)
	if err != nil {
		return 0, fmt.Errorf("failed to create migrate instance: %w", err)
	}
	defer m.Close()
	m.Log = migrateLogger{logger: logger}

	from, dirty, err := schemaVersion(m)
	if err != nil {
		return 0, fmt.Errorf("failed to read schema version: %w", err)
	}
	if dirty {
		return from, fmt.Errorf("%w at version %d", ErrDirtySchema, from)
	}

	if err = m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return from, fmt.Errorf("failed to apply migrations: %w", err)
	}

	to, _, err := schemaVersion(m)
	if err != nil {
		return from, fmt.Errorf("failed to read schema version: %w", err)
	}

	if to == from {
		logger.Info("Schema is up to date", "version", to)
	} else {
		logger.Info("Migrations applied", "from_version", from, "to_version", to)
	}
	return to, nil
}
