// Package dbtest starts a disposable Postgres for repository tests.
package dbtest

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"

	"github.com/sand/fraud-detector/backend/pkg/database"
)

const image = "postgres:16-alpine"

// StartPostgres runs an empty Postgres container for the duration of t and
// returns its DSN. The test is skipped under -short or when no container
// runtime is available.
func StartPostgres(t *testing.T) string {
	t.Helper()

	if testing.Short() {
		t.Skip("skipping Postgres integration test in short mode")
	}
	testcontainers.SkipIfProviderIsNotHealthy(t)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	ctr, err := postgres.Run(ctx, image,
		postgres.WithDatabase("fraud"),
		postgres.WithUsername("fraud"),
		postgres.WithPassword("fraud"),
		postgres.BasicWaitStrategies(),
	)
	testcontainers.CleanupContainer(t, ctr)
	require.NoError(t, err)

	dsn, err := ctr.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)
	return dsn
}

// NewPostgres runs a migrated Postgres container for the duration of t.
func NewPostgres(t *testing.T) *database.Postgres {
	t.Helper()

	dsn := StartPostgres(t)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	_, err := database.RunMigrations(logger, dsn, MigrationsPath())
	require.NoError(t, err)

	pg, err := database.New(context.Background(), dsn, database.MaxPoolSize(20))
	require.NoError(t, err)
	t.Cleanup(pg.Close)

	return pg
}

// MigrationsPath is the repository's migrations directory.
func MigrationsPath() string {
	_, file, _, _ := runtime.Caller(0)
	return filepath.Join(filepath.Dir(file), "..", "..", "..", "migrations")
}
