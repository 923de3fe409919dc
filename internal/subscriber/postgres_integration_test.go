//go:build integration

package subscriber

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	coredatabase "github.com/m3rciful/weatherbot/core/database"
)

func startPostgres(t *testing.T) coredatabase.Config {
	t.Helper()
	ctx := context.Background()

	container, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("weather"),
		postgres.WithUsername("weather"),
		postgres.WithPassword("weather"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "5432/tcp")
	require.NoError(t, err)

	dir, err := filepath.Abs(filepath.Join("..", "..", "migrations"))
	require.NoError(t, err)

	return coredatabase.Config{
		Host:          host,
		Port:          port.Port(),
		User:          "weather",
		Password:      "weather",
		Name:          "weather",
		SSLMode:       "disable",
		MigrationsDir: dir,
	}
}

func TestPostgresRepository(t *testing.T) {
	cfg := startPostgres(t)
	require.NoError(t, coredatabase.RunMigrations(cfg))

	db, err := coredatabase.Connect(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	exerciseRepository(t, NewPostgresRepository(db))
}
