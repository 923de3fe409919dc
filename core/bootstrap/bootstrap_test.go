package bootstrap

import (
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	coreconfig "github.com/m3rciful/weatherbot/core/config"
	coredatabase "github.com/m3rciful/weatherbot/core/database"
)

func TestRunRequiresConfig(t *testing.T) {
	_, err := Run(Options{})
	require.Error(t, err)
}

func TestRunKeepsGoingOnConnectError(t *testing.T) {
	var migrations atomic.Int32
	res, err := Run(Options{
		Config:       &coreconfig.Config{},
		Database:     coredatabase.Config{Host: "127.0.0.1", Port: "1", Name: "weather", SSLMode: "disable"},
		MigrateRetry: 10 * time.Millisecond,
		LoggerInit:   func(*coreconfig.Config) error { return nil },
		Connect: func(coredatabase.Config) (*sqlx.DB, error) {
			return nil, errors.New("refused")
		},
		Open:    coredatabase.Open,
		Migrate: func(coredatabase.Config) error {
			if migrations.Add(1) < 3 {
				return errors.New("refused")
			}
			return nil
		},
	})
	require.NoError(t, err)
	require.NotNil(t, res.DB)
	assert.True(t, res.Degraded)
	assert.False(t, res.Migrated())

	assert.Eventually(t, res.Migrated, time.Second, 5*time.Millisecond)
	assert.Equal(t, int32(3), migrations.Load())
	assert.NoError(t, res.Close())
}

func TestRunFailsWhenPoolCannotBeBuilt(t *testing.T) {
	_, err := Run(Options{
		Config:     &coreconfig.Config{},
		LoggerInit: func(*coreconfig.Config) error { return nil },
		Connect: func(coredatabase.Config) (*sqlx.DB, error) {
			return nil, errors.New("refused")
		},
		Open: func(coredatabase.Config) (*sqlx.DB, error) {
			return nil, errors.New("bad driver")
		},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "database initialization failed")
}

func TestRunPassesDatabaseConfig(t *testing.T) {
	var got coredatabase.Config
	res, err := Run(Options{
		Config:     &coreconfig.Config{},
		Database:   coredatabase.Config{Host: "db", Name: "weather"},
		LoggerInit: func(*coreconfig.Config) error { return nil },
		Connect:    func(coredatabase.Config) (*sqlx.DB, error) { return nil, nil },
		Migrate: func(cfg coredatabase.Config) error {
			got = cfg
			return nil
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "weather", got.Name)
	assert.False(t, res.Degraded)
	assert.True(t, res.Migrated())
	assert.NoError(t, res.Close())
}

func TestRunMigrationFailureRetriesUntilClosed(t *testing.T) {
	var migrations atomic.Int32
	res, err := Run(Options{
		Config:       &coreconfig.Config{},
		MigrateRetry: 5 * time.Millisecond,
		LoggerInit:   func(*coreconfig.Config) error { return nil },
		Connect:      func(coredatabase.Config) (*sqlx.DB, error) { return nil, nil },
		Migrate: func(coredatabase.Config) error {
			migrations.Add(1)
			return errors.New("dirty")
		},
	})
	require.NoError(t, err)
	assert.True(t, res.Degraded)
	assert.Eventually(t, func() bool { return migrations.Load() >= 3 }, time.Second, 5*time.Millisecond)

	require.NoError(t, res.Close())
	time.Sleep(20 * time.Millisecond)
	n := migrations.Load()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, n, migrations.Load())
	assert.False(t, res.Migrated())
}

func TestRunSkipDatabase(t *testing.T) {
	res, err := Run(Options{
		Config:       &coreconfig.Config{},
		SkipDatabase: true,
		LoggerInit:   func(*coreconfig.Config) error { return nil },
		Connect: func(coredatabase.Config) (*sqlx.DB, error) {
			t.Fatal("connect must not run")
			return nil, nil
		},
	})
	require.NoError(t, err)
	assert.Nil(t, res.DB)
	assert.NoError(t, res.Close())
}
