package database

import (
	"context"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/labqc-mcp-server/internal/domain"
)

func TestConfigFromStorage(t *testing.T) {
	t.Run("explicit", func(t *testing.T) {
		cfg := ConfigFromStorage(domain.StorageConfig{
			PostgresURL:     "postgres://labqc@localhost/labqc",
			MaxOpenConns:    10,
			MaxIdleConns:    2,
			ConnMaxLifetime: time.Hour,
		})
		assert.Equal(t, "postgres://labqc@localhost/labqc", cfg.URL)
		assert.Equal(t, int32(10), cfg.MaxConns)
		assert.Equal(t, int32(2), cfg.MinConns)
		assert.Equal(t, time.Hour, cfg.MaxConnLife)
		assert.Equal(t, 30*time.Minute, cfg.MaxConnIdle)
	})

	t.Run("defaults", func(t *testing.T) {
		cfg := ConfigFromStorage(domain.StorageConfig{MaxIdleConns: 50})
		assert.Equal(t, int32(25), cfg.MaxConns)
		assert.Equal(t, int32(0), cfg.MinConns)
		assert.Equal(t, 5*time.Minute, cfg.MaxConnLife)
	})
}

func TestMigrationFiles(t *testing.T) {
	files, err := MigrationFiles()
	require.NoError(t, err)
	assert.Contains(t, files, "000001_create_diagnostics.up.sql")
	assert.Contains(t, files, "000001_create_diagnostics.down.sql")
}

func TestNewConnection_BadURL(t *testing.T) {
	logger := logrus.New()
	logger.SetLevel(logrus.FatalLevel)

	_, err := NewConnection(context.Background(), Config{URL: "://bad"}, logger)
	assert.Error(t, err)
}

func TestDatabaseConnectionAndMigrations(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}
	testcontainers.SkipIfProviderIsNotHealthy(t)

	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:15-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("testuser"),
		postgres.WithPassword("testpass"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second)),
	)
	require.NoError(t, err)
	defer func() {
		if err := pgContainer.Terminate(ctx); err != nil {
			t.Logf("Failed to terminate PostgreSQL container: %v", err)
		}
	}()

	url, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	logger := logrus.New()
	logger.SetLevel(logrus.FatalLevel)

	runner, err := NewMigrationRunner(url, logger)
	require.NoError(t, err)
	require.NoError(t, runner.Up(ctx))
	require.NoError(t, runner.Up(ctx))

	version, dirty, err := runner.Version()
	require.NoError(t, err)
	assert.Equal(t, uint(1), version)
	assert.False(t, dirty)
	require.NoError(t, runner.Close())

	db, err := NewConnection(ctx, Config{URL: url, MaxConns: 4, MaxConnLife: time.Hour, MaxConnIdle: time.Minute}, logger)
	require.NoError(t, err)
	defer db.Close()

	require.NoError(t, db.Health(ctx))

	var count int
	require.NoError(t, db.SQL().QueryRowContext(ctx, "SELECT COUNT(*) FROM diagnostics").Scan(&count))
	assert.Equal(t, 0, count)
	assert.GreaterOrEqual(t, db.Stats().TotalConns(), int32(1))
}
