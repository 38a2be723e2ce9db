package storage

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/labqc-mcp-server/internal/domain"
)

func TestOpen(t *testing.T) {
	logger := logrus.New()
	logger.SetLevel(logrus.FatalLevel)
	ctx := context.Background()

	t.Run("none", func(t *testing.T) {
		store, err := Open(ctx, domain.StorageConfig{Driver: "none"}, logger)
		require.NoError(t, err)
		assert.Nil(t, store)
	})

	t.Run("sqlite", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "d.db")
		store, err := Open(ctx, domain.StorageConfig{Driver: "sqlite", SQLitePath: path}, logger)
		require.NoError(t, err)
		require.NotNil(t, store)
		assert.NoError(t, store.Close())
	})

	t.Run("unknown", func(t *testing.T) {
		_, err := Open(ctx, domain.StorageConfig{Driver: "mongo"}, logger)
		assert.Error(t, err)
	})
}
