package storage

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/labqc-mcp-server/internal/database"
	"github.com/labqc-mcp-server/internal/domain"
)

// Open builds the store selected by cfg.Driver. The "none" driver
// returns a nil Store and no error.
func Open(ctx context.Context, cfg domain.StorageConfig, logger *logrus.Logger) (Store, error) {
	switch cfg.Driver {
	case "none", "":
		logger.Info("Diagnostics persistence disabled")
		return nil, nil

	case "sqlite":
		store, err := NewSQLiteStore(cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		logger.WithField("path", cfg.SQLitePath).Info("Using SQLite diagnostics store")
		return store, nil

	case "postgres":
		if cfg.RunMigrations {
			if err := migrate(ctx, cfg.PostgresURL, logger); err != nil {
				return nil, err
			}
		}

		db, err := database.NewConnection(ctx, database.ConfigFromStorage(cfg), logger)
		if err != nil {
			return nil, err
		}
		store, err := NewPostgresStore(db.SQL())
		if err != nil {
			db.Close()
			return nil, err
		}
		return &pooledStore{PostgresStore: store, pool: db}, nil

	default:
		return nil, fmt.Errorf("unknown storage driver: %q", cfg.Driver)
	}
}

func migrate(ctx context.Context, url string, logger *logrus.Logger) error {
	runner, err := database.NewMigrationRunner(url, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := runner.Close(); err != nil {
			logger.WithError(err).Warn("Failed to close migration runner")
		}
	}()
	return runner.Up(ctx)
}

// pooledStore closes the pgx pool along with the store.
type pooledStore struct {
	*PostgresStore
	pool *database.DB
}

func (s *pooledStore) Close() error {
	err := s.PostgresStore.Close()
	s.pool.Close()
	return err
}
