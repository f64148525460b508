package repository

import (
	"context"
	"fmt"

	"github.com/example/bistro/pkg/config"
	"go.uber.org/zap"
)

// Open builds the Store selected by cfg.Storage.Driver, wrapped in the Redis
// cache when redis is enabled.
func Open(ctx context.Context, cfg *config.Config, logger *zap.Logger) (Store, error) {
	var (
		store Store
		err   error
	)

	switch cfg.Storage.Driver {
	case config.DriverMongo:
		store, err = NewMongoRepository(&cfg.MongoDB)
	case config.DriverMySQL:
		store, err = NewMySQLRepository(&cfg.MySQL)
	case config.DriverFile:
		store, err = NewFileRepository(cfg.Storage.Dir)
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open %s store: %w", cfg.Storage.Driver, err)
	}

	logger.Info("Storage opened", zap.String("driver", cfg.Storage.Driver))

	if cfg.Redis.Enabled {
		cache := NewRedisRepository(&cfg.Redis)
		if err := cache.Ping(ctx); err != nil {
			logger.Warn("Redis connection failed, cache will fall through", zap.Error(err))
		} else {
			logger.Info("Redis connected successfully")
		}
		store = NewCachedStore(store, cache, cfg.Redis.TTL, logger.Named("cache"))
	}

	return store, nil
}
