package repository

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/example/bistro/pkg/config"
	"github.com/example/bistro/pkg/models"
	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

const (
	menuCacheKey   = "bistro:menu"
	configCacheKey = "bistro:config"
)

type RedisRepository struct {
	client *redis.Client
	config *config.RedisConfig
}

func NewRedisRepository(cfg *config.RedisConfig) *RedisRepository {
	return &RedisRepository{
		client: redis.NewClient(&redis.Options{
			Addr:     cfg.Addr,
			Password: cfg.Password,
			DB:       cfg.DB,
			PoolSize: cfg.PoolSize,
		}),
		config: cfg,
	}
}

func (r *RedisRepository) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *RedisRepository) Del(ctx context.Context, keys ...string) error {
	return r.client.Del(ctx, keys...).Err()
}

func (r *RedisRepository) SetJSON(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, key, data, expiration).Err()
}

func (r *RedisRepository) GetJSON(ctx context.Context, key string, dest interface{}) error {
	data, err := r.client.Get(ctx, key).Result()
	if err != nil {
		return err
	}
	return json.Unmarshal([]byte(data), dest)
}

func (r *RedisRepository) Close() error {
	return r.client.Close()
}

// CachedStore puts a read-through Redis cache in front of the menu and config
// documents of another Store. Orders are never cached. Cache failures are
// logged and the backing store answers instead.
type CachedStore struct {
	Store
	cache  *RedisRepository
	ttl    time.Duration
	logger *zap.Logger
}

func NewCachedStore(backing Store, cache *RedisRepository, ttl time.Duration, logger *zap.Logger) *CachedStore {
	return &CachedStore{
		Store:  backing,
		cache:  cache,
		ttl:    ttl,
		logger: logger,
	}
}

func (c *CachedStore) GetMenu(ctx context.Context) (models.Menu, error) {
	var menu models.Menu
	if c.lookup(ctx, menuCacheKey, &menu) {
		return menu, nil
	}

	menu, err := c.Store.GetMenu(ctx)
	if err != nil {
		return nil, err
	}
	c.fill(ctx, menuCacheKey, menu)
	return menu, nil
}

func (c *CachedStore) ReplaceMenu(ctx context.Context, menu models.Menu) error {
	if err := c.Store.ReplaceMenu(ctx, menu); err != nil {
		return err
	}
	c.invalidate(ctx, menuCacheKey)
	return nil
}

func (c *CachedStore) GetConfig(ctx context.Context) (models.Config, error) {
	var cfg models.Config
	if c.lookup(ctx, configCacheKey, &cfg) {
		return cfg, nil
	}

	cfg, err := c.Store.GetConfig(ctx)
	if err != nil {
		return models.Config{}, err
	}
	c.fill(ctx, configCacheKey, cfg)
	return cfg, nil
}

func (c *CachedStore) ReplaceConfig(ctx context.Context, cfg models.Config) error {
	if err := c.Store.ReplaceConfig(ctx, cfg); err != nil {
		return err
	}
	c.invalidate(ctx, configCacheKey)
	return nil
}

func (c *CachedStore) Ping(ctx context.Context) error {
	if err := c.cache.Ping(ctx); err != nil {
		c.logger.Warn("Redis ping failed", zap.Error(err))
	}
	return c.Store.Ping(ctx)
}

func (c *CachedStore) Close(ctx context.Context) error {
	if err := c.cache.Close(); err != nil {
		c.logger.Warn("Failed to close redis client", zap.Error(err))
	}
	return c.Store.Close(ctx)
}

func (c *CachedStore) lookup(ctx context.Context, key string, dest interface{}) bool {
	err := c.cache.GetJSON(ctx, key, dest)
	if err == nil {
		return true
	}
	if !errors.Is(err, redis.Nil) {
		c.logger.Warn("Cache read failed", zap.String("key", key), zap.Error(err))
	}
	return false
}

func (c *CachedStore) fill(ctx context.Context, key string, value interface{}) {
	if err := c.cache.SetJSON(ctx, key, value, c.ttl); err != nil {
		c.logger.Warn("Cache write failed", zap.String("key", key), zap.Error(err))
	}
}

func (c *CachedStore) invalidate(ctx context.Context, key string) {
	if err := c.cache.Del(ctx, key); err != nil {
		c.logger.Warn("Cache invalidation failed", zap.String("key", key), zap.Error(err))
	}
}
