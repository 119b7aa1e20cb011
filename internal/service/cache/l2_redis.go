package cache

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/your-org/edge-gateway/internal/config"
	"github.com/your-org/edge-gateway/internal/service/metrics"
	"github.com/your-org/edge-gateway/pkg/logger"
)

// L2RedisCache implements the Redis-backed distributed cache layer.
type L2RedisCache struct {
	client    redis.UniversalClient
	keyPrefix string
	ttl       time.Duration
	enabled   bool
}

// NewL2RedisCache creates a new L2 Redis cache over an existing client.
// The client is shared with the event subscriber and is not closed here.
func NewL2RedisCache(client redis.UniversalClient, cfg config.L2CacheConfig) *L2RedisCache {
	if !cfg.Enabled || client == nil {
		return &L2RedisCache{enabled: false}
	}

	return &L2RedisCache{
		client:    client,
		keyPrefix: cfg.KeyPrefix,
		ttl:       cfg.TTL,
		enabled:   true,
	}
}

// Start verifies the Redis connection.
func (c *L2RedisCache) Start(ctx context.Context) error {
	if !c.enabled {
		return nil
	}

	if err := c.client.Ping(ctx).Err(); err != nil {
		logger.Warn("L2 Redis cache connection failed", logger.Err(err))
		c.enabled = false
		return err
	}

	logger.Info("L2 Redis cache connected", logger.String("prefix", c.keyPrefix))
	return nil
}

// Get retrieves a value from Redis. Connectivity failures count as misses.
func (c *L2RedisCache) Get(ctx context.Context, key string) ([]byte, bool) {
	if !c.enabled {
		return nil, false
	}

	fullKey := c.keyPrefix + key

	data, err := c.client.Get(ctx, fullKey).Bytes()
	if err != nil {
		if err != redis.Nil {
			logger.Debug("L2 cache get error", logger.String("key", key), logger.Err(err))
		}
		metrics.DefaultMetrics.CacheMissesTotal.WithLabelValues("l2").Inc()
		return nil, false
	}

	metrics.DefaultMetrics.CacheHitsTotal.WithLabelValues("l2").Inc()
	return data, true
}

// Set stores a value in Redis.
func (c *L2RedisCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) {
	if !c.enabled {
		return
	}

	if ttl == 0 {
		ttl = c.ttl
	}

	fullKey := c.keyPrefix + key

	if err := c.client.Set(ctx, fullKey, value, ttl).Err(); err != nil {
		logger.Debug("L2 cache set error", logger.String("key", key), logger.Err(err))
	}
}

// Delete removes a key from Redis.
func (c *L2RedisCache) Delete(ctx context.Context, key string) {
	if !c.enabled {
		return
	}

	fullKey := c.keyPrefix + key
	c.client.Del(ctx, fullKey)
}

// Clear removes all keys with the configured prefix.
func (c *L2RedisCache) Clear(ctx context.Context) {
	if !c.enabled {
		return
	}

	var cursor uint64
	for {
		var keys []string
		var err error
		keys, cursor, err = c.client.Scan(ctx, cursor, c.keyPrefix+"*", 100).Result()
		if err != nil {
			logger.Warn("L2 cache clear scan error", logger.Err(err))
			return
		}

		if len(keys) > 0 {
			c.client.Del(ctx, keys...)
		}

		if cursor == 0 {
			break
		}
	}
}

// Healthy checks if Redis is reachable.
func (c *L2RedisCache) Healthy(ctx context.Context) bool {
	if !c.enabled || c.client == nil {
		return true
	}
	return c.client.Ping(ctx).Err() == nil
}

// Enabled returns whether the L2 cache is enabled.
func (c *L2RedisCache) Enabled() bool {
	return c.enabled
}
