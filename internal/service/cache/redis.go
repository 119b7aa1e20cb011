package cache

import (
	"github.com/redis/go-redis/v9"

	"github.com/your-org/edge-gateway/internal/config"
)

// NewUniversalClient builds the shared Redis client used by the cache
// layers, the event subscriber and the rate limiter store. Multiple
// addresses select cluster mode.
func NewUniversalClient(cfg config.RedisConfig) redis.UniversalClient {
	if len(cfg.Addresses) > 1 {
		return redis.NewClusterClient(&redis.ClusterOptions{
			Addrs:        cfg.Addresses,
			Password:     cfg.Password,
			DialTimeout:  cfg.DialTimeout,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
		})
	}

	addr := "localhost:6379"
	if len(cfg.Addresses) > 0 {
		addr = cfg.Addresses[0]
	}
	return redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})
}
