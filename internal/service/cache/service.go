package cache

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/your-org/edge-gateway/internal/config"
	"github.com/your-org/edge-gateway/pkg/logger"
)

// Store is the read/write contract the rest of the gateway depends on.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration)
	Delete(ctx context.Context, key string)
}

// Service provides layered caching: L1 in-process, L2 Redis.
type Service struct {
	l1      *L1Cache
	l2      *L2RedisCache
	cfg     config.CacheConfig
	enabled bool
}

// NewService creates a new cache service over a shared Redis client.
func NewService(client redis.UniversalClient, cfg config.CacheConfig) *Service {
	var l1 *L1Cache
	if cfg.L1.Enabled {
		l1 = NewL1Cache(cfg.L1)
	}

	var l2 *L2RedisCache
	if cfg.L2.Enabled {
		l2 = NewL2RedisCache(client, cfg.L2)
	}

	return &Service{
		l1:      l1,
		l2:      l2,
		cfg:     cfg,
		enabled: cfg.L1.Enabled || cfg.L2.Enabled,
	}
}

// Start initializes the cache service.
func (s *Service) Start(ctx context.Context) error {
	if s.l1 != nil {
		s.l1.StartCleanup(ctx, time.Minute)
	}

	if s.l2 != nil {
		if err := s.l2.Start(ctx); err != nil {
			logger.Warn("L2 cache start failed, continuing without it", logger.Err(err))
		}
	}

	logger.Info("cache service started",
		logger.Bool("l1_enabled", s.cfg.L1.Enabled),
		logger.Bool("l2_enabled", s.l2 != nil && s.l2.Enabled()),
	)

	return nil
}

// Get retrieves a value, checking L1 first, then L2.
func (s *Service) Get(ctx context.Context, key string) ([]byte, bool) {
	if !s.enabled {
		return nil, false
	}

	if s.l1 != nil {
		if value, found := s.l1.Get(ctx, key); found {
			return value, true
		}
	}

	if s.l2 != nil && s.l2.Enabled() {
		if value, found := s.l2.Get(ctx, key); found {
			// Backfill L1
			if s.l1 != nil {
				s.l1.Set(ctx, key, value, 0)
			}
			return value, true
		}
	}

	return nil, false
}

// Set stores a value in all cache levels.
func (s *Service) Set(ctx context.Context, key string, value []byte, ttl time.Duration) {
	if !s.enabled {
		return
	}

	if s.l1 != nil {
		s.l1.Set(ctx, key, value, ttl)
	}
	if s.l2 != nil && s.l2.Enabled() {
		s.l2.Set(ctx, key, value, ttl)
	}
}

// Delete removes a key from all cache levels.
func (s *Service) Delete(ctx context.Context, key string) {
	if s.l1 != nil {
		s.l1.Delete(ctx, key)
	}
	if s.l2 != nil && s.l2.Enabled() {
		s.l2.Delete(ctx, key)
	}
}

// Clear removes all entries from all cache levels.
func (s *Service) Clear(ctx context.Context) {
	if s.l1 != nil {
		s.l1.Clear(ctx)
	}
	if s.l2 != nil && s.l2.Enabled() {
		s.l2.Clear(ctx)
	}
}

// Enabled returns true if caching is enabled.
func (s *Service) Enabled() bool {
	return s.enabled
}

// Healthy checks if cache backends are healthy.
func (s *Service) Healthy(ctx context.Context) bool {
	if s.l2 != nil && s.l2.Enabled() {
		return s.l2.Healthy(ctx)
	}
	return true
}
