// Package ratelimit provides HTTP rate limiting middleware using ulule/limiter.
package ratelimit

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/redis/go-redis/v9"
	"github.com/ulule/limiter/v3"
	"github.com/ulule/limiter/v3/drivers/store/memory"
	redisstore "github.com/ulule/limiter/v3/drivers/store/redis"

	"github.com/your-org/edge-gateway/internal/config"
	"github.com/your-org/edge-gateway/pkg/logger"
)

// Limiter wraps the ulule/limiter with gateway configuration.
type Limiter struct {
	cfg      config.RateLimitConfig
	instance *limiter.Limiter
}

// NewLimiter creates a rate limiter from configuration. The Redis
// client is the gateway's shared client; it may be nil when the store
// is memory.
func NewLimiter(cfg config.RateLimitConfig, client redis.UniversalClient) (*Limiter, error) {
	rate, err := limiter.NewRateFromFormatted(cfg.Rate)
	if err != nil {
		return nil, err
	}

	var store limiter.Store
	if cfg.Store == "redis" && client != nil {
		store, err = redisstore.NewStoreWithOptions(client, limiter.StoreOptions{
			Prefix: cfg.KeyPrefix,
		})
		if err != nil {
			return nil, err
		}
	} else {
		store = memory.NewStore()
	}

	return &Limiter{
		cfg:      cfg,
		instance: limiter.New(store, rate),
	}, nil
}

// Middleware returns an HTTP middleware that applies rate limiting.
// Limiter store errors fail open.
func (l *Limiter) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if l.isExcluded(r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}

			clientKey := l.clientKey(r)

			limitContext, err := l.instance.Get(r.Context(), clientKey)
			if err != nil {
				logger.Error("rate limiter error", logger.Err(err))
				next.ServeHTTP(w, r)
				return
			}

			w.Header().Set("X-RateLimit-Limit", strconv.FormatInt(limitContext.Limit, 10))
			w.Header().Set("X-RateLimit-Remaining", strconv.FormatInt(limitContext.Remaining, 10))
			w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(limitContext.Reset, 10))

			if limitContext.Reached {
				logger.Warn("rate limit exceeded",
					logger.String("client_key", clientKey),
					logger.String("path", r.URL.Path),
					logger.Int64("limit", limitContext.Limit),
				)
				http.Error(w, http.StatusText(http.StatusTooManyRequests), http.StatusTooManyRequests)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// clientKey determines the client identifier for rate limiting.
func (l *Limiter) clientKey(r *http.Request) string {
	if l.cfg.TrustForwardedFor {
		if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
			if idx := strings.Index(xff, ","); idx != -1 {
				return strings.TrimSpace(xff[:idx])
			}
			return strings.TrimSpace(xff)
		}
		if xri := r.Header.Get("X-Real-IP"); xri != "" {
			return strings.TrimSpace(xri)
		}
	}

	ip := r.RemoteAddr
	if idx := strings.LastIndex(ip, ":"); idx != -1 {
		ip = ip[:idx]
	}
	return ip
}

// isExcluded checks if the path should be excluded from rate limiting.
func (l *Limiter) isExcluded(path string) bool {
	for _, excluded := range l.cfg.ExcludePaths {
		if strings.HasPrefix(path, excluded) {
			return true
		}
	}
	return false
}
