// Package config loads and validates gateway configuration.
package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/your-org/edge-gateway/pkg/logger"
)

// Config holds all gateway configuration.
type Config struct {
	Server       ServerConfig       `mapstructure:"server"`
	Auth         AuthConfig         `mapstructure:"auth"`
	ControlPlane ControlPlaneConfig `mapstructure:"control_plane"`
	Backend      BackendConfig      `mapstructure:"backend"`
	Redis        RedisConfig        `mapstructure:"redis"`
	Cache        CacheConfig        `mapstructure:"cache"`
	Events       EventsConfig       `mapstructure:"events"`
	Include      IncludeConfig      `mapstructure:"include"`
	RateLimit    RateLimitConfig    `mapstructure:"rate_limit"`
	Logging      logger.Config      `mapstructure:"logging"`
	Metrics      MetricsConfig      `mapstructure:"metrics"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Addr            string        `mapstructure:"addr" jsonschema:"description=Listen address for the gateway HTTP server.,default=:8080"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout" jsonschema:"description=Maximum duration for reading the entire request.,default=10s"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout" jsonschema:"description=Maximum duration before timing out response writes.,default=30s"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout" jsonschema:"description=Maximum time to wait for the next request on a kept-alive connection.,default=120s"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" jsonschema:"description=Grace period for in-flight requests during shutdown.,default=30s"`
	RequestTimeout  time.Duration `mapstructure:"request_timeout" jsonschema:"description=Per-request timeout applied by middleware.,default=60s"`
}

// AuthConfig holds token verification configuration.
type AuthConfig struct {
	// PublicPaths are path prefixes that bypass bearer authentication
	// for GET and HEAD requests.
	PublicPaths []string `mapstructure:"public_paths" jsonschema:"description=Path prefixes reachable without a bearer token for GET/HEAD requests."`

	// ClockSkew is the symmetric leeway applied to exp/nbf/iat validation.
	ClockSkew time.Duration `mapstructure:"clock_skew" jsonschema:"description=Allowed clock skew for token timestamp validation.,default=60s"`

	// ProviderCacheTTL controls how long resolved provider info lives in Redis.
	ProviderCacheTTL time.Duration `mapstructure:"provider_cache_ttl" jsonschema:"description=TTL for provider info entries in the distributed cache.,default=1h"`

	// JWKSRefreshInterval controls background JWKS refresh per decoder.
	JWKSRefreshInterval time.Duration `mapstructure:"jwks_refresh_interval" jsonschema:"description=Interval for background JWKS key set refresh.,default=15m"`

	// Fallback is the static provider used when all resolution sources fail.
	Fallback FallbackProviderConfig `mapstructure:"fallback"`
}

// FallbackProviderConfig is the static last-resort identity provider.
type FallbackProviderConfig struct {
	Enabled  bool   `mapstructure:"enabled" jsonschema:"description=Enable the static fallback provider.,default=false"`
	JWKSURI  string `mapstructure:"jwks_uri" jsonschema:"description=JWKS endpoint of the fallback provider."`
	Audience string `mapstructure:"audience" jsonschema:"description=Expected audience when validating against the fallback provider."`
}

// ControlPlaneConfig holds the control-plane client configuration.
type ControlPlaneConfig struct {
	URL     string        `mapstructure:"url" jsonschema:"description=Base URL of the control plane."`
	Timeout time.Duration `mapstructure:"timeout" jsonschema:"description=Timeout for control-plane HTTP calls.,default=5s"`

	Breaker BreakerConfig `mapstructure:"breaker"`
}

// BreakerConfig holds circuit breaker settings for control-plane calls.
type BreakerConfig struct {
	MaxRequests uint32        `mapstructure:"max_requests" jsonschema:"description=Requests allowed through while half-open.,default=3"`
	Interval    time.Duration `mapstructure:"interval" jsonschema:"description=Cyclic period for clearing counts while closed.,default=60s"`
	Timeout     time.Duration `mapstructure:"timeout" jsonschema:"description=Open state duration before transitioning to half-open.,default=30s"`
	MinRequests uint32        `mapstructure:"min_requests" jsonschema:"description=Minimum requests before the failure ratio trips the breaker.,default=5"`
	FailureRate float64       `mapstructure:"failure_rate" jsonschema:"description=Failure ratio that trips the breaker.,default=0.6"`
}

// BackendConfig holds the configured collection backend.
type BackendConfig struct {
	// URL is the base URL all collection routes forward to. Event payloads
	// never override it.
	URL     string        `mapstructure:"url" jsonschema:"description=Base URL of the collection backend service."`
	Timeout time.Duration `mapstructure:"timeout" jsonschema:"description=Timeout for proxied backend requests.,default=30s"`
}

// RedisConfig holds Redis connection settings.
type RedisConfig struct {
	Addresses []string `mapstructure:"addresses" jsonschema:"description=Redis server addresses. Multiple addresses enable cluster mode."`
	Password  string   `mapstructure:"password" jsonschema:"description=Redis password."`
	DB        int      `mapstructure:"db" jsonschema:"description=Redis database number.,default=0"`

	DialTimeout  time.Duration `mapstructure:"dial_timeout" jsonschema:"description=Timeout for establishing connections.,default=5s"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout" jsonschema:"description=Timeout for socket reads.,default=3s"`
	WriteTimeout time.Duration `mapstructure:"write_timeout" jsonschema:"description=Timeout for socket writes.,default=3s"`
}

// CacheConfig holds the layered cache settings.
type CacheConfig struct {
	L1 L1CacheConfig `mapstructure:"l1"`
	L2 L2CacheConfig `mapstructure:"l2"`
}

// L1CacheConfig holds in-memory cache settings.
type L1CacheConfig struct {
	Enabled bool          `mapstructure:"enabled" jsonschema:"description=Enable the in-process cache layer.,default=true"`
	MaxSize int           `mapstructure:"max_size" jsonschema:"description=Maximum number of entries in the in-process cache.,default=10000"`
	TTL     time.Duration `mapstructure:"ttl" jsonschema:"description=Default TTL for in-process cache entries.,default=5m"`
}

// L2CacheConfig holds Redis cache settings.
type L2CacheConfig struct {
	Enabled   bool          `mapstructure:"enabled" jsonschema:"description=Enable the Redis cache layer.,default=true"`
	TTL       time.Duration `mapstructure:"ttl" jsonschema:"description=Default TTL for Redis cache entries.,default=1h"`
	KeyPrefix string        `mapstructure:"key_prefix" jsonschema:"description=Prefix applied to all Redis cache keys.,default=gw:"`
}

// EventsConfig holds the configuration event subscriber settings.
type EventsConfig struct {
	Enabled bool `mapstructure:"enabled" jsonschema:"description=Enable the configuration event subscriber.,default=true"`

	CollectionChannel string `mapstructure:"collection_channel" jsonschema:"description=Pub/sub channel carrying collection change events.,default=events:collection-changed"`
	WorkerChannel     string `mapstructure:"worker_channel" jsonschema:"description=Pub/sub channel carrying worker assignment events.,default=events:worker-assignment"`
	RecordChannel     string `mapstructure:"record_channel" jsonschema:"description=Pub/sub channel carrying record change events.,default=events:record-changed"`

	// ReconnectBackoff is the delay before resubscribing after a
	// subscription failure.
	ReconnectBackoff time.Duration `mapstructure:"reconnect_backoff" jsonschema:"description=Delay before resubscribing after a pub/sub failure.,default=5s"`
}

// IncludeConfig holds JSON:API include resolution settings.
type IncludeConfig struct {
	Enabled bool `mapstructure:"enabled" jsonschema:"description=Enable include resolution on GET responses.,default=true"`

	// MaxIncludes bounds the number of distinct include names honored per
	// request.
	MaxIncludes int `mapstructure:"max_includes" jsonschema:"description=Maximum number of include names honored per request.,default=10"`
}

// RateLimitConfig holds per-client rate limiting settings.
type RateLimitConfig struct {
	Enabled bool   `mapstructure:"enabled" jsonschema:"description=Enable per-client rate limiting.,default=false"`
	Rate    string `mapstructure:"rate" jsonschema:"description=Rate in ulule/limiter format\\, e.g. 100-M for 100 requests per minute.,default=300-M"`

	// Store selects the limiter backend: memory or redis.
	Store             string   `mapstructure:"store" jsonschema:"description=Rate limiter store backend.,enum=memory,enum=redis,default=memory"`
	KeyPrefix         string   `mapstructure:"key_prefix" jsonschema:"description=Key prefix for the redis limiter store.,default=gw:ratelimit"`
	TrustForwardedFor bool     `mapstructure:"trust_forwarded_for" jsonschema:"description=Trust X-Forwarded-For and X-Real-IP headers for client identity.,default=false"`
	ExcludePaths      []string `mapstructure:"exclude_paths" jsonschema:"description=Path prefixes excluded from rate limiting."`
}

// MetricsConfig holds metrics endpoint settings.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled" jsonschema:"description=Expose Prometheus metrics.,default=true"`
	Path    string `mapstructure:"path" jsonschema:"description=Path of the metrics endpoint.,default=/metrics"`
}

// Load reads configuration from the given file path (optional) and
// environment variables with the GATEWAY_ prefix.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("gateway")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.AddConfigPath("/etc/edge-gateway")
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	v.SetEnvPrefix("GATEWAY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.read_timeout", "10s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.idle_timeout", "120s")
	v.SetDefault("server.shutdown_timeout", "30s")
	v.SetDefault("server.request_timeout", "60s")

	// Auth defaults
	v.SetDefault("auth.public_paths", []string{"/health", "/ready"})
	v.SetDefault("auth.clock_skew", "60s")
	v.SetDefault("auth.provider_cache_ttl", "1h")
	v.SetDefault("auth.jwks_refresh_interval", "15m")
	v.SetDefault("auth.fallback.enabled", false)

	// Control plane defaults
	v.SetDefault("control_plane.timeout", "5s")
	v.SetDefault("control_plane.breaker.max_requests", 3)
	v.SetDefault("control_plane.breaker.interval", "60s")
	v.SetDefault("control_plane.breaker.timeout", "30s")
	v.SetDefault("control_plane.breaker.min_requests", 5)
	v.SetDefault("control_plane.breaker.failure_rate", 0.6)

	// Backend defaults
	v.SetDefault("backend.timeout", "30s")

	// Redis defaults
	v.SetDefault("redis.addresses", []string{"localhost:6379"})
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.dial_timeout", "5s")
	v.SetDefault("redis.read_timeout", "3s")
	v.SetDefault("redis.write_timeout", "3s")

	// Cache defaults
	v.SetDefault("cache.l1.enabled", true)
	v.SetDefault("cache.l1.max_size", 10000)
	v.SetDefault("cache.l1.ttl", "5m")
	v.SetDefault("cache.l2.enabled", true)
	v.SetDefault("cache.l2.ttl", "1h")
	v.SetDefault("cache.l2.key_prefix", "gw:")

	// Events defaults
	v.SetDefault("events.enabled", true)
	v.SetDefault("events.collection_channel", "events:collection-changed")
	v.SetDefault("events.worker_channel", "events:worker-assignment")
	v.SetDefault("events.record_channel", "events:record-changed")
	v.SetDefault("events.reconnect_backoff", "5s")

	// Include defaults
	v.SetDefault("include.enabled", true)
	v.SetDefault("include.max_includes", 10)

	// Rate limit defaults
	v.SetDefault("rate_limit.enabled", false)
	v.SetDefault("rate_limit.rate", "300-M")
	v.SetDefault("rate_limit.store", "memory")
	v.SetDefault("rate_limit.key_prefix", "gw:ratelimit")
	v.SetDefault("rate_limit.exclude_paths", []string{"/health", "/ready", "/metrics"})

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output", "stdout")
	v.SetDefault("logging.add_caller", true)

	// Metrics defaults
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.path", "/metrics")
}

// DefaultSettings returns the default configuration tree, keyed the way
// the config file is. Used by tooling to emit a reference config.
func DefaultSettings() map[string]any {
	v := viper.New()
	setDefaults(v)
	return v.AllSettings()
}

// Validate checks the configuration for inconsistencies.
func (c *Config) Validate() error {
	if c.Backend.URL == "" {
		return fmt.Errorf("backend.url is required")
	}
	if _, err := url.Parse(c.Backend.URL); err != nil {
		return fmt.Errorf("backend.url is not a valid URL: %w", err)
	}
	if c.ControlPlane.URL != "" {
		if _, err := url.Parse(c.ControlPlane.URL); err != nil {
			return fmt.Errorf("control_plane.url is not a valid URL: %w", err)
		}
	}
	if c.Auth.Fallback.Enabled && c.Auth.Fallback.JWKSURI == "" {
		return fmt.Errorf("auth.fallback.jwks_uri is required when the fallback provider is enabled")
	}
	if c.Auth.ClockSkew < 0 {
		return fmt.Errorf("auth.clock_skew must not be negative")
	}
	if c.Cache.L1.Enabled && c.Cache.L1.MaxSize <= 0 {
		return fmt.Errorf("cache.l1.max_size must be positive")
	}
	if c.RateLimit.Enabled {
		if c.RateLimit.Rate == "" {
			return fmt.Errorf("rate_limit.rate is required when rate limiting is enabled")
		}
		switch c.RateLimit.Store {
		case "memory", "redis":
		default:
			return fmt.Errorf("rate_limit.store must be memory or redis, got %q", c.RateLimit.Store)
		}
	}
	if c.Events.Enabled {
		if c.Events.CollectionChannel == "" || c.Events.RecordChannel == "" {
			return fmt.Errorf("events channels must not be empty when events are enabled")
		}
	}
	return nil
}
