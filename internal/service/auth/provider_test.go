package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/your-org/edge-gateway/internal/config"
	"github.com/your-org/edge-gateway/internal/domain"
	"github.com/your-org/edge-gateway/pkg/errors"
)

// memStore is an in-memory cache.Store for tests.
type memStore struct {
	mu      sync.Mutex
	entries map[string][]byte
	deletes []string
}

func newMemStore() *memStore {
	return &memStore{entries: make(map[string][]byte)}
}

func (s *memStore) Get(_ context.Context, key string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.entries[key]
	return data, ok
}

func (s *memStore) Set(_ context.Context, key string, value []byte, _ time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = value
}

func (s *memStore) Delete(_ context.Context, key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, key)
	s.deletes = append(s.deletes, key)
}

func (s *memStore) primeProvider(t *testing.T, issuer string, info domain.ProviderInfo) {
	t.Helper()
	data, err := json.Marshal(info)
	require.NoError(t, err)
	s.Set(context.Background(), providerKeyPrefix+issuer, data, 0)
}

func testBreakerConfig() config.BreakerConfig {
	return config.BreakerConfig{
		MaxRequests: 3,
		Interval:    time.Minute,
		Timeout:     time.Minute,
		MinRequests: 5,
		FailureRate: 0.6,
	}
}

func testAuthConfig() config.AuthConfig {
	return config.AuthConfig{
		ClockSkew:           time.Second,
		ProviderCacheTTL:    time.Hour,
		JWKSRefreshInterval: time.Minute,
	}
}

func TestResolver_FromCache(t *testing.T) {
	store := newMemStore()
	store.primeProvider(t, "https://issuer.test", domain.ProviderInfo{
		JWKSURI:  "https://issuer.test/jwks",
		Audience: "gw",
	})

	resolver := NewResolver(store, config.ControlPlaneConfig{Breaker: testBreakerConfig()}, testAuthConfig())

	info, err := resolver.Resolve(context.Background(), "https://issuer.test")
	require.NoError(t, err)
	assert.Equal(t, "https://issuer.test", info.Issuer)
	assert.Equal(t, "https://issuer.test/jwks", info.JWKSURI)
	assert.Equal(t, "gw", info.Audience)
}

func TestResolver_CacheEntryWithoutJWKSURIIsMiss(t *testing.T) {
	store := newMemStore()
	store.primeProvider(t, "https://issuer.test", domain.ProviderInfo{Audience: "gw"})

	resolver := NewResolver(store, config.ControlPlaneConfig{Breaker: testBreakerConfig()}, testAuthConfig())

	_, err := resolver.Resolve(context.Background(), "https://issuer.test")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrResolutionFailed))
}

func TestResolver_FromLookup(t *testing.T) {
	var gotIssuer string
	cp := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/internal/oidc/by-issuer", r.URL.Path)
		gotIssuer = r.URL.Query().Get("issuer")
		json.NewEncoder(w).Encode(map[string]string{
			"jwksUri":  "https://issuer.test/jwks",
			"audience": "gw",
		})
	}))
	defer cp.Close()

	store := newMemStore()
	resolver := NewResolver(store, config.ControlPlaneConfig{
		URL:     cp.URL,
		Timeout: time.Second,
		Breaker: testBreakerConfig(),
	}, testAuthConfig())

	info, err := resolver.Resolve(context.Background(), "https://issuer.test")
	require.NoError(t, err)
	assert.Equal(t, "https://issuer.test", gotIssuer)
	assert.Equal(t, "https://issuer.test/jwks", info.JWKSURI)
	assert.Equal(t, "gw", info.Audience)

	// Lookup success primes the distributed cache
	data, ok := store.Get(context.Background(), providerKeyPrefix+"https://issuer.test")
	require.True(t, ok)
	var cached domain.ProviderInfo
	require.NoError(t, json.Unmarshal(data, &cached))
	assert.Equal(t, "https://issuer.test/jwks", cached.JWKSURI)
}

func TestResolver_DiscoveryFallback(t *testing.T) {
	issuer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/.well-known/openid-configuration", r.URL.Path)
		json.NewEncoder(w).Encode(map[string]string{
			"jwks_uri": "https://keys.example.com/jwks",
		})
	}))
	defer issuer.Close()

	cp := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer cp.Close()

	store := newMemStore()
	resolver := NewResolver(store, config.ControlPlaneConfig{
		URL:     cp.URL,
		Timeout: time.Second,
		Breaker: testBreakerConfig(),
	}, testAuthConfig())

	info, err := resolver.Resolve(context.Background(), issuer.URL)
	require.NoError(t, err)
	assert.Equal(t, "https://keys.example.com/jwks", info.JWKSURI)

	// Discovery success primes the distributed cache too
	_, ok := store.Get(context.Background(), providerKeyPrefix+issuer.URL)
	assert.True(t, ok)
}

func TestResolver_StaticFallback(t *testing.T) {
	issuer := httptest.NewServer(http.NotFoundHandler())
	defer issuer.Close()

	authCfg := testAuthConfig()
	authCfg.Fallback = config.FallbackProviderConfig{
		Enabled:  true,
		JWKSURI:  "https://fallback.example.com/jwks",
		Audience: "gw",
	}

	resolver := NewResolver(newMemStore(), config.ControlPlaneConfig{Breaker: testBreakerConfig()}, authCfg)

	info, err := resolver.Resolve(context.Background(), issuer.URL)
	require.NoError(t, err)
	assert.Equal(t, "https://fallback.example.com/jwks", info.JWKSURI)
	assert.Equal(t, "gw", info.Audience)
}

func TestResolver_AllSourcesExhausted(t *testing.T) {
	issuer := httptest.NewServer(http.NotFoundHandler())
	defer issuer.Close()

	resolver := NewResolver(newMemStore(), config.ControlPlaneConfig{Breaker: testBreakerConfig()}, testAuthConfig())

	_, err := resolver.Resolve(context.Background(), issuer.URL)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrResolutionFailed))
}

func TestResolver_CacheAudienceBackfill(t *testing.T) {
	store := newMemStore()
	store.primeProvider(t, "https://issuer.test", domain.ProviderInfo{
		JWKSURI: "https://issuer.test/jwks",
	})

	resolver := NewResolver(store, config.ControlPlaneConfig{Breaker: testBreakerConfig()}, testAuthConfig())
	resolver.recordAudience("https://issuer.test", "gw")

	info, err := resolver.Resolve(context.Background(), "https://issuer.test")
	require.NoError(t, err)
	assert.Equal(t, "gw", info.Audience)
}

func TestResolver_ResolveViaDiscoveryOverwritesCache(t *testing.T) {
	issuer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{
			"jwks_uri": "https://rotated.example.com/jwks",
		})
	}))
	defer issuer.Close()

	store := newMemStore()
	store.primeProvider(t, issuer.URL, domain.ProviderInfo{JWKSURI: "https://stale.example.com/jwks"})

	resolver := NewResolver(store, config.ControlPlaneConfig{Breaker: testBreakerConfig()}, testAuthConfig())

	info, err := resolver.ResolveViaDiscovery(context.Background(), issuer.URL)
	require.NoError(t, err)
	assert.Equal(t, "https://rotated.example.com/jwks", info.JWKSURI)

	data, ok := store.Get(context.Background(), providerKeyPrefix+issuer.URL)
	require.True(t, ok)
	var cached domain.ProviderInfo
	require.NoError(t, json.Unmarshal(data, &cached))
	assert.Equal(t, "https://rotated.example.com/jwks", cached.JWKSURI)
}
