package http

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
	"github.com/your-org/edge-gateway/internal/service/auth"
	"github.com/your-org/edge-gateway/pkg/errors"
)

// memStore is an in-memory cache store for transport tests.
type memStore struct {
	mu      sync.Mutex
	entries map[string][]byte
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
}

func newOfflineAuthService(t *testing.T) *auth.Service {
	t.Helper()

	resolver := auth.NewResolver(newMemStore(), config.ControlPlaneConfig{
		Breaker: config.BreakerConfig{MaxRequests: 3, MinRequests: 5, FailureRate: 0.6},
	}, config.AuthConfig{ProviderCacheTTL: time.Hour, JWKSRefreshInterval: time.Minute})
	decoders := auth.NewDecoderCache(t.Context(), time.Minute, time.Minute)
	return auth.NewServiceWith(resolver, decoders)
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func errorCodeFrom(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()

	var envelope struct {
		Error struct {
			Code string `json:"code"`
			Path string `json:"path"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	return envelope.Error.Code
}

func TestAuthMiddleware_MissingToken(t *testing.T) {
	mw := newAuthMiddleware(newOfflineAuthService(t), nil)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/books/1", nil)

	mw.Handler(okHandler()).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "UNAUTHORIZED", errorCodeFrom(t, rec))
}

func TestAuthMiddleware_MalformedToken(t *testing.T) {
	mw := newAuthMiddleware(newOfflineAuthService(t), nil)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/books/1", nil)
	req.Header.Set("Authorization", "Bearer not-a-jwt")

	mw.Handler(okHandler()).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "MALFORMED_TOKEN", errorCodeFrom(t, rec))
}

func TestAuthMiddleware_PublicPathBypass(t *testing.T) {
	mw := newAuthMiddleware(newOfflineAuthService(t), []string{"/api/public"})

	tests := []struct {
		name   string
		method string
		path   string
		want   int
	}{
		{name: "public GET", method: http.MethodGet, path: "/api/public/docs", want: http.StatusOK},
		{name: "public HEAD", method: http.MethodHead, path: "/api/public", want: http.StatusOK},
		{name: "public POST still authenticated", method: http.MethodPost, path: "/api/public/docs", want: http.StatusUnauthorized},
		{name: "non-public GET", method: http.MethodGet, path: "/api/books", want: http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			req := httptest.NewRequest(tt.method, tt.path, nil)

			mw.Handler(okHandler()).ServeHTTP(rec, req)

			assert.Equal(t, tt.want, rec.Code)
		})
	}
}

func TestAuthMiddleware_OptionsBypass(t *testing.T) {
	mw := newAuthMiddleware(newOfflineAuthService(t), nil)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodOptions, "/api/books", nil)

	mw.Handler(okHandler()).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestBearerToken(t *testing.T) {
	tests := []struct {
		name   string
		header string
		want   string
		ok     bool
	}{
		{name: "valid", header: "Bearer abc.def.ghi", want: "abc.def.ghi", ok: true},
		{name: "case insensitive scheme", header: "bearer abc.def.ghi", want: "abc.def.ghi", ok: true},
		{name: "missing header", header: "", ok: false},
		{name: "wrong scheme", header: "Basic dXNlcg==", ok: false},
		{name: "empty token", header: "Bearer   ", ok: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/books", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}

			token, err := bearerToken(req)
			if tt.ok {
				require.NoError(t, err)
				assert.Equal(t, tt.want, token)
			} else {
				require.Error(t, err)
				assert.True(t, errors.Is(err, errors.ErrTokenMissing))
			}
		})
	}
}

func TestPrincipalFromContext(t *testing.T) {
	_, ok := PrincipalFromContext(context.Background())
	assert.False(t, ok)
}
