package http

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/your-org/edge-gateway/internal/config"
	"github.com/your-org/edge-gateway/internal/domain"
	"github.com/your-org/edge-gateway/internal/route"
)

func TestReverseProxy_ForwardsPathAndMethod(t *testing.T) {
	type echo struct {
		Method string `json:"method"`
		Path   string `json:"path"`
		Query  string `json:"query"`
		Body   string `json:"body"`
	}

	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		json.NewEncoder(w).Encode(echo{
			Method: r.Method,
			Path:   r.URL.Path,
			Query:  r.URL.RawQuery,
			Body:   string(body),
		})
	}))
	defer backend.Close()

	registry := route.NewRegistry()
	registry.UpdateRoute(domain.NewRouteDefinition("col-1", "books", backend.URL))

	proxy := NewReverseProxy(registry, config.BackendConfig{URL: backend.URL})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPatch, "/api/books/42?fields=title", nil)

	proxy.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var got echo
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, http.MethodPatch, got.Method)
	assert.Equal(t, "/api/books/42", got.Path)
	assert.Equal(t, "fields=title", got.Query)
}

func TestReverseProxy_UnknownCollection(t *testing.T) {
	registry := route.NewRegistry()
	proxy := NewReverseProxy(registry, config.BackendConfig{})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/unknown/1", nil)

	proxy.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "ROUTE_NOT_FOUND", errorCodeFrom(t, rec))
}

func TestReverseProxy_UnreachableBackend(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	backend.Close()

	registry := route.NewRegistry()
	registry.UpdateRoute(domain.NewRouteDefinition("col-1", "books", backend.URL))

	proxy := NewReverseProxy(registry, config.BackendConfig{URL: backend.URL})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/books/1", nil)

	proxy.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Equal(t, "BAD_GATEWAY", errorCodeFrom(t, rec))
}

func TestReverseProxy_SharesProxyPerBackend(t *testing.T) {
	registry := route.NewRegistry()
	proxy := NewReverseProxy(registry, config.BackendConfig{})

	first, err := proxy.proxyFor("http://backend:9000")
	require.NoError(t, err)
	second, err := proxy.proxyFor("http://backend:9000")
	require.NoError(t, err)

	assert.Same(t, first, second)
}
