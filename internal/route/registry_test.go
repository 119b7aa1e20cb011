package route

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/your-org/edge-gateway/internal/domain"
)

const backendURL = "http://backend:9000"

func TestRegistry_UpdateAndGet(t *testing.T) {
	r := NewRegistry()

	r.UpdateRoute(domain.NewRouteDefinition("col-1", "books", backendURL))

	route, ok := r.GetRoute("col-1")
	require.True(t, ok)
	assert.Equal(t, "books", route.CollectionName)
	assert.Equal(t, "/api/books/**", route.PathPattern)
	assert.Equal(t, backendURL, route.BackendURL)

	byName, ok := r.GetRouteByName("books")
	require.True(t, ok)
	assert.Equal(t, "col-1", byName.ID)
}

func TestRegistry_UpsertOverwrites(t *testing.T) {
	r := NewRegistry()

	r.UpdateRoute(domain.NewRouteDefinition("col-1", "books", backendURL))
	r.UpdateRoute(domain.NewRouteDefinition("col-1", "novels", backendURL))

	route, ok := r.GetRoute("col-1")
	require.True(t, ok)
	assert.Equal(t, "novels", route.CollectionName)

	// The stale name no longer resolves
	_, ok = r.GetRouteByName("books")
	assert.False(t, ok)
	_, ok = r.GetRouteByName("novels")
	assert.True(t, ok)

	assert.Equal(t, 1, r.Len())
}

func TestRegistry_RemoveRoute(t *testing.T) {
	r := NewRegistry()

	r.UpdateRoute(domain.NewRouteDefinition("col-1", "books", backendURL))
	r.RemoveRoute("col-1")

	_, ok := r.GetRoute("col-1")
	assert.False(t, ok)
	_, ok = r.GetRouteByName("books")
	assert.False(t, ok)

	// Removing an absent id is a no-op
	r.RemoveRoute("col-404")
	assert.Equal(t, 0, r.Len())
}

func TestRegistry_Match(t *testing.T) {
	r := NewRegistry()
	r.UpdateRoute(domain.NewRouteDefinition("col-1", "books", backendURL))

	tests := []struct {
		path string
		hit  bool
	}{
		{path: "/api/books/42", hit: true},
		{path: "/api/books", hit: true},
		{path: "/api/books/42/relationships/author", hit: true},
		{path: "/api/movies/1", hit: false},
		{path: "/api/", hit: false},
		{path: "/health", hit: false},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			_, ok := r.Match(tt.path)
			assert.Equal(t, tt.hit, ok)
		})
	}
}

func TestRegistry_ReplaceAll(t *testing.T) {
	r := NewRegistry()
	r.UpdateRoute(domain.NewRouteDefinition("col-1", "books", backendURL))
	r.UpdateRoute(domain.NewRouteDefinition("col-2", "movies", backendURL))

	r.ReplaceAll([]domain.RouteDefinition{
		domain.NewRouteDefinition("col-3", "songs", backendURL),
	})

	assert.Equal(t, 1, r.Len())
	_, ok := r.GetRoute("col-1")
	assert.False(t, ok)
	_, ok = r.GetRouteByName("songs")
	assert.True(t, ok)
}

func TestRegistry_ConcurrentAccess(t *testing.T) {
	r := NewRegistry()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				r.UpdateRoute(domain.NewRouteDefinition("col-1", "books", backendURL))
				r.Match("/api/books/1")
				r.RemoveRoute("col-1")
			}
		}()
	}
	wg.Wait()
}
