// Package route holds the live routing table mapping collections to
// the backend service.
package route

import (
	"strings"
	"sync"

	"github.com/your-org/edge-gateway/internal/domain"
	"github.com/your-org/edge-gateway/internal/service/metrics"
	"github.com/your-org/edge-gateway/pkg/logger"
)

// Registry is the concurrent route table, keyed by collection id.
// Each upsert and remove is one atomic replace; readers never observe
// a partially applied update. Last write per id wins.
type Registry struct {
	mu     sync.RWMutex
	byID   map[string]domain.RouteDefinition
	byName map[string]string // collection name -> id
}

// NewRegistry creates an empty route registry.
func NewRegistry() *Registry {
	return &Registry{
		byID:   make(map[string]domain.RouteDefinition),
		byName: make(map[string]string),
	}
}

// UpdateRoute upserts a route by collection id.
func (r *Registry) UpdateRoute(route domain.RouteDefinition) {
	r.mu.Lock()
	if existing, ok := r.byID[route.ID]; ok && existing.CollectionName != route.CollectionName {
		delete(r.byName, existing.CollectionName)
	}
	r.byID[route.ID] = route
	r.byName[route.CollectionName] = route.ID
	size := len(r.byID)
	r.mu.Unlock()

	metrics.DefaultMetrics.RouteTableSize.Set(float64(size))
	logger.Info("route updated",
		logger.String("id", route.ID),
		logger.String("collection", route.CollectionName),
		logger.String("path", route.PathPattern),
	)
}

// RemoveRoute removes the route for a collection id. Removing an
// absent id is a no-op.
func (r *Registry) RemoveRoute(id string) {
	r.mu.Lock()
	route, ok := r.byID[id]
	if ok {
		delete(r.byID, id)
		if r.byName[route.CollectionName] == id {
			delete(r.byName, route.CollectionName)
		}
	}
	size := len(r.byID)
	r.mu.Unlock()

	if ok {
		metrics.DefaultMetrics.RouteTableSize.Set(float64(size))
		logger.Info("route removed",
			logger.String("id", id),
			logger.String("collection", route.CollectionName),
		)
	}
}

// GetRoute returns the route for a collection id.
func (r *Registry) GetRoute(id string) (domain.RouteDefinition, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	route, ok := r.byID[id]
	return route, ok
}

// GetRouteByName returns the route for a collection name.
func (r *Registry) GetRouteByName(name string) (domain.RouteDefinition, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byName[name]
	if !ok {
		return domain.RouteDefinition{}, false
	}
	route, ok := r.byID[id]
	return route, ok
}

// Match resolves a request path of the form /api/{collection}/... to
// its route.
func (r *Registry) Match(path string) (domain.RouteDefinition, bool) {
	collection, ok := collectionFromPath(path)
	if !ok {
		metrics.DefaultMetrics.RouteLookupsTotal.WithLabelValues("miss").Inc()
		return domain.RouteDefinition{}, false
	}

	route, ok := r.GetRouteByName(collection)
	if ok {
		metrics.DefaultMetrics.RouteLookupsTotal.WithLabelValues("hit").Inc()
	} else {
		metrics.DefaultMetrics.RouteLookupsTotal.WithLabelValues("miss").Inc()
	}
	return route, ok
}

// AllRoutes returns a snapshot of the current routes.
func (r *Registry) AllRoutes() []domain.RouteDefinition {
	r.mu.RLock()
	defer r.mu.RUnlock()

	routes := make([]domain.RouteDefinition, 0, len(r.byID))
	for _, route := range r.byID {
		routes = append(routes, route)
	}
	return routes
}

// Len returns the number of registered routes.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byID)
}

// ReplaceAll swaps the whole table in one step. Used by full refresh.
func (r *Registry) ReplaceAll(routes []domain.RouteDefinition) {
	byID := make(map[string]domain.RouteDefinition, len(routes))
	byName := make(map[string]string, len(routes))
	for _, route := range routes {
		byID[route.ID] = route
		byName[route.CollectionName] = route.ID
	}

	r.mu.Lock()
	r.byID = byID
	r.byName = byName
	r.mu.Unlock()

	metrics.DefaultMetrics.RouteTableSize.Set(float64(len(byID)))
	logger.Info("route table replaced", logger.Int("routes", len(byID)))
}

// collectionFromPath extracts the collection segment from an /api/
// request path.
func collectionFromPath(path string) (string, bool) {
	const prefix = "/api/"
	if !strings.HasPrefix(path, prefix) {
		return "", false
	}
	rest := path[len(prefix):]
	if idx := strings.IndexByte(rest, '/'); idx >= 0 {
		rest = rest[:idx]
	}
	if rest == "" {
		return "", false
	}
	return rest, true
}
