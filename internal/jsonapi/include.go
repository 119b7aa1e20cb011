package jsonapi

import (
	"context"
	"encoding/json"

	"github.com/your-org/edge-gateway/internal/service/metrics"
	"github.com/your-org/edge-gateway/pkg/logger"
)

// Cache is the lookup contract the resolver depends on. A miss and a
// connectivity failure are indistinguishable here; both skip the key.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool)
}

// Resolver expands requested relationships from previously cached
// resource representations.
type Resolver struct {
	cache Cache
}

// NewResolver creates an include resolver over the shared cache.
func NewResolver(cache Cache) *Resolver {
	return &Resolver{cache: cache}
}

// ResolveIncludes returns the related resources referenced by the
// primary resources under the requested names. A relationship is a
// candidate when its key matches a requested name exactly, or, only
// when the resource has no exact key match for it, when its target
// type matches a requested name. Identifiers are deduplicated by
// (type, id) so each related resource is looked up once. Misses,
// lookup failures and unparseable entries are skipped silently.
func (r *Resolver) ResolveIncludes(ctx context.Context, requested []string, primary []ResourceObject) []ResourceObject {
	if len(requested) == 0 || len(primary) == 0 {
		return nil
	}

	names := make(map[string]struct{}, len(requested))
	for _, name := range requested {
		if name != "" {
			names[name] = struct{}{}
		}
	}
	if len(names) == 0 {
		return nil
	}

	seen := make(map[ResourceIdentifier]struct{})
	var order []ResourceIdentifier

	for _, resource := range primary {
		for _, id := range candidateIdentifiers(resource, names) {
			if !id.Valid() {
				continue
			}
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}
			order = append(order, id)
		}
	}

	included := make([]ResourceObject, 0, len(order))
	for _, id := range order {
		if resolved, ok := r.lookup(ctx, id); ok {
			included = append(included, resolved)
		}
	}

	if len(included) > 0 {
		metrics.DefaultMetrics.IncludedResourcesTotal.Add(float64(len(included)))
		metrics.DefaultMetrics.IncludeResolutionsTotal.WithLabelValues("resolved").Inc()
	} else {
		metrics.DefaultMetrics.IncludeResolutionsTotal.WithLabelValues("empty").Inc()
	}

	return included
}

// candidateIdentifiers collects identifiers from the resource's
// candidate relationships. Exact key matches claim their requested
// names first; type matches apply only for names no key on this
// resource matched.
func candidateIdentifiers(resource ResourceObject, names map[string]struct{}) []ResourceIdentifier {
	if len(resource.Relationships) == 0 {
		return nil
	}

	exactKeys := make(map[string]struct{})
	for key := range resource.Relationships {
		if _, ok := names[key]; ok {
			exactKeys[key] = struct{}{}
		}
	}

	var ids []ResourceIdentifier
	for key, rel := range resource.Relationships {
		if _, exact := exactKeys[key]; exact {
			ids = append(ids, rel.Data...)
			continue
		}
		for _, id := range rel.Data {
			if _, requestedType := names[id.Type]; !requestedType {
				continue
			}
			// Type match only counts when no relationship key on this
			// resource claimed the name exactly
			if _, claimed := exactKeys[id.Type]; claimed {
				continue
			}
			ids = append(ids, id)
		}
	}
	return ids
}

// lookup fetches one cached resource; any failure contributes nothing.
func (r *Resolver) lookup(ctx context.Context, id ResourceIdentifier) (ResourceObject, bool) {
	data, ok := r.cache.Get(ctx, CacheKey(id.Type, id.ID))
	if !ok {
		return ResourceObject{}, false
	}

	var resource ResourceObject
	if err := json.Unmarshal(data, &resource); err != nil {
		logger.Debug("cached resource unparseable, skipping",
			logger.String("type", id.Type),
			logger.String("id", id.ID),
			logger.Err(err),
		)
		return ResourceObject{}, false
	}

	return resource, true
}
