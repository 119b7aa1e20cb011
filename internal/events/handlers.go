package events

import (
	"context"
	"encoding/json"

	"github.com/mitchellh/mapstructure"

	"github.com/your-org/edge-gateway/internal/domain"
	"github.com/your-org/edge-gateway/internal/jsonapi"
	"github.com/your-org/edge-gateway/internal/route"
	"github.com/your-org/edge-gateway/internal/service/cache"
	"github.com/your-org/edge-gateway/internal/service/metrics"
	"github.com/your-org/edge-gateway/pkg/logger"
)

// permissionCacheKeyPrefix namespaces tenant permission entries. The
// control plane populates them; the gateway only evicts.
const permissionCacheKeyPrefix = "authz:perm:"

// permissionCollections are the system collections governing
// authentication and authorization. A record change on any of them
// evicts the tenant's permission cache.
var permissionCollections = map[string]struct{}{
	"profiles":                   {},
	"permission-sets":            {},
	"profile-system-permissions": {},
	"profile-object-permissions": {},
	"profile-field-permissions":  {},
	"permset-system-permissions": {},
	"permset-object-permissions": {},
	"permset-field-permissions":  {},
	"user-permission-sets":       {},
	"group-permission-sets":      {},
	"user-groups":                {},
	"group-memberships":          {},
	"users":                      {},
}

// collectionsMetaCollection is the collection describing collections
// themselves; a record change on it signals a full route refresh.
const collectionsMetaCollection = "collections"

// Refresher triggers a full route table rebuild.
type Refresher interface {
	Refresh(ctx context.Context) error
}

// Handler applies configuration events to the registry and caches.
type Handler struct {
	registry   *route.Registry
	store      cache.Store
	refresher  Refresher
	backendURL string
}

// NewHandler creates an event handler.
func NewHandler(registry *route.Registry, store cache.Store, refresher Refresher, backendURL string) *Handler {
	return &Handler{
		registry:   registry,
		store:      store,
		refresher:  refresher,
		backendURL: backendURL,
	}
}

// HandleCollectionChanged applies a collection lifecycle event.
// CREATED and UPDATED upsert the route; DELETED removes it without an
// upsert. Routes always point at the configured backend URL.
func (h *Handler) HandleCollectionChanged(ctx context.Context, data []byte) {
	var payload domain.CollectionChangedPayload
	if !decodePayload(data, &payload) {
		metrics.DefaultMetrics.EventsProcessedTotal.WithLabelValues("collection", "malformed").Inc()
		return
	}

	if payload.ID == "" {
		logger.Warn("collection event without id, ignoring")
		metrics.DefaultMetrics.EventsProcessedTotal.WithLabelValues("collection", "missing_fields").Inc()
		return
	}

	if payload.ChangeType == domain.ChangeDeleted {
		h.registry.RemoveRoute(payload.ID)
		metrics.DefaultMetrics.EventsProcessedTotal.WithLabelValues("collection", "removed").Inc()
		return
	}

	if payload.Name == "" {
		logger.Warn("collection event without name, ignoring",
			logger.String("id", payload.ID),
		)
		metrics.DefaultMetrics.EventsProcessedTotal.WithLabelValues("collection", "missing_fields").Inc()
		return
	}

	h.registry.UpdateRoute(domain.NewRouteDefinition(payload.ID, payload.Name, h.backendURL))
	metrics.DefaultMetrics.EventsProcessedTotal.WithLabelValues("collection", "upserted").Inc()
}

// HandleWorkerAssignmentChanged applies a collection-to-worker
// assignment event. The payload's worker URL identifies the emitting
// instance only and is never used for routing.
func (h *Handler) HandleWorkerAssignmentChanged(ctx context.Context, data []byte) {
	var payload domain.WorkerAssignmentPayload
	if !decodePayload(data, &payload) {
		metrics.DefaultMetrics.EventsProcessedTotal.WithLabelValues("worker", "malformed").Inc()
		return
	}

	if payload.ChangeType == domain.ChangeDeleted {
		if payload.CollectionID == "" {
			logger.Warn("worker assignment removal without collection id, ignoring")
			metrics.DefaultMetrics.EventsProcessedTotal.WithLabelValues("worker", "missing_fields").Inc()
			return
		}
		h.registry.RemoveRoute(payload.CollectionID)
		metrics.DefaultMetrics.EventsProcessedTotal.WithLabelValues("worker", "removed").Inc()
		return
	}

	if payload.CollectionID == "" || payload.CollectionName == "" {
		logger.Warn("worker assignment event missing required fields, ignoring",
			logger.String("collection_id", payload.CollectionID),
			logger.String("collection_name", payload.CollectionName),
		)
		metrics.DefaultMetrics.EventsProcessedTotal.WithLabelValues("worker", "missing_fields").Inc()
		return
	}

	h.registry.UpdateRoute(domain.NewRouteDefinition(payload.CollectionID, payload.CollectionName, h.backendURL))
	metrics.DefaultMetrics.EventsProcessedTotal.WithLabelValues("worker", "upserted").Inc()
}

// HandleRecordChanged invalidates caches affected by a record change:
// always the cached resource representation for the exact type and id,
// the tenant's permission cache for auth-governing collections, and a
// full route refresh when the collections meta-collection changes.
func (h *Handler) HandleRecordChanged(ctx context.Context, data []byte) {
	var payload domain.RecordChangePayload
	if !decodePayload(data, &payload) {
		metrics.DefaultMetrics.EventsProcessedTotal.WithLabelValues("record", "malformed").Inc()
		return
	}

	if payload.CollectionName == "" {
		logger.Warn("record event without collection name, ignoring")
		metrics.DefaultMetrics.EventsProcessedTotal.WithLabelValues("record", "missing_fields").Inc()
		return
	}

	if payload.CollectionName == collectionsMetaCollection && h.refresher != nil {
		logger.Info("collections metadata changed, refreshing route table",
			logger.String("record_id", payload.RecordID),
			logger.String("change_type", string(payload.ChangeType)),
		)
		if err := h.refresher.Refresh(ctx); err != nil {
			logger.Error("route table refresh failed", logger.Err(err))
		}
	}

	if payload.RecordID != "" {
		h.store.Delete(ctx, jsonapi.CacheKey(payload.CollectionName, payload.RecordID))
	}

	if _, governed := permissionCollections[payload.CollectionName]; governed && payload.TenantID != "" {
		h.store.Delete(ctx, permissionCacheKeyPrefix+payload.TenantID)
		logger.Debug("permission cache evicted",
			logger.String("tenant", payload.TenantID),
			logger.String("collection", payload.CollectionName),
		)
	}

	metrics.DefaultMetrics.EventsProcessedTotal.WithLabelValues("record", "processed").Inc()
}

// decodePayload parses an event body that is either a wrapped envelope
// or a flat payload. Unparseable bodies are logged and dropped.
func decodePayload(data []byte, out any) bool {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		logger.Error("malformed event payload, ignoring", logger.Err(err))
		return false
	}

	payload := raw
	if wrapped, ok := raw["payload"].(map[string]any); ok {
		payload = wrapped
	} else if _, hasPayloadKey := raw["payload"]; hasPayloadKey {
		// Envelope with an explicit null or non-object payload
		logger.Error("event envelope carries no usable payload, ignoring")
		return false
	}

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return false
	}
	if err := decoder.Decode(payload); err != nil {
		logger.Error("event payload does not match expected shape, ignoring", logger.Err(err))
		return false
	}
	return true
}
