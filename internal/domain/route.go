package domain

import "fmt"

// RouteDefinition describes a forwarding rule for one collection.
type RouteDefinition struct {
	// ID is the route identifier, the collection id.
	ID string

	// CollectionName is the URL segment the route matches.
	CollectionName string

	// PathPattern matches all requests under the collection prefix.
	PathPattern string

	// BackendURL is the configured backend base URL. It always comes
	// from gateway configuration, never from an event payload.
	BackendURL string
}

// NewRouteDefinition builds a route for a collection against the
// configured backend.
func NewRouteDefinition(id, collectionName, backendURL string) RouteDefinition {
	return RouteDefinition{
		ID:             id,
		CollectionName: collectionName,
		PathPattern:    fmt.Sprintf("/api/%s/**", collectionName),
		BackendURL:     backendURL,
	}
}

// ProviderInfo describes a resolved identity provider.
type ProviderInfo struct {
	// Issuer is the provider's issuer URL.
	Issuer string `json:"issuer"`

	// JWKSURI is the provider's key set endpoint.
	JWKSURI string `json:"jwksUri"`

	// Audience is the expected audience, empty when audience validation
	// is disabled for this provider.
	Audience string `json:"audience,omitempty"`
}

// Valid reports whether the provider info is usable for verification.
func (p ProviderInfo) Valid() bool {
	return p.JWKSURI != ""
}
