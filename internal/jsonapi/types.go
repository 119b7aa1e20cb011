// Package jsonapi holds the resource document model and include resolution.
package jsonapi

import (
	"bytes"
	"encoding/json"
)

// ResourceIdentifier identifies a resource by type and id.
type ResourceIdentifier struct {
	Type string `json:"type"`
	ID   string `json:"id"`
}

// Valid reports whether both type and id are present.
func (r ResourceIdentifier) Valid() bool {
	return r.Type != "" && r.ID != ""
}

// Relationship links a resource to one or many related resources.
// Its data member is a single identifier, a list of identifiers, or null.
type Relationship struct {
	// Data holds the linked identifiers. Single-valued relationships
	// hold one element; absent or null data is an empty slice.
	Data []ResourceIdentifier

	// Many records whether the wire form was an array.
	Many bool

	// Links carries optional link metadata verbatim.
	Links map[string]any
}

type relationshipWire struct {
	Data  json.RawMessage `json:"data,omitempty"`
	Links map[string]any  `json:"links,omitempty"`
}

// UnmarshalJSON accepts single-object, array and null data members.
func (r *Relationship) UnmarshalJSON(b []byte) error {
	var wire relationshipWire
	if err := json.Unmarshal(b, &wire); err != nil {
		return err
	}
	r.Links = wire.Links
	r.Data = nil
	r.Many = false

	data := bytes.TrimSpace(wire.Data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil
	}

	if data[0] == '[' {
		r.Many = true
		var ids []ResourceIdentifier
		if err := json.Unmarshal(data, &ids); err != nil {
			return err
		}
		r.Data = ids
		return nil
	}

	var id ResourceIdentifier
	if err := json.Unmarshal(data, &id); err != nil {
		return err
	}
	r.Data = []ResourceIdentifier{id}
	return nil
}

// MarshalJSON writes the data member back in its original shape.
func (r Relationship) MarshalJSON() ([]byte, error) {
	wire := relationshipWire{Links: r.Links}

	switch {
	case r.Many:
		ids := r.Data
		if ids == nil {
			ids = []ResourceIdentifier{}
		}
		raw, err := json.Marshal(ids)
		if err != nil {
			return nil, err
		}
		wire.Data = raw
	case len(r.Data) == 1:
		raw, err := json.Marshal(r.Data[0])
		if err != nil {
			return nil, err
		}
		wire.Data = raw
	default:
		wire.Data = json.RawMessage("null")
	}

	return json.Marshal(wire)
}

// ResourceObject is a full resource representation.
type ResourceObject struct {
	Type          string                  `json:"type"`
	ID            string                  `json:"id"`
	Attributes    map[string]any          `json:"attributes,omitempty"`
	Relationships map[string]Relationship `json:"relationships,omitempty"`
}

// Identifier returns the resource's identifier.
func (r *ResourceObject) Identifier() ResourceIdentifier {
	return ResourceIdentifier{Type: r.Type, ID: r.ID}
}

// Document is a top-level resource document. Data holds either one
// resource or a list of them.
type Document struct {
	Data     json.RawMessage  `json:"data,omitempty"`
	Included []ResourceObject `json:"included,omitempty"`
	Meta     map[string]any   `json:"meta,omitempty"`
}

// PrimaryResources decodes the document's data member into a flat list,
// whether it holds a single resource or an array.
func (d *Document) PrimaryResources() ([]ResourceObject, error) {
	data := bytes.TrimSpace(d.Data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil, nil
	}

	if data[0] == '[' {
		var resources []ResourceObject
		if err := json.Unmarshal(data, &resources); err != nil {
			return nil, err
		}
		return resources, nil
	}

	var resource ResourceObject
	if err := json.Unmarshal(data, &resource); err != nil {
		return nil, err
	}
	return []ResourceObject{resource}, nil
}

// CacheKey composes the shared cache key for a resource.
func CacheKey(resourceType, id string) string {
	return "jsonapi:" + resourceType + ":" + id
}
