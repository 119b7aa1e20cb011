package jsonapi

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// countingCache records lookups so tests can assert on access patterns.
type countingCache struct {
	entries map[string][]byte
	gets    map[string]int
}

func newCountingCache() *countingCache {
	return &countingCache{
		entries: make(map[string][]byte),
		gets:    make(map[string]int),
	}
}

func (c *countingCache) put(t *testing.T, resource ResourceObject) {
	t.Helper()
	data, err := json.Marshal(resource)
	require.NoError(t, err)
	c.entries[CacheKey(resource.Type, resource.ID)] = data
}

func (c *countingCache) Get(_ context.Context, key string) ([]byte, bool) {
	c.gets[key]++
	data, ok := c.entries[key]
	return data, ok
}

func singleRel(resourceType, id string) Relationship {
	return Relationship{Data: []ResourceIdentifier{{Type: resourceType, ID: id}}}
}

func TestResolveIncludes_ExactKeyMatch(t *testing.T) {
	cache := newCountingCache()
	cache.put(t, ResourceObject{Type: "people", ID: "9"})

	primary := []ResourceObject{{
		Type: "books",
		ID:   "1",
		Relationships: map[string]Relationship{
			"author": singleRel("people", "9"),
		},
	}}

	resolver := NewResolver(cache)
	included := resolver.ResolveIncludes(context.Background(), []string{"author"}, primary)

	require.Len(t, included, 1)
	assert.Equal(t, "people", included[0].Type)
	assert.Equal(t, "9", included[0].ID)
}

func TestResolveIncludes_TypeMatch(t *testing.T) {
	cache := newCountingCache()
	cache.put(t, ResourceObject{Type: "people", ID: "9"})

	primary := []ResourceObject{{
		Type: "books",
		ID:   "1",
		Relationships: map[string]Relationship{
			"writtenBy": singleRel("people", "9"),
		},
	}}

	resolver := NewResolver(cache)
	included := resolver.ResolveIncludes(context.Background(), []string{"people"}, primary)

	require.Len(t, included, 1)
	assert.Equal(t, "9", included[0].ID)
}

func TestResolveIncludes_ExactKeyBeatsTypeMatch(t *testing.T) {
	// Resource has a relationship named "author" and another whose
	// target type is "author". Requesting "author" must follow the key,
	// not the type.
	cache := newCountingCache()
	cache.put(t, ResourceObject{Type: "people", ID: "key-target"})
	cache.put(t, ResourceObject{Type: "author", ID: "type-target"})

	primary := []ResourceObject{{
		Type: "books",
		ID:   "1",
		Relationships: map[string]Relationship{
			"author":     singleRel("people", "key-target"),
			"author_ref": singleRel("author", "type-target"),
		},
	}}

	resolver := NewResolver(cache)
	included := resolver.ResolveIncludes(context.Background(), []string{"author"}, primary)

	require.Len(t, included, 1)
	assert.Equal(t, "key-target", included[0].ID)
}

func TestResolveIncludes_DeduplicatesLookups(t *testing.T) {
	cache := newCountingCache()
	cache.put(t, ResourceObject{Type: "people", ID: "9"})

	primary := []ResourceObject{
		{
			Type: "books", ID: "1",
			Relationships: map[string]Relationship{"author": singleRel("people", "9")},
		},
		{
			Type: "books", ID: "2",
			Relationships: map[string]Relationship{"author": singleRel("people", "9")},
		},
	}

	resolver := NewResolver(cache)
	included := resolver.ResolveIncludes(context.Background(), []string{"author"}, primary)

	require.Len(t, included, 1)
	assert.Equal(t, 1, cache.gets[CacheKey("people", "9")])
}

func TestResolveIncludes_MissesSkippedSilently(t *testing.T) {
	cache := newCountingCache()
	cache.put(t, ResourceObject{Type: "people", ID: "present"})
	cache.entries[CacheKey("people", "broken")] = []byte("{not json")

	primary := []ResourceObject{{
		Type: "books",
		ID:   "1",
		Relationships: map[string]Relationship{
			"author": {Many: true, Data: []ResourceIdentifier{
				{Type: "people", ID: "present"},
				{Type: "people", ID: "absent"},
				{Type: "people", ID: "broken"},
			}},
		},
	}}

	resolver := NewResolver(cache)
	included := resolver.ResolveIncludes(context.Background(), []string{"author"}, primary)

	require.Len(t, included, 1)
	assert.Equal(t, "present", included[0].ID)
}

func TestResolveIncludes_InvalidIdentifiersSkipped(t *testing.T) {
	cache := newCountingCache()

	primary := []ResourceObject{{
		Type: "books",
		ID:   "1",
		Relationships: map[string]Relationship{
			"author": {Data: []ResourceIdentifier{{Type: "people"}}},
		},
	}}

	resolver := NewResolver(cache)
	included := resolver.ResolveIncludes(context.Background(), []string{"author"}, primary)

	assert.Empty(t, included)
	assert.Empty(t, cache.gets)
}

func TestResolveIncludes_NoRequestedNames(t *testing.T) {
	resolver := NewResolver(newCountingCache())

	assert.Nil(t, resolver.ResolveIncludes(context.Background(), nil, []ResourceObject{{Type: "books", ID: "1"}}))
	assert.Nil(t, resolver.ResolveIncludes(context.Background(), []string{"author"}, nil))
	assert.Nil(t, resolver.ResolveIncludes(context.Background(), []string{""}, []ResourceObject{{Type: "books", ID: "1"}}))
}
