// Package cache provides the gateway's layered cache: an in-process LRU
// in front of a shared Redis cache.
package cache

import (
	"container/list"
	"context"
	"sync"
	"time"

	"github.com/your-org/edge-gateway/internal/config"
	"github.com/your-org/edge-gateway/internal/service/metrics"
	"github.com/your-org/edge-gateway/pkg/logger"
)

// L1Cache implements an in-memory LRU cache with TTL support.
type L1Cache struct {
	mu       sync.RWMutex
	capacity int
	ttl      time.Duration
	items    map[string]*list.Element
	order    *list.List // LRU order
	enabled  bool
}

// cacheEntry represents a single cache entry.
type cacheEntry struct {
	key       string
	value     []byte
	expiresAt time.Time
}

// NewL1Cache creates a new L1 in-memory cache.
func NewL1Cache(cfg config.L1CacheConfig) *L1Cache {
	return &L1Cache{
		capacity: cfg.MaxSize,
		ttl:      cfg.TTL,
		items:    make(map[string]*list.Element),
		order:    list.New(),
		enabled:  cfg.Enabled,
	}
}

// Get retrieves a value from the cache.
func (c *L1Cache) Get(ctx context.Context, key string) ([]byte, bool) {
	if !c.enabled {
		return nil, false
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.items[key]
	if !ok {
		metrics.DefaultMetrics.CacheMissesTotal.WithLabelValues("l1").Inc()
		return nil, false
	}

	entry := elem.Value.(*cacheEntry)

	if time.Now().After(entry.expiresAt) {
		c.removeElement(elem)
		metrics.DefaultMetrics.CacheMissesTotal.WithLabelValues("l1").Inc()
		return nil, false
	}

	c.order.MoveToFront(elem)
	metrics.DefaultMetrics.CacheHitsTotal.WithLabelValues("l1").Inc()

	// Return a copy to prevent mutation
	value := make([]byte, len(entry.value))
	copy(value, entry.value)
	return value, true
}

// Set stores a value in the cache.
func (c *L1Cache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) {
	if !c.enabled {
		return
	}

	if ttl == 0 {
		ttl = c.ttl
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.items[key]; ok {
		c.order.MoveToFront(elem)
		entry := elem.Value.(*cacheEntry)
		entry.value = value
		entry.expiresAt = time.Now().Add(ttl)
		return
	}

	if c.order.Len() >= c.capacity {
		c.evictOldest()
	}

	entry := &cacheEntry{
		key:       key,
		value:     value,
		expiresAt: time.Now().Add(ttl),
	}
	elem := c.order.PushFront(entry)
	c.items[key] = elem
	metrics.DefaultMetrics.CacheSize.WithLabelValues("l1").Set(float64(c.order.Len()))
}

// Delete removes a key from the cache.
func (c *L1Cache) Delete(ctx context.Context, key string) {
	if !c.enabled {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.items[key]; ok {
		c.removeElement(elem)
	}
}

// Clear removes all entries from the cache.
func (c *L1Cache) Clear(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.items = make(map[string]*list.Element)
	c.order.Init()
	metrics.DefaultMetrics.CacheSize.WithLabelValues("l1").Set(0)
}

// Len returns the number of entries currently cached.
func (c *L1Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.order.Len()
}

// evictOldest removes the least recently used entry.
func (c *L1Cache) evictOldest() {
	elem := c.order.Back()
	if elem != nil {
		c.removeElement(elem)
	}
}

// removeElement removes an element from the cache.
func (c *L1Cache) removeElement(elem *list.Element) {
	c.order.Remove(elem)
	entry := elem.Value.(*cacheEntry)
	delete(c.items, entry.key)
	metrics.DefaultMetrics.CacheSize.WithLabelValues("l1").Set(float64(c.order.Len()))
}

// StartCleanup starts a background goroutine to clean expired entries.
func (c *L1Cache) StartCleanup(ctx context.Context, interval time.Duration) {
	if !c.enabled {
		return
	}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				c.cleanupExpired()
			}
		}
	}()

	logger.Debug("L1 cache cleanup started", logger.Duration("interval", interval))
}

// cleanupExpired removes all expired entries.
func (c *L1Cache) cleanupExpired() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	var toRemove []*list.Element

	for elem := c.order.Back(); elem != nil; elem = elem.Prev() {
		entry := elem.Value.(*cacheEntry)
		if now.After(entry.expiresAt) {
			toRemove = append(toRemove, elem)
		}
	}

	for _, elem := range toRemove {
		c.removeElement(elem)
	}

	if len(toRemove) > 0 {
		logger.Debug("L1 cache cleanup completed", logger.Int("removed", len(toRemove)))
	}
}
