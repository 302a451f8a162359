// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package search

import (
	"container/list"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/AleutianAI/PantryFOSS/services/pantry/datatypes"
)

// =============================================================================
// Prometheus Metrics
// =============================================================================

var cacheRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "pantry",
	Subsystem: "search_cache",
	Name:      "requests_total",
	Help:      "Result cache lookups by outcome: hit, miss, expired",
}, []string{"outcome"})

// =============================================================================
// Result Cache
// =============================================================================

const (
	// defaultCacheTTL keeps repeated/near-duplicate utterances from
	// re-hitting the search collaborator. Staleness beyond this window is
	// acceptable, never correctness-breaking.
	defaultCacheTTL = 5 * time.Minute

	// defaultCacheCapacity bounds memory; least-recently-used entries are
	// evicted first.
	defaultCacheCapacity = 100
)

// CacheKey builds the memoization key from the normalized query text and
// the alpha rounded to two decimals, so near-identical fusion weights share
// an entry.
func CacheKey(query string, alpha float64) string {
	norm := strings.Join(strings.Fields(strings.ToLower(query)), " ")
	return fmt.Sprintf("%s|%.2f", norm, alpha)
}

// cacheEntry is one memoized result list.
type cacheEntry struct {
	key       string
	products  []datatypes.Product
	expiresAt time.Time
}

// Cache is a bounded, TTL'd, LRU result cache shared across sessions.
//
// Thread Safety: Safe for concurrent use. A single mutex guards both the
// map and the recency list; entries are small and lookups are O(1), so
// sharding is not worth the complexity at this capacity.
type Cache struct {
	mu       sync.Mutex
	items    map[string]*list.Element
	recency  *list.List // front = most recently used
	ttl      time.Duration
	capacity int

	// now is the clock, swappable in tests.
	now func() time.Time
}

// NewCache creates a result cache. Zero ttl/capacity use the defaults
// (5 minutes, 100 entries).
func NewCache(ttl time.Duration, capacity int) *Cache {
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	if capacity <= 0 {
		capacity = defaultCacheCapacity
	}
	return &Cache{
		items:    make(map[string]*list.Element),
		recency:  list.New(),
		ttl:      ttl,
		capacity: capacity,
		now:      time.Now,
	}
}

// Get returns the cached product list for key, if present and unexpired.
// The returned slice is a copy — a cache hit is indistinguishable in shape
// from a live result, and callers can never mutate cached state.
func (c *Cache) Get(key string) ([]datatypes.Product, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.items[key]
	if !ok {
		cacheRequestsTotal.WithLabelValues("miss").Inc()
		return nil, false
	}
	entry := elem.Value.(*cacheEntry)
	if c.now().After(entry.expiresAt) {
		c.recency.Remove(elem)
		delete(c.items, key)
		cacheRequestsTotal.WithLabelValues("expired").Inc()
		return nil, false
	}
	c.recency.MoveToFront(elem)
	cacheRequestsTotal.WithLabelValues("hit").Inc()
	return cloneProducts(entry.products), true
}

// Put stores a copy of products under key, evicting the least-recently-used
// entry when at capacity.
func (c *Cache) Put(key string, products []datatypes.Product) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.items[key]; ok {
		entry := elem.Value.(*cacheEntry)
		entry.products = cloneProducts(products)
		entry.expiresAt = c.now().Add(c.ttl)
		c.recency.MoveToFront(elem)
		return
	}

	for c.recency.Len() >= c.capacity {
		oldest := c.recency.Back()
		if oldest == nil {
			break
		}
		c.recency.Remove(oldest)
		delete(c.items, oldest.Value.(*cacheEntry).key)
	}

	entry := &cacheEntry{
		key:       key,
		products:  cloneProducts(products),
		expiresAt: c.now().Add(c.ttl),
	}
	c.items[key] = c.recency.PushFront(entry)
}

// Len returns the number of entries, including any not yet lazily expired.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.recency.Len()
}

func cloneProducts(products []datatypes.Product) []datatypes.Product {
	out := make([]datatypes.Product, len(products))
	copy(out, products)
	return out
}
