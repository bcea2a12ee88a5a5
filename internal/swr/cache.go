// Package swr is a TTL cache that keeps serving expired entries while a single
// caller refreshes them.
package swr

import (
	"sync"
	"sync/atomic"
	"time"
)

// Cache is a TTL cache with stale-while-revalidate.
// Uses sync.Map for lock-free reads on the hot path.
type Cache[V any] struct {
	store sync.Map // map[string]*entry[V]
	ttl   time.Duration
}

type entry[V any] struct {
	value      V
	expiresAt  time.Time
	refreshing atomic.Bool
}

// Result holds the result of a cache lookup.
type Result[V any] struct {
	Value        V
	Hit          bool // true if a value was found (fresh or stale)
	NeedsRefresh bool // true if expired; caller should refresh in background
}

// New creates a cache with the given TTL.
func New[V any](ttl time.Duration) *Cache[V] {
	return &Cache[V]{ttl: ttl}
}

// Get performs a non-blocking cache lookup. Stale entries are returned with
// NeedsRefresh set for exactly one caller.
func (c *Cache[V]) Get(key string) Result[V] {
	val, ok := c.store.Load(key)
	if !ok {
		return Result[V]{}
	}

	e := val.(*entry[V])
	if time.Now().Before(e.expiresAt) {
		return Result[V]{Value: e.value, Hit: true}
	}

	// only one goroutine wins the CAS and refreshes
	return Result[V]{
		Value:        e.value,
		Hit:          true,
		NeedsRefresh: e.refreshing.CompareAndSwap(false, true),
	}
}

// Set stores a value with a fresh TTL.
func (c *Cache[V]) Set(key string, value V) {
	c.store.Store(key, &entry[V]{
		value:     value,
		expiresAt: time.Now().Add(c.ttl),
	})
}

// Delete removes an entry from the cache.
func (c *Cache[V]) Delete(key string) {
	c.store.Delete(key)
}
