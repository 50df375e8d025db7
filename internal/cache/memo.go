// Package cache memoizes report computations in a bounded, expiring LRU.
package cache

import (
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/sync/singleflight"
)

// Memo caches computed values by key. Concurrent misses on the same key run
// the computation once and share its result. Errors are never cached.
type Memo[V any] struct {
	lru   *expirable.LRU[string, V]
	group singleflight.Group
}

// New creates a Memo holding at most size entries, each for at most ttl.
// A size <= 0 disables caching: every call computes.
func New[V any](size int, ttl time.Duration) *Memo[V] {
	m := &Memo[V]{}
	if size > 0 {
		m.lru = expirable.NewLRU[string, V](size, nil, ttl)
	}
	return m
}

// Do returns the cached value for key or computes, stores and returns it.
// The boolean reports whether the value came from the cache.
func (m *Memo[V]) Do(key string, compute func() (V, error)) (V, bool, error) {
	if m.lru != nil {
		if v, ok := m.lru.Get(key); ok {
			return v, true, nil
		}
	}

	res, err, _ := m.group.Do(key, func() (interface{}, error) {
		v, err := compute()
		if err != nil {
			return v, err
		}
		if m.lru != nil {
			m.lru.Add(key, v)
		}
		return v, nil
	})
	if err != nil {
		var zero V
		return zero, false, err
	}
	return res.(V), false, nil
}
