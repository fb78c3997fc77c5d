// Package preload loads room inputs from the catalog store and keeps them in
// an expiring cache so the draft hot path never waits on storage.
package preload

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// Cache is an expiring key-value store. A miss is not an error.
type Cache[V any] interface {
	Get(ctx context.Context, key string) (V, bool, error)
	Set(ctx context.Context, key string, value V) error
	DeletePrefix(ctx context.Context, prefix string) (int, error)
	// Sweep drops expired entries and returns how many were removed.
	Sweep(ctx context.Context) (int, error)
}

type entry[V any] struct {
	value   V
	expires time.Time
}

// TTLCache is an in-process Cache safe for concurrent use.
type TTLCache[V any] struct {
	clock clockwork.Clock
	ttl   time.Duration

	mu      sync.RWMutex
	entries map[string]entry[V]
}

func NewTTLCache[V any](clock clockwork.Clock, ttl time.Duration) *TTLCache[V] {
	return &TTLCache[V]{
		clock:   clock,
		ttl:     ttl,
		entries: make(map[string]entry[V]),
	}
}

func (c *TTLCache[V]) Get(_ context.Context, key string) (V, bool, error) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()

	var zero V
	if !ok {
		return zero, false, nil
	}
	if !c.clock.Now().Before(e.expires) {
		c.mu.Lock()
		if cur, ok := c.entries[key]; ok && cur.expires.Equal(e.expires) {
			delete(c.entries, key)
		}
		c.mu.Unlock()
		return zero, false, nil
	}
	return e.value, true, nil
}

func (c *TTLCache[V]) Set(_ context.Context, key string, value V) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = entry[V]{value: value, expires: c.clock.Now().Add(c.ttl)}
	return nil
}

func (c *TTLCache[V]) DeletePrefix(_ context.Context, prefix string) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for k := range c.entries {
		if strings.HasPrefix(k, prefix) {
			delete(c.entries, k)
			n++
		}
	}
	return n, nil
}

func (c *TTLCache[V]) Sweep(_ context.Context) (int, error) {
	now := c.clock.Now()
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for k, e := range c.entries {
		if !now.Before(e.expires) {
			delete(c.entries, k)
			n++
		}
	}
	return n, nil
}

func (c *TTLCache[V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
