// Package cache provides a thread-safe in-memory TTL cache, used to hold
// evaluation sessions between the steps of one KYC submission.
package cache

import (
	"sync"
	"time"
)

type entry[T any] struct {
	value     T
	expiresAt time.Time
}

// InMemory is a generic TTL cache. Reads renew the entry's lifetime, so a
// session stays alive while the caller keeps working with it.
type InMemory[T any] struct {
	mu    sync.Mutex
	items map[string]entry[T]
	ttl   time.Duration
	stop  chan struct{}
}

// New creates an in-memory cache whose entries expire ttl after their last
// access. A background janitor reclaims expired entries.
func New[T any](ttl time.Duration) *InMemory[T] {
	c := &InMemory[T]{
		items: make(map[string]entry[T]),
		ttl:   ttl,
		stop:  make(chan struct{}),
	}
	go c.janitor()
	return c
}

// Get retrieves a value and renews its TTL. Returns false if the key is
// absent or expired.
func (c *InMemory[T]) Get(key string) (T, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.items[key]
	if !ok || time.Now().After(e.expiresAt) {
		var zero T
		return zero, false
	}
	e.expiresAt = time.Now().Add(c.ttl)
	c.items[key] = e
	return e.value, true
}

// Set stores a value with the configured TTL.
func (c *InMemory[T]) Set(key string, value T) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.items[key] = entry[T]{value: value, expiresAt: time.Now().Add(c.ttl)}
}

// Delete removes a value.
func (c *InMemory[T]) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.items, key)
}

// Stop terminates the janitor goroutine.
func (c *InMemory[T]) Stop() {
	close(c.stop)
}

func (c *InMemory[T]) janitor() {
	ticker := time.NewTicker(c.ttl)
	defer ticker.Stop()

	for {
		select {
		case <-c.stop:
			return
		case <-ticker.C:
			c.mu.Lock()
			now := time.Now()
			for k, e := range c.items {
				if now.After(e.expiresAt) {
					delete(c.items, k)
				}
			}
			c.mu.Unlock()
		}
	}
}
