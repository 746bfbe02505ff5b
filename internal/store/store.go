// Package store implements the reactive cache layer: an in-memory value of
// type T kept write-through with the durable key-value store, announcing
// every mutation on the event bus and to local subscribers.
package store

import (
	"context"
	"log/slog"
	"sync"

	"github.com/dailysync/keeper/internal/bus"
	"github.com/dailysync/keeper/internal/kvstore"
)

// Cache is a reactive in-memory cache of T persisted under a fixed key.
// Storage failures are logged and swallowed: Get, Set, and Load never fail
// because the disk is unavailable, they just keep serving memory state.
type Cache[T any] struct {
	log     *slog.Logger
	kv      kvstore.Store
	bus     *bus.Bus
	key     string
	topic   bus.Topic
	initial T

	mu     sync.RWMutex
	state  T
	nextID int
	subs   map[int]func()
}

// New creates a cache seeded with initial. Call Load to hydrate it from
// durable storage.
func New[T any](logger *slog.Logger, kv kvstore.Store, b *bus.Bus, key string, topic bus.Topic, initial T) *Cache[T] {
	return &Cache[T]{
		log:     logger.With("cache", key),
		kv:      kv,
		bus:     b,
		key:     key,
		topic:   topic,
		initial: initial,
		state:   initial,
		subs:    make(map[int]func()),
	}
}

// Get returns the current in-memory value.
func (c *Cache[T]) Get() T {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// Set computes the next value from the previous one, persists it, then
// publishes on the cache's topic and notifies local subscribers.
func (c *Cache[T]) Set(ctx context.Context, update func(prev T) T) {
	c.mu.Lock()
	c.state = update(c.state)
	next := c.state
	c.mu.Unlock()

	if err := kvstore.SetJSON(ctx, c.kv, c.key, next); err != nil {
		c.log.WarnContext(ctx, "cache persist failed", slog.Any("error", err))
	}
	c.notify(next)
}

// SetValue replaces the value directly.
func (c *Cache[T]) SetValue(ctx context.Context, next T) {
	c.Set(ctx, func(T) T { return next })
}

// Load reads the persisted value, falling back to the initial value when the
// key is absent or unreadable, installs it as current state, and notifies.
func (c *Cache[T]) Load(ctx context.Context) T {
	var loaded T
	// GetJSON never fails; absence and corruption both yield the fallback.
	_ = kvstore.GetJSON(ctx, c.kv, c.key, c.initial, &loaded)

	c.mu.Lock()
	c.state = loaded
	c.mu.Unlock()

	c.notify(loaded)
	return loaded
}

// Subscribe registers fn to run after every mutation. The returned function
// removes the subscription.
func (c *Cache[T]) Subscribe(fn func()) func() {
	c.mu.Lock()
	defer c.mu.Unlock()

	id := c.nextID
	c.nextID++
	c.subs[id] = fn

	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(c.subs, id)
	}
}

func (c *Cache[T]) notify(payload T) {
	if c.bus != nil {
		c.bus.Publish(c.topic, payload)
	}

	c.mu.RLock()
	fns := make([]func(), 0, len(c.subs))
	for _, fn := range c.subs {
		fns = append(fns, fn)
	}
	c.mu.RUnlock()

	for _, fn := range fns {
		fn()
	}
}
