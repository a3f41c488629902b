package cache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/kbukum/automeet/errors"
	"github.com/kbukum/automeet/logger"
	"github.com/kbukum/automeet/observability"
)

// Entry is a cached value and the time it was stored.
type Entry[V any] struct {
	Value     V         `json:"value"`
	CreatedAt time.Time `json:"created_at"`
}

func (e Entry[V]) fresh(now time.Time, ttl time.Duration) bool {
	return now.Sub(e.CreatedAt) < ttl
}

// Cache is a TTL key-value memo safe for concurrent use.
type Cache[V any] struct {
	name    string
	ttl     time.Duration
	now     func() time.Time
	store   Store[V]
	log     *logger.Logger
	metrics *observability.Metrics

	mu      sync.RWMutex
	entries map[string]Entry[V]

	closeOnce sync.Once
	done      chan struct{}
}

// New creates a cache whose entries expire ttl after they are set.
func New[V any](ttl time.Duration, opts ...Option) (*Cache[V], error) {
	if ttl <= 0 {
		return nil, errors.ConfigInvalid("cache.ttl", "must be positive")
	}
	o := options{name: "default", now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	if o.log == nil {
		o.log = logger.Get("cache")
	}

	c := &Cache[V]{
		name:    o.name,
		ttl:     ttl,
		now:     o.now,
		log:     o.log.WithFields(logger.Fields("cache", o.name)),
		metrics: o.metrics,
		entries: make(map[string]Entry[V]),
		done:    make(chan struct{}),
	}
	if o.store != nil {
		s, ok := o.store.(Store[V])
		if !ok {
			return nil, errors.ConfigInvalid("cache.store", fmt.Sprintf("store type %T does not hold this cache's values", o.store))
		}
		c.store = s
	}
	return c, nil
}

// TTL returns the freshness window.
func (c *Cache[V]) TTL() time.Duration { return c.ttl }

// Get returns the value for key if it was set less than TTL ago.
func (c *Cache[V]) Get(key string) (V, bool) {
	now := c.now()

	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()

	if ok && e.fresh(now, c.ttl) {
		c.metrics.RecordCacheLookup(context.Background(), c.name, true)
		return e.Value, true
	}
	if !ok && c.store != nil {
		if v, hit := c.loadFromStore(key, now); hit {
			c.metrics.RecordCacheLookup(context.Background(), c.name, true)
			return v, true
		}
	}

	c.metrics.RecordCacheLookup(context.Background(), c.name, false)
	var zero V
	return zero, false
}

func (c *Cache[V]) loadFromStore(key string, now time.Time) (V, bool) {
	var zero V
	e, ok, err := c.store.Load(key)
	if err != nil {
		c.log.Warn("cache store read failed", logger.Fields(logger.FieldCacheKey, key, logger.FieldError, err.Error()))
		return zero, false
	}
	if !ok || !e.fresh(now, c.ttl) {
		return zero, false
	}

	c.mu.Lock()
	if _, exists := c.entries[key]; !exists {
		c.entries[key] = e
	}
	c.mu.Unlock()
	return e.Value, true
}

// Set stores value under key, replacing any previous entry and restarting
// its freshness window. Store write failures are logged, not returned.
func (c *Cache[V]) Set(key string, value V) {
	e := Entry[V]{Value: value, CreatedAt: c.now()}

	c.mu.Lock()
	c.entries[key] = e
	c.mu.Unlock()

	if c.store != nil {
		if err := c.store.Save(key, e); err != nil {
			c.log.Warn("cache store write failed", logger.Fields(logger.FieldCacheKey, key, logger.FieldError, err.Error()))
		}
	}
}

// Invalidate removes key. Removing an absent key is a no-op.
func (c *Cache[V]) Invalidate(key string) {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()

	if c.store != nil {
		if err := c.store.Delete(key); err != nil {
			c.log.Warn("cache store delete failed", logger.Fields(logger.FieldCacheKey, key, logger.FieldError, err.Error()))
		}
	}
}

// Clear removes every entry.
func (c *Cache[V]) Clear() {
	c.mu.Lock()
	c.entries = make(map[string]Entry[V])
	c.mu.Unlock()

	if c.store != nil {
		if err := c.store.Clear(); err != nil {
			c.log.Warn("cache store clear failed", logger.Fields(logger.FieldError, err.Error()))
		}
	}
}

// Len returns the number of entries held in memory, including expired ones
// not yet swept.
func (c *Cache[V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Sweep removes expired entries and returns how many were removed.
func (c *Cache[V]) Sweep() int {
	now := c.now()
	var expired []string

	c.mu.Lock()
	for k, e := range c.entries {
		if !e.fresh(now, c.ttl) {
			delete(c.entries, k)
			expired = append(expired, k)
		}
	}
	c.mu.Unlock()

	if c.store != nil {
		for _, k := range expired {
			if err := c.store.Delete(k); err != nil {
				c.log.Warn("cache store delete failed", logger.Fields(logger.FieldCacheKey, k, logger.FieldError, err.Error()))
			}
		}
	}
	if len(expired) > 0 {
		c.log.Debug("swept expired entries", logger.Fields("removed", len(expired)))
	}
	return len(expired)
}

// StartSweeper runs Sweep every interval until ctx ends or Close is called.
func (c *Cache[V]) StartSweeper(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		return errors.ConfigInvalid("cache.sweep_interval", "must be positive")
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-c.done:
				return
			case <-ticker.C:
				c.Sweep()
			}
		}
	}()
	return nil
}

// Close stops any running sweeper. It is safe to call more than once.
func (c *Cache[V]) Close() {
	c.closeOnce.Do(func() { close(c.done) })
}
