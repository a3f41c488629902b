package ratelimit

import (
	"sort"
	"sync"
)

// Registry maps provider names to limiters. Get is idempotent: the first call
// for a name fixes its parameters and later calls return the same bucket.
type Registry struct {
	mu       sync.RWMutex
	limiters map[string]*Limiter
	opts     []Option
}

// NewRegistry creates an empty registry. opts apply to every limiter it
// creates.
func NewRegistry(opts ...Option) *Registry {
	return &Registry{
		limiters: make(map[string]*Limiter),
		opts:     opts,
	}
}

// Get returns the limiter registered under name, creating it with capacity
// and refillRate if absent. Parameters of an existing limiter are never
// changed, and invalid parameters only fail when a limiter is created.
func (r *Registry) Get(name string, capacity int, refillRate float64) (*Limiter, error) {
	r.mu.RLock()
	l, ok := r.limiters[name]
	r.mu.RUnlock()
	if ok {
		return l, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if l, ok := r.limiters[name]; ok {
		return l, nil
	}
	l, err := New(name, capacity, refillRate, r.opts...)
	if err != nil {
		return nil, err
	}
	r.limiters[name] = l
	return l, nil
}

// Lookup returns the limiter registered under name without creating one.
func (r *Registry) Lookup(name string) (*Limiter, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	l, ok := r.limiters[name]
	return l, ok
}

// Remove drops the named limiter. A later Get creates a fresh bucket.
func (r *Registry) Remove(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.limiters[name]; !ok {
		return false
	}
	delete(r.limiters, name)
	return true
}

// Names returns the registered limiter names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	names := make([]string, 0, len(r.limiters))
	for name := range r.limiters {
		names = append(names, name)
	}
	r.mu.RUnlock()
	sort.Strings(names)
	return names
}
