package cache

import (
	"time"

	"github.com/kbukum/automeet/logger"
	"github.com/kbukum/automeet/observability"
)

type options struct {
	name    string
	now     func() time.Time
	store   any
	log     *logger.Logger
	metrics *observability.Metrics
}

// Option configures a Cache.
type Option func(*options)

// WithName labels the cache in logs and metrics.
func WithName(name string) Option {
	return func(o *options) { o.name = name }
}

// WithNow replaces the wall clock used for entry timestamps.
func WithNow(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// WithStore mirrors entries to s. Its value type must match the cache's.
func WithStore[V any](s Store[V]) Option {
	return func(o *options) { o.store = s }
}

// WithLogger sets the cache logger.
func WithLogger(l *logger.Logger) Option {
	return func(o *options) { o.log = l }
}

// WithMetrics records hits and misses into m.
func WithMetrics(m *observability.Metrics) Option {
	return func(o *options) { o.metrics = m }
}
