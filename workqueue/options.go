package workqueue

import (
	"github.com/kbukum/automeet/logger"
	"github.com/kbukum/automeet/observability"
)

// DefaultBufferSize is the buffer capacity used when none is configured.
const DefaultBufferSize = 64

type options struct {
	name       string
	bufferSize int
	log        *logger.Logger
	onError    any
	metrics    *observability.Metrics
}

// Option configures a Queue.
type Option func(*options)

// WithName labels the queue in logs and metrics.
func WithName(name string) Option {
	return func(o *options) { o.name = name }
}

// WithBufferSize sets how many published items may wait for a worker.
// Zero makes Publish hand items directly to an idle worker.
func WithBufferSize(n int) Option {
	return func(o *options) { o.bufferSize = n }
}

// WithLogger sets the queue logger.
func WithLogger(l *logger.Logger) Option {
	return func(o *options) { o.log = l }
}

// WithOnError registers fn to receive every item whose handler failed or
// panicked. fn runs on the worker goroutine.
func WithOnError[T any](fn func(item T, err error)) Option {
	return func(o *options) { o.onError = fn }
}

// WithMetrics records queue depth and outcomes into m.
func WithMetrics(m *observability.Metrics) Option {
	return func(o *options) { o.metrics = m }
}
