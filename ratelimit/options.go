package ratelimit

import (
	"github.com/kbukum/automeet/logger"
	"github.com/kbukum/automeet/observability"
)

type options struct {
	clock   Clock
	log     *logger.Logger
	metrics *observability.Metrics
}

// Option configures a Limiter or every Limiter created by a Registry.
type Option func(*options)

// WithClock replaces the wall clock.
func WithClock(c Clock) Option {
	return func(o *options) { o.clock = c }
}

// WithLogger sets the logger used for wait and denial events.
func WithLogger(l *logger.Logger) Option {
	return func(o *options) { o.log = l }
}

// WithMetrics records acquisitions into m.
func WithMetrics(m *observability.Metrics) Option {
	return func(o *options) { o.metrics = m }
}

func buildOptions(opts []Option) options {
	o := options{clock: realClock{}}
	for _, opt := range opts {
		opt(&o)
	}
	if o.log == nil {
		o.log = logger.Get("ratelimit")
	}
	return o
}
