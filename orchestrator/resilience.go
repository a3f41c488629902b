package orchestrator

import (
	"time"

	"github.com/kbukum/automeet/logger"
	"github.com/kbukum/automeet/provider"
	"github.com/kbukum/automeet/resilience"
)

// guard retries and circuit-breaks calls to the named provider as
// configured. It sits outside the rate limiter so each attempt waits for
// its own token.
func guard[I, O any](o *Orchestrator, name string) provider.Middleware[I, O] {
	rc := o.cfg.Resilience
	var mws []provider.Middleware[I, O]

	if rc.MaxAttempts > 1 {
		mws = append(mws, provider.WithRetry[I, O](resilience.RetryConfig{
			MaxAttempts:    rc.MaxAttempts,
			InitialBackoff: rc.InitialBackoff,
			MaxBackoff:     rc.MaxBackoff,
			BackoffFactor:  2,
			Jitter:         0.1,
			OnRetry: func(attempt int, err error, backoff time.Duration) {
				o.log.Warn("retrying provider call", logger.Fields(
					logger.FieldProvider, name,
					"attempt", attempt,
					"backoff", backoff.String(),
					logger.FieldError, err.Error(),
				))
			},
		}))
	}

	if rc.BreakerFailures > 0 {
		cb, ok := o.breakers[name]
		if !ok {
			cb = resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
				Name:        name,
				MaxFailures: rc.BreakerFailures,
				Timeout:     rc.BreakerTimeout,
				OnStateChange: func(name string, from, to resilience.State) {
					o.log.Warn("provider circuit changed state", logger.Fields(
						logger.FieldProvider, name,
						"from", from.String(),
						"to", to.String(),
					))
				},
			})
			o.breakers[name] = cb
		}
		mws = append(mws, provider.WithCircuitBreaker[I, O](cb))
	}
	return provider.Chain(mws...)
}

// openCircuits lists providers whose circuit is not closed.
func (o *Orchestrator) openCircuits() map[string]string {
	open := make(map[string]string)
	for name, cb := range o.breakers {
		if s := cb.State(); s != resilience.StateClosed {
			open[name] = s.String()
		}
	}
	return open
}
