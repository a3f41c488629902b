package provider

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/kbukum/automeet/logger"
	"github.com/kbukum/automeet/observability"
	"github.com/kbukum/automeet/ratelimit"
	"github.com/kbukum/automeet/resilience"
)

// Middleware transforms a RequestResponse provider by wrapping it.
type Middleware[I, O any] func(RequestResponse[I, O]) RequestResponse[I, O]

// Chain composes middlewares. The first middleware is outermost.
//
// Chain(a, b, c)(provider) is equivalent to a(b(c(provider))).
func Chain[I, O any](middlewares ...Middleware[I, O]) Middleware[I, O] {
	return func(inner RequestResponse[I, O]) RequestResponse[I, O] {
		for i := len(middlewares) - 1; i >= 0; i-- {
			inner = middlewares[i](inner)
		}
		return inner
	}
}

// wrapped carries the identity of the provider it decorates.
type wrapped[I, O any] struct {
	inner RequestResponse[I, O]
	exec  func(ctx context.Context, input I) (O, error)
}

func (w *wrapped[I, O]) Name() string                         { return w.inner.Name() }
func (w *wrapped[I, O]) IsAvailable(ctx context.Context) bool { return w.inner.IsAvailable(ctx) }
func (w *wrapped[I, O]) Execute(ctx context.Context, input I) (O, error) {
	return w.exec(ctx, input)
}

// WithRateLimit takes one token from limiter before each call, waiting for
// it when the bucket is empty. A cancelled wait never reaches the provider.
func WithRateLimit[I, O any](limiter *ratelimit.Limiter) Middleware[I, O] {
	return func(inner RequestResponse[I, O]) RequestResponse[I, O] {
		return &wrapped[I, O]{inner: inner, exec: func(ctx context.Context, input I) (O, error) {
			if err := limiter.Consume(ctx, 1); err != nil {
				var zero O
				return zero, err
			}
			return inner.Execute(ctx, input)
		}}
	}
}

// WithLogging logs each call with its duration and outcome.
func WithLogging[I, O any](log *logger.Logger) Middleware[I, O] {
	return func(inner RequestResponse[I, O]) RequestResponse[I, O] {
		return &wrapped[I, O]{inner: inner, exec: func(ctx context.Context, input I) (O, error) {
			start := time.Now()
			output, err := inner.Execute(ctx, input)
			fields := logger.Fields(
				logger.FieldProvider, inner.Name(),
				logger.FieldDuration, time.Since(start).Milliseconds(),
			)
			if err != nil {
				fields[logger.FieldError] = err.Error()
				log.Error("provider call failed", fields)
			} else {
				log.Debug("provider call ok", fields)
			}
			return output, err
		}}
	}
}

// WithMetrics records call counts and durations under operation.
func WithMetrics[I, O any](metrics *observability.Metrics, operation string) Middleware[I, O] {
	return func(inner RequestResponse[I, O]) RequestResponse[I, O] {
		return &wrapped[I, O]{inner: inner, exec: func(ctx context.Context, input I) (O, error) {
			start := time.Now()
			output, err := inner.Execute(ctx, input)
			status := "ok"
			if err != nil {
				status = "error"
			}
			metrics.RecordProviderCall(ctx, inner.Name(), operation, status, time.Since(start))
			return output, err
		}}
	}
}

// WithTracing wraps each call in a span named spanName.
func WithTracing[I, O any](spanName string) Middleware[I, O] {
	return func(inner RequestResponse[I, O]) RequestResponse[I, O] {
		return &wrapped[I, O]{inner: inner, exec: func(ctx context.Context, input I) (O, error) {
			ctx, span := observability.StartSpan(ctx, spanName, attribute.String("provider", inner.Name()))
			output, err := inner.Execute(ctx, input)
			observability.EndSpan(span, err)
			return output, err
		}}
	}
}

// WithRetry re-runs failed calls per cfg. Place it outside WithRateLimit so
// every attempt draws its own token.
func WithRetry[I, O any](cfg resilience.RetryConfig) Middleware[I, O] {
	return func(inner RequestResponse[I, O]) RequestResponse[I, O] {
		return &wrapped[I, O]{inner: inner, exec: func(ctx context.Context, input I) (O, error) {
			return resilience.Retry(ctx, cfg, func() (O, error) {
				return inner.Execute(ctx, input)
			})
		}}
	}
}

// WithCircuitBreaker fails calls fast while cb is open.
func WithCircuitBreaker[I, O any](cb *resilience.CircuitBreaker) Middleware[I, O] {
	return func(inner RequestResponse[I, O]) RequestResponse[I, O] {
		return &wrapped[I, O]{inner: inner, exec: func(ctx context.Context, input I) (O, error) {
			return resilience.Call(cb, func() (O, error) {
				return inner.Execute(ctx, input)
			})
		}}
	}
}
