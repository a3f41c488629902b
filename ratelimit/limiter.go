package ratelimit

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/kbukum/automeet/errors"
	"github.com/kbukum/automeet/logger"
	"github.com/kbukum/automeet/observability"
)

const (
	outcomeGranted   = "granted"
	outcomeDenied    = "denied"
	outcomeCancelled = "cancelled"
)

// Limiter is a token bucket. Tokens accrue at refillRate per second up to
// capacity and are computed on access from the time since the last refill.
type Limiter struct {
	name       string
	capacity   float64
	refillRate float64

	clock   Clock
	log     *logger.Logger
	metrics *observability.Metrics

	mu         sync.Mutex
	tokens     float64
	lastRefill time.Time
}

// New creates a full bucket. capacity must be at least 1 and refillRate
// (tokens per second) must be positive.
func New(name string, capacity int, refillRate float64, opts ...Option) (*Limiter, error) {
	if capacity < 1 {
		return nil, errors.ConfigInvalid("ratelimit."+name+".capacity", "must be at least 1")
	}
	if refillRate <= 0 || math.IsNaN(refillRate) || math.IsInf(refillRate, 0) {
		return nil, errors.ConfigInvalid("ratelimit."+name+".refill_rate", "must be a positive number")
	}
	o := buildOptions(opts)
	return &Limiter{
		name:       name,
		capacity:   float64(capacity),
		refillRate: refillRate,
		clock:      o.clock,
		log:        o.log.WithFields(logger.Fields(logger.FieldLimiter, name)),
		metrics:    o.metrics,
		tokens:     float64(capacity),
		lastRefill: o.clock.Now(),
	}, nil
}

// Name returns the registry name of the limiter.
func (l *Limiter) Name() string { return l.name }

// Capacity returns the bucket ceiling.
func (l *Limiter) Capacity() int { return int(l.capacity) }

// RefillRate returns tokens added per second.
func (l *Limiter) RefillRate() float64 { return l.refillRate }

// Tokens returns the currently available tokens after refilling.
func (l *Limiter) Tokens() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.refill()
	return l.tokens
}

// TryConsume deducts n tokens if they are available and reports whether it
// did. It never blocks. n <= 0 always succeeds without touching the bucket.
func (l *Limiter) TryConsume(n int) bool {
	if n <= 0 {
		return true
	}
	l.mu.Lock()
	ok, _ := l.take(float64(n))
	l.mu.Unlock()

	outcome := outcomeGranted
	if !ok {
		outcome = outcomeDenied
	}
	l.metrics.RecordLimiterAcquire(context.Background(), l.name, outcome, 0)
	return ok
}

// Consume deducts n tokens, waiting for them to accrue when the bucket is
// short. The wait is a timer sized to the deficit; on wake the bucket is
// checked again since another caller may have claimed the tokens first.
//
// It returns a CAPACITY_EXCEEDED error when n can never fit the bucket and a
// CANCELLED error when ctx ends before the tokens are granted.
func (l *Limiter) Consume(ctx context.Context, n int) error {
	if n <= 0 {
		return nil
	}
	want := float64(n)
	if want > l.capacity {
		return errors.CapacityExceeded("rate limiter "+l.name, want, l.capacity)
	}
	if err := ctx.Err(); err != nil {
		l.metrics.RecordLimiterAcquire(ctx, l.name, outcomeCancelled, 0)
		return errors.Cancelled("rate limiter "+l.name, err)
	}

	start := l.clock.Now()
	for {
		l.mu.Lock()
		ok, wait := l.take(want)
		l.mu.Unlock()
		if ok {
			waited := l.clock.Now().Sub(start)
			l.metrics.RecordLimiterAcquire(ctx, l.name, outcomeGranted, waited)
			if waited > 0 {
				l.log.Debug("tokens granted after wait", logger.Fields(
					"tokens", n, "waited_ms", waited.Milliseconds(),
				))
			}
			return nil
		}

		l.log.Debug("waiting for tokens", logger.Fields("tokens", n, "wait_ms", wait.Milliseconds()))
		select {
		case <-ctx.Done():
			l.metrics.RecordLimiterAcquire(ctx, l.name, outcomeCancelled, l.clock.Now().Sub(start))
			return errors.Cancelled("rate limiter "+l.name, ctx.Err())
		case <-l.clock.After(wait):
		}
	}
}

// take refills and deducts want tokens if available. When it cannot, it
// returns how long the deficit takes to accrue. Callers hold l.mu.
func (l *Limiter) take(want float64) (bool, time.Duration) {
	l.refill()
	if l.tokens >= want {
		l.tokens -= want
		return true, 0
	}
	deficit := want - l.tokens
	w := deficit / l.refillRate * float64(time.Second)
	switch {
	case w >= math.MaxInt64:
		return false, time.Duration(math.MaxInt64)
	case w < float64(time.Millisecond):
		return false, time.Millisecond
	}
	return false, time.Duration(w)
}

// refill adds tokens for the time elapsed since the last refill, discarding
// anything above capacity. Callers hold l.mu.
func (l *Limiter) refill() {
	now := l.clock.Now()
	elapsed := now.Sub(l.lastRefill).Seconds()
	if elapsed <= 0 {
		return
	}
	l.tokens = math.Min(l.capacity, l.tokens+elapsed*l.refillRate)
	l.lastRefill = now
}
