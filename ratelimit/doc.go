// Package ratelimit throttles outbound calls to rate-limited providers.
//
// A Limiter is a token bucket refilled lazily from elapsed time; nothing runs
// in the background. A Registry hands out one Limiter per provider name and is
// created once at startup and passed to whoever needs it.
//
//	reg := ratelimit.NewRegistry()
//	lim, err := reg.Get("openai", 3, 0.05)
//	if err != nil {
//		return err
//	}
//	if err := lim.Consume(ctx, 1); err != nil {
//		return err // cancelled or capacity exceeded
//	}
package ratelimit
