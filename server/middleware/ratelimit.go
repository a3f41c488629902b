package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/kbukum/automeet/errors"
	"github.com/kbukum/automeet/logger"
	"github.com/kbukum/automeet/ratelimit"
)

// RateLimitConfig configures per-client API rate limiting.
type RateLimitConfig struct {
	// Capacity is the burst size per client.
	Capacity int
	// RefillRate is the sustained requests per second per client.
	RefillRate float64
	// KeyFunc extracts the client key from a request. Defaults to client IP.
	KeyFunc func(*gin.Context) string
}

// RateLimit gives every client key its own token bucket in registry and
// refuses requests with 429 RATE_LIMITED when the bucket is empty. It never
// waits for tokens.
func RateLimit(registry *ratelimit.Registry, cfg RateLimitConfig, log *logger.Logger) gin.HandlerFunc {
	if cfg.KeyFunc == nil {
		cfg.KeyFunc = IPBasedKey
	}

	return func(c *gin.Context) {
		key := "http:" + cfg.KeyFunc(c)
		limiter, err := registry.Get(key, cfg.Capacity, cfg.RefillRate)
		if err != nil {
			log.Error("rate limiter unavailable", logger.Fields(logger.FieldLimiter, key, logger.FieldError, err.Error()))
			c.Next()
			return
		}
		if !limiter.TryConsume(1) {
			appErr := errors.RateLimited("api")
			c.Header("Retry-After", "1")
			c.AbortWithStatusJSON(appErr.HTTPStatus, appErr.ToResponse())
			return
		}
		c.Next()
	}
}

// IPBasedKey extracts the client IP for use as a rate limit key.
func IPBasedKey(c *gin.Context) string {
	return c.ClientIP()
}
