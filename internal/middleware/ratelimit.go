// ===========================================
// Package middleware - Rate Limiting
// ===========================================
// Fixed one-minute windows counted in Redis:
// 1. Key = "ratelimit:{client}:{minute}"
// 2. INCR key, expiring it with the window
// 3. If count > limit, reject with 429
//
// The client is the admin key fingerprint when the request carried
// one, otherwise the client IP as resolved by gin's trusted proxies.
// Without Redis, or when Redis fails, requests pass (fail open).
// ===========================================

package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/user/linkshortener/internal/database"
	"github.com/user/linkshortener/internal/models"
)

// RateLimiter is the middleware for rate limiting.
type RateLimiter struct {
	redis      *database.RedisDB // nil disables limiting
	limit      int
	windowSize time.Duration
	logger     *slog.Logger
	now        func() time.Time
}

// NewRateLimiter creates a new rate limiter. redis may be nil; a
// non-positive limit disables limiting too.
func NewRateLimiter(redis *database.RedisDB, requestsPerMinute int, logger *slog.Logger) *RateLimiter {
	return &RateLimiter{
		redis:      redis,
		limit:      requestsPerMinute,
		windowSize: time.Minute,
		logger:     logger,
		now:        time.Now,
	}
}

// Enabled reports whether requests are counted at all.
func (rl *RateLimiter) Enabled() bool {
	return rl.redis != nil && rl.limit > 0
}

// Middleware returns the gin handler.
func (rl *RateLimiter) Middleware() gin.HandlerFunc {
	if !rl.Enabled() {
		return func(c *gin.Context) { c.Next() }
	}

	return func(c *gin.Context) {
		window := rl.now().Truncate(rl.windowSize)
		key := database.RateLimitKey(clientIdentifier(c), window)

		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		count, err := rl.redis.IncrementRateLimit(ctx, key, rl.windowSize)
		if err != nil {
			rl.logger.Warn("rate limiter unavailable, allowing request", "error", err)
			c.Next()
			return
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(rl.limit))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(max(0, rl.limit-int(count))))
		c.Header("X-RateLimit-Reset", strconv.FormatInt(window.Add(rl.windowSize).Unix(), 10))

		if int(count) > rl.limit {
			retryAfter := int(window.Add(rl.windowSize).Sub(rl.now()).Seconds()) + 1
			c.Header("Retry-After", strconv.Itoa(retryAfter))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, models.ErrorResponse{
				Error:   "Rate limit exceeded",
				Code:    models.ErrCodeRateLimited,
				Details: fmt.Sprintf("Try again in %d seconds", retryAfter),
			})
			return
		}

		c.Next()
	}
}

func clientIdentifier(c *gin.Context) string {
	if id := AdminKeyID(c); id != "" {
		return "key:" + id
	}
	return "ip:" + c.ClientIP()
}
