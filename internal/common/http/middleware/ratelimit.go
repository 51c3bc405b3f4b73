package middleware

import (
	"context"
	"fmt"
	"time"

	"codepulse/internal/common/cache"
	pkgerrors "codepulse/pkg/errors"
	"codepulse/pkg/utils/response"

	"github.com/gin-gonic/gin"
)

// RateLimiter enforces fixed-window limits using Redis.
type RateLimiter struct {
	cache        cache.Cache
	redisTimeout time.Duration
}

func NewRateLimiter(cacheClient cache.Cache, redisTimeout time.Duration) *RateLimiter {
	if redisTimeout <= 0 {
		redisTimeout = 200 * time.Millisecond
	}
	return &RateLimiter{cache: cacheClient, redisTimeout: redisTimeout}
}

// Allow counts one hit against key and fails with TooManyRequests past max.
func (r *RateLimiter) Allow(ctx context.Context, key string, max int, window time.Duration) error {
	if max <= 0 {
		return nil
	}

	ctxCache, cancel := context.WithTimeout(ctx, r.redisTimeout)
	defer cancel()

	acquired, err := r.cache.SetNX(ctxCache, key, 1, window)
	if err != nil {
		return pkgerrors.Wrapf(err, pkgerrors.CacheError, "rate limit check failed")
	}
	count := int64(1)
	if !acquired {
		count, err = r.cache.Incr(ctxCache, key)
		if err != nil {
			return pkgerrors.Wrapf(err, pkgerrors.CacheError, "rate limit check failed")
		}
		// a key that lost its expiry would otherwise block forever
		if ttl, ttlErr := r.cache.TTL(ctxCache, key); ttlErr == nil && ttl < 0 {
			_ = r.cache.Expire(ctxCache, key, window)
		}
	}
	if count > int64(max) {
		return pkgerrors.New(pkgerrors.SubmitTooFrequently).WithDetail("limit", max)
	}
	return nil
}

// RateLimitPolicy limits one route per caller.
type RateLimitPolicy struct {
	Window  time.Duration
	UserMax int
	IPMax   int
}

type limitKey struct {
	key string
	max int
}

// RateLimitMiddleware applies policy to routeKey. Limiter failures let the
// request through so a Redis outage does not stop judging.
func RateLimitMiddleware(limiter *RateLimiter, routeKey string, policy RateLimitPolicy) gin.HandlerFunc {
	return func(c *gin.Context) {
		if limiter == nil {
			c.Next()
			return
		}
		window := policy.Window
		if window <= 0 {
			window = time.Minute
		}

		keys := make([]limitKey, 0, 2)
		if policy.IPMax > 0 {
			keys = append(keys, limitKey{fmt.Sprintf("judge:rate:ip:%s:%s", c.ClientIP(), routeKey), policy.IPMax})
		}
		if userID, ok := UserID(c); ok && policy.UserMax > 0 {
			keys = append(keys, limitKey{fmt.Sprintf("judge:rate:user:%d:%s", userID, routeKey), policy.UserMax})
		}

		for _, item := range keys {
			err := limiter.Allow(c.Request.Context(), item.key, item.max, window)
			if err == nil {
				continue
			}
			if pkgerrors.Is(err, pkgerrors.CacheError) {
				break
			}
			response.AbortWithError(c, err)
			return
		}
		c.Next()
	}
}
