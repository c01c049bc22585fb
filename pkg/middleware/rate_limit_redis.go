package middleware

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/iub-eis/eis/frontend/go-dashboard/pkg/logger"
	"github.com/iub-eis/eis/frontend/go-dashboard/pkg/metrics"
	"github.com/redis/go-redis/v9"
)

// RedisRateLimitMiddleware provides a coarse fixed-window Redis-backed limiter
// shared by every shell process pointed at the same Redis. Keys are the same
// as RateLimitMiddleware's. Each window allows floor(rps*windowSeconds)+burst
// requests per key, and ipShare times that across usernames from one IP.
func RedisRateLimitMiddleware(client *redis.Client, rps float64, burst int, window time.Duration) gin.HandlerFunc {
	if client == nil {
		return RateLimitMiddleware(rps, burst)
	}
	windowSeconds := int(window.Seconds())
	if windowSeconds <= 0 {
		windowSeconds = 1
	}
	allowedPerWindow := int(rps*float64(windowSeconds)) + burst

	// count increments key's window counter and reports whether it is within limit.
	count := func(ctx context.Context, key string, limit int) (bool, error) {
		bucket := time.Now().Unix() / int64(windowSeconds)
		redisKey := fmt.Sprintf("eis:rl:%s:%d", key, bucket)
		cnt, err := client.Incr(ctx, redisKey).Result()
		if err != nil {
			return false, err
		}
		if cnt == 1 {
			_ = client.Expire(ctx, redisKey, time.Duration(windowSeconds+1)*time.Second).Err()
		}
		return int(cnt) <= limit, nil
	}

	return func(c *gin.Context) {
		ctx := c.Request.Context()
		user, ip := limitKeys(c)
		var ok bool
		var err error
		if user != "" {
			ok, err = count(ctx, user, allowedPerWindow)
			if err == nil && ok {
				ok, err = count(ctx, ip, allowedPerWindow*ipShare)
			}
		} else {
			ok, err = count(ctx, ip, allowedPerWindow)
		}
		if err != nil {
			logger.Errorf("rate limit: redis incr failed: %v", err)
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Rate limit check failed"})
			return
		}
		if !ok {
			c.Header("Retry-After", fmt.Sprintf("%d", windowSeconds))
			metrics.RateLimitRejected.WithLabelValues("redis").Inc()
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "Rate limit exceeded"})
			return
		}
		metrics.RateLimitAllowed.WithLabelValues("redis").Inc()
		c.Next()
	}
}
