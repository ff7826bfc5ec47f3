package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"
)

// RateLimit 返回一个基于客户端 IP 的固定窗口限流中间件。
// keyPrefix 与其他 Redis key 共用前缀，例如 "rooms:"。
func RateLimit(redisClient *redis.Client, keyPrefix string, maxRequests int, window time.Duration) gin.HandlerFunc {
	if redisClient == nil {
		panic("Redis client cannot be nil for RateLimit middleware")
	}
	if maxRequests <= 0 {
		panic("maxRequests must be positive for RateLimit middleware")
	}
	if window <= 0 {
		panic("window duration must be positive for RateLimit middleware")
	}

	return func(c *gin.Context) {
		ctx := c.Request.Context()
		key := keyPrefix + "ratelimit:" + c.ClientIP()

		pipe := redisClient.Pipeline()
		incrCmd := pipe.Incr(ctx, key)
		pipe.Expire(ctx, key, window)
		if _, err := pipe.Exec(ctx); err != nil {
			// Redis 不可用时放行
			logrus.WithError(err).Error("RateLimit: Redis Pipeline failed")
			c.Next()
			return
		}

		count := incrCmd.Val()
		c.Header("X-RateLimit-Limit", strconv.Itoa(maxRequests))
		if count > int64(maxRequests) {
			c.Header("X-RateLimit-Remaining", "0")
			c.JSON(http.StatusTooManyRequests, gin.H{"error": "Too many requests", "code": "RATE_LIMITED"})
			c.Abort()
			return
		}
		c.Header("X-RateLimit-Remaining", strconv.FormatInt(int64(maxRequests)-count, 10))
		c.Next()
	}
}
