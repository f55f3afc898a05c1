package ratelimit

import (
	"math"
	"net/http"
	"strconv"

	"callos/internal/auth"
	"callos/pkg/logger"

	"github.com/gin-gonic/gin"
)

// KeyFunc picks the bucket for a request.
type KeyFunc func(c *gin.Context) string

// ByUserOrIP buckets authenticated requests per user and the rest per client IP.
func ByUserOrIP(c *gin.Context) string {
	if uid, err := auth.UserID(c.Request.Context()); err == nil && uid != "" {
		return "user:" + uid
	}
	return "ip:" + c.ClientIP()
}

// Middleware rejects requests over the limit with 429 RATE_LIMITED. Store errors fail open.
func Middleware(l Limiter, key KeyFunc) gin.HandlerFunc {
	if key == nil {
		key = ByUserOrIP
	}
	return func(c *gin.Context) {
		d, err := l.Allow(c.Request.Context(), key(c))
		if err != nil {
			logger.FromGin(c).Warn("rate limiter unavailable", "err", err)
			c.Next()
			return
		}
		c.Header("X-RateLimit-Limit", strconv.Itoa(d.Limit))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))
		if !d.Allowed {
			c.Header("Retry-After", strconv.Itoa(int(math.Ceil(d.ResetIn.Seconds()))))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error": gin.H{"code": "RATE_LIMITED", "message": "too many requests"},
			})
			return
		}
		c.Next()
	}
}
