package middlewares

import (
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/Jorge523757/DIGITSOFT/config"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"
)

// RateLimiter counts requests per client IP in a fixed redis window. While
// redis is not connected it falls back to an in-process token bucket.
type RateLimiter struct {
	client func() *redis.Client
	limit  int64
	window time.Duration

	mu       sync.Mutex
	visitors map[string]*visitor
}

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func NewRateLimiter(limit int64, window time.Duration) *RateLimiter {
	return &RateLimiter{
		client:   config.GetRedisDB,
		limit:    limit,
		window:   window,
		visitors: make(map[string]*visitor),
	}
}

func (rl *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		key := "RateLimit:" + c.ClientIP()
		allowed, err := rl.allow(c, key)
		if err != nil {
			config.LogError(config.GetLogger(), "rateLimiter.go", "Middleware", "redis rate limit", key, err)
			allowed = rl.localLimiter(key).Allow()
		}
		if !allowed {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error": fmt.Sprintf("Rate limit exceeded. Try again in %d seconds", int(rl.window.Seconds())),
			})
			return
		}
		c.Next()
	}
}

func (rl *RateLimiter) allow(c *gin.Context, key string) (bool, error) {
	client := rl.client()
	if client == nil {
		return rl.localLimiter(key).Allow(), nil
	}
	ctx := c.Request.Context()
	count, err := client.Incr(ctx, key).Result()
	if err != nil {
		return false, err
	}
	if count == 1 {
		if err := client.Expire(ctx, key, rl.window).Err(); err != nil {
			return false, err
		}
	}
	return count <= rl.limit, nil
}

func (rl *RateLimiter) localLimiter(key string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	for k, v := range rl.visitors {
		if now.Sub(v.lastSeen) > 10*rl.window {
			delete(rl.visitors, k)
		}
	}
	v, ok := rl.visitors[key]
	if !ok {
		every := rl.window / time.Duration(max(rl.limit, 1))
		v = &visitor{limiter: rate.NewLimiter(rate.Every(every), int(max(rl.limit, 1)))}
		rl.visitors[key] = v
	}
	v.lastSeen = now
	return v.limiter
}
