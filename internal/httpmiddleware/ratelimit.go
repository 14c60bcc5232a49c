package httpmiddleware

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

// RateLimiter caps requests per IP per minute. With a Redis client
// it uses a shared fixed window (INCR + EXPIRE) so all instances count
// together; without one it falls back to an in-process window.
type RateLimiter struct {
	perMinute int
	client    *redis.Client

	mu    sync.Mutex
	local map[string]*window
}

type window struct {
	count int
	reset time.Time
}

// NewRateLimiter creates a limiter; client may be nil.
func NewRateLimiter(perMinute int, client *redis.Client) *RateLimiter {
	if perMinute <= 0 {
		perMinute = 60
	}
	return &RateLimiter{
		perMinute: perMinute,
		client:    client,
		local:     make(map[string]*window),
	}
}

// GinMiddleware returns a gin handler enforcing the limit.
func (l *RateLimiter) GinMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		ip := c.ClientIP()
		if ip == "" {
			ip = "unknown"
		}
		if !l.allow(c.Request.Context(), ip) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate limit"})
			return
		}
		c.Next()
	}
}

func (l *RateLimiter) allow(ctx context.Context, ip string) bool {
	if l.client != nil {
		key := fmt.Sprintf("ratelimit:%s:%s", ip, time.Now().Format("1504"))
		count, err := l.client.Incr(ctx, key).Result()
		if err == nil {
			if count == 1 {
				l.client.Expire(ctx, key, time.Minute)
			}
			return count <= int64(l.perMinute)
		}
		// Redis down: fall through to the local window rather than reject.
	}
	return l.allowLocal(ip)
}

func (l *RateLimiter) allowLocal(ip string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := time.Now()
	w, ok := l.local[ip]
	if !ok || now.After(w.reset) {
		l.local[ip] = &window{count: 1, reset: now.Add(time.Minute)}
		return true
	}
	w.count++
	return w.count <= l.perMinute
}
