package middleware

import (
	"net/http"
	"sync"
	"time"

	"clearlot/config"

	"github.com/gin-gonic/gin"
)

// RateLimiter counts requests per client in fixed windows. In-process only;
// limit and window come from ServerConfig so deployments behind a gateway
// can loosen or disable it.
type RateLimiter struct {
	mu      sync.Mutex
	buckets map[string]*rateBucket
	limit   int
	window  time.Duration
}

type rateBucket struct {
	start time.Time
	count int
}

func NewRateLimiter(cfg *config.ServerConfig) *RateLimiter {
	limit, window := cfg.RateLimit, cfg.RateWindow
	if limit <= 0 {
		limit = 120
	}
	if window <= 0 {
		window = time.Minute
	}
	return &RateLimiter{
		buckets: make(map[string]*rateBucket),
		limit:   limit,
		window:  window,
	}
}

// Allow records one request for key and reports whether it fits the current
// window.
func (l *RateLimiter) Allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := time.Now()
	b := l.buckets[key]
	if b == nil || now.Sub(b.start) >= l.window {
		l.sweep(now)
		l.buckets[key] = &rateBucket{start: now, count: 1}
		return true
	}
	if b.count >= l.limit {
		return false
	}
	b.count++
	return true
}

// sweep drops lapsed buckets so the map does not keep one entry per client
// forever. Called under mu whenever a window rolls over.
func (l *RateLimiter) sweep(now time.Time) {
	for k, b := range l.buckets {
		if now.Sub(b.start) >= l.window {
			delete(l.buckets, k)
		}
	}
}

// RateLimit throttles by client IP; the authenticated identity is not
// available yet because the limiter runs ahead of AuthRequired.
func RateLimit(l *RateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !l.Allow(c.ClientIP()) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded"})
			return
		}
		c.Next()
	}
}
