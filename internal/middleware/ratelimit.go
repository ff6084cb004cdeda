package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

const (
	// maxTrackedClients bounds the limiter map; above it, idle entries are
	// evicted before a new client is admitted.
	maxTrackedClients = 1024
	limiterIdleTTL    = 3 * time.Minute
)

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

type clientLimiters struct {
	mu      sync.Mutex
	rps     float64
	burst   int
	entries map[string]*clientLimiter
}

func newClientLimiters(rps float64, burst int) *clientLimiters {
	return &clientLimiters{
		rps:     rps,
		burst:   burst,
		entries: make(map[string]*clientLimiter),
	}
}

func (c *clientLimiters) get(ip string, now time.Time) *rate.Limiter {
	c.mu.Lock()
	defer c.mu.Unlock()

	if entry, exists := c.entries[ip]; exists {
		entry.lastSeen = now
		return entry.limiter
	}

	if len(c.entries) >= maxTrackedClients {
		c.evict(now)
	}

	entry := &clientLimiter{
		limiter:  rate.NewLimiter(rate.Limit(c.rps), c.burst),
		lastSeen: now,
	}
	c.entries[ip] = entry

	return entry.limiter
}

// evict drops entries idle longer than limiterIdleTTL; if none are idle it
// drops the least recently seen entry to make room.
func (c *clientLimiters) evict(now time.Time) {
	for ip, entry := range c.entries {
		if now.Sub(entry.lastSeen) > limiterIdleTTL {
			delete(c.entries, ip)
		}
	}

	if len(c.entries) < maxTrackedClients {
		return
	}

	var oldestIP string
	var oldest time.Time

	for ip, entry := range c.entries {
		if oldestIP == "" || entry.lastSeen.Before(oldest) {
			oldestIP = ip
			oldest = entry.lastSeen
		}
	}
	delete(c.entries, oldestIP)
}

// RateLimitMiddleware enforces a per-client token bucket, keyed by client IP.
func RateLimitMiddleware(rps float64, burst int) gin.HandlerFunc {
	limiters := newClientLimiters(rps, burst)

	return func(ctx *gin.Context) {
		if !limiters.get(ctx.ClientIP(), time.Now()).Allow() {
			ctx.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"message": "Too many requests"})
			return
		}

		ctx.Next()
	}
}
