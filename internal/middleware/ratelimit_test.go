package middleware

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
)

func TestRateLimitMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.GET("/limited", RateLimitMiddleware(1, 2), func(ctx *gin.Context) {
		ctx.Status(http.StatusOK)
	})

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/limited", nil)
		r.ServeHTTP(w, req)
		codes = append(codes, w.Code)
	}

	if codes[0] != http.StatusOK || codes[1] != http.StatusOK {
		t.Fatalf("requests within burst should pass, got %v", codes)
	}
	if codes[2] != http.StatusTooManyRequests {
		t.Fatalf("request beyond burst should be limited, got %v", codes)
	}
}

func TestClientLimitersEvictIdleEntries(t *testing.T) {
	limiters := newClientLimiters(1, 1)

	start := time.Now()
	for i := 0; i < maxTrackedClients; i++ {
		limiters.get(fmt.Sprintf("10.0.%d.%d", i/256, i%256), start)
	}

	if len(limiters.entries) != maxTrackedClients {
		t.Fatalf("expected %d tracked clients, got %d", maxTrackedClients, len(limiters.entries))
	}

	// All existing entries are now idle past the TTL; admitting a new client
	// sweeps them out.
	limiters.get("192.168.0.1", start.Add(limiterIdleTTL+time.Minute))

	if len(limiters.entries) != 1 {
		t.Fatalf("expected idle entries to be evicted, got %d", len(limiters.entries))
	}
	if _, exists := limiters.entries["192.168.0.1"]; !exists {
		t.Fatal("new client should be tracked after eviction")
	}
}

func TestClientLimitersEvictOldestWhenNoneIdle(t *testing.T) {
	limiters := newClientLimiters(1, 1)

	// Spacing below the idle TTL so the sweep finds nothing to remove.
	start := time.Now()
	for i := 0; i < maxTrackedClients; i++ {
		limiters.get(fmt.Sprintf("10.0.%d.%d", i/256, i%256), start.Add(time.Duration(i)*time.Millisecond))
	}

	limiters.get("192.168.0.1", start.Add(time.Duration(maxTrackedClients)*time.Millisecond))

	if len(limiters.entries) != maxTrackedClients {
		t.Fatalf("map should stay bounded at %d, got %d", maxTrackedClients, len(limiters.entries))
	}
	if _, exists := limiters.entries["10.0.0.0"]; exists {
		t.Fatal("least recently seen client should have been evicted")
	}
	if _, exists := limiters.entries["192.168.0.1"]; !exists {
		t.Fatal("new client should be tracked")
	}
}

func TestClientLimitersKeepBucketStateAcrossRequests(t *testing.T) {
	limiters := newClientLimiters(1, 1)

	now := time.Now()
	first := limiters.get("10.0.0.1", now)
	second := limiters.get("10.0.0.1", now)

	if first != second {
		t.Fatal("same client should reuse its limiter")
	}
}
