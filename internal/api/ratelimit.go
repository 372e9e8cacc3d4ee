package api

import (
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"
)

// RateLimit describes a token bucket: Requests per Window with room for
// BurstSize extra tokens.
type RateLimit struct {
	Requests  int
	Window    time.Duration
	BurstSize int
}

// DefaultRateLimit allows 100 requests per minute with a small burst.
func DefaultRateLimit() RateLimit {
	return RateLimit{Requests: 100, Window: time.Minute, BurstSize: 10}
}

type clientBucket struct {
	tokens     float64
	lastRefill time.Time
}

// RateLimiter is a per-client token bucket limiter keyed by API key when
// present, falling back to the client IP.
type RateLimiter struct {
	mu      sync.Mutex
	clients map[string]*clientBucket
	limit   RateLimit
}

// NewRateLimiter creates a rate limiter with the given limit.
func NewRateLimiter(limit RateLimit) *RateLimiter {
	return &RateLimiter{
		clients: make(map[string]*clientBucket),
		limit:   limit,
	}
}

// Allow consumes one token for clientID, reporting whether the request may
// proceed and how many tokens remain.
func (rl *RateLimiter) Allow(clientID string) (allowed bool, remaining int) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	bucket, exists := rl.clients[clientID]
	if !exists {
		bucket = &clientBucket{
			tokens:     float64(rl.limit.Requests + rl.limit.BurstSize),
			lastRefill: now,
		}
		rl.clients[clientID] = bucket
	}

	// Refill proportionally to elapsed time, capped at requests+burst.
	elapsed := now.Sub(bucket.lastRefill)
	refill := elapsed.Seconds() * float64(rl.limit.Requests) / rl.limit.Window.Seconds()
	max := float64(rl.limit.Requests + rl.limit.BurstSize)
	bucket.tokens += refill
	if bucket.tokens > max {
		bucket.tokens = max
	}
	bucket.lastRefill = now

	if bucket.tokens < 1 {
		return false, 0
	}
	bucket.tokens--
	return true, int(bucket.tokens)
}

// Middleware enforces the rate limit and sets X-RateLimit response headers.
func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		clientID := getClientID(r)
		allowed, remaining := rl.Allow(clientID)

		w.Header().Set("X-RateLimit-Limit", fmt.Sprintf("%d", rl.limit.Requests))
		w.Header().Set("X-RateLimit-Remaining", fmt.Sprintf("%d", remaining))
		w.Header().Set("X-RateLimit-Window", rl.limit.Window.String())

		if !allowed {
			w.Header().Set("Retry-After", fmt.Sprintf("%.0f", rl.limit.Window.Seconds()))
			http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// CleanupExpiredClients drops buckets idle for longer than maxIdle. Intended
// to run periodically from the server's housekeeping goroutine.
func (rl *RateLimiter) CleanupExpiredClients(maxIdle time.Duration) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	cutoff := time.Now().Add(-maxIdle)
	for id, bucket := range rl.clients {
		if bucket.lastRefill.Before(cutoff) {
			delete(rl.clients, id)
		}
	}
}

func getClientID(r *http.Request) string {
	if key, ok := r.Context().Value(ctxKeyAPIKey).(string); ok && key != "" {
		return "key:" + key
	}
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		return "ip:" + strings.TrimSpace(strings.Split(fwd, ",")[0])
	}
	host := r.RemoteAddr
	if idx := strings.LastIndex(host, ":"); idx != -1 {
		host = host[:idx]
	}
	return "ip:" + host
}
