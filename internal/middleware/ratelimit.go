package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// RateLimiter throttles requests per client IP using a token bucket per
// visitor, matching against a single configured rate/burst (the API has
// one endpoint worth limiting: run submission).
type RateLimiter struct {
	visitors map[string]*visitor
	mu       sync.Mutex
	logger   zerolog.Logger

	limit rate.Limit
	burst int
}

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewRateLimiter builds a limiter allowing requestsPerSecond sustained
// throughput with the given burst, per client IP, and starts a background
// goroutine that evicts idle visitors.
func NewRateLimiter(requestsPerSecond float64, burst int, logger zerolog.Logger) *RateLimiter {
	rl := &RateLimiter{
		visitors: make(map[string]*visitor),
		logger:   logger.With().Str("component", "ratelimit").Logger(),
		limit:    rate.Limit(requestsPerSecond),
		burst:    burst,
	}
	go rl.cleanupVisitors()
	return rl
}

// Limit wraps an http.Handler, rejecting requests over the configured rate
// with 429.
func (rl *RateLimiter) Limit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		clientID := clientIdentifier(r)
		if !rl.allow(clientID) {
			rl.logger.Warn().Str("client", clientID).Str("path", r.URL.Path).Msg("rate limit exceeded")
			w.Header().Set("Retry-After", "1")
			http.Error(w, `{"error":"rate limit exceeded"}`, http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (rl *RateLimiter) allow(clientID string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	v, ok := rl.visitors[clientID]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(rl.limit, rl.burst)}
		rl.visitors[clientID] = v
	}
	v.lastSeen = time.Now()
	return v.limiter.Allow()
}

func clientIdentifier(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		return xff
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	return r.RemoteAddr
}

func (rl *RateLimiter) cleanupVisitors() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for range ticker.C {
		rl.mu.Lock()
		threshold := time.Now().Add(-3 * time.Minute)
		for id, v := range rl.visitors {
			if v.lastSeen.Before(threshold) {
				delete(rl.visitors, id)
			}
		}
		rl.mu.Unlock()
	}
}
