package rpc

import (
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimit bounds how often one caller may hit a route.
type RateLimit struct {
	RequestsPerMinute float64
	Burst             int
}

type rateEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter keeps one token bucket per authenticated caller. Idle buckets
// are swept on access after idleTTL.
type RateLimiter struct {
	limit    RateLimit
	mu       sync.Mutex
	visitors map[string]*rateEntry
	clockNow func() time.Time
	idleTTL  time.Duration
	swept    time.Time
}

func NewRateLimiter(limit RateLimit) *RateLimiter {
	return &RateLimiter{
		limit:    limit,
		visitors: make(map[string]*rateEntry),
		clockNow: time.Now,
		idleTTL:  10 * time.Minute,
	}
}

// Middleware rejects requests with 429 once the caller's bucket is empty.
// It must run after authentication.
func (r *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		if r == nil || r.limit.RequestsPerMinute <= 0 {
			next.ServeHTTP(w, req)
			return
		}
		caller, ok := callerFrom(req.Context())
		if !ok {
			writeError(w, req, http.StatusUnauthorized, "Unauthorized", "caller unknown")
			return
		}
		if !r.Allow(caller.Hex()) {
			writeError(w, req, http.StatusTooManyRequests, "RateLimited", http.StatusText(http.StatusTooManyRequests))
			return
		}
		next.ServeHTTP(w, req)
	})
}

// Allow consumes one token from id's bucket.
func (r *RateLimiter) Allow(id string) bool {
	now := r.clockNow()
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sweep(now)
	entry, ok := r.visitors[id]
	if !ok {
		perSecond := r.limit.RequestsPerMinute / 60.0
		burst := r.limit.Burst
		if burst <= 0 {
			burst = 1
		}
		entry = &rateEntry{limiter: rate.NewLimiter(rate.Limit(perSecond), burst)}
		r.visitors[id] = entry
	}
	entry.lastSeen = now
	return entry.limiter.AllowN(now, 1)
}

func (r *RateLimiter) sweep(now time.Time) {
	if now.Sub(r.swept) < r.idleTTL {
		return
	}
	r.swept = now
	for id, entry := range r.visitors {
		if now.Sub(entry.lastSeen) >= r.idleTTL {
			delete(r.visitors, id)
		}
	}
}
