// Rate limiter for the simulate endpoint, which runs a full simulation per
// request. One token bucket per client IP.
package api

import (
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimiter holds a token bucket per IP.
type RateLimiter struct {
	mu       sync.Mutex
	limiters map[string]*visitor
	limit    rate.Limit
	burst    int
	window   time.Duration
}

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewRateLimiter creates a rate limiter allowing maxRate requests per window,
// refilled evenly across the window.
func NewRateLimiter(maxRate int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		limiters: make(map[string]*visitor),
		limit:    rate.Limit(float64(maxRate) / window.Seconds()),
		burst:    maxRate,
		window:   window,
	}
}

func (rl *RateLimiter) get(ip string, now time.Time) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	v, ok := rl.limiters[ip]
	if !ok {
		rl.cleanupLocked(now)
		v = &visitor{limiter: rate.NewLimiter(rl.limit, rl.burst)}
		rl.limiters[ip] = v
	}
	v.lastSeen = now
	return v.limiter
}

// Allow reports whether the given IP may make a request now.
func (rl *RateLimiter) Allow(ip string) bool {
	now := time.Now()
	return rl.get(ip, now).AllowN(now, 1)
}

// RetryAfter returns how many seconds until the IP gets its next token.
func (rl *RateLimiter) RetryAfter(ip string) int {
	now := time.Now()
	lim := rl.get(ip, now)
	r := lim.ReserveN(now, 1)
	if !r.OK() {
		return int(rl.window.Seconds())
	}
	delay := r.DelayFrom(now)
	r.CancelAt(now)
	return int(math.Ceil(delay.Seconds()))
}

// cleanupLocked drops IPs idle for two windows. Caller holds mu.
func (rl *RateLimiter) cleanupLocked(now time.Time) {
	for ip, v := range rl.limiters {
		if now.Sub(v.lastSeen) > 2*rl.window {
			delete(rl.limiters, ip)
		}
	}
}

// clientIP returns the first X-Forwarded-For address, or the remote address
// without its port.
func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// RateLimitMiddleware wraps a handler with rate limiting. Returns 429 if exceeded.
func RateLimitMiddleware(rl *RateLimiter, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ip := clientIP(r)
		if !rl.Allow(ip) {
			w.Header().Set("Retry-After", strconv.Itoa(max(1, rl.RetryAfter(ip))))
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}
		next(w, r)
	}
}
