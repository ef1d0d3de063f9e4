package httpapi

import (
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"cloudops.org/internal/apperr"
)

const rateWindow = 60 * time.Second

// RateLimiter enforces a per-client sliding window over the trailing minute.
type RateLimiter struct {
	mu      sync.Mutex
	limit   int
	clock   func() time.Time
	history map[string][]time.Time
}

// NewRateLimiter builds a limiter allowing limit requests per client per
// minute. A non-positive limit disables enforcement.
func NewRateLimiter(limit int) *RateLimiter {
	return &RateLimiter{
		limit:   limit,
		clock:   func() time.Time { return time.Now().UTC() },
		history: make(map[string][]time.Time),
	}
}

// WithClock overrides the limiter clock, used by tests.
func (l *RateLimiter) WithClock(clock func() time.Time) *RateLimiter {
	l.clock = clock
	return l
}

// Allow records one request for the client and reports whether it fits the
// window.
func (l *RateLimiter) Allow(client string) bool {
	if l.limit <= 0 {
		return true
	}
	now := l.clock()
	cutoff := now.Add(-rateWindow)

	l.mu.Lock()
	defer l.mu.Unlock()

	kept := l.history[client][:0]
	for _, ts := range l.history[client] {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	if len(kept) >= l.limit {
		l.history[client] = kept
		return false
	}
	l.history[client] = append(kept, now)
	return true
}

// Middleware applies the limiter keyed by client IP.
func (l *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := clientIP(r)
		if ip == "" {
			ip = "unknown"
		}
		if !l.Allow(ip) {
			writeError(w, r, apperr.RateLimited(l.limit, int(rateWindow.Seconds())))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// LoginThrottle is a token-bucket guard for the credential endpoints,
// tighter than the general limiter.
type LoginThrottle struct {
	mu        sync.Mutex
	perMinute int
	perSec    rate.Limit
	burst     int
	buckets   map[string]*rate.Limiter
}

// NewLoginThrottle builds a throttle admitting perMinute attempts with the
// given burst per client.
func NewLoginThrottle(perMinute, burst int) *LoginThrottle {
	if perMinute <= 0 {
		perMinute = 10
	}
	if burst <= 0 {
		burst = 3
	}
	return &LoginThrottle{
		perMinute: perMinute,
		perSec:    rate.Limit(float64(perMinute) / 60.0),
		burst:     burst,
		buckets:   make(map[string]*rate.Limiter),
	}
}

// Limit reports the configured attempts per minute.
func (t *LoginThrottle) Limit() int { return t.perMinute }

// Allow reports whether the client may attempt another login.
func (t *LoginThrottle) Allow(client string) bool {
	t.mu.Lock()
	lim, ok := t.buckets[client]
	if !ok {
		lim = rate.NewLimiter(t.perSec, t.burst)
		t.buckets[client] = lim
	}
	t.mu.Unlock()
	return lim.Allow()
}
