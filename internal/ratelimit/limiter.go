// Package ratelimit implements per-{route, client fingerprint} token-bucket
// admission control (§4.14). Each key's bucket holds maxRequests tokens and
// refills at maxRequests per window; it is not a strict sliding window, so a
// key can be admitted more than maxRequests times within one window as
// tokens refill. This is an edge
// concern bound at the HTTP boundary — the core pipeline never
// rate-limits itself.
package ratelimit

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// DefaultMaxRequests and DefaultWindow give the 120 req / 60s default.
const (
	DefaultMaxRequests = 120
	DefaultWindow      = 60 * time.Second
)

// ErrRateLimited is returned by Allow when a key has exhausted its budget.
var ErrRateLimited = rateLimitedError{}

type rateLimitedError struct{}

func (rateLimitedError) Error() string { return "rate limit exceeded" }

// Limiter tracks one golang.org/x/time/rate.Limiter per {route, client
// fingerprint} key, lazily created on first use.
type Limiter struct {
	mu          sync.Mutex
	limiters    map[string]*rate.Limiter
	maxRequests int
	window      time.Duration
}

// New constructs a Limiter with the given budget. maxRequests <= 0 or
// window <= 0 fall back to the package defaults.
func New(maxRequests int, window time.Duration) *Limiter {
	if maxRequests <= 0 {
		maxRequests = DefaultMaxRequests
	}
	if window <= 0 {
		window = DefaultWindow
	}
	return &Limiter{
		limiters:    make(map[string]*rate.Limiter),
		maxRequests: maxRequests,
		window:      window,
	}
}

func (l *Limiter) limiterFor(key string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	rl, ok := l.limiters[key]
	if !ok {
		ratePerSecond := float64(l.maxRequests) / l.window.Seconds()
		rl = rate.NewLimiter(rate.Limit(ratePerSecond), l.maxRequests)
		l.limiters[key] = rl
	}
	return rl
}

// Allow reports whether a request for (route, clientFingerprint) is within
// budget, consuming one token from its bucket if so.
func (l *Limiter) Allow(route, clientFingerprint string) bool {
	return l.limiterFor(route + "|" + clientFingerprint).Allow()
}
