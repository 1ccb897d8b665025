package channel

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	defaultBurst    = 5
	limiterIdleTTL  = 10 * time.Minute
	limiterSweepGap = time.Minute
)

// RateLimiter applies a token bucket per key (conversation or client address).
// A limiter built with perMinute <= 0 allows everything.
type RateLimiter struct {
	limit rate.Limit
	burst int

	mu        sync.Mutex
	entries   map[string]*limiterEntry
	lastSweep time.Time
	now       func() time.Time
}

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func NewRateLimiter(perMinute, burst int) *RateLimiter {
	if burst <= 0 {
		burst = defaultBurst
	}
	var limit rate.Limit
	if perMinute > 0 {
		limit = rate.Limit(float64(perMinute) / 60.0)
	}
	return &RateLimiter{
		limit:   limit,
		burst:   burst,
		entries: make(map[string]*limiterEntry),
		now:     time.Now,
	}
}

func (rl *RateLimiter) Enabled() bool {
	return rl != nil && rl.limit > 0
}

// Allow reports whether one more request for key fits in its bucket.
func (rl *RateLimiter) Allow(key string) bool {
	if !rl.Enabled() {
		return true
	}
	now := rl.now()

	rl.mu.Lock()
	defer rl.mu.Unlock()

	if now.Sub(rl.lastSweep) > limiterSweepGap {
		rl.sweep(now)
	}
	e, ok := rl.entries[key]
	if !ok {
		e = &limiterEntry{limiter: rate.NewLimiter(rl.limit, rl.burst)}
		rl.entries[key] = e
	}
	e.lastSeen = now
	return e.limiter.AllowN(now, 1)
}

// sweep drops idle buckets; callers hold rl.mu.
func (rl *RateLimiter) sweep(now time.Time) {
	for k, e := range rl.entries {
		if now.Sub(e.lastSeen) > limiterIdleTTL {
			delete(rl.entries, k)
		}
	}
	rl.lastSweep = now
}
