package middleware

import (
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	sweepEvery = 5 * time.Minute
	idleAfter  = 10 * time.Minute
)

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter keeps one token bucket per client address. Buckets idle for
// longer than idleAfter are dropped by a background sweep.
type RateLimiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	r       rate.Limit
	burst   int
	now     func() time.Time

	stopOnce sync.Once
	stop     chan struct{}
}

// NewRateLimiter allows r requests per second per client, bursting to burst.
func NewRateLimiter(r rate.Limit, burst int) *RateLimiter {
	rl := &RateLimiter{
		buckets: make(map[string]*bucket),
		r:       r,
		burst:   burst,
		now:     time.Now,
		stop:    make(chan struct{}),
	}
	go rl.janitor()
	return rl
}

// Close stops the background sweep.
func (rl *RateLimiter) Close() {
	rl.stopOnce.Do(func() { close(rl.stop) })
}

func (rl *RateLimiter) allow(client string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	now := rl.now()
	b, ok := rl.buckets[client]
	if !ok {
		b = &bucket{limiter: rate.NewLimiter(rl.r, rl.burst)}
		rl.buckets[client] = b
	}
	b.lastSeen = now
	return b.limiter.AllowN(now, 1)
}

func (rl *RateLimiter) janitor() {
	t := time.NewTicker(sweepEvery)
	defer t.Stop()
	for {
		select {
		case <-rl.stop:
			return
		case <-t.C:
			rl.sweep()
		}
	}
}

func (rl *RateLimiter) sweep() {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	cutoff := rl.now().Add(-idleAfter)
	for client, b := range rl.buckets {
		if b.lastSeen.Before(cutoff) {
			delete(rl.buckets, client)
		}
	}
}

// Limit rejects a client with 429 once its bucket is empty.
func (rl *RateLimiter) Limit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !rl.allow(realIP(r)) {
			w.Header().Set("Retry-After", "60")
			writeJSONError(w, http.StatusTooManyRequests, "Demasiadas solicitudes, intente más tarde")
			return
		}
		next.ServeHTTP(w, r)
	})
}
