package signal

import (
	"sync"

	"github.com/dkeye/Interview/internal/domain"
	"golang.org/x/time/rate"
)

// ConnRateLimiter keeps one token bucket per connection.
type ConnRateLimiter struct {
	mu      sync.Mutex
	buckets map[domain.ConnID]*rate.Limiter
	limit   rate.Limit
	burst   int
}

// NewConnRateLimiter allows limit frames per second with the given burst.
// A non-positive limit disables limiting.
func NewConnRateLimiter(limit float64, burst int) *ConnRateLimiter {
	l := rate.Inf
	if limit > 0 {
		l = rate.Limit(limit)
	}
	if burst <= 0 {
		burst = 1
	}
	return &ConnRateLimiter{
		buckets: make(map[domain.ConnID]*rate.Limiter),
		limit:   l,
		burst:   burst,
	}
}

func (rl *ConnRateLimiter) Allow(id domain.ConnID) bool {
	rl.mu.Lock()
	b, ok := rl.buckets[id]
	if !ok {
		b = rate.NewLimiter(rl.limit, rl.burst)
		rl.buckets[id] = b
	}
	rl.mu.Unlock()
	return b.Allow()
}

func (rl *ConnRateLimiter) Forget(id domain.ConnID) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	delete(rl.buckets, id)
}
