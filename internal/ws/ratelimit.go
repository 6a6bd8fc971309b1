package ws

import (
	"sync"
	"time"
)

// rateLimiter is a token bucket limiting how fast a single connection may
// submit events.
type rateLimiter struct {
	mu       sync.Mutex
	tokens   int
	burst    int
	refill   time.Duration
	lastFill time.Time
}

func newRateLimiter(burst int, refill time.Duration) *rateLimiter {
	return &rateLimiter{
		tokens:   burst,
		burst:    burst,
		refill:   refill,
		lastFill: time.Now(),
	}
}

func (r *rateLimiter) allow() bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	if r.refill > 0 {
		refilled := int(now.Sub(r.lastFill) / r.refill)
		if refilled > 0 {
			r.tokens += refilled
			if r.tokens > r.burst {
				r.tokens = r.burst
			}
			r.lastFill = r.lastFill.Add(time.Duration(refilled) * r.refill)
		}
	}

	if r.tokens <= 0 {
		return false
	}
	r.tokens--
	return true
}
