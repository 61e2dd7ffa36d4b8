package signal

import (
	"sync"

	"golang.org/x/time/rate"

	"github.com/dkeye/Call/internal/domain"
)

// MemberRateLimiter keeps one token bucket per member, shared by all of
// that member's connections.
type MemberRateLimiter struct {
	mu       sync.Mutex
	limiters map[domain.MemberID]*rate.Limiter
	limit    rate.Limit
	burst    int
}

// NewMemberRateLimiter allows limit frames per second with the given burst.
// A non-positive limit disables limiting.
func NewMemberRateLimiter(limit float64, burst int) *MemberRateLimiter {
	l := rate.Limit(limit)
	if limit <= 0 {
		l = rate.Inf
	}
	if burst <= 0 {
		burst = 1
	}
	return &MemberRateLimiter{
		limiters: make(map[domain.MemberID]*rate.Limiter),
		limit:    l,
		burst:    burst,
	}
}

func (rl *MemberRateLimiter) Allow(id domain.MemberID) bool {
	rl.mu.Lock()
	lim, ok := rl.limiters[id]
	if !ok {
		lim = rate.NewLimiter(rl.limit, rl.burst)
		rl.limiters[id] = lim
	}
	rl.mu.Unlock()
	return lim.Allow()
}

// Forget drops the bucket once a member has no connection left.
func (rl *MemberRateLimiter) Forget(id domain.MemberID) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	delete(rl.limiters, id)
}
