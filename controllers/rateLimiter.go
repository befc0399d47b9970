package controllers

import (
	"sync"

	"golang.org/x/time/rate"
)

// Idle limiters are dropped once this many accounts are tracked.
const maxTrackedAccounts = 10000

// AccountRateLimiter throttles requests per account with a token bucket.
type AccountRateLimiter struct {
	mu       sync.Mutex
	limit    rate.Limit
	burst    int
	limiters map[string]*rate.Limiter
}

func NewAccountRateLimiter(perSecond float64, burst int) *AccountRateLimiter {
	return &AccountRateLimiter{
		limit:    rate.Limit(perSecond),
		burst:    burst,
		limiters: make(map[string]*rate.Limiter),
	}
}

// Allow reports whether the account may make another request now.
func (l *AccountRateLimiter) Allow(accountID string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	lim, ok := l.limiters[accountID]
	if !ok {
		if len(l.limiters) >= maxTrackedAccounts {
			l.prune()
		}
		lim = rate.NewLimiter(l.limit, l.burst)
		l.limiters[accountID] = lim
	}
	return lim.Allow()
}

// prune forgets accounts whose bucket has refilled; they would start full
// anyway.
func (l *AccountRateLimiter) prune() {
	for id, lim := range l.limiters {
		if lim.Tokens() >= float64(l.burst) {
			delete(l.limiters, id)
		}
	}
}
