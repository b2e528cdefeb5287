package otp

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const limiterIdleTTL = 10 * time.Minute

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// keyedLimiter rate limits per key (e-mail). Idle keys are pruned on access.
type keyedLimiter struct {
	mu        sync.Mutex
	visitors  map[string]*visitor
	r         rate.Limit
	b         int
	lastPrune time.Time
}

func newKeyedLimiter(every time.Duration, burst int) *keyedLimiter {
	r := rate.Inf
	if every > 0 {
		r = rate.Every(every)
	}
	if burst < 1 {
		burst = 1
	}
	return &keyedLimiter{visitors: make(map[string]*visitor), r: r, b: burst}
}

func (l *keyedLimiter) Allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	if now.Sub(l.lastPrune) > time.Minute {
		for k, v := range l.visitors {
			if now.Sub(v.lastSeen) > limiterIdleTTL {
				delete(l.visitors, k)
			}
		}
		l.lastPrune = now
	}

	v, ok := l.visitors[key]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(l.r, l.b)}
		l.visitors[key] = v
	}
	v.lastSeen = now
	return v.limiter.Allow()
}
