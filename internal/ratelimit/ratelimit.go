package ratelimit

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// entry tracks the limiter for a single key.
type entry struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

// Limiter is a token-bucket rate limiter keyed by client identifier. Each
// key may spend requests tokens per window, refilled continuously.
type Limiter struct {
	mu       sync.Mutex
	entries  map[string]*entry
	requests int
	window   time.Duration
	now      func() time.Time // injectable clock for testing
}

// New creates a Limiter that allows requests per window for every key.
func New(requests int, window time.Duration) *Limiter {
	return &Limiter{
		entries:  make(map[string]*entry),
		requests: requests,
		window:   window,
		now:      time.Now,
	}
}

func (l *Limiter) perSecond() float64 {
	return float64(l.requests) / l.window.Seconds()
}

// get returns the entry for key, creating one if it doesn't exist.
// Must be called with l.mu held.
func (l *Limiter) get(key string, now time.Time) *entry {
	e, ok := l.entries[key]
	if !ok {
		e = &entry{lim: rate.NewLimiter(rate.Limit(l.perSecond()), l.requests)}
		l.entries[key] = e
	}
	e.lastSeen = now
	return e
}

// Allow reports whether a request for key is permitted and consumes one
// token when it is.
func (l *Limiter) Allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	return l.get(key, now).lim.AllowN(now, 1)
}

// Status returns the current state for key: the bucket size, the whole
// tokens left, and the time at which the bucket is full again.
func (l *Limiter) Status(key string) (limit int, remaining int, resetAt time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	tokens := l.get(key, now).lim.TokensAt(now)

	limit = l.requests
	remaining = int(tokens)
	if remaining < 0 {
		remaining = 0
	}

	deficit := float64(l.requests) - tokens
	if deficit <= 0 {
		resetAt = now
	} else {
		resetAt = now.Add(time.Duration(deficit / l.perSecond() * float64(time.Second)))
	}
	return
}

// Prune drops keys not seen within idle and returns how many were removed.
func (l *Limiter) Prune(idle time.Duration) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := l.now().Add(-idle)
	n := 0
	for k, e := range l.entries {
		if e.lastSeen.Before(cutoff) {
			delete(l.entries, k)
			n++
		}
	}
	return n
}

// Len reports the number of tracked keys.
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}
