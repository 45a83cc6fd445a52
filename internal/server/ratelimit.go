package server

import (
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"
)

// idleTTL is how long a host may stay silent before its bucket is dropped.
const idleTTL = 10 * time.Minute

type hostLimiter struct {
	limiter  *rate.Limiter
	lastSeen atomic.Int64 // unix nanoseconds
}

// Limiter provides per-host rate limiting using token bucket algorithm
type Limiter struct {
	mu        sync.RWMutex
	limiters  map[string]*hostLimiter
	lastSweep time.Time
	rps       float64
	burst     int
	idleTTL   time.Duration
	now       func() time.Time
}

// NewLimiter creates a limiter. A non-positive rps disables limiting.
func NewLimiter(rps float64, burst int) *Limiter {
	if burst <= 0 {
		burst = 1
	}
	return &Limiter{
		limiters:  make(map[string]*hostLimiter),
		lastSweep: time.Now(),
		rps:       rps,
		burst:     burst,
		idleTTL:   idleTTL,
		now:       time.Now,
	}
}

func (l *Limiter) getLimiter(host string) *rate.Limiter {
	now := l.now()

	l.mu.RLock()
	entry, exists := l.limiters[host]
	l.mu.RUnlock()
	if exists {
		entry.lastSeen.Store(now.UnixNano())
		return entry.limiter
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	// Double-check after acquiring write lock
	if entry, exists := l.limiters[host]; exists {
		entry.lastSeen.Store(now.UnixNano())
		return entry.limiter
	}
	if now.Sub(l.lastSweep) >= l.idleTTL {
		l.sweepLocked(now)
	}
	entry = &hostLimiter{limiter: rate.NewLimiter(rate.Limit(l.rps), l.burst)}
	entry.lastSeen.Store(now.UnixNano())
	l.limiters[host] = entry
	return entry.limiter
}

// sweepLocked drops hosts idle for longer than idleTTL. Caller holds mu.
func (l *Limiter) sweepLocked(now time.Time) {
	cutoff := now.Add(-l.idleTTL).UnixNano()
	for host, entry := range l.limiters {
		if entry.lastSeen.Load() < cutoff {
			delete(l.limiters, host)
		}
	}
	l.lastSweep = now
}

// Allow reports whether a request from host may proceed now.
func (l *Limiter) Allow(host string) bool {
	if l.rps <= 0 {
		return true
	}
	return l.getLimiter(host).Allow()
}

// Len returns the number of hosts currently tracked.
func (l *Limiter) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.limiters)
}
