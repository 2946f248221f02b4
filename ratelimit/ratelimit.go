package ratelimit

import (
	"sync"
	"time"
)

/* Limiter counts requests per client within a trailing window.
 * Per-client state is a slice of request times pruned on every call, so
 * each critical section stays proportional to the per-client limit, not
 * to total traffic. Sweep evicts clients idle for a full window.
 */
type Limiter struct {
	mu          sync.Mutex
	clients     map[string]*window
	maxRequests int
	windowSize  time.Duration
	now         func() time.Time
}

type window struct {
	requests []time.Time
	lastSeen time.Time
}

// NewLimiter creates a sliding-window limiter allowing maxRequests per
// windowSize per client key.
func NewLimiter(maxRequests int, windowSize time.Duration) *Limiter {
	return &Limiter{
		clients:     make(map[string]*window),
		maxRequests: maxRequests,
		windowSize:  windowSize,
		now:         time.Now,
	}
}

// WithNow overrides the clock, for tests
func (l *Limiter) WithNow(now func() time.Time) *Limiter {
	l.now = now
	return l
}

// Allow records a request for the client and reports whether it is within
// the limit. When rejected, retryAfter is the wait until the oldest
// in-window request expires.
func (l *Limiter) Allow(client string) (allowed bool, retryAfter time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	cutoff := now.Add(-l.windowSize)

	w, ok := l.clients[client]
	if !ok {
		w = &window{}
		l.clients[client] = w
	}
	w.lastSeen = now

	// Drop requests that slid out of the window
	kept := w.requests[:0]
	for _, ts := range w.requests {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	w.requests = kept

	if len(w.requests) >= l.maxRequests {
		oldest := w.requests[0]
		return false, oldest.Add(l.windowSize).Sub(now)
	}

	w.requests = append(w.requests, now)
	return true, 0
}

// Sweep evicts clients that have been idle for at least one full window.
// Returns the number of clients removed.
func (l *Limiter) Sweep() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := l.now().Add(-l.windowSize)
	removed := 0
	for client, w := range l.clients {
		if w.lastSeen.Before(cutoff) {
			delete(l.clients, client)
			removed++
		}
	}
	return removed
}

// Len returns the number of tracked clients
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.clients)
}
