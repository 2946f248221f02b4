package auth

import (
	"sync"
	"time"
)

/* Lockout tracks consecutive authentication failures per identity
 * (key or client address) and blocks an identity for a cooldown window
 * after too many in a row. A success clears the counter.
 */
type Lockout struct {
	mu          sync.Mutex
	entries     map[string]*lockoutEntry
	maxFailures int
	cooldown    time.Duration
	now         func() time.Time
}

type lockoutEntry struct {
	failures     int
	blockedUntil time.Time
	lastSeen     time.Time
}

// NewLockout creates a tracker blocking after maxFailures consecutive
// failures for the given cooldown.
func NewLockout(maxFailures int, cooldown time.Duration) *Lockout {
	return &Lockout{
		entries:     make(map[string]*lockoutEntry),
		maxFailures: maxFailures,
		cooldown:    cooldown,
		now:         time.Now,
	}
}

// WithNow overrides the clock, for tests
func (l *Lockout) WithNow(now func() time.Time) *Lockout {
	l.now = now
	return l
}

// Blocked reports whether the identity is currently locked out
func (l *Lockout) Blocked(identity string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	entry, ok := l.entries[identity]
	if !ok {
		return false
	}
	return l.now().Before(entry.blockedUntil)
}

// RecordFailure counts a failed attempt, starting a cooldown block once
// the threshold is reached. Returns true when the identity is now blocked.
func (l *Lockout) RecordFailure(identity string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	entry, ok := l.entries[identity]
	if !ok {
		entry = &lockoutEntry{}
		l.entries[identity] = entry
	}
	// An expired block starts a fresh count: re-blocking again takes a
	// full run of consecutive failures, not just one more.
	if !entry.blockedUntil.IsZero() && !now.Before(entry.blockedUntil) {
		entry.failures = 0
		entry.blockedUntil = time.Time{}
	}
	entry.lastSeen = now
	entry.failures++
	if entry.failures >= l.maxFailures {
		entry.blockedUntil = now.Add(l.cooldown)
		return true
	}
	return false
}

// RecordSuccess clears the failure counter for the identity
func (l *Lockout) RecordSuccess(identity string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.entries, identity)
}

// Sweep evicts entries whose block expired and that have been idle for a
// full cooldown, bounding memory. Returns the number removed.
func (l *Lockout) Sweep() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := l.now().Add(-l.cooldown)
	removed := 0
	for identity, entry := range l.entries {
		if entry.lastSeen.Before(cutoff) && !l.now().Before(entry.blockedUntil) {
			delete(l.entries, identity)
			removed++
		}
	}
	return removed
}
