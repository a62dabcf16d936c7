package idp

import (
	"sync"
	"time"
)

// lockout counts credential failures per identifier and trips after a
// threshold inside the window, surfacing as a rate-limited error.
type lockout struct {
	mu       sync.Mutex
	failures map[string][]time.Time
	limit    int
	window   time.Duration
}

func newLockout(limit int, window time.Duration) *lockout {
	return &lockout{
		failures: make(map[string][]time.Time),
		limit:    limit,
		window:   window,
	}
}

func (l *lockout) locked(identifier string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	cutoff := time.Now().Add(-l.window)
	recent := l.failures[identifier][:0]
	for _, t := range l.failures[identifier] {
		if t.After(cutoff) {
			recent = append(recent, t)
		}
	}
	l.failures[identifier] = recent
	return len(recent) >= l.limit
}

func (l *lockout) recordFailure(identifier string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.failures[identifier] = append(l.failures[identifier], time.Now())
}

func (l *lockout) clear(identifier string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.failures, identifier)
}
