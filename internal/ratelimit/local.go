package ratelimit

import (
	"sync"
	"time"
)

// LocalLimiter keeps per-actor admission timestamps in process memory.
type LocalLimiter struct {
	mu     sync.Mutex
	limit  int
	window time.Duration
	actors map[string][]time.Time

	// now is replaceable for tests
	now func() time.Time
}

// NewLocal creates a local limiter admitting at most limit requests per actor
// within any trailing window.
func NewLocal(limit int, window time.Duration) *LocalLimiter {
	return &LocalLimiter{
		limit:  limit,
		window: window,
		actors: make(map[string][]time.Time),
		now:    time.Now,
	}
}

// Admit reports whether the actor may proceed and records the admission.
func (l *LocalLimiter) Admit(actorID string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	windowStart := now.Add(-l.window)

	recent := pruneBefore(l.actors[actorID], windowStart)
	if len(recent) >= l.limit {
		l.actors[actorID] = recent
		return false
	}

	l.actors[actorID] = append(recent, now)
	return true
}

// Sweep removes actors whose newest timestamp is older than twice the window.
func (l *LocalLimiter) Sweep() {
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := l.now().Add(-2 * l.window)
	for actor, timestamps := range l.actors {
		kept := pruneBefore(timestamps, cutoff)
		if len(kept) == 0 {
			delete(l.actors, actor)
		} else {
			l.actors[actor] = kept
		}
	}
}

// ActorCount returns the number of tracked actors.
func (l *LocalLimiter) ActorCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.actors)
}

func pruneBefore(timestamps []time.Time, cutoff time.Time) []time.Time {
	kept := timestamps[:0]
	for _, t := range timestamps {
		if !t.Before(cutoff) {
			kept = append(kept, t)
		}
	}
	return kept
}

var _ Limiter = (*LocalLimiter)(nil)
