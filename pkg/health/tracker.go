// Package health implements the liveness and readiness surfaces: a
// sliding write-outcome window fed by the write coordinator, plus a
// reporter that folds breaker state and store bindings into the
// readiness verdict.
package health

import (
	"sync"
	"time"
)

// windowLength is the sliding window for the write error rate.
const windowLength = 60 * time.Second

type observation struct {
	at      time.Time
	success bool
}

// Tracker tallies write outcomes over a sliding window. It satisfies the
// coordinator's ResultObserver.
type Tracker struct {
	mu   sync.Mutex
	ring []observation

	// now is swappable for tests.
	now func() time.Time
}

// NewTracker creates an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{now: time.Now}
}

// Observe records one completed write.
func (t *Tracker) Observe(success bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.prune(t.now())
	t.ring = append(t.ring, observation{at: t.now(), success: success})
}

// Stats returns the success and error counts inside the current window.
func (t *Tracker) Stats() (successes, errors int) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.prune(t.now())
	for _, o := range t.ring {
		if o.success {
			successes++
		} else {
			errors++
		}
	}
	return successes, errors
}

// ErrorRate returns errors/(successes+errors) in the window, 0 when the
// window is empty.
func (t *Tracker) ErrorRate() float64 {
	successes, errors := t.Stats()
	total := successes + errors
	if total == 0 {
		return 0
	}
	return float64(errors) / float64(total)
}

// prune drops observations older than the window. Caller holds the lock.
func (t *Tracker) prune(now time.Time) {
	cutoff := now.Add(-windowLength)
	i := 0
	for i < len(t.ring) && t.ring[i].at.Before(cutoff) {
		i++
	}
	if i > 0 {
		t.ring = append(t.ring[:0], t.ring[i:]...)
	}
}
