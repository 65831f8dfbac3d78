package game

import "time"

// timer arms at most one pending wake-up. Expiry is delivered as a command
// into the owning session's queue, so a signal racing a cancel is resolved by
// the queue's total order: the session compares the signal's generation
// against the timer's current one and discards stale signals.
type timer struct {
	gen     uint64
	pending *time.Timer
}

// arm schedules fire(gen) after d, cancelling any pending wake-up first.
func (t *timer) arm(d time.Duration, fire func(gen uint64)) {
	t.cancel()
	gen := t.gen
	t.pending = time.AfterFunc(d, func() { fire(gen) })
}

// cancel is idempotent. Any signal already in flight carries an older
// generation and will be ignored.
func (t *timer) cancel() {
	if t.pending != nil {
		t.pending.Stop()
		t.pending = nil
	}
	t.gen++
}

// live reports whether a signal with generation gen is still current.
func (t *timer) live(gen uint64) bool { return gen == t.gen }
