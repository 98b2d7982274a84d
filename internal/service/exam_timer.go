package service

import "time"

// WarningThreshold is the remaining time at which the one-shot low-time
// warning fires.
const WarningThreshold = 5 * time.Minute

// ExamTimer is a countdown projection over a fixed start instant and
// duration. Remaining time is always recomputed from the wall clock, never
// decremented, so missed ticks (suspended tabs, reconnects) cannot skew it.
//
// The timer is a display/trigger aid only: double-firing the auto-submit is
// harmless because the submission path is idempotent, and the authoritative
// expiry lives server-side in the deadline sweep.
type ExamTimer struct {
	start    time.Time
	duration time.Duration
	warned   bool
	fired    bool
}

// NewExamTimer creates a timer anchored at start for the given duration.
func NewExamTimer(start time.Time, duration time.Duration) *ExamTimer {
	return &ExamTimer{start: start, duration: duration}
}

// Deadline returns the absolute expiry instant.
func (t *ExamTimer) Deadline() time.Time {
	return t.start.Add(t.duration)
}

// Remaining returns the time left at now, clamped at zero.
func (t *ExamTimer) Remaining(now time.Time) time.Duration {
	remaining := t.duration - now.Sub(t.start)
	if remaining < 0 {
		return 0
	}
	return remaining
}

// Expired reports whether the countdown has reached zero.
func (t *ExamTimer) Expired(now time.Time) bool {
	return t.Remaining(now) <= 0
}

// WarningDue reports true exactly once: the first call at which remaining
// time has crossed below WarningThreshold but the timer has not expired.
func (t *ExamTimer) WarningDue(now time.Time) bool {
	if t.warned {
		return false
	}
	remaining := t.Remaining(now)
	if remaining > 0 && remaining <= WarningThreshold {
		t.warned = true
		return true
	}
	return false
}

// AutoSubmitDue reports true exactly once: the first call at which the timer
// has expired. Subsequent calls return false so a re-render or reconnect
// cannot trigger a second submit from the same timer instance.
func (t *ExamTimer) AutoSubmitDue(now time.Time) bool {
	if t.fired {
		return false
	}
	if t.Expired(now) {
		t.fired = true
		return true
	}
	return false
}
