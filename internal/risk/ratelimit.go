package risk

import "time"

// RateLimiter bounds accepted proposals to max per rolling window. It keeps
// the timestamps of accepted proposals so the window survives process
// restarts via EngineState (a token bucket could not be restored that way).
// Bookkeeping is O(window size).
type RateLimiter struct {
	max      int
	window   time.Duration
	accepted []time.Time // ordered oldest first
}

// NewRateLimiter creates a limiter allowing max accepts per rolling window.
func NewRateLimiter(max int, window time.Duration) *RateLimiter {
	return &RateLimiter{max: max, window: window}
}

// Allow reports whether a proposal at now fits the window, recording it when
// accepted. A false return means the proposal is deferred, not dropped: the
// engine retries it on a later cycle.
func (rl *RateLimiter) Allow(now time.Time) bool {
	rl.prune(now)
	if len(rl.accepted) >= rl.max {
		return false
	}
	rl.accepted = append(rl.accepted, now)
	return true
}

// InWindow returns how many accepts are currently inside the window.
func (rl *RateLimiter) InWindow(now time.Time) int {
	rl.prune(now)
	return len(rl.accepted)
}

// Snapshot returns a copy of the accepted timestamps for persistence.
func (rl *RateLimiter) Snapshot() []time.Time {
	out := make([]time.Time, len(rl.accepted))
	copy(out, rl.accepted)
	return out
}

// Restore replaces the window with previously persisted timestamps.
func (rl *RateLimiter) Restore(ts []time.Time) {
	rl.accepted = make([]time.Time, len(ts))
	copy(rl.accepted, ts)
}

// prune drops timestamps that have left the rolling window.
func (rl *RateLimiter) prune(now time.Time) {
	cutoff := now.Add(-rl.window)
	i := 0
	for i < len(rl.accepted) && !rl.accepted[i].After(cutoff) {
		i++
	}
	if i > 0 {
		rl.accepted = append(rl.accepted[:0], rl.accepted[i:]...)
	}
}
