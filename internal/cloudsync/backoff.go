package cloudsync

import "time"

// backoffSchedule is the fixed ascending wait table indexed by attempt
// number. Attempts beyond the table length stay clamped to the last entry.
var backoffSchedule = []time.Duration{
	1 * time.Minute,
	5 * time.Minute,
	15 * time.Minute,
	1 * time.Hour,
	6 * time.Hour,
}

// Backoff returns the wait duration before the given retry attempt.
// Attempt numbers below 1 are floored to 1.
func Backoff(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	idx := attempt - 1
	if idx >= len(backoffSchedule) {
		idx = len(backoffSchedule) - 1
	}
	return backoffSchedule[idx]
}

// NextAttemptAt returns when the given retry attempt becomes due.
func NextAttemptAt(now time.Time, attempt int) time.Time {
	return now.Add(Backoff(attempt))
}
