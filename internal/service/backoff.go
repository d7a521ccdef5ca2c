package service

import "time"

// backoffTiers is the fixed retry delay table. The delay for attempt N is
// tier N-1; counts beyond the table stay clamped at the last tier.
var backoffTiers = []time.Duration{
	5 * time.Minute,
	15 * time.Minute,
	30 * time.Minute,
	60 * time.Minute,
	120 * time.Minute,
}

func backoffDelay(retryCount int) time.Duration {
	if retryCount < 1 {
		retryCount = 1
	}

	idx := retryCount - 1
	if idx >= len(backoffTiers) {
		idx = len(backoffTiers) - 1
	}

	return backoffTiers[idx]
}
