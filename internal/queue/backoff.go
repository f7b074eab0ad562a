package queue

import "time"

// Backoff computes the delay before retry attempt n (1-based): Initial doubled
// per prior attempt and capped at Max.
type Backoff struct {
	Initial time.Duration
	Max     time.Duration
}

// Delay returns the wait before the next attempt after attempts failures.
func (b Backoff) Delay(attempts int) time.Duration {
	if b.Initial <= 0 {
		return 0
	}
	delay := b.Initial
	for i := 1; i < attempts; i++ {
		delay *= 2
		if b.Max > 0 && delay >= b.Max {
			return b.Max
		}
	}
	if b.Max > 0 && delay > b.Max {
		return b.Max
	}
	return delay
}
