package liveclient

import "time"

// BackoffPolicy computes capped exponential reconnect delays
type BackoffPolicy struct {
	Initial time.Duration
	Max     time.Duration
}

// Delay returns the wait before the given attempt (1-based). The delay
// doubles per attempt and never exceeds Max.
func (b BackoffPolicy) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}

	delay := b.Initial
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= b.Max {
			return b.Max
		}
	}
	if delay > b.Max {
		return b.Max
	}
	return delay
}
