package disbursement

import "time"

// NextBackoff returns the delay before the next retry attempt: the base
// delay doubled per completed attempt, capped at max.
func NextBackoff(base, max time.Duration, retryCount int) time.Duration {
	if retryCount < 0 {
		retryCount = 0
	}
	delay := base
	for i := 0; i < retryCount; i++ {
		delay *= 2
		if delay >= max {
			return max
		}
	}
	if delay > max {
		return max
	}
	return delay
}
