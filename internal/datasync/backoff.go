package datasync

import "time"

// BackoffConfig is a capped exponential backoff without attempt limit
type BackoffConfig struct {
	InitialDelay time.Duration
	MaxDelay     time.Duration
}

func DefaultBackoffConfig() BackoffConfig {
	return BackoffConfig{
		InitialDelay: 500 * time.Millisecond,
		MaxDelay:     30 * time.Second,
	}
}

// Delay returns initialDelay * 2^(attempt-1) capped at maxDelay, attempt starts at 1
func (b BackoffConfig) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	delay := b.InitialDelay
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= b.MaxDelay || delay <= 0 {
			return b.MaxDelay
		}
	}
	if delay > b.MaxDelay {
		delay = b.MaxDelay
	}
	return delay
}
