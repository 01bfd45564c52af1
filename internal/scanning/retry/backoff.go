package retry

import "time"

// Strategy defines bounded retry behavior. It is static configuration
// and never mutated at runtime.
type Strategy struct {
	MaxRetries  int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	Exponential bool
}

// DefaultStrategy provides sensible defaults.
var DefaultStrategy = Strategy{
	MaxRetries:  5,
	BaseDelay:   1 * time.Second,
	MaxDelay:    60 * time.Second,
	Exponential: true,
}

// Delay returns the backoff delay for a zero-indexed attempt.
func (s Strategy) Delay(attempt int) time.Duration {
	if !s.Exponential {
		return s.BaseDelay
	}

	delay := s.BaseDelay << uint(attempt)
	if delay > s.MaxDelay || delay <= 0 {
		return s.MaxDelay
	}
	return delay
}

// ShouldRetry reports whether another attempt is allowed after the
// given zero-indexed attempt failed.
func (s Strategy) ShouldRetry(attempt int) bool {
	return attempt < s.MaxRetries
}
