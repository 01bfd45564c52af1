package domain

import "time"

// RateLimitInfo is the classification of an upstream failure.
// Transient, never persisted.
type RateLimitInfo struct {
	IsRateLimit bool
	RetryDelay  time.Duration
}
