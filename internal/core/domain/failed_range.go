package domain

import (
	"time"

	"github.com/google/uuid"
)

// FailedRange records a scan range whose cycle failed after retries
// were exhausted. It is queued for operator-driven reprocessing.
type FailedRange struct {
	ID         string
	SourceID   string
	FromHeight uint64
	ToHeight   uint64
	Reason     string
	Attempts   int
	FailedAt   time.Time
}

// NewFailedRange creates a FailedRange with a fresh ID.
func NewFailedRange(sourceID string, from, to uint64, reason string) *FailedRange {
	return &FailedRange{
		ID:         uuid.NewString(),
		SourceID:   sourceID,
		FromHeight: from,
		ToHeight:   to,
		Reason:     reason,
		FailedAt:   time.Now(),
	}
}
