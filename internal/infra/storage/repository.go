package storage

import (
	"context"
	"errors"

	"github.com/vietddude/feescan/internal/core/domain"
)

var (
	// ErrProgressNotFound is returned when no progress row exists yet
	ErrProgressNotFound = errors.New("scan progress not found")
)

// ProgressRepository persists per-source scan progress. One row per
// source, enforced by a uniqueness constraint on the source id.
type ProgressRepository interface {
	// Get retrieves the progress row for a source; ErrProgressNotFound
	// when it does not exist yet.
	Get(ctx context.Context, sourceID string) (*domain.ScanProgress, error)

	// Save upserts the progress row.
	Save(ctx context.Context, progress *domain.ScanProgress) error
}

// FeeEventRepository persists decoded fee events.
type FeeEventRepository interface {
	// InsertBatch inserts events absent by identity key
	// (source_id, tx_hash, log_index) and returns the count of rows
	// newly created. Existing rows are never touched.
	InsertBatch(ctx context.Context, events []*domain.FeeEvent) (int, error)

	// GetByRange retrieves stored events for a source in [from, to].
	GetByRange(ctx context.Context, sourceID string, from, to uint64) ([]*domain.FeeEvent, error)

	// Count returns the number of stored events for a source.
	Count(ctx context.Context, sourceID string) (int, error)
}

// FailedRangeQueue records scan ranges whose cycles failed after
// retries were exhausted, for operator-driven reprocessing.
type FailedRangeQueue interface {
	// Push queues a failed range.
	Push(ctx context.Context, fr *domain.FailedRange) error

	// Pop removes and returns the oldest failed range for a source;
	// found is false when the queue is empty.
	Pop(ctx context.Context, sourceID string) (fr *domain.FailedRange, found bool, err error)

	// Ranges lists queued ranges for a source.
	Ranges(ctx context.Context, sourceID string) ([]*domain.FailedRange, error)
}
