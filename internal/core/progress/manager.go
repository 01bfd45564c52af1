package progress

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/vietddude/feescan/internal/core/domain"
	"github.com/vietddude/feescan/internal/infra/storage"
)

var (
	// ErrWatermarkRegression is returned when an advance would move the
	// watermark backwards.
	ErrWatermarkRegression = errors.New("watermark regression")

	// ErrInvalidFloor is returned for a zero floor height. The initial
	// watermark is floor − 1, so floor 0 would wrap to MaxUint64 and
	// every later advance would read as a regression.
	ErrInvalidFloor = errors.New("floor height must be at least 1")
)

// Manager handles scan progress operations for the orchestrator. The
// orchestrator is the only mutator of a source's progress row.
type Manager interface {
	// Get retrieves the current progress for a source.
	Get(ctx context.Context, sourceID string) (*domain.ScanProgress, error)

	// LoadOrInit retrieves the progress row, creating it lazily at
	// floorHeight − 1 on the first cycle.
	LoadOrInit(ctx context.Context, sourceID string, floorHeight uint64) (*domain.ScanProgress, error)

	// MarkScanning transitions the source to the scanning status.
	MarkScanning(ctx context.Context, sourceID string) error

	// MarkIdle transitions to idle without advancing the watermark,
	// recording the observed head. Used when there is nothing to scan.
	MarkIdle(ctx context.Context, sourceID string, head uint64) error

	// Advance transitions to idle and moves the watermark to
	// lastScanned. Called only after the whole batch is durably stored.
	Advance(ctx context.Context, sourceID string, lastScanned, head uint64) error

	// MarkError records a cycle failure; the watermark is untouched.
	MarkError(ctx context.Context, sourceID string, message string) error
}

// DefaultManager implements Manager over a ProgressRepository.
type DefaultManager struct {
	repo storage.ProgressRepository
}

// NewManager creates a progress manager.
func NewManager(repo storage.ProgressRepository) *DefaultManager {
	return &DefaultManager{repo: repo}
}

// Get retrieves the current progress for a source.
func (m *DefaultManager) Get(ctx context.Context, sourceID string) (*domain.ScanProgress, error) {
	return m.repo.Get(ctx, sourceID)
}

// LoadOrInit retrieves the progress row, creating it lazily.
func (m *DefaultManager) LoadOrInit(
	ctx context.Context,
	sourceID string,
	floorHeight uint64,
) (*domain.ScanProgress, error) {
	if floorHeight == 0 {
		return nil, ErrInvalidFloor
	}

	p, err := m.repo.Get(ctx, sourceID)
	if err == nil {
		return p, nil
	}
	if !errors.Is(err, storage.ErrProgressNotFound) {
		return nil, fmt.Errorf("failed to load progress: %w", err)
	}

	p = &domain.ScanProgress{
		SourceID:          sourceID,
		LastScannedHeight: floorHeight - 1,
		Status:            domain.ScanStatusIdle,
		LastScanTime:      time.Now(),
	}
	if err := m.repo.Save(ctx, p); err != nil {
		return nil, fmt.Errorf("failed to create progress: %w", err)
	}
	return p, nil
}

// MarkScanning transitions the source to the scanning status.
func (m *DefaultManager) MarkScanning(ctx context.Context, sourceID string) error {
	return m.update(ctx, sourceID, func(p *domain.ScanProgress) error {
		p.Status = domain.ScanStatusScanning
		return nil
	})
}

// MarkIdle transitions to idle without advancing the watermark.
func (m *DefaultManager) MarkIdle(ctx context.Context, sourceID string, head uint64) error {
	return m.update(ctx, sourceID, func(p *domain.ScanProgress) error {
		p.Status = domain.ScanStatusIdle
		p.KnownHeadHeight = head
		p.LastError = ""
		return nil
	})
}

// Advance transitions to idle and moves the watermark forward.
func (m *DefaultManager) Advance(ctx context.Context, sourceID string, lastScanned, head uint64) error {
	return m.update(ctx, sourceID, func(p *domain.ScanProgress) error {
		if lastScanned < p.LastScannedHeight {
			return fmt.Errorf("%w: at %d, got %d", ErrWatermarkRegression, p.LastScannedHeight, lastScanned)
		}
		p.Status = domain.ScanStatusIdle
		p.LastScannedHeight = lastScanned
		p.KnownHeadHeight = head
		p.LastError = ""
		return nil
	})
}

// MarkError records a cycle failure.
func (m *DefaultManager) MarkError(ctx context.Context, sourceID string, message string) error {
	return m.update(ctx, sourceID, func(p *domain.ScanProgress) error {
		p.Status = domain.ScanStatusError
		p.LastError = message
		return nil
	})
}

func (m *DefaultManager) update(
	ctx context.Context,
	sourceID string,
	mutate func(*domain.ScanProgress) error,
) error {
	p, err := m.repo.Get(ctx, sourceID)
	if err != nil {
		return fmt.Errorf("failed to load progress: %w", err)
	}

	if err := mutate(p); err != nil {
		return err
	}
	p.LastScanTime = time.Now()

	if err := m.repo.Save(ctx, p); err != nil {
		return fmt.Errorf("failed to save progress: %w", err)
	}
	return nil
}
