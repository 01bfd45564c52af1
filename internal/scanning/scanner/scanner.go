package scanner

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/vietddude/feescan/internal/core/domain"
	"github.com/vietddude/feescan/internal/core/progress"
	"github.com/vietddude/feescan/internal/infra/storage"
	"github.com/vietddude/feescan/internal/scanning/metrics"
	"github.com/vietddude/feescan/internal/scanning/source"
)

// Config holds scanner configuration for one source.
type Config struct {
	SourceID            string
	FloorHeight         uint64
	BatchSize           uint64
	MaintenanceInterval time.Duration
	CatchUpPacing       time.Duration

	Source       source.Source
	Progress     progress.Manager
	Events       storage.FeeEventRepository
	FailedRanges storage.FailedRangeQueue // optional
}

// Result is the outcome of one scan cycle.
type Result struct {
	Scanned   int // decoded events seen in the range
	NewEvents int // rows newly created by the store
}

// Scanner drives scan cycles for exactly one source. The reentrancy
// guard is owned by this instance; multi-source operation runs one
// Scanner per source, never a shared flag.
type Scanner struct {
	cfg Config
	log *slog.Logger

	scanning atomic.Bool // reentrancy guard
	running  atomic.Bool
	stop     chan struct{}
	stopOnce sync.Once
}

// New creates a scanner for one source.
func New(cfg Config) *Scanner {
	return &Scanner{
		cfg:  cfg,
		log:  slog.Default().With("source", cfg.SourceID),
		stop: make(chan struct{}),
	}
}

// ScanOnce runs a single scan cycle. A call made while another cycle
// is in flight for this source returns a zero Result immediately
// without touching the upstream.
func (s *Scanner) ScanOnce(ctx context.Context) (Result, error) {
	if !s.scanning.CompareAndSwap(false, true) {
		s.log.Debug("Scan already in flight, skipping")
		return Result{}, nil
	}
	defer s.scanning.Store(false)

	return s.scanCycle(ctx)
}

func (s *Scanner) scanCycle(ctx context.Context) (Result, error) {
	cycleID := uuid.NewString()

	p, err := s.cfg.Progress.LoadOrInit(ctx, s.cfg.SourceID, s.cfg.FloorHeight)
	if err != nil {
		return Result{}, err
	}

	head, err := s.cfg.Source.CurrentHeight(ctx)
	if err != nil {
		return Result{}, s.fail(ctx, cycleID, fmt.Errorf("head query failed: %w", err))
	}
	metrics.HeadHeight.WithLabelValues(s.cfg.SourceID).Set(float64(head))

	from := p.LastScannedHeight + 1
	to := from + s.cfg.BatchSize - 1
	if to > head {
		to = head
	}

	if from > head {
		if err := s.cfg.Progress.MarkIdle(ctx, s.cfg.SourceID, head); err != nil {
			return Result{}, err
		}
		s.log.Debug("Caught up with head, nothing to scan",
			"cycle_id", cycleID, "watermark", p.LastScannedHeight, "head", head)
		return Result{}, nil
	}

	if err := s.cfg.Progress.MarkScanning(ctx, s.cfg.SourceID); err != nil {
		return Result{}, err
	}

	s.log.Debug("Scanning range", "cycle_id", cycleID, "from", from, "to", to, "head", head)

	raws, err := s.cfg.Source.FetchRange(ctx, from, to)
	if err != nil {
		return Result{}, s.failRange(ctx, cycleID, from, to, err)
	}

	events, err := s.cfg.Source.Decode(ctx, raws)
	if err != nil {
		return Result{}, s.failRange(ctx, cycleID, from, to, err)
	}

	inserted, err := s.cfg.Events.InsertBatch(ctx, events)
	if err != nil {
		return Result{}, s.failRange(ctx, cycleID, from, to, err)
	}

	// The watermark moves only now, after the whole batch is stored.
	if err := s.cfg.Progress.Advance(ctx, s.cfg.SourceID, to, head); err != nil {
		return Result{}, s.failRange(ctx, cycleID, from, to, err)
	}

	metrics.ScanCyclesTotal.WithLabelValues(s.cfg.SourceID, "ok").Inc()
	metrics.LastScannedHeight.WithLabelValues(s.cfg.SourceID).Set(float64(to))
	metrics.EventsStoredTotal.WithLabelValues(s.cfg.SourceID).Add(float64(inserted))

	if len(events) > 0 {
		s.log.Info("Stored fee events",
			"cycle_id", cycleID, "from", from, "to", to,
			"decoded", len(events), "new", inserted)
	}

	return Result{Scanned: len(events), NewEvents: inserted}, nil
}

// fail records a cycle failure before any range was determined.
func (s *Scanner) fail(ctx context.Context, cycleID string, err error) error {
	metrics.ScanCyclesTotal.WithLabelValues(s.cfg.SourceID, "error").Inc()

	if merr := s.cfg.Progress.MarkError(ctx, s.cfg.SourceID, err.Error()); merr != nil {
		s.log.Error("Failed to record error status", "cycle_id", cycleID, "error", merr)
	}
	s.log.Error("Scan cycle failed", "cycle_id", cycleID, "error", err)
	return err
}

// failRange additionally queues the range for operator-driven rescans.
func (s *Scanner) failRange(ctx context.Context, cycleID string, from, to uint64, err error) error {
	if s.cfg.FailedRanges != nil {
		fr := domain.NewFailedRange(s.cfg.SourceID, from, to, err.Error())
		if qerr := s.cfg.FailedRanges.Push(ctx, fr); qerr != nil {
			s.log.Warn("Failed to queue range for rescan", "cycle_id", cycleID, "error", qerr)
		} else {
			metrics.FailedRangesQueued.WithLabelValues(s.cfg.SourceID).Inc()
		}
	}
	return s.fail(ctx, cycleID, err)
}
