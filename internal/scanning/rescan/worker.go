package rescan

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/vietddude/feescan/internal/infra/storage"
	"github.com/vietddude/feescan/internal/scanning/source"
)

// WorkerConfig holds configuration for the rescan worker.
type WorkerConfig struct {
	EmptySleep  time.Duration // Sleep when queue empty (default: 10s)
	ScanTimeout time.Duration // Max time per range (default: 5m)
	MaxAttempts int           // Drop a range after this many attempts (default: 5)
}

// DefaultConfig returns default worker configuration.
func DefaultConfig() WorkerConfig {
	return WorkerConfig{
		EmptySleep:  10 * time.Second,
		ScanTimeout: 5 * time.Minute,
		MaxAttempts: 5,
	}
}

// Worker reprocesses queued failed ranges. Inserts are idempotent by
// the event identity key, so rescanning a range that partially
// succeeded before is safe.
type Worker struct {
	cfg    WorkerConfig
	src    source.Source
	queue  storage.FailedRangeQueue
	events storage.FeeEventRepository
	log    *slog.Logger
}

// NewWorker creates a new rescan worker.
func NewWorker(
	cfg WorkerConfig,
	src source.Source,
	queue storage.FailedRangeQueue,
	events storage.FeeEventRepository,
) *Worker {
	return &Worker{
		cfg:    cfg,
		src:    src,
		queue:  queue,
		events: events,
		log:    slog.Default().With("component", "rescan", "source", src.SourceID()),
	}
}

// Run starts the worker loop.
func (w *Worker) Run(ctx context.Context) error {
	w.log.Info("Starting rescan worker")

	for {
		select {
		case <-ctx.Done():
			w.log.Info("Rescan worker stopped")
			return nil
		default:
		}

		fr, found, err := w.queue.Pop(ctx, w.src.SourceID())
		if err != nil {
			w.log.Error("Failed to pop range", "error", err)
			w.sleep(ctx, w.cfg.EmptySleep)
			continue
		}
		if !found {
			w.sleep(ctx, w.cfg.EmptySleep)
			continue
		}

		if err := w.ProcessRange(ctx, fr.FromHeight, fr.ToHeight); err != nil {
			w.log.Error("Failed to process range",
				"from", fr.FromHeight, "to", fr.ToHeight,
				"attempts", fr.Attempts, "error", err)

			fr.Attempts++
			fr.Reason = err.Error()
			if fr.Attempts >= w.cfg.MaxAttempts {
				w.log.Warn("Dropping range after repeated failures",
					"from", fr.FromHeight, "to", fr.ToHeight)
				continue
			}
			if requeueErr := w.queue.Push(ctx, fr); requeueErr != nil {
				w.log.Error("Failed to re-queue range", "error", requeueErr)
			}
		}
	}
}

// ProcessRange rescans one range and stores whatever decodes cleanly.
func (w *Worker) ProcessRange(ctx context.Context, from, to uint64) error {
	ctx, cancel := context.WithTimeout(ctx, w.cfg.ScanTimeout)
	defer cancel()

	w.log.Info("Rescanning range", "from", from, "to", to)

	raws, err := w.src.FetchRange(ctx, from, to)
	if err != nil {
		return fmt.Errorf("fetch failed: %w", err)
	}

	events, err := w.src.Decode(ctx, raws)
	if err != nil {
		return fmt.Errorf("decode failed: %w", err)
	}

	inserted, err := w.events.InsertBatch(ctx, events)
	if err != nil {
		return fmt.Errorf("store failed: %w", err)
	}

	w.log.Info("Range rescanned", "from", from, "to", to,
		"decoded", len(events), "new", inserted)
	return nil
}

func (w *Worker) sleep(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
