package scanner

import (
	"context"
	"fmt"
	"time"

	"github.com/vietddude/feescan/internal/scanning/metrics"
	"github.com/vietddude/feescan/internal/scanning/ratelimit"
)

// Run drives the continuous scan loop until the context is canceled or
// Stop is called. Every failure path schedules another attempt, so the
// loop self-heals once upstream health returns.
func (s *Scanner) Run(ctx context.Context) error {
	if !s.running.CompareAndSwap(false, true) {
		return fmt.Errorf("scanner already running")
	}
	defer s.running.Store(false)

	s.log.Info("Scanner started",
		"floor", s.cfg.FloorHeight,
		"batch_size", s.cfg.BatchSize,
		"maintenance_interval", s.cfg.MaintenanceInterval,
		"catch_up_pacing", s.cfg.CatchUpPacing)

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-s.stop:
			return nil
		default:
		}

		_, err := s.ScanOnce(ctx)
		delay := s.nextDelay(ctx, err)

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case <-s.stop:
			timer.Stop()
			return nil
		case <-timer.C:
		}
	}
}

// Stop prevents any new cycle from starting. A cycle already in flight
// completes or fails naturally; every effect it has is idempotent.
func (s *Scanner) Stop() error {
	s.stopOnce.Do(func() {
		close(s.stop)
	})
	return nil
}

// Running reports whether the continuous loop is active.
func (s *Scanner) Running() bool {
	return s.running.Load()
}

// nextDelay picks the pause before the next cycle: the classified
// delay for rate limits, catch-up pacing while behind the head, the
// maintenance interval when caught up or after any other failure.
func (s *Scanner) nextDelay(ctx context.Context, err error) time.Duration {
	if err != nil {
		if info := ratelimit.Classify(err); info.IsRateLimit {
			metrics.RateLimitHitsTotal.WithLabelValues(s.cfg.SourceID).Inc()
			s.log.Warn("Cycle rate limited, honoring upstream delay",
				"delay", info.RetryDelay)
			return info.RetryDelay
		}
		return s.cfg.MaintenanceInterval
	}

	p, perr := s.cfg.Progress.Get(ctx, s.cfg.SourceID)
	if perr != nil {
		return s.cfg.MaintenanceInterval
	}

	if p.KnownHeadHeight <= p.LastScannedHeight+s.cfg.BatchSize {
		return s.cfg.MaintenanceInterval
	}
	return s.cfg.CatchUpPacing
}
