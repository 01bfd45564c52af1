package retry

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/vietddude/feescan/internal/scanning/ratelimit"
)

// connectionSignatures mark a transport whose connection is unusable
// and worth rebuilding before the next attempt.
var connectionSignatures = []string{
	"connection refused",
	"connection reset",
	"broken pipe",
	"use of closed network connection",
	"no such host",
	"unexpected eof",
	"eof",
}

// IsConnectionUnusable reports whether the failure indicates a dead
// transport rather than an upstream-side error.
func IsConnectionUnusable(err error) bool {
	if err == nil {
		return false
	}
	lower := strings.ToLower(err.Error())
	for _, sig := range connectionSignatures {
		if strings.Contains(lower, sig) {
			return true
		}
	}
	return false
}

// Do runs op under the bounded retry loop used for every
// network-facing call.
//
// Failures are classified: rate limits sleep the classified delay (or
// the backoff delay when none was parsed) and retry while attempts
// remain; a connection-unusable failure triggers exactly one
// reconnect for the whole invocation, never unbounded reconnects; any
// other failure, or exhausted retries, is fatal to the caller.
func Do(ctx context.Context, s Strategy, reconnect func() error, op func() error) error {
	reconnected := false

	for attempt := 0; ; attempt++ {
		err := op()
		if err == nil {
			return nil
		}

		if !s.ShouldRetry(attempt) {
			return fmt.Errorf("failed after %d attempts: %w", attempt+1, err)
		}

		info := ratelimit.Classify(err)
		switch {
		case info.IsRateLimit:
			delay := info.RetryDelay
			if delay <= 0 {
				delay = s.Delay(attempt)
			}
			slog.Debug("Rate limited, sleeping before retry",
				"attempt", attempt, "delay", delay, "error", err)
			if serr := sleep(ctx, delay); serr != nil {
				return serr
			}

		case IsConnectionUnusable(err) && !reconnected && reconnect != nil:
			reconnected = true
			slog.Warn("Connection unusable, reinitializing transport", "error", err)
			if rerr := reconnect(); rerr != nil {
				return fmt.Errorf("reconnect failed: %w", rerr)
			}
			if serr := sleep(ctx, s.Delay(attempt)); serr != nil {
				return serr
			}

		default:
			return err
		}
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
