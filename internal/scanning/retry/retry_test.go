package retry

import (
	"context"
	"errors"
	"testing"
	"time"
)

func fastStrategy() Strategy {
	return Strategy{
		MaxRetries:  3,
		BaseDelay:   time.Millisecond,
		MaxDelay:    5 * time.Millisecond,
		Exponential: true,
	}
}

func TestDo_SucceedsFirstAttempt(t *testing.T) {
	calls := 0
	err := Do(context.Background(), fastStrategy(), nil, func() error {
		calls++
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 1 {
		t.Errorf("expected 1 call, got %d", calls)
	}
}

func TestDo_RetriesRateLimit(t *testing.T) {
	calls := 0
	err := Do(context.Background(), fastStrategy(), nil, func() error {
		calls++
		if calls < 3 {
			return errors.New("rate limited, retry in 0m0s")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 3 {
		t.Errorf("expected 3 calls, got %d", calls)
	}
}

func TestDo_RateLimitExhaustsRetries(t *testing.T) {
	calls := 0
	err := Do(context.Background(), fastStrategy(), nil, func() error {
		calls++
		return errors.New("throttled, retry in 0s")
	})
	if err == nil {
		t.Fatal("expected error after exhausted retries")
	}
	// MaxRetries=3 allows the initial attempt plus three retries.
	if calls != 4 {
		t.Errorf("expected 4 calls, got %d", calls)
	}
}

func TestDo_FatalOnUnclassifiedError(t *testing.T) {
	calls := 0
	fatal := errors.New("invalid response format")
	err := Do(context.Background(), fastStrategy(), nil, func() error {
		calls++
		return fatal
	})
	if !errors.Is(err, fatal) {
		t.Fatalf("expected fatal error, got %v", err)
	}
	if calls != 1 {
		t.Errorf("expected no retry for unclassified error, got %d calls", calls)
	}
}

func TestDo_ReconnectsOnceOnConnectionError(t *testing.T) {
	calls := 0
	reconnects := 0
	err := Do(context.Background(), fastStrategy(), func() error {
		reconnects++
		return nil
	}, func() error {
		calls++
		if calls == 1 {
			return errors.New("dial tcp: connection refused")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if reconnects != 1 {
		t.Errorf("expected 1 reconnect, got %d", reconnects)
	}
	if calls != 2 {
		t.Errorf("expected 2 calls, got %d", calls)
	}
}

func TestDo_ReconnectIsOneShot(t *testing.T) {
	calls := 0
	reconnects := 0
	err := Do(context.Background(), fastStrategy(), func() error {
		reconnects++
		return nil
	}, func() error {
		calls++
		return errors.New("connection reset by peer")
	})
	if err == nil {
		t.Fatal("expected failure when connection stays unusable")
	}
	if reconnects != 1 {
		t.Errorf("expected exactly 1 reconnect, got %d", reconnects)
	}
	// Second connection failure is fatal, not another reconnect.
	if calls != 2 {
		t.Errorf("expected 2 calls, got %d", calls)
	}
}

func TestDo_ContextCancelDuringSleep(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := Do(ctx, Strategy{MaxRetries: 2, BaseDelay: time.Minute, MaxDelay: time.Minute}, nil, func() error {
		return errors.New("rate limit exceeded")
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestIsConnectionUnusable(t *testing.T) {
	if !IsConnectionUnusable(errors.New("read: connection reset by peer")) {
		t.Error("connection reset should be unusable")
	}
	if !IsConnectionUnusable(errors.New("unexpected EOF")) {
		t.Error("EOF should be unusable")
	}
	if IsConnectionUnusable(errors.New("rate limit exceeded")) {
		t.Error("rate limit is not a connection failure")
	}
	if IsConnectionUnusable(nil) {
		t.Error("nil error is not a connection failure")
	}
}
