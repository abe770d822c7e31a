package retry

import (
	"context"
	"errors"
	"testing"
	"time"
)

func fastConfig(attempts int) Config {
	return Config{
		MaxAttempts: attempts,
		InitialWait: time.Millisecond,
		MaxWait:     time.Millisecond,
		Multiplier:  2,
	}
}

func TestDo_RetriesRetryableErrors(t *testing.T) {
	calls := 0
	err := Do(context.Background(), fastConfig(5), func() error {
		calls++
		if calls < 3 {
			return Retryable(errors.New("connection refused"))
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

func TestDo_StopsOnPermanentError(t *testing.T) {
	permanent := errors.New("bad request")
	calls := 0
	err := Do(context.Background(), fastConfig(5), func() error {
		calls++
		return permanent
	})
	if !errors.Is(err, permanent) {
		t.Fatalf("expected permanent error, got %v", err)
	}
	if calls != 1 {
		t.Errorf("expected 1 call, got %d", calls)
	}
}

func TestDo_ReturnsLastErrorUnwrapped(t *testing.T) {
	transient := errors.New("connection refused")
	var notified []int
	cfg := fastConfig(3)
	cfg.Notify = func(attempt int, err error, wait time.Duration) {
		notified = append(notified, attempt)
	}
	err := Do(context.Background(), cfg, func() error {
		return Retryable(transient)
	})
	if err != transient {
		t.Fatalf("expected the unwrapped transient error, got %v", err)
	}
	if IsRetryable(err) {
		t.Error("returned error should not be marked retryable")
	}
	if len(notified) != 2 {
		t.Errorf("expected 2 notifications between 3 attempts, got %v", notified)
	}
}

func TestDoWithResult_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cfg := Config{MaxAttempts: 0, InitialWait: time.Hour, MaxWait: time.Hour}
	cfg.Notify = func(int, error, time.Duration) { cancel() }

	_, err := DoWithResult(ctx, cfg, func() (int, error) {
		return 0, Retryable(errors.New("down"))
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestBackoff_CappedAtMaxWait(t *testing.T) {
	cfg := Config{InitialWait: 100 * time.Millisecond, MaxWait: time.Second, Multiplier: 2}
	if got := cfg.backoff(1); got != 100*time.Millisecond {
		t.Errorf("attempt 1: expected 100ms, got %v", got)
	}
	if got := cfg.backoff(3); got != 400*time.Millisecond {
		t.Errorf("attempt 3: expected 400ms, got %v", got)
	}
	if got := cfg.backoff(10); got != time.Second {
		t.Errorf("attempt 10: expected cap of 1s, got %v", got)
	}
}
