package resilience

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestDo_SuccessOnFirstAttempt(t *testing.T) {
	var calls int
	err := Do(context.Background(), DefaultRetryConfig(), func(_ context.Context) error {
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

func TestDo_SuccessAfterRetry(t *testing.T) {
	var calls int
	cfg := RetryConfig{
		MaxAttempts:    3,
		InitialBackoff: 1 * time.Millisecond,
		MaxBackoff:     10 * time.Millisecond,
		Multiplier:     2.0,
	}

	err := Do(context.Background(), cfg, func(_ context.Context) error {
		calls++
		if calls < 3 {
			return NewTransientError(errors.New("temporary"), 503)
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

func TestDo_ExhaustsRetries(t *testing.T) {
	var calls int
	cfg := RetryConfig{
		MaxAttempts:    3,
		InitialBackoff: 1 * time.Millisecond,
		Multiplier:     2.0,
	}

	err := Do(context.Background(), cfg, func(_ context.Context) error {
		calls++
		return NewTransientError(errors.New("always fails"), 500)
	})
	if err == nil {
		t.Fatal("expected error after exhausting retries")
	}
	if calls != 3 {
		t.Errorf("expected 3 calls, got %d", calls)
	}
}

func TestDo_NonRetriableFailsFast(t *testing.T) {
	var calls int
	err := Do(context.Background(), DefaultRetryConfig(), func(_ context.Context) error {
		calls++
		return errors.New("bad request")
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if calls != 1 {
		t.Errorf("expected 1 call, got %d", calls)
	}
}

func TestDo_PermanentBeatsCustomShouldRetry(t *testing.T) {
	var calls int
	cfg := RetryConfig{
		MaxAttempts:    4,
		InitialBackoff: 1 * time.Millisecond,
		ShouldRetry:    func(err error) bool { return IsTransient(err) },
	}

	err := Do(context.Background(), cfg, func(_ context.Context) error {
		calls++
		return NewPermanentError(NewTransientError(errors.New("wrapped"), 500))
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if calls != 1 {
		t.Errorf("expected 1 call, got %d", calls)
	}
}

func TestDoVal_HonorsRetryAfter(t *testing.T) {
	var calls int
	cfg := RetryConfig{
		MaxAttempts:    2,
		InitialBackoff: 500 * time.Millisecond, // would be slow without retry-after
		Multiplier:     2.0,
	}

	start := time.Now()
	val, err := DoVal(context.Background(), cfg, func(_ context.Context) (string, error) {
		calls++
		if calls == 1 {
			return "", &TransientError{
				Err:        errors.New("rate limited"),
				StatusCode: 429,
				RetryAfter: 5 * time.Millisecond,
			}
		}
		return "ok", nil
	})
	elapsed := time.Since(start)

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if val != "ok" {
		t.Errorf("expected ok, got %q", val)
	}
	if elapsed >= 400*time.Millisecond {
		t.Errorf("retry-after not honored, slept %v", elapsed)
	}
}

func TestDo_BackoffGrowsExponentially(t *testing.T) {
	var sleeps []time.Duration
	cfg := RetryConfig{
		MaxAttempts:    4,
		InitialBackoff: 2 * time.Millisecond,
		Multiplier:     2.0,
	}

	var last time.Time
	var calls int
	_ = Do(context.Background(), cfg, func(_ context.Context) error {
		now := time.Now()
		if calls > 0 {
			sleeps = append(sleeps, now.Sub(last))
		}
		last = now
		calls++
		return NewTransientError(errors.New("busy"), 503)
	})

	if len(sleeps) != 3 {
		t.Fatalf("expected 3 sleeps, got %d", len(sleeps))
	}
	// 2ms, 4ms, 8ms nominal; allow generous scheduling slack but require growth.
	for i := 1; i < len(sleeps); i++ {
		if sleeps[i] <= sleeps[i-1] {
			t.Errorf("backoff did not grow: sleep %d = %v, sleep %d = %v",
				i-1, sleeps[i-1], i, sleeps[i])
		}
	}
}

func TestDo_ContextCancellationStopsRetries(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var calls int

	err := Do(ctx, DefaultRetryConfig(), func(_ context.Context) error {
		calls++
		cancel()
		return NewTransientError(errors.New("busy"), 503)
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if calls != 1 {
		t.Errorf("expected 1 call, got %d", calls)
	}
}
