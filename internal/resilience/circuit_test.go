package resilience

import (
	"context"
	"errors"
	"testing"
	"time"
)

func testBreaker(threshold int, reset time.Duration) (*Breaker, *time.Time) {
	b := NewBreaker("test", BreakerConfig{FailureThreshold: threshold, ResetTimeout: reset})
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	b.now = func() time.Time { return now }
	return b, &now
}

func failCall(b *Breaker) error {
	return b.Call(context.Background(), func(_ context.Context) error {
		return errors.New("boom")
	})
}

func okCall(b *Breaker) error {
	return b.Call(context.Background(), func(_ context.Context) error {
		return nil
	})
}

func TestBreaker_OpensAfterThreshold(t *testing.T) {
	b, _ := testBreaker(3, time.Minute)

	for i := 0; i < 3; i++ {
		if err := failCall(b); errors.Is(err, ErrBreakerOpen) {
			t.Fatalf("call %d rejected before threshold reached", i)
		}
	}
	if b.State() != BreakerOpen {
		t.Fatalf("expected open state, got %v", b.State())
	}
	if err := failCall(b); !errors.Is(err, ErrBreakerOpen) {
		t.Errorf("expected ErrBreakerOpen, got %v", err)
	}
}

func TestBreaker_SuccessResetsFailureCount(t *testing.T) {
	b, _ := testBreaker(3, time.Minute)

	_ = failCall(b)
	_ = failCall(b)
	if err := okCall(b); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	_ = failCall(b)
	_ = failCall(b)
	if b.State() != BreakerClosed {
		t.Errorf("breaker should stay closed when failures are not consecutive")
	}
}

func TestBreaker_HalfOpenProbeRecovers(t *testing.T) {
	b, now := testBreaker(2, 30*time.Second)

	_ = failCall(b)
	_ = failCall(b)
	if b.State() != BreakerOpen {
		t.Fatalf("expected open state, got %v", b.State())
	}

	*now = now.Add(31 * time.Second)
	if b.State() != BreakerHalfOpen {
		t.Fatalf("expected half-open after reset timeout, got %v", b.State())
	}
	if err := okCall(b); err != nil {
		t.Fatalf("probe call failed: %v", err)
	}
	if b.State() != BreakerClosed {
		t.Errorf("expected closed after successful probe, got %v", b.State())
	}
}

func TestBreaker_FailedProbeReopens(t *testing.T) {
	b, now := testBreaker(2, 30*time.Second)

	_ = failCall(b)
	_ = failCall(b)
	*now = now.Add(31 * time.Second)

	if err := failCall(b); errors.Is(err, ErrBreakerOpen) {
		t.Fatal("probe call should have been allowed")
	}
	if b.State() != BreakerOpen {
		t.Errorf("expected open after failed probe, got %v", b.State())
	}
	if err := okCall(b); !errors.Is(err, ErrBreakerOpen) {
		t.Errorf("expected rejection right after failed probe, got %v", err)
	}
}

func TestBreaker_ShouldTripFilter(t *testing.T) {
	b := NewBreaker("test", BreakerConfig{
		FailureThreshold: 2,
		ResetTimeout:     time.Minute,
		ShouldTrip:       IsTransient,
	})
	permanent := errors.New("bad request")
	for i := 0; i < 5; i++ {
		_ = b.Call(context.Background(), func(_ context.Context) error { return permanent })
	}
	if b.State() != BreakerClosed {
		t.Errorf("permanent errors should not trip the breaker")
	}
}

func TestCallVal_PropagatesValue(t *testing.T) {
	b, _ := testBreaker(3, time.Minute)
	got, err := CallVal(context.Background(), b, func(_ context.Context) (int, error) {
		return 42, nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != 42 {
		t.Errorf("expected 42, got %d", got)
	}
}
