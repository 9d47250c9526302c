package graph

import (
	"errors"
	"testing"
	"time"
)

func TestRetryPolicy_MaxAttemptsDefaultsToOne(t *testing.T) {
	if NoRetry.maxAttempts() != 1 {
		t.Errorf("NoRetry.maxAttempts() = %d, want 1", NoRetry.maxAttempts())
	}
	p := RetryPolicy{MaxAttempts: 3}
	if p.maxAttempts() != 3 {
		t.Errorf("maxAttempts() = %d, want 3", p.maxAttempts())
	}
}

func TestRetryPolicy_RetryableDefaultsToAlwaysTrueForNonNilError(t *testing.T) {
	p := RetryPolicy{}
	if p.retryable(nil) {
		t.Error("nil error must never be considered retryable")
	}
	if !p.retryable(errors.New("transient")) {
		t.Error("a nil Retryable func should treat every non-nil error as retryable")
	}
}

func TestRetryPolicy_CustomRetryablePredicate(t *testing.T) {
	sentinel := errors.New("permanent")
	p := RetryPolicy{Retryable: func(err error) bool { return !errors.Is(err, sentinel) }}
	if p.retryable(sentinel) {
		t.Error("custom predicate should have rejected the sentinel error")
	}
	if !p.retryable(errors.New("other")) {
		t.Error("custom predicate should accept errors it doesn't recognize as permanent")
	}
}

func TestComputeBackoff_ZeroBaseDelayMeansNoDelay(t *testing.T) {
	if d := computeBackoff(RetryPolicy{}, 2); d != 0 {
		t.Errorf("expected zero delay with zero BaseDelay, got %v", d)
	}
}

func TestComputeBackoff_CapsAtMaxDelay(t *testing.T) {
	p := RetryPolicy{BaseDelay: 100 * time.Millisecond, MaxDelay: 150 * time.Millisecond}
	for attempt := 1; attempt <= 10; attempt++ {
		d := computeBackoff(p, attempt)
		if d > p.MaxDelay {
			t.Fatalf("attempt %d: delay %v exceeds MaxDelay %v", attempt, d, p.MaxDelay)
		}
		if d < 0 {
			t.Fatalf("attempt %d: delay must never be negative, got %v", attempt, d)
		}
	}
}

func TestComputeBackoff_GrowsWithAttempt(t *testing.T) {
	p := RetryPolicy{BaseDelay: 10 * time.Millisecond, MaxDelay: time.Second}
	// Jitter makes exact comparison unreliable, so bound loosely: the
	// undoubled first attempt must never exceed the many-times-doubled
	// fifth attempt.
	first := computeBackoff(p, 1)
	fifth := computeBackoff(p, 5)
	if first > 20*time.Millisecond {
		t.Errorf("attempt 1 backoff too large: %v", first)
	}
	if fifth < first {
		t.Errorf("expected backoff to grow with attempt count: attempt1=%v attempt5=%v", first, fifth)
	}
}
