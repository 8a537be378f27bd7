package resilience

import (
	"context"
	"errors"
	"testing"
	"time"
)

func fastPolicy() Policy {
	return Policy{
		MaxAttempts:        3,
		BaseDelay:          time.Millisecond,
		MaxDelay:           2 * time.Millisecond,
		BreakerMinRequests: 100,
	}
}

func TestRunRetriesRetryableFailures(t *testing.T) {
	e := NewExecutor(fastPolicy())
	attempts := 0

	err := e.Run(context.Background(), "op",
		func(error) Outcome { return Outcome{Retry: true, TripBreaker: true} },
		func(context.Context) error {
			attempts++
			if attempts < 3 {
				return errors.New("transient")
			}
			return nil
		})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if attempts != 3 {
		t.Fatalf("expected 3 attempts, got %d", attempts)
	}
}

func TestRunStopsOnNonRetryableFailure(t *testing.T) {
	e := NewExecutor(fastPolicy())
	attempts := 0

	err := e.Run(context.Background(), "op",
		func(error) Outcome { return Outcome{Retry: false} },
		func(context.Context) error {
			attempts++
			return errors.New("permanent")
		})
	if err == nil {
		t.Fatalf("expected error")
	}
	if attempts != 1 {
		t.Fatalf("expected single attempt, got %d", attempts)
	}
}

func TestRunGivesUpAfterMaxAttempts(t *testing.T) {
	e := NewExecutor(fastPolicy())
	attempts := 0

	err := e.Run(context.Background(), "op",
		func(error) Outcome { return Outcome{Retry: true} },
		func(context.Context) error {
			attempts++
			return errors.New("still failing")
		})
	if err == nil {
		t.Fatalf("expected error after exhausting attempts")
	}
	if attempts != 3 {
		t.Fatalf("expected 3 attempts, got %d", attempts)
	}
}

func TestRunHonorsContextCancellation(t *testing.T) {
	e := NewExecutor(fastPolicy())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	attempts := 0
	err := e.Run(ctx, "op",
		func(error) Outcome { return Outcome{Retry: true} },
		func(context.Context) error {
			attempts++
			return errors.New("never seen")
		})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if attempts != 0 {
		t.Fatalf("expected no attempts after cancellation, got %d", attempts)
	}
}

func TestBreakerOpensAfterRepeatedFailures(t *testing.T) {
	policy := fastPolicy()
	policy.MaxAttempts = 1
	policy.BreakerMinRequests = 3
	policy.BreakerFailureRatio = 0.5
	policy.BreakerCooldown = time.Minute
	e := NewExecutor(policy)

	classify := func(error) Outcome { return Outcome{TripBreaker: true} }
	for i := 0; i < 3; i++ {
		_ = e.Run(context.Background(), "flaky", classify, func(context.Context) error {
			return errors.New("down")
		})
	}

	err := e.Run(context.Background(), "flaky", classify, func(context.Context) error { return nil })
	if !IsCircuitOpen(err) {
		t.Fatalf("expected open circuit, got %v", err)
	}
}
