package bounded

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestRunSettlesWithinBound(t *testing.T) {
	wantErr := errors.New("backend said no")
	outcome, err := Run(context.Background(), time.Second, func(ctx context.Context) error {
		return wantErr
	})
	if outcome != OutcomeSettled {
		t.Fatalf("expected settled outcome, got %v", outcome)
	}
	if !errors.Is(err, wantErr) {
		t.Fatalf("expected operation error, got %v", err)
	}
}

func TestRunResolvesWhenOperationNeverSettles(t *testing.T) {
	start := time.Now()
	outcome, err := Run(context.Background(), 50*time.Millisecond, func(ctx context.Context) error {
		select {} // never settles
	})
	elapsed := time.Since(start)

	if outcome != OutcomePending {
		t.Fatalf("expected pending outcome, got %v", outcome)
	}
	if err != nil {
		t.Fatalf("a timeout must resolve, not fail: %v", err)
	}
	if elapsed > time.Second {
		t.Fatalf("wrapper hung well past the bound: %v", elapsed)
	}
}

func TestRunOperationOutlivesTimeout(t *testing.T) {
	release := make(chan struct{})
	finished := make(chan struct{})

	outcome, _ := Run(context.Background(), 10*time.Millisecond, func(ctx context.Context) error {
		<-release
		close(finished)
		return nil
	})
	if outcome != OutcomePending {
		t.Fatalf("expected pending outcome, got %v", outcome)
	}

	// The operation is still in flight and completes on its own.
	close(release)
	select {
	case <-finished:
	case <-time.After(time.Second):
		t.Fatal("operation was cancelled by the wrapper")
	}
}

func TestRunIgnoresCallerCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	cancelled := make(chan bool, 1)
	outcome, err := Run(ctx, 50*time.Millisecond, func(opCtx context.Context) error {
		cancelled <- opCtx.Err() != nil
		return nil
	})
	_ = outcome
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	select {
	case was := <-cancelled:
		if was {
			t.Fatal("operation context must not inherit caller cancellation")
		}
	case <-time.After(time.Second):
		t.Fatal("operation never ran")
	}
}
