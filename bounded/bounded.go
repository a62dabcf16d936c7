// Package bounded wraps slow external calls with a deadline that
// resolves instead of failing, so a stalled backend can never hang the
// caller.
package bounded

import (
	"context"
	"time"
)

// Outcome reports how a bounded operation settled.
type Outcome int

const (
	// OutcomeSettled means the operation finished within the bound;
	// its error (possibly nil) is authoritative.
	OutcomeSettled Outcome = iota

	// OutcomePending means the bound elapsed first. The operation
	// keeps running in the background and its eventual result is
	// discarded; the caller proceeds optimistically.
	OutcomePending
)

// DefaultLimit matches the dispatch bound used for verification email
// and post-registration profile writes.
const DefaultLimit = 8 * time.Second

// Run races op against the limit. It returns OutcomeSettled with op's
// error when op finishes first, and OutcomePending with a nil error
// when the timer (or ctx) wins. op receives a context that is NOT
// cancelled on timeout, deliberately: leaving the request in flight is
// the point.
func Run(ctx context.Context, limit time.Duration, op func(context.Context) error) (Outcome, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}

	done := make(chan error, 1)
	go func() {
		done <- op(context.WithoutCancel(ctx))
	}()

	timer := time.NewTimer(limit)
	defer timer.Stop()

	select {
	case err := <-done:
		return OutcomeSettled, err
	case <-timer.C:
		return OutcomePending, nil
	case <-ctx.Done():
		return OutcomePending, nil
	}
}
