package flow

import (
	"context"
	"sync"
	"time"
)

// Clock abstracts time so prompt-throttle tests run without real
// delays.
type Clock interface {
	Now() time.Time
}

// SystemClock is the production Clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// PromptStore persists when a prompt was last shown to an account.
type PromptStore interface {
	// LastShown returns the last time the prompt fired for key, or the
	// zero time when it never has.
	LastShown(ctx context.Context, key string) (time.Time, error)

	// MarkShown records that the prompt fired for key at the given
	// time.
	MarkShown(ctx context.Context, key string, at time.Time) error
}

// MemoryPromptStore is the in-process PromptStore.
type MemoryPromptStore struct {
	mu    sync.Mutex
	shown map[string]time.Time
}

func NewMemoryPromptStore() *MemoryPromptStore {
	return &MemoryPromptStore{shown: make(map[string]time.Time)}
}

func (s *MemoryPromptStore) LastShown(ctx context.Context, key string) (time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.shown[key], nil
}

func (s *MemoryPromptStore) MarkShown(ctx context.Context, key string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.shown[key] = at
	return nil
}

// VerifyPrompt throttles how often the verify-your-email prompt
// re-fires for an unverified session.
type VerifyPrompt struct {
	store    PromptStore
	clock    Clock
	interval time.Duration
}

// DefaultPromptInterval is how long a dismissed prompt stays quiet.
const DefaultPromptInterval = 24 * time.Hour

func NewVerifyPrompt(store PromptStore, clock Clock, interval time.Duration) *VerifyPrompt {
	if clock == nil {
		clock = SystemClock{}
	}
	if interval <= 0 {
		interval = DefaultPromptInterval
	}
	return &VerifyPrompt{store: store, clock: clock, interval: interval}
}

// ShouldShow reports whether the prompt is due for key, recording the
// showing when it is. Store failures fail open: one extra prompt beats
// a silently missing one.
func (p *VerifyPrompt) ShouldShow(ctx context.Context, key string) bool {
	last, err := p.store.LastShown(ctx, key)
	if err == nil && !last.IsZero() && p.clock.Now().Sub(last) < p.interval {
		return false
	}
	_ = p.store.MarkShown(ctx, key, p.clock.Now())
	return true
}
