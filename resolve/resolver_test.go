package resolve

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/proggaming/authsync/identity"
	"github.com/proggaming/authsync/profile"
)

type stubClient struct {
	*identity.Broadcaster
}

func newStubClient() *stubClient {
	return &stubClient{Broadcaster: identity.NewBroadcaster()}
}

func (s *stubClient) SignInWithPassword(ctx context.Context, email, secret string) (*identity.Session, error) {
	return nil, nil
}
func (s *stubClient) SignUpWithPassword(ctx context.Context, email, secret string) (*identity.Session, error) {
	return nil, nil
}
func (s *stubClient) SignInWithProvider(ctx context.Context, p identity.Provider) (*identity.Session, error) {
	return nil, nil
}
func (s *stubClient) SignOut(ctx context.Context) error {
	s.Set(nil)
	return nil
}
func (s *stubClient) SendVerificationEmail(ctx context.Context, returnURL string) error { return nil }
func (s *stubClient) SendPasswordReset(ctx context.Context, email string) error         { return nil }

func recv(t *testing.T, ch <-chan *User) *User {
	t.Helper()
	select {
	case u := <-ch:
		return u
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for emission")
		return nil
	}
}

func session(id, displayName string) *identity.Session {
	return &identity.Session{
		ID:          id,
		Email:       id + "@x.com",
		DisplayName: displayName,
		Providers:   []identity.Provider{identity.ProviderPassword},
	}
}

func TestStreamNilIffSignedOut(t *testing.T) {
	client := newStubClient()
	store := profile.NewMemoryStore()
	resolver := NewResolver(client, store, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	users := resolver.Stream(ctx)

	if u := recv(t, users); u != nil {
		t.Fatalf("expected nil while signed out, got %+v", u)
	}

	client.Set(session("acct-1", "Ana F."))
	if u := recv(t, users); u == nil {
		t.Fatal("expected provisional user after sign-in")
	}
	recv(t, users) // absent-document snapshot, still provisional

	client.Set(nil)
	if u := recv(t, users); u != nil {
		t.Fatalf("expected nil after sign-out, got %+v", u)
	}
}

func TestStreamEmitsProvisionalThenMerged(t *testing.T) {
	client := newStubClient()
	store := profile.NewMemoryStore()
	resolver := NewResolver(client, store, nil)

	sess := session("acct-1", "Ana F.")
	if err := store.Set(context.Background(), sess.ID, &profile.Record{
		Nickname: "Ana",
		Level:    3,
		XP:       120,
		Status:   profile.StatusAvailable,
	}, false); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	users := resolver.Stream(ctx)
	recv(t, users) // initial nil

	client.Set(sess)

	provisional := recv(t, users)
	if provisional.HasProfile {
		t.Fatal("first emission must be the provisional, identity-only view")
	}
	if provisional.Nickname != "Ana F." || provisional.Level != 1 || provisional.XP != 0 {
		t.Fatalf("provisional defaults wrong: %+v", provisional)
	}

	merged := recv(t, users)
	if !merged.HasProfile {
		t.Fatal("second emission must carry the profile document")
	}
	if merged.Nickname != "Ana" || merged.Level != 3 || merged.XP != 120 {
		t.Fatalf("merge precedence wrong: %+v", merged)
	}
}

func TestMergePrecedence(t *testing.T) {
	sess := session("acct-1", "Ana F.")

	withNickname := Merge(sess, &profile.Record{Nickname: "Ana"})
	if withNickname.Nickname != "Ana" {
		t.Errorf("profile nickname must win, got %q", withNickname.Nickname)
	}

	withoutNickname := Merge(sess, &profile.Record{Level: 2})
	if withoutNickname.Nickname != "Ana F." {
		t.Errorf("display name must fill absent nickname, got %q", withoutNickname.Nickname)
	}
}

func TestStreamDeliversProfileChanges(t *testing.T) {
	client := newStubClient()
	store := profile.NewMemoryStore()
	resolver := NewResolver(client, store, nil)

	sess := session("acct-1", "Ana F.")
	client.Set(sess)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	users := resolver.Stream(ctx)
	recv(t, users) // provisional
	recv(t, users) // absent document

	if err := store.Set(context.Background(), sess.ID, profile.NewRecord(sess), false); err != nil {
		t.Fatal(err)
	}
	first := recv(t, users)
	if !first.HasProfile || first.XP != 0 {
		t.Fatalf("expected fresh document, got %+v", first)
	}

	if err := store.Set(context.Background(), sess.ID, &profile.Record{XP: 42}, true); err != nil {
		t.Fatal(err)
	}
	second := recv(t, users)
	if second.XP != 42 {
		t.Fatalf("expected xp update delivered in order, got %+v", second)
	}
}

// manualStore hands the subscription callbacks to the test so it can
// inject errors and snapshots directly.
type manualStore struct {
	mu       sync.Mutex
	onChange func(*profile.Record)
	onError  func(error)
}

func (s *manualStore) Get(ctx context.Context, key string) (*profile.Record, error) {
	return nil, profile.ErrNotFound
}
func (s *manualStore) Set(ctx context.Context, key string, rec *profile.Record, merge bool) error {
	return nil
}
func (s *manualStore) Delete(ctx context.Context, key string) error { return nil }

func (s *manualStore) Subscribe(key string, onChange func(*profile.Record), onError func(error)) profile.UnsubscribeFunc {
	s.mu.Lock()
	s.onChange = onChange
	s.onError = onError
	s.mu.Unlock()
	return func() {}
}

// emitChange waits for the resolver to attach its callbacks; the
// subscription opens just after the provisional emission.
func (s *manualStore) emitChange(rec *profile.Record) {
	s.await(func() func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.onChange == nil {
			return nil
		}
		fn := s.onChange
		return func() { fn(rec) }
	})
}

func (s *manualStore) emitError(err error) {
	s.await(func() func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.onError == nil {
			return nil
		}
		fn := s.onError
		return func() { fn(err) }
	})
}

func (s *manualStore) await(get func() func()) {
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if fn := get(); fn != nil {
			fn()
			return
		}
		time.Sleep(time.Millisecond)
	}
	panic("subscription callbacks never attached")
}

func TestStreamFallsBackOnSubscriptionError(t *testing.T) {
	client := newStubClient()
	store := &manualStore{}
	resolver := NewResolver(client, store, nil)

	sess := session("acct-1", "Ana F.")
	client.Set(sess)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	users := resolver.Stream(ctx)
	recv(t, users) // provisional

	store.emitChange(&profile.Record{Nickname: "Ana"})
	if u := recv(t, users); u.Nickname != "Ana" {
		t.Fatalf("expected merged view, got %+v", u)
	}

	// A store outage degrades to the identity-only view, it does not
	// end the stream.
	store.emitError(errors.New("store outage"))
	fallback := recv(t, users)
	if fallback == nil || fallback.HasProfile {
		t.Fatalf("expected provisional fallback, got %+v", fallback)
	}

	store.emitChange(&profile.Record{Nickname: "Ana", XP: 7})
	if u := recv(t, users); u.XP != 7 {
		t.Fatalf("stream did not recover after error, got %+v", u)
	}
}

// churnStore records subscribe/unsubscribe ordering.
type churnStore struct {
	profile.Store
	mu     sync.Mutex
	events []string
}

func (s *churnStore) Subscribe(key string, onChange func(*profile.Record), onError func(error)) profile.UnsubscribeFunc {
	s.mu.Lock()
	s.events = append(s.events, "subscribe "+key)
	s.mu.Unlock()
	inner := s.Store.Subscribe(key, onChange, onError)
	return func() {
		s.mu.Lock()
		s.events = append(s.events, "unsubscribe "+key)
		s.mu.Unlock()
		inner()
	}
}

func (s *churnStore) log() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.events...)
}

func TestStreamClosesOldSubscriptionBeforeOpeningNext(t *testing.T) {
	client := newStubClient()
	store := &churnStore{Store: profile.NewMemoryStore()}
	resolver := NewResolver(client, store, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	users := resolver.Stream(ctx)
	recv(t, users) // initial nil

	client.Set(session("acct-a", "A"))
	recv(t, users) // provisional A
	recv(t, users) // absent document A

	client.Set(session("acct-b", "B"))
	recv(t, users) // provisional B
	recv(t, users) // absent document B

	want := []string{"subscribe acct-a", "unsubscribe acct-a", "subscribe acct-b"}
	got := store.log()
	if len(got) != len(want) {
		t.Fatalf("expected events %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected events %v, got %v", want, got)
		}
	}
}
