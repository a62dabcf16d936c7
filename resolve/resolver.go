// Package resolve merges the identity-session stream with the profile
// document store into a single stream of resolved users.
package resolve

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/proggaming/authsync/identity"
	"github.com/proggaming/authsync/profile"
)

// phase is the tagged state of the merge machine. Every document event
// is handled against an explicit phase so a stale subscription can
// never resurrect a signed-out user.
type phase int

const (
	phaseNoSession phase = iota
	phaseSessionOnly
	phaseSessionWithProfile
)

// Resolver owns the single live profile subscription per session and
// produces resolved-user streams for consumers.
type Resolver struct {
	client identity.Client
	store  profile.Store
	log    *zap.Logger
}

func NewResolver(client identity.Client, store profile.Store, log *zap.Logger) *Resolver {
	if log == nil {
		log = zap.NewNop()
	}
	return &Resolver{client: client, store: store, log: log}
}

// docEvent carries a profile snapshot (or subscription error) tagged
// with the session generation that opened the subscription.
type docEvent struct {
	gen uint64
	rec *profile.Record
	err error
}

// Stream returns a continuous stream of the resolved user: nil exactly
// when signed out, a provisional identity-only view immediately after
// sign-in, and the merged view on every profile document change. Store
// failures degrade to the provisional view; they never end the stream.
// The channel closes when ctx is done. Each caller gets an independent
// stream.
func (r *Resolver) Stream(ctx context.Context) <-chan *User {
	out := make(chan *User, 16)
	go r.run(ctx, out)
	return out
}

func (r *Resolver) run(ctx context.Context, out chan<- *User) {
	defer close(out)

	sessions := r.client.Sessions(ctx)
	docs := make(chan docEvent, 16)

	var (
		gen   uint64
		ph    = phaseNoSession
		cur   *identity.Session
		unsub profile.UnsubscribeFunc
	)
	defer func() {
		if unsub != nil {
			unsub()
		}
	}()

	emit := func(u *User) bool {
		select {
		case <-ctx.Done():
			return false
		case out <- u:
			return true
		}
	}

	for {
		select {
		case <-ctx.Done():
			return

		case sess, ok := <-sessions:
			if !ok {
				return
			}
			// Replace-on-new-session: the previous subscription is
			// released before anything else happens.
			if unsub != nil {
				unsub()
				unsub = nil
			}
			gen++
			cur = sess

			if sess == nil {
				ph = phaseNoSession
				if !emit(nil) {
					return
				}
				continue
			}

			// Provisional view first, so consumers never stall on the
			// store.
			ph = phaseSessionOnly
			if !emit(FromSession(sess)) {
				return
			}

			g := gen
			unsub = r.store.Subscribe(sess.ID,
				func(rec *profile.Record) {
					select {
					case docs <- docEvent{gen: g, rec: rec}:
					case <-ctx.Done():
					}
				},
				func(err error) {
					select {
					case docs <- docEvent{gen: g, err: err}:
					case <-ctx.Done():
					}
				},
			)

		case ev := <-docs:
			if ev.gen != gen {
				continue // late callback from a replaced subscription
			}
			switch ph {
			case phaseNoSession:
				continue
			case phaseSessionOnly, phaseSessionWithProfile:
			}

			if ev.err != nil {
				r.log.Warn("profile subscription failed; serving identity-only view",
					zap.String("session_id", cur.ID),
					zap.Error(ev.err),
				)
				ph = phaseSessionOnly
				if !emit(FromSession(cur)) {
					return
				}
				continue
			}
			if ev.rec == nil {
				// Document absent: still provisional.
				ph = phaseSessionOnly
				if !emit(FromSession(cur)) {
					return
				}
				continue
			}
			ph = phaseSessionWithProfile
			if !emit(Merge(cur, ev.rec)) {
				return
			}
		}
	}
}

// Resolve is the one-shot counterpart of Stream: the current session
// merged with whatever the store holds right now, or nil when signed
// out.
func (r *Resolver) Resolve(ctx context.Context) (*User, error) {
	sess := r.client.Current()
	if sess == nil {
		return nil, nil
	}
	rec, err := r.store.Get(ctx, sess.ID)
	if err != nil {
		if errors.Is(err, profile.ErrNotFound) {
			return FromSession(sess), nil
		}
		return nil, err
	}
	return Merge(sess, rec), nil
}
