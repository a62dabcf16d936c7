package nav

import (
	"context"

	"go.uber.org/zap"

	"github.com/proggaming/authsync/identity"
)

// Navigator is the presentation-layer routing surface the reactor
// drives.
type Navigator interface {
	Current() Location
	NavigateTo(Location)
}

// Reactor subscribes to the raw identity-session stream (not the merged
// profile view, whose store round-trip must never delay navigation) and
// applies the verification gate on every transition.
type Reactor struct {
	client identity.Client
	nav    Navigator
	log    *zap.Logger

	// lastSignedOut remembers the session lineage currently being
	// terminated so re-evaluation cannot sign out twice. It is cleared
	// once the lineage ends (nil or trusted emission), making the next
	// unverified sign-in of the same account a fresh transition.
	lastSignedOut string
}

func NewReactor(client identity.Client, nav Navigator, log *zap.Logger) *Reactor {
	if log == nil {
		log = zap.NewNop()
	}
	return &Reactor{client: client, nav: nav, log: log}
}

// Run applies the gate to every session transition until ctx is done.
func (r *Reactor) Run(ctx context.Context) error {
	sessions := r.client.Sessions(ctx)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case sess, ok := <-sessions:
			if !ok {
				return nil
			}
			r.apply(ctx, sess)
		}
	}
}

func (r *Reactor) apply(ctx context.Context, sess *identity.Session) {
	if sess == nil || sess.Trusted() {
		r.lastSignedOut = ""
	}

	current := r.nav.Current()
	d := Decide(sess, current)

	if d.Redirect && d.RedirectTo != current {
		r.log.Debug("redirecting",
			zap.String("from", string(current)),
			zap.String("to", string(d.RedirectTo)),
		)
		r.nav.NavigateTo(d.RedirectTo)
	}

	if d.ForceSignOut && sess != nil && sess.ID != r.lastSignedOut {
		r.lastSignedOut = sess.ID
		r.log.Info("terminating unverified session", zap.String("session_id", sess.ID))
		// The sign-out emits a nil session, which re-enters this loop
		// and lands on the onboarding redirect; no recursion here.
		if err := r.client.SignOut(ctx); err != nil {
			r.log.Warn("forced sign-out failed", zap.Error(err))
		}
	}
}
