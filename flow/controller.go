// Package flow exposes the registration, login and reset entry points
// the presentation layer calls, and keeps the profile document in step
// with the identity provider.
package flow

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/proggaming/authsync/bounded"
	"github.com/proggaming/authsync/identity"
	"github.com/proggaming/authsync/profile"
	"github.com/proggaming/authsync/resolve"
)

// Hook runs before or after a credential flow. Pre-hooks receive a nil
// user.
type Hook func(ctx context.Context, user *resolve.User) error

// Controller reconciles identity-provider sessions with the profile
// store. Credential calls propagate their typed outcome synchronously;
// profile writes and verification email are bounded best-effort.
type Controller struct {
	client identity.Client
	store  profile.Store
	log    *zap.Logger

	limit     time.Duration
	returnURL string

	preHooks  []Hook
	postHooks []Hook
}

func NewController(client identity.Client, store profile.Store, log *zap.Logger) *Controller {
	if log == nil {
		log = zap.NewNop()
	}
	return &Controller{
		client: client,
		store:  store,
		log:    log,
		limit:  bounded.DefaultLimit,
	}
}

// SetOperationLimit overrides the bound applied to best-effort calls.
func (c *Controller) SetOperationLimit(d time.Duration) { c.limit = d }

// SetVerificationReturnURL sets the link target embedded in
// verification emails.
func (c *Controller) SetVerificationReturnURL(url string) { c.returnURL = url }

func (c *Controller) AddPreHook(h Hook)  { c.preHooks = append(c.preHooks, h) }
func (c *Controller) AddPostHook(h Hook) { c.postHooks = append(c.postHooks, h) }

// SignUpWithPassword registers a password account, seeds its profile
// document and dispatches the verification email. The session it
// returns is unverified; the gate will hold it at onboarding until the
// mailbox is proven.
func (c *Controller) SignUpWithPassword(ctx context.Context, email, secret string) (*resolve.User, error) {
	if err := c.runHooks(ctx, c.preHooks, nil); err != nil {
		return nil, err
	}

	sess, err := c.client.SignUpWithPassword(ctx, email, secret)
	if err != nil {
		return nil, err
	}
	if sess == nil {
		return nil, identity.NewError(identity.CodeNoSession, errors.New("sign-up succeeded without a session"))
	}

	c.ensureProfile(ctx, sess)

	if outcome, err := bounded.Run(ctx, c.limit, func(ctx context.Context) error {
		return c.client.SendVerificationEmail(ctx, c.returnURL)
	}); err != nil {
		c.log.Warn("verification email failed", zap.String("session_id", sess.ID), zap.Error(err))
	} else if outcome == bounded.OutcomePending {
		c.log.Warn("verification email still pending past bound", zap.String("session_id", sess.ID))
	}

	user := resolve.FromSession(sess)
	if err := c.runHooks(ctx, c.postHooks, user); err != nil {
		return nil, err
	}
	return user, nil
}

// SignInWithPassword authenticates an existing password account and
// returns the merged view. Credential failures surface verbatim; a
// missing or unreachable profile degrades to the identity-only view.
func (c *Controller) SignInWithPassword(ctx context.Context, email, secret string) (*resolve.User, error) {
	if err := c.runHooks(ctx, c.preHooks, nil); err != nil {
		return nil, err
	}

	sess, err := c.client.SignInWithPassword(ctx, email, secret)
	if err != nil {
		return nil, err
	}
	if sess == nil {
		return nil, identity.NewError(identity.CodeNoSession, errors.New("sign-in succeeded without a session"))
	}

	user := c.resolveBestEffort(ctx, sess)
	if err := c.runHooks(ctx, c.postHooks, user); err != nil {
		return nil, err
	}
	return user, nil
}

// SignInWithProvider runs a federated sign-in. First use creates both
// the provider account and the profile document; later sign-ins leave
// the document alone so progression survives.
func (c *Controller) SignInWithProvider(ctx context.Context, provider identity.Provider) (*resolve.User, error) {
	if err := c.runHooks(ctx, c.preHooks, nil); err != nil {
		return nil, err
	}

	sess, err := c.client.SignInWithProvider(ctx, provider)
	if err != nil {
		return nil, err
	}
	if sess == nil {
		return nil, identity.NewError(identity.CodeNoSession, errors.New("federated sign-in succeeded without a session"))
	}

	c.ensureProfile(ctx, sess)

	user := c.resolveBestEffort(ctx, sess)
	if err := c.runHooks(ctx, c.postHooks, user); err != nil {
		return nil, err
	}
	return user, nil
}

// SignOut terminates the current session. The resulting nil emission
// drives the onboarding redirect through the reactor.
func (c *Controller) SignOut(ctx context.Context) error {
	return c.client.SignOut(ctx)
}

// SendPasswordReset dispatches a reset email. Outcome propagates
// synchronously; there is no session to fall back on.
func (c *Controller) SendPasswordReset(ctx context.Context, email string) error {
	return c.client.SendPasswordReset(ctx, email)
}

// SendVerificationEmail re-dispatches the mailbox-verification message
// for the current session, bounded so a stalled mail backend cannot
// block the caller.
func (c *Controller) SendVerificationEmail(ctx context.Context) (bounded.Outcome, error) {
	return bounded.Run(ctx, c.limit, func(ctx context.Context) error {
		return c.client.SendVerificationEmail(ctx, c.returnURL)
	})
}

// UpdateProfile merge-writes the two user-editable fields. This is the
// only mutation path after the initial document write.
func (c *Controller) UpdateProfile(ctx context.Context, nickname, avatarURL string) error {
	sess := c.client.Current()
	if sess == nil {
		return identity.NewError(identity.CodeNoSession, errors.New("no signed-in session"))
	}
	return c.store.Set(ctx, sess.ID, &profile.Record{
		Nickname:  nickname,
		AvatarURL: avatarURL,
	}, true)
}

// DeleteProfile removes the profile document for the current session.
func (c *Controller) DeleteProfile(ctx context.Context) error {
	sess := c.client.Current()
	if sess == nil {
		return identity.NewError(identity.CodeNoSession, errors.New("no signed-in session"))
	}
	return c.store.Delete(ctx, sess.ID)
}

// ensureProfile creates the initial document if none exists yet. The
// write is bounded and best-effort: a slow store delays nobody, and an
// existing document is never touched, so progression fields cannot be
// reset by a repeat sign-in.
func (c *Controller) ensureProfile(ctx context.Context, sess *identity.Session) {
	outcome, err := bounded.Run(ctx, c.limit, func(ctx context.Context) error {
		_, err := c.store.Get(ctx, sess.ID)
		if err == nil {
			return nil
		}
		if !errors.Is(err, profile.ErrNotFound) {
			return err
		}
		return c.store.Set(ctx, sess.ID, profile.NewRecord(sess), false)
	})
	if err != nil {
		c.log.Warn("profile creation failed", zap.String("session_id", sess.ID), zap.Error(err))
	} else if outcome == bounded.OutcomePending {
		c.log.Warn("profile creation still pending past bound", zap.String("session_id", sess.ID))
	}
}

// resolveBestEffort merges the session with the stored document,
// falling back to the identity-only view when the store misbehaves.
func (c *Controller) resolveBestEffort(ctx context.Context, sess *identity.Session) *resolve.User {
	rec, err := c.store.Get(ctx, sess.ID)
	if err != nil {
		if !errors.Is(err, profile.ErrNotFound) {
			c.log.Warn("profile read failed; serving identity-only view",
				zap.String("session_id", sess.ID), zap.Error(err))
		}
		return resolve.FromSession(sess)
	}
	return resolve.Merge(sess, rec)
}

func (c *Controller) runHooks(ctx context.Context, hooks []Hook, user *resolve.User) error {
	for _, h := range hooks {
		if err := h(ctx, user); err != nil {
			return err
		}
	}
	return nil
}
