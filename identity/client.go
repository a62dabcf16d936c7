package identity

import "context"

// Client is the identity-provider contract the controller consumes.
// Implementations authenticate credentials, own the session lifecycle
// and broadcast every transition on the stream returned by Sessions.
type Client interface {
	// Sessions returns a stream of the current session, starting with
	// the present state (nil when signed out) and followed by every
	// subsequent transition. The channel is closed when ctx is done.
	// Each caller gets an independent stream.
	Sessions(ctx context.Context) <-chan *Session

	// Current returns the present session, or nil when signed out.
	Current() *Session

	// SignInWithPassword authenticates an existing password account.
	// Failures carry a Code (user-not-found, wrong-secret, ...).
	SignInWithPassword(ctx context.Context, email, secret string) (*Session, error)

	// SignUpWithPassword creates a password account and signs it in.
	// The new session starts unverified.
	SignUpWithPassword(ctx context.Context, email, secret string) (*Session, error)

	// SignInWithProvider runs a federated sign-in for the given
	// provider kind, creating the account on first use.
	SignInWithProvider(ctx context.Context, provider Provider) (*Session, error)

	// SignOut clears the current session and broadcasts nil.
	SignOut(ctx context.Context) error

	// SendVerificationEmail dispatches a mailbox-verification message
	// for the current session, linking back to returnURL.
	SendVerificationEmail(ctx context.Context, returnURL string) error

	// SendPasswordReset dispatches a password-reset message.
	SendPasswordReset(ctx context.Context, email string) error
}
