// Package nav holds the verification gate and the reactor that applies
// it to every identity-session transition.
package nav

import "github.com/proggaming/authsync/identity"

// Location is an app route as the presentation layer reports it.
type Location string

const (
	LocationLanding    Location = "/"
	LocationOnboarding Location = "/onboarding"
	LocationHome       Location = "/home"
)

// entry reports whether the location is an unauthenticated screen
// (landing or onboarding).
func (l Location) entry() bool {
	return l == LocationLanding || l == LocationOnboarding
}

// Directive is the outcome of a gate decision.
type Directive struct {
	// RedirectTo is the target route; meaningful only when Redirect is
	// set. It is never the current location.
	RedirectTo Location
	Redirect   bool

	// ForceSignOut directs termination of the session: an unverified
	// password account must not linger half-authenticated.
	ForceSignOut bool
}

// Decide maps a session (nil when signed out) and the current location
// to a navigation directive. It is pure and idempotent: the same inputs
// always produce the same directive, and it never redirects to the
// location it was given, so re-evaluation cannot loop.
//
// Federated providers are trusted to have verified the mailbox, so they
// bypass the verification requirement; password accounts must prove
// ownership first.
func Decide(sess *identity.Session, current Location) Directive {
	if sess == nil {
		if !current.entry() {
			return Directive{RedirectTo: LocationOnboarding, Redirect: true}
		}
		return Directive{}
	}

	if sess.Trusted() {
		if current.entry() {
			return Directive{RedirectTo: LocationHome, Redirect: true}
		}
		return Directive{}
	}

	// Unverified password-only session.
	d := Directive{ForceSignOut: true}
	if !current.entry() {
		d.RedirectTo = LocationOnboarding
		d.Redirect = true
	}
	return d
}
