package identity

import (
	"errors"
	"fmt"
)

// Code classifies provider failures so callers can translate them into
// user-facing text without string-matching backend messages.
type Code string

const (
	CodeUserNotFound   Code = "user-not-found"
	CodeWrongSecret    Code = "wrong-secret"
	CodeEmailInUse     Code = "email-in-use"
	CodeWeakSecret     Code = "weak-secret"
	CodeInvalidEmail   Code = "invalid-email"
	CodeRateLimited    Code = "rate-limited"
	CodeNetworkFailure Code = "network-failure"
	CodePopupClosed    Code = "popup-closed"

	// CodeNoSession marks an invariant violation: a credential call
	// reported success but produced no session.
	CodeNoSession Code = "no-session"
)

// Error is a typed provider failure.
type Error struct {
	Code Code
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("identity: %s: %v", e.Code, e.Err)
	}
	return fmt.Sprintf("identity: %s", e.Code)
}

func (e *Error) Unwrap() error { return e.Err }

// NewError wraps err with a classification code.
func NewError(code Code, err error) *Error {
	return &Error{Code: code, Err: err}
}

// CodeOf extracts the classification code from err, or empty if err is
// not a provider error.
func CodeOf(err error) Code {
	var ie *Error
	if errors.As(err, &ie) {
		return ie.Code
	}
	return ""
}

// messages is the static lookup from provider codes to user-facing
// text. Unrecognized codes fall back to a generic message.
var messages = map[Code]string{
	CodeUserNotFound:   "No account exists for that email address.",
	CodeWrongSecret:    "Incorrect email or password.",
	CodeEmailInUse:     "An account with that email already exists.",
	CodeWeakSecret:     "That password is too weak. Use at least 6 characters.",
	CodeInvalidEmail:   "That email address is not valid.",
	CodeRateLimited:    "Too many attempts. Try again in a few minutes.",
	CodeNetworkFailure: "Network error. Check your connection and try again.",
	CodePopupClosed:    "Sign-in was cancelled before it completed.",
}

const genericMessage = "Something went wrong. Please try again."

// UserMessage translates a provider error into text suitable for a
// toast or alert. Invariant violations and unknown codes get the
// generic message.
func UserMessage(err error) string {
	if msg, ok := messages[CodeOf(err)]; ok {
		return msg
	}
	return genericMessage
}
