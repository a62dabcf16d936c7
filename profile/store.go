package profile

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Get when no document exists for the key.
var ErrNotFound = errors.New("profile: document not found")

// UnsubscribeFunc cancels a document subscription. It is safe to call
// more than once; after it returns no further callbacks fire.
type UnsubscribeFunc func()

// Store is the document-store contract the controller consumes.
// Documents are keyed by identity-provider account id.
type Store interface {
	// Get returns the document at key, or ErrNotFound.
	Get(ctx context.Context, key string) (*Record, error)

	// Set writes the document at key. With merge set, non-zero fields
	// of rec overlay the existing document (creating it when absent);
	// without merge the document is replaced wholesale.
	Set(ctx context.Context, key string, rec *Record, merge bool) error

	// Subscribe registers a change listener for the document at key.
	// The listener immediately receives the current document (nil when
	// absent), then every subsequent write in the store's own order.
	// Failures go to onError; delivery resumes if the store recovers.
	Subscribe(key string, onChange func(*Record), onError func(error)) UnsubscribeFunc

	// Delete removes the document at key. Deleting a missing document
	// is not an error.
	Delete(ctx context.Context, key string) error
}
