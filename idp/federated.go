package idp

import "context"

// FederatedIdentity is the claim set a federated provider asserts
// about an account.
type FederatedIdentity struct {
	Subject  string
	Email    string
	Name     string
	PhotoURL string
}

// Federated authenticates against a third-party identity source. The
// source is trusted to have verified mailbox ownership already.
type Federated interface {
	Authenticate(ctx context.Context) (*FederatedIdentity, error)
}
