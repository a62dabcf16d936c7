package identity

// Provider identifies an authentication method linked to an account.
type Provider string

const (
	ProviderPassword Provider = "password"
	ProviderGoogle   Provider = "google"
)

// Federated reports whether the provider is a third-party identity
// source whose email ownership is verified externally.
func (p Provider) Federated() bool {
	return p != "" && p != ProviderPassword
}

// Session is the live authentication record for a signed-in account.
// It is an immutable snapshot: the provider replaces it wholesale on
// every sign-in/sign-out transition and never mutates it in place.
type Session struct {
	ID          string     `json:"id"`
	Email       string     `json:"email"`
	DisplayName string     `json:"display_name"`
	PhotoURL    string     `json:"photo_url"`
	Verified    bool       `json:"verified"`
	Providers   []Provider `json:"providers"`
}

// HasFederatedProvider reports whether any linked provider is federated.
// Federated identities bypass the email-verification requirement.
func (s *Session) HasFederatedProvider() bool {
	for _, p := range s.Providers {
		if p.Federated() {
			return true
		}
	}
	return false
}

// Trusted reports whether the session may reach protected screens:
// either the mailbox is verified or a federated provider vouches for it.
func (s *Session) Trusted() bool {
	return s.Verified || s.HasFederatedProvider()
}
