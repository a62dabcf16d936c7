// Package idp provides the built-in identity provider: password and
// federated authentication, session broadcast, and the mail hooks the
// controller depends on.
package idp

import (
	"time"

	"github.com/proggaming/authsync/identity"
)

// Account is the provider-side identity record.
type Account struct {
	ID          string `gorm:"primaryKey"`
	Email       string `gorm:"uniqueIndex"`
	DisplayName string
	PhotoURL    string
	Verified    bool
	CreatedAt   time.Time
	UpdatedAt   time.Time

	Credentials []Credential `gorm:"foreignKey:AccountID"`
}

func (Account) TableName() string { return "accounts" }

// Credential links an account to one authentication method. Password
// credentials store a bcrypt hash; federated credentials store the
// provider-scoped subject as identifier and no secret.
type Credential struct {
	ID         string            `gorm:"primaryKey"`
	AccountID  string            `gorm:"index"`
	Provider   identity.Provider `gorm:"index"`
	Identifier string            `gorm:"index"`
	SecretHash string
	CreatedAt  time.Time
}

func (Credential) TableName() string { return "account_credentials" }

// session builds the immutable session snapshot for an account.
func (a *Account) session() *identity.Session {
	providers := make([]identity.Provider, 0, len(a.Credentials))
	for _, c := range a.Credentials {
		providers = append(providers, c.Provider)
	}
	return &identity.Session{
		ID:          a.ID,
		Email:       a.Email,
		DisplayName: a.DisplayName,
		PhotoURL:    a.PhotoURL,
		Verified:    a.Verified,
		Providers:   providers,
	}
}
