package idp

import (
	"context"
	"errors"
	"fmt"

	"github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"

	"github.com/proggaming/authsync/config"
)

// OIDCProvider runs the authorization-code flow against one OpenID
// Connect issuer (Google in the default wiring) and turns a verified
// ID token into a FederatedIdentity.
type OIDCProvider struct {
	provider *oidc.Provider
	oauth    *oauth2.Config
}

// NewOIDCProviders discovers every configured issuer.
func NewOIDCProviders(ctx context.Context, configs map[string]config.OIDCProvider) (map[string]*OIDCProvider, error) {
	providers := make(map[string]*OIDCProvider)
	for name, cfg := range configs {
		provider, err := oidc.NewProvider(ctx, cfg.Issuer)
		if err != nil {
			return nil, fmt.Errorf("idp: discover provider %s: %w", name, err)
		}
		providers[name] = &OIDCProvider{
			provider: provider,
			oauth: &oauth2.Config{
				ClientID:     cfg.ClientID,
				ClientSecret: cfg.ClientSecret,
				Endpoint:     provider.Endpoint(),
				RedirectURL:  cfg.RedirectURL,
				Scopes:       []string{oidc.ScopeOpenID, "profile", "email"},
			},
		}
	}
	return providers, nil
}

// AuthCodeURL returns the issuer URL the browser is sent to.
func (p *OIDCProvider) AuthCodeURL(state string) string {
	return p.oauth.AuthCodeURL(state)
}

// Callback exchanges the authorization code and verifies the ID token.
func (p *OIDCProvider) Callback(ctx context.Context, code string) (*FederatedIdentity, error) {
	token, err := p.oauth.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("idp: code exchange failed: %w", err)
	}

	rawIDToken, ok := token.Extra("id_token").(string)
	if !ok {
		return nil, errors.New("idp: no id_token in token response")
	}

	verifier := p.provider.Verifier(&oidc.Config{ClientID: p.oauth.ClientID})
	idToken, err := verifier.Verify(ctx, rawIDToken)
	if err != nil {
		return nil, fmt.Errorf("idp: id token verification failed: %w", err)
	}

	var claims struct {
		Subject string `json:"sub"`
		Email   string `json:"email"`
		Name    string `json:"name"`
		Picture string `json:"picture"`
	}
	if err := idToken.Claims(&claims); err != nil {
		return nil, fmt.Errorf("idp: parse claims: %w", err)
	}

	return &FederatedIdentity{
		Subject:  claims.Subject,
		Email:    claims.Email,
		Name:     claims.Name,
		PhotoURL: claims.Picture,
	}, nil
}
