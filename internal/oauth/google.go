// Package oauth runs the authorization-code sign-in against an OpenID
// Connect provider and turns the verified ID token into an identity.Profile.
package oauth

import (
	"context"
	"errors"
	"fmt"

	"cryptovault/internal/domain"
	"cryptovault/internal/identity"

	"github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"
)

// ErrNoIDToken is returned when the token response carries no id_token
var ErrNoIDToken = errors.New("token response has no id_token")

// Provider is an OAuth sign-in provider
type Provider interface {
	AuthCodeURL(state string) string
	Exchange(ctx context.Context, code string) (identity.Profile, error)
}

// Google signs users in with Google accounts
type Google struct {
	config   *oauth2.Config
	verifier *oidc.IDTokenVerifier
}

// NewGoogle discovers the issuer's endpoints and keys
func NewGoogle(ctx context.Context, issuer, clientID, clientSecret, redirectURL string) (*Google, error) {
	provider, err := oidc.NewProvider(ctx, issuer)
	if err != nil {
		return nil, fmt.Errorf("discover oidc provider %s: %w", issuer, err)
	}
	return &Google{
		config: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURL,
			Endpoint:     provider.Endpoint(),
			Scopes:       []string{oidc.ScopeOpenID, "email", "profile"},
		},
		verifier: provider.Verifier(&oidc.Config{ClientID: clientID}),
	}, nil
}

// AuthCodeURL returns the consent page URL carrying state
func (g *Google) AuthCodeURL(state string) string {
	return g.config.AuthCodeURL(state, oauth2.SetAuthURLParam("prompt", "select_account"))
}

// Exchange trades the code for tokens and verifies the ID token
func (g *Google) Exchange(ctx context.Context, code string) (identity.Profile, error) {
	tok, err := g.config.Exchange(ctx, code)
	if err != nil {
		return identity.Profile{}, fmt.Errorf("exchange code: %w", err)
	}
	rawIDToken, ok := tok.Extra("id_token").(string)
	if !ok || rawIDToken == "" {
		return identity.Profile{}, ErrNoIDToken
	}
	idt, err := g.verifier.Verify(ctx, rawIDToken)
	if err != nil {
		return identity.Profile{}, fmt.Errorf("verify id_token: %w", err)
	}
	var claims struct {
		Email         string `json:"email"`
		EmailVerified bool   `json:"email_verified"`
		Name          string `json:"name"`
		Picture       string `json:"picture"`
	}
	if err := idt.Claims(&claims); err != nil {
		return identity.Profile{}, fmt.Errorf("parse claims: %w", err)
	}
	if !claims.EmailVerified {
		claims.Email = "" // unverified addresses cannot anchor an account
	}
	return identity.Profile{
		Email:             claims.Email,
		Name:              claims.Name,
		AvatarURL:         claims.Picture,
		Provider:          domain.ProviderGoogle,
		ProviderAccountID: idt.Subject,
	}, nil
}
