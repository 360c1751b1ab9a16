// Package auth signs users in through an external OpenID Connect provider
// and keeps them signed in with server-side sessions.
package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"
)

const GoogleIssuer = "https://accounts.google.com"

var (
	ErrInvalidState       = errors.New("invalid state parameter")
	ErrCodeExchangeFailed = errors.New("code exchange failed")
	ErrEmailNotVerified   = errors.New("email not verified")
)

// Claims contains the ID token claims we use.
type Claims struct {
	Sub           string
	Email         string
	Name          string
	EmailVerified bool
}

// OIDCClient starts and completes an authorization-code login.
type OIDCClient interface {
	AuthURL(state string) string
	ExchangeCode(ctx context.Context, code string) (*Claims, error)
}

// ProviderClient implements OIDCClient against any discovery-capable
// issuer: Google in production, mockoidc in tests.
type ProviderClient struct {
	verifier    *oidc.IDTokenVerifier
	oauthConfig oauth2.Config
}

// NewProviderClient discovers issuer's endpoints and keys.
func NewProviderClient(ctx context.Context, issuer, clientID, clientSecret, redirectURL string) (*ProviderClient, error) {
	provider, err := oidc.NewProvider(ctx, issuer)
	if err != nil {
		return nil, fmt.Errorf("failed to create OIDC provider: %w", err)
	}
	return &ProviderClient{
		verifier: provider.Verifier(&oidc.Config{ClientID: clientID}),
		oauthConfig: oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURL,
			Endpoint:     provider.Endpoint(),
			Scopes:       []string{oidc.ScopeOpenID, "email", "profile"},
		},
	}, nil
}

// NewGoogleOIDCClient creates a client for Google sign-in.
func NewGoogleOIDCClient(ctx context.Context, clientID, clientSecret, redirectURL string) (*ProviderClient, error) {
	return NewProviderClient(ctx, GoogleIssuer, clientID, clientSecret, redirectURL)
}

func (c *ProviderClient) AuthURL(state string) string {
	return c.oauthConfig.AuthCodeURL(state)
}

// ExchangeCode trades the code for tokens and verifies the ID token.
func (c *ProviderClient) ExchangeCode(ctx context.Context, code string) (*Claims, error) {
	token, err := c.oauthConfig.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCodeExchangeFailed, err)
	}
	rawIDToken, ok := token.Extra("id_token").(string)
	if !ok {
		return nil, fmt.Errorf("%w: missing id_token in token response", ErrCodeExchangeFailed)
	}
	if c.verifier == nil {
		return nil, fmt.Errorf("%w: no verifier configured", ErrCodeExchangeFailed)
	}
	idToken, err := c.verifier.Verify(ctx, rawIDToken)
	if err != nil {
		return nil, fmt.Errorf("%w: id_token verification failed: %v", ErrCodeExchangeFailed, err)
	}

	var raw struct {
		Sub               string `json:"sub"`
		Email             string `json:"email"`
		EmailVerified     bool   `json:"email_verified"`
		Name              string `json:"name"`
		PreferredUsername string `json:"preferred_username"`
	}
	if err := idToken.Claims(&raw); err != nil {
		return nil, fmt.Errorf("%w: failed to parse claims: %v", ErrCodeExchangeFailed, err)
	}
	name := raw.Name
	if name == "" {
		name = raw.PreferredUsername
	}
	return &Claims{
		Sub:           raw.Sub,
		Email:         raw.Email,
		Name:          name,
		EmailVerified: raw.EmailVerified,
	}, nil
}
