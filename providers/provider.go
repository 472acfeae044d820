// Package providers defines the interface to the upstream identity provider
// and the identity information retrieved from it.
package providers

import (
	"context"

	"golang.org/x/oauth2"
)

// Provider is the upstream exchange client. It drives the authorization-code
// flow against the upstream identity provider using the proxy's fixed
// credential. Every method taking a context performs at most one network
// round trip and honors the context's deadline.
type Provider interface {
	// Name returns the provider's name for logging
	Name() string

	// AuthorizationURL builds the upstream authorization URL. state is the
	// proxy-generated state echoed back at the callback. codeChallenge and
	// codeChallengeMethod carry the upstream PKCE challenge and are empty
	// when upstream PKCE is disabled.
	AuthorizationURL(state, codeChallenge, codeChallengeMethod string) (string, error)

	// ExchangeCode exchanges an upstream authorization code for tokens.
	// codeVerifier is the upstream PKCE verifier, empty when upstream PKCE
	// is disabled.
	ExchangeCode(ctx context.Context, code, codeVerifier string) (*oauth2.Token, error)

	// ValidateToken retrieves the identity behind an upstream access token
	ValidateToken(ctx context.Context, token *oauth2.Token) (*UserInfo, error)

	// RefreshToken exchanges an upstream refresh token for a fresh token
	RefreshToken(ctx context.Context, refreshToken string) (*oauth2.Token, error)

	// RevokeToken revokes an upstream token
	RevokeToken(ctx context.Context, token string) error
}

// UserInfo holds the identity claims retrieved from the upstream provider.
type UserInfo struct {
	// ID is the provider-scoped stable user identifier
	ID string `json:"sub"`

	// Email is the user's email address
	Email string `json:"email"`

	// EmailVerified indicates whether the provider verified the email
	EmailVerified bool `json:"email_verified,omitempty"`

	// Name is the user's display name
	Name string `json:"name,omitempty"`

	// GivenName is the user's given name
	GivenName string `json:"given_name,omitempty"`

	// FamilyName is the user's family name
	FamilyName string `json:"family_name,omitempty"`

	// Picture is a URL to the user's profile picture
	Picture string `json:"picture,omitempty"`

	// Locale is the user's locale
	Locale string `json:"locale,omitempty"`
}
