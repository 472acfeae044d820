// Package mock provides a configurable Provider implementation for testing.
package mock

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"time"

	"golang.org/x/oauth2"

	"github.com/giantswarm/mcp-auth-proxy/providers"
)

// Provider is a mock upstream provider. Behavior can be overridden per
// method via the *Func fields; the zero overrides give a well-behaved
// provider that succeeds on every call. All methods are safe for
// concurrent use and record their last arguments for assertions.
type Provider struct {
	mu sync.Mutex

	// AuthorizationURLFunc overrides AuthorizationURL when set
	AuthorizationURLFunc func(state, codeChallenge, codeChallengeMethod string) (string, error)

	// ExchangeCodeFunc overrides ExchangeCode when set
	ExchangeCodeFunc func(ctx context.Context, code, codeVerifier string) (*oauth2.Token, error)

	// ValidateTokenFunc overrides ValidateToken when set
	ValidateTokenFunc func(ctx context.Context, token *oauth2.Token) (*providers.UserInfo, error)

	// RefreshTokenFunc overrides RefreshToken when set
	RefreshTokenFunc func(ctx context.Context, refreshToken string) (*oauth2.Token, error)

	// RevokeTokenFunc overrides RevokeToken when set
	RevokeTokenFunc func(ctx context.Context, token string) error

	// LastState is the state passed to the most recent AuthorizationURL call
	LastState string

	// LastCodeChallenge is the challenge passed to the most recent AuthorizationURL call
	LastCodeChallenge string

	// LastCodeVerifier is the verifier passed to the most recent ExchangeCode call
	LastCodeVerifier string

	// ExchangeCalls counts ExchangeCode invocations
	ExchangeCalls int

	// RefreshCalls counts RefreshToken invocations
	RefreshCalls int

	// RevokeCalls counts RevokeToken invocations
	RevokeCalls int
}

var _ providers.Provider = (*Provider)(nil)

// NewProvider creates a mock provider with default behavior
func NewProvider() *Provider {
	return &Provider{}
}

// Name returns the provider name
func (p *Provider) Name() string {
	return "mock"
}

// AuthorizationURL returns a stable fake upstream URL carrying the state
func (p *Provider) AuthorizationURL(state, codeChallenge, codeChallengeMethod string) (string, error) {
	p.mu.Lock()
	p.LastState = state
	p.LastCodeChallenge = codeChallenge
	fn := p.AuthorizationURLFunc
	p.mu.Unlock()

	if fn != nil {
		return fn(state, codeChallenge, codeChallengeMethod)
	}

	q := url.Values{"state": {state}}
	if codeChallenge != "" {
		q.Set("code_challenge", codeChallenge)
		q.Set("code_challenge_method", codeChallengeMethod)
	}
	return "https://upstream.example.com/auth?" + q.Encode(), nil
}

// ExchangeCode returns a fresh fake upstream token
func (p *Provider) ExchangeCode(ctx context.Context, code, codeVerifier string) (*oauth2.Token, error) {
	p.mu.Lock()
	p.ExchangeCalls++
	p.LastCodeVerifier = codeVerifier
	fn := p.ExchangeCodeFunc
	p.mu.Unlock()

	if fn != nil {
		return fn(ctx, code, codeVerifier)
	}

	return &oauth2.Token{
		AccessToken:  fmt.Sprintf("upstream-access-%s", code),
		TokenType:    "Bearer",
		RefreshToken: fmt.Sprintf("upstream-refresh-%s", code),
		Expiry:       time.Now().Add(time.Hour),
	}, nil
}

// ValidateToken returns a fixed test identity
func (p *Provider) ValidateToken(ctx context.Context, token *oauth2.Token) (*providers.UserInfo, error) {
	p.mu.Lock()
	fn := p.ValidateTokenFunc
	p.mu.Unlock()

	if fn != nil {
		return fn(ctx, token)
	}

	return &providers.UserInfo{
		ID:            "mock-user-1",
		Email:         "mock@example.com",
		EmailVerified: true,
		Name:          "Mock User",
	}, nil
}

// RefreshToken returns a fresh fake upstream token
func (p *Provider) RefreshToken(ctx context.Context, refreshToken string) (*oauth2.Token, error) {
	p.mu.Lock()
	p.RefreshCalls++
	fn := p.RefreshTokenFunc
	p.mu.Unlock()

	if fn != nil {
		return fn(ctx, refreshToken)
	}

	return &oauth2.Token{
		AccessToken:  fmt.Sprintf("upstream-access-refreshed-%d", time.Now().UnixNano()),
		TokenType:    "Bearer",
		RefreshToken: refreshToken,
		Expiry:       time.Now().Add(time.Hour),
	}, nil
}

// RevokeToken succeeds unless overridden
func (p *Provider) RevokeToken(ctx context.Context, token string) error {
	p.mu.Lock()
	p.RevokeCalls++
	fn := p.RevokeTokenFunc
	p.mu.Unlock()

	if fn != nil {
		return fn(ctx, token)
	}
	return nil
}
