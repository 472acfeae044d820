// Package google implements the upstream Provider interface for Google OAuth 2.0.
package google

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"golang.org/x/oauth2"

	"github.com/giantswarm/mcp-auth-proxy/providers"
)

const (
	authURL     = "https://accounts.google.com/o/oauth2/v2/auth"
	tokenURL    = "https://oauth2.googleapis.com/token"
	userInfoURL = "https://www.googleapis.com/oauth2/v3/userinfo"
	revokeURL   = "https://oauth2.googleapis.com/revoke"
)

// Config holds Google provider configuration
type Config struct {
	// ClientID is the Google OAuth client ID
	ClientID string

	// ClientSecret is the Google OAuth client secret
	ClientSecret string

	// RedirectURL is the fixed callback URL registered with Google
	RedirectURL string

	// Scopes are the scopes requested from Google
	Scopes []string

	// HTTPClient is the HTTP client for API calls, http.DefaultClient if nil
	HTTPClient *http.Client
}

// Provider implements providers.Provider for Google.
type Provider struct {
	config      *oauth2.Config
	httpClient  *http.Client
	userInfoURL string
	revokeURL   string
}

var _ providers.Provider = (*Provider)(nil)

// New creates a Google provider
func New(cfg *Config) *Provider {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	return &Provider{
		config: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       cfg.Scopes,
			Endpoint: oauth2.Endpoint{
				AuthURL:  authURL,
				TokenURL: tokenURL,
			},
		},
		httpClient:  httpClient,
		userInfoURL: userInfoURL,
		revokeURL:   revokeURL,
	}
}

// Name returns the provider name
func (p *Provider) Name() string {
	return "google"
}

// AuthorizationURL builds the Google authorization URL
func (p *Provider) AuthorizationURL(state, codeChallenge, codeChallengeMethod string) (string, error) {
	if state == "" {
		return "", fmt.Errorf("state is required")
	}

	opts := []oauth2.AuthCodeOption{
		oauth2.AccessTypeOffline,
		oauth2.SetAuthURLParam("prompt", "consent"),
	}
	if codeChallenge != "" {
		opts = append(opts,
			oauth2.SetAuthURLParam("code_challenge", codeChallenge),
			oauth2.SetAuthURLParam("code_challenge_method", codeChallengeMethod),
		)
	}

	return p.config.AuthCodeURL(state, opts...), nil
}

// ExchangeCode exchanges an authorization code for tokens
func (p *Provider) ExchangeCode(ctx context.Context, code, codeVerifier string) (*oauth2.Token, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, p.httpClient)

	var opts []oauth2.AuthCodeOption
	if codeVerifier != "" {
		opts = append(opts, oauth2.SetAuthURLParam("code_verifier", codeVerifier))
	}

	token, err := p.config.Exchange(ctx, code, opts...)
	if err != nil {
		return nil, fmt.Errorf("google: code exchange failed: %w", err)
	}
	return token, nil
}

// ValidateToken retrieves the user's identity from the userinfo endpoint
func (p *Provider) ValidateToken(ctx context.Context, token *oauth2.Token) (*providers.UserInfo, error) {
	if token == nil || token.AccessToken == "" {
		return nil, fmt.Errorf("google: token is empty")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.userInfoURL, nil)
	if err != nil {
		return nil, fmt.Errorf("google: creating userinfo request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token.AccessToken)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("google: userinfo request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("google: userinfo returned status %d", resp.StatusCode)
	}

	var info providers.UserInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, fmt.Errorf("google: decoding userinfo: %w", err)
	}
	if info.ID == "" {
		return nil, fmt.Errorf("google: userinfo response missing subject")
	}

	return &info, nil
}

// RefreshToken exchanges a refresh token for a fresh access token
func (p *Provider) RefreshToken(ctx context.Context, refreshToken string) (*oauth2.Token, error) {
	if refreshToken == "" {
		return nil, fmt.Errorf("google: refresh token is empty")
	}

	ctx = context.WithValue(ctx, oauth2.HTTPClient, p.httpClient)
	source := p.config.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken})

	token, err := source.Token()
	if err != nil {
		return nil, fmt.Errorf("google: token refresh failed: %w", err)
	}

	// Google does not always rotate refresh tokens; preserve the lineage.
	if token.RefreshToken == "" {
		token.RefreshToken = refreshToken
	}

	return token, nil
}

// RevokeToken revokes an access or refresh token
func (p *Provider) RevokeToken(ctx context.Context, token string) error {
	if token == "" {
		return fmt.Errorf("google: token is empty")
	}

	form := url.Values{"token": {token}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.revokeURL, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("google: creating revoke request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("google: revoke request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("google: revoke returned status %d", resp.StatusCode)
	}

	return nil
}
