package server

import (
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"
)

// PKCE code challenge methods (RFC 7636). Only S256 is accepted.
const (
	// PKCEMethodS256 is the SHA-256 code challenge method
	PKCEMethodS256 = "S256"
)

// Client types.
const (
	// ClientTypePublic is a client that cannot keep a secret (native apps)
	ClientTypePublic = "public"

	// ClientTypeConfidential is a client that authenticates with a secret
	ClientTypeConfidential = "confidential"
)

// Endpoint paths served by the proxy.
const (
	// PathAuthorize is the authorization endpoint path
	PathAuthorize = "/authorize"

	// PathToken is the token endpoint path
	PathToken = "/token"

	// PathRegister is the dynamic client registration endpoint path
	PathRegister = "/register"

	// PathCallback is the fixed upstream callback path
	PathCallback = "/auth/callback"

	// PathProtectedResourceMetadata is the RFC 9728 metadata path
	PathProtectedResourceMetadata = "/.well-known/oauth-protected-resource"

	// PathAuthorizationServerMetadata is the RFC 8414 metadata path
	PathAuthorizationServerMetadata = "/.well-known/oauth-authorization-server"
)

// Config holds the proxy's flow engine configuration. It is read-only after
// New; the Credential Store of the system is this struct plus the provider's
// fixed upstream credential.
type Config struct {
	// Issuer is the proxy's own base URL, e.g. "http://localhost:8005"
	Issuer string

	// Resource is the canonical identifier of the protected resource.
	// Tokens are bound to this exact string; comparison never normalizes
	// trailing slashes.
	Resource string

	// SupportedScopes lists the scopes clients may request. Empty allows all.
	SupportedScopes []string

	// AllowedRedirectPatterns is the global allow-list of redirect URI
	// patterns accepted at registration, e.g. "http://localhost:*".
	AllowedRedirectPatterns []string

	// DisableUpstreamPKCE turns off the second, independently generated
	// PKCE layer on the upstream exchange. The downstream client's
	// challenge is never forwarded upstream either way; disabling only
	// matters for upstream providers that reject PKCE parameters.
	// Default: false (upstream PKCE enabled)
	DisableUpstreamPKCE bool

	// PendingAuthorizationTTL bounds how long a flow may sit between
	// /authorize and the upstream callback.
	// Default: 10 minutes
	PendingAuthorizationTTL time.Duration

	// AuthorizationCodeTTL bounds how long an issued code may sit between
	// the callback redirect and /token.
	// Default: 10 minutes
	AuthorizationCodeTTL time.Duration

	// AccessTokenTTL is the proxy bearer token lifetime.
	// Default: 1 hour
	AccessTokenTTL time.Duration

	// RefreshTokenTTL is the proxy refresh token lifetime.
	// Default: 90 days
	RefreshTokenTTL time.Duration

	// UpstreamTimeout bounds each round trip to the upstream provider.
	// Default: 30 seconds
	UpstreamTimeout time.Duration

	// MaxClientsPerIP limits registrations per IP address.
	// Default: 10
	MaxClientsPerIP int

	// TrustProxy enables X-Forwarded-For / X-Real-IP extraction. Only
	// enable behind a trusted reverse proxy.
	// Default: false
	TrustProxy bool

	// TrustedProxyCount is the number of proxies in front of the server,
	// used with TrustProxy.
	// Default: 1
	TrustedProxyCount int
}

// applyDefaults fills zero values with the defaults above.
func (c *Config) applyDefaults() {
	if c.PendingAuthorizationTTL == 0 {
		c.PendingAuthorizationTTL = 10 * time.Minute
	}
	if c.AuthorizationCodeTTL == 0 {
		c.AuthorizationCodeTTL = 10 * time.Minute
	}
	if c.AccessTokenTTL == 0 {
		c.AccessTokenTTL = time.Hour
	}
	if c.RefreshTokenTTL == 0 {
		c.RefreshTokenTTL = 90 * 24 * time.Hour
	}
	if c.UpstreamTimeout == 0 {
		c.UpstreamTimeout = 30 * time.Second
	}
	if c.MaxClientsPerIP == 0 {
		c.MaxClientsPerIP = 10
	}
	if c.TrustedProxyCount == 0 {
		c.TrustedProxyCount = 1
	}
}

// validate checks the configuration for contradictions.
func (c *Config) validate(logger *slog.Logger) error {
	if c.Issuer == "" {
		return fmt.Errorf("issuer is required")
	}
	u, err := url.Parse(c.Issuer)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("issuer %q is not an absolute URL", c.Issuer)
	}
	if c.Resource == "" {
		return fmt.Errorf("resource identifier is required")
	}
	if strings.HasSuffix(c.Resource, "/") {
		logger.Warn("resource identifier has a trailing slash; clients must send the identical string",
			"resource", c.Resource)
	}
	if c.TrustProxy {
		logger.Warn("trusting proxy headers for client IPs; only enable behind a trusted reverse proxy",
			"trusted_proxy_count", c.TrustedProxyCount)
	}
	return nil
}

// AuthorizationEndpoint returns the absolute authorization endpoint URL
func (c *Config) AuthorizationEndpoint() string {
	return strings.TrimSuffix(c.Issuer, "/") + PathAuthorize
}

// TokenEndpoint returns the absolute token endpoint URL
func (c *Config) TokenEndpoint() string {
	return strings.TrimSuffix(c.Issuer, "/") + PathToken
}

// RegistrationEndpoint returns the absolute registration endpoint URL
func (c *Config) RegistrationEndpoint() string {
	return strings.TrimSuffix(c.Issuer, "/") + PathRegister
}

// CallbackEndpoint returns the absolute upstream callback URL
func (c *Config) CallbackEndpoint() string {
	return strings.TrimSuffix(c.Issuer, "/") + PathCallback
}

// ProtectedResourceMetadataEndpoint returns the absolute RFC 9728 metadata URL
func (c *Config) ProtectedResourceMetadataEndpoint() string {
	return strings.TrimSuffix(c.Issuer, "/") + PathProtectedResourceMetadata
}
