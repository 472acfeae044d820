package authproxy

import (
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
)

// Environment variable names for LoadConfigFromEnv.
const (
	// EnvBaseURL is the proxy's own base URL
	EnvBaseURL = "BASE_URL"

	// EnvMCPPath is the mount path of the protected resource
	EnvMCPPath = "MCP_PATH"

	// EnvUpstreamClientID is the fixed upstream OAuth client ID
	EnvUpstreamClientID = "UPSTREAM_CLIENT_ID"

	// EnvUpstreamClientSecret is the fixed upstream OAuth client secret
	EnvUpstreamClientSecret = "UPSTREAM_CLIENT_SECRET"

	// EnvUpstreamRedirectPath is the path of the fixed upstream callback
	EnvUpstreamRedirectPath = "UPSTREAM_REDIRECT_PATH"

	// EnvRequiredScopes is the space-separated list of supported scopes
	EnvRequiredScopes = "REQUIRED_SCOPES"

	// EnvAllowedClientRedirectURIs is the semicolon-separated redirect allow-list
	EnvAllowedClientRedirectURIs = "ALLOWED_CLIENT_REDIRECT_URIS"
)

// Defaults applied by LoadConfigFromEnv.
const (
	// DefaultBaseURL is the development base URL
	DefaultBaseURL = "http://localhost:8005"

	// DefaultMCPPath is the default protected resource mount path
	DefaultMCPPath = "/mcp"

	// DefaultAllowedClientRedirectURIs admits loopback redirects on any port
	DefaultAllowedClientRedirectURIs = "http://localhost:*;http://127.0.0.1:*"
)

// UpstreamConfig holds the fixed upstream provider credential. This is the
// only credential ever presented to the upstream provider; downstream
// client secrets exist purely between client and proxy.
type UpstreamConfig struct {
	// ClientID is the upstream OAuth client ID
	ClientID string

	// ClientSecret is the upstream OAuth client secret
	ClientSecret string

	// RedirectPath is the proxy-side callback path registered with the
	// upstream provider, default "/auth/callback"
	RedirectPath string

	// Scopes are the scopes requested from the upstream provider
	Scopes []string
}

// RateLimitConfig configures per-IP rate limiting on the registration and
// token endpoints.
type RateLimitConfig struct {
	// RequestsPerSecond is the sustained rate per IP, default 5
	RequestsPerSecond float64

	// Burst is the burst size per IP, default 10
	Burst int
}

// Config is the top-level proxy configuration.
type Config struct {
	// BaseURL is the proxy's externally visible base URL
	BaseURL string

	// MCPPath is the mount path of the protected resource. The canonical
	// resource identifier is BaseURL joined with MCPPath, no trailing slash.
	MCPPath string

	// SupportedScopes lists the scopes clients may request
	SupportedScopes []string

	// AllowedRedirectPatterns is the registration allow-list,
	// e.g. "http://localhost:*"
	AllowedRedirectPatterns []string

	// Upstream is the fixed upstream provider credential
	Upstream UpstreamConfig

	// DisableUpstreamPKCE turns off the second PKCE layer on the upstream
	// exchange
	DisableUpstreamPKCE bool

	// RateLimit configures per-IP rate limits
	RateLimit RateLimitConfig

	// TrustProxy enables client IP extraction from proxy headers
	TrustProxy bool

	// TrustedProxyCount is the number of trusted proxies, used with TrustProxy
	TrustedProxyCount int

	// EnableAuditLog turns on security audit logging
	EnableAuditLog bool

	// Logger is the structured logger, slog.Default if nil
	Logger *slog.Logger

	// HTTPClient is used for upstream calls, http.DefaultClient if nil
	HTTPClient *http.Client
}

// Resource returns the canonical protected resource identifier: the base
// URL joined with the MCP path, without a trailing slash. Tokens are bound
// to this exact string.
func (c *Config) Resource() string {
	return strings.TrimSuffix(c.BaseURL, "/") + c.MCPPath
}

// LoadConfigFromEnv builds a Config from environment variables, applying
// development defaults for everything except the upstream credential.
func LoadConfigFromEnv() (*Config, error) {
	upstreamClientID := os.Getenv(EnvUpstreamClientID)
	upstreamClientSecret := os.Getenv(EnvUpstreamClientSecret)
	if upstreamClientID == "" || upstreamClientSecret == "" {
		return nil, fmt.Errorf("%s and %s are required", EnvUpstreamClientID, EnvUpstreamClientSecret)
	}

	cfg := &Config{
		BaseURL:  envOr(EnvBaseURL, DefaultBaseURL),
		MCPPath:  envOr(EnvMCPPath, DefaultMCPPath),
		Upstream: UpstreamConfig{ClientID: upstreamClientID, ClientSecret: upstreamClientSecret},
	}

	cfg.BaseURL = strings.TrimSuffix(cfg.BaseURL, "/")
	cfg.Upstream.RedirectPath = envOr(EnvUpstreamRedirectPath, "/auth/callback")

	scopes := envOr(EnvRequiredScopes,
		"openid https://www.googleapis.com/auth/userinfo.email https://www.googleapis.com/auth/userinfo.profile")
	cfg.SupportedScopes = strings.Fields(scopes)
	cfg.Upstream.Scopes = cfg.SupportedScopes

	patterns := envOr(EnvAllowedClientRedirectURIs, DefaultAllowedClientRedirectURIs)
	for _, p := range strings.Split(patterns, ";") {
		if p = strings.TrimSpace(p); p != "" {
			cfg.AllowedRedirectPatterns = append(cfg.AllowedRedirectPatterns, p)
		}
	}

	return cfg, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func (c *Config) applyDefaults() {
	if c.MCPPath == "" {
		c.MCPPath = DefaultMCPPath
	}
	if c.Upstream.RedirectPath == "" {
		c.Upstream.RedirectPath = "/auth/callback"
	}
	if c.RateLimit.RequestsPerSecond == 0 {
		c.RateLimit.RequestsPerSecond = 5
	}
	if c.RateLimit.Burst == 0 {
		c.RateLimit.Burst = 10
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	if c.HTTPClient == nil {
		c.HTTPClient = http.DefaultClient
	}
}
