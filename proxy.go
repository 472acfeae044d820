// Package authproxy is an OAuth 2.1 authorization-server façade. It lets
// clients that expect dynamic client registration (RFC 7591), PKCE
// (RFC 7636), resource indicators (RFC 8707), and loopback redirects
// authenticate against an upstream identity provider that supports none of
// these. The proxy registers clients dynamically, brokers the
// authorization-code flow against the upstream provider with its single
// fixed credential, and issues opaque proxy-scoped bearer tokens that the
// Resource Guard middleware validates in front of the protected endpoint.
package authproxy

import (
	"fmt"

	"github.com/giantswarm/mcp-auth-proxy/providers/google"
	"github.com/giantswarm/mcp-auth-proxy/security"
	"github.com/giantswarm/mcp-auth-proxy/server"
	"github.com/giantswarm/mcp-auth-proxy/storage/memory"
)

// New wires a ready-to-mount Handler from configuration: an in-memory
// store, the Google upstream provider, and the flow engine. Applications
// needing a different provider or store compose server.New and NewHandler
// directly.
func New(config *Config) (*Handler, error) {
	if config == nil {
		return nil, fmt.Errorf("config is required")
	}
	config.applyDefaults()

	if config.Upstream.ClientID == "" || config.Upstream.ClientSecret == "" {
		return nil, fmt.Errorf("upstream client credentials are required")
	}

	provider := google.New(&google.Config{
		ClientID:     config.Upstream.ClientID,
		ClientSecret: config.Upstream.ClientSecret,
		RedirectURL:  config.BaseURL + config.Upstream.RedirectPath,
		Scopes:       config.Upstream.Scopes,
		HTTPClient:   config.HTTPClient,
	})

	store := memory.New()

	auditor := security.NewAuditor(config.Logger, config.EnableAuditLog)

	srv, err := server.New(provider, store, store, store, &server.Config{
		Issuer:                  config.BaseURL,
		Resource:                config.Resource(),
		SupportedScopes:         config.SupportedScopes,
		AllowedRedirectPatterns: config.AllowedRedirectPatterns,
		DisableUpstreamPKCE:     config.DisableUpstreamPKCE,
		TrustProxy:              config.TrustProxy,
		TrustedProxyCount:       config.TrustedProxyCount,
	}, config.Logger, server.WithAuditor(auditor))
	if err != nil {
		store.Stop()
		return nil, err
	}

	h := NewHandler(srv, config)
	h.store = store
	return h, nil
}
