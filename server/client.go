package server

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"golang.org/x/crypto/bcrypt"

	"github.com/giantswarm/mcp-auth-proxy/security"
	"github.com/giantswarm/mcp-auth-proxy/storage"
)

// ClientRegistrationInput carries the fields of a dynamic client
// registration request (RFC 7591) the flow engine acts on.
type ClientRegistrationInput struct {
	// RedirectURIs are the requested redirect URIs, at least one required
	RedirectURIs []string

	// TokenEndpointAuthMethod is "none" for public clients; empty defaults
	// to "client_secret_basic"
	TokenEndpointAuthMethod string

	// ClientName is an optional human-readable name
	ClientName string

	// Scope is the space-separated scopes the client intends to request
	Scope string

	// ClientIP is the registering IP, used for the per-IP limit
	ClientIP string
}

// RegisterClient registers a downstream client and returns the stored
// record plus the plaintext secret (empty for public clients). Each call
// creates a fresh registration; registrations are never deduplicated, since
// every client instance registers independently.
//
// Every requested redirect URI must match the global allow-list. A URI that
// is itself a wildcard pattern is accepted only when it appears verbatim in
// the allow-list.
func (s *Server) RegisterClient(ctx context.Context, input *ClientRegistrationInput) (*storage.Client, string, error) {
	if input == nil || len(input.RedirectURIs) == 0 {
		return nil, "", flowError(ErrorCodeInvalidRedirectURI, "at least one redirect URI is required")
	}

	if err := s.clients.CheckIPLimit(ctx, input.ClientIP, s.config.MaxClientsPerIP); err != nil {
		s.audit(security.Event{
			Type:      security.EventClientRegistrationRejected,
			IPAddress: input.ClientIP,
			Details:   map[string]any{"reason": "ip_limit"},
		})
		return nil, "", flowError(ErrorCodeRateLimitExceeded, "too many registrations from this address")
	}

	for _, uri := range input.RedirectURIs {
		if slices.Contains(s.config.AllowedRedirectPatterns, uri) {
			continue
		}
		if err := security.ValidateRedirectURI(uri); err != nil {
			s.auditRegistrationRejected(input.ClientIP, uri)
			return nil, "", flowError(ErrorCodeInvalidRedirectURI, "redirect URI %q: %v", uri, err)
		}
		if !security.MatchesAnyPattern(s.config.AllowedRedirectPatterns, uri) {
			s.auditRegistrationRejected(input.ClientIP, uri)
			return nil, "", flowError(ErrorCodeInvalidRedirectURI, "redirect URI %q is not allowed", uri)
		}
	}

	if ferr := s.validateScope(input.Scope); ferr != nil {
		return nil, "", ferr
	}

	authMethod := input.TokenEndpointAuthMethod
	if authMethod == "" {
		authMethod = "client_secret_basic"
	}
	if authMethod != "none" && authMethod != "client_secret_basic" && authMethod != "client_secret_post" {
		return nil, "", flowError(ErrorCodeInvalidRequest,
			"token endpoint auth method %q is not supported", authMethod)
	}

	clientType := ClientTypeConfidential
	secret := ""
	secretHash := ""
	if authMethod == "none" {
		clientType = ClientTypePublic
	} else {
		secret = generateToken()
		hash, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
		if err != nil {
			return nil, "", fmt.Errorf("hashing client secret: %w", err)
		}
		secretHash = string(hash)
	}

	client := &storage.Client{
		ClientID:                generateToken(),
		ClientSecretHash:        secretHash,
		ClientType:              clientType,
		RedirectURIs:            slices.Clone(input.RedirectURIs),
		TokenEndpointAuthMethod: authMethod,
		GrantTypes:              []string{"authorization_code", "refresh_token"},
		ResponseTypes:           []string{"code"},
		ClientName:              input.ClientName,
		Scopes:                  s.config.SupportedScopes,
		RegistrationIP:          input.ClientIP,
		CreatedAt:               s.clock.Now(),
	}

	if err := s.clients.SaveClient(ctx, client); err != nil {
		return nil, "", fmt.Errorf("saving client: %w", err)
	}

	s.audit(security.Event{
		Type:      security.EventClientRegistered,
		ClientID:  client.ClientID,
		IPAddress: input.ClientIP,
		Details:   map[string]any{"client_type": clientType},
	})
	s.logger.Info("client registered",
		"client_id", client.ClientID,
		"client_type", clientType,
		"redirect_uris", len(client.RedirectURIs))

	return client, secret, nil
}

// GetClient looks up a registered client.
func (s *Server) GetClient(ctx context.Context, clientID string) (*storage.Client, error) {
	if clientID == "" {
		return nil, flowError(ErrorCodeInvalidClient, "client_id is required")
	}
	client, err := s.clients.GetClient(ctx, clientID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, flowError(ErrorCodeInvalidClient, "unknown client")
		}
		return nil, fmt.Errorf("looking up client: %w", err)
	}
	return client, nil
}

// ValidateClientCredentials verifies a confidential client's secret.
func (s *Server) ValidateClientCredentials(ctx context.Context, clientID, secret string) error {
	valid, err := s.clients.ValidateClientSecret(ctx, clientID, secret)
	if err != nil {
		return fmt.Errorf("validating client secret: %w", err)
	}
	if !valid {
		s.audit(security.Event{
			Type:     security.EventAuthFailure,
			ClientID: clientID,
			Details:  map[string]any{"reason": "bad_client_secret"},
		})
		return flowError(ErrorCodeInvalidClient, "client authentication failed")
	}
	return nil
}

func (s *Server) auditRegistrationRejected(ip, uri string) {
	s.audit(security.Event{
		Type:      security.EventClientRegistrationRejected,
		IPAddress: ip,
		Details:   map[string]any{"redirect_uri": uri},
	})
}
