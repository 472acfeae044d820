package server

import (
	"context"
	"errors"
	"fmt"
	"net/url"

	"golang.org/x/oauth2"

	"github.com/giantswarm/mcp-auth-proxy/providers"
	"github.com/giantswarm/mcp-auth-proxy/security"
	"github.com/giantswarm/mcp-auth-proxy/storage"
)

// AuthorizationRequest carries the query parameters of an /authorize call.
type AuthorizationRequest struct {
	// ClientID is the registered client identifier
	ClientID string

	// RedirectURI is where the client wants the code delivered
	RedirectURI string

	// Scope is the space-separated scopes requested
	Scope string

	// Resource is the resource indicator (RFC 8707), may be empty
	Resource string

	// CodeChallenge is the client's PKCE challenge
	CodeChallenge string

	// CodeChallengeMethod is the client's PKCE method, must be S256
	CodeChallengeMethod string

	// ClientState is the client's own state parameter, echoed back untouched
	ClientState string

	// ClientIP is the requester's IP for auditing
	ClientIP string
}

// TokenGrant is the outcome of a successful token endpoint grant.
type TokenGrant struct {
	// AccessToken is the proxy-issued bearer token
	AccessToken string

	// RefreshToken is the proxy-issued refresh token, empty when the
	// upstream provider issued none
	RefreshToken string

	// ExpiresIn is the bearer token lifetime in seconds
	ExpiresIn int64

	// Scope is the space-separated scopes granted
	Scope string

	// Resource is the resource identifier the token is bound to
	Resource string
}

// ValidateAuthorizationTarget checks the parts of an authorization request
// that must hold before the redirect URI may be trusted as an error
// delivery target: the client must exist and the redirect URI must match
// its registration. Failures here must be answered directly, never by
// redirecting.
func (s *Server) ValidateAuthorizationTarget(ctx context.Context, clientID, redirectURI string) error {
	if clientID == "" {
		return flowError(ErrorCodeInvalidClient, "client_id is required")
	}

	client, err := s.clients.GetClient(ctx, clientID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return flowError(ErrorCodeInvalidClient, "unknown client")
		}
		return fmt.Errorf("looking up client: %w", err)
	}

	if err := security.ValidateRedirectURI(redirectURI); err != nil {
		return flowError(ErrorCodeInvalidRedirectURI, "%v", err)
	}
	if !redirectURIRegistered(client, redirectURI) {
		s.audit(security.Event{
			Type:     security.EventInvalidRedirect,
			ClientID: clientID,
			Details:  map[string]any{"redirect_uri": redirectURI},
		})
		return flowError(ErrorCodeInvalidRedirectURI, "redirect URI is not registered for this client")
	}

	return nil
}

// StartAuthorization validates an authorization request, records a pending
// authorization keyed by a fresh proxy state, and returns the upstream
// authorization URL to redirect the user agent to.
//
// Callers must have run ValidateAuthorizationTarget first; errors returned
// here occur after the redirect target is known and should be delivered to
// the client's redirect URI as error parameters.
func (s *Server) StartAuthorization(ctx context.Context, req *AuthorizationRequest) (string, error) {
	if err := s.ValidateAuthorizationTarget(ctx, req.ClientID, req.RedirectURI); err != nil {
		return "", err
	}

	if req.CodeChallenge == "" {
		return "", flowError(ErrorCodeInvalidRequest, "code_challenge is required")
	}
	if req.CodeChallengeMethod != PKCEMethodS256 {
		return "", flowError(ErrorCodeInvalidRequest,
			"code_challenge_method %q is not supported, use S256", req.CodeChallengeMethod)
	}
	if ferr := s.validateScope(req.Scope); ferr != nil {
		return "", ferr
	}
	if ferr := s.validateResource(req.Resource); ferr != nil {
		return "", ferr
	}

	resource := req.Resource
	if resource == "" {
		resource = s.config.Resource
	}

	proxyState := generateToken()

	upstreamVerifier := ""
	upstreamChallenge := ""
	upstreamMethod := ""
	if !s.config.DisableUpstreamPKCE {
		upstreamVerifier = oauth2.GenerateVerifier()
		upstreamChallenge = oauth2.S256ChallengeFromVerifier(upstreamVerifier)
		upstreamMethod = PKCEMethodS256
	}

	now := s.clock.Now()
	pending := &storage.PendingAuthorization{
		ProxyState:           proxyState,
		ClientID:             req.ClientID,
		ClientRedirectURI:    req.RedirectURI,
		ClientState:          req.ClientState,
		CodeChallenge:        req.CodeChallenge,
		CodeChallengeMethod:  req.CodeChallengeMethod,
		Scope:                req.Scope,
		Resource:             resource,
		UpstreamCodeVerifier: upstreamVerifier,
		CreatedAt:            now,
		ExpiresAt:            now.Add(s.config.PendingAuthorizationTTL),
	}
	if err := s.flows.SavePendingAuthorization(ctx, pending); err != nil {
		return "", fmt.Errorf("saving pending authorization: %w", err)
	}

	authURL, err := s.provider.AuthorizationURL(proxyState, upstreamChallenge, upstreamMethod)
	if err != nil {
		return "", fmt.Errorf("building upstream authorization URL: %w", err)
	}

	s.audit(security.Event{
		Type:      security.EventAuthorizationStarted,
		ClientID:  req.ClientID,
		IPAddress: req.ClientIP,
		Details:   map[string]any{"scope": req.Scope, "resource": resource},
	})
	s.logger.Info("authorization flow started",
		"client_id", req.ClientID,
		"resource", resource,
		"upstream_pkce", upstreamVerifier != "")

	return authURL, nil
}

// HandleUpstreamCallback processes the upstream provider's redirect back to
// the proxy. It consumes the pending authorization (single use), exchanges
// the upstream code for tokens, issues a proxy authorization code, and
// returns the URL to redirect the user agent to.
//
// When the returned URL is non-empty the caller must redirect to it even if
// an error is also returned; the URL then carries the error to the client's
// own redirect URI. An empty URL with an error means no redirect target is
// trusted and the error must be answered directly.
func (s *Server) HandleUpstreamCallback(ctx context.Context, proxyState, code, upstreamErr, upstreamErrDescription string) (string, error) {
	if proxyState == "" {
		return "", flowError(ErrorCodeInvalidState, "state is required")
	}

	pending, err := s.flows.ConsumePendingAuthorization(ctx, proxyState)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			s.audit(security.Event{
				Type:    security.EventStateMismatch,
				Details: map[string]any{"reason": "unknown_or_expired_state"},
			})
			return "", flowError(ErrorCodeInvalidState, "unknown or expired authorization state")
		}
		return "", fmt.Errorf("consuming pending authorization: %w", err)
	}

	// The redirect target is trusted from here on; all failures are
	// delivered to the client's redirect URI.
	if upstreamErr != "" {
		errCode := ErrorCodeUpstreamError
		if upstreamErr == ErrorCodeAccessDenied {
			errCode = ErrorCodeAccessDenied
		}
		ferr := flowError(errCode, "upstream provider returned %q", upstreamErr)
		s.auditUpstreamFailure(pending.ClientID, upstreamErr, upstreamErrDescription)
		return errorRedirectURL(pending, ferr), ferr
	}
	if code == "" {
		ferr := flowError(ErrorCodeUpstreamError, "upstream provider returned no authorization code")
		s.auditUpstreamFailure(pending.ClientID, "missing_code", "")
		return errorRedirectURL(pending, ferr), ferr
	}

	exchangeCtx, cancel := context.WithTimeout(ctx, s.config.UpstreamTimeout)
	defer cancel()

	upstreamToken, err := s.provider.ExchangeCode(exchangeCtx, code, pending.UpstreamCodeVerifier)
	if err != nil {
		ferr := flowError(ErrorCodeUpstreamError, "upstream code exchange failed")
		s.auditUpstreamFailure(pending.ClientID, "exchange_failed", err.Error())
		s.logger.Error("upstream code exchange failed", "client_id", pending.ClientID, "error", err)
		return errorRedirectURL(pending, ferr), ferr
	}

	userInfo, err := s.provider.ValidateToken(exchangeCtx, upstreamToken)
	if err != nil {
		ferr := flowError(ErrorCodeUpstreamError, "retrieving upstream identity failed")
		s.auditUpstreamFailure(pending.ClientID, "userinfo_failed", err.Error())
		s.logger.Error("upstream identity retrieval failed", "client_id", pending.ClientID, "error", err)
		return errorRedirectURL(pending, ferr), ferr
	}

	now := s.clock.Now()
	proxyCode := generateToken()
	record := &storage.AuthorizationCode{
		Code:                proxyCode,
		ClientID:            pending.ClientID,
		RedirectURI:         pending.ClientRedirectURI,
		CodeChallenge:       pending.CodeChallenge,
		CodeChallengeMethod: pending.CodeChallengeMethod,
		Scope:               pending.Scope,
		Resource:            pending.Resource,
		UpstreamToken:       upstreamToken,
		UserInfo:            userInfo,
		CreatedAt:           now,
		ExpiresAt:           now.Add(s.config.AuthorizationCodeTTL),
	}
	if err := s.flows.SaveAuthorizationCode(ctx, record); err != nil {
		ferr := flowError(ErrorCodeServerError, "storing authorization code failed")
		return errorRedirectURL(pending, ferr), fmt.Errorf("saving authorization code: %w", err)
	}

	s.audit(security.Event{
		Type:     security.EventAuthorizationCodeIssued,
		UserID:   userInfo.ID,
		ClientID: pending.ClientID,
	})
	s.logger.Info("authorization code issued", "client_id", pending.ClientID)

	u, err := url.Parse(pending.ClientRedirectURI)
	if err != nil {
		return "", fmt.Errorf("parsing client redirect URI: %w", err)
	}
	q := u.Query()
	q.Set("code", proxyCode)
	if pending.ClientState != "" {
		q.Set("state", pending.ClientState)
	}
	u.RawQuery = q.Encode()

	return u.String(), nil
}

// ExchangeAuthorizationCode implements the authorization_code grant: it
// consumes the single-use proxy code, verifies the client's PKCE verifier
// against the stored challenge, and issues a bearer token wrapping the
// upstream tokens. The upstream tokens themselves never reach the client.
func (s *Server) ExchangeAuthorizationCode(ctx context.Context, code, clientID, redirectURI, codeVerifier string) (*TokenGrant, error) {
	if code == "" || clientID == "" {
		return nil, flowError(ErrorCodeInvalidRequest, "code and client_id are required")
	}

	record, err := s.flows.ConsumeAuthorizationCode(ctx, code)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			// Unknown, expired, and replayed codes are indistinguishable.
			return nil, flowError(ErrorCodeInvalidGrant, "invalid authorization code")
		}
		return nil, fmt.Errorf("consuming authorization code: %w", err)
	}

	if record.ClientID != clientID {
		s.audit(security.Event{
			Type:     security.EventAuthFailure,
			ClientID: clientID,
			Details:  map[string]any{"reason": "code_client_mismatch"},
		})
		return nil, flowError(ErrorCodeInvalidGrant, "invalid authorization code")
	}
	if redirectURI != "" && redirectURI != record.RedirectURI {
		return nil, flowError(ErrorCodeInvalidGrant, "redirect_uri does not match the authorization request")
	}

	if ferr := verifyPKCE(codeVerifier, record.CodeChallenge, record.CodeChallengeMethod); ferr != nil {
		s.audit(security.Event{
			Type:     security.EventPKCEValidationFailed,
			ClientID: clientID,
			Details:  map[string]any{"reason": ferr.Description},
		})
		return nil, flowError(ErrorCodeInvalidGrant, "code verifier validation failed")
	}

	grant, err := s.issueTokens(ctx, record.ClientID, record.UpstreamToken, record.UserInfo, record.Scope, record.Resource)
	if err != nil {
		return nil, err
	}

	userID := ""
	if record.UserInfo != nil {
		userID = record.UserInfo.ID
	}
	s.audit(security.Event{
		Type:     security.EventTokenIssued,
		UserID:   userID,
		ClientID: clientID,
		Details:  map[string]any{"scope": record.Scope, "resource": record.Resource},
	})
	s.logger.Info("access token issued", "client_id", clientID, "resource", record.Resource)

	return grant, nil
}

// RefreshAccessToken implements the refresh_token grant. The proxy refresh
// token is single use: a fresh one is issued on success (rotation). The
// upstream refresh exchange failing surfaces as invalid_grant; the client
// must restart authorization.
func (s *Server) RefreshAccessToken(ctx context.Context, refreshToken, clientID string) (*TokenGrant, error) {
	if refreshToken == "" || clientID == "" {
		return nil, flowError(ErrorCodeInvalidRequest, "refresh_token and client_id are required")
	}

	record, err := s.tokens.ConsumeRefreshToken(ctx, refreshToken)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, flowError(ErrorCodeInvalidGrant, "invalid refresh token")
		}
		return nil, fmt.Errorf("consuming refresh token: %w", err)
	}
	if record.ClientID != clientID {
		s.audit(security.Event{
			Type:     security.EventAuthFailure,
			ClientID: clientID,
			Details:  map[string]any{"reason": "refresh_client_mismatch"},
		})
		return nil, flowError(ErrorCodeInvalidGrant, "invalid refresh token")
	}
	if record.UpstreamRefreshToken == "" {
		return nil, flowError(ErrorCodeInvalidGrant, "refresh is not available for this grant")
	}

	refreshCtx, cancel := context.WithTimeout(ctx, s.config.UpstreamTimeout)
	defer cancel()

	upstreamToken, err := s.provider.RefreshToken(refreshCtx, record.UpstreamRefreshToken)
	if err != nil {
		s.auditUpstreamFailure(clientID, "refresh_failed", err.Error())
		s.logger.Error("upstream token refresh failed", "client_id", clientID, "error", err)
		return nil, flowError(ErrorCodeInvalidGrant, "upstream token refresh failed")
	}
	if upstreamToken.RefreshToken == "" {
		upstreamToken.RefreshToken = record.UpstreamRefreshToken
	}

	grant, err := s.issueTokens(ctx, clientID, upstreamToken, record.UserInfo, record.Scope, record.Resource)
	if err != nil {
		return nil, err
	}

	// Retire the superseded bearer. Only the local record is removed; the
	// upstream provider revokes the whole grant lineage per token, which
	// would invalidate the refresh token just exchanged.
	if record.AccessToken != "" {
		if err := s.tokens.DeleteAccessToken(ctx, record.AccessToken); err != nil {
			s.logger.Warn("deleting superseded access token", "client_id", clientID, "error", err)
		}
	}

	s.audit(security.Event{
		Type:     security.EventTokenRefreshed,
		ClientID: clientID,
		Details:  map[string]any{"rotated": true},
	})
	s.logger.Info("access token refreshed", "client_id", clientID)

	return grant, nil
}

// issueTokens mints a bearer token record and, when the upstream issued a
// refresh token, a proxy refresh token record.
func (s *Server) issueTokens(ctx context.Context, clientID string, upstreamToken *oauth2.Token, userInfo *providers.UserInfo, scope, resource string) (*TokenGrant, error) {
	now := s.clock.Now()

	access := &storage.AccessTokenRecord{
		Token:         generateToken(),
		ClientID:      clientID,
		UpstreamToken: upstreamToken,
		UserInfo:      userInfo,
		Resource:      resource,
		Scope:         scope,
		IssuedAt:      now,
		ExpiresAt:     now.Add(s.config.AccessTokenTTL),
	}
	if err := s.tokens.SaveAccessToken(ctx, access); err != nil {
		return nil, fmt.Errorf("saving access token: %w", err)
	}

	refresh := ""
	if upstreamToken != nil && upstreamToken.RefreshToken != "" {
		refresh = generateToken()
		record := &storage.RefreshTokenRecord{
			Token:                refresh,
			ClientID:             clientID,
			UpstreamRefreshToken: upstreamToken.RefreshToken,
			AccessToken:          access.Token,
			UserInfo:             userInfo,
			Resource:             resource,
			Scope:                scope,
			CreatedAt:            now,
			ExpiresAt:            now.Add(s.config.RefreshTokenTTL),
		}
		if err := s.tokens.SaveRefreshToken(ctx, record); err != nil {
			return nil, fmt.Errorf("saving refresh token: %w", err)
		}
	}

	return &TokenGrant{
		AccessToken:  access.Token,
		RefreshToken: refresh,
		ExpiresIn:    int64(s.config.AccessTokenTTL.Seconds()),
		Scope:        scope,
		Resource:     resource,
	}, nil
}

// ValidateAccessToken resolves a bearer token to its record. Unknown and
// expired tokens, and tokens bound to a different resource identifier, all
// fail with invalid_token. The resource comparison is exact string
// equality; "http://host/mcp" and "http://host/mcp/" are different
// resources.
func (s *Server) ValidateAccessToken(ctx context.Context, bearer string) (*storage.AccessTokenRecord, error) {
	if bearer == "" {
		return nil, flowError(ErrorCodeInvalidToken, "missing bearer token")
	}

	record, err := s.tokens.GetAccessToken(ctx, bearer)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, flowError(ErrorCodeInvalidToken, "unknown or expired token")
		}
		return nil, fmt.Errorf("looking up access token: %w", err)
	}

	if record.Resource != s.config.Resource {
		s.audit(security.Event{
			Type:     security.EventResourceMismatch,
			ClientID: record.ClientID,
			Details:  map[string]any{"token_resource": record.Resource, "resource": s.config.Resource},
		})
		return nil, flowError(ErrorCodeInvalidToken, "token is bound to a different resource")
	}

	return record, nil
}

// RevokeAccessToken removes a bearer token and best-effort revokes the
// upstream token behind it. Revoking an unknown token succeeds (RFC 7009
// section 2.2).
func (s *Server) RevokeAccessToken(ctx context.Context, bearer string) error {
	record, err := s.tokens.GetAccessToken(ctx, bearer)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("looking up access token: %w", err)
	}

	if err := s.tokens.DeleteAccessToken(ctx, bearer); err != nil {
		return fmt.Errorf("deleting access token: %w", err)
	}

	if record.UpstreamToken != nil && record.UpstreamToken.AccessToken != "" {
		revokeCtx, cancel := context.WithTimeout(ctx, s.config.UpstreamTimeout)
		defer cancel()
		if err := s.provider.RevokeToken(revokeCtx, record.UpstreamToken.AccessToken); err != nil {
			s.logger.Warn("upstream token revocation failed", "client_id", record.ClientID, "error", err)
		}
	}

	return nil
}

// errorRedirectURL builds the client redirect URL that delivers a flow
// error as error/error_description query parameters.
func errorRedirectURL(pending *storage.PendingAuthorization, ferr *FlowError) string {
	u, err := url.Parse(pending.ClientRedirectURI)
	if err != nil {
		return ""
	}
	q := u.Query()
	q.Set("error", ferr.Code)
	if ferr.Description != "" {
		q.Set("error_description", ferr.Description)
	}
	if pending.ClientState != "" {
		q.Set("state", pending.ClientState)
	}
	u.RawQuery = q.Encode()
	return u.String()
}

func (s *Server) auditUpstreamFailure(clientID, reason, detail string) {
	s.audit(security.Event{
		Type:     security.EventUpstreamExchangeFailed,
		ClientID: clientID,
		Details:  map[string]any{"reason": reason, "detail": detail},
	})
}
