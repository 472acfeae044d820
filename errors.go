package authproxy

import "net/http"

// OAuth error codes (RFC 6749 section 5.2, RFC 6750 section 3.1, RFC 7591 section 3.2.2)
const (
	// ErrorCodeInvalidRequest indicates the request is missing a parameter or is otherwise malformed
	ErrorCodeInvalidRequest = "invalid_request"

	// ErrorCodeInvalidClient indicates client authentication failed or the client is unknown
	ErrorCodeInvalidClient = "invalid_client"

	// ErrorCodeInvalidGrant indicates the authorization code, verifier, or refresh token is invalid, expired, or spent
	ErrorCodeInvalidGrant = "invalid_grant"

	// ErrorCodeInvalidScope indicates the requested scope is invalid or exceeds what is supported
	ErrorCodeInvalidScope = "invalid_scope"

	// ErrorCodeInvalidState indicates the callback state does not match any pending authorization
	ErrorCodeInvalidState = "invalid_state"

	// ErrorCodeInvalidRedirectURI indicates a redirect URI is not allowed or not registered
	ErrorCodeInvalidRedirectURI = "invalid_redirect_uri"

	// ErrorCodeUpstreamError indicates the upstream provider was unreachable or returned an error
	ErrorCodeUpstreamError = "upstream_error"

	// ErrorCodeUnsupportedGrantType indicates the grant type is not supported
	ErrorCodeUnsupportedGrantType = "unsupported_grant_type"

	// ErrorCodeInvalidToken indicates the bearer token is missing, unknown, expired, or bound to another resource
	ErrorCodeInvalidToken = "invalid_token"

	// ErrorCodeInsufficientScope indicates the token does not carry the scopes the request requires
	ErrorCodeInsufficientScope = "insufficient_scope"

	// ErrorCodeAccessDenied indicates the resource owner or upstream provider denied the request
	ErrorCodeAccessDenied = "access_denied"

	// ErrorCodeServerError indicates an internal server error
	ErrorCodeServerError = "server_error"

	// ErrorCodeRateLimitExceeded indicates too many requests from this source
	ErrorCodeRateLimitExceeded = "rate_limit_exceeded"
)

// OAuthError is an error carrying an OAuth error code and HTTP status.
// Handlers translate it to a JSON error body or, when a trusted redirect
// target is already known, to error/error_description query parameters.
type OAuthError struct {
	// Code is the OAuth error code
	Code string

	// Description provides human-readable details
	Description string

	// Status is the HTTP status code to use for direct responses
	Status int
}

// Error implements the error interface
func (e *OAuthError) Error() string {
	if e.Description == "" {
		return e.Code
	}
	return e.Code + ": " + e.Description
}

// NewOAuthError creates an OAuth error with a specific code, description, and status
func NewOAuthError(code, description string, status int) *OAuthError {
	return &OAuthError{Code: code, Description: description, Status: status}
}

// Common error constructors
var (
	// ErrInvalidRequest creates an invalid_request error
	ErrInvalidRequest = func(description string) *OAuthError {
		return NewOAuthError(ErrorCodeInvalidRequest, description, http.StatusBadRequest)
	}

	// ErrInvalidClient creates an invalid_client error
	ErrInvalidClient = func(description string) *OAuthError {
		return NewOAuthError(ErrorCodeInvalidClient, description, http.StatusUnauthorized)
	}

	// ErrInvalidGrant creates an invalid_grant error
	ErrInvalidGrant = func(description string) *OAuthError {
		return NewOAuthError(ErrorCodeInvalidGrant, description, http.StatusBadRequest)
	}

	// ErrInvalidScope creates an invalid_scope error
	ErrInvalidScope = func(description string) *OAuthError {
		return NewOAuthError(ErrorCodeInvalidScope, description, http.StatusBadRequest)
	}

	// ErrInvalidState creates an invalid_state error for stale or unknown pending authorizations
	ErrInvalidState = func(description string) *OAuthError {
		return NewOAuthError(ErrorCodeInvalidState, description, http.StatusBadRequest)
	}

	// ErrInvalidRedirectURI creates an invalid_redirect_uri error
	ErrInvalidRedirectURI = func(description string) *OAuthError {
		return NewOAuthError(ErrorCodeInvalidRedirectURI, description, http.StatusBadRequest)
	}

	// ErrUpstreamError creates an upstream_error error
	ErrUpstreamError = func(description string) *OAuthError {
		return NewOAuthError(ErrorCodeUpstreamError, description, http.StatusBadGateway)
	}

	// ErrUnsupportedGrantType creates an unsupported_grant_type error
	ErrUnsupportedGrantType = func(description string) *OAuthError {
		return NewOAuthError(ErrorCodeUnsupportedGrantType, description, http.StatusBadRequest)
	}

	// ErrInvalidToken creates an invalid_token error
	ErrInvalidToken = func(description string) *OAuthError {
		return NewOAuthError(ErrorCodeInvalidToken, description, http.StatusUnauthorized)
	}

	// ErrInsufficientScope creates an insufficient_scope error
	ErrInsufficientScope = func(description string) *OAuthError {
		return NewOAuthError(ErrorCodeInsufficientScope, description, http.StatusForbidden)
	}

	// ErrAccessDenied creates an access_denied error
	ErrAccessDenied = func(description string) *OAuthError {
		return NewOAuthError(ErrorCodeAccessDenied, description, http.StatusForbidden)
	}

	// ErrServerError creates a server_error error
	ErrServerError = func(description string) *OAuthError {
		return NewOAuthError(ErrorCodeServerError, description, http.StatusInternalServerError)
	}

	// ErrRateLimitExceeded creates a rate_limit_exceeded error
	ErrRateLimitExceeded = func(description string) *OAuthError {
		return NewOAuthError(ErrorCodeRateLimitExceeded, description, http.StatusTooManyRequests)
	}
)
