package server

import "fmt"

// OAuth error codes returned by the flow engine. These mirror the constants
// in the root package; they are duplicated here so the root package can
// depend on server without a cycle.
const (
	ErrorCodeInvalidRequest       = "invalid_request"
	ErrorCodeInvalidClient        = "invalid_client"
	ErrorCodeInvalidGrant         = "invalid_grant"
	ErrorCodeInvalidScope         = "invalid_scope"
	ErrorCodeInvalidState         = "invalid_state"
	ErrorCodeInvalidRedirectURI   = "invalid_redirect_uri"
	ErrorCodeUpstreamError        = "upstream_error"
	ErrorCodeInvalidToken         = "invalid_token"
	ErrorCodeInsufficientScope    = "insufficient_scope"
	ErrorCodeAccessDenied         = "access_denied"
	ErrorCodeServerError          = "server_error"
	ErrorCodeRateLimitExceeded    = "rate_limit_exceeded"
	ErrorCodeUnsupportedGrantType = "unsupported_grant_type"
)

// FlowError is an error with an OAuth error code attached. The HTTP layer
// maps the code to a status and decides between a JSON body and
// error/error_description redirect parameters.
type FlowError struct {
	// Code is the OAuth error code
	Code string

	// Description is a human-readable explanation safe to show to clients
	Description string
}

// Error implements the error interface
func (e *FlowError) Error() string {
	if e.Description == "" {
		return e.Code
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Description)
}

// FlowErrorf creates a FlowError with a formatted description.
func FlowErrorf(code, format string, args ...any) *FlowError {
	return &FlowError{Code: code, Description: fmt.Sprintf(format, args...)}
}

func flowError(code, format string, args ...any) *FlowError {
	return FlowErrorf(code, format, args...)
}
