package server

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"strings"

	"github.com/giantswarm/mcp-auth-proxy/security"
	"github.com/giantswarm/mcp-auth-proxy/storage"
)

// PKCE verifier length limits (RFC 7636 section 4.1).
const (
	minVerifierLength = 43
	maxVerifierLength = 128
)

// validateScope checks every requested scope against the supported set.
// An empty supported set allows any scope.
func (s *Server) validateScope(scope string) *FlowError {
	if len(s.config.SupportedScopes) == 0 || scope == "" {
		return nil
	}

	supported := make(map[string]bool, len(s.config.SupportedScopes))
	for _, sc := range s.config.SupportedScopes {
		supported[sc] = true
	}

	for _, requested := range strings.Fields(scope) {
		if !supported[requested] {
			return flowError(ErrorCodeInvalidScope, "scope %q is not supported", requested)
		}
	}

	return nil
}

// validateResource enforces the resource indicator (RFC 8707). The value,
// when present, must equal the canonical resource identifier as an exact
// string; a trailing slash difference is a mismatch.
func (s *Server) validateResource(resource string) *FlowError {
	if resource == "" || resource == s.config.Resource {
		return nil
	}
	return flowError(ErrorCodeInvalidRequest,
		"resource %q does not identify this protected resource", resource)
}

// redirectURIRegistered reports whether the redirect URI matches one of the
// client's registered URIs or patterns.
func redirectURIRegistered(client *storage.Client, redirectURI string) bool {
	return security.MatchesAnyPattern(client.RedirectURIs, redirectURI)
}

// validCodeVerifierFormat checks the RFC 7636 unreserved character set and
// length bounds.
func validCodeVerifierFormat(verifier string) bool {
	if len(verifier) < minVerifierLength || len(verifier) > maxVerifierLength {
		return false
	}
	for _, c := range verifier {
		switch {
		case c >= 'A' && c <= 'Z':
		case c >= 'a' && c <= 'z':
		case c >= '0' && c <= '9':
		case c == '-' || c == '.' || c == '_' || c == '~':
		default:
			return false
		}
	}
	return true
}

// verifyPKCE checks a code verifier against the stored S256 challenge:
// base64url(SHA-256(verifier)) must equal the challenge. The comparison is
// constant time.
func verifyPKCE(verifier, challenge, method string) *FlowError {
	if method != PKCEMethodS256 {
		return flowError(ErrorCodeInvalidGrant, "unsupported code challenge method")
	}
	if !validCodeVerifierFormat(verifier) {
		return flowError(ErrorCodeInvalidGrant, "malformed code verifier")
	}

	digest := sha256.Sum256([]byte(verifier))
	computed := base64.RawURLEncoding.EncodeToString(digest[:])

	if subtle.ConstantTimeCompare([]byte(computed), []byte(challenge)) != 1 {
		return flowError(ErrorCodeInvalidGrant, "code verifier does not match challenge")
	}

	return nil
}
