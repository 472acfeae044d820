package security

import (
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"time"
)

// Audit event types.
const (
	// EventClientRegistered is logged when a new client is registered
	EventClientRegistered = "client_registered"

	// EventClientRegistrationRejected is logged when registration is rejected
	EventClientRegistrationRejected = "client_registration_rejected"

	// EventAuthorizationStarted is logged when an authorization flow begins
	EventAuthorizationStarted = "authorization_started"

	// EventAuthorizationCodeIssued is logged when a proxy code is issued
	EventAuthorizationCodeIssued = "authorization_code_issued"

	// EventStateMismatch is logged when a callback carries an unknown or spent state
	EventStateMismatch = "state_mismatch"

	// EventUpstreamExchangeFailed is logged when the upstream code or refresh exchange fails
	EventUpstreamExchangeFailed = "upstream_exchange_failed"

	// EventPKCEValidationFailed is logged when code verifier validation fails
	EventPKCEValidationFailed = "pkce_validation_failed"

	// EventTokenIssued is logged when a bearer token is issued
	EventTokenIssued = "token_issued"

	// EventTokenRefreshed is logged when a bearer token is refreshed
	EventTokenRefreshed = "token_refreshed"

	// EventInvalidRedirect is logged when an unregistered redirect URI is presented
	EventInvalidRedirect = "invalid_redirect"

	// EventResourceMismatch is logged when a resource indicator does not match (RFC 8707)
	EventResourceMismatch = "resource_mismatch"

	// EventAuthFailure is logged when bearer token validation fails
	EventAuthFailure = "auth_failure"

	// EventRateLimitExceeded is logged when a rate limit is exceeded
	EventRateLimitExceeded = "rate_limit_exceeded"
)

// Auditor logs security events with PII protection. User identifiers are
// hashed before logging.
type Auditor struct {
	logger  *slog.Logger
	enabled bool
}

// NewAuditor creates an auditor. A nil logger falls back to slog.Default.
func NewAuditor(logger *slog.Logger, enabled bool) *Auditor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Auditor{logger: logger, enabled: enabled}
}

// Event is a security audit event.
type Event struct {
	Type      string
	UserID    string
	ClientID  string
	IPAddress string
	RequestID string
	Details   map[string]any
}

// LogEvent logs a security event with hashed PII
func (a *Auditor) LogEvent(event Event) {
	if a == nil || !a.enabled {
		return
	}

	a.logger.Info("security_audit",
		"event_type", event.Type,
		"user_id_hash", hashForLogging(event.UserID),
		"client_id", event.ClientID,
		"ip_address", event.IPAddress,
		"request_id", event.RequestID,
		"details", event.Details,
		"timestamp", time.Now(),
	)
}

// hashForLogging creates a truncated SHA-256 hash of sensitive data
func hashForLogging(sensitive string) string {
	if sensitive == "" {
		return "<empty>"
	}
	hash := sha256.Sum256([]byte(sensitive))
	return hex.EncodeToString(hash[:])[:16]
}
