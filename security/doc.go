// Package security provides the security primitives used by the
// authorization proxy: redirect URI pattern matching, rate limiting,
// clock abstraction for expiry checks, secure HTTP headers, request ID
// propagation, and audit logging with PII protection.
package security
