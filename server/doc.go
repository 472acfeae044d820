// Package server implements the authorization proxy's flow engine: dynamic
// client registration, authorization initiation, the upstream provider
// callback, code and refresh token exchange, and bearer token validation.
//
// The package is transport-agnostic; the root package's Handler adapts it
// to HTTP. All state lives behind the storage interfaces, every flow is
// keyed independently, and all shared state is safe for concurrent use.
package server
