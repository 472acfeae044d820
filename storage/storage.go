package storage

import (
	"context"
	"errors"
	"time"

	"golang.org/x/oauth2"

	"github.com/giantswarm/mcp-auth-proxy/providers"
)

// ErrNotFound is returned when a record does not exist or has expired.
// Expired records are indistinguishable from records that never existed.
var ErrNotFound = errors.New("storage: not found")

// Client represents a dynamically registered OAuth client.
// Records are immutable after creation.
type Client struct {
	// ClientID is the unique client identifier issued by the proxy
	ClientID string

	// ClientSecretHash is the bcrypt hash of the client secret, empty for public clients
	ClientSecretHash string

	// ClientType is "public" or "confidential"
	ClientType string

	// RedirectURIs are the registered redirect URIs or loopback wildcard-port patterns
	RedirectURIs []string

	// TokenEndpointAuthMethod is the client authentication method at the token endpoint
	TokenEndpointAuthMethod string

	// GrantTypes lists the grant types the client may use
	GrantTypes []string

	// ResponseTypes lists the response types the client may use
	ResponseTypes []string

	// ClientName is a human-readable client name
	ClientName string

	// Scopes lists the scopes the client may request
	Scopes []string

	// RegistrationIP is the IP address the registration came from
	RegistrationIP string

	// CreatedAt is when the client was registered
	CreatedAt time.Time
}

// PendingAuthorization is the state of an authorization flow between the
// /authorize redirect and the upstream provider's callback.
//
// The record is keyed by ProxyState, a value the proxy generates and sends
// to the upstream provider as the state parameter. The downstream client's
// own state, if any, is kept in ClientState and echoed back untouched on the
// final redirect. The two values are independent so that neither side can
// forge or correlate the other's state.
type PendingAuthorization struct {
	// ProxyState is the proxy-generated state sent upstream, the record key
	ProxyState string

	// ClientID identifies the downstream client that started the flow
	ClientID string

	// ClientRedirectURI is the validated redirect URI supplied at /authorize
	ClientRedirectURI string

	// ClientState is the downstream client's own state parameter, may be empty
	ClientState string

	// CodeChallenge is the downstream client's PKCE challenge
	CodeChallenge string

	// CodeChallengeMethod is the downstream client's PKCE method
	CodeChallengeMethod string

	// Scope is the space-separated scopes requested
	Scope string

	// Resource is the resource indicator requested (RFC 8707), may be empty
	Resource string

	// UpstreamCodeVerifier is the fresh PKCE verifier used with the upstream
	// provider, set only when upstream PKCE is enabled
	UpstreamCodeVerifier string

	// CreatedAt is when the flow was started
	CreatedAt time.Time

	// ExpiresAt is when the pending authorization becomes invalid
	ExpiresAt time.Time
}

// AuthorizationCode is a single-use code issued to the downstream client
// after a successful upstream token exchange. It carries the downstream
// client's original PKCE challenge; the upstream verifier never outlives the
// pending authorization.
type AuthorizationCode struct {
	// Code is the authorization code value, the record key
	Code string

	// ClientID identifies the client the code was issued to
	ClientID string

	// RedirectURI is the redirect URI the code was delivered to
	RedirectURI string

	// CodeChallenge is the downstream client's PKCE challenge
	CodeChallenge string

	// CodeChallengeMethod is the downstream client's PKCE method
	CodeChallengeMethod string

	// Scope is the space-separated scopes granted
	Scope string

	// Resource is the resource indicator the flow was bound to
	Resource string

	// UpstreamToken is the token obtained from the upstream provider
	UpstreamToken *oauth2.Token

	// UserInfo is the upstream identity retrieved at callback time
	UserInfo *providers.UserInfo

	// CreatedAt is when the code was issued
	CreatedAt time.Time

	// ExpiresAt is when the code becomes invalid
	ExpiresAt time.Time
}

// AccessTokenRecord maps a proxy-issued bearer token to the upstream tokens
// and the resource and scopes it was granted for.
type AccessTokenRecord struct {
	// Token is the proxy-issued bearer token, the record key
	Token string

	// ClientID identifies the client the token was issued to
	ClientID string

	// UpstreamToken is the upstream provider token the bearer wraps
	UpstreamToken *oauth2.Token

	// UserInfo is the upstream identity associated with the token
	UserInfo *providers.UserInfo

	// Resource is the resource indicator the token is bound to
	Resource string

	// Scope is the space-separated scopes granted
	Scope string

	// IssuedAt is when the token was issued
	IssuedAt time.Time

	// ExpiresAt is when the token expires
	ExpiresAt time.Time
}

// RefreshTokenRecord maps a proxy-issued refresh token to its upstream
// refresh token lineage. Records are consumed on use (rotation).
type RefreshTokenRecord struct {
	// Token is the proxy-issued refresh token, the record key
	Token string

	// ClientID identifies the client the token was issued to
	ClientID string

	// UpstreamRefreshToken is the upstream refresh token, may be empty
	UpstreamRefreshToken string

	// AccessToken is the bearer token issued alongside this refresh token.
	// Rotation deletes it so a superseded bearer does not outlive the grant
	// that replaced it.
	AccessToken string

	// UserInfo is the upstream identity associated with the lineage
	UserInfo *providers.UserInfo

	// Resource is the resource indicator the lineage is bound to
	Resource string

	// Scope is the space-separated scopes granted
	Scope string

	// CreatedAt is when the record was created
	CreatedAt time.Time

	// ExpiresAt is when the refresh token expires
	ExpiresAt time.Time
}

// ClientStore manages registered OAuth clients.
type ClientStore interface {
	// SaveClient stores a newly registered client
	SaveClient(ctx context.Context, client *Client) error

	// GetClient retrieves a client by ID, returning ErrNotFound if unknown
	GetClient(ctx context.Context, clientID string) (*Client, error)

	// ValidateClientSecret verifies a client secret in constant time
	ValidateClientSecret(ctx context.Context, clientID, secret string) (bool, error)

	// CheckIPLimit returns an error when the IP has reached the registration limit
	CheckIPLimit(ctx context.Context, ip string, max int) error
}

// FlowStore manages in-flight authorization flows.
//
// Consume operations are atomic: under concurrent calls with the same key,
// exactly one caller receives the record and all others receive ErrNotFound.
// Expired records behave identically to absent ones.
type FlowStore interface {
	// SavePendingAuthorization stores a pending authorization keyed by proxy state
	SavePendingAuthorization(ctx context.Context, pending *PendingAuthorization) error

	// ConsumePendingAuthorization atomically retrieves and deletes a pending
	// authorization by proxy state
	ConsumePendingAuthorization(ctx context.Context, proxyState string) (*PendingAuthorization, error)

	// SaveAuthorizationCode stores an authorization code
	SaveAuthorizationCode(ctx context.Context, code *AuthorizationCode) error

	// ConsumeAuthorizationCode atomically retrieves and deletes an authorization code
	ConsumeAuthorizationCode(ctx context.Context, code string) (*AuthorizationCode, error)
}

// TokenStore is the vault mapping proxy-issued tokens to upstream tokens.
type TokenStore interface {
	// SaveAccessToken stores an access token record
	SaveAccessToken(ctx context.Context, record *AccessTokenRecord) error

	// GetAccessToken retrieves an access token record, returning ErrNotFound
	// for unknown or expired tokens
	GetAccessToken(ctx context.Context, token string) (*AccessTokenRecord, error)

	// DeleteAccessToken removes an access token record
	DeleteAccessToken(ctx context.Context, token string) error

	// SaveRefreshToken stores a refresh token record
	SaveRefreshToken(ctx context.Context, record *RefreshTokenRecord) error

	// ConsumeRefreshToken atomically retrieves and deletes a refresh token record
	ConsumeRefreshToken(ctx context.Context, token string) (*RefreshTokenRecord, error)
}
