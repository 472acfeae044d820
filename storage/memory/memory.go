// Package memory provides an in-memory implementation of the storage
// interfaces. It is suitable for single-instance deployments; all proxy
// state is lost on restart and clients simply re-register and
// re-authorize.
package memory

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"golang.org/x/crypto/bcrypt"

	"github.com/giantswarm/mcp-auth-proxy/security"
	"github.com/giantswarm/mcp-auth-proxy/storage"
)

// DefaultCleanupInterval is how often the background sweep removes expired
// records. The sweep is an optimization; correctness comes from lazy expiry
// at lookup time.
const DefaultCleanupInterval = 5 * time.Minute

// dummyBcryptHash is compared against when a client is unknown so that
// secret validation takes the same time for known and unknown clients.
const dummyBcryptHash = "$2a$10$N9qo8uLOickgx2ZMRZoMyeIjZAgcfl7p92ldGxad68LJZdL17lhWy"

// Store is a concurrency-safe in-memory implementation of
// storage.ClientStore, storage.FlowStore, and storage.TokenStore.
type Store struct {
	mu sync.RWMutex

	clients      map[string]*storage.Client
	clientsPerIP map[string]int
	pending      map[string]*storage.PendingAuthorization
	codes        map[string]*storage.AuthorizationCode
	accessTokens map[string]*storage.AccessTokenRecord
	refreshToks  map[string]*storage.RefreshTokenRecord

	clock security.Clock

	stopCleanup chan struct{}
	stopOnce    sync.Once

	clientCount  atomic.Int64
	pendingCount atomic.Int64
	codeCount    atomic.Int64
	tokenCount   atomic.Int64

	opCounter metric.Int64Counter
}

var (
	_ storage.ClientStore = (*Store)(nil)
	_ storage.FlowStore   = (*Store)(nil)
	_ storage.TokenStore  = (*Store)(nil)
)

// New creates a store with the system clock and the default cleanup interval.
func New() *Store {
	return NewWithOptions(security.SystemClock{}, DefaultCleanupInterval)
}

// NewWithClock creates a store with a custom clock, used by tests to verify
// TTL behavior deterministically. No cleanup goroutine is started; expiry is
// enforced lazily at lookup.
func NewWithClock(clock security.Clock) *Store {
	return NewWithOptions(clock, 0)
}

// NewWithOptions creates a store with a custom clock and cleanup interval.
// A zero interval disables the background sweep.
func NewWithOptions(clock security.Clock, cleanupInterval time.Duration) *Store {
	if clock == nil {
		clock = security.SystemClock{}
	}

	s := &Store{
		clients:      make(map[string]*storage.Client),
		clientsPerIP: make(map[string]int),
		pending:      make(map[string]*storage.PendingAuthorization),
		codes:        make(map[string]*storage.AuthorizationCode),
		accessTokens: make(map[string]*storage.AccessTokenRecord),
		refreshToks:  make(map[string]*storage.RefreshTokenRecord),
		clock:        clock,
		stopCleanup:  make(chan struct{}),
	}

	s.initMetrics()

	if cleanupInterval > 0 {
		go s.cleanupLoop(cleanupInterval)
	}

	return s
}

func (s *Store) initMetrics() {
	meter := otel.Meter("github.com/giantswarm/mcp-auth-proxy/storage/memory")

	s.opCounter, _ = meter.Int64Counter("storage.operation.total",
		metric.WithDescription("Total storage operations by operation and result"))

	gauge, err := meter.Int64ObservableGauge("storage.size",
		metric.WithDescription("Current number of stored records by type"))
	if err != nil {
		return
	}
	_, _ = meter.RegisterCallback(func(_ context.Context, o metric.Observer) error {
		o.ObserveInt64(gauge, s.clientCount.Load(), metric.WithAttributes(attribute.String("type", "clients")))
		o.ObserveInt64(gauge, s.pendingCount.Load(), metric.WithAttributes(attribute.String("type", "pending_authorizations")))
		o.ObserveInt64(gauge, s.codeCount.Load(), metric.WithAttributes(attribute.String("type", "authorization_codes")))
		o.ObserveInt64(gauge, s.tokenCount.Load(), metric.WithAttributes(attribute.String("type", "access_tokens")))
		return nil
	}, gauge)
}

func (s *Store) recordOp(ctx context.Context, operation string, err error) {
	if s.opCounter == nil {
		return
	}
	result := "success"
	if err != nil {
		result = "error"
	}
	s.opCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("operation", operation),
		attribute.String("result", result),
	))
}

// Stop terminates the background cleanup goroutine.
func (s *Store) Stop() {
	s.stopOnce.Do(func() { close(s.stopCleanup) })
}

func (s *Store) cleanupLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.cleanup()
		case <-s.stopCleanup:
			return
		}
	}
}

// cleanup removes expired flow and token records. Clients are never expired.
func (s *Store) cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now()
	for state, p := range s.pending {
		if now.After(p.ExpiresAt) {
			delete(s.pending, state)
			s.pendingCount.Add(-1)
		}
	}
	for code, c := range s.codes {
		if now.After(c.ExpiresAt) {
			delete(s.codes, code)
			s.codeCount.Add(-1)
		}
	}
	for token, t := range s.accessTokens {
		if security.IsExpired(s.clock, t.ExpiresAt) {
			delete(s.accessTokens, token)
			s.tokenCount.Add(-1)
		}
	}
	for token, t := range s.refreshToks {
		if now.After(t.ExpiresAt) {
			delete(s.refreshToks, token)
		}
	}
}

// ==================== ClientStore ====================

// SaveClient stores a newly registered client
func (s *Store) SaveClient(ctx context.Context, client *storage.Client) error {
	err := s.saveClient(client)
	s.recordOp(ctx, "save_client", err)
	return err
}

func (s *Store) saveClient(client *storage.Client) error {
	if client == nil || client.ClientID == "" {
		return fmt.Errorf("client is nil or has no client ID")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.clients[client.ClientID]; exists {
		return fmt.Errorf("client %s already exists", client.ClientID)
	}

	s.clients[client.ClientID] = cloneClient(client)
	if client.RegistrationIP != "" {
		s.clientsPerIP[client.RegistrationIP]++
	}
	s.clientCount.Add(1)

	return nil
}

// GetClient retrieves a client by ID
func (s *Store) GetClient(ctx context.Context, clientID string) (*storage.Client, error) {
	s.mu.RLock()
	client, ok := s.clients[clientID]
	s.mu.RUnlock()

	if !ok {
		s.recordOp(ctx, "get_client", storage.ErrNotFound)
		return nil, fmt.Errorf("client %s: %w", clientID, storage.ErrNotFound)
	}

	s.recordOp(ctx, "get_client", nil)
	return cloneClient(client), nil
}

// ValidateClientSecret verifies a client secret in constant time. Unknown
// clients are compared against a dummy hash so lookups are not
// distinguishable by timing.
func (s *Store) ValidateClientSecret(ctx context.Context, clientID, secret string) (bool, error) {
	s.mu.RLock()
	client, ok := s.clients[clientID]
	s.mu.RUnlock()

	hash := dummyBcryptHash
	if ok && client.ClientSecretHash != "" {
		hash = client.ClientSecretHash
	}

	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(secret))
	valid := ok && client.ClientSecretHash != "" && err == nil

	s.recordOp(ctx, "validate_client_secret", nil)
	return valid, nil
}

// CheckIPLimit returns an error when the IP has reached the registration limit
func (s *Store) CheckIPLimit(ctx context.Context, ip string, max int) error {
	if max <= 0 || ip == "" {
		return nil
	}

	s.mu.RLock()
	count := s.clientsPerIP[ip]
	s.mu.RUnlock()

	if count >= max {
		err := fmt.Errorf("IP %s has reached the client registration limit (%d)", ip, max)
		s.recordOp(ctx, "check_ip_limit", err)
		return err
	}

	s.recordOp(ctx, "check_ip_limit", nil)
	return nil
}

// ==================== FlowStore ====================

// SavePendingAuthorization stores a pending authorization keyed by proxy state
func (s *Store) SavePendingAuthorization(ctx context.Context, pending *storage.PendingAuthorization) error {
	if pending == nil || pending.ProxyState == "" {
		err := fmt.Errorf("pending authorization is nil or has no proxy state")
		s.recordOp(ctx, "save_pending_authorization", err)
		return err
	}

	s.mu.Lock()
	s.pending[pending.ProxyState] = clonePending(pending)
	s.mu.Unlock()
	s.pendingCount.Add(1)

	s.recordOp(ctx, "save_pending_authorization", nil)
	return nil
}

// ConsumePendingAuthorization atomically retrieves and deletes a pending
// authorization. Expired entries behave exactly like absent ones.
func (s *Store) ConsumePendingAuthorization(ctx context.Context, proxyState string) (*storage.PendingAuthorization, error) {
	s.mu.Lock()
	pending, ok := s.pending[proxyState]
	if ok {
		delete(s.pending, proxyState)
		s.pendingCount.Add(-1)
	}
	s.mu.Unlock()

	if !ok || s.clock.Now().After(pending.ExpiresAt) {
		s.recordOp(ctx, "consume_pending_authorization", storage.ErrNotFound)
		return nil, fmt.Errorf("pending authorization: %w", storage.ErrNotFound)
	}

	s.recordOp(ctx, "consume_pending_authorization", nil)
	return clonePending(pending), nil
}

// SaveAuthorizationCode stores an authorization code
func (s *Store) SaveAuthorizationCode(ctx context.Context, code *storage.AuthorizationCode) error {
	if code == nil || code.Code == "" {
		err := fmt.Errorf("authorization code is nil or empty")
		s.recordOp(ctx, "save_authorization_code", err)
		return err
	}

	s.mu.Lock()
	s.codes[code.Code] = cloneCode(code)
	s.mu.Unlock()
	s.codeCount.Add(1)

	s.recordOp(ctx, "save_authorization_code", nil)
	return nil
}

// ConsumeAuthorizationCode atomically retrieves and deletes an authorization
// code. A second consume of the same code returns ErrNotFound, which closes
// the code replay window.
func (s *Store) ConsumeAuthorizationCode(ctx context.Context, code string) (*storage.AuthorizationCode, error) {
	s.mu.Lock()
	record, ok := s.codes[code]
	if ok {
		delete(s.codes, code)
		s.codeCount.Add(-1)
	}
	s.mu.Unlock()

	if !ok || s.clock.Now().After(record.ExpiresAt) {
		s.recordOp(ctx, "consume_authorization_code", storage.ErrNotFound)
		return nil, fmt.Errorf("authorization code: %w", storage.ErrNotFound)
	}

	s.recordOp(ctx, "consume_authorization_code", nil)
	return cloneCode(record), nil
}

// ==================== TokenStore ====================

// SaveAccessToken stores an access token record
func (s *Store) SaveAccessToken(ctx context.Context, record *storage.AccessTokenRecord) error {
	if record == nil || record.Token == "" {
		err := fmt.Errorf("access token record is nil or empty")
		s.recordOp(ctx, "save_access_token", err)
		return err
	}

	s.mu.Lock()
	s.accessTokens[record.Token] = cloneAccessToken(record)
	s.mu.Unlock()
	s.tokenCount.Add(1)

	s.recordOp(ctx, "save_access_token", nil)
	return nil
}

// GetAccessToken retrieves an access token record. Expired records are
// deleted and reported as not found.
func (s *Store) GetAccessToken(ctx context.Context, token string) (*storage.AccessTokenRecord, error) {
	s.mu.RLock()
	record, ok := s.accessTokens[token]
	s.mu.RUnlock()

	if ok && security.IsExpired(s.clock, record.ExpiresAt) {
		s.mu.Lock()
		if current, still := s.accessTokens[token]; still && current == record {
			delete(s.accessTokens, token)
			s.tokenCount.Add(-1)
		}
		s.mu.Unlock()
		ok = false
	}

	if !ok {
		s.recordOp(ctx, "get_access_token", storage.ErrNotFound)
		return nil, fmt.Errorf("access token: %w", storage.ErrNotFound)
	}

	s.recordOp(ctx, "get_access_token", nil)
	return cloneAccessToken(record), nil
}

// DeleteAccessToken removes an access token record
func (s *Store) DeleteAccessToken(ctx context.Context, token string) error {
	s.mu.Lock()
	if _, ok := s.accessTokens[token]; ok {
		delete(s.accessTokens, token)
		s.tokenCount.Add(-1)
	}
	s.mu.Unlock()

	s.recordOp(ctx, "delete_access_token", nil)
	return nil
}

// SaveRefreshToken stores a refresh token record
func (s *Store) SaveRefreshToken(ctx context.Context, record *storage.RefreshTokenRecord) error {
	if record == nil || record.Token == "" {
		err := fmt.Errorf("refresh token record is nil or empty")
		s.recordOp(ctx, "save_refresh_token", err)
		return err
	}

	s.mu.Lock()
	s.refreshToks[record.Token] = cloneRefreshToken(record)
	s.mu.Unlock()

	s.recordOp(ctx, "save_refresh_token", nil)
	return nil
}

// ConsumeRefreshToken atomically retrieves and deletes a refresh token
// record, enforcing single use for rotation.
func (s *Store) ConsumeRefreshToken(ctx context.Context, token string) (*storage.RefreshTokenRecord, error) {
	s.mu.Lock()
	record, ok := s.refreshToks[token]
	if ok {
		delete(s.refreshToks, token)
	}
	s.mu.Unlock()

	if !ok || s.clock.Now().After(record.ExpiresAt) {
		s.recordOp(ctx, "consume_refresh_token", storage.ErrNotFound)
		return nil, fmt.Errorf("refresh token: %w", storage.ErrNotFound)
	}

	s.recordOp(ctx, "consume_refresh_token", nil)
	return cloneRefreshToken(record), nil
}

// ==================== clones ====================
//
// Records are copied on write and on read so callers can never mutate the
// store's view of a record after the fact.

func cloneClient(c *storage.Client) *storage.Client {
	clone := *c
	clone.RedirectURIs = append([]string(nil), c.RedirectURIs...)
	clone.GrantTypes = append([]string(nil), c.GrantTypes...)
	clone.ResponseTypes = append([]string(nil), c.ResponseTypes...)
	clone.Scopes = append([]string(nil), c.Scopes...)
	return &clone
}

func clonePending(p *storage.PendingAuthorization) *storage.PendingAuthorization {
	clone := *p
	return &clone
}

func cloneCode(c *storage.AuthorizationCode) *storage.AuthorizationCode {
	clone := *c
	if c.UpstreamToken != nil {
		token := *c.UpstreamToken
		clone.UpstreamToken = &token
	}
	if c.UserInfo != nil {
		info := *c.UserInfo
		clone.UserInfo = &info
	}
	return &clone
}

func cloneAccessToken(r *storage.AccessTokenRecord) *storage.AccessTokenRecord {
	clone := *r
	if r.UpstreamToken != nil {
		token := *r.UpstreamToken
		clone.UpstreamToken = &token
	}
	if r.UserInfo != nil {
		info := *r.UserInfo
		clone.UserInfo = &info
	}
	return &clone
}

func cloneRefreshToken(r *storage.RefreshTokenRecord) *storage.RefreshTokenRecord {
	clone := *r
	if r.UserInfo != nil {
		info := *r.UserInfo
		clone.UserInfo = &info
	}
	return &clone
}
