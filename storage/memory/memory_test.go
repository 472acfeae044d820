package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/giantswarm/mcp-auth-proxy/internal/testutil"
	"github.com/giantswarm/mcp-auth-proxy/storage"
)

func newTestStore(t *testing.T) (*Store, *testutil.MockClock) {
	t.Helper()
	clock := testutil.NewMockClock(time.Now())
	store := NewWithClock(clock)
	t.Cleanup(store.Stop)
	return store, clock
}

func testClient(id string) *storage.Client {
	return &storage.Client{
		ClientID:                id,
		ClientType:              "public",
		RedirectURIs:            []string{"http://localhost:54321/cb"},
		TokenEndpointAuthMethod: "none",
		GrantTypes:              []string{"authorization_code", "refresh_token"},
		ResponseTypes:           []string{"code"},
		CreatedAt:               time.Now(),
	}
}

func TestStore_ClientLifecycle(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	client := testClient("client-1")
	if err := store.SaveClient(ctx, client); err != nil {
		t.Fatalf("SaveClient() error = %v", err)
	}

	got, err := store.GetClient(ctx, "client-1")
	if err != nil {
		t.Fatalf("GetClient() error = %v", err)
	}
	if got.ClientID != "client-1" {
		t.Errorf("client ID = %q, want %q", got.ClientID, "client-1")
	}

	// The store hands out copies; mutating a returned record must not
	// affect later reads.
	got.RedirectURIs[0] = "http://evil.example.com/cb"
	again, err := store.GetClient(ctx, "client-1")
	if err != nil {
		t.Fatalf("GetClient() error = %v", err)
	}
	if again.RedirectURIs[0] != "http://localhost:54321/cb" {
		t.Error("returned record shares state with the store")
	}

	if err := store.SaveClient(ctx, testClient("client-1")); err == nil {
		t.Error("duplicate SaveClient() succeeded")
	}

	_, err = store.GetClient(ctx, "no-such-client")
	if !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("GetClient() error = %v, want ErrNotFound", err)
	}
}

func TestStore_ValidateClientSecret(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	hash, err := bcrypt.GenerateFromPassword([]byte("s3cret"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("bcrypt error = %v", err)
	}
	client := testClient("confidential-1")
	client.ClientType = "confidential"
	client.ClientSecretHash = string(hash)
	if err := store.SaveClient(ctx, client); err != nil {
		t.Fatalf("SaveClient() error = %v", err)
	}
	if err := store.SaveClient(ctx, testClient("public-1")); err != nil {
		t.Fatalf("SaveClient() error = %v", err)
	}

	tests := []struct {
		name     string
		clientID string
		secret   string
		want     bool
	}{
		{"correct secret", "confidential-1", "s3cret", true},
		{"wrong secret", "confidential-1", "nope", false},
		{"unknown client", "no-such-client", "s3cret", false},
		{"public client has no secret", "public-1", "s3cret", false},
		{"empty secret", "confidential-1", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			valid, err := store.ValidateClientSecret(ctx, tt.clientID, tt.secret)
			if err != nil {
				t.Fatalf("ValidateClientSecret() error = %v", err)
			}
			if valid != tt.want {
				t.Errorf("ValidateClientSecret() = %v, want %v", valid, tt.want)
			}
		})
	}
}

func TestStore_CheckIPLimit(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	for i, id := range []string{"a", "b"} {
		client := testClient(id)
		client.RegistrationIP = "192.0.2.5"
		if err := store.SaveClient(ctx, client); err != nil {
			t.Fatalf("SaveClient() #%d error = %v", i+1, err)
		}
	}

	if err := store.CheckIPLimit(ctx, "192.0.2.5", 3); err != nil {
		t.Errorf("CheckIPLimit() below the limit error = %v", err)
	}
	if err := store.CheckIPLimit(ctx, "192.0.2.5", 2); err == nil {
		t.Error("CheckIPLimit() at the limit succeeded")
	}
	if err := store.CheckIPLimit(ctx, "192.0.2.6", 2); err != nil {
		t.Errorf("CheckIPLimit() for another IP error = %v", err)
	}
	if err := store.CheckIPLimit(ctx, "192.0.2.5", 0); err != nil {
		t.Errorf("CheckIPLimit() with no limit error = %v", err)
	}
}

func TestStore_PendingAuthorization(t *testing.T) {
	store, clock := newTestStore(t)
	ctx := context.Background()

	now := clock.Now()
	pending := &storage.PendingAuthorization{
		ProxyState:        "state-1",
		ClientID:          "client-1",
		ClientRedirectURI: "http://localhost:54321/cb",
		ClientState:       "client-state",
		CodeChallenge:     "challenge",
		CreatedAt:         now,
		ExpiresAt:         now.Add(10 * time.Minute),
	}
	if err := store.SavePendingAuthorization(ctx, pending); err != nil {
		t.Fatalf("SavePendingAuthorization() error = %v", err)
	}

	got, err := store.ConsumePendingAuthorization(ctx, "state-1")
	if err != nil {
		t.Fatalf("ConsumePendingAuthorization() error = %v", err)
	}
	if got.ClientState != "client-state" {
		t.Errorf("client state = %q, want %q", got.ClientState, "client-state")
	}

	// Consuming removes the record.
	_, err = store.ConsumePendingAuthorization(ctx, "state-1")
	if !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("second consume error = %v, want ErrNotFound", err)
	}

	_, err = store.ConsumePendingAuthorization(ctx, "never-saved")
	if !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("unknown state error = %v, want ErrNotFound", err)
	}
}

func TestStore_PendingAuthorization_Expiry(t *testing.T) {
	store, clock := newTestStore(t)
	ctx := context.Background()

	now := clock.Now()
	pending := &storage.PendingAuthorization{
		ProxyState: "state-exp",
		ClientID:   "client-1",
		CreatedAt:  now,
		ExpiresAt:  now.Add(10 * time.Minute),
	}
	if err := store.SavePendingAuthorization(ctx, pending); err != nil {
		t.Fatalf("SavePendingAuthorization() error = %v", err)
	}

	clock.Advance(10*time.Minute + time.Second)

	_, err := store.ConsumePendingAuthorization(ctx, "state-exp")
	if !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("expired consume error = %v, want ErrNotFound", err)
	}
}

func TestStore_AuthorizationCode(t *testing.T) {
	store, clock := newTestStore(t)
	ctx := context.Background()

	now := clock.Now()
	record := &storage.AuthorizationCode{
		Code:          "code-1",
		ClientID:      "client-1",
		CodeChallenge: "challenge",
		UpstreamToken: testutil.GenerateTestToken(),
		UserInfo:      testutil.GenerateTestUserInfo(),
		CreatedAt:     now,
		ExpiresAt:     now.Add(10 * time.Minute),
	}
	if err := store.SaveAuthorizationCode(ctx, record); err != nil {
		t.Fatalf("SaveAuthorizationCode() error = %v", err)
	}

	got, err := store.ConsumeAuthorizationCode(ctx, "code-1")
	if err != nil {
		t.Fatalf("ConsumeAuthorizationCode() error = %v", err)
	}
	if got.UserInfo == nil || got.UserInfo.ID != "test-user-123" {
		t.Errorf("user info = %+v, want test-user-123", got.UserInfo)
	}
	if got.UpstreamToken == nil || got.UpstreamToken.AccessToken == "" {
		t.Error("upstream token missing from consumed record")
	}

	// Single use: the replay window is closed at the store.
	_, err = store.ConsumeAuthorizationCode(ctx, "code-1")
	if !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("second consume error = %v, want ErrNotFound", err)
	}
}

func TestStore_AuthorizationCode_Expiry(t *testing.T) {
	store, clock := newTestStore(t)
	ctx := context.Background()

	now := clock.Now()
	record := &storage.AuthorizationCode{
		Code:      "code-exp",
		ClientID:  "client-1",
		CreatedAt: now,
		ExpiresAt: now.Add(10 * time.Minute),
	}
	if err := store.SaveAuthorizationCode(ctx, record); err != nil {
		t.Fatalf("SaveAuthorizationCode() error = %v", err)
	}

	clock.Advance(10*time.Minute + time.Second)

	_, err := store.ConsumeAuthorizationCode(ctx, "code-exp")
	if !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("expired consume error = %v, want ErrNotFound", err)
	}
}

func TestStore_AccessToken(t *testing.T) {
	store, clock := newTestStore(t)
	ctx := context.Background()

	now := clock.Now()
	record := &storage.AccessTokenRecord{
		Token:     "access-1",
		ClientID:  "client-1",
		Resource:  "http://localhost:8005/mcp",
		Scope:     "openid",
		UserInfo:  testutil.GenerateTestUserInfo(),
		IssuedAt:  now,
		ExpiresAt: now.Add(time.Hour),
	}
	if err := store.SaveAccessToken(ctx, record); err != nil {
		t.Fatalf("SaveAccessToken() error = %v", err)
	}

	got, err := store.GetAccessToken(ctx, "access-1")
	if err != nil {
		t.Fatalf("GetAccessToken() error = %v", err)
	}
	if got.Resource != record.Resource {
		t.Errorf("resource = %q, want %q", got.Resource, record.Resource)
	}

	// Reads do not consume.
	if _, err := store.GetAccessToken(ctx, "access-1"); err != nil {
		t.Fatalf("second GetAccessToken() error = %v", err)
	}

	if err := store.DeleteAccessToken(ctx, "access-1"); err != nil {
		t.Fatalf("DeleteAccessToken() error = %v", err)
	}
	if _, err := store.GetAccessToken(ctx, "access-1"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("GetAccessToken() after delete error = %v, want ErrNotFound", err)
	}

	// Deleting an absent token is not an error.
	if err := store.DeleteAccessToken(ctx, "access-1"); err != nil {
		t.Fatalf("DeleteAccessToken() on absent token error = %v", err)
	}
}

func TestStore_AccessToken_ExpiryWithGrace(t *testing.T) {
	store, clock := newTestStore(t)
	ctx := context.Background()

	now := clock.Now()
	record := &storage.AccessTokenRecord{
		Token:     "access-exp",
		ClientID:  "client-1",
		IssuedAt:  now,
		ExpiresAt: now.Add(time.Hour),
	}
	if err := store.SaveAccessToken(ctx, record); err != nil {
		t.Fatalf("SaveAccessToken() error = %v", err)
	}

	// Within the clock-skew grace period the token still resolves.
	clock.Advance(time.Hour + 2*time.Second)
	if _, err := store.GetAccessToken(ctx, "access-exp"); err != nil {
		t.Fatalf("GetAccessToken() within grace error = %v", err)
	}

	clock.Advance(10 * time.Second)
	if _, err := store.GetAccessToken(ctx, "access-exp"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("GetAccessToken() past grace error = %v, want ErrNotFound", err)
	}
}

func TestStore_RefreshToken(t *testing.T) {
	store, clock := newTestStore(t)
	ctx := context.Background()

	now := clock.Now()
	record := &storage.RefreshTokenRecord{
		Token:                "refresh-1",
		ClientID:             "client-1",
		UpstreamRefreshToken: "upstream-refresh",
		CreatedAt:            now,
		ExpiresAt:            now.Add(90 * 24 * time.Hour),
	}
	if err := store.SaveRefreshToken(ctx, record); err != nil {
		t.Fatalf("SaveRefreshToken() error = %v", err)
	}

	got, err := store.ConsumeRefreshToken(ctx, "refresh-1")
	if err != nil {
		t.Fatalf("ConsumeRefreshToken() error = %v", err)
	}
	if got.UpstreamRefreshToken != "upstream-refresh" {
		t.Errorf("upstream refresh token = %q", got.UpstreamRefreshToken)
	}

	_, err = store.ConsumeRefreshToken(ctx, "refresh-1")
	if !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("second consume error = %v, want ErrNotFound", err)
	}
}

func TestStore_RefreshToken_Expiry(t *testing.T) {
	store, clock := newTestStore(t)
	ctx := context.Background()

	now := clock.Now()
	record := &storage.RefreshTokenRecord{
		Token:     "refresh-exp",
		ClientID:  "client-1",
		CreatedAt: now,
		ExpiresAt: now.Add(time.Hour),
	}
	if err := store.SaveRefreshToken(ctx, record); err != nil {
		t.Fatalf("SaveRefreshToken() error = %v", err)
	}

	clock.Advance(time.Hour + time.Second)

	_, err := store.ConsumeRefreshToken(ctx, "refresh-exp")
	if !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("expired consume error = %v, want ErrNotFound", err)
	}
}

func TestStore_Cleanup(t *testing.T) {
	store, clock := newTestStore(t)
	ctx := context.Background()

	now := clock.Now()
	seed := []error{
		store.SavePendingAuthorization(ctx, &storage.PendingAuthorization{
			ProxyState: "p1", ClientID: "c", ExpiresAt: now.Add(time.Minute),
		}),
		store.SaveAuthorizationCode(ctx, &storage.AuthorizationCode{
			Code: "c1", ClientID: "c", ExpiresAt: now.Add(time.Minute),
		}),
		store.SaveAccessToken(ctx, &storage.AccessTokenRecord{
			Token: "a1", ClientID: "c", ExpiresAt: now.Add(time.Minute),
		}),
		store.SaveRefreshToken(ctx, &storage.RefreshTokenRecord{
			Token: "r1", ClientID: "c", ExpiresAt: now.Add(time.Minute),
		}),
	}
	for _, err := range seed {
		if err != nil {
			t.Fatalf("seeding store: %v", err)
		}
	}

	clock.Advance(time.Hour)
	store.cleanup()

	store.mu.RLock()
	defer store.mu.RUnlock()
	if len(store.pending) != 0 {
		t.Errorf("pending records after cleanup = %d, want 0", len(store.pending))
	}
	if len(store.codes) != 0 {
		t.Errorf("code records after cleanup = %d, want 0", len(store.codes))
	}
	if len(store.accessTokens) != 0 {
		t.Errorf("access token records after cleanup = %d, want 0", len(store.accessTokens))
	}
	if len(store.refreshToks) != 0 {
		t.Errorf("refresh token records after cleanup = %d, want 0", len(store.refreshToks))
	}
}
