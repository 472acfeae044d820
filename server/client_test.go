package server

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/giantswarm/mcp-auth-proxy/internal/testutil"
	"github.com/giantswarm/mcp-auth-proxy/providers/mock"
	"github.com/giantswarm/mcp-auth-proxy/storage/memory"
)

func TestServer_RegisterClient(t *testing.T) {
	tests := []struct {
		name       string
		input      *ClientRegistrationInput
		wantType   string
		wantSecret bool
		wantCode   string
	}{
		{
			name: "public client",
			input: &ClientRegistrationInput{
				RedirectURIs:            []string{"http://localhost:54321/cb"},
				TokenEndpointAuthMethod: "none",
				ClientName:              "CLI",
			},
			wantType: ClientTypePublic,
		},
		{
			name: "confidential client with basic auth",
			input: &ClientRegistrationInput{
				RedirectURIs:            []string{"http://127.0.0.1:9999/cb"},
				TokenEndpointAuthMethod: "client_secret_basic",
			},
			wantType:   ClientTypeConfidential,
			wantSecret: true,
		},
		{
			name: "empty auth method defaults to confidential",
			input: &ClientRegistrationInput{
				RedirectURIs: []string{"http://localhost:1234/cb"},
			},
			wantType:   ClientTypeConfidential,
			wantSecret: true,
		},
		{
			name: "allow-listed non-loopback URI",
			input: &ClientRegistrationInput{
				RedirectURIs:            []string{"https://example.com/callback"},
				TokenEndpointAuthMethod: "none",
			},
			wantType: ClientTypePublic,
		},
		{
			name:     "no redirect URIs",
			input:    &ClientRegistrationInput{},
			wantCode: ErrorCodeInvalidRedirectURI,
		},
		{
			name: "URI outside the allow-list",
			input: &ClientRegistrationInput{
				RedirectURIs: []string{"https://attacker.example.net/cb"},
			},
			wantCode: ErrorCodeInvalidRedirectURI,
		},
		{
			name: "one bad URI rejects the whole registration",
			input: &ClientRegistrationInput{
				RedirectURIs: []string{"http://localhost:54321/cb", "https://attacker.example.net/cb"},
			},
			wantCode: ErrorCodeInvalidRedirectURI,
		},
		{
			name: "dangerous scheme",
			input: &ClientRegistrationInput{
				RedirectURIs: []string{"javascript:alert(1)"},
			},
			wantCode: ErrorCodeInvalidRedirectURI,
		},
		{
			name: "wildcard pattern present verbatim in the allow-list",
			input: &ClientRegistrationInput{
				RedirectURIs:            []string{"http://localhost:*"},
				TokenEndpointAuthMethod: "none",
			},
			wantType: ClientTypePublic,
		},
		{
			name: "wildcard pattern not in the allow-list",
			input: &ClientRegistrationInput{
				RedirectURIs: []string{"http://127.0.0.1:*/path"},
			},
			wantCode: ErrorCodeInvalidRedirectURI,
		},
		{
			name: "unsupported auth method",
			input: &ClientRegistrationInput{
				RedirectURIs:            []string{"http://localhost:54321/cb"},
				TokenEndpointAuthMethod: "private_key_jwt",
			},
			wantCode: ErrorCodeInvalidRequest,
		},
		{
			name: "unsupported scope",
			input: &ClientRegistrationInput{
				RedirectURIs: []string{"http://localhost:54321/cb"},
				Scope:        "openid admin",
			},
			wantCode: ErrorCodeInvalidScope,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, _, _ := setupFlowTestServer(t)

			client, secret, err := srv.RegisterClient(context.Background(), tt.input)
			if tt.wantCode != "" {
				assertFlowError(t, err, tt.wantCode)
				return
			}
			if err != nil {
				t.Fatalf("RegisterClient() error = %v", err)
			}
			if client.ClientID == "" {
				t.Error("client has no ID")
			}
			if client.ClientType != tt.wantType {
				t.Errorf("client type = %q, want %q", client.ClientType, tt.wantType)
			}
			if tt.wantSecret && secret == "" {
				t.Error("confidential client got no secret")
			}
			if !tt.wantSecret && secret != "" {
				t.Error("public client got a secret")
			}
			if tt.wantSecret && client.ClientSecretHash == secret {
				t.Error("client secret stored in plaintext")
			}
		})
	}
}

// Registrations are never deduplicated: two identical requests must yield
// two distinct clients.
func TestServer_RegisterClient_NoDeduplication(t *testing.T) {
	srv, _, _ := setupFlowTestServer(t)

	input := &ClientRegistrationInput{
		RedirectURIs:            []string{"http://localhost:54321/cb"},
		TokenEndpointAuthMethod: "none",
		ClientName:              "Same Client",
	}

	a, _, err := srv.RegisterClient(context.Background(), input)
	if err != nil {
		t.Fatalf("RegisterClient() error = %v", err)
	}
	b, _, err := srv.RegisterClient(context.Background(), input)
	if err != nil {
		t.Fatalf("RegisterClient() error = %v", err)
	}
	if a.ClientID == b.ClientID {
		t.Errorf("identical registrations shared client ID %q", a.ClientID)
	}
}

func TestServer_RegisterClient_Concurrent(t *testing.T) {
	srv, _, _ := setupFlowTestServer(t)

	const n = 20
	var (
		wg  sync.WaitGroup
		mu  sync.Mutex
		ids = make(map[string]bool, n)
	)

	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			client, _, err := srv.RegisterClient(context.Background(), &ClientRegistrationInput{
				RedirectURIs:            []string{"http://localhost:54321/cb"},
				TokenEndpointAuthMethod: "none",
				ClientIP:                fmt.Sprintf("192.0.2.%d", i+1),
			})
			if err != nil {
				t.Errorf("RegisterClient() error = %v", err)
				return
			}
			mu.Lock()
			ids[client.ClientID] = true
			mu.Unlock()
		}(i)
	}
	wg.Wait()

	if len(ids) != n {
		t.Errorf("got %d unique client IDs, want %d", len(ids), n)
	}
}

func TestServer_RegisterClient_IPLimit(t *testing.T) {
	store := memory.New()
	t.Cleanup(store.Stop)

	config := testConfig()
	config.MaxClientsPerIP = 2

	srv, err := New(mock.NewProvider(), store, store, store, config, testutil.DiscardLogger())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	input := &ClientRegistrationInput{
		RedirectURIs:            []string{"http://localhost:54321/cb"},
		TokenEndpointAuthMethod: "none",
		ClientIP:                "192.0.2.77",
	}
	for i := 0; i < 2; i++ {
		if _, _, err := srv.RegisterClient(context.Background(), input); err != nil {
			t.Fatalf("RegisterClient() #%d error = %v", i+1, err)
		}
	}

	_, _, err = srv.RegisterClient(context.Background(), input)
	assertFlowError(t, err, ErrorCodeRateLimitExceeded)

	// Other addresses are unaffected.
	other := *input
	other.ClientIP = "192.0.2.78"
	if _, _, err := srv.RegisterClient(context.Background(), &other); err != nil {
		t.Fatalf("RegisterClient() from another IP error = %v", err)
	}
}

func TestServer_GetClient(t *testing.T) {
	srv, _, _ := setupFlowTestServer(t)
	client := registerTestClient(t, srv)

	got, err := srv.GetClient(context.Background(), client.ClientID)
	if err != nil {
		t.Fatalf("GetClient() error = %v", err)
	}
	if got.ClientID != client.ClientID {
		t.Errorf("client ID = %q, want %q", got.ClientID, client.ClientID)
	}

	_, err = srv.GetClient(context.Background(), "no-such-client")
	assertFlowError(t, err, ErrorCodeInvalidClient)

	_, err = srv.GetClient(context.Background(), "")
	assertFlowError(t, err, ErrorCodeInvalidClient)
}

func TestServer_ValidateClientCredentials(t *testing.T) {
	srv, _, _ := setupFlowTestServer(t)

	client, secret, err := srv.RegisterClient(context.Background(), &ClientRegistrationInput{
		RedirectURIs: []string{"http://localhost:54321/cb"},
	})
	if err != nil {
		t.Fatalf("RegisterClient() error = %v", err)
	}

	if err := srv.ValidateClientCredentials(context.Background(), client.ClientID, secret); err != nil {
		t.Fatalf("ValidateClientCredentials() error = %v", err)
	}

	err = srv.ValidateClientCredentials(context.Background(), client.ClientID, "wrong-secret")
	assertFlowError(t, err, ErrorCodeInvalidClient)

	err = srv.ValidateClientCredentials(context.Background(), "no-such-client", secret)
	assertFlowError(t, err, ErrorCodeInvalidClient)
}
