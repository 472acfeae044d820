package authproxy

import (
	"slices"
	"testing"

	"github.com/giantswarm/mcp-auth-proxy/internal/testutil"
)

func TestConfig_Resource(t *testing.T) {
	tests := []struct {
		name    string
		baseURL string
		mcpPath string
		want    string
	}{
		{"plain", "http://localhost:8005", "/mcp", "http://localhost:8005/mcp"},
		{"trailing slash on base URL", "http://localhost:8005/", "/mcp", "http://localhost:8005/mcp"},
		{"nested path", "https://auth.example.com", "/api/mcp", "https://auth.example.com/api/mcp"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := &Config{BaseURL: tt.baseURL, MCPPath: tt.mcpPath}
			if got := c.Resource(); got != tt.want {
				t.Errorf("Resource() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestLoadConfigFromEnv(t *testing.T) {
	t.Setenv(EnvUpstreamClientID, "upstream-id")
	t.Setenv(EnvUpstreamClientSecret, "upstream-secret")
	t.Setenv(EnvBaseURL, "http://auth.example.com:9000/")
	t.Setenv(EnvMCPPath, "/tools")
	t.Setenv(EnvRequiredScopes, "openid email")
	t.Setenv(EnvAllowedClientRedirectURIs, "http://localhost:* ; https://example.com/cb")

	cfg, err := LoadConfigFromEnv()
	if err != nil {
		t.Fatalf("LoadConfigFromEnv() error = %v", err)
	}

	if cfg.BaseURL != "http://auth.example.com:9000" {
		t.Errorf("BaseURL = %q, trailing slash not trimmed", cfg.BaseURL)
	}
	if cfg.MCPPath != "/tools" {
		t.Errorf("MCPPath = %q", cfg.MCPPath)
	}
	if cfg.Resource() != "http://auth.example.com:9000/tools" {
		t.Errorf("Resource() = %q", cfg.Resource())
	}
	if !slices.Equal(cfg.SupportedScopes, []string{"openid", "email"}) {
		t.Errorf("SupportedScopes = %v", cfg.SupportedScopes)
	}
	if !slices.Equal(cfg.AllowedRedirectPatterns, []string{"http://localhost:*", "https://example.com/cb"}) {
		t.Errorf("AllowedRedirectPatterns = %v", cfg.AllowedRedirectPatterns)
	}
	if cfg.Upstream.ClientID != "upstream-id" || cfg.Upstream.ClientSecret != "upstream-secret" {
		t.Error("upstream credentials not loaded")
	}
}

func TestLoadConfigFromEnv_Defaults(t *testing.T) {
	t.Setenv(EnvUpstreamClientID, "upstream-id")
	t.Setenv(EnvUpstreamClientSecret, "upstream-secret")

	cfg, err := LoadConfigFromEnv()
	if err != nil {
		t.Fatalf("LoadConfigFromEnv() error = %v", err)
	}
	if cfg.BaseURL != DefaultBaseURL {
		t.Errorf("BaseURL = %q, want %q", cfg.BaseURL, DefaultBaseURL)
	}
	if cfg.MCPPath != DefaultMCPPath {
		t.Errorf("MCPPath = %q, want %q", cfg.MCPPath, DefaultMCPPath)
	}
	if len(cfg.AllowedRedirectPatterns) != 2 {
		t.Errorf("AllowedRedirectPatterns = %v, want the loopback defaults", cfg.AllowedRedirectPatterns)
	}
}

func TestLoadConfigFromEnv_MissingCredentials(t *testing.T) {
	t.Setenv(EnvUpstreamClientID, "")
	t.Setenv(EnvUpstreamClientSecret, "")

	if _, err := LoadConfigFromEnv(); err == nil {
		t.Fatal("LoadConfigFromEnv() = nil, want error")
	}
}

func TestNew(t *testing.T) {
	h, err := New(&Config{
		BaseURL: "http://localhost:8005",
		Upstream: UpstreamConfig{
			ClientID:     "upstream-id",
			ClientSecret: "upstream-secret",
		},
		Logger: testutil.DiscardLogger(),
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer h.Close()

	if got := h.server.Config().Resource; got != "http://localhost:8005/mcp" {
		t.Errorf("resource = %q", got)
	}
}

func TestNew_MissingUpstreamCredentials(t *testing.T) {
	_, err := New(&Config{BaseURL: "http://localhost:8005"})
	if err == nil {
		t.Fatal("New() = nil, want error")
	}
}

func TestNew_NilConfig(t *testing.T) {
	if _, err := New(nil); err == nil {
		t.Fatal("New(nil) = nil, want error")
	}
}
