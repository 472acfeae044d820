package server

import (
	"testing"

	"github.com/giantswarm/mcp-auth-proxy/internal/testutil"
	"github.com/giantswarm/mcp-auth-proxy/providers/mock"
	"github.com/giantswarm/mcp-auth-proxy/storage/memory"
)

func TestNew_RequiredDependencies(t *testing.T) {
	store := memory.New()
	t.Cleanup(store.Stop)
	provider := mock.NewProvider()
	logger := testutil.DiscardLogger()

	if _, err := New(nil, store, store, store, testConfig(), logger); err == nil {
		t.Error("New() without provider succeeded")
	}
	if _, err := New(provider, nil, store, store, testConfig(), logger); err == nil {
		t.Error("New() without client store succeeded")
	}
	if _, err := New(provider, store, nil, store, testConfig(), logger); err == nil {
		t.Error("New() without flow store succeeded")
	}
	if _, err := New(provider, store, store, nil, testConfig(), logger); err == nil {
		t.Error("New() without token store succeeded")
	}
	if _, err := New(provider, store, store, store, nil, logger); err == nil {
		t.Error("New() without config succeeded")
	}

	if _, err := New(provider, store, store, store, testConfig(), nil); err != nil {
		t.Errorf("New() with nil logger error = %v", err)
	}
}

func TestGenerateToken(t *testing.T) {
	a, b := generateToken(), generateToken()
	if a == b {
		t.Error("consecutive tokens are identical")
	}
	if len(a) < 43 {
		t.Errorf("token length = %d, want at least 43", len(a))
	}
}
