package server

import (
	"fmt"
	"log/slog"

	"golang.org/x/oauth2"

	"github.com/giantswarm/mcp-auth-proxy/providers"
	"github.com/giantswarm/mcp-auth-proxy/security"
	"github.com/giantswarm/mcp-auth-proxy/storage"
)

// Server is the authorization proxy's flow engine. All fields are set at
// construction and never mutated, so a Server is safe for concurrent use.
type Server struct {
	provider providers.Provider
	clients  storage.ClientStore
	flows    storage.FlowStore
	tokens   storage.TokenStore
	config   *Config

	// Clock is the time source for expiry stamps; tests may replace it
	clock security.Clock

	// Auditor records security events, nil disables auditing
	auditor *security.Auditor

	logger *slog.Logger
}

// Option customizes a Server.
type Option func(*Server)

// WithClock replaces the time source, enabling deterministic expiry tests.
func WithClock(clock security.Clock) Option {
	return func(s *Server) { s.clock = clock }
}

// WithAuditor attaches a security auditor.
func WithAuditor(auditor *security.Auditor) Option {
	return func(s *Server) { s.auditor = auditor }
}

// New creates a flow engine. provider, the stores, and config are required.
// A nil logger falls back to slog.Default.
func New(provider providers.Provider, clients storage.ClientStore, flows storage.FlowStore, tokens storage.TokenStore, config *Config, logger *slog.Logger, opts ...Option) (*Server, error) {
	if provider == nil {
		return nil, fmt.Errorf("provider is required")
	}
	if clients == nil {
		return nil, fmt.Errorf("client store is required")
	}
	if flows == nil {
		return nil, fmt.Errorf("flow store is required")
	}
	if tokens == nil {
		return nil, fmt.Errorf("token store is required")
	}
	if config == nil {
		return nil, fmt.Errorf("config is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	config.applyDefaults()
	if err := config.validate(logger); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	s := &Server{
		provider: provider,
		clients:  clients,
		flows:    flows,
		tokens:   tokens,
		config:   config,
		clock:    security.SystemClock{},
		logger:   logger,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s, nil
}

// Config returns the server's configuration.
func (s *Server) Config() *Config {
	return s.config
}

// generateToken produces an opaque, unguessable value for client IDs,
// secrets, states, codes, and bearer tokens. oauth2.GenerateVerifier
// yields 43 chars of crypto/rand base64url.
func generateToken() string {
	return oauth2.GenerateVerifier()
}

func (s *Server) audit(event security.Event) {
	s.auditor.LogEvent(event)
}
