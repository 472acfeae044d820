package authproxy

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/giantswarm/mcp-auth-proxy/instrumentation"
	"github.com/giantswarm/mcp-auth-proxy/providers"
	"github.com/giantswarm/mcp-auth-proxy/security"
	"github.com/giantswarm/mcp-auth-proxy/server"
	"github.com/giantswarm/mcp-auth-proxy/storage"
	"github.com/giantswarm/mcp-auth-proxy/storage/memory"
)

// accessRecordContextKey keys the validated token record on the request context.
type accessRecordContextKey struct{}

// Handler adapts the flow engine to HTTP. It owns request parsing, rate
// limiting, error rendering (JSON bodies or redirect parameters), security
// headers, and the Resource Guard middleware for protected endpoints.
type Handler struct {
	server  *server.Server
	config  *Config
	logger  *slog.Logger
	tracer  trace.Tracer
	limiter *security.RateLimiter

	httpRequests metric.Int64Counter
	httpDuration metric.Float64Histogram

	// store is set by New so Close can stop it; nil when the store is
	// owned by the caller
	store *memory.Store
}

// NewHandler creates an HTTP adapter for the flow engine.
func NewHandler(srv *server.Server, config *Config) *Handler {
	config.applyDefaults()

	h := &Handler{
		server:  srv,
		config:  config,
		logger:  config.Logger,
		tracer:  otel.Tracer("github.com/giantswarm/mcp-auth-proxy/http"),
		limiter: security.NewRateLimiter(config.RateLimit.RequestsPerSecond, config.RateLimit.Burst),
	}

	meter := otel.Meter("github.com/giantswarm/mcp-auth-proxy/http")
	h.httpRequests, _ = meter.Int64Counter("oauth.http.requests.total",
		metric.WithDescription("Total HTTP requests by endpoint, method, and status"))
	h.httpDuration, _ = meter.Float64Histogram("oauth.http.request.duration",
		metric.WithDescription("HTTP request duration in milliseconds"),
		metric.WithUnit("ms"))

	return h
}

// Close stops the handler's background resources.
func (h *Handler) Close() {
	h.limiter.Stop()
	if h.store != nil {
		h.store.Stop()
	}
}

// RegisterRoutes mounts the proxy's endpoints on the mux. The protected
// resource itself is mounted by the application, wrapped in ValidateToken.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc(server.PathProtectedResourceMetadata, h.ServeProtectedResourceMetadata)
	mux.HandleFunc(server.PathAuthorizationServerMetadata, h.ServeAuthorizationServerMetadata)
	mux.HandleFunc(server.PathRegister, h.ServeClientRegistration)
	mux.HandleFunc(server.PathAuthorize, h.ServeAuthorization)
	mux.HandleFunc(server.PathCallback, h.ServeCallback)
	mux.HandleFunc(server.PathToken, h.ServeToken)
	mux.HandleFunc("/healthz", h.ServeHealth)
}

// ==================== Discovery Publisher ====================

// ServeProtectedResourceMetadata serves RFC 9728 protected resource metadata.
func (h *Handler) ServeProtectedResourceMetadata(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	security.SetSecurityHeaders(w, r)
	h.setCORSHeaders(w)
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	if r.Method != http.MethodGet {
		h.writeError(w, ErrorCodeInvalidRequest, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	cfg := h.server.Config()
	metadata := ProtectedResourceMetadata{
		Resource:               cfg.Resource,
		AuthorizationServers:   []string{cfg.Issuer},
		BearerMethodsSupported: []string{"header"},
		ScopesSupported:        cfg.SupportedScopes,
	}

	h.writeJSON(w, http.StatusOK, metadata)
	h.recordHTTP(r.Context(), "protected_resource_metadata", r.Method, http.StatusOK, start)
}

// ServeAuthorizationServerMetadata serves RFC 8414 authorization server metadata.
func (h *Handler) ServeAuthorizationServerMetadata(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	security.SetSecurityHeaders(w, r)
	h.setCORSHeaders(w)
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	if r.Method != http.MethodGet {
		h.writeError(w, ErrorCodeInvalidRequest, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	cfg := h.server.Config()
	metadata := AuthorizationServerMetadata{
		Issuer:                            cfg.Issuer,
		AuthorizationEndpoint:             cfg.AuthorizationEndpoint(),
		TokenEndpoint:                     cfg.TokenEndpoint(),
		RegistrationEndpoint:              cfg.RegistrationEndpoint(),
		ScopesSupported:                   cfg.SupportedScopes,
		ResponseTypesSupported:            []string{"code"},
		GrantTypesSupported:               []string{"authorization_code", "refresh_token"},
		TokenEndpointAuthMethodsSupported: []string{"client_secret_basic", "client_secret_post", "none"},
		CodeChallengeMethodsSupported:     []string{server.PKCEMethodS256},
	}

	h.writeJSON(w, http.StatusOK, metadata)
	h.recordHTTP(r.Context(), "authorization_server_metadata", r.Method, http.StatusOK, start)
}

// ==================== Client Registry ====================

// ServeClientRegistration handles dynamic client registration (RFC 7591).
func (h *Handler) ServeClientRegistration(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx, span := h.tracer.Start(r.Context(), "oauth.register")
	defer span.End()

	security.SetSecurityHeaders(w, r)
	h.setCORSHeaders(w)
	security.SetNoStoreHeaders(w)
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	if r.Method != http.MethodPost {
		h.writeError(w, ErrorCodeInvalidRequest, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	clientIP := h.clientIP(r)
	if !h.limiter.Allow(clientIP) {
		h.writeError(w, ErrorCodeRateLimitExceeded, "too many requests", http.StatusTooManyRequests)
		h.recordHTTP(ctx, "register", r.Method, http.StatusTooManyRequests, start)
		return
	}

	var req ClientRegistrationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, ErrorCodeInvalidRequest, "malformed registration request", http.StatusBadRequest)
		h.recordHTTP(ctx, "register", r.Method, http.StatusBadRequest, start)
		return
	}

	client, secret, err := h.server.RegisterClient(ctx, &server.ClientRegistrationInput{
		RedirectURIs:            req.RedirectURIs,
		TokenEndpointAuthMethod: req.TokenEndpointAuthMethod,
		ClientName:              req.ClientName,
		Scope:                   req.Scope,
		ClientIP:                clientIP,
	})
	if err != nil {
		oerr := h.mapError(err)
		instrumentation.RecordError(span, err)
		h.writeError(w, oerr.Code, oerr.Description, oerr.Status)
		h.recordHTTP(ctx, "register", r.Method, oerr.Status, start)
		return
	}

	resp := ClientRegistrationResponse{
		ClientID:                client.ClientID,
		ClientSecret:            secret,
		ClientIDIssuedAt:        client.CreatedAt.Unix(),
		RedirectURIs:            client.RedirectURIs,
		TokenEndpointAuthMethod: client.TokenEndpointAuthMethod,
		GrantTypes:              client.GrantTypes,
		ResponseTypes:           client.ResponseTypes,
		ClientName:              client.ClientName,
		Scope:                   req.Scope,
	}

	instrumentation.SetSpanSuccess(span)
	h.writeJSON(w, http.StatusCreated, resp)
	h.recordHTTP(ctx, "register", r.Method, http.StatusCreated, start)
}

// ==================== Authorization Initiation ====================

// ServeAuthorization handles /authorize: it validates the request, records
// a pending authorization, and redirects the user agent to the upstream
// provider. Failures before the redirect URI is validated are answered
// directly; failures after are delivered to the client's redirect URI as
// error parameters, so the client's own error handling fires.
func (h *Handler) ServeAuthorization(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx, span := h.tracer.Start(r.Context(), "oauth.authorize")
	defer span.End()

	security.SetSecurityHeaders(w, r)
	if r.Method != http.MethodGet {
		h.writeError(w, ErrorCodeInvalidRequest, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	q := r.URL.Query()
	req := &server.AuthorizationRequest{
		ClientID:            q.Get("client_id"),
		RedirectURI:         q.Get("redirect_uri"),
		Scope:               q.Get("scope"),
		Resource:            q.Get("resource"),
		CodeChallenge:       q.Get("code_challenge"),
		CodeChallengeMethod: q.Get("code_challenge_method"),
		ClientState:         q.Get("state"),
		ClientIP:            h.clientIP(r),
	}
	span.SetAttributes(attribute.String("oauth.client_id", req.ClientID))

	// Until the client and redirect URI check out, the redirect target is
	// untrusted and errors must not be delivered through it.
	if err := h.server.ValidateAuthorizationTarget(ctx, req.ClientID, req.RedirectURI); err != nil {
		oerr := h.mapError(err)
		instrumentation.RecordError(span, err)
		h.writeError(w, oerr.Code, oerr.Description, oerr.Status)
		h.recordHTTP(ctx, "authorize", r.Method, oerr.Status, start)
		return
	}

	authURL, err := h.server.StartAuthorization(ctx, req)
	if err != nil {
		oerr := h.mapError(err)
		instrumentation.RecordError(span, err)
		h.redirectError(w, r, req.RedirectURI, req.ClientState, oerr)
		h.recordHTTP(ctx, "authorize", r.Method, http.StatusFound, start)
		return
	}

	instrumentation.SetSpanSuccess(span)
	h.recordHTTP(ctx, "authorize", r.Method, http.StatusFound, start)
	http.Redirect(w, r, authURL, http.StatusFound)
}

// ==================== Upstream Callback ====================

// ServeCallback handles the upstream provider's redirect back to the proxy.
func (h *Handler) ServeCallback(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx, span := h.tracer.Start(r.Context(), "oauth.callback")
	defer span.End()

	security.SetSecurityHeaders(w, r)
	if r.Method != http.MethodGet {
		h.writeError(w, ErrorCodeInvalidRequest, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	q := r.URL.Query()
	redirectURL, err := h.server.HandleUpstreamCallback(ctx,
		q.Get("state"), q.Get("code"), q.Get("error"), q.Get("error_description"))

	if redirectURL != "" {
		// The target is the client's own registered redirect URI; it
		// carries either the code or the error parameters.
		if err != nil {
			instrumentation.RecordError(span, err)
			h.logger.Warn("authorization flow failed after callback", "error", err)
		} else {
			instrumentation.SetSpanSuccess(span)
		}
		h.recordHTTP(ctx, "callback", r.Method, http.StatusFound, start)
		http.Redirect(w, r, redirectURL, http.StatusFound)
		return
	}

	oerr := h.mapError(err)
	instrumentation.RecordError(span, err)
	h.writeError(w, oerr.Code, oerr.Description, oerr.Status)
	h.recordHTTP(ctx, "callback", r.Method, oerr.Status, start)
}

// ==================== Token Endpoint ====================

// ServeToken handles the token endpoint for the authorization_code and
// refresh_token grants.
func (h *Handler) ServeToken(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx, span := h.tracer.Start(r.Context(), "oauth.token")
	defer span.End()

	security.SetSecurityHeaders(w, r)
	h.setCORSHeaders(w)
	security.SetNoStoreHeaders(w)
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	if r.Method != http.MethodPost {
		h.writeError(w, ErrorCodeInvalidRequest, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	clientIP := h.clientIP(r)
	if !h.limiter.Allow(clientIP) {
		h.writeError(w, ErrorCodeRateLimitExceeded, "too many requests", http.StatusTooManyRequests)
		h.recordHTTP(ctx, "token", r.Method, http.StatusTooManyRequests, start)
		return
	}

	if err := r.ParseForm(); err != nil {
		h.writeError(w, ErrorCodeInvalidRequest, "malformed form body", http.StatusBadRequest)
		h.recordHTTP(ctx, "token", r.Method, http.StatusBadRequest, start)
		return
	}

	clientID, err := h.authenticateClient(ctx, r)
	if err != nil {
		oerr := h.mapError(err)
		instrumentation.RecordError(span, err)
		h.writeError(w, oerr.Code, oerr.Description, oerr.Status)
		h.recordHTTP(ctx, "token", r.Method, oerr.Status, start)
		return
	}
	span.SetAttributes(attribute.String("oauth.client_id", clientID))

	var grant *server.TokenGrant
	grantType := r.PostFormValue("grant_type")
	switch grantType {
	case "authorization_code":
		grant, err = h.server.ExchangeAuthorizationCode(ctx,
			r.PostFormValue("code"),
			clientID,
			r.PostFormValue("redirect_uri"),
			r.PostFormValue("code_verifier"))
	case "refresh_token":
		grant, err = h.server.RefreshAccessToken(ctx, r.PostFormValue("refresh_token"), clientID)
	default:
		err = server.FlowErrorf(server.ErrorCodeUnsupportedGrantType,
			"grant type %q is not supported", grantType)
	}

	if err != nil {
		oerr := h.mapError(err)
		instrumentation.RecordError(span, err)
		h.writeError(w, oerr.Code, oerr.Description, oerr.Status)
		h.recordHTTP(ctx, "token", r.Method, oerr.Status, start)
		return
	}

	resp := TokenResponse{
		AccessToken:  grant.AccessToken,
		TokenType:    "Bearer",
		ExpiresIn:    grant.ExpiresIn,
		RefreshToken: grant.RefreshToken,
		Scope:        grant.Scope,
	}

	instrumentation.SetSpanSuccess(span)
	h.writeJSON(w, http.StatusOK, resp)
	h.recordHTTP(ctx, "token", r.Method, http.StatusOK, start)
}

// authenticateClient resolves and, for confidential clients, authenticates
// the client on a token request. Credentials are accepted via HTTP Basic
// auth or form fields.
func (h *Handler) authenticateClient(ctx context.Context, r *http.Request) (string, error) {
	clientID, clientSecret, ok := r.BasicAuth()
	if !ok {
		clientID = r.PostFormValue("client_id")
		clientSecret = r.PostFormValue("client_secret")
	}

	client, err := h.server.GetClient(ctx, clientID)
	if err != nil {
		return "", err
	}

	if client.TokenEndpointAuthMethod != "none" {
		if err := h.server.ValidateClientCredentials(ctx, clientID, clientSecret); err != nil {
			return "", err
		}
	}

	return client.ClientID, nil
}

// ==================== Resource Guard ====================

// ValidateToken is the Resource Guard middleware. A missing or invalid
// bearer token yields 401 with a WWW-Authenticate challenge pointing at the
// protected resource metadata, which lets clients bootstrap the whole flow
// from an unauthenticated probe. On success the token record is placed on
// the request context.
func (h *Handler) ValidateToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, span := h.tracer.Start(r.Context(), "oauth.validate_token")
		defer span.End()

		bearer := extractBearerToken(r)
		if bearer == "" {
			h.writeUnauthorized(w, "missing bearer token")
			return
		}

		record, err := h.server.ValidateAccessToken(ctx, bearer)
		if err != nil {
			instrumentation.RecordError(span, err)
			h.writeUnauthorized(w, "invalid or expired token")
			return
		}

		instrumentation.SetSpanSuccess(span)
		next.ServeHTTP(w, r.WithContext(ContextWithAccessRecord(ctx, record)))
	})
}

// RequireScopes returns middleware rejecting tokens that do not cover every
// required scope. It must run inside ValidateToken.
func (h *Handler) RequireScopes(scopes ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			record, ok := AccessRecordFromContext(r.Context())
			if !ok {
				h.writeUnauthorized(w, "missing bearer token")
				return
			}
			if !scopesCover(record.Scope, scopes) {
				h.writeInsufficientScope(w, scopes)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// extractBearerToken pulls the token out of the Authorization header.
func extractBearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if len(auth) > len(prefix) && strings.EqualFold(auth[:len(prefix)], prefix) {
		return auth[len(prefix):]
	}
	return ""
}

// scopesCover reports whether the granted scope string covers all required scopes.
func scopesCover(granted string, required []string) bool {
	have := make(map[string]bool)
	for _, sc := range strings.Fields(granted) {
		have[sc] = true
	}
	for _, sc := range required {
		if !have[sc] {
			return false
		}
	}
	return true
}

// ContextWithAccessRecord attaches a validated token record to the context.
func ContextWithAccessRecord(ctx context.Context, record *storage.AccessTokenRecord) context.Context {
	return context.WithValue(ctx, accessRecordContextKey{}, record)
}

// AccessRecordFromContext retrieves the validated token record. Protected
// endpoint handlers use this instead of re-validating the token.
func AccessRecordFromContext(ctx context.Context) (*storage.AccessTokenRecord, bool) {
	record, ok := ctx.Value(accessRecordContextKey{}).(*storage.AccessTokenRecord)
	return record, ok
}

// UserInfoFromContext retrieves the upstream identity behind the request's token.
func UserInfoFromContext(ctx context.Context) (*providers.UserInfo, bool) {
	record, ok := AccessRecordFromContext(ctx)
	if !ok || record.UserInfo == nil {
		return nil, false
	}
	return record.UserInfo, true
}

// ==================== Health ====================

// ServeHealth serves the unauthenticated liveness endpoint.
func (h *Handler) ServeHealth(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	security.SetSecurityHeaders(w, r)
	if r.Method != http.MethodGet {
		h.writeError(w, ErrorCodeInvalidRequest, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	cfg := h.server.Config()
	h.writeJSON(w, http.StatusOK, HealthResponse{
		Status:   "ok",
		BaseURL:  h.config.BaseURL,
		MCPPath:  h.config.MCPPath,
		Resource: cfg.Resource,
		Scopes:   cfg.SupportedScopes,
	})
	h.recordHTTP(r.Context(), "health", r.Method, http.StatusOK, start)
}

// ==================== response helpers ====================

func (h *Handler) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.logger.Error("writing JSON response", "error", err)
	}
}

// writeError writes a direct JSON error response.
func (h *Handler) writeError(w http.ResponseWriter, code, description string, status int) {
	if status == http.StatusUnauthorized {
		w.Header().Set("WWW-Authenticate", h.formatWWWAuthenticate(code))
	}
	h.writeJSON(w, status, ErrorResponse{Error: code, ErrorDescription: description})
}

// writeUnauthorized writes the guard's 401 challenge. The header format is
// fixed; clients parse resource_metadata to discover the authorization
// server.
func (h *Handler) writeUnauthorized(w http.ResponseWriter, description string) {
	w.Header().Set("WWW-Authenticate", h.formatWWWAuthenticate(ErrorCodeInvalidToken))
	h.writeJSON(w, http.StatusUnauthorized, ErrorResponse{
		Error:            ErrorCodeInvalidToken,
		ErrorDescription: description,
	})
}

// writeInsufficientScope writes the guard's 403 response.
func (h *Handler) writeInsufficientScope(w http.ResponseWriter, required []string) {
	w.Header().Set("WWW-Authenticate", h.formatWWWAuthenticate(ErrorCodeInsufficientScope))
	h.writeJSON(w, http.StatusForbidden, ErrorResponse{
		Error:            ErrorCodeInsufficientScope,
		ErrorDescription: "token does not cover scopes: " + strings.Join(required, " "),
	})
}

// formatWWWAuthenticate builds the Bearer challenge (RFC 6750 section 3)
// with the resource metadata pointer (RFC 9728 section 5.1).
func (h *Handler) formatWWWAuthenticate(errorCode string) string {
	return `Bearer error="` + errorCode + `", resource_metadata="` +
		h.server.Config().ProtectedResourceMetadataEndpoint() + `"`
}

// redirectError delivers an error to the client's own redirect URI as
// error/error_description query parameters, echoing the client state.
func (h *Handler) redirectError(w http.ResponseWriter, r *http.Request, redirectURI, state string, oerr *OAuthError) {
	u, err := url.Parse(redirectURI)
	if err != nil {
		h.writeError(w, oerr.Code, oerr.Description, oerr.Status)
		return
	}
	q := u.Query()
	q.Set("error", oerr.Code)
	if oerr.Description != "" {
		q.Set("error_description", oerr.Description)
	}
	if state != "" {
		q.Set("state", state)
	}
	u.RawQuery = q.Encode()
	http.Redirect(w, r, u.String(), http.StatusFound)
}

// mapError translates flow engine errors to OAuth errors with HTTP statuses.
func (h *Handler) mapError(err error) *OAuthError {
	var oerr *OAuthError
	if errors.As(err, &oerr) {
		return oerr
	}

	var ferr *server.FlowError
	if errors.As(err, &ferr) {
		status, ok := statusByCode[ferr.Code]
		if !ok {
			status = http.StatusBadRequest
		}
		return NewOAuthError(ferr.Code, ferr.Description, status)
	}

	h.logger.Error("internal error", "error", err)
	return ErrServerError("internal error")
}

// statusByCode maps OAuth error codes to HTTP statuses for direct responses.
var statusByCode = map[string]int{
	ErrorCodeInvalidRequest:       http.StatusBadRequest,
	ErrorCodeInvalidClient:        http.StatusUnauthorized,
	ErrorCodeInvalidGrant:         http.StatusBadRequest,
	ErrorCodeInvalidScope:         http.StatusBadRequest,
	ErrorCodeInvalidState:         http.StatusBadRequest,
	ErrorCodeInvalidRedirectURI:   http.StatusBadRequest,
	ErrorCodeUpstreamError:        http.StatusBadGateway,
	ErrorCodeUnsupportedGrantType: http.StatusBadRequest,
	ErrorCodeInvalidToken:         http.StatusUnauthorized,
	ErrorCodeInsufficientScope:    http.StatusForbidden,
	ErrorCodeAccessDenied:         http.StatusForbidden,
	ErrorCodeServerError:          http.StatusInternalServerError,
	ErrorCodeRateLimitExceeded:    http.StatusTooManyRequests,
}

func (h *Handler) setCORSHeaders(w http.ResponseWriter) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
}

func (h *Handler) clientIP(r *http.Request) string {
	return security.GetClientIP(r, h.config.TrustProxy, h.config.TrustedProxyCount)
}

func (h *Handler) recordHTTP(ctx context.Context, endpoint, method string, status int, start time.Time) {
	attrs := metric.WithAttributes(
		attribute.String("endpoint", endpoint),
		attribute.String("method", method),
		attribute.Int("status", status),
	)
	if h.httpRequests != nil {
		h.httpRequests.Add(ctx, 1, attrs)
	}
	if h.httpDuration != nil {
		h.httpDuration.Record(ctx, float64(time.Since(start).Milliseconds()),
			metric.WithAttributes(attribute.String("endpoint", endpoint)))
	}
}
