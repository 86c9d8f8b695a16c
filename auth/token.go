// Package auth implements the OAuth2 client-credentials token manager.
//
// Every adapter requiring bearer authentication obtains tokens here. One
// token per credential scope is cached at a time; a cached token is served
// only while it has more than the safety buffer left before expiry.
// Concurrent callers needing a refresh are coalesced into a single
// in-flight exchange via singleflight.
package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/chaossec-io/chaossec/metrics"
	"github.com/chaossec-io/chaossec/types"
)

// SafetyBuffer is subtracted from the token lifetime: a token expiring
// within this window is treated as already expired and refreshed before use.
const SafetyBuffer = 5 * time.Minute

// DefaultTimeout bounds one token exchange request.
const DefaultTimeout = 30 * time.Second

// defaultExpiresIn is assumed when the token endpoint omits expires_in.
const defaultExpiresIn = 3600 * time.Second

// Config configures a token manager for one credential scope.
type Config struct {
	// TokenURL is the OAuth2 token endpoint (required).
	TokenURL string
	// ClientID and ClientSecret are the client-credentials pair (required).
	ClientID     string
	ClientSecret string
	// Scope is the requested token scope (optional).
	Scope string
	// Timeout bounds one exchange request (default 30s).
	Timeout time.Duration
}

// Validate checks required fields.
func (c *Config) Validate() error {
	if c.TokenURL == "" {
		return fmt.Errorf("token URL is required")
	}
	if c.ClientID == "" || c.ClientSecret == "" {
		return fmt.Errorf("client credentials are required")
	}
	return nil
}

// cachedToken is the manager's cache entry.
type cachedToken struct {
	accessToken string
	expiresAt   time.Time
}

// valid reports whether the token can still be served at the given instant.
// The safety buffer is applied here, not at refresh time, so a token
// expiring in 3 minutes with a 5-minute buffer triggers a refresh.
func (t *cachedToken) valid(now time.Time) bool {
	return t != nil && t.accessToken != "" && now.Before(t.expiresAt.Add(-SafetyBuffer))
}

// Manager acquires and caches bearer tokens for one credential scope.
type Manager struct {
	config    Config
	client    *http.Client
	collector *metrics.Collector

	mu    sync.RWMutex
	token *cachedToken

	group singleflight.Group

	// now is injected for tests; defaults to time.Now.
	now func() time.Time
}

// NewManager creates a token manager.
func NewManager(cfg Config, collector *metrics.Collector) (*Manager, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("auth: %w", err)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	return &Manager{
		config:    cfg,
		client:    &http.Client{Timeout: cfg.Timeout},
		collector: collector,
		now:       time.Now,
	}, nil
}

// GetToken returns a valid bearer token, refreshing first if the cached
// one is missing or inside the safety buffer. On refresh failure a typed
// authentication error is returned; a stale token is never served.
func (m *Manager) GetToken(ctx context.Context) (string, error) {
	m.mu.RLock()
	tok := m.token
	m.mu.RUnlock()

	if tok.valid(m.now()) {
		m.collector.IncTokenCacheHit()
		return tok.accessToken, nil
	}

	// Coalesce concurrent refreshes: exactly one exchange is issued, the
	// resulting token fans out to all waiters.
	v, err, _ := m.group.Do("refresh", func() (any, error) {
		// Another waiter may have completed the refresh already.
		m.mu.RLock()
		cur := m.token
		m.mu.RUnlock()
		if cur.valid(m.now()) {
			return cur.accessToken, nil
		}

		refreshed, err := m.refresh(ctx)
		if err != nil {
			m.collector.IncTokenRefreshError()
			return "", err
		}
		m.collector.IncTokenRefresh()

		m.mu.Lock()
		m.token = refreshed
		m.mu.Unlock()
		return refreshed.accessToken, nil
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

// Invalidate clears the cached token, forcing a refresh on the next call.
// Used after a collaborator rejects a bearer token mid-lifetime.
func (m *Manager) Invalidate() {
	m.mu.Lock()
	m.token = nil
	m.mu.Unlock()
}

// tokenResponse is the token endpoint's JSON response.
type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
	Scope       string `json:"scope,omitempty"`
}

// refresh performs one client-credentials exchange.
func (m *Manager) refresh(ctx context.Context) (*cachedToken, error) {
	form := url.Values{
		"grant_type":    {"client_credentials"},
		"client_id":     {m.config.ClientID},
		"client_secret": {m.config.ClientSecret},
	}
	if m.config.Scope != "" {
		form.Set("scope", m.config.Scope)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.config.TokenURL,
		strings.NewReader(form.Encode()))
	if err != nil {
		return nil, types.NewFault(types.ErrAuthentication, "token_exchange", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := m.client.Do(req)
	if err != nil {
		return nil, types.NewFault(types.ErrAuthentication, "token_exchange", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, types.NewFault(types.ErrAuthentication, "token_exchange",
			fmt.Errorf("token endpoint returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body))))
	}

	var tr tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return nil, types.NewFault(types.ErrAuthentication, "token_exchange",
			fmt.Errorf("decode token response: %w", err))
	}
	if tr.AccessToken == "" {
		return nil, types.NewFault(types.ErrAuthentication, "token_exchange",
			fmt.Errorf("token endpoint returned empty access_token"))
	}

	expiresIn := defaultExpiresIn
	if tr.ExpiresIn > 0 {
		expiresIn = time.Duration(tr.ExpiresIn) * time.Second
	}

	return &cachedToken{
		accessToken: tr.AccessToken,
		expiresAt:   m.now().Add(expiresIn),
	}, nil
}
