// Package webhook publishes run notifications over HTTP POST.
//
// Each event is a JSON body with X-Chaossec-Event and
// X-Chaossec-Correlation-ID headers for receiver-side routing, and an
// HMAC-SHA256 body signature when a shared secret is configured.
package webhook

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/chaossec-io/chaossec/adapter"
	"github.com/chaossec-io/chaossec/iox"
)

// Header names carried on every delivery.
const (
	HeaderEvent         = "X-Chaossec-Event"
	HeaderCorrelationID = "X-Chaossec-Correlation-ID"
	HeaderSignature     = "X-Chaossec-Signature"
)

// DefaultTimeout is the default HTTP request timeout.
const DefaultTimeout = 10 * time.Second

// DefaultRetries is the default number of retry attempts.
const DefaultRetries = 3

// Config configures the webhook adapter.
type Config struct {
	// URL is the HTTP endpoint to POST to (required).
	URL string
	// Secret, when set, signs each body with HMAC-SHA256; the hex digest
	// travels in X-Chaossec-Signature.
	Secret string
	// Headers are custom HTTP headers added to each request.
	Headers map[string]string
	// Timeout is the per-request timeout (default 10s).
	Timeout time.Duration
	// Retries is the number of retry attempts on failure (default 3).
	Retries int
}

// Adapter publishes run completion events via HTTP POST.
type Adapter struct {
	config Config
	client *http.Client
	tries  int
}

// New creates a webhook adapter from the given config.
func New(cfg Config) (*Adapter, error) {
	if cfg.URL == "" {
		return nil, errors.New("webhook adapter requires a URL")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Retries < 0 {
		return nil, fmt.Errorf("webhook adapter: retries must be >= 0, got %d", cfg.Retries)
	}

	return &Adapter{
		config: cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		tries:  1 + cfg.Retries,
	}, nil
}

// Sign returns the hex HMAC-SHA256 digest of body under the shared
// secret. Empty when no secret is configured.
func (a *Adapter) Sign(body []byte) string {
	if a.config.Secret == "" {
		return ""
	}
	mac := hmac.New(sha256.New, []byte(a.config.Secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// Publish implements adapter.Adapter. Deliveries retry with backoff on
// network errors and 5xx responses; a 4xx response stops immediately.
func (a *Adapter) Publish(ctx context.Context, event *adapter.RunCompletedEvent) error {
	if err := event.Validate(); err != nil {
		return err
	}
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("webhook: marshal event: %w", err)
	}

	err = adapter.Retry(ctx, a.tries, func(ctx context.Context) error {
		return a.deliver(ctx, event, body)
	})
	if err != nil {
		return fmt.Errorf("webhook: %w", err)
	}
	return nil
}

// StatusError is returned for non-2xx HTTP responses.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d", e.Code)
}

// deliver performs one POST. Returns nil on 2xx and a Permanent error
// for 4xx so the retry loop stops.
func (a *Adapter) deliver(ctx context.Context, event *adapter.RunCompletedEvent, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.config.URL, bytes.NewReader(body))
	if err != nil {
		return adapter.Permanent(fmt.Errorf("create request: %w", err))
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(HeaderEvent, event.EventType)
	req.Header.Set(HeaderCorrelationID, event.CorrelationID)
	if sig := a.Sign(body); sig != "" {
		req.Header.Set(HeaderSignature, sig)
	}
	for k, v := range a.config.Headers {
		req.Header.Set(k, v)
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer iox.DiscardClose(resp.Body)

	// Drain so the connection can be reused.
	_, _ = io.Copy(io.Discard, resp.Body)

	statusErr := &StatusError{Code: resp.StatusCode}
	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return adapter.Permanent(statusErr)
	default:
		return statusErr
	}
}

// Close releases adapter resources.
func (a *Adapter) Close() error {
	a.client.CloseIdleConnections()
	return nil
}

// Verify Adapter implements the adapter interface.
var _ adapter.Adapter = (*Adapter)(nil)
