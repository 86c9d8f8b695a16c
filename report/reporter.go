package report

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/chaossec-io/chaossec/iox"
	"github.com/chaossec-io/chaossec/types"
)

// DefaultTimeout is the default HTTP request timeout.
const DefaultTimeout = 10 * time.Second

// DefaultRetries is the default number of retry attempts.
const DefaultRetries = 3

// TokenSource supplies bearer tokens for evidence submissions.
type TokenSource interface {
	GetToken(ctx context.Context) (string, error)
}

// SubmitResult reports where one evidence record ended up.
type SubmitResult struct {
	// Accepted is true when the platform acknowledged the record.
	Accepted bool `json:"accepted"`
	// EvidenceID is the platform-assigned identifier, when accepted.
	EvidenceID string `json:"evidence_id,omitempty"`
}

// Reporter submits evidence records to the compliance platform.
type Reporter interface {
	SubmitEvidence(ctx context.Context, ev *types.Evidence) (*SubmitResult, error)
}

// Config configures the HTTP reporter.
type Config struct {
	// URL is the evidence submission endpoint (required).
	URL string
	// Timeout is the per-request timeout (default 10s).
	Timeout time.Duration
	// Retries is the number of retry attempts on failure (default 3).
	Retries int
}

// Client publishes evidence via authenticated HTTP POST.
// Retries with exponential backoff on transient failures; 4xx responses
// are non-retriable and fail immediately.
type Client struct {
	config Config
	tokens TokenSource
	client *http.Client
}

// NewClient creates an evidence reporter from the given config.
func NewClient(cfg Config, tokens TokenSource) (*Client, error) {
	if cfg.URL == "" {
		return nil, errors.New("report: reporter requires a URL")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Retries < 0 {
		return nil, fmt.Errorf("report: retries must be >= 0, got %d", cfg.Retries)
	}
	return &Client{
		config: cfg,
		tokens: tokens,
		client: &http.Client{Timeout: cfg.Timeout},
	}, nil
}

// SubmitEvidence implements Reporter.
func (c *Client) SubmitEvidence(ctx context.Context, ev *types.Evidence) (*SubmitResult, error) {
	body, err := json.Marshal(ev)
	if err != nil {
		return nil, fmt.Errorf("report: marshal evidence: %w", err)
	}

	var lastErr error
	attempts := 1 + c.config.Retries

	for i := range attempts {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("report: context canceled: %w", err)
		}

		// Back off before each retry, never before the first attempt.
		if i > 0 {
			backoff := time.Duration(1<<uint(i-1)) * 500 * time.Millisecond
			select {
			case <-ctx.Done():
				return nil, fmt.Errorf("report: context canceled during backoff: %w", ctx.Err())
			case <-time.After(backoff):
			}
		}

		var result *SubmitResult
		result, lastErr = c.doRequest(ctx, body)
		if lastErr == nil {
			return result, nil
		}

		var statusErr *StatusError
		if errors.As(lastErr, &statusErr) && statusErr.Code >= 400 && statusErr.Code < 500 {
			if statusErr.Code == http.StatusUnauthorized {
				// The platform rejected the bearer token mid-lifetime;
				// drop it so the next submission fetches a fresh one.
				if inv, ok := c.tokens.(interface{ Invalidate() }); ok {
					inv.Invalidate()
				}
			}
			return nil, fmt.Errorf("report: non-retriable error: %w", lastErr)
		}
		if errors.Is(lastErr, types.ErrAuthentication) {
			return nil, lastErr
		}
	}

	return nil, types.NewFault(types.ErrAdapterUnavailable, "submit_evidence",
		fmt.Errorf("failed after %d attempts: %w", attempts, lastErr))
}

// StatusError is returned for non-2xx HTTP responses.
// Wrapping the status code allows callers to distinguish retriable (5xx)
// from non-retriable (4xx) failures.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d", e.Code)
}

// doRequest performs a single authenticated POST.
func (c *Client) doRequest(ctx context.Context, body []byte) (*SubmitResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.URL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	if c.tokens != nil {
		token, err := c.tokens.GetToken(ctx)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer iox.DiscardClose(resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		// Drain body to allow connection reuse
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, &StatusError{Code: resp.StatusCode}
	}

	result := &SubmitResult{Accepted: true}
	var ack struct {
		EvidenceID string `json:"evidence_id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&ack); err == nil {
		result.EvidenceID = ack.EvidenceID
	}
	return result, nil
}

// Close releases reporter resources.
func (c *Client) Close() error {
	c.client.CloseIdleConnections()
	return nil
}

// Verify Client implements Reporter.
var _ Reporter = (*Client)(nil)

// StubReporter implements Reporter in memory for testing.
type StubReporter struct {
	mu sync.Mutex

	Err error

	// Submitted records every evidence record received.
	Submitted []*types.Evidence
}

// NewStubReporter creates an accepting stub reporter.
func NewStubReporter() *StubReporter {
	return &StubReporter{}
}

// SubmitEvidence implements Reporter by recording the record.
func (s *StubReporter) SubmitEvidence(_ context.Context, ev *types.Evidence) (*SubmitResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	s.Submitted = append(s.Submitted, ev)
	return &SubmitResult{Accepted: true, EvidenceID: fmt.Sprintf("ev-%d", len(s.Submitted))}, nil
}

// Verify StubReporter implements Reporter.
var _ Reporter = (*StubReporter)(nil)
