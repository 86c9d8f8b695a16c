// Package twin talks to the digital-twin simulation service.
//
// A twin is a disposable model of the target environment. Proposed
// changes are replayed against the twin before anything touches real
// infrastructure, so the blast radius of a bad experiment is zero.
package twin

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/chaossec-io/chaossec/types"
)

// DefaultTimeout bounds one twin service request.
const DefaultTimeout = 30 * time.Second

// TokenSource supplies bearer tokens for twin service requests.
type TokenSource interface {
	GetToken(ctx context.Context) (string, error)
}

// Twin describes a provisioned simulation environment.
type Twin struct {
	ID        string    `json:"twin_id"`
	Target    string    `json:"target"`
	State     string    `json:"state"`
	CreatedAt time.Time `json:"created_at"`
}

// SimulationResult is the twin's verdict on one proposed change.
type SimulationResult struct {
	TwinID string `json:"twin_id"`
	Action string `json:"action"`
	// Safe reports whether the change stayed within the twin's policy
	// envelope.
	Safe bool `json:"safe"`
	// Impact describes the predicted effect.
	Impact string `json:"impact,omitempty"`
}

// Simulator provisions twins and replays changes against them.
type Simulator interface {
	// CreateTwin provisions a twin of the target for one run.
	CreateTwin(ctx context.Context, run *types.RunContext) (*Twin, error)
	// SimulateChange replays a proposed action against the twin.
	SimulateChange(ctx context.Context, twinID string, action types.ActionID) (*SimulationResult, error)
}

// Client is an HTTP Simulator with bearer authentication.
type Client struct {
	baseURL string
	tokens  TokenSource
	client  *http.Client
}

// NewClient creates a twin service client.
func NewClient(baseURL string, tokens TokenSource, timeout time.Duration) (*Client, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("twin: base URL is required")
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		tokens:  tokens,
		client:  &http.Client{Timeout: timeout},
	}, nil
}

// CreateTwin implements Simulator via POST /twins.
func (c *Client) CreateTwin(ctx context.Context, run *types.RunContext) (*Twin, error) {
	body := map[string]any{
		"target":         run.Target,
		"correlation_id": run.CorrelationID,
	}
	var twin Twin
	if err := c.post(ctx, "/twins", body, &twin); err != nil {
		return nil, err
	}
	if twin.ID == "" {
		return nil, types.NewFault(types.ErrAdapterUnavailable, "twin_create",
			fmt.Errorf("twin service returned no twin_id"))
	}
	return &twin, nil
}

// SimulateChange implements Simulator via POST /twins/{id}/simulate.
func (c *Client) SimulateChange(ctx context.Context, twinID string, action types.ActionID) (*SimulationResult, error) {
	if twinID == "" {
		return nil, fmt.Errorf("twin: twin ID is required")
	}
	body := map[string]any{"action": string(action)}
	var result SimulationResult
	if err := c.post(ctx, "/twins/"+twinID+"/simulate", body, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// post issues one authenticated JSON request and decodes the response.
func (c *Client) post(ctx context.Context, path string, body, out any) error {
	op := "twin_request"

	payload, err := json.Marshal(body)
	if err != nil {
		return types.WrapAdapterError(op, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return types.WrapAdapterError(op, err)
	}
	req.Header.Set("Content-Type", "application/json")

	if c.tokens != nil {
		token, err := c.tokens.GetToken(ctx)
		if err != nil {
			return err
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return types.WrapAdapterError(op, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return types.WrapAdapterError(op,
			fmt.Errorf("twin service returned %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet))))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return types.WrapAdapterError(op, fmt.Errorf("decode response: %w", err))
	}
	return nil
}

// Verify Client implements Simulator.
var _ Simulator = (*Client)(nil)

// StubSimulator implements Simulator in memory for testing.
type StubSimulator struct {
	mu sync.Mutex

	// CreateErr and SimulateErr, when set, are returned from the
	// corresponding calls.
	CreateErr   error
	SimulateErr error
	// Safe is reported by every simulation result.
	Safe bool

	// Created records provisioned twins; Simulated records replayed actions.
	Created   []string
	Simulated []types.ActionID
}

// NewStubSimulator creates a stub that reports every change safe.
func NewStubSimulator() *StubSimulator {
	return &StubSimulator{Safe: true}
}

// CreateTwin implements Simulator by recording the call.
func (s *StubSimulator) CreateTwin(_ context.Context, run *types.RunContext) (*Twin, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.CreateErr != nil {
		return nil, s.CreateErr
	}
	id := fmt.Sprintf("twin-%d", len(s.Created)+1)
	s.Created = append(s.Created, id)
	return &Twin{ID: id, Target: run.Target, State: "ready", CreatedAt: time.Now().UTC()}, nil
}

// SimulateChange implements Simulator by recording the call.
func (s *StubSimulator) SimulateChange(_ context.Context, twinID string, action types.ActionID) (*SimulationResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.SimulateErr != nil {
		return nil, s.SimulateErr
	}
	s.Simulated = append(s.Simulated, action)
	return &SimulationResult{TwinID: twinID, Action: string(action), Safe: s.Safe}, nil
}

// Verify StubSimulator implements Simulator.
var _ Simulator = (*StubSimulator)(nil)
