// Package chaos executes controlled security experiments.
//
// The injector is the only component allowed to touch real
// infrastructure, and only when safety mode is off. Under safety mode an
// injector may inspect but never mutate; Result.Applied is false in that
// case regardless of what the inspection found.
package chaos

import (
	"context"
	"fmt"
	"sync"

	"github.com/chaossec-io/chaossec/types"
)

// ExperimentRequest describes one experiment to execute.
type ExperimentRequest struct {
	// Action is the experiment to run. Must be a permitted action.
	Action types.ActionID
	// Target is the resource under test.
	Target string
	// SafetyMode forces simulation: no mutation may be issued while true.
	SafetyMode bool
}

// ExperimentResult is the injector's report of what actually happened.
type ExperimentResult struct {
	// Applied is true only when a real mutation reached infrastructure.
	// Always false under safety mode.
	Applied bool `json:"applied"`
	// ExecutedAction is the action the injector actually ran. Set when
	// it differs from the requested action, i.e. the injector substituted
	// its fallback experiment.
	ExecutedAction types.ActionID `json:"executed_action,omitempty"`
	// Detail describes the action taken or simulated.
	Detail string `json:"detail,omitempty"`
}

// Injector executes experiments against one infrastructure surface.
type Injector interface {
	Execute(ctx context.Context, req ExperimentRequest) (*ExperimentResult, error)
}

// StubInjector implements Injector in memory for testing.
type StubInjector struct {
	mu sync.Mutex

	// Applied is reported when safety mode is off.
	Applied bool
	Err     error

	// Requests records every execution.
	Requests []ExperimentRequest
}

// NewStubInjector creates a stub reporting Applied for live requests.
func NewStubInjector() *StubInjector {
	return &StubInjector{Applied: true}
}

// Execute implements Injector by recording the request. The stub honors
// the safety contract: Applied is never true under safety mode.
func (s *StubInjector) Execute(_ context.Context, req ExperimentRequest) (*ExperimentResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Requests = append(s.Requests, req)
	if s.Err != nil {
		return nil, s.Err
	}
	if req.SafetyMode {
		return &ExperimentResult{Applied: false, Detail: fmt.Sprintf("simulated %s", req.Action)}, nil
	}
	return &ExperimentResult{Applied: s.Applied, Detail: fmt.Sprintf("executed %s", req.Action)}, nil
}

// Verify StubInjector implements Injector.
var _ Injector = (*StubInjector)(nil)
