// Package scan runs static analysis over infrastructure-as-code.
//
// The production scanner shells out to semgrep and normalizes its JSON
// output into findings. A missing or failing scanner is survivable: the
// run degrades to an empty baseline instead of aborting.
package scan

import (
	"context"
	"sync"

	"github.com/chaossec-io/chaossec/types"
)

// Scanner produces a findings baseline for the configured paths.
type Scanner interface {
	Scan(ctx context.Context) (*types.ScanResult, error)
}

// StubScanner implements Scanner with fixed results for testing.
type StubScanner struct {
	mu sync.Mutex

	Result *types.ScanResult
	Err    error

	// Calls counts Scan invocations.
	Calls int
}

// NewStubScanner creates a stub returning the given result.
func NewStubScanner(result *types.ScanResult) *StubScanner {
	return &StubScanner{Result: result}
}

// Scan implements Scanner by returning the canned result.
func (s *StubScanner) Scan(_ context.Context) (*types.ScanResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Calls++
	if s.Err != nil {
		return nil, s.Err
	}
	if s.Result == nil {
		return &types.ScanResult{}, nil
	}
	return s.Result, nil
}

// Verify StubScanner implements Scanner.
var _ Scanner = (*StubScanner)(nil)
