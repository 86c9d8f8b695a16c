// Error taxonomy for the ChaosSec core.
//
// Sentinel errors enable callers to use errors.Is/errors.As for typed
// assertions rather than string matching. Adapter-level failures are
// converted into degraded step results at the step boundary; only
// ErrSafetyInvariant and ErrPersistence (at the learn step) escalate a
// whole run to failed.
package types

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for failure classification.
var (
	// ErrAdapterTimeout indicates an external call exceeded its bounded timeout.
	ErrAdapterTimeout = errors.New("adapter timeout")

	// ErrAdapterUnavailable indicates a collaborator could not be reached
	// or refused the request.
	ErrAdapterUnavailable = errors.New("adapter unavailable")

	// ErrAuthentication indicates a token refresh or bearer auth failure.
	ErrAuthentication = errors.New("authentication failed")

	// ErrMalformedOracleResponse indicates the text-completion oracle
	// returned output the decision engine could not parse.
	ErrMalformedOracleResponse = errors.New("malformed oracle response")

	// ErrSafetyInvariant indicates the safety-mode guarantee could not be
	// upheld. Always escalates the run to failed.
	ErrSafetyInvariant = errors.New("safety invariant violation")

	// ErrPersistence indicates a history or evidence write failed.
	ErrPersistence = errors.New("persistence failure")
)

// FaultError wraps an underlying error with taxonomy classification.
// It preserves the original error in the chain for inspection via errors.As.
type FaultError struct {
	// Kind is the sentinel for classification (e.g. ErrAdapterTimeout).
	Kind error
	// Op is the operation that failed (e.g. "scan", "submit_evidence").
	Op string
	// Err is the underlying error.
	Err error
}

func (e *FaultError) Error() string {
	return fmt.Sprintf("%s: %v: %v", e.Op, e.Kind, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As chain traversal.
func (e *FaultError) Unwrap() error {
	return e.Err
}

// Is reports whether the error matches the target sentinel.
func (e *FaultError) Is(target error) bool {
	return errors.Is(e.Kind, target)
}

// NewFault creates a classified fault error.
func NewFault(kind error, op string, err error) *FaultError {
	return &FaultError{Kind: kind, Op: op, Err: err}
}

// WrapAdapterError classifies and wraps an adapter call error.
// Returns nil if err is nil.
func WrapAdapterError(op string, err error) error {
	if err == nil {
		return nil
	}
	return NewFault(ClassifyAdapterError(err), op, err)
}

// ClassifyAdapterError determines the sentinel for an adapter error.
// Timeouts are detected via the net.Error-style Timeout() method and
// context deadline errors; everything else is classified by message
// patterns, defaulting to ErrAdapterUnavailable.
func ClassifyAdapterError(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return ErrAdapterTimeout
	}
	var timeoutErr interface{ Timeout() bool }
	if errors.As(err, &timeoutErr) && timeoutErr.Timeout() {
		return ErrAdapterTimeout
	}
	if errors.Is(err, ErrAuthentication) {
		return ErrAuthentication
	}

	msg := strings.ToLower(err.Error())
	switch {
	case containsAny(msg, "timeout", "timed out", "deadline exceeded"):
		return ErrAdapterTimeout
	case containsAny(msg, "401", "unauthorized", "expiredtoken", "invalid_client", "credentials"):
		return ErrAuthentication
	default:
		return ErrAdapterUnavailable
	}
}

// containsAny checks if s contains any of the substrings.
func containsAny(s string, substrs ...string) bool {
	for _, sub := range substrs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
