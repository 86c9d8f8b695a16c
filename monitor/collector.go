// Package monitor collects post-experiment observations.
//
// An observation is the raw material for validation: metric datapoints,
// compliance state, and audit events covering the experiment window.
// Each source can fail independently; a partial observation is still an
// observation, and a fully empty one is reported as such rather than
// invented.
package monitor

import (
	"context"
	"sync"
	"time"
)

// DefaultWindow is the observation lookback when none is configured.
const DefaultWindow = 5 * time.Minute

// MetricPoint is one datapoint from the metrics source.
type MetricPoint struct {
	Name      string    `json:"name"`
	Value     float64   `json:"value"`
	Unit      string    `json:"unit,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// ComplianceState classifies a resource's evaluated compliance.
type ComplianceState string

const (
	ComplianceCompliant    ComplianceState = "COMPLIANT"
	ComplianceNonCompliant ComplianceState = "NON_COMPLIANT"
	// ComplianceUnknown means the compliance source produced no verdict.
	ComplianceUnknown ComplianceState = "UNKNOWN"
)

// AuditEvent is one control-plane event from the audit source.
type AuditEvent struct {
	Name      string    `json:"event_name"`
	Source    string    `json:"event_source,omitempty"`
	Username  string    `json:"username,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	// ReadOnly distinguishes inspection from mutation.
	ReadOnly bool `json:"read_only"`
}

// Observation aggregates everything collected for one experiment window.
type Observation struct {
	Resource    string          `json:"resource"`
	Window      time.Duration   `json:"window"`
	Metrics     []MetricPoint   `json:"metrics,omitempty"`
	Compliance  ComplianceState `json:"compliance"`
	AuditEvents []AuditEvent    `json:"audit_events,omitempty"`
	// Degraded lists sources that failed during collection.
	Degraded []string `json:"degraded_sources,omitempty"`
}

// Empty reports whether the observation carries no usable signal at all.
func (o *Observation) Empty() bool {
	return o == nil ||
		(len(o.Metrics) == 0 && len(o.AuditEvents) == 0 &&
			(o.Compliance == "" || o.Compliance == ComplianceUnknown))
}

// MutationEvents returns the non-read-only audit events.
func (o *Observation) MutationEvents() []AuditEvent {
	if o == nil {
		return nil
	}
	var out []AuditEvent
	for _, e := range o.AuditEvents {
		if !e.ReadOnly {
			out = append(out, e)
		}
	}
	return out
}

// Collector gathers observations for a resource.
type Collector interface {
	Collect(ctx context.Context, window time.Duration, resource string) (*Observation, error)
}

// StubCollector implements Collector with a canned observation.
type StubCollector struct {
	mu sync.Mutex

	Observation *Observation
	Err         error

	// Calls counts Collect invocations.
	Calls int
}

// NewStubCollector creates a stub returning the given observation.
func NewStubCollector(obs *Observation) *StubCollector {
	return &StubCollector{Observation: obs}
}

// Collect implements Collector by returning the canned observation.
func (s *StubCollector) Collect(_ context.Context, window time.Duration, resource string) (*Observation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Calls++
	if s.Err != nil {
		return nil, s.Err
	}
	if s.Observation == nil {
		return &Observation{Resource: resource, Window: window, Compliance: ComplianceUnknown}, nil
	}
	return s.Observation, nil
}

// Verify StubCollector implements Collector.
var _ Collector = (*StubCollector)(nil)
