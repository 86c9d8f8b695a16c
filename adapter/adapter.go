// Package adapter defines the event-bus boundary for run notifications.
//
// Adapters publish run completion events to downstream systems (SOC
// tooling, chat alerts, data pipelines). The orchestrator owns adapter
// lifecycle; users provide configuration only. Publication is strictly
// best effort: a failed publish is logged and never fails the run.
package adapter

import (
	"context"
	"errors"
)

// EventTypeRunCompleted is the only event type currently published.
const EventTypeRunCompleted = "run_completed"

// RunCompletedEvent is the payload published when a run finishes.
type RunCompletedEvent struct {
	EventType     string `json:"event_type"` // always "run_completed"
	CorrelationID string `json:"correlation_id"`
	Target        string `json:"target"`
	Action        string `json:"action"`
	Outcome       string `json:"outcome"` // validation outcome
	Status        string `json:"status"`  // run status
	SafetyMode    bool   `json:"safety_mode"`
	Day           string `json:"day"`       // YYYY-MM-DD, UTC
	Timestamp     string `json:"timestamp"` // ISO 8601
	FindingCount  int    `json:"finding_count"`
	EvidenceCount int    `json:"evidence_count"`
	DurationMs    int64  `json:"duration_ms"`
	RiskLevel     string `json:"risk_level,omitempty"`
}

// Validate rejects events that no subscriber could route.
func (e *RunCompletedEvent) Validate() error {
	if e == nil {
		return errors.New("adapter: nil event")
	}
	if e.CorrelationID == "" {
		return errors.New("adapter: event requires a correlation id")
	}
	if e.EventType == "" {
		return errors.New("adapter: event requires an event type")
	}
	return nil
}

// Escalation reports whether the event should additionally reach the
// alert surface: failed and cancelled runs need operator attention.
func (e *RunCompletedEvent) Escalation() bool {
	return e.Status == "failed" || e.Status == "cancelled"
}

// Adapter publishes run completion events to a downstream system.
// Implementations must be safe for single-use per run.
type Adapter interface {
	// Publish sends a run completion event to the downstream system.
	// Must respect context cancellation and deadlines.
	Publish(ctx context.Context, event *RunCompletedEvent) error

	// Close releases adapter resources.
	Close() error
}
