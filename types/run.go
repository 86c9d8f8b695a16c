// Package types defines core domain types for the ChaosSec runtime.
//
//nolint:revive // types is a common Go package naming convention
package types

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// RunContext carries run identity and the safety setting for one cycle.
// It is created once at run start and never mutated afterwards, so
// concurrent runs cannot observe each other's safety mode.
type RunContext struct {
	// CorrelationID ties all artifacts of one run together. Globally unique,
	// never reused across runs.
	CorrelationID string
	// SafetyMode guarantees no mutating action reaches real infrastructure
	// while true. Fixed for the lifetime of the run.
	SafetyMode bool
	// Target is the resource under test (e.g. an S3 bucket name).
	Target string
	// StartedAt is the run start time (UTC).
	StartedAt time.Time
}

// NewRunContext creates a run context with a fresh correlation id.
func NewRunContext(target string, safetyMode bool) *RunContext {
	return &RunContext{
		CorrelationID: NewCorrelationID(),
		SafetyMode:    safetyMode,
		Target:        target,
		StartedAt:     time.Now().UTC(),
	}
}

// NewCorrelationID generates an opaque unique run identifier.
func NewCorrelationID() string {
	return fmt.Sprintf("chaossec-%s", uuid.NewString())
}

// Validate checks run context rules.
func (r *RunContext) Validate() error {
	if r.CorrelationID == "" {
		return errors.New("correlation_id must be non-empty")
	}
	if r.Target == "" {
		return errors.New("target must be non-empty")
	}
	return nil
}

// StepName identifies one step of the fixed run sequence.
type StepName string

// The eight steps, in execution order. The orchestrator never issues
// step N before step N-1 has returned.
const (
	StepSimulate StepName = "simulate"
	StepScan     StepName = "scan"
	StepReason   StepName = "reason"
	StepChaos    StepName = "chaos"
	StepMonitor  StepName = "monitor"
	StepValidate StepName = "validate"
	StepReport   StepName = "report"
	StepLearn    StepName = "learn"
)

// StepOrder is the canonical step sequence.
var StepOrder = []StepName{
	StepSimulate, StepScan, StepReason, StepChaos,
	StepMonitor, StepValidate, StepReport, StepLearn,
}

// StepStatus classifies a step outcome.
type StepStatus string

const (
	// StepOK indicates the step completed normally.
	StepOK StepStatus = "ok"
	// StepDegraded indicates a collaborator failure the run absorbed
	// (empty baseline, fallback decision, local evidence write, ...).
	StepDegraded StepStatus = "degraded"
	// StepFailed indicates an unrecoverable step failure.
	StepFailed StepStatus = "failed"
)

// StepResult is the outcome of one executed step.
type StepResult struct {
	// Step is the step name.
	Step StepName `json:"step" msgpack:"step"`
	// Status is the outcome classification.
	Status StepStatus `json:"status" msgpack:"status"`
	// Payload holds step-specific structured data (twin id, finding count,
	// chosen action, metric count, evidence count).
	Payload map[string]any `json:"payload,omitempty" msgpack:"payload,omitempty"`
	// Err is the failure description. Empty when Status == StepOK.
	Err string `json:"error,omitempty" msgpack:"error,omitempty"`
	// ElapsedMs is the step duration in milliseconds.
	ElapsedMs int64 `json:"elapsed_ms" msgpack:"elapsed_ms"`
}

// RunStatus represents the final status of a run.
type RunStatus string

const (
	// RunSuccess indicates every step reached ok or an acceptable degraded state.
	RunSuccess RunStatus = "success"
	// RunFailed indicates a safety invariant violation or a learn-step
	// persistence failure.
	RunFailed RunStatus = "failed"
	// RunCancelled indicates the run was cancelled between steps.
	RunCancelled RunStatus = "cancelled"
)

// RunResult is the aggregated outcome of one complete cycle.
type RunResult struct {
	CorrelationID string       `json:"correlation_id" msgpack:"correlation_id"`
	Target        string       `json:"target" msgpack:"target"`
	SafetyMode    bool         `json:"safety_mode" msgpack:"safety_mode"`
	Status        RunStatus    `json:"status" msgpack:"status"`
	StartedAt     time.Time    `json:"started_at" msgpack:"started_at"`
	CompletedAt   time.Time    `json:"completed_at" msgpack:"completed_at"`
	// Steps is the ordered sequence of per-step outcomes, append-only
	// during the run.
	Steps []StepResult `json:"steps" msgpack:"steps"`
	// Message is a human-readable description of the final status.
	Message string `json:"message,omitempty" msgpack:"message,omitempty"`
}

// Step returns the result for the named step, or nil if it never ran.
func (r *RunResult) Step(name StepName) *StepResult {
	for i := range r.Steps {
		if r.Steps[i].Step == name {
			return &r.Steps[i]
		}
	}
	return nil
}

// ValidationOutcome classifies what the monitoring evidence showed.
type ValidationOutcome string

const (
	// OutcomeSuccessSimulated - safety mode was active, nothing mutated.
	OutcomeSuccessSimulated ValidationOutcome = "success_simulated"
	// OutcomeSuccessDetected - a real mutation was detected by controls.
	OutcomeSuccessDetected ValidationOutcome = "success_detected"
	// OutcomeInconclusive - monitoring produced no usable signal.
	OutcomeInconclusive ValidationOutcome = "inconclusive"
	// OutcomeFailed - a real mutation went undetected.
	OutcomeFailed ValidationOutcome = "failed"
	// OutcomeCancelled - the run was cancelled before validation.
	OutcomeCancelled ValidationOutcome = "cancelled"
)
