package types

import "time"

// Framework identifies a compliance control framework.
type Framework string

const (
	FrameworkSOC2     Framework = "soc2"
	FrameworkISO27001 Framework = "iso27001"
	FrameworkNIST     Framework = "nist"
)

// Evidence is a structured record mapping a test outcome to a compliance
// control, submitted to the evidence-reporting service or persisted
// locally as a fallback.
type Evidence struct {
	ControlID     string         `json:"control_id" msgpack:"control_id"`
	Framework     Framework      `json:"framework" msgpack:"framework"`
	TestType      string         `json:"test_type" msgpack:"test_type"`
	Result        string         `json:"result" msgpack:"result"`
	CorrelationID string         `json:"correlation_id" msgpack:"correlation_id"`
	Timestamp     time.Time      `json:"timestamp" msgpack:"timestamp"`
	Details       map[string]any `json:"details,omitempty" msgpack:"details,omitempty"`
	// Source identifies the producing agent.
	Source string `json:"source" msgpack:"source"`
}

// HistoryEntry is the persisted summary of one completed run.
// Entries are appended, never mutated or deleted.
type HistoryEntry struct {
	CorrelationID string    `json:"correlation_id" msgpack:"correlation_id"`
	Timestamp     time.Time `json:"timestamp" msgpack:"timestamp"`
	Action        ActionID  `json:"action" msgpack:"action"`
	Target        string    `json:"target" msgpack:"target"`
	// Outcome is the validation outcome (success_detected, success_simulated,
	// inconclusive, failed, cancelled).
	Outcome       string `json:"outcome" msgpack:"outcome"`
	FindingCount  int    `json:"finding_count" msgpack:"finding_count"`
	EvidenceCount int    `json:"evidence_count" msgpack:"evidence_count"`
}
