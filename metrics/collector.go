// Package metrics provides per-run metrics collection.
//
// The Collector accumulates counters during a single run. It is a leaf
// package with no internal dependencies. All increment methods are
// nil-receiver safe so wiring a collector is always optional.
package metrics

import "sync"

// Snapshot is an immutable point-in-time view of all collected metrics.
// Returned by Collector.Snapshot(). Safe to read concurrently after creation.
type Snapshot struct {
	// Run lifecycle
	RunsStarted   int64
	RunsCompleted int64
	RunsFailed    int64
	RunsCancelled int64

	// Steps
	StepsOK       int64
	StepsDegraded int64
	StepsFailed   int64
	DegradedByStep map[string]int64

	// Decision engine
	OracleCalls     int64
	OracleFallbacks int64

	// Credentials
	TokenRefreshes      int64
	TokenRefreshErrors  int64
	TokenCacheHits      int64

	// Evidence
	EvidenceSubmitted int64
	EvidenceFallback  int64

	// History
	HistoryAppends      int64
	HistoryAppendErrors int64

	// Dimensions (informational, set at construction)
	CorrelationID string
	Target        string
	SafetyMode    bool
}

// Collector accumulates metrics during a single run.
// Thread-safe via sync.Mutex.
type Collector struct {
	mu sync.Mutex

	runsStarted   int64
	runsCompleted int64
	runsFailed    int64
	runsCancelled int64

	stepsOK        int64
	stepsDegraded  int64
	stepsFailed    int64
	degradedByStep map[string]int64

	oracleCalls     int64
	oracleFallbacks int64

	tokenRefreshes     int64
	tokenRefreshErrors int64
	tokenCacheHits     int64

	evidenceSubmitted int64
	evidenceFallback  int64

	historyAppends      int64
	historyAppendErrors int64

	correlationID string
	target        string
	safetyMode    bool
}

// NewCollector creates a Collector with dimension labels.
func NewCollector(correlationID, target string, safetyMode bool) *Collector {
	return &Collector{
		degradedByStep: make(map[string]int64),
		correlationID:  correlationID,
		target:         target,
		safetyMode:     safetyMode,
	}
}

// --- Run lifecycle ---

// IncRunStarted records a run start.
func (c *Collector) IncRunStarted() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.runsStarted++
	c.mu.Unlock()
}

// IncRunCompleted records a successful run completion.
func (c *Collector) IncRunCompleted() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.runsCompleted++
	c.mu.Unlock()
}

// IncRunFailed records a run failure (safety invariant or learn persistence).
func (c *Collector) IncRunFailed() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.runsFailed++
	c.mu.Unlock()
}

// IncRunCancelled records a cancelled run.
func (c *Collector) IncRunCancelled() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.runsCancelled++
	c.mu.Unlock()
}

// --- Steps ---

// RecordStep records one step outcome. Degraded steps are additionally
// counted per step name.
func (c *Collector) RecordStep(step, status string) {
	if c == nil {
		return
	}
	c.mu.Lock()
	switch status {
	case "ok":
		c.stepsOK++
	case "degraded":
		c.stepsDegraded++
		c.degradedByStep[step]++
	case "failed":
		c.stepsFailed++
	}
	c.mu.Unlock()
}

// --- Decision engine ---

// IncOracleCall records one oracle invocation.
func (c *Collector) IncOracleCall() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.oracleCalls++
	c.mu.Unlock()
}

// IncOracleFallback records a deterministic fallback decision.
func (c *Collector) IncOracleFallback() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.oracleFallbacks++
	c.mu.Unlock()
}

// --- Credentials ---

// IncTokenRefresh records a token refresh exchange.
func (c *Collector) IncTokenRefresh() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.tokenRefreshes++
	c.mu.Unlock()
}

// IncTokenRefreshError records a failed token refresh.
func (c *Collector) IncTokenRefreshError() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.tokenRefreshErrors++
	c.mu.Unlock()
}

// IncTokenCacheHit records a cached token being served without a refresh.
func (c *Collector) IncTokenCacheHit() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.tokenCacheHits++
	c.mu.Unlock()
}

// --- Evidence ---

// IncEvidenceSubmitted records a successful evidence upload.
func (c *Collector) IncEvidenceSubmitted() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.evidenceSubmitted++
	c.mu.Unlock()
}

// IncEvidenceFallback records an evidence item persisted locally after
// an upload failure.
func (c *Collector) IncEvidenceFallback() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.evidenceFallback++
	c.mu.Unlock()
}

// --- History ---

// IncHistoryAppend records a successful history append.
func (c *Collector) IncHistoryAppend() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.historyAppends++
	c.mu.Unlock()
}

// IncHistoryAppendError records a failed history append.
func (c *Collector) IncHistoryAppendError() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.historyAppendErrors++
	c.mu.Unlock()
}

// Snapshot returns an immutable copy of all counters.
// Safe to call on a nil Collector (returns a zero Snapshot).
func (c *Collector) Snapshot() Snapshot {
	if c == nil {
		return Snapshot{DegradedByStep: map[string]int64{}}
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	byStep := make(map[string]int64, len(c.degradedByStep))
	for k, v := range c.degradedByStep {
		byStep[k] = v
	}

	return Snapshot{
		RunsStarted:         c.runsStarted,
		RunsCompleted:       c.runsCompleted,
		RunsFailed:          c.runsFailed,
		RunsCancelled:       c.runsCancelled,
		StepsOK:             c.stepsOK,
		StepsDegraded:       c.stepsDegraded,
		StepsFailed:         c.stepsFailed,
		DegradedByStep:      byStep,
		OracleCalls:         c.oracleCalls,
		OracleFallbacks:     c.oracleFallbacks,
		TokenRefreshes:      c.tokenRefreshes,
		TokenRefreshErrors:  c.tokenRefreshErrors,
		TokenCacheHits:      c.tokenCacheHits,
		EvidenceSubmitted:   c.evidenceSubmitted,
		EvidenceFallback:    c.evidenceFallback,
		HistoryAppends:      c.historyAppends,
		HistoryAppendErrors: c.historyAppendErrors,
		CorrelationID:       c.correlationID,
		Target:              c.target,
		SafetyMode:          c.safetyMode,
	}
}
