// Package orchestrator drives one validation cycle end to end.
//
// A cycle is a fixed linear sequence of eight steps: simulate, scan,
// reason, chaos, monitor, validate, report, learn. Steps never reorder
// and never run concurrently. Collaborator failures degrade the affected
// step and the cycle continues; only a safety violation or a learn-step
// persistence failure fails the run. Exactly one RunResult comes out,
// whatever happened in between.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/chaossec-io/chaossec/adapter"
	"github.com/chaossec-io/chaossec/brain"
	"github.com/chaossec-io/chaossec/chaos"
	"github.com/chaossec-io/chaossec/history"
	"github.com/chaossec-io/chaossec/log"
	"github.com/chaossec-io/chaossec/metrics"
	"github.com/chaossec-io/chaossec/monitor"
	"github.com/chaossec-io/chaossec/report"
	"github.com/chaossec-io/chaossec/scan"
	"github.com/chaossec-io/chaossec/twin"
	"github.com/chaossec-io/chaossec/types"
)

// recentHistoryLimit bounds the history slice handed to the decision
// engine. Wider than the prompt window so the anti-starvation tie-break
// sees enough past actions.
const recentHistoryLimit = 50

// publishTimeout bounds the best-effort run-completed publication.
const publishTimeout = 10 * time.Second

// EvidenceStore is the local fallback sink for evidence records.
type EvidenceStore interface {
	Save(ev types.Evidence) (string, error)
}

// SnapshotArchive persists full run results for later inspection.
type SnapshotArchive interface {
	Save(result *types.RunResult) error
}

// Config wires one orchestrator. Run, Engine, Injector and History are
// required; every other collaborator is optional and its absence
// degrades the corresponding step.
type Config struct {
	// Run is the run identity and safety setting.
	Run *types.RunContext
	// Simulator provisions digital twins (optional).
	Simulator twin.Simulator
	// Scanner produces the findings baseline (optional).
	Scanner scan.Scanner
	// Engine selects the next experiment.
	Engine *brain.Engine
	// Injector executes experiments.
	Injector chaos.Injector
	// Monitor collects post-experiment observations (optional).
	Monitor monitor.Collector
	// MonitorWindow is the observation lookback (default 5m).
	MonitorWindow time.Duration
	// Reporter submits evidence to the compliance platform (optional).
	Reporter report.Reporter
	// Evidence is the local fallback evidence store (optional).
	Evidence EvidenceStore
	// History is the run outcome journal.
	History history.Store
	// Snapshots archives full run results (optional).
	Snapshots SnapshotArchive
	// Publisher notifies downstream systems after Learn (optional).
	Publisher adapter.Adapter
	// Collector records run metrics. Nil disables metrics.
	Collector *metrics.Collector
	// Logger overrides the default run-context logger.
	Logger *log.Logger
}

// Orchestrator executes one validation cycle.
type Orchestrator struct {
	config *Config
	logger *log.Logger
	run    *types.RunContext
}

// New creates an orchestrator for one run.
func New(cfg *Config) (*Orchestrator, error) {
	if cfg == nil || cfg.Run == nil {
		return nil, errors.New("orchestrator: run context is required")
	}
	if err := cfg.Run.Validate(); err != nil {
		return nil, fmt.Errorf("orchestrator: invalid run context: %w", err)
	}
	if cfg.Engine == nil {
		return nil, errors.New("orchestrator: decision engine is required")
	}
	if cfg.Injector == nil {
		return nil, errors.New("orchestrator: chaos injector is required")
	}
	if cfg.History == nil {
		return nil, errors.New("orchestrator: history store is required")
	}
	if cfg.MonitorWindow <= 0 {
		cfg.MonitorWindow = monitor.DefaultWindow
	}

	logger := cfg.Logger
	if logger == nil {
		logger = log.NewLogger(cfg.Run)
	}
	return &Orchestrator{config: cfg, logger: logger, run: cfg.Run}, nil
}

// runState accumulates cross-step data for one cycle.
type runState struct {
	twinID          string
	scan            *types.ScanResult
	recent          []types.HistoryEntry
	decision        types.DecisionRecord
	executedAction  types.ActionID
	applied         bool
	safetyViolation bool
	observation     *monitor.Observation
	outcome         types.ValidationOutcome
	risk            types.RiskAssessment
	evidenceCount   int
	fallbackCount   int
	learnErr        error
}

// stepFunc executes one step against the shared state.
type stepFunc func(ctx context.Context, state *runState) *types.StepResult

// Execute runs the full cycle and always returns an aggregated result.
// Cancellation between steps skips the remaining experiment steps but
// Learn still runs, so the cancelled cycle leaves a history record.
func (o *Orchestrator) Execute(ctx context.Context) (*types.RunResult, error) {
	o.config.Collector.IncRunStarted()
	o.logger.Info("run started", map[string]any{"step_count": len(types.StepOrder)})

	result := &types.RunResult{
		CorrelationID: o.run.CorrelationID,
		Target:        o.run.Target,
		SafetyMode:    o.run.SafetyMode,
		StartedAt:     o.run.StartedAt,
	}
	state := &runState{scan: &types.ScanResult{}, outcome: types.OutcomeInconclusive}

	steps := []struct {
		name types.StepName
		fn   stepFunc
	}{
		{types.StepSimulate, o.stepSimulate},
		{types.StepScan, o.stepScan},
		{types.StepReason, o.stepReason},
		{types.StepChaos, o.stepChaos},
		{types.StepMonitor, o.stepMonitor},
		{types.StepValidate, o.stepValidate},
		{types.StepReport, o.stepReport},
	}

	cancelled := false
	for _, s := range steps {
		if ctx.Err() != nil {
			cancelled = true
			state.outcome = types.OutcomeCancelled
			o.logger.Warn("run cancelled, skipping remaining steps", map[string]any{
				"next_step": string(s.name),
			})
			break
		}
		result.Steps = append(result.Steps, o.runStep(ctx, s.name, s.fn, state))
	}

	// Learn always runs, even after cancellation: the journal must record
	// that this correlation id happened.
	learnCtx := context.WithoutCancel(ctx)
	result.Steps = append(result.Steps, o.runStep(learnCtx, types.StepLearn, o.stepLearn, state))

	result.CompletedAt = time.Now().UTC()
	o.finalize(result, state, cancelled)

	if o.config.Snapshots != nil {
		if err := o.config.Snapshots.Save(result); err != nil {
			result.Status = types.RunFailed
			result.Message = fmt.Sprintf("snapshot persistence failed: %v", err)
			o.logger.Error("snapshot persistence failed", map[string]any{"error": err.Error()})
		}
	}

	o.recordRunMetrics(result)
	o.publish(learnCtx, result, state)

	o.logger.Info("run finished", map[string]any{
		"status":  string(result.Status),
		"outcome": string(state.outcome),
	})
	return result, nil
}

// runStep executes one step, timing it and logging the transition.
func (o *Orchestrator) runStep(ctx context.Context, name types.StepName, fn stepFunc, state *runState) types.StepResult {
	started := time.Now()
	o.logger.Debug("step started", map[string]any{"step": string(name)})

	res := fn(ctx, state)
	res.Step = name
	res.ElapsedMs = time.Since(started).Milliseconds()

	o.config.Collector.RecordStep(string(name), string(res.Status))
	fields := map[string]any{
		"step":       string(name),
		"status":     string(res.Status),
		"elapsed_ms": res.ElapsedMs,
	}
	if res.Err != "" {
		fields["error"] = res.Err
	}
	o.logger.Info("step finished", fields)
	return *res
}

// finalize derives the run status from the accumulated step results.
func (o *Orchestrator) finalize(result *types.RunResult, state *runState, cancelled bool) {
	switch {
	case state.safetyViolation:
		result.Status = types.RunFailed
		result.Message = "safety invariant violated: mutation applied while safety mode active"
	case state.learnErr != nil:
		result.Status = types.RunFailed
		result.Message = fmt.Sprintf("history persistence failed: %v", state.learnErr)
	case cancelled:
		result.Status = types.RunCancelled
		result.Message = "run cancelled before completion"
	default:
		result.Status = types.RunSuccess
		result.Message = fmt.Sprintf("validation outcome: %s", state.outcome)
		for _, s := range result.Steps {
			if s.Status == types.StepFailed {
				result.Status = types.RunFailed
				result.Message = fmt.Sprintf("step %s failed: %s", s.Step, s.Err)
				break
			}
		}
	}
}

func (o *Orchestrator) recordRunMetrics(result *types.RunResult) {
	switch result.Status {
	case types.RunSuccess:
		o.config.Collector.IncRunCompleted()
	case types.RunCancelled:
		o.config.Collector.IncRunCancelled()
	default:
		o.config.Collector.IncRunFailed()
	}
}

// stepSimulate provisions a digital twin of the target. No twin service
// or a provisioning failure leaves later steps without a twin, which is
// survivable: the chaos step simply skips the twin replay.
func (o *Orchestrator) stepSimulate(ctx context.Context, state *runState) *types.StepResult {
	if o.config.Simulator == nil {
		return &types.StepResult{Status: types.StepDegraded, Err: "no twin service configured"}
	}

	t, err := o.config.Simulator.CreateTwin(ctx, o.run)
	if err != nil {
		return &types.StepResult{Status: types.StepDegraded, Err: err.Error()}
	}
	state.twinID = t.ID
	return &types.StepResult{
		Status:  types.StepOK,
		Payload: map[string]any{"twin_id": t.ID, "twin_state": t.State},
	}
}

// stepScan collects the findings baseline. Scanner failures degrade to
// an empty baseline; the decision engine then reasons without findings.
func (o *Orchestrator) stepScan(ctx context.Context, state *runState) *types.StepResult {
	if o.config.Scanner == nil {
		return &types.StepResult{Status: types.StepDegraded, Err: "no scanner configured"}
	}

	result, err := o.config.Scanner.Scan(ctx)
	if err != nil {
		return &types.StepResult{Status: types.StepDegraded, Err: err.Error()}
	}
	state.scan = result

	breakdown := result.SeverityBreakdown()
	return &types.StepResult{
		Status: types.StepOK,
		Payload: map[string]any{
			"finding_count": result.FindingCount(),
			"high_risk":     len(result.HighRisk()),
			"warnings":      breakdown[types.SeverityWarning],
		},
	}
}

// stepReason asks the decision engine for the next experiment. The
// engine absorbs every oracle failure into a fallback record, so this
// step is at worst degraded.
func (o *Orchestrator) stepReason(ctx context.Context, state *runState) *types.StepResult {
	recent, err := o.config.History.Recent(ctx, recentHistoryLimit)
	if err != nil {
		o.logger.Warn("history unavailable for reasoning", map[string]any{"error": err.Error()})
		recent = nil
	}
	state.recent = recent

	state.decision = o.config.Engine.ReasonNextAction(ctx, o.run, state.scan, recent)
	state.executedAction = state.decision.Action

	status := types.StepOK
	errText := ""
	if state.decision.Fallback {
		status = types.StepDegraded
		errText = state.decision.Reasoning
	}
	return &types.StepResult{
		Status: status,
		Err:    errText,
		Payload: map[string]any{
			"action":     string(state.decision.Action),
			"target":     state.decision.TargetResource,
			"confidence": state.decision.Confidence,
			"fallback":   state.decision.Fallback,
		},
	}
}

// stepChaos executes the chosen experiment. The safety invariant is
// enforced here, on the orchestrator side: the request carries the run's
// safety mode unconditionally, and an injector claiming it applied a
// mutation under safety mode fails the whole run. Any other injector
// error degrades the step; the cycle still monitors, reports and learns.
func (o *Orchestrator) stepChaos(ctx context.Context, state *runState) *types.StepResult {
	payload := map[string]any{"action": string(state.decision.Action)}

	if o.run.SafetyMode && state.twinID != "" && o.config.Simulator != nil {
		if sim, err := o.config.Simulator.SimulateChange(ctx, state.twinID, state.decision.Action); err == nil {
			payload["twin_safe"] = sim.Safe
			if sim.Impact != "" {
				payload["twin_impact"] = sim.Impact
			}
		} else {
			o.logger.Warn("twin replay failed", map[string]any{"error": err.Error()})
		}
	}

	res, err := o.config.Injector.Execute(ctx, chaos.ExperimentRequest{
		Action:     state.decision.Action,
		Target:     state.decision.TargetResource,
		SafetyMode: o.run.SafetyMode,
	})
	if err != nil {
		payload["applied"] = false
		return &types.StepResult{Status: types.StepDegraded, Err: err.Error(), Payload: payload}
	}

	if res.Applied && o.run.SafetyMode {
		state.safetyViolation = true
		payload["applied"] = true
		return &types.StepResult{
			Status:  types.StepFailed,
			Err:     types.ErrSafetyInvariant.Error(),
			Payload: payload,
		}
	}

	if res.ExecutedAction != "" && res.ExecutedAction != state.decision.Action {
		state.executedAction = res.ExecutedAction
		payload["executed_action"] = string(res.ExecutedAction)
	}
	state.applied = res.Applied
	payload["applied"] = res.Applied
	if res.Detail != "" {
		payload["detail"] = res.Detail
	}
	return &types.StepResult{Status: types.StepOK, Payload: payload}
}

// stepMonitor collects the post-experiment observation. A fully empty
// observation degrades the step; validation will treat it as
// inconclusive rather than inventing a verdict.
func (o *Orchestrator) stepMonitor(ctx context.Context, state *runState) *types.StepResult {
	if o.config.Monitor == nil {
		return &types.StepResult{Status: types.StepDegraded, Err: "no monitoring configured"}
	}

	obs, err := o.config.Monitor.Collect(ctx, o.config.MonitorWindow, state.decision.TargetResource)
	if err != nil {
		return &types.StepResult{Status: types.StepDegraded, Err: err.Error()}
	}
	state.observation = obs

	payload := map[string]any{
		"metric_count":      len(obs.Metrics),
		"audit_event_count": len(obs.AuditEvents),
		"compliance":        string(obs.Compliance),
	}
	if len(obs.Degraded) > 0 {
		payload["degraded_sources"] = obs.Degraded
	}
	if obs.Empty() {
		return &types.StepResult{Status: types.StepDegraded, Err: "observation carries no signal", Payload: payload}
	}
	return &types.StepResult{Status: types.StepOK, Payload: payload}
}

// stepValidate applies the validation policy and scores the posture.
// Pure: no external calls.
func (o *Orchestrator) stepValidate(_ context.Context, state *runState) *types.StepResult {
	if state.safetyViolation {
		state.outcome = types.OutcomeFailed
	} else {
		state.outcome = validateOutcome(o.run.SafetyMode, state.executedAction, state.observation)
	}

	nonCompliant := 0
	if state.observation != nil && state.observation.Compliance == monitor.ComplianceNonCompliant {
		nonCompliant = 1
	}
	recentFailures := 0
	for _, e := range state.recent {
		if e.Outcome == string(types.OutcomeFailed) {
			recentFailures++
		}
	}
	state.risk = brain.AssessRisk(state.scan, nonCompliant, recentFailures)

	return &types.StepResult{
		Status: types.StepOK,
		Payload: map[string]any{
			"outcome":             string(state.outcome),
			"risk_score":          state.risk.Score,
			"risk_level":          string(state.risk.Level),
			"risk_recommendation": state.risk.Recommendation,
		},
	}
}

// stepReport maps the cycle's outcomes onto compliance controls and
// submits one evidence record per control. Submission failures fall back
// to the local evidence store and degrade the step; evidence is never
// silently dropped.
func (o *Orchestrator) stepReport(ctx context.Context, state *runState) *types.StepResult {
	records := o.buildEvidence(state)

	var fallbackErrs int
	for _, ev := range records {
		if o.config.Reporter != nil {
			_, err := o.config.Reporter.SubmitEvidence(ctx, ev)
			if err == nil {
				o.config.Collector.IncEvidenceSubmitted()
				state.evidenceCount++
				continue
			}
			o.logger.Warn("evidence submission failed", map[string]any{
				"control": ev.ControlID,
				"error":   err.Error(),
			})
		}

		if o.config.Evidence == nil {
			fallbackErrs++
			continue
		}
		if _, err := o.config.Evidence.Save(*ev); err != nil {
			o.logger.Error("evidence fallback write failed", map[string]any{
				"control": ev.ControlID,
				"error":   err.Error(),
			})
			fallbackErrs++
			continue
		}
		o.config.Collector.IncEvidenceFallback()
		state.evidenceCount++
		state.fallbackCount++
	}

	payload := map[string]any{
		"evidence_count": state.evidenceCount,
		"fallback_count": state.fallbackCount,
	}
	switch {
	case fallbackErrs > 0:
		return &types.StepResult{
			Status:  types.StepDegraded,
			Err:     fmt.Sprintf("%d evidence records lost", fallbackErrs),
			Payload: payload,
		}
	case state.fallbackCount > 0:
		return &types.StepResult{
			Status:  types.StepDegraded,
			Err:     "evidence persisted locally, platform unreachable",
			Payload: payload,
		}
	default:
		return &types.StepResult{Status: types.StepOK, Payload: payload}
	}
}

// buildEvidence assembles the evidence records for this cycle: the chaos
// action itself, the IaC scan when findings exist, and the monitoring
// observation when it carried signal.
func (o *Orchestrator) buildEvidence(state *runState) []*types.Evidence {
	now := time.Now().UTC()
	newRecord := func(test report.TestType, controlID string) *types.Evidence {
		return &types.Evidence{
			ControlID:     controlID,
			Framework:     types.FrameworkSOC2,
			TestType:      string(test),
			Result:        string(state.outcome),
			CorrelationID: o.run.CorrelationID,
			Timestamp:     now,
			Source:        "chaossec",
			Details: map[string]any{
				"action":      string(state.decision.Action),
				"target":      state.decision.TargetResource,
				"safety_mode": o.run.SafetyMode,
			},
		}
	}

	var records []*types.Evidence
	testTypes := []report.TestType{report.TestTypeFor(state.executedAction)}
	if state.scan.FindingCount() > 0 {
		testTypes = append(testTypes, report.TestIaCScan)
	}
	if state.observation != nil && !state.observation.Empty() {
		testTypes = append(testTypes, report.TestMonitoring)
	}
	for _, test := range testTypes {
		for _, control := range report.ControlsFor(test, types.FrameworkSOC2) {
			records = append(records, newRecord(test, control))
		}
	}
	return records
}

// stepLearn persists the cycle's history entry. This is the one step
// whose failure fails the run: losing the journal would let the next
// cycle repeat this one blindly.
func (o *Orchestrator) stepLearn(ctx context.Context, state *runState) *types.StepResult {
	entry := types.HistoryEntry{
		CorrelationID: o.run.CorrelationID,
		Timestamp:     time.Now().UTC(),
		Action:        state.decision.Action,
		Target:        state.decision.TargetResource,
		Outcome:       string(state.outcome),
		FindingCount:  state.scan.FindingCount(),
		EvidenceCount: state.evidenceCount,
	}
	if entry.Target == "" {
		entry.Target = o.run.Target
	}

	if err := o.config.History.Append(ctx, entry); err != nil {
		state.learnErr = err
		return &types.StepResult{Status: types.StepFailed, Err: err.Error()}
	}
	return &types.StepResult{
		Status:  types.StepOK,
		Payload: map[string]any{"outcome": string(state.outcome)},
	}
}

// publish sends the run-completed event. Best effort: failures are
// logged, never propagated.
func (o *Orchestrator) publish(ctx context.Context, result *types.RunResult, state *runState) {
	if o.config.Publisher == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	event := &adapter.RunCompletedEvent{
		EventType:     adapter.EventTypeRunCompleted,
		CorrelationID: result.CorrelationID,
		Target:        result.Target,
		Action:        string(state.decision.Action),
		Outcome:       string(state.outcome),
		Status:        string(result.Status),
		SafetyMode:    result.SafetyMode,
		Day:           result.CompletedAt.UTC().Format("2006-01-02"),
		Timestamp:     result.CompletedAt.UTC().Format(time.RFC3339),
		FindingCount:  state.scan.FindingCount(),
		EvidenceCount: state.evidenceCount,
		DurationMs:    result.CompletedAt.Sub(result.StartedAt).Milliseconds(),
		RiskLevel:     string(state.risk.Level),
	}
	if err := o.config.Publisher.Publish(ctx, event); err != nil {
		o.logger.Warn("run event publication failed", map[string]any{"error": err.Error()})
	}
}
