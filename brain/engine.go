package brain

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/chaossec-io/chaossec/log"
	"github.com/chaossec-io/chaossec/metrics"
	"github.com/chaossec-io/chaossec/types"
)

const (
	// historyWindow bounds how many recent runs enter the prompt.
	historyWindow = 5
	// exemplarCap bounds how many individual findings are quoted.
	exemplarCap = 3
	// lowConfidence is the threshold below which an oracle decision is
	// overridden by the anti-starvation choice.
	lowConfidence = 0.5
)

// Engine turns scan results and run history into the next experiment
// decision.
type Engine struct {
	oracle    Oracle
	logger    *log.Logger
	collector *metrics.Collector
}

// NewEngine creates a decision engine. A nil oracle is allowed and
// forces the deterministic fallback path.
func NewEngine(oracle Oracle, logger *log.Logger, collector *metrics.Collector) *Engine {
	return &Engine{oracle: oracle, logger: logger, collector: collector}
}

// ReasonNextAction selects the next chaos experiment. It never returns
// an error: every oracle failure mode degrades to a fallback decision,
// and the returned action is always a member of the permitted set.
func (e *Engine) ReasonNextAction(ctx context.Context, run *types.RunContext, scan *types.ScanResult, recent []types.HistoryEntry) types.DecisionRecord {
	analysis := AnalyzeHistory(recent)

	if e.oracle == nil {
		return e.fallback(run, recent, "no oracle configured")
	}

	prompt := buildPrompt(run, scan, analysis, recent)

	e.collector.IncOracleCall()
	raw, err := e.oracle.Complete(ctx, prompt)
	if err != nil {
		e.logger.Warn("oracle unavailable, using fallback", map[string]any{"error": err.Error()})
		return e.fallback(run, recent, fmt.Sprintf("oracle unavailable: %v", err))
	}

	decision, err := parseDecision(raw)
	if err != nil {
		e.logger.Warn("oracle response rejected, using fallback", map[string]any{"error": err.Error()})
		return e.fallback(run, recent, fmt.Sprintf("malformed oracle response: %v", err))
	}

	if decision.Confidence < lowConfidence {
		e.logger.Info("oracle confidence below threshold, using fallback", map[string]any{
			"confidence": decision.Confidence,
			"proposed":   string(decision.Action),
		})
		return e.fallback(run, recent, fmt.Sprintf("oracle confidence %.2f below threshold", decision.Confidence))
	}

	if decision.TargetResource == "" {
		decision.TargetResource = run.Target
	}
	e.logger.Info("oracle selected action", map[string]any{
		"action":     string(decision.Action),
		"confidence": decision.Confidence,
	})
	return decision
}

// fallback produces a deterministic decision. To avoid starving any
// experiment, it picks the least recently tested permitted action; ties
// break toward canonical order, so an empty history yields the default.
func (e *Engine) fallback(run *types.RunContext, recent []types.HistoryEntry, reason string) types.DecisionRecord {
	e.collector.IncOracleFallback()

	action := leastRecentlyTested(recent)
	return types.DecisionRecord{
		Action:             action,
		TargetResource:     run.Target,
		Reasoning:          reason,
		ExpectedOutcome:    "security controls detect and alert on the injected change",
		ValidationCriteria: "compliance state flags the resource or audit trail records the mutation",
		Confidence:         0,
		Fallback:           true,
	}
}

// leastRecentlyTested returns the permitted action whose last appearance
// in history is oldest. Actions never tested rank before all tested
// ones; among those, canonical order decides.
func leastRecentlyTested(recent []types.HistoryEntry) types.ActionID {
	// lastSeen[i] is the most recent history index where action i ran,
	// -1 when it never ran. History is newest first.
	actions := types.PermittedActions()
	lastSeen := make(map[types.ActionID]int, len(actions))
	for _, a := range actions {
		lastSeen[a] = -1
	}
	for i := len(recent) - 1; i >= 0; i-- {
		if _, ok := lastSeen[recent[i].Action]; ok {
			lastSeen[recent[i].Action] = len(recent) - i
		}
	}

	best := actions[0]
	for _, a := range actions[1:] {
		if lastSeen[a] < lastSeen[best] {
			best = a
		}
	}
	return best
}

// AnalyzeHistory digests prior runs into the compact form the prompt
// embeds. Outcomes counted as successful are success_detected and
// success_simulated; failed and inconclusive count as failures.
func AnalyzeHistory(entries []types.HistoryEntry) types.HistoryAnalysis {
	analysis := types.HistoryAnalysis{TotalTests: len(entries)}
	if len(entries) == 0 {
		return analysis
	}

	failures := make(map[string]int)
	for _, e := range entries {
		switch types.ValidationOutcome(e.Outcome) {
		case types.OutcomeSuccessDetected, types.OutcomeSuccessSimulated:
			analysis.Successful++
		default:
			analysis.Failed++
			failures[e.Outcome]++
		}
	}
	analysis.SuccessRate = float64(analysis.Successful) / float64(len(entries))

	for outcome, count := range failures {
		analysis.CommonFailures = append(analysis.CommonFailures, types.FailureCount{
			Outcome: outcome,
			Count:   count,
		})
	}
	sort.Slice(analysis.CommonFailures, func(i, j int) bool {
		if analysis.CommonFailures[i].Count != analysis.CommonFailures[j].Count {
			return analysis.CommonFailures[i].Count > analysis.CommonFailures[j].Count
		}
		return analysis.CommonFailures[i].Outcome < analysis.CommonFailures[j].Outcome
	})

	// Entries arrive newest first.
	analysis.MostRecent = &entries[0]
	return analysis
}

// buildPrompt renders the bounded decision prompt. Scan output enters as
// severity counts plus a few exemplars, never the full finding list, so
// prompt size stays independent of scan volume.
func buildPrompt(run *types.RunContext, scan *types.ScanResult, analysis types.HistoryAnalysis, recent []types.HistoryEntry) string {
	var b strings.Builder

	b.WriteString("You are a cloud security validation engine selecting the next chaos experiment.\n\n")

	fmt.Fprintf(&b, "Target resource: %s\n", run.Target)
	fmt.Fprintf(&b, "Safety mode: %t\n\n", run.SafetyMode)

	breakdown := scan.SeverityBreakdown()
	fmt.Fprintf(&b, "Infrastructure scan: %d findings (ERROR: %d, WARNING: %d, INFO: %d)\n",
		scan.FindingCount(),
		breakdown[types.SeverityError],
		breakdown[types.SeverityWarning],
		breakdown[types.SeverityInfo])
	for i, f := range scan.HighRisk() {
		if i >= exemplarCap {
			break
		}
		fmt.Fprintf(&b, "- [%s] %s (%s:%d)\n", f.RuleID, f.Message, f.Path, f.Line)
	}
	b.WriteString("\n")

	fmt.Fprintf(&b, "Test history: %d total, %d successful, %d failed (success rate %.0f%%)\n",
		analysis.TotalTests, analysis.Successful, analysis.Failed, analysis.SuccessRate*100)
	window := recent
	if len(window) > historyWindow {
		window = window[:historyWindow]
	}
	for _, e := range window {
		fmt.Fprintf(&b, "- %s on %s: %s\n", e.Action, e.Target, e.Outcome)
	}
	b.WriteString("\n")

	b.WriteString("Permitted actions (choose exactly one):\n")
	for _, a := range types.PermittedActions() {
		fmt.Fprintf(&b, "- %s\n", a)
	}
	b.WriteString("\n")

	b.WriteString("Respond with ONLY a JSON object, no prose, no markdown fences, with fields:\n")
	b.WriteString(`{"action": "<permitted action>", "target_resource": "<resource>", ` +
		`"reasoning": "<why>", "expected_outcome": "<what should happen>", ` +
		`"validation_criteria": "<how success is verified>", "confidence": <0.0-1.0>}`)
	b.WriteString("\n")

	return b.String()
}

// parseDecision extracts a decision from the raw oracle response.
// Markdown code fences are tolerated despite the prompt forbidding them;
// models add them anyway. Anything else malformed, including an action
// outside the permitted set, is rejected.
func parseDecision(raw string) (types.DecisionRecord, error) {
	cleaned := stripFences(raw)
	if cleaned == "" {
		return types.DecisionRecord{}, types.NewFault(types.ErrMalformedOracleResponse, "parse_decision",
			fmt.Errorf("empty response"))
	}

	var decision types.DecisionRecord
	if err := json.Unmarshal([]byte(cleaned), &decision); err != nil {
		return types.DecisionRecord{}, types.NewFault(types.ErrMalformedOracleResponse, "parse_decision", err)
	}
	if !types.IsPermittedAction(decision.Action) {
		return types.DecisionRecord{}, types.NewFault(types.ErrMalformedOracleResponse, "parse_decision",
			fmt.Errorf("action %q is not permitted", decision.Action))
	}
	if decision.Confidence < 0 || decision.Confidence > 1 {
		return types.DecisionRecord{}, types.NewFault(types.ErrMalformedOracleResponse, "parse_decision",
			fmt.Errorf("confidence %v out of range", decision.Confidence))
	}
	return decision, nil
}

// stripFences removes a surrounding markdown code fence, with or without
// a language tag, and trims whitespace.
func stripFences(raw string) string {
	s := strings.TrimSpace(raw)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if i := strings.IndexByte(s, '\n'); i >= 0 && !strings.HasPrefix(s, "{") {
		// Drop a language tag like "json" on the fence line.
		s = s[i+1:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
