package types

// ActionID identifies a chaos experiment from the bounded permitted set.
type ActionID string

// The permitted experiment set. The decision engine guarantees every
// DecisionRecord names one of these; the chaos injector rejects anything
// else.
const (
	ActionMakeS3Public    ActionID = "make_s3_public"
	ActionRestrictS3      ActionID = "restrict_s3_public"
	ActionStopEC2Instance ActionID = "stop_ec2_instance"
	ActionNetworkLatency  ActionID = "inject_network_latency"
)

// DefaultAction is the deterministic fallback experiment used whenever
// the oracle fails or returns an unrecognized action.
const DefaultAction = ActionMakeS3Public

// PermittedActions returns the enumerated experiment set in canonical order.
func PermittedActions() []ActionID {
	return []ActionID{
		ActionMakeS3Public,
		ActionRestrictS3,
		ActionStopEC2Instance,
		ActionNetworkLatency,
	}
}

// IsPermittedAction reports whether id belongs to the permitted set.
func IsPermittedAction(id ActionID) bool {
	for _, a := range PermittedActions() {
		if a == id {
			return true
		}
	}
	return false
}

// DecisionRecord is the decision engine's selection of the next experiment.
type DecisionRecord struct {
	// Action is the chosen experiment. Always a member of PermittedActions.
	Action ActionID `json:"action" msgpack:"action"`
	// TargetResource is the resource the experiment should run against.
	TargetResource string `json:"target_resource" msgpack:"target_resource"`
	// Reasoning is the human-readable justification.
	Reasoning string `json:"reasoning" msgpack:"reasoning"`
	// ExpectedOutcome describes what should happen.
	ExpectedOutcome string `json:"expected_outcome" msgpack:"expected_outcome"`
	// ValidationCriteria describes how success is verified.
	ValidationCriteria string `json:"validation_criteria" msgpack:"validation_criteria"`
	// Confidence is the oracle's self-reported confidence in [0,1].
	// Zero when the record is a fallback.
	Confidence float64 `json:"confidence" msgpack:"confidence"`
	// Fallback marks records produced by deterministic fallback logic
	// rather than a parsed oracle response.
	Fallback bool `json:"fallback,omitempty" msgpack:"fallback,omitempty"`
}

// HistoryAnalysis is a compact digest of prior runs used to build the
// oracle prompt.
type HistoryAnalysis struct {
	TotalTests  int     `json:"total_tests"`
	Successful  int     `json:"successful_tests"`
	Failed      int     `json:"failed_tests"`
	SuccessRate float64 `json:"success_rate"`
	// CommonFailures lists the most frequent failure outcomes, highest first.
	CommonFailures []FailureCount `json:"common_failures,omitempty"`
	// MostRecent is the latest history entry, nil when history is empty.
	MostRecent *HistoryEntry `json:"most_recent,omitempty"`
}

// FailureCount pairs a failure outcome with its occurrence count.
type FailureCount struct {
	Outcome string `json:"outcome"`
	Count   int    `json:"count"`
}

// RiskLevel buckets a risk score.
type RiskLevel string

const (
	RiskMinimal RiskLevel = "MINIMAL"
	RiskLow     RiskLevel = "LOW"
	RiskMedium  RiskLevel = "MEDIUM"
	RiskHigh    RiskLevel = "HIGH"
)

// RiskAssessment is a weighted score over findings, compliance state and
// recent failures.
type RiskAssessment struct {
	Score          int       `json:"risk_score"`
	Level          RiskLevel `json:"risk_level"`
	Factors        []string  `json:"risk_factors,omitempty"`
	Recommendation string    `json:"recommendation"`
}
