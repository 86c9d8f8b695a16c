package orchestrator

import (
	"github.com/chaossec-io/chaossec/monitor"
	"github.com/chaossec-io/chaossec/types"
)

// mutationAPIFor maps an action to the control-plane call it issues when
// applied for real. Validation looks for this call in the audit trail.
func mutationAPIFor(action types.ActionID) string {
	switch action {
	case types.ActionMakeS3Public:
		return "DeletePublicAccessBlock"
	case types.ActionRestrictS3:
		return "PutPublicAccessBlock"
	case types.ActionStopEC2Instance:
		return "StopInstances"
	default:
		return ""
	}
}

// validateOutcome is the pure validation policy. It inspects only its
// arguments; no collaborator is consulted.
//
// Safety mode wins first: nothing mutated, the cycle itself is the
// success. Otherwise detection decides: a NON_COMPLIANT verdict or an
// audit event naming the action's mutating call means the controls saw
// the change. Signal without detection is a real failure. No signal at
// all is inconclusive, never success. A chaos result claiming applied
// carries no weight on its own.
func validateOutcome(safetyMode bool, action types.ActionID, obs *monitor.Observation) types.ValidationOutcome {
	if safetyMode {
		return types.OutcomeSuccessSimulated
	}
	if obs.Empty() {
		return types.OutcomeInconclusive
	}

	if obs.Compliance == monitor.ComplianceNonCompliant {
		return types.OutcomeSuccessDetected
	}
	if api := mutationAPIFor(action); api != "" {
		for _, e := range obs.AuditEvents {
			if e.Name == api {
				return types.OutcomeSuccessDetected
			}
		}
	}

	return types.OutcomeFailed
}
