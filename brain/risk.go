package brain

import (
	"fmt"

	"github.com/chaossec-io/chaossec/types"
)

// Risk score weights. Critical findings dominate, then non-compliant
// resources, then recent validation failures. The score is capped at 100.
const (
	weightCriticalFinding = 10
	weightNonCompliant    = 5
	weightRecentFailure   = 3
	maxRiskScore          = 100
)

// AssessRisk scores the current posture from scan findings, the count of
// non-compliant resources observed by monitoring, and recent failed runs.
func AssessRisk(scan *types.ScanResult, nonCompliant int, recentFailures int) types.RiskAssessment {
	critical := len(scan.HighRisk())

	score := critical*weightCriticalFinding +
		nonCompliant*weightNonCompliant +
		recentFailures*weightRecentFailure
	if score > maxRiskScore {
		score = maxRiskScore
	}

	var factors []string
	if critical > 0 {
		factors = append(factors, fmt.Sprintf("%d critical scan findings", critical))
	}
	if nonCompliant > 0 {
		factors = append(factors, fmt.Sprintf("%d non-compliant resources", nonCompliant))
	}
	if recentFailures > 0 {
		factors = append(factors, fmt.Sprintf("%d recent validation failures", recentFailures))
	}

	level := riskLevel(score)
	return types.RiskAssessment{
		Score:          score,
		Level:          level,
		Factors:        factors,
		Recommendation: recommendation(level),
	}
}

func riskLevel(score int) types.RiskLevel {
	switch {
	case score >= 70:
		return types.RiskHigh
	case score >= 40:
		return types.RiskMedium
	case score >= 15:
		return types.RiskLow
	default:
		return types.RiskMinimal
	}
}

func recommendation(level types.RiskLevel) string {
	switch level {
	case types.RiskHigh:
		return "remediate critical findings before the next experiment cycle"
	case types.RiskMedium:
		return "prioritize fixes for flagged resources and re-run validation"
	case types.RiskLow:
		return "continue scheduled validation cycles"
	default:
		return "posture nominal, maintain current cadence"
	}
}
