package types

// Severity is a scanner finding severity.
type Severity string

const (
	// SeverityError marks high-risk findings.
	SeverityError Severity = "ERROR"
	// SeverityWarning marks medium-risk findings.
	SeverityWarning Severity = "WARNING"
	// SeverityInfo marks informational findings.
	SeverityInfo Severity = "INFO"
)

// Finding is one static-analysis result.
type Finding struct {
	RuleID   string   `json:"rule_id" msgpack:"rule_id"`
	Severity Severity `json:"severity" msgpack:"severity"`
	Path     string   `json:"path" msgpack:"path"`
	Line     int      `json:"line" msgpack:"line"`
	Message  string   `json:"message" msgpack:"message"`
}

// ScanResult aggregates one scanner invocation.
type ScanResult struct {
	Findings []Finding `json:"findings" msgpack:"findings"`
	// ScannedPaths lists the roots that were scanned.
	ScannedPaths []string `json:"scanned_paths,omitempty" msgpack:"scanned_paths,omitempty"`
}

// FindingCount returns the total number of findings.
func (s *ScanResult) FindingCount() int {
	if s == nil {
		return 0
	}
	return len(s.Findings)
}

// BySeverity returns the findings matching the given severity.
func (s *ScanResult) BySeverity(sev Severity) []Finding {
	if s == nil {
		return nil
	}
	var out []Finding
	for _, f := range s.Findings {
		if f.Severity == sev {
			out = append(out, f)
		}
	}
	return out
}

// HighRisk returns the ERROR-severity findings.
func (s *ScanResult) HighRisk() []Finding {
	return s.BySeverity(SeverityError)
}

// SeverityBreakdown counts findings per severity.
func (s *ScanResult) SeverityBreakdown() map[Severity]int {
	counts := make(map[Severity]int)
	if s == nil {
		return counts
	}
	for _, f := range s.Findings {
		counts[f.Severity]++
	}
	return counts
}
