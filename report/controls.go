// Package report submits compliance evidence to the GRC platform.
//
// Every submission is best effort with a local fallback: evidence that
// cannot reach the platform lands in the on-disk evidence store and the
// run degrades instead of failing. Test outcomes map to controls through
// a fixed table per framework.
package report

import "github.com/chaossec-io/chaossec/types"

// TestType classifies the kind of validation evidence supports.
type TestType string

const (
	TestS3PublicAccess  TestType = "s3_public_access"
	TestChaosExperiment TestType = "fis_chaos_test"
	TestIaCScan         TestType = "iac_scan"
	TestMonitoring      TestType = "infrastructure_monitoring"
)

// controlMappings maps test types to the controls they evidence, per
// framework. Control IDs follow each framework's own numbering.
var controlMappings = map[TestType]map[types.Framework][]string{
	TestS3PublicAccess: {
		types.FrameworkSOC2:     {"CC6.6", "CC7.2"},
		types.FrameworkISO27001: {"A.9.2", "A.12.1.2"},
		types.FrameworkNIST:     {"SC-7", "SI-4"},
	},
	TestChaosExperiment: {
		types.FrameworkSOC2:     {"CC7.2", "CC9.1"},
		types.FrameworkISO27001: {"A.12.1", "A.17.1"},
		types.FrameworkNIST:     {"CP-4", "SI-4"},
	},
	TestIaCScan: {
		types.FrameworkSOC2:     {"CC8.1", "CC7.2"},
		types.FrameworkISO27001: {"A.12.1.2", "A.14.2.8"},
		types.FrameworkNIST:     {"CM-2", "RA-5"},
	},
	TestMonitoring: {
		types.FrameworkSOC2:     {"CC7.2", "CC7.3"},
		types.FrameworkISO27001: {"A.12.4", "A.16.1"},
		types.FrameworkNIST:     {"SI-4", "AU-6"},
	},
}

// ControlsFor returns the control IDs a test type evidences under the
// given framework. Unknown combinations return nil.
func ControlsFor(test TestType, framework types.Framework) []string {
	return controlMappings[test][framework]
}

// TestTypeFor maps an executed action to its evidence test type.
func TestTypeFor(action types.ActionID) TestType {
	switch action {
	case types.ActionMakeS3Public, types.ActionRestrictS3:
		return TestS3PublicAccess
	default:
		return TestChaosExperiment
	}
}
