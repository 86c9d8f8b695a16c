package tui

import (
	"strings"
	"testing"
	"time"

	"github.com/chaossec-io/chaossec/types"
)

func TestIsTUISupported(t *testing.T) {
	tests := []struct {
		viewType string
		want     bool
	}{
		{"inspect_run", true},
		{"stats_history", true},

		{"history", false},
		{"evidence", false},
		{"actions", false},
		{"version", false},
		{"run", false},
		{"unknown", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.viewType, func(t *testing.T) {
			got := IsTUISupported(tt.viewType)
			if got != tt.want {
				t.Errorf("IsTUISupported(%q) = %v, want %v", tt.viewType, got, tt.want)
			}
		})
	}
}

func TestSupportedTUIViews(t *testing.T) {
	views := SupportedTUIViews()

	if len(views) != 2 {
		t.Errorf("SupportedTUIViews() returned %d views, expected 2", len(views))
	}

	for _, v := range views {
		if !IsTUISupported(v) {
			t.Errorf("SupportedTUIViews() returned %q but IsTUISupported returns false", v)
		}
	}
}

func TestRun_UnsupportedViewType(t *testing.T) {
	err := Run("history", nil)
	if err == nil {
		t.Error("Expected error for unsupported view type")
	}
}

func TestInspectView_RendersRunResult(t *testing.T) {
	result := &types.RunResult{
		CorrelationID: "chaossec-abc123",
		Target:        "staging-bucket",
		SafetyMode:    true,
		Status:        types.RunSuccess,
		StartedAt:     time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
		CompletedAt:   time.Date(2026, 3, 1, 10, 1, 0, 0, time.UTC),
		Steps: []types.StepResult{
			{Step: types.StepSimulate, Status: types.StepOK, ElapsedMs: 120},
			{Step: types.StepScan, Status: types.StepDegraded, Err: "no scanner configured"},
		},
	}

	model := NewInspectModel("inspect_run", result)
	view := model.View()

	for _, want := range []string{"chaossec-abc123", "staging-bucket", "simulate", "no scanner configured"} {
		if !strings.Contains(view, want) {
			t.Errorf("inspect view missing %q", want)
		}
	}
}

func TestInspectView_InvalidDataType(t *testing.T) {
	model := NewInspectModel("inspect_run", "not a run result")
	view := model.View()
	if !strings.Contains(view, "Invalid data type") {
		t.Errorf("expected invalid data type message, got %q", view)
	}
}

func TestStatsView_RendersAnalysis(t *testing.T) {
	analysis := &types.HistoryAnalysis{
		TotalTests:  10,
		Successful:  7,
		Failed:      3,
		SuccessRate: 0.7,
		CommonFailures: []types.FailureCount{
			{Outcome: "inconclusive", Count: 2},
		},
		MostRecent: &types.HistoryEntry{
			Action:    types.ActionMakeS3Public,
			Target:    "staging-bucket",
			Outcome:   "success_detected",
			Timestamp: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
		},
	}

	model := NewStatsModel("stats_history", analysis)
	view := model.View()

	for _, want := range []string{"10", "70%", "inconclusive", "make_s3_public"} {
		if !strings.Contains(view, want) {
			t.Errorf("stats view missing %q", want)
		}
	}
}
