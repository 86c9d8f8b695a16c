package cmd

import (
	"testing"
	"time"

	"github.com/chaossec-io/chaossec/cli/config"
	"github.com/chaossec-io/chaossec/types"
)

func TestReadOnlyFlags_IncludesTUI(t *testing.T) {
	flags := ReadOnlyFlags()

	hasTUI := false
	for _, f := range flags {
		if f.Names()[0] == "tui" {
			hasTUI = true
			break
		}
	}

	if !hasTUI {
		t.Error("ReadOnlyFlags should include --tui flag for explicit error handling")
	}
}

func TestExitCodeFor(t *testing.T) {
	tests := []struct {
		name   string
		result *types.RunResult
		want   int
	}{
		{
			"success",
			&types.RunResult{Status: types.RunSuccess},
			exitSuccess,
		},
		{
			"run failed",
			&types.RunResult{
				Status: types.RunFailed,
				Steps:  []types.StepResult{{Step: types.StepChaos, Status: types.StepFailed}},
			},
			exitRunFailed,
		},
		{
			"cancelled",
			&types.RunResult{Status: types.RunCancelled},
			exitRunFailed,
		},
		{
			"history persistence failure",
			&types.RunResult{
				Status: types.RunFailed,
				Steps:  []types.StepResult{{Step: types.StepLearn, Status: types.StepFailed}},
			},
			exitPersistence,
		},
		{
			"snapshot persistence failure",
			&types.RunResult{
				Status:  types.RunFailed,
				Message: "snapshot persistence failed: disk full",
			},
			exitPersistence,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := exitCodeFor(tt.result); got != tt.want {
				t.Errorf("exitCodeFor() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestFilterByOutcome(t *testing.T) {
	entries := []types.HistoryEntry{
		{CorrelationID: "a", Outcome: "success_detected"},
		{CorrelationID: "b", Outcome: "failed"},
		{CorrelationID: "c", Outcome: "success_detected"},
	}

	got := filterByOutcome(entries, "success_detected")
	if len(got) != 2 || got[0].CorrelationID != "a" || got[1].CorrelationID != "c" {
		t.Errorf("filterByOutcome = %+v", got)
	}

	if got := filterByOutcome(entries, "cancelled"); len(got) != 0 {
		t.Errorf("expected empty filter result, got %+v", got)
	}
}

func TestReverse(t *testing.T) {
	entries := []types.HistoryEntry{
		{CorrelationID: "a"},
		{CorrelationID: "b"},
		{CorrelationID: "c"},
	}
	reverse(entries)
	if entries[0].CorrelationID != "c" || entries[2].CorrelationID != "a" {
		t.Errorf("reverse = %+v", entries)
	}
}

func TestHistoryRowsColumns(t *testing.T) {
	rows := historyRows{{
		Timestamp:     time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC),
		CorrelationID: "chaossec-abc",
		Action:        types.ActionMakeS3Public,
		Target:        "staging-bucket",
		Outcome:       "success_detected",
		FindingCount:  2,
		EvidenceCount: 1,
	}}

	header := rows.TableHeader()
	got := rows.TableRows()
	if len(got) != 1 || len(got[0]) != len(header) {
		t.Fatalf("TableRows = %+v, want 1 row of %d cells", got, len(header))
	}
	if got[0][0] != "2026-08-28T12:00:00Z" {
		t.Errorf("timestamp cell = %q", got[0][0])
	}
	if got[0][2] != string(types.ActionMakeS3Public) || got[0][5] != "2" {
		t.Errorf("row = %+v", got[0])
	}
}

func TestBuildPublisher(t *testing.T) {
	pub, err := buildPublisher(config.AdapterConfig{})
	if err != nil || pub != nil {
		t.Errorf("empty adapter config should yield no publisher, got %v, %v", pub, err)
	}

	if _, err := buildPublisher(config.AdapterConfig{Type: "kafka"}); err == nil {
		t.Error("expected error for unknown adapter type")
	}

	pub, err = buildPublisher(config.AdapterConfig{Type: "webhook", URL: "http://bus.internal/hook"})
	if err != nil {
		t.Fatalf("webhook publisher: %v", err)
	}
	if pub == nil {
		t.Fatal("expected webhook publisher")
	}
	_ = pub.Close()
}

func TestLoadConfig_EmptyPath(t *testing.T) {
	cfg, err := loadConfig("")
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if !cfg.SafetyEnabled() {
		t.Error("empty config must default to safety mode on")
	}
}
