package metrics

import (
	"sync"
	"testing"
)

func TestCollector_IncrementMethods(t *testing.T) {
	c := NewCollector("chaossec-run-001", "staging-bucket", true)

	c.IncRunStarted()
	c.IncRunCompleted()
	c.IncRunFailed()
	c.IncRunFailed()
	c.IncRunCancelled()
	c.RecordStep("simulate", "ok")
	c.RecordStep("scan", "degraded")
	c.RecordStep("scan", "degraded")
	c.RecordStep("learn", "failed")
	c.IncOracleCall()
	c.IncOracleFallback()
	c.IncTokenRefresh()
	c.IncTokenCacheHit()
	c.IncTokenCacheHit()
	c.IncTokenRefreshError()
	c.IncEvidenceSubmitted()
	c.IncEvidenceSubmitted()
	c.IncEvidenceFallback()
	c.IncHistoryAppend()
	c.IncHistoryAppendError()

	s := c.Snapshot()

	if s.RunsStarted != 1 {
		t.Errorf("RunsStarted = %d, want 1", s.RunsStarted)
	}
	if s.RunsCompleted != 1 {
		t.Errorf("RunsCompleted = %d, want 1", s.RunsCompleted)
	}
	if s.RunsFailed != 2 {
		t.Errorf("RunsFailed = %d, want 2", s.RunsFailed)
	}
	if s.RunsCancelled != 1 {
		t.Errorf("RunsCancelled = %d, want 1", s.RunsCancelled)
	}
	if s.StepsOK != 1 {
		t.Errorf("StepsOK = %d, want 1", s.StepsOK)
	}
	if s.StepsDegraded != 2 {
		t.Errorf("StepsDegraded = %d, want 2", s.StepsDegraded)
	}
	if s.StepsFailed != 1 {
		t.Errorf("StepsFailed = %d, want 1", s.StepsFailed)
	}
	if s.DegradedByStep["scan"] != 2 {
		t.Errorf("DegradedByStep[scan] = %d, want 2", s.DegradedByStep["scan"])
	}
	if s.OracleCalls != 1 || s.OracleFallbacks != 1 {
		t.Errorf("oracle counters = %d/%d, want 1/1", s.OracleCalls, s.OracleFallbacks)
	}
	if s.TokenRefreshes != 1 || s.TokenCacheHits != 2 || s.TokenRefreshErrors != 1 {
		t.Errorf("token counters = %d/%d/%d", s.TokenRefreshes, s.TokenCacheHits, s.TokenRefreshErrors)
	}
	if s.EvidenceSubmitted != 2 || s.EvidenceFallback != 1 {
		t.Errorf("evidence counters = %d/%d", s.EvidenceSubmitted, s.EvidenceFallback)
	}
	if s.HistoryAppends != 1 || s.HistoryAppendErrors != 1 {
		t.Errorf("history counters = %d/%d", s.HistoryAppends, s.HistoryAppendErrors)
	}
	if s.CorrelationID != "chaossec-run-001" || s.Target != "staging-bucket" || !s.SafetyMode {
		t.Errorf("dimensions = %q/%q/%v", s.CorrelationID, s.Target, s.SafetyMode)
	}
}

func TestCollector_NilReceiverSafe(t *testing.T) {
	var c *Collector

	c.IncRunStarted()
	c.IncRunCompleted()
	c.RecordStep("chaos", "ok")
	c.IncOracleFallback()
	c.IncEvidenceSubmitted()
	c.IncHistoryAppend()

	s := c.Snapshot()
	if s.RunsStarted != 0 {
		t.Errorf("nil collector RunsStarted = %d, want 0", s.RunsStarted)
	}
	if s.DegradedByStep == nil {
		t.Error("nil collector Snapshot must return a non-nil DegradedByStep map")
	}
}

func TestCollector_ConcurrentIncrements(t *testing.T) {
	c := NewCollector("chaossec-run-002", "staging-bucket", false)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.IncHistoryAppend()
			c.RecordStep("monitor", "degraded")
		}()
	}
	wg.Wait()

	s := c.Snapshot()
	if s.HistoryAppends != 50 {
		t.Errorf("HistoryAppends = %d, want 50", s.HistoryAppends)
	}
	if s.DegradedByStep["monitor"] != 50 {
		t.Errorf("DegradedByStep[monitor] = %d, want 50", s.DegradedByStep["monitor"])
	}
}

func TestCollector_SnapshotIsCopy(t *testing.T) {
	c := NewCollector("chaossec-run-003", "staging-bucket", true)
	c.RecordStep("scan", "degraded")

	s := c.Snapshot()
	s.DegradedByStep["scan"] = 99

	if got := c.Snapshot().DegradedByStep["scan"]; got != 1 {
		t.Errorf("mutating a snapshot leaked into the collector: %d", got)
	}
}
