package history

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/chaossec-io/chaossec/types"
)

func entry(corr string, outcome types.ValidationOutcome) types.HistoryEntry {
	return types.HistoryEntry{
		CorrelationID: corr,
		Timestamp:     time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC),
		Action:        types.ActionMakeS3Public,
		Target:        "staging-bucket",
		Outcome:       string(outcome),
	}
}

func TestFileStoreAppendAndRead(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.ndjson")
	store, err := NewFileStore(path, nil)
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}

	ctx := context.Background()
	for _, e := range []types.HistoryEntry{
		entry("chaossec-aaa", types.OutcomeSuccessDetected),
		entry("chaossec-bbb", types.OutcomeFailed),
		entry("chaossec-ccc", types.OutcomeInconclusive),
	} {
		if err := store.Append(ctx, e); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}

	all, err := store.All(ctx)
	if err != nil {
		t.Fatalf("All: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("got %d entries, want 3", len(all))
	}
	if all[0].CorrelationID != "chaossec-aaa" {
		t.Errorf("All must be oldest first, got %s", all[0].CorrelationID)
	}

	recent, err := store.Recent(ctx, 2)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(recent) != 2 {
		t.Fatalf("got %d recent entries, want 2", len(recent))
	}
	if recent[0].CorrelationID != "chaossec-ccc" || recent[1].CorrelationID != "chaossec-bbb" {
		t.Errorf("Recent must be newest first, got %s then %s",
			recent[0].CorrelationID, recent[1].CorrelationID)
	}
}

func TestFileStoreMissingJournalIsEmpty(t *testing.T) {
	store, err := NewFileStore(filepath.Join(t.TempDir(), "absent.ndjson"), nil)
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	all, err := store.All(context.Background())
	if err != nil {
		t.Fatalf("All: %v", err)
	}
	if len(all) != 0 {
		t.Errorf("missing journal should read as empty, got %d entries", len(all))
	}
}

func TestFileStoreSkipsCorruptLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.ndjson")
	store, err := NewFileStore(path, nil)
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}

	ctx := context.Background()
	if err := store.Append(ctx, entry("chaossec-aaa", types.OutcomeSuccessDetected)); err != nil {
		t.Fatalf("Append: %v", err)
	}
	// Simulate a crashed writer leaving a truncated line.
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if _, err := f.WriteString(`{"correlation_id":"chaossec-trunc`); err != nil {
		t.Fatalf("write: %v", err)
	}
	_ = f.Close()

	all, err := store.All(ctx)
	if err != nil {
		t.Fatalf("All: %v", err)
	}
	if len(all) != 1 || all[0].CorrelationID != "chaossec-aaa" {
		t.Errorf("corrupt trailing line must be skipped, got %v", all)
	}
}

func TestFileStoreToleratesDuplicateAppends(t *testing.T) {
	store, err := NewFileStore(filepath.Join(t.TempDir(), "history.ndjson"), nil)
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}

	ctx := context.Background()
	dup := entry("chaossec-dup", types.OutcomeSuccessSimulated)
	if err := store.Append(ctx, dup); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := store.Append(ctx, dup); err != nil {
		t.Fatalf("duplicate Append: %v", err)
	}

	all, err := store.All(ctx)
	if err != nil {
		t.Fatalf("All: %v", err)
	}
	if len(all) != 2 {
		t.Errorf("duplicates must both be kept, got %d entries", len(all))
	}
}

func TestNewFileStoreRequiresPath(t *testing.T) {
	if _, err := NewFileStore("", nil); err == nil {
		t.Error("expected error for empty path")
	}
}
