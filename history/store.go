// Package history persists per-run outcome records and run snapshots.
//
// The journal is an append-only NDJSON file: one JSON object per line,
// never rewritten in place. Corrupt or partial trailing lines are skipped
// on read so a crashed writer cannot poison later runs. Full run snapshots
// are archived separately as msgpack, one file per correlation ID, for
// offline inspection.
package history

import (
	"context"
	"sync"

	"github.com/chaossec-io/chaossec/types"
)

// Store provides access to past run outcomes for learning and analysis.
type Store interface {
	// Append records one completed run. Duplicate correlation IDs are
	// tolerated; the journal keeps both entries.
	Append(ctx context.Context, entry types.HistoryEntry) error

	// Recent returns up to limit entries, most recent first.
	Recent(ctx context.Context, limit int) ([]types.HistoryEntry, error)

	// All returns every readable entry in journal order, oldest first.
	All(ctx context.Context) ([]types.HistoryEntry, error)
}

// StubStore implements Store in memory for testing.
type StubStore struct {
	mu      sync.Mutex
	Entries []types.HistoryEntry

	// AppendErr, when set, is returned from Append.
	AppendErr error
}

// NewStubStore creates an empty in-memory store, optionally pre-seeded.
func NewStubStore(seed ...types.HistoryEntry) *StubStore {
	return &StubStore{Entries: seed}
}

// Append implements Store by recording the entry in memory.
func (s *StubStore) Append(_ context.Context, entry types.HistoryEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.AppendErr != nil {
		return s.AppendErr
	}
	s.Entries = append(s.Entries, entry)
	return nil
}

// Recent implements Store, returning newest entries first.
func (s *StubStore) Recent(_ context.Context, limit int) ([]types.HistoryEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return reverseTail(s.Entries, limit), nil
}

// All implements Store, returning entries oldest first.
func (s *StubStore) All(_ context.Context) ([]types.HistoryEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]types.HistoryEntry, len(s.Entries))
	copy(out, s.Entries)
	return out, nil
}

// Verify StubStore implements Store.
var _ Store = (*StubStore)(nil)

// reverseTail returns the last limit entries of in, newest first.
// limit <= 0 means no limit.
func reverseTail(in []types.HistoryEntry, limit int) []types.HistoryEntry {
	n := len(in)
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]types.HistoryEntry, 0, n)
	for i := len(in) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, in[i])
	}
	return out
}
