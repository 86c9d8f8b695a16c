package history

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/chaossec-io/chaossec/metrics"
	"github.com/chaossec-io/chaossec/types"
)

// maxJournalLine bounds one journal line during scanning. Entries are
// small; a line larger than this indicates corruption.
const maxJournalLine = 1 << 20

// FileStore is an NDJSON-backed Store. Appends are serialized by a mutex
// and written with O_APPEND so concurrent processes interleave at line
// granularity rather than mid-record.
type FileStore struct {
	path      string
	collector *metrics.Collector

	mu sync.Mutex
}

// NewFileStore creates a journal store at path, creating parent
// directories as needed. The journal file itself is created lazily on
// first append.
func NewFileStore(path string, collector *metrics.Collector) (*FileStore, error) {
	if path == "" {
		return nil, fmt.Errorf("history: journal path is required")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, types.NewFault(types.ErrPersistence, "history_init", err)
		}
	}
	return &FileStore{path: path, collector: collector}, nil
}

// Path returns the journal file location.
func (s *FileStore) Path() string { return s.path }

// Append implements Store by writing one NDJSON line.
func (s *FileStore) Append(_ context.Context, entry types.HistoryEntry) error {
	line, err := json.Marshal(entry)
	if err != nil {
		s.collector.IncHistoryAppendError()
		return types.NewFault(types.ErrPersistence, "history_append", err)
	}
	line = append(line, '\n')

	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.OpenFile(s.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		s.collector.IncHistoryAppendError()
		return types.NewFault(types.ErrPersistence, "history_append", err)
	}
	defer func() { _ = f.Close() }()

	if _, err := f.Write(line); err != nil {
		s.collector.IncHistoryAppendError()
		return types.NewFault(types.ErrPersistence, "history_append", err)
	}
	s.collector.IncHistoryAppend()
	return nil
}

// Recent implements Store, returning up to limit entries newest first.
func (s *FileStore) Recent(ctx context.Context, limit int) ([]types.HistoryEntry, error) {
	all, err := s.All(ctx)
	if err != nil {
		return nil, err
	}
	return reverseTail(all, limit), nil
}

// All implements Store. A missing journal is an empty history, not an
// error. Unparseable lines are skipped.
func (s *FileStore) All(_ context.Context) ([]types.HistoryEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.Open(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, types.NewFault(types.ErrPersistence, "history_read", err)
	}
	defer func() { _ = f.Close() }()

	var entries []types.HistoryEntry
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), maxJournalLine)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var entry types.HistoryEntry
		if err := json.Unmarshal(line, &entry); err != nil {
			continue
		}
		entries = append(entries, entry)
	}
	if err := scanner.Err(); err != nil {
		return nil, types.NewFault(types.ErrPersistence, "history_read", err)
	}
	return entries, nil
}

// Verify FileStore implements Store.
var _ Store = (*FileStore)(nil)
