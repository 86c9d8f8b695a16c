package history

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/chaossec-io/chaossec/types"
)

// SnapshotArchive persists full run results as msgpack, one file per
// correlation ID, under a flat directory. Snapshots carry every step
// payload and are the source for chaossec inspect.
type SnapshotArchive struct {
	dir string
}

// NewSnapshotArchive creates the archive directory if needed.
func NewSnapshotArchive(dir string) (*SnapshotArchive, error) {
	if dir == "" {
		return nil, fmt.Errorf("history: snapshot directory is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, types.NewFault(types.ErrPersistence, "snapshot_init", err)
	}
	return &SnapshotArchive{dir: dir}, nil
}

// Save writes the run result to <dir>/<correlation_id>.msgpack. The file
// is written to a temp name and renamed so readers never see a partial
// snapshot.
func (a *SnapshotArchive) Save(result *types.RunResult) error {
	if result == nil || result.CorrelationID == "" {
		return fmt.Errorf("history: snapshot requires a correlation ID")
	}
	data, err := msgpack.Marshal(result)
	if err != nil {
		return types.NewFault(types.ErrPersistence, "snapshot_save", err)
	}

	final := a.pathFor(result.CorrelationID)
	tmp := final + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return types.NewFault(types.ErrPersistence, "snapshot_save", err)
	}
	if err := os.Rename(tmp, final); err != nil {
		return types.NewFault(types.ErrPersistence, "snapshot_save", err)
	}
	return nil
}

// Load reads the snapshot for one correlation ID.
func (a *SnapshotArchive) Load(correlationID string) (*types.RunResult, error) {
	data, err := os.ReadFile(a.pathFor(correlationID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("history: no snapshot for %s", correlationID)
		}
		return nil, types.NewFault(types.ErrPersistence, "snapshot_load", err)
	}
	var result types.RunResult
	if err := msgpack.Unmarshal(data, &result); err != nil {
		return nil, types.NewFault(types.ErrPersistence, "snapshot_load", err)
	}
	return &result, nil
}

// List returns the correlation IDs of every archived snapshot.
func (a *SnapshotArchive) List() ([]string, error) {
	entries, err := os.ReadDir(a.dir)
	if err != nil {
		return nil, types.NewFault(types.ErrPersistence, "snapshot_list", err)
	}
	var ids []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".msgpack") {
			continue
		}
		ids = append(ids, strings.TrimSuffix(name, ".msgpack"))
	}
	return ids, nil
}

// pathFor sanitizes the correlation ID into a snapshot filename.
func (a *SnapshotArchive) pathFor(correlationID string) string {
	safe := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '-' || r == '_':
			return r
		default:
			return '_'
		}
	}, correlationID)
	return filepath.Join(a.dir, safe+".msgpack")
}
