// Package evidence persists compliance evidence records locally.
//
// The local store is the fallback path when the evidence-reporting
// service is unreachable: records land on disk, partitioned by day, so
// no evidence is lost to a network outage. It also backs the chaossec
// evidence summary command.
package evidence

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/chaossec-io/chaossec/types"
)

// Store writes evidence records under <root>/<YYYY-MM-DD>/.
// Filenames are <control_id>_<corr8>.json where corr8 is the first eight
// characters of the correlation ID's unique suffix, enough to keep
// per-day records distinct without unbounded filenames.
type Store struct {
	root string
}

// NewStore creates the evidence root directory if needed.
func NewStore(root string) (*Store, error) {
	if root == "" {
		return nil, fmt.Errorf("evidence: root directory is required")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, types.NewFault(types.ErrPersistence, "evidence_init", err)
	}
	return &Store{root: root}, nil
}

// Root returns the store's base directory.
func (s *Store) Root() string { return s.root }

// Save persists one evidence record and returns the file path written.
func (s *Store) Save(ev types.Evidence) (string, error) {
	if ev.ControlID == "" {
		return "", fmt.Errorf("evidence: control ID is required")
	}
	day := ev.Timestamp.UTC().Format("2006-01-02")
	dir := filepath.Join(s.root, day)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", types.NewFault(types.ErrPersistence, "evidence_save", err)
	}

	name := fmt.Sprintf("%s_%s.json", sanitize(ev.ControlID), corr8(ev.CorrelationID))
	path := filepath.Join(dir, name)

	data, err := json.MarshalIndent(ev, "", "  ")
	if err != nil {
		return "", types.NewFault(types.ErrPersistence, "evidence_save", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", types.NewFault(types.ErrPersistence, "evidence_save", err)
	}
	return path, nil
}

// DaySummary aggregates stored evidence for one day directory.
type DaySummary struct {
	Day      string         `json:"day"`
	Total    int            `json:"total"`
	Controls map[string]int `json:"controls"`
}

// Summary walks the store and aggregates record counts per day and per
// control. Days are returned in ascending order. Files that fail to
// parse are counted under the control "unparseable".
func (s *Store) Summary() ([]DaySummary, error) {
	days, err := os.ReadDir(s.root)
	if err != nil {
		return nil, types.NewFault(types.ErrPersistence, "evidence_summary", err)
	}

	var out []DaySummary
	for _, d := range days {
		if !d.IsDir() {
			continue
		}
		files, err := os.ReadDir(filepath.Join(s.root, d.Name()))
		if err != nil {
			return nil, types.NewFault(types.ErrPersistence, "evidence_summary", err)
		}
		summary := DaySummary{Day: d.Name(), Controls: map[string]int{}}
		for _, f := range files {
			if f.IsDir() || !strings.HasSuffix(f.Name(), ".json") {
				continue
			}
			data, err := os.ReadFile(filepath.Join(s.root, d.Name(), f.Name()))
			if err != nil {
				return nil, types.NewFault(types.ErrPersistence, "evidence_summary", err)
			}
			var ev types.Evidence
			control := "unparseable"
			if err := json.Unmarshal(data, &ev); err == nil && ev.ControlID != "" {
				control = ev.ControlID
			}
			summary.Controls[control]++
			summary.Total++
		}
		if summary.Total > 0 {
			out = append(out, summary)
		}
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Day < out[j].Day })
	return out, nil
}

// corr8 extracts a short unique fragment from a correlation ID.
// IDs have the form chaossec-<uuid>; the prefix carries no entropy.
func corr8(correlationID string) string {
	id := strings.TrimPrefix(correlationID, "chaossec-")
	id = sanitize(id)
	if len(id) > 8 {
		id = id[:8]
	}
	if id == "" {
		id = "unknown"
	}
	return id
}

// sanitize keeps filenames to a portable character set.
func sanitize(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '-' || r == '_' || r == '.':
			return r
		default:
			return '_'
		}
	}, s)
}
