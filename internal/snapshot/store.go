package snapshot

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// ErrNoData marks an absent metric category: no snapshot file exists.
// It is not a failure — the report renders an explicit notice instead.
var ErrNoData = errors.New("no snapshot data")

// TimestampLayout is the capture-timestamp suffix embedded in snapshot
// file names. Lexicographic order on it equals chronological order.
const TimestampLayout = "20060102_150405"

// Store reads and writes timestamped snapshot files in one directory.
// The newest snapshot per category is the one with the greatest name.
type Store struct {
	Dir string
}

// NewStore returns a store over the given directory.
func NewStore(dir string) *Store {
	return &Store{Dir: dir}
}

// Latest loads the most recent snapshot for a category. Returns
// ErrNoData when no file matches; a malformed file returns a wrapped
// parse error so the caller can degrade that category only.
func (s *Store) Latest(category string) (*Table, error) {
	matches, err := filepath.Glob(filepath.Join(s.Dir, category+"_*.csv"))
	if err != nil {
		return nil, fmt.Errorf("list %s snapshots: %w", category, err)
	}
	if len(matches) == 0 {
		return nil, ErrNoData
	}

	// Glob results are sorted, and the timestamp suffix sorts
	// chronologically, so the last match is the newest capture.
	path := matches[len(matches)-1]
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", filepath.Base(path), err)
	}
	defer f.Close()

	t, err := ReadCSV(f)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", filepath.Base(path), err)
	}
	return t, nil
}

// Write persists a snapshot under "<category>_<timestamp>.csv",
// creating the store directory if needed. Returns the file path.
func (s *Store) Write(category string, ts time.Time, t *Table) (string, error) {
	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return "", fmt.Errorf("create snapshot dir: %w", err)
	}

	path := filepath.Join(s.Dir, fmt.Sprintf("%s_%s.csv", category, ts.Format(TimestampLayout)))
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create snapshot: %w", err)
	}

	if err := t.WriteCSV(f); err != nil {
		_ = f.Close()
		return "", fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	return path, f.Close()
}
