package photo

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Extension of every stored capture.
const Extension = ".dng"

// fileNameLayout is yyyyMMddHHmmss. Go layouts are locale independent.
const fileNameLayout = "20060102150405"

// FileName returns the capture file name for t, e.g. "20180305142501.dng".
func FileName(t time.Time) string {
	return t.Format(fileNameLayout) + Extension
}

// Store writes captures into a documents directory.
type Store struct {
	Dir string
}

// NewStore returns a store rooted at dir.
func NewStore(dir string) *Store {
	return &Store{Dir: dir}
}

// Path returns where a capture taken at t is stored.
func (s *Store) Path(t time.Time) string {
	return filepath.Join(s.Dir, FileName(t))
}

// Save writes data verbatim to the file for t and returns its path.
// A capture in the same second replaces the previous file.
func (s *Store) Save(data []byte, t time.Time) (string, error) {
	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return "", fmt.Errorf("create documents dir: %w", err)
	}
	path := s.Path(t)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write %s: %w", path, err)
	}
	return path, nil
}
