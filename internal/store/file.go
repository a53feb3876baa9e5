package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/asfclaim/claimerd/internal/domain"
)

// FileStore persists the processed set as a JSON array of strings.
// The layout is an external interface contract: other tooling reads the
// same file, so the format must stay a flat array at a fixed path.
//
// Writes go through a temp file plus rename so a crash mid-write never
// leaves a truncated set behind (losing the set would re-submit every
// historical code next run).
type FileStore struct {
	mu    sync.RWMutex
	path  string
	codes map[domain.Code]struct{}
	order []domain.Code
}

// OpenFile loads the processed set from path, creating parent
// directories as needed. A missing file is an empty set, not an error.
func OpenFile(path string) (*FileStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	s := &FileStore{
		path:  path,
		codes: make(map[domain.Code]struct{}),
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read processed set: %w", err)
	}

	var raw []string
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decode processed set: %w", err)
	}
	for _, c := range raw {
		code := domain.Code(c)
		if _, dup := s.codes[code]; dup {
			continue
		}
		s.codes[code] = struct{}{}
		s.order = append(s.order, code)
	}

	return s, nil
}

func (s *FileStore) Contains(code domain.Code) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.codes[code]
	return ok
}

func (s *FileStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.codes)
}

// Add records the code and writes the full set back to disk before
// returning. Adding a code that is already present is a no-op.
func (s *FileStore) Add(code domain.Code) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.codes[code]; ok {
		return nil
	}
	s.codes[code] = struct{}{}
	s.order = append(s.order, code)

	return s.flushLocked()
}

func (s *FileStore) flushLocked() error {
	raw := make([]string, len(s.order))
	for i, c := range s.order {
		raw[i] = string(c)
	}

	data, err := json.Marshal(raw)
	if err != nil {
		return fmt.Errorf("encode processed set: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write processed set: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replace processed set: %w", err)
	}
	return nil
}

// compile-time check that FileStore implements Store
var _ Store = (*FileStore)(nil)
