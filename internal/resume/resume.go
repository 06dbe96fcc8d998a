// Package resume is the terminal-local persistence collaborator: a
// string-only key/value cache that survives a page reload, holding the last
// connected room, the last countdown value and the selected seat ids.
package resume

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// Keys used by the session layer.
const (
	KeyRoom      = "session.room"
	KeyUser      = "session.user"
	KeyCountdown = "session.countdown"
	KeySelection = "session.selection"
)

type Store struct {
	path   string
	mu     sync.Mutex
	values map[string]string
}

// Open loads the cache at path, creating an empty one if the file does not
// exist yet.
func Open(path string) (*Store, error) {
	s := &Store{path: path, values: make(map[string]string)}
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("resume: open %s: %w", path, err)
	}
	if err := json.Unmarshal(data, &s.values); err != nil {
		// A corrupt cache is not worth failing over; start clean.
		s.values = make(map[string]string)
	}
	return s, nil
}

func (s *Store) Get(key string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.values[key]
	return v, ok
}

func (s *Store) Set(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = value
	return s.flush()
}

func (s *Store) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.values[key]; !ok {
		return nil
	}
	delete(s.values, key)
	return s.flush()
}

// Clear wipes the whole cache, used on explicit session reset.
func (s *Store) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values = make(map[string]string)
	return s.flush()
}

// flush writes atomically via a temp file so a crash mid-write never leaves a
// torn cache.
func (s *Store) flush() error {
	data, err := json.Marshal(s.values)
	if err != nil {
		return fmt.Errorf("resume: encode: %w", err)
	}
	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, ".resume-*")
	if err != nil {
		return fmt.Errorf("resume: temp file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("resume: write: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("resume: close: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("resume: rename: %w", err)
	}
	return nil
}
