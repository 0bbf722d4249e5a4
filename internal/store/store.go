// Package store implements the flat-file snapshot persistence used for all
// domain state. One file holds one JSON mapping of channel id -> aggregate;
// every mutation is a full load-mutate-save cycle under a per-store mutex.
// Write volume is a handful of commands per minute, so the simplicity of
// whole-snapshot replacement wins over anything incremental.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// ErrNotFound is returned by Update when the requested entry is absent.
// Callers surface this as "entity no longer exists" to the user, not as a
// fatal error.
var ErrNotFound = errors.New("store: entry not found")

// Store persists a mapping of channel id -> aggregate as a single JSON file.
// The zero value is not usable; create stores with New.
type Store[A any] struct {
	path string
	mu   sync.Mutex
}

// New creates a store backed by the given file path. The file does not have
// to exist yet; a missing file reads as an empty mapping.
func New[A any](path string) *Store[A] {
	return &Store[A]{path: path}
}

// Path returns the backing file path.
func (s *Store[A]) Path() string { return s.path }

// Load reads the full snapshot. A missing file yields an empty map; a file
// that exists but cannot be decoded is an error the caller should treat as
// fatal rather than silently dropping data.
func (s *Store[A]) Load() (map[string]A, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load()
}

// Save replaces the snapshot with the given mapping.
func (s *Store[A]) Save(entries map[string]A) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.save(entries)
}

// Update runs the load-mutate-save cycle for a single entry, holding the
// store lock for the whole sequence. It returns the mutated aggregate, or
// ErrNotFound if the id has no entry.
func (s *Store[A]) Update(id string, mutate func(A)) (A, error) {
	var zero A

	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.load()
	if err != nil {
		return zero, err
	}
	entry, ok := entries[id]
	if !ok {
		return zero, ErrNotFound
	}
	mutate(entry)
	if err := s.save(entries); err != nil {
		return zero, err
	}
	return entry, nil
}

// Transaction runs an arbitrary mutation over the whole mapping under the
// store lock and persists the result. Used when a command inserts or removes
// entries rather than mutating one in place.
func (s *Store[A]) Transaction(fn func(entries map[string]A) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.load()
	if err != nil {
		return err
	}
	if err := fn(entries); err != nil {
		return err
	}
	return s.save(entries)
}

// Get returns a single entry from the current snapshot.
func (s *Store[A]) Get(id string) (A, error) {
	var zero A

	entries, err := s.Load()
	if err != nil {
		return zero, err
	}
	entry, ok := entries[id]
	if !ok {
		return zero, ErrNotFound
	}
	return entry, nil
}

func (s *Store[A]) load() (map[string]A, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return map[string]A{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read snapshot %s: %w", s.path, err)
	}
	if len(data) == 0 {
		return map[string]A{}, nil
	}

	var entries map[string]A
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("corrupt snapshot %s: %w", s.path, err)
	}
	if entries == nil {
		entries = map[string]A{}
	}
	return entries, nil
}

// save writes the snapshot atomically: encode to a temp file in the same
// directory, then rename over the target.
func (s *Store[A]) save(entries map[string]A) error {
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("encode snapshot %s: %w", s.path, err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create snapshot dir %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp snapshot: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write snapshot %s: %w", s.path, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close snapshot %s: %w", s.path, err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replace snapshot %s: %w", s.path, err)
	}
	return nil
}
