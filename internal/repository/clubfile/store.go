// Package clubfile stores a club's catalog and round state as two JSON
// documents in the club's directory: club.json and state.json.
package clubfile

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/rolesclub/rolesbot/internal/models"
)

const (
	catalogFile = "club.json"
	stateFile   = "state.json"
)

// Store reads and writes one club directory. A single mutex serializes all
// file access within the process; contention is negligible at chat-message
// rates.
type Store struct {
	dir string
	mu  sync.Mutex
}

// New creates a store rooted at the club directory.
func New(dir string) *Store {
	return &Store{dir: dir}
}

// LoadCatalog reads club.json.
func (s *Store) LoadCatalog() (*models.Catalog, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	path := filepath.Join(s.dir, catalogFile)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	var c models.Catalog
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("decode %s: %v: %w", path, err, models.ErrCorruptState)
	}
	return &c, nil
}

// SaveCatalog writes club.json atomically.
func (s *Store) SaveCatalog(c *models.Catalog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writeAtomic(catalogFile, c)
}

// LoadState reads state.json. A missing file yields the zero round state.
func (s *Store) LoadState() (*models.RoundState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	path := filepath.Join(s.dir, stateFile)
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return models.NewRoundState(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	var st models.RoundState
	if err := json.Unmarshal(data, &st); err != nil {
		return nil, fmt.Errorf("decode %s: %v: %w", path, err, models.ErrCorruptState)
	}
	st.Normalize()
	return &st, nil
}

// SaveState writes state.json atomically.
func (s *Store) SaveState(st *models.RoundState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writeAtomic(stateFile, st)
}

// writeAtomic serializes obj to a temp file in the club directory and
// renames it over the target, so readers never see a partial write.
// Callers hold s.mu.
func (s *Store) writeAtomic(name string, obj any) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("create dir %s: %w", s.dir, err)
	}

	data, err := json.MarshalIndent(obj, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", name, err)
	}

	tmp, err := os.CreateTemp(s.dir, name+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp for %s: %w", name, err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write temp for %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp for %s: %w", name, err)
	}

	target := filepath.Join(s.dir, name)
	if err := os.Rename(tmpName, target); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("rename %s: %w", name, err)
	}
	return nil
}
