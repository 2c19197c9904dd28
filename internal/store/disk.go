package store

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/spf13/afero"
)

// DiskStore persists key/value state as a single JSON document, for
// single-process deployments that want durability across restarts
// without an external KV service. Writes go through a temp file and an
// atomic rename, the same crash-safe pattern the teacher's rule store
// used for rule persistence.
type DiskStore struct {
	mu       sync.RWMutex
	values   map[string]Value
	fs       afero.Fs
	filePath string
}

// NewDiskStore creates a disk-backed store rooted at dataDir/state.json,
// loading any existing state.
func NewDiskStore(fs afero.Fs, dataDir string) (*DiskStore, error) {
	if err := fs.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}

	s := &DiskStore{
		values:   make(map[string]Value),
		fs:       fs,
		filePath: filepath.Join(dataDir, "state.json"),
	}

	if err := s.load(); err != nil {
		return nil, fmt.Errorf("load store state: %w", err)
	}
	return s, nil
}

func (s *DiskStore) load() error {
	exists, err := afero.Exists(s.fs, s.filePath)
	if err != nil {
		return err
	}
	if !exists {
		return nil
	}

	data, err := afero.ReadFile(s.fs, s.filePath)
	if err != nil {
		return err
	}
	if len(data) == 0 {
		return nil
	}

	values := make(map[string]Value)
	if err := json.Unmarshal(data, &values); err != nil {
		return fmt.Errorf("unmarshal store state: %w", err)
	}
	s.values = values
	return nil
}

func (s *DiskStore) persist() error {
	data, err := json.MarshalIndent(s.values, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal store state: %w", err)
	}

	tmpPath := s.filePath + ".tmp"
	if err := afero.WriteFile(s.fs, tmpPath, data, 0o644); err != nil {
		return fmt.Errorf("write store state: %w", err)
	}
	if err := s.fs.Rename(tmpPath, s.filePath); err != nil {
		return fmt.Errorf("rename store state: %w", err)
	}
	return nil
}

func (s *DiskStore) ReadAll(ctx context.Context, keys []string) (map[string]Value, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if keys == nil {
		out := make(map[string]Value, len(s.values))
		for k, v := range s.values {
			out[k] = v
		}
		return out, nil
	}

	out := make(map[string]Value, len(keys))
	for _, k := range keys {
		if v, ok := s.values[k]; ok {
			out[k] = v
		}
	}
	return out, nil
}

func (s *DiskStore) WriteBatch(ctx context.Context, values map[string]Value) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for k, v := range values {
		s.values[k] = v
	}
	return s.persist()
}

func (s *DiskStore) Health(ctx context.Context) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, err := s.fs.Stat(filepath.Dir(s.filePath))
	return err == nil
}
