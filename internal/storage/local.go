package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// LocalArchive keeps one JSON file per issue under a directory.
type LocalArchive struct {
	dir string
	mu  sync.RWMutex
}

// NewLocalArchive creates dir if needed.
func NewLocalArchive(dir string) (*LocalArchive, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating archive directory: %w", err)
	}
	return &LocalArchive{dir: dir}, nil
}

func (a *LocalArchive) path(key string) (string, error) {
	if !ValidKey(key) {
		return "", fmt.Errorf("invalid archive key %q", key)
	}
	return filepath.Join(a.dir, key+".json"), nil
}

// Save writes the record through a temp file and rename.
func (a *LocalArchive) Save(_ context.Context, rec IssueRecord) error {
	path, err := a.path(rec.Key)
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling issue: %w", err)
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("writing issue: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("writing issue: %w", err)
	}
	return nil
}

func (a *LocalArchive) Get(_ context.Context, key string) (*IssueRecord, error) {
	path, err := a.path(key)
	if err != nil {
		return nil, err
	}

	a.mu.RLock()
	data, err := os.ReadFile(path)
	a.mu.RUnlock()
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("reading issue: %w", err)
	}

	var rec IssueRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("unmarshaling issue: %w", err)
	}
	return &rec, nil
}
