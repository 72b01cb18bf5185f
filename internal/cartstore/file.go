package cartstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
)

// FileAdapter persists all registries as a single JSON document on disk,
// keyed by owner. Writes go through a temp file rename.
type FileAdapter struct {
	Path string

	mu sync.Mutex
}

// NewFileAdapter returns an adapter writing to the given path.
func NewFileAdapter(path string) *FileAdapter {
	return &FileAdapter{Path: path}
}

// Get loads the owner's registry from disk, empty when the file or key is absent.
func (a *FileAdapter) Get(_ context.Context, owner string) (Registry, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	all, err := a.load()
	if err != nil {
		return Registry{}, err
	}
	reg, ok := all[owner]
	if !ok {
		return NewRegistry(), nil
	}
	return reg, nil
}

// Set writes the owner's registry back to disk.
func (a *FileAdapter) Set(_ context.Context, owner string, reg Registry) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	all, err := a.load()
	if err != nil {
		return err
	}
	all[owner] = reg.clone()
	return a.save(all)
}

func (a *FileAdapter) load() (map[string]Registry, error) {
	raw, err := os.ReadFile(a.Path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return map[string]Registry{}, nil
		}
		return nil, fmt.Errorf("read cart file: %w", err)
	}
	if len(raw) == 0 {
		return map[string]Registry{}, nil
	}
	var all map[string]Registry
	if err := json.Unmarshal(raw, &all); err != nil {
		return nil, fmt.Errorf("decode cart file: %w", err)
	}
	if all == nil {
		all = map[string]Registry{}
	}
	return all, nil
}

func (a *FileAdapter) save(all map[string]Registry) error {
	raw, err := json.Marshal(all)
	if err != nil {
		return fmt.Errorf("encode cart file: %w", err)
	}
	dir := filepath.Dir(a.Path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create cart dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".carts-*")
	if err != nil {
		return fmt.Errorf("create temp cart file: %w", err)
	}
	if _, err := tmp.Write(raw); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("write cart file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("close cart file: %w", err)
	}
	if err := os.Rename(tmp.Name(), a.Path); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("replace cart file: %w", err)
	}
	return nil
}
