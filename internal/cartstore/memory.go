package cartstore

import (
	"context"
	"sync"
)

// MemoryAdapter keeps registries in process memory. Used in tests and as the
// fallback when no persistent adapter is configured.
type MemoryAdapter struct {
	mu   sync.RWMutex
	data map[string]Registry
}

// NewMemoryAdapter returns an empty in-memory adapter.
func NewMemoryAdapter() *MemoryAdapter {
	return &MemoryAdapter{data: map[string]Registry{}}
}

// Get returns a deep copy of the owner's registry, empty when absent.
func (a *MemoryAdapter) Get(_ context.Context, owner string) (Registry, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	reg, ok := a.data[owner]
	if !ok {
		return NewRegistry(), nil
	}
	return reg.clone(), nil
}

// Set stores a deep copy of the registry under the owner key.
func (a *MemoryAdapter) Set(_ context.Context, owner string, reg Registry) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.data[owner] = reg.clone()
	return nil
}
