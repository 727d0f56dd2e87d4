// Package registry names live stores so that tools and transports can find them.
package registry

import (
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/aretw0/blocksync/pkg/ports"
)

// ErrStoreNotFound is returned when no store is registered under a name.
var ErrStoreNotFound = errors.New("store not found")

// Registry manages the available stores.
type Registry struct {
	mu     sync.RWMutex
	stores map[string]ports.Store
}

// NewRegistry creates a new empty registry.
func NewRegistry() *Registry {
	return &Registry{
		stores: make(map[string]ports.Store),
	}
}

// Register adds a store to the registry.
// If a store with the same name exists, it is overwritten.
func (r *Registry) Register(name string, store ports.Store) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stores[name] = store
}

// Get looks up a store by name.
func (r *Registry) Get(name string) (ports.Store, error) {
	r.mu.RLock()
	store, ok := r.stores[name]
	r.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrStoreNotFound, name)
	}
	return store, nil
}

// Unregister removes a store. Unknown names are ignored.
func (r *Registry) Unregister(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.stores, name)
}

// Names returns the registered names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.stores))
	for name := range r.stores {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}
