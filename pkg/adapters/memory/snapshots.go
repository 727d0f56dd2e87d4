package memory

import (
	"context"
	"sync"

	"github.com/aretw0/blocksync/pkg/domain"
	"github.com/aretw0/blocksync/pkg/ports"
)

// SnapshotStore implements ports.SnapshotStore in memory.
// Safe for concurrent use.
type SnapshotStore struct {
	data map[string]*domain.Tree
	mu   sync.RWMutex
}

// NewSnapshotStore creates a new in-memory snapshot store.
func NewSnapshotStore() *SnapshotStore {
	return &SnapshotStore{
		data: make(map[string]*domain.Tree),
	}
}

var _ ports.SnapshotStore = (*SnapshotStore)(nil)

// Save persists a deep copy of the tree, similar to serialization.
func (s *SnapshotStore) Save(ctx context.Context, docID string, tree *domain.Tree) error {
	copied := tree.Clone()
	if copied == nil {
		copied = domain.NewTree()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[docID] = copied
	return nil
}

// Load retrieves a fresh copy so callers never share references with the store.
func (s *SnapshotStore) Load(ctx context.Context, docID string) (*domain.Tree, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tree, ok := s.data[docID]
	if !ok {
		return nil, domain.ErrSnapshotNotFound
	}
	return tree.Clone(), nil
}

// Delete removes the snapshot.
func (s *SnapshotStore) Delete(ctx context.Context, docID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, docID)
	return nil
}

// List returns stored document IDs.
func (s *SnapshotStore) List(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	docs := make([]string, 0, len(s.data))
	for id := range s.data {
		docs = append(docs, id)
	}
	return docs, nil
}
