package autosave

import (
	"context"
	"fmt"
	"sync"

	"github.com/aretw0/blocksync/pkg/domain"
	"github.com/aretw0/blocksync/pkg/ports"
)

// Attach saves the store's root list under docID after every persistent,
// non-ignored change that produced a new root reference. The root held at
// attach time counts as already saved. Save failures are logged, not returned.
func (m *Manager) Attach(ctx context.Context, store ports.Store, docID string) ports.UnsubscribeFunc {
	var mu sync.Mutex
	last := store.Root()

	return store.Subscribe(func() {
		if !store.IsLastChangePersistent() || store.IsLastChangeIgnored() {
			return
		}
		root := store.Root()

		mu.Lock()
		defer mu.Unlock()
		if domain.Same(root, last) {
			return
		}
		if err := m.Save(ctx, docID, root); err != nil {
			m.logger.Warn("Autosave failed", "doc_id", docID, "err", err)
			return
		}
		last = root
		m.logger.Debug("Autosaved", "doc_id", docID, "size", root.Len())
	})
}

// Restore loads docID into the store's root list as a non-persistent change,
// so attached autosaves and bindings treat it as initialization.
func (m *Manager) Restore(ctx context.Context, store ports.Store, docID string) (*domain.Tree, error) {
	tree, err := m.Load(ctx, docID)
	if err != nil {
		return nil, err
	}
	store.MarkNextChangeAsNotPersistent()
	if err := store.ResetRoot(tree); err != nil {
		return nil, fmt.Errorf("failed to restore %q: %w", docID, err)
	}
	return tree, nil
}
