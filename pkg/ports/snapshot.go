package ports

import (
	"context"

	"github.com/aretw0/blocksync/pkg/domain"
)

// SnapshotStore defines the interface for persisting tree snapshots.
// Loaded trees are always fresh values, never references held by a live store.
type SnapshotStore interface {
	// Save persists the tree for a given document ID.
	Save(ctx context.Context, docID string, tree *domain.Tree) error

	// Load retrieves the tree for a given document ID.
	// Returns domain.ErrSnapshotNotFound if the document does not exist.
	Load(ctx context.Context, docID string) (*domain.Tree, error)

	// Delete removes the snapshot for a given document ID.
	Delete(ctx context.Context, docID string) error

	// List returns the IDs of every stored document.
	List(ctx context.Context) ([]string, error)
}
