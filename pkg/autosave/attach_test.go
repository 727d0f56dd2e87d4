package autosave_test

import (
	"context"
	"errors"
	"testing"

	"github.com/aretw0/blocksync/pkg/adapters/memory"
	"github.com/aretw0/blocksync/pkg/autosave"
	"github.com/aretw0/blocksync/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// countingStore records how many saves reach the backend.
type countingStore struct {
	*memory.SnapshotStore
	saves int
	err   error
}

func (s *countingStore) Save(ctx context.Context, docID string, tree *domain.Tree) error {
	s.saves++
	if s.err != nil {
		return s.err
	}
	return s.SnapshotStore.Save(ctx, docID, tree)
}

func newAttached(t *testing.T) (*memory.Store, *countingStore, *autosave.Manager) {
	t.Helper()
	live := memory.NewStore(memory.WithRoot(domain.NewTree(domain.NewNode("p1", nil))))
	snapshots := &countingStore{SnapshotStore: memory.NewSnapshotStore()}
	manager := autosave.NewManager(snapshots)
	unsubscribe := manager.Attach(context.Background(), live, "doc")
	t.Cleanup(unsubscribe)
	return live, snapshots, manager
}

func TestAttach_SavesPersistentChanges(t *testing.T) {
	live, snapshots, manager := newAttached(t)

	require.NoError(t, live.UpdateAttributes("p1", domain.Attributes{"content": "saved"}))
	assert.Equal(t, 1, snapshots.saves)

	loaded, err := manager.Load(context.Background(), "doc")
	require.NoError(t, err)
	assert.Equal(t, "saved", loaded.Find("p1").Attributes["content"])
}

func TestAttach_SkipsTransientIgnoredAndUnchanged(t *testing.T) {
	live, snapshots, _ := newAttached(t)

	live.MarkNextChangeAsNotPersistent()
	require.NoError(t, live.UpdateAttributes("p1", domain.Attributes{"content": "typing"}))

	live.MarkNextChangeAsIgnored()
	require.NoError(t, live.UpdateAttributes("p1", domain.Attributes{"content": "remote"}))

	require.NoError(t, live.SetSelection(domain.Selection{Start: domain.Location{NodeID: "p1"}}))

	assert.Equal(t, 0, snapshots.saves)
}

func TestAttach_PersistenceMarkSavesPendingTransientValue(t *testing.T) {
	live, snapshots, _ := newAttached(t)

	live.MarkNextChangeAsNotPersistent()
	require.NoError(t, live.UpdateAttributes("p1", domain.Attributes{"content": "typing"}))
	require.NoError(t, live.MarkLastChangeAsPersistent())

	assert.Equal(t, 1, snapshots.saves)
}

func TestAttach_FailureIsRetriedOnNextChange(t *testing.T) {
	live, snapshots, _ := newAttached(t)
	snapshots.err = errors.New("disk full")

	require.NoError(t, live.UpdateAttributes("p1", domain.Attributes{"content": "one"}), "store mutations never fail on autosave")
	require.NoError(t, live.MarkLastChangeAsPersistent())
	assert.Equal(t, 2, snapshots.saves, "a failed save leaves the root unsaved")

	snapshots.err = nil
	require.NoError(t, live.MarkLastChangeAsPersistent())
	assert.Equal(t, 3, snapshots.saves)
	require.NoError(t, live.MarkLastChangeAsPersistent())
	assert.Equal(t, 3, snapshots.saves)
}

func TestRestore_IsNotPersistent(t *testing.T) {
	live, snapshots, manager := newAttached(t)
	ctx := context.Background()

	saved := domain.NewTree(domain.NewNode("restored", nil))
	require.NoError(t, manager.Save(ctx, "other", saved))
	snapshots.saves = 0

	tree, err := manager.Restore(ctx, live, "other")
	require.NoError(t, err)
	assert.Same(t, tree, live.Root())
	assert.False(t, live.IsLastChangePersistent())
	assert.Equal(t, 0, snapshots.saves)

	_, err = manager.Restore(ctx, live, "missing")
	assert.ErrorIs(t, err, domain.ErrSnapshotNotFound)
}
