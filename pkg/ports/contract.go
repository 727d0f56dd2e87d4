package ports

import (
	"context"
	"testing"
	"time"

	"github.com/aretw0/blocksync/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunStoreContract runs a suite of tests to verify that a Store implementation
// honours the reference and notification semantics the synchronizer relies on.
// newStore must return an empty store for every call.
func RunStoreContract(t *testing.T, newStore func() Store) {
	t.Run("ResetRoot keeps the reference", func(t *testing.T) {
		store := newStore()
		tree := domain.NewTree(domain.NewNode("a", nil))

		require.NoError(t, store.ResetRoot(tree))
		assert.True(t, domain.Same(tree, store.Root()), "Root must return the exact value written")
	})

	t.Run("ReplaceChildren keeps the reference", func(t *testing.T) {
		store := newStore()
		require.NoError(t, store.ResetRoot(domain.NewTree(domain.NewNode("parent", nil))))

		children := domain.NewTree(domain.NewNode("child", nil))
		require.NoError(t, store.ReplaceChildren("parent", children))
		assert.True(t, domain.Same(children, store.Children("parent")))
		assert.NotNil(t, store.Root().Find("child"), "children are visible through the root")
	})

	t.Run("Controlled flag", func(t *testing.T) {
		store := newStore()
		require.NoError(t, store.ResetRoot(domain.NewTree(domain.NewNode("parent", nil))))

		assert.False(t, store.IsControlled("parent"))
		require.NoError(t, store.SetControlled("parent", true))
		assert.True(t, store.IsControlled("parent"))
		require.NoError(t, store.SetControlled("parent", false))
		assert.False(t, store.IsControlled("parent"))
	})

	t.Run("Listener fires once per mutation after it is applied", func(t *testing.T) {
		store := newStore()
		tree := domain.NewTree()

		var calls int
		var seen *domain.Tree
		unsubscribe := store.Subscribe(func() {
			calls++
			seen = store.Root()
		})
		defer unsubscribe()

		require.NoError(t, store.ResetRoot(tree))
		assert.Equal(t, 1, calls)
		assert.True(t, domain.Same(tree, seen), "listener observes the applied value")
	})

	t.Run("Unsubscribe", func(t *testing.T) {
		store := newStore()

		var calls int
		unsubscribe := store.Subscribe(func() { calls++ })
		unsubscribe()
		unsubscribe()

		require.NoError(t, store.ResetRoot(domain.NewTree()))
		assert.Equal(t, 0, calls)
	})

	t.Run("Persistence flag", func(t *testing.T) {
		store := newStore()

		require.NoError(t, store.ResetRoot(domain.NewTree()))
		assert.True(t, store.IsLastChangePersistent())

		store.MarkNextChangeAsNotPersistent()
		require.NoError(t, store.ResetRoot(domain.NewTree()))
		assert.False(t, store.IsLastChangePersistent())

		require.NoError(t, store.ResetRoot(domain.NewTree()))
		assert.True(t, store.IsLastChangePersistent(), "the transient mark applies to one change only")
	})
}

// RunSnapshotStoreContract runs a suite of tests to verify that a SnapshotStore
// implementation adheres to the defined interface contract.
func RunSnapshotStoreContract(t *testing.T, store SnapshotStore) {
	ctx := context.Background()
	docID := "contract-test-doc-" + time.Now().Format("20060102150405")

	t.Run("Save and Load", func(t *testing.T) {
		tree := domain.NewTree(
			domain.NewNode("a", domain.Attributes{"foo": "bar"},
				domain.NewNode("a1", domain.Attributes{"level": "two"}),
			),
			domain.NewNode("b", nil),
		)

		err := store.Save(ctx, docID, tree)
		require.NoError(t, err, "Save should not return error")

		loaded, err := store.Load(ctx, docID)
		require.NoError(t, err, "Load should not return error")
		require.Equal(t, 2, loaded.Len())
		assert.False(t, domain.Same(tree, loaded), "Load must return a fresh value")
		assert.Equal(t, "a", loaded.At(0).ID)
		assert.Equal(t, "bar", loaded.At(0).Attributes["foo"])
		require.NotNil(t, loaded.Find("a1"))
		assert.Equal(t, "two", loaded.Find("a1").Attributes["level"])
	})

	t.Run("Load Non-Existent", func(t *testing.T) {
		_, err := store.Load(ctx, "non-existent-"+docID)
		assert.ErrorIs(t, err, domain.ErrSnapshotNotFound)
	})

	t.Run("Delete", func(t *testing.T) {
		err := store.Save(ctx, docID, domain.NewTree())
		require.NoError(t, err)

		err = store.Delete(ctx, docID)
		require.NoError(t, err, "Delete should not return error")

		_, err = store.Load(ctx, docID)
		assert.ErrorIs(t, err, domain.ErrSnapshotNotFound, "Load after Delete should return ErrSnapshotNotFound")
	})

	t.Run("List", func(t *testing.T) {
		id1 := docID + "-1"
		id2 := docID + "-2"
		_ = store.Save(ctx, id1, domain.NewTree())
		_ = store.Save(ctx, id2, domain.NewTree())

		defer func() {
			_ = store.Delete(ctx, id1)
			_ = store.Delete(ctx, id2)
		}()

		docs, err := store.List(ctx)
		require.NoError(t, err)
		assert.Contains(t, docs, id1)
		assert.Contains(t, docs, id2)
	})
}
