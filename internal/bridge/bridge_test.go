package bridge_test

import (
	"errors"
	"testing"

	"github.com/aretw0/blocksync/internal/bridge"
	"github.com/aretw0/blocksync/pkg/adapters/memory"
	"github.com/aretw0/blocksync/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBridge_InitRoot(t *testing.T) {
	store := memory.NewStore()
	b := bridge.New(store)
	value := domain.NewTree()

	require.NoError(t, b.InitRoot(value))
	assert.True(t, domain.Same(value, store.Root()))
	assert.False(t, store.IsLastChangePersistent(), "initialization is not a committed edit")
}

func TestBridge_InitControlled(t *testing.T) {
	store := memory.NewStore()
	b := bridge.New(store)
	value := domain.NewTree(domain.NewNode("a", nil))

	var flaggedBeforeReplace bool
	unsubscribe := store.Subscribe(func() {
		if store.Children("test") == nil {
			flaggedBeforeReplace = store.IsControlled("test")
		}
	})
	defer unsubscribe()

	require.NoError(t, b.InitControlled("test", value))
	assert.True(t, flaggedBeforeReplace, "the controlled flag is set before the children are replaced")
	assert.True(t, store.IsControlled("test"))
	assert.True(t, domain.Same(value, store.Children("test")))
	assert.True(t, domain.Same(value, b.Read(domain.Controlled("test"))))

	require.NoError(t, b.Release(domain.Controlled("test")))
	assert.False(t, store.IsControlled("test"))
}

type failingChildren struct {
	*memory.Store
}

var errReplace = errors.New("replace failed")

func (failingChildren) ReplaceChildren(string, *domain.Tree) error { return errReplace }

func TestBridge_InitControlledReleasesFlagOnFailure(t *testing.T) {
	store := failingChildren{Store: memory.NewStore()}
	b := bridge.New(store)

	err := b.InitControlled("test", domain.NewTree())
	if !errors.Is(err, errReplace) {
		t.Fatalf("expected replace error, got %v", err)
	}
	assert.False(t, store.IsControlled("test"), "the flag must not outlive a failed initialization")
}

func TestBridge_Claim(t *testing.T) {
	store := memory.NewStore()
	b := bridge.New(store)

	require.NoError(t, b.Claim(domain.Root()))
	assert.Equal(t, 0, store.WriteCount())

	require.NoError(t, b.Claim(domain.Controlled("test")))
	assert.True(t, store.IsControlled("test"))
	assert.Nil(t, store.Children("test"), "claiming leaves the children untouched")

	require.NoError(t, b.Release(domain.Controlled("test")))
	assert.False(t, store.IsControlled("test"))
}

func TestBridge_WriteIfChanged(t *testing.T) {
	tests := []struct {
		name   string
		target domain.Target
	}{
		{"root", domain.Root()},
		{"controlled", domain.Controlled("test")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := memory.NewStore()
			b := bridge.New(store)
			value := domain.NewTree()
			require.NoError(t, b.Init(tt.target, value))
			writes := store.WriteCount()

			wrote, err := b.WriteIfChanged(tt.target, value)
			require.NoError(t, err)
			assert.False(t, wrote, "same reference is not written")
			assert.Equal(t, writes, store.WriteCount())

			next := domain.NewTree()
			wrote, err = b.WriteIfChanged(tt.target, next)
			require.NoError(t, err)
			assert.True(t, wrote, "a structurally equal but distinct value is written")
			assert.Equal(t, writes+1, store.WriteCount())
			assert.True(t, domain.Same(next, b.Read(tt.target)))
		})
	}
}

type failingStore struct {
	*memory.Store
}

var errBoom = errors.New("boom")

func (failingStore) ResetRoot(*domain.Tree) error { return errBoom }

func TestBridge_PropagatesStoreErrors(t *testing.T) {
	b := bridge.New(failingStore{memory.NewStore()})

	err := b.InitRoot(domain.NewTree())
	assert.ErrorIs(t, err, errBoom)

	_, err = b.WriteIfChanged(domain.Root(), domain.NewTree())
	assert.ErrorIs(t, err, errBoom)
}
