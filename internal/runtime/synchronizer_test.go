package runtime_test

import (
	"errors"
	"testing"

	"github.com/aretw0/blocksync/internal/runtime"
	"github.com/aretw0/blocksync/pkg/adapters/memory"
	"github.com/aretw0/blocksync/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recorder captures outward callback invocations.
type recorder struct {
	changes []*domain.Tree
	inputs  []*domain.Tree
	sels    []domain.Selection
}

func (r *recorder) callbacks() runtime.Callbacks {
	return runtime.Callbacks{
		OnChange: func(tree *domain.Tree, sel domain.Selection) {
			r.changes = append(r.changes, tree)
			r.sels = append(r.sels, sel)
		},
		OnInput: func(tree *domain.Tree, sel domain.Selection) {
			r.inputs = append(r.inputs, tree)
			r.sels = append(r.sels, sel)
		},
	}
}

func (r *recorder) calls() int {
	return len(r.changes) + len(r.inputs)
}

func bind(t *testing.T, store *memory.Store, target domain.Target, value *domain.Tree, rec *recorder) *runtime.Synchronizer {
	t.Helper()
	s, err := runtime.Bind(store, target, value, runtime.NewCallbackCell(rec.callbacks()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestBind_RootInitializesWithoutCallbacks(t *testing.T) {
	store := memory.NewStore()
	rec := &recorder{}
	value := domain.NewTree()

	s := bind(t, store, domain.Root(), value, rec)

	assert.True(t, domain.Same(value, store.Root()))
	assert.Equal(t, runtime.PhaseSettled, s.Phase())
	assert.Equal(t, 0, rec.calls())
	assert.Equal(t, 1, store.Listeners())
}

func TestBind_ControlledInitializesWithoutCallbacks(t *testing.T) {
	store := memory.NewStore()
	rec := &recorder{}
	value := domain.NewTree()

	bind(t, store, domain.Controlled("test"), value, rec)

	assert.True(t, store.IsControlled("test"))
	assert.True(t, domain.Same(value, store.Children("test")))
	assert.Equal(t, 0, rec.calls())
}

func TestBind_NilValueSkipsInitialization(t *testing.T) {
	store := memory.NewStore()
	root := store.Root()

	s := bind(t, store, domain.Root(), nil, &recorder{})

	assert.True(t, domain.Same(root, store.Root()))
	assert.Equal(t, 0, store.WriteCount())
	require.NoError(t, s.Update(nil))
	assert.Equal(t, 0, store.WriteCount())
}

func TestBind_ControlledNilValueStillFlagsParent(t *testing.T) {
	store := memory.NewStore()
	rec := &recorder{}

	s, err := runtime.Bind(store, domain.Controlled("test"), nil, runtime.NewCallbackCell(rec.callbacks()))
	require.NoError(t, err)
	assert.True(t, store.IsControlled("test"), "the parent is controlled before any value arrives")
	assert.Nil(t, store.Children("test"))

	next := domain.NewTree(domain.NewNode("a", nil))
	require.NoError(t, s.Update(next))
	assert.True(t, store.IsControlled("test"))
	assert.True(t, domain.Same(next, store.Children("test")))
	assert.Equal(t, 0, rec.calls())

	require.NoError(t, s.Close())
	assert.False(t, store.IsControlled("test"))
}

func TestUpdate_WritesAndSuppressesItsEcho(t *testing.T) {
	store := memory.NewStore()
	rec := &recorder{}
	s := bind(t, store, domain.Root(), domain.NewTree(), rec)

	next := domain.NewTree(domain.NewNode("a", domain.Attributes{"foo": 1}))
	require.NoError(t, s.Update(next))

	assert.True(t, domain.Same(next, store.Root()))
	assert.Equal(t, 0, rec.calls(), "the echo of our own write must not go outward")
	incoming, _ := s.Pending()
	assert.Nil(t, incoming, "the echo consumed the marker")
}

func TestUpdate_SameReferenceIsNotWritten(t *testing.T) {
	store := memory.NewStore()
	value := domain.NewTree()
	s := bind(t, store, domain.Root(), value, &recorder{})
	writes := store.WriteCount()

	require.NoError(t, s.Update(value))
	assert.Equal(t, writes, store.WriteCount())

	incoming, _ := s.Pending()
	assert.True(t, domain.Same(value, incoming), "a skipped write still records the expected echo")
}

func TestNotification_RoutesByPersistence(t *testing.T) {
	store := memory.NewStore()
	rec := &recorder{}
	bind(t, store, domain.Controlled("test"), domain.NewTree(domain.NewNode("a", nil)), rec)

	store.MarkNextChangeAsNotPersistent()
	require.NoError(t, store.UpdateAttributes("a", domain.Attributes{"typing": true}))
	require.Len(t, rec.inputs, 1)
	assert.Empty(t, rec.changes)

	require.NoError(t, store.UpdateAttributes("a", domain.Attributes{"saved": true}))
	require.Len(t, rec.changes, 1)
	assert.Len(t, rec.inputs, 1)
	assert.True(t, domain.Same(store.Children("test"), rec.changes[0]))
}

func TestNotification_PassesSelection(t *testing.T) {
	store := memory.NewStore()
	rec := &recorder{}
	bind(t, store, domain.Root(), domain.NewTree(domain.NewNode("a", nil)), rec)

	sel := domain.Selection{
		Start: domain.Location{NodeID: "a", Attribute: "content", Offset: 1},
		End:   domain.Location{NodeID: "a", Attribute: "content", Offset: 3},
	}
	require.NoError(t, store.SetSelection(sel))
	assert.Equal(t, 0, rec.calls(), "a selection-only change is not a value change")

	require.NoError(t, store.UpdateAttributes("a", domain.Attributes{"content": "abc"}))
	require.Len(t, rec.sels, 1)
	assert.Equal(t, sel, rec.sels[0])
}

func TestUpdate_OutgoingEchoIsNotWrittenBack(t *testing.T) {
	store := memory.NewStore()
	rec := &recorder{}
	s := bind(t, store, domain.Root(), domain.NewTree(domain.NewNode("a", nil)), rec)

	require.NoError(t, store.UpdateAttributes("a", domain.Attributes{"foo": 2}))
	require.Len(t, rec.changes, 1)
	writes := store.WriteCount()

	require.NoError(t, s.Update(rec.changes[0]))
	assert.Equal(t, writes, store.WriteCount())

	_, outgoing := s.Pending()
	assert.Empty(t, outgoing)
}

func TestUpdate_LaggingEchoDoesNotRevert(t *testing.T) {
	store := memory.NewStore()
	rec := &recorder{}
	s := bind(t, store, domain.Root(), domain.NewTree(domain.NewNode("a", nil)), rec)

	require.NoError(t, store.UpdateAttributes("a", domain.Attributes{"n": 1}))
	require.NoError(t, store.UpdateAttributes("a", domain.Attributes{"n": 2}))
	require.Len(t, rec.changes, 2)
	latest := store.Root()
	writes := store.WriteCount()

	// The caller echoes the first report after the second was already sent.
	require.NoError(t, s.Update(rec.changes[0]))
	assert.True(t, domain.Same(latest, store.Root()), "an older echo must not revert the store")
	assert.Equal(t, writes, store.WriteCount())

	require.NoError(t, s.Update(rec.changes[1]))
	_, outgoing := s.Pending()
	assert.Empty(t, outgoing)
}

func TestNotification_PersistenceFlip(t *testing.T) {
	store := memory.NewStore()
	rec := &recorder{}
	s := bind(t, store, domain.Root(), domain.NewTree(domain.NewNode("a", nil)), rec)

	store.MarkNextChangeAsNotPersistent()
	require.NoError(t, store.UpdateAttributes("a", domain.Attributes{"content": "draft"}))
	require.Len(t, rec.inputs, 1)
	require.NoError(t, s.Update(rec.inputs[0]))

	require.NoError(t, store.MarkLastChangeAsPersistent())
	require.Len(t, rec.changes, 1, "committing the transient change reports it once")
	assert.True(t, domain.Same(rec.inputs[0], rec.changes[0]))

	require.NoError(t, store.MarkLastChangeAsPersistent())
	assert.Len(t, rec.changes, 1)
}

func TestNotification_IgnoredChangeIsAbsorbed(t *testing.T) {
	store := memory.NewStore()
	rec := &recorder{}
	bind(t, store, domain.Root(), domain.NewTree(domain.NewNode("a", nil)), rec)

	store.MarkNextChangeAsIgnored()
	require.NoError(t, store.UpdateAttributes("a", domain.Attributes{"meta": 1}))
	assert.Equal(t, 0, rec.calls())

	require.NoError(t, store.SetSelection(domain.Selection{}))
	assert.Equal(t, 0, rec.calls(), "the absorbed value is not reported later either")
}

func TestNotification_NilCallbacksAreNoOps(t *testing.T) {
	store := memory.NewStore()
	s, err := runtime.Bind(store, domain.Root(), domain.NewTree(domain.NewNode("a", nil)), nil)
	require.NoError(t, err)
	defer s.Close()

	assert.NotPanics(t, func() {
		require.NoError(t, store.UpdateAttributes("a", domain.Attributes{"x": 1}))
		store.MarkNextChangeAsNotPersistent()
		require.NoError(t, store.UpdateAttributes("a", domain.Attributes{"x": 2}))
	})
}

func TestNotification_UsesLatestCallbacks(t *testing.T) {
	store := memory.NewStore()
	first := &recorder{}
	second := &recorder{}
	cell := runtime.NewCallbackCell(first.callbacks())

	s, err := runtime.Bind(store, domain.Root(), domain.NewTree(domain.NewNode("a", nil)), cell)
	require.NoError(t, err)
	defer s.Close()

	cell.Store(second.callbacks())
	require.NoError(t, store.UpdateAttributes("a", domain.Attributes{"x": 1}))

	assert.Equal(t, 0, first.calls())
	assert.Equal(t, 1, second.calls())
}

func TestNotification_ControlledParentRemoved(t *testing.T) {
	store := memory.NewStore(memory.WithRoot(domain.NewTree(domain.NewNode("p", nil))))
	rec := &recorder{}
	bind(t, store, domain.Controlled("p"), domain.NewTree(domain.NewNode("c", nil)), rec)

	require.NoError(t, store.RemoveNode("p"))
	assert.Equal(t, 0, rec.calls())
}

func TestClose_DiscardsStateAndDropsNotifications(t *testing.T) {
	store := memory.NewStore()
	rec := &recorder{}
	s := bind(t, store, domain.Controlled("test"), domain.NewTree(domain.NewNode("a", nil)), rec)

	require.NoError(t, store.UpdateAttributes("a", domain.Attributes{"x": 1}))
	require.Equal(t, 1, rec.calls())

	require.NoError(t, s.Close())
	require.NoError(t, s.Close(), "Close is idempotent")

	assert.Equal(t, runtime.PhaseClosed, s.Phase())
	assert.Equal(t, 0, store.Listeners())
	assert.False(t, store.IsControlled("test"), "the controlled flag ends with the binding")
	incoming, outgoing := s.Pending()
	assert.Nil(t, incoming)
	assert.Empty(t, outgoing)

	require.NoError(t, store.UpdateAttributes("a", domain.Attributes{"x": 2}))
	assert.Equal(t, 1, rec.calls())
	assert.ErrorIs(t, s.Update(domain.NewTree()), runtime.ErrClosed)
}

func TestClose_FromInsideCallback(t *testing.T) {
	store := memory.NewStore()
	var s *runtime.Synchronizer
	var calls int
	cell := runtime.NewCallbackCell(runtime.Callbacks{
		OnChange: func(*domain.Tree, domain.Selection) {
			calls++
			_ = s.Close()
		},
	})

	s, err := runtime.Bind(store, domain.Root(), domain.NewTree(domain.NewNode("a", nil)), cell)
	require.NoError(t, err)

	require.NoError(t, store.UpdateAttributes("a", domain.Attributes{"x": 1}))
	require.NoError(t, store.UpdateAttributes("a", domain.Attributes{"x": 2}))
	assert.Equal(t, 1, calls)
}

type brokenStore struct {
	*memory.Store
	err error
}

func (b brokenStore) ReplaceChildren(string, *domain.Tree) error { return b.err }

func TestBind_PropagatesStoreErrors(t *testing.T) {
	boom := errors.New("dispatch failed")
	store := brokenStore{Store: memory.NewStore(), err: boom}

	_, err := runtime.Bind(store, domain.Controlled("x"), domain.NewTree(), nil)
	if !errors.Is(err, boom) {
		t.Fatalf("expected dispatch error, got %v", err)
	}
	if store.Listeners() != 0 {
		t.Errorf("failed bind must not leave a subscription, got %d", store.Listeners())
	}
	assert.False(t, store.IsControlled("x"), "a failed bind releases the controlled flag")
}

func TestUpdate_PropagatesStoreErrors(t *testing.T) {
	boom := errors.New("dispatch failed")

	broken, err := runtime.Bind(brokenStore{Store: memory.NewStore(), err: boom}, domain.Root(), nil, nil)
	require.NoError(t, err)
	defer broken.Close()

	require.NoError(t, broken.Update(domain.NewTree()), "root writes do not go through ReplaceChildren")

	failing, err := runtime.Bind(brokenStore{Store: memory.NewStore(), err: boom}, domain.Controlled("y"), nil, nil)
	require.NoError(t, err)
	defer failing.Close()

	err = failing.Update(domain.NewTree())
	if !errors.Is(err, boom) {
		t.Fatalf("expected dispatch error, got %v", err)
	}
	incoming, _ := failing.Pending()
	assert.Nil(t, incoming, "a failed write leaves no expected echo")
}

func TestHooks_ReportDecisions(t *testing.T) {
	store := memory.NewStore()
	var events []domain.EventType
	record := func(e *domain.SyncEvent) { events = append(events, e.Type) }
	hooks := domain.SyncHooks{
		OnBind: record, OnWrite: record, OnSkip: record,
		OnEcho: record, OnPropagate: record, OnUnbind: record,
	}

	value := domain.NewTree(domain.NewNode("a", nil))
	var reported *domain.Tree
	cell := runtime.NewCallbackCell(runtime.Callbacks{
		OnChange: func(tree *domain.Tree, _ domain.Selection) { reported = tree },
	})
	s, err := runtime.Bind(store, domain.Root(), value, cell, runtime.WithHooks(hooks))
	require.NoError(t, err)

	require.NoError(t, s.Update(value))
	require.NoError(t, s.Update(domain.NewTree(domain.NewNode("a", nil))))
	require.NoError(t, store.UpdateAttributes("a", domain.Attributes{"x": 1}))
	require.NoError(t, s.Update(reported))
	require.NoError(t, s.Close())

	assert.Equal(t, []domain.EventType{
		domain.EventBind,
		domain.EventSkip,
		domain.EventEcho, // the write's own notification is reported before the write itself
		domain.EventWrite,
		domain.EventPropagate,
		domain.EventEcho,
		domain.EventUnbind,
	}, events)
}

func TestPhase_String(t *testing.T) {
	assert.Equal(t, "initializing", runtime.PhaseInitializing.String())
	assert.Equal(t, "settled", runtime.PhaseSettled.String())
	assert.Equal(t, "closed", runtime.PhaseClosed.String())
}
