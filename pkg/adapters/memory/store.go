package memory

import (
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/aretw0/blocksync/internal/logging"
	"github.com/aretw0/blocksync/pkg/domain"
	"github.com/aretw0/blocksync/pkg/ports"
)

// Store implements ports.Store in memory.
//
// It models an editor store: every mutation is a dispatch that updates the
// state immutably (untouched subtrees keep their references) and then
// notifies listeners synchronously. The lock is never held while listeners
// run, so listeners may dispatch again.
//
// Children of nodes that are not part of the root tree are kept in a
// separate table keyed by parent ID, so a controlled binding can own the
// children of a node the root binding does not know about.
type Store struct {
	mu         sync.RWMutex
	root       *domain.Tree
	detached   map[string]*domain.Tree
	controlled map[string]bool
	selection  domain.Selection

	persistent        bool
	ignored           bool
	nextNotPersistent bool
	nextIgnored       bool
	writes            int

	subs   []*subscription
	logger *slog.Logger
}

type subscription struct {
	fn     ports.Listener
	active atomic.Bool
}

// Option configures the Store.
type Option func(*Store)

// WithRoot seeds the store's top-level node list.
func WithRoot(tree *domain.Tree) Option {
	return func(s *Store) {
		s.root = tree
	}
}

// WithLogger configures a logger for dispatch tracing.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

// NewStore creates a new in-memory store holding an empty root list.
func NewStore(opts ...Option) *Store {
	s := &Store{
		root:       domain.NewTree(),
		detached:   make(map[string]*domain.Tree),
		controlled: make(map[string]bool),
		persistent: true,
		logger:     logging.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

var _ ports.Store = (*Store)(nil)

// commit applies a mutation under the lock and notifies every active
// listener once. Tree mutations settle the change flags; other mutations
// (selection, controlled flags) leave them as they were.
func (s *Store) commit(action string, settle bool, apply func() error) error {
	s.mu.Lock()
	if err := apply(); err != nil {
		s.mu.Unlock()
		return err
	}
	if settle {
		s.persistent = !s.nextNotPersistent
		s.ignored = s.nextIgnored
		s.nextNotPersistent = false
		s.nextIgnored = false
	}
	persistent := s.persistent
	subs := slices.Clone(s.subs)
	s.mu.Unlock()

	s.logger.Debug("Store dispatch", "action", action, "persistent", persistent, "listeners", len(subs))

	for _, sub := range subs {
		if sub.active.Load() {
			sub.fn()
		}
	}
	return nil
}

// Subscribe registers a listener for committed mutations.
func (s *Store) Subscribe(listener ports.Listener) ports.UnsubscribeFunc {
	sub := &subscription{fn: listener}
	sub.active.Store(true)

	s.mu.Lock()
	s.subs = append(s.subs, sub)
	s.mu.Unlock()

	return func() {
		if !sub.active.Swap(false) {
			return
		}
		s.mu.Lock()
		defer s.mu.Unlock()
		s.subs = slices.DeleteFunc(s.subs, func(other *subscription) bool { return other == sub })
	}
}

// ResetRoot replaces the top-level node list.
func (s *Store) ResetRoot(tree *domain.Tree) error {
	return s.commit("reset_root", true, func() error {
		s.root = tree
		s.writes++
		return nil
	})
}

// ReplaceChildren replaces the children of parentID. When the parent is not
// part of any stored tree, the children are kept detached under its ID.
func (s *Store) ReplaceChildren(parentID string, tree *domain.Tree) error {
	return s.commit("replace_children", true, func() error {
		s.writes++
		if parentID == "" {
			s.root = tree
			return nil
		}
		if s.updateNode(parentID, func(n *domain.Node) *domain.Node { return n.WithChildren(tree) }) {
			return nil
		}
		s.detached[parentID] = tree
		return nil
	})
}

// SetControlled sets or clears the controlled flag on parentID.
func (s *Store) SetControlled(parentID string, controlled bool) error {
	return s.commit("set_controlled", false, func() error {
		if controlled {
			s.controlled[parentID] = true
		} else {
			delete(s.controlled, parentID)
		}
		return nil
	})
}

// MarkNextChangeAsNotPersistent flags the next mutation as transient.
func (s *Store) MarkNextChangeAsNotPersistent() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextNotPersistent = true
}

// MarkNextChangeAsIgnored flags the next mutation as one bindings must not propagate.
func (s *Store) MarkNextChangeAsIgnored() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextIgnored = true
}

// MarkLastChangeAsPersistent commits the current state as persistent
// without changing any value.
func (s *Store) MarkLastChangeAsPersistent() error {
	return s.commit("mark_persistent", false, func() error {
		s.persistent = true
		s.ignored = false
		return nil
	})
}

// UpdateAttributes merges attrs into the node with the given ID.
func (s *Store) UpdateAttributes(id string, attrs domain.Attributes) error {
	return s.commit("update_attributes", true, func() error {
		patch := maps.Clone(attrs)
		if !s.updateNode(id, func(n *domain.Node) *domain.Node { return n.WithAttributes(patch) }) {
			return fmt.Errorf("update attributes of %q: %w", id, domain.ErrNodeNotFound)
		}
		return nil
	})
}

// InsertNode inserts node among the children of parentID ("" for the root list).
func (s *Store) InsertNode(parentID string, index int, node *domain.Node) error {
	return s.commit("insert_node", true, func() error {
		if parentID == "" {
			s.root = s.root.Insert(index, node)
			return nil
		}
		insert := func(n *domain.Node) *domain.Node {
			return n.WithChildren(n.Children.Insert(index, node))
		}
		if s.updateNode(parentID, insert) {
			return nil
		}
		if children, ok := s.detached[parentID]; ok {
			s.detached[parentID] = children.Insert(index, node)
			return nil
		}
		return fmt.Errorf("insert into %q: %w", parentID, domain.ErrNodeNotFound)
	})
}

// RemoveNode removes the node with the given ID wherever it is.
func (s *Store) RemoveNode(id string) error {
	return s.commit("remove_node", true, func() error {
		if next, ok := s.root.Remove(id); ok {
			s.root = next
			return nil
		}
		for parentID, children := range s.detached {
			if next, ok := children.Remove(id); ok {
				s.detached[parentID] = next
				return nil
			}
		}
		return fmt.Errorf("remove %q: %w", id, domain.ErrNodeNotFound)
	})
}

// SetSelection replaces the current selection.
func (s *Store) SetSelection(selection domain.Selection) error {
	return s.commit("set_selection", false, func() error {
		s.selection = selection
		return nil
	})
}

// updateNode must be called with the lock held.
func (s *Store) updateNode(id string, fn func(*domain.Node) *domain.Node) bool {
	if next, ok := s.root.Update(id, fn); ok {
		s.root = next
		return true
	}
	for parentID, children := range s.detached {
		if next, ok := children.Update(id, fn); ok {
			s.detached[parentID] = next
			return true
		}
	}
	return false
}

// Root returns the current top-level node list.
func (s *Store) Root() *domain.Tree {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.root
}

// Children returns the current children of parentID.
func (s *Store) Children(parentID string) *domain.Tree {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if parentID == "" {
		return s.root
	}
	if n := s.root.Find(parentID); n != nil {
		return n.Children
	}
	for _, children := range s.detached {
		if n := children.Find(parentID); n != nil {
			return n.Children
		}
	}
	return s.detached[parentID]
}

// IsControlled reports whether parentID is flagged as controlled.
func (s *Store) IsControlled(parentID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.controlled[parentID]
}

// IsLastChangePersistent reports whether the last mutation was persistent.
func (s *Store) IsLastChangePersistent() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.persistent
}

// IsLastChangeIgnored reports whether the last mutation was flagged as ignored.
func (s *Store) IsLastChangeIgnored() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ignored
}

// Selection returns the current selection.
func (s *Store) Selection() domain.Selection {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.selection
}

// WriteCount returns how many whole-value writes (ResetRoot, ReplaceChildren) were applied.
func (s *Store) WriteCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.writes
}

// Listeners returns the number of active subscriptions.
func (s *Store) Listeners() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.subs)
}
