package ports

import "github.com/aretw0/blocksync/pkg/domain"

// Listener is called synchronously once per committed store mutation,
// after the mutation is fully applied.
type Listener func()

// UnsubscribeFunc removes a listener. Calling it more than once is a no-op.
type UnsubscribeFunc func()

// Reader exposes the selectors the synchronizer needs.
type Reader interface {
	// Root returns the current top-level node list.
	Root() *domain.Tree

	// Children returns the current children of parentID, or nil when the store holds no such node.
	Children(parentID string) *domain.Tree

	// IsControlled reports whether parentID's children are owned by an external binding.
	IsControlled(parentID string) bool

	// IsLastChangePersistent reports whether the most recent mutation should be committed.
	IsLastChangePersistent() bool

	// IsLastChangeIgnored reports whether the most recent mutation must not be propagated.
	IsLastChangeIgnored() bool

	// Selection returns the current selection.
	Selection() domain.Selection
}

// Writer exposes the whole-value mutations the synchronizer issues.
type Writer interface {
	// ResetRoot replaces the top-level node list with tree, keeping the reference.
	ResetRoot(tree *domain.Tree) error

	// ReplaceChildren replaces the children of parentID with tree, keeping the reference.
	ReplaceChildren(parentID string, tree *domain.Tree) error

	// SetControlled sets or clears the "controlled" flag on parentID.
	SetControlled(parentID string, controlled bool) error

	// MarkNextChangeAsNotPersistent flags the next mutation as transient.
	MarkNextChangeAsNotPersistent()
}

// Subscriber registers listeners for committed mutations.
type Subscriber interface {
	Subscribe(listener Listener) UnsubscribeFunc
}

// Store is the full capability set a binding requires from its store collaborator.
type Store interface {
	Reader
	Writer
	Subscriber
}
