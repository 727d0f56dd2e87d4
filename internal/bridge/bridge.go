// Package bridge adapts a ports.Store to the whole-value operations the
// synchronizer issues against a binding target.
package bridge

import (
	"errors"
	"fmt"

	"github.com/aretw0/blocksync/pkg/domain"
	"github.com/aretw0/blocksync/pkg/ports"
)

// Bridge is a thin adapter exposing read/write/subscribe over a store.
// It holds no state of its own.
type Bridge struct {
	store ports.Store
}

// New wraps a store.
func New(store ports.Store) *Bridge {
	return &Bridge{store: store}
}

// Store returns the wrapped store handle.
func (b *Bridge) Store() ports.Store {
	return b.store
}

// InitRoot unconditionally replaces the store's top-level node list.
func (b *Bridge) InitRoot(value *domain.Tree) error {
	b.store.MarkNextChangeAsNotPersistent()
	if err := b.store.ResetRoot(value); err != nil {
		return fmt.Errorf("failed to initialize root: %w", err)
	}
	return nil
}

// InitControlled flags parentID as controlled, then unconditionally replaces its children.
// The flag is released again when the replacement fails.
func (b *Bridge) InitControlled(parentID string, value *domain.Tree) error {
	if err := b.store.SetControlled(parentID, true); err != nil {
		return fmt.Errorf("failed to mark %q as controlled: %w", parentID, err)
	}
	b.store.MarkNextChangeAsNotPersistent()
	if err := b.store.ReplaceChildren(parentID, value); err != nil {
		err = fmt.Errorf("failed to initialize children of %q: %w", parentID, err)
		if rerr := b.store.SetControlled(parentID, false); rerr != nil {
			err = errors.Join(err, fmt.Errorf("failed to release %q: %w", parentID, rerr))
		}
		return err
	}
	return nil
}

// Claim flags a controlled target's parent without touching its children.
// It is used when a binding starts without a value. Root targets are a no-op.
func (b *Bridge) Claim(target domain.Target) error {
	if target.IsRoot() {
		return nil
	}
	if err := b.store.SetControlled(target.ParentID(), true); err != nil {
		return fmt.Errorf("failed to mark %q as controlled: %w", target.ParentID(), err)
	}
	return nil
}

// Init dispatches to InitRoot or InitControlled according to the target.
func (b *Bridge) Init(target domain.Target, value *domain.Tree) error {
	if target.IsRoot() {
		return b.InitRoot(value)
	}
	return b.InitControlled(target.ParentID(), value)
}

// WriteIfChanged replaces the target's value unless the store already holds
// exactly this reference. It reports whether a write was issued.
func (b *Bridge) WriteIfChanged(target domain.Target, value *domain.Tree) (bool, error) {
	if domain.Same(b.Read(target), value) {
		return false, nil
	}
	if target.IsRoot() {
		if err := b.store.ResetRoot(value); err != nil {
			return false, fmt.Errorf("failed to reset root: %w", err)
		}
		return true, nil
	}
	if err := b.store.ReplaceChildren(target.ParentID(), value); err != nil {
		return false, fmt.Errorf("failed to replace children of %q: %w", target.ParentID(), err)
	}
	return true, nil
}

// Read returns the store's current value reference for the target.
func (b *Bridge) Read(target domain.Target) *domain.Tree {
	if target.IsRoot() {
		return b.store.Root()
	}
	return b.store.Children(target.ParentID())
}

// Release clears the controlled flag of a controlled target. Root targets are a no-op.
func (b *Bridge) Release(target domain.Target) error {
	if target.IsRoot() {
		return nil
	}
	if err := b.store.SetControlled(target.ParentID(), false); err != nil {
		return fmt.Errorf("failed to release %q: %w", target.ParentID(), err)
	}
	return nil
}

// IsLastChangePersistent reports whether the last committed mutation is history-worthy.
func (b *Bridge) IsLastChangePersistent() bool {
	return b.store.IsLastChangePersistent()
}

// IsLastChangeIgnored reports whether the last committed mutation must not be propagated.
func (b *Bridge) IsLastChangeIgnored() bool {
	return b.store.IsLastChangeIgnored()
}

// Selection returns the store's current selection.
func (b *Bridge) Selection() domain.Selection {
	return b.store.Selection()
}

// Subscribe registers a listener fired after every committed store mutation.
func (b *Bridge) Subscribe(listener ports.Listener) ports.UnsubscribeFunc {
	return b.store.Subscribe(listener)
}
