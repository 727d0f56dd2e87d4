package runtime

import (
	"slices"
	"sync/atomic"

	"github.com/aretw0/blocksync/pkg/domain"
)

// Callbacks are the outward notification targets of a binding.
// A nil callback is a no-op.
type Callbacks struct {
	OnChange domain.ChangeFunc
	OnInput  domain.ChangeFunc
}

// route picks the callback for a change of the given persistence.
func (c Callbacks) route(persistent bool) domain.ChangeFunc {
	if persistent {
		return c.OnChange
	}
	return c.OnInput
}

// CallbackCell holds the most recent Callbacks of a binding.
// It is written on every external update and read by the notification
// handler, so the subscription never has to be recreated when callbacks change.
type CallbackCell struct {
	v atomic.Pointer[Callbacks]
}

// NewCallbackCell creates a cell holding cb.
func NewCallbackCell(cb Callbacks) *CallbackCell {
	c := &CallbackCell{}
	c.Store(cb)
	return c
}

// Store replaces the callbacks.
func (c *CallbackCell) Store(cb Callbacks) {
	c.v.Store(&cb)
}

// Load returns the latest callbacks.
func (c *CallbackCell) Load() Callbacks {
	if cb := c.v.Load(); cb != nil {
		return *cb
	}
	return Callbacks{}
}

// bindingState is the per-binding mutable record. It is created on Bind and
// discarded as a whole on teardown; nothing reads it after discard.
type bindingState struct {
	target domain.Target

	// pendingIncoming is the value this binding last wrote into the store.
	pendingIncoming *domain.Tree
	// pendingOutgoing holds values reported outward and not yet echoed back, oldest first.
	pendingOutgoing []*domain.Tree

	observed        *domain.Tree // last value seen on a notification
	persistent      bool         // persistence flag at the last observation
	changedLastTime bool         // whether the previous notification carried a new value
	discarded       bool
}

func newBindingState(target domain.Target) *bindingState {
	return &bindingState{target: target}
}

// expectIncoming records a value written (or about to be written) by this binding.
func (b *bindingState) expectIncoming(value *domain.Tree) {
	b.pendingIncoming = value
	b.pendingOutgoing = nil
}

// takeIncoming reports whether current is the echo of our own write, consuming the marker.
func (b *bindingState) takeIncoming(current *domain.Tree) bool {
	if b.pendingIncoming == nil || !domain.Same(b.pendingIncoming, current) {
		return false
	}
	b.pendingIncoming = nil
	return true
}

// pushOutgoing records a value about to be reported outward.
func (b *bindingState) pushOutgoing(value *domain.Tree) {
	if n := len(b.pendingOutgoing); n > 0 && domain.Same(b.pendingOutgoing[n-1], value) {
		return
	}
	b.pendingOutgoing = append(b.pendingOutgoing, value)
}

// acknowledgeOutgoing reports whether value is the echo of something reported
// outward. Once the newest reported value comes back the queue is cleared.
func (b *bindingState) acknowledgeOutgoing(value *domain.Tree) bool {
	i := slices.IndexFunc(b.pendingOutgoing, func(v *domain.Tree) bool { return domain.Same(v, value) })
	if i < 0 {
		return false
	}
	if i == len(b.pendingOutgoing)-1 {
		b.pendingOutgoing = nil
	}
	return true
}

// observe records the value and persistence seen by a notification.
func (b *bindingState) observe(current *domain.Tree, persistent bool) {
	b.observed = current
	b.persistent = persistent
}

func (b *bindingState) discard() {
	b.pendingIncoming = nil
	b.pendingOutgoing = nil
	b.observed = nil
	b.discarded = true
}
