package domain

import "time"

// ChangeFunc receives a tree value reported by the store side of a binding,
// together with the store's selection at that moment.
type ChangeFunc func(tree *Tree, selection Selection)

// EventType defines the category of the event.
type EventType string

const (
	EventBind      EventType = "bind"      // Binding established and initialized
	EventWrite     EventType = "write"     // External value written into the store
	EventSkip      EventType = "skip"      // External value already held by the store
	EventEcho      EventType = "echo"      // Echo suppressed
	EventPropagate EventType = "propagate" // Store change reported outward
	EventUnbind    EventType = "unbind"    // Binding torn down
)

// Direction tells which way a value was travelling.
type Direction string

const (
	// Inbound values flow from the external owner into the store.
	Inbound Direction = "inbound"
	// Outbound values flow from the store to the external owner.
	Outbound Direction = "outbound"
)

// SyncEvent describes one decision taken by a synchronizer.
type SyncEvent struct {
	Timestamp  time.Time `json:"timestamp"`
	Type       EventType `json:"type"`
	Target     Target    `json:"-"`
	Direction  Direction `json:"direction,omitempty"`
	Persistent bool      `json:"persistent,omitempty"`
	Size       int       `json:"size"` // Top-level node count of the value involved
}

// SyncHooks defines callbacks for synchronizer observability.
// Nil hooks are skipped.
type SyncHooks struct {
	OnBind      func(*SyncEvent)
	OnWrite     func(*SyncEvent)
	OnSkip      func(*SyncEvent)
	OnEcho      func(*SyncEvent)
	OnPropagate func(*SyncEvent)
	OnUnbind    func(*SyncEvent)
}

// Emit routes the event to the hook matching its type.
func (h SyncHooks) Emit(e *SyncEvent) {
	var fn func(*SyncEvent)
	switch e.Type {
	case EventBind:
		fn = h.OnBind
	case EventWrite:
		fn = h.OnWrite
	case EventSkip:
		fn = h.OnSkip
	case EventEcho:
		fn = h.OnEcho
	case EventPropagate:
		fn = h.OnPropagate
	case EventUnbind:
		fn = h.OnUnbind
	}
	if fn != nil {
		fn(e)
	}
}
