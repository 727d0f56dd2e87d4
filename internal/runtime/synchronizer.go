package runtime

import (
	"errors"
	"log/slog"
	"time"

	"github.com/aretw0/blocksync/internal/bridge"
	"github.com/aretw0/blocksync/internal/logging"
	"github.com/aretw0/blocksync/pkg/domain"
	"github.com/aretw0/blocksync/pkg/ports"
)

// ErrClosed is returned when a torn-down synchronizer receives an update.
var ErrClosed = errors.New("synchronizer closed")

// Phase is the lifecycle state of a Synchronizer.
type Phase int

const (
	PhaseInitializing Phase = iota // Initial write in progress, not yet subscribed
	PhaseSettled                   // Subscribed and processing updates
	PhaseClosed                    // Torn down; every input is dropped
)

func (p Phase) String() string {
	switch p {
	case PhaseInitializing:
		return "initializing"
	case PhaseSettled:
		return "settled"
	case PhaseClosed:
		return "closed"
	}
	return "unknown"
}

// Synchronizer keeps one binding target of a store in sync with an external value.
// One instance serves exactly one binding lifetime: a target change means
// Close and Bind again. It is not safe for concurrent use; updates and store
// notifications are expected on the same goroutine, in arrival order.
type Synchronizer struct {
	bridge      *bridge.Bridge
	state       *bindingState
	callbacks   *CallbackCell
	unsubscribe ports.UnsubscribeFunc
	phase       Phase

	logger *slog.Logger
	hooks  domain.SyncHooks
	now    func() time.Time
}

// Option configures a Synchronizer.
type Option func(*Synchronizer)

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Synchronizer) {
		s.logger = logger
	}
}

// WithHooks registers observability hooks.
func WithHooks(hooks domain.SyncHooks) Option {
	return func(s *Synchronizer) {
		s.hooks = hooks
	}
}

// WithClock overrides the event timestamp source.
func WithClock(now func() time.Time) Option {
	return func(s *Synchronizer) {
		s.now = now
	}
}

// Bind establishes a binding: it writes initial into the target, records it
// as the expected echo and only then subscribes, so the initializing write is
// never mistaken for a store-originated change. A nil initial value skips the
// write; a controlled parent is still flagged for the binding's lifetime.
// callbacks is read on every notification.
func Bind(store ports.Store, target domain.Target, initial *domain.Tree, callbacks *CallbackCell, opts ...Option) (*Synchronizer, error) {
	s := &Synchronizer{
		bridge:    bridge.New(store),
		state:     newBindingState(target),
		callbacks: callbacks,
		phase:     PhaseInitializing,
		logger:    logging.NewNop(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.callbacks == nil {
		s.callbacks = NewCallbackCell(Callbacks{})
	}
	s.logger = s.logger.With("target", target.String())

	var err error
	if initial != nil {
		err = s.bridge.Init(target, initial)
	} else {
		err = s.bridge.Claim(target)
	}
	if err != nil {
		s.phase = PhaseClosed
		s.state.discard()
		return nil, err
	}
	if initial != nil {
		s.state.expectIncoming(initial)
	}
	s.state.observe(s.bridge.Read(target), s.bridge.IsLastChangePersistent())

	s.unsubscribe = s.bridge.Subscribe(s.handleNotification)
	s.phase = PhaseSettled

	s.logger.Debug("Binding established", "size", initial.Len())
	s.emit(domain.EventBind, domain.Inbound, false, initial)
	return s, nil
}

// Target returns the bound target.
func (s *Synchronizer) Target() domain.Target {
	return s.state.target
}

// Phase returns the lifecycle state.
func (s *Synchronizer) Phase() Phase {
	return s.phase
}

// Pending returns the echo markers currently held.
func (s *Synchronizer) Pending() (incoming *domain.Tree, outgoing []*domain.Tree) {
	return s.state.pendingIncoming, append([]*domain.Tree(nil), s.state.pendingOutgoing...)
}

// Update processes a new external value.
//
// A value that was just reported outward is the caller echoing it back and is
// acknowledged without a write. Anything else is written unless the store
// already holds that exact reference; either way it becomes the expected
// incoming echo. Nil values are ignored.
func (s *Synchronizer) Update(value *domain.Tree) error {
	if s.phase == PhaseClosed {
		return ErrClosed
	}
	if value == nil {
		return nil
	}

	if s.state.acknowledgeOutgoing(value) {
		s.logger.Debug("Outgoing echo acknowledged", "size", value.Len())
		s.emit(domain.EventEcho, domain.Inbound, false, value)
		return nil
	}

	// The marker must be in place before the write: the store notifies synchronously.
	s.state.expectIncoming(value)
	wrote, err := s.bridge.WriteIfChanged(s.state.target, value)
	if err != nil {
		s.state.pendingIncoming = nil
		return err
	}

	if wrote {
		s.logger.Debug("External value written", "size", value.Len())
		s.emit(domain.EventWrite, domain.Inbound, false, value)
	} else {
		s.logger.Debug("External value already in store", "size", value.Len())
		s.emit(domain.EventSkip, domain.Inbound, false, value)
	}
	return nil
}

// handleNotification runs after every committed store mutation, including
// ones this binding did not cause.
func (s *Synchronizer) handleNotification() {
	if s.phase != PhaseSettled || s.state.discarded {
		return
	}

	target := s.state.target
	current := s.bridge.Read(target)
	if !target.IsRoot() && current == nil {
		// The controlling node is gone; nothing to report.
		return
	}
	persistent := s.bridge.IsLastChangePersistent()

	if s.state.takeIncoming(current) {
		s.state.observe(current, persistent)
		s.state.changedLastTime = false
		s.logger.Debug("Incoming echo suppressed", "size", current.Len())
		s.emit(domain.EventEcho, domain.Outbound, persistent, current)
		return
	}

	changed := !domain.Same(current, s.state.observed)

	if changed && s.bridge.IsLastChangeIgnored() {
		s.state.observe(current, persistent)
		s.state.pendingIncoming = nil
		s.state.changedLastTime = false
		s.logger.Debug("Ignored store change absorbed", "size", current.Len())
		return
	}

	// A transient change followed by a persistence mark is committed once.
	flipped := !changed && s.state.changedLastTime && persistent && !s.state.persistent
	s.state.changedLastTime = changed
	if !changed && !flipped {
		return
	}

	s.state.observe(current, persistent)
	s.state.pendingIncoming = nil
	s.state.pushOutgoing(current)

	s.logger.Debug("Store change propagated", "persistent", persistent, "size", current.Len())
	s.emit(domain.EventPropagate, domain.Outbound, persistent, current)

	if fn := s.callbacks.Load().route(persistent); fn != nil {
		fn(current, s.bridge.Selection())
	}
}

// Close tears the binding down: it unsubscribes, discards every pending
// marker and releases the controlled flag. It is safe to call more than once.
func (s *Synchronizer) Close() error {
	if s.phase == PhaseClosed {
		return nil
	}
	s.phase = PhaseClosed
	if s.unsubscribe != nil {
		s.unsubscribe()
		s.unsubscribe = nil
	}
	s.state.discard()

	s.logger.Debug("Binding torn down")
	s.emit(domain.EventUnbind, "", false, nil)
	return s.bridge.Release(s.state.target)
}

func (s *Synchronizer) emit(t domain.EventType, dir domain.Direction, persistent bool, value *domain.Tree) {
	s.hooks.Emit(&domain.SyncEvent{
		Timestamp:  s.now(),
		Type:       t,
		Target:     s.state.target,
		Direction:  dir,
		Persistent: persistent,
		Size:       value.Len(),
	})
}
