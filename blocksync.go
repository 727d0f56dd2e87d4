package blocksync

import (
	"errors"
	"log/slog"
	"reflect"
	"time"

	"github.com/aretw0/blocksync/internal/logging"
	"github.com/aretw0/blocksync/internal/runtime"
	"github.com/aretw0/blocksync/pkg/domain"
	"github.com/aretw0/blocksync/pkg/ports"
)

// ErrNilStore is returned when Props carry no store handle.
var ErrNilStore = errors.New("store is required")

// ErrBindingClosed is returned when a closed binding receives an update.
var ErrBindingClosed = errors.New("binding closed")

// ErrStoreNotComparable is returned when the store's dynamic type cannot be
// compared with ==, which store-change detection relies on.
var ErrStoreNotComparable = errors.New("store handle is not comparable")

// Props are the inputs of a binding, supplied again on every update.
type Props struct {
	// Store is the replica's store handle. It must be comparable (typically a pointer).
	Store ports.Store

	// ControllingID selects the children of that node as the target. Empty selects the root list.
	ControllingID string

	// Value is the external tree value. Nil means "no value yet" and is never written.
	Value *domain.Tree

	// OnChange receives persistent store changes. Nil is a no-op.
	OnChange domain.ChangeFunc

	// OnInput receives transient store changes. Nil is a no-op.
	OnInput domain.ChangeFunc
}

// Target resolves the binding target described by the props.
func (p Props) Target() domain.Target {
	return domain.TargetFor(p.ControllingID)
}

// Binding is the high-level entry point of the library.
// It owns the always-latest callbacks and re-binds when the target changes.
type Binding struct {
	store     ports.Store
	target    domain.Target
	callbacks *runtime.CallbackCell
	sync      *runtime.Synchronizer
	closed    bool

	logger *slog.Logger
	hooks  domain.SyncHooks
	now    func() time.Time
}

// Option defines a functional option for configuring the Binding.
type Option func(*Binding)

// WithLogger sets a custom structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(b *Binding) {
		b.logger = logger
	}
}

// WithHooks registers observability hooks.
func WithHooks(hooks domain.SyncHooks) Option {
	return func(b *Binding) {
		b.hooks = hooks
	}
}

// WithClock overrides the timestamp source of emitted events.
func WithClock(now func() time.Time) Option {
	return func(b *Binding) {
		b.now = now
	}
}

// Bind establishes a binding from its first props: the value is written
// into the target before the binding starts listening to the store.
// props.Store must have a comparable dynamic type (typically a pointer),
// otherwise ErrStoreNotComparable is returned.
func Bind(props Props, opts ...Option) (*Binding, error) {
	b := &Binding{
		callbacks: runtime.NewCallbackCell(runtime.Callbacks{}),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.logger == nil {
		b.logger = logging.NewNop()
	}

	if err := b.Update(props); err != nil {
		return nil, err
	}
	return b, nil
}

// Update feeds the binding the props of the latest render.
// Callbacks are refreshed first. A different store or controlling node
// re-binds with props.Value; otherwise props.Value is processed as an
// external value update.
func (b *Binding) Update(props Props) error {
	if b.closed {
		return ErrBindingClosed
	}
	if props.Store == nil {
		return ErrNilStore
	}
	if !reflect.TypeOf(props.Store).Comparable() {
		return ErrStoreNotComparable
	}

	b.callbacks.Store(runtime.Callbacks{
		OnChange: props.OnChange,
		OnInput:  props.OnInput,
	})

	target := props.Target()
	if b.sync != nil && b.store == props.Store && b.target == target {
		return b.sync.Update(props.Value)
	}
	return b.rebind(props.Store, target, props.Value)
}

func (b *Binding) rebind(store ports.Store, target domain.Target, value *domain.Tree) error {
	var closeErr error
	if b.sync != nil {
		b.logger.Debug("Binding target changed", "from", b.target.String(), "to", target.String())
		closeErr = b.sync.Close()
		b.sync = nil
	}

	b.store = store
	b.target = target

	sync, err := runtime.Bind(store, target, value, b.callbacks,
		runtime.WithLogger(b.logger),
		runtime.WithHooks(b.hooks),
		runtime.WithClock(b.now),
	)
	if err != nil {
		return errors.Join(closeErr, err)
	}
	b.sync = sync
	return closeErr
}

// Target returns the currently bound target.
func (b *Binding) Target() domain.Target {
	return b.target
}

// Close tears the binding down. It is safe to call more than once.
func (b *Binding) Close() error {
	if b.closed {
		return nil
	}
	b.closed = true
	if b.sync == nil {
		return nil
	}
	err := b.sync.Close()
	b.sync = nil
	return err
}
