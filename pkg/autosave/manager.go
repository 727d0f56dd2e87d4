package autosave

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/aretw0/blocksync/internal/logging"
	"github.com/aretw0/blocksync/pkg/domain"
	"github.com/aretw0/blocksync/pkg/ports"
)

// DefaultLockTTL bounds how long a crashed holder can keep a distributed lock.
const DefaultLockTTL = 30 * time.Second

// lockEntry holds the mutex and the reference count.
type lockEntry struct {
	mu   sync.Mutex
	refs int
}

// Manager orchestrates snapshot access, serializing operations per document.
// Lock entries are reference counted and dropped once unused.
type Manager struct {
	store ports.SnapshotStore

	mu    sync.Mutex
	locks map[string]*lockEntry

	locker  ports.DistributedLocker
	lockTTL time.Duration
	logger  *slog.Logger
}

// Option configures the Manager.
type Option func(*Manager)

// WithLocker enables distributed locking.
func WithLocker(locker ports.DistributedLocker) Option {
	return func(m *Manager) {
		m.locker = locker
	}
}

// WithLockTTL overrides DefaultLockTTL.
func WithLockTTL(ttl time.Duration) Option {
	return func(m *Manager) {
		m.lockTTL = ttl
	}
}

// WithLogger configures a logger for the Manager.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		m.logger = logger
	}
}

// NewManager creates a Manager over the given snapshot store.
func NewManager(store ports.SnapshotStore, opts ...Option) *Manager {
	m := &Manager{
		store:   store,
		locks:   make(map[string]*lockEntry),
		lockTTL: DefaultLockTTL,
		logger:  logging.NewNop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// acquire gets or creates a lock entry and increments its reference count.
// The caller must lock entry.mu, then call release after unlocking.
func (m *Manager) acquire(docID string) *lockEntry {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, exists := m.locks[docID]
	if !exists {
		entry = &lockEntry{}
		m.locks[docID] = entry
	}
	entry.refs++
	return entry
}

func (m *Manager) release(docID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, exists := m.locks[docID]
	if !exists {
		return
	}
	entry.refs--
	if entry.refs <= 0 {
		delete(m.locks, docID)
	}
}

// Load retrieves a snapshot.
func (m *Manager) Load(ctx context.Context, docID string) (*domain.Tree, error) {
	var tree *domain.Tree
	err := m.WithLock(ctx, docID, func(ctx context.Context) error {
		var err error
		tree, err = m.store.Load(ctx, docID)
		return err
	})
	return tree, err
}

// LoadOrInit loads a snapshot, or saves and returns initial when none exists.
// A nil initial is saved as an empty tree.
func (m *Manager) LoadOrInit(ctx context.Context, docID string, initial *domain.Tree) (*domain.Tree, error) {
	var tree *domain.Tree
	err := m.WithLock(ctx, docID, func(ctx context.Context) error {
		var err error
		tree, err = m.store.Load(ctx, docID)
		if err == nil {
			return nil
		}
		if !errors.Is(err, domain.ErrSnapshotNotFound) {
			return fmt.Errorf("failed to check snapshot existence: %w", err)
		}

		tree = initial
		if tree == nil {
			tree = domain.NewTree()
		}
		if err := m.store.Save(ctx, docID, tree); err != nil {
			return fmt.Errorf("failed to initialize snapshot: %w", err)
		}
		return nil
	})
	return tree, err
}

// Save persists a snapshot.
func (m *Manager) Save(ctx context.Context, docID string, tree *domain.Tree) error {
	return m.WithLock(ctx, docID, func(ctx context.Context) error {
		return m.store.Save(ctx, docID, tree)
	})
}

// Delete removes a snapshot.
func (m *Manager) Delete(ctx context.Context, docID string) error {
	return m.WithLock(ctx, docID, func(ctx context.Context) error {
		return m.store.Delete(ctx, docID)
	})
}

// List delegates to the store.
func (m *Manager) List(ctx context.Context) ([]string, error) {
	return m.store.List(ctx)
}

// Store returns the underlying snapshot store.
func (m *Manager) Store() ports.SnapshotStore {
	return m.store
}

// WithLock executes fn while holding the lock for the document.
func (m *Manager) WithLock(ctx context.Context, docID string, fn func(context.Context) error) error {
	entry := m.acquire(docID)
	entry.mu.Lock()
	defer func() {
		entry.mu.Unlock()
		m.release(docID)
	}()

	if m.locker != nil {
		unlock, err := m.locker.Lock(ctx, docID, m.lockTTL)
		if err != nil {
			return fmt.Errorf("failed to acquire distributed lock: %w", err)
		}
		defer func() {
			if err := unlock(ctx); err != nil {
				m.logger.Warn("Failed to release distributed lock (will expire via TTL)",
					"doc_id", docID,
					"err", err,
				)
			}
		}()
	}

	return fn(ctx)
}
