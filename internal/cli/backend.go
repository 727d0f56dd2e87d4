package cli

import (
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/aretw0/blocksync/internal/config"
	"github.com/aretw0/blocksync/pkg/adapters/file"
	"github.com/aretw0/blocksync/pkg/adapters/memory"
	"github.com/aretw0/blocksync/pkg/adapters/redis"
	"github.com/aretw0/blocksync/pkg/adapters/sqlite"
	"github.com/aretw0/blocksync/pkg/autosave"
	"github.com/aretw0/blocksync/pkg/persistence/middleware"
	"github.com/aretw0/blocksync/pkg/ports"
)

// Backend is an opened snapshot backend plus whatever must be closed with it.
type Backend struct {
	Store  ports.SnapshotStore
	Locker ports.DistributedLocker

	closers []io.Closer
}

// Close releases connections held by the backend.
func (b *Backend) Close() error {
	var errs []error
	for _, c := range b.closers {
		errs = append(errs, c.Close())
	}
	return errors.Join(errs...)
}

// Manager wraps the backend in an autosave manager.
func (b *Backend) Manager(logger *slog.Logger) *autosave.Manager {
	opts := []autosave.Option{autosave.WithLogger(logger)}
	if b.Locker != nil {
		opts = append(opts, autosave.WithLocker(b.Locker))
	}
	return autosave.NewManager(b.Store, opts...)
}

// OpenBackend builds the snapshot store selected by cfg. Snapshots are
// encrypted when a key is configured, and every call is logged at debug.
func OpenBackend(cfg config.SnapshotsConfig, logger *slog.Logger) (*Backend, error) {
	b := &Backend{}

	switch cfg.Backend {
	case config.BackendMemory:
		b.Store = memory.NewSnapshotStore()
	case config.BackendFile:
		b.Store = file.New(cfg.Dir)
	case config.BackendSQLite:
		store, err := sqlite.Open(cfg.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("failed to open sqlite backend: %w", err)
		}
		b.Store = store
		b.closers = append(b.closers, store)
	case config.BackendRedis:
		prefix := cfg.Redis.Prefix
		if prefix == "" {
			prefix = redis.DefaultPrefix
		}
		opts := []redis.Option{redis.WithPrefix(prefix)}
		if cfg.Redis.TTL > 0 {
			opts = append(opts, redis.WithTTL(cfg.Redis.TTL))
		}
		store := redis.New(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, opts...)
		b.Store = store
		b.Locker = redis.NewLocker(store.Client(), prefix)
		b.closers = append(b.closers, store)
	default:
		return nil, fmt.Errorf("unknown snapshots backend %q", cfg.Backend)
	}

	mws := []middleware.Middleware{middleware.NewLoggingMiddleware(logger)}
	if cfg.EncryptionKey != "" {
		key, err := middleware.DecodeKey(cfg.EncryptionKey)
		if err != nil {
			_ = b.Close()
			return nil, fmt.Errorf("invalid encryption key: %w", err)
		}
		mws = append(mws, middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: key}))
	}
	b.Store = middleware.Chain(b.Store, mws...)

	logger.Debug("Snapshot backend opened", "backend", cfg.Backend, "encrypted", cfg.EncryptionKey != "")
	return b, nil
}
