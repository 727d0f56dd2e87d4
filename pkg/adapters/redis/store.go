// Package redis provides Redis-backed snapshot persistence and distributed locking.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/aretw0/blocksync/pkg/domain"
	"github.com/aretw0/blocksync/pkg/ports"
	backend "github.com/redis/go-redis/v9"
)

// DefaultPrefix namespaces every key written by this package.
const DefaultPrefix = "blocksync:snapshot:"

// Scores of documents without expiration (2100-01-01).
const noExpiryScore = 4102444800

// SnapshotStore implements ports.SnapshotStore using Redis.
// Documents are JSON strings; a sorted set indexes them by expiry.
type SnapshotStore struct {
	client *backend.Client
	prefix string
	ttl    time.Duration
	now    func() time.Time
}

type Option func(*SnapshotStore)

// WithTTL sets the expiration of saved snapshots. Zero keeps them forever.
func WithTTL(ttl time.Duration) Option {
	return func(s *SnapshotStore) {
		s.ttl = ttl
	}
}

// WithPrefix sets the key prefix.
func WithPrefix(prefix string) Option {
	return func(s *SnapshotStore) {
		s.prefix = prefix
	}
}

// WithClock overrides the clock used to score the expiry index.
func WithClock(now func() time.Time) Option {
	return func(s *SnapshotStore) {
		s.now = now
	}
}

// New creates a store with its own client.
func New(address, password string, db int, opts ...Option) *SnapshotStore {
	return NewFromClient(backend.NewClient(&backend.Options{
		Addr:     address,
		Password: password,
		DB:       db,
	}), opts...)
}

// NewFromClient creates a store from an existing client.
func NewFromClient(client *backend.Client, opts ...Option) *SnapshotStore {
	store := &SnapshotStore{
		client: client,
		prefix: DefaultPrefix,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(store)
	}
	return store
}

var _ ports.SnapshotStore = (*SnapshotStore)(nil)

// Client exposes the underlying client so a Locker can share the connection.
func (s *SnapshotStore) Client() *backend.Client {
	return s.client
}

func (s *SnapshotStore) key(docID string) string {
	return s.prefix + docID
}

func (s *SnapshotStore) indexKey() string {
	return s.prefix + "index"
}

// Save writes the JSON document and its index entry in one pipeline.
func (s *SnapshotStore) Save(ctx context.Context, docID string, tree *domain.Tree) error {
	data, err := json.Marshal(tree)
	if err != nil {
		return fmt.Errorf("failed to marshal tree: %w", err)
	}

	score := float64(s.now().Add(s.ttl).Unix())
	if s.ttl == 0 {
		score = noExpiryScore
	}

	pipe := s.client.Pipeline()
	pipe.Set(ctx, s.key(docID), data, s.ttl)
	pipe.ZAdd(ctx, s.indexKey(), backend.Z{Score: score, Member: docID})
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to save to redis: %w", err)
	}
	return nil
}

// Load retrieves and decodes a document.
func (s *SnapshotStore) Load(ctx context.Context, docID string) (*domain.Tree, error) {
	val, err := s.client.Get(ctx, s.key(docID)).Bytes()
	if err != nil {
		if errors.Is(err, backend.Nil) {
			return nil, domain.ErrSnapshotNotFound
		}
		return nil, fmt.Errorf("failed to get from redis: %w", err)
	}

	tree := domain.NewTree()
	if err := json.Unmarshal(val, tree); err != nil {
		return nil, fmt.Errorf("failed to unmarshal snapshot %q: %w", docID, err)
	}
	return tree, nil
}

// Delete removes the document and its index entry.
func (s *SnapshotStore) Delete(ctx context.Context, docID string) error {
	pipe := s.client.Pipeline()
	pipe.Del(ctx, s.key(docID))
	pipe.ZRem(ctx, s.indexKey(), docID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to delete from redis: %w", err)
	}
	return nil
}

// List prunes expired index entries, then returns the remaining IDs.
func (s *SnapshotStore) List(ctx context.Context) ([]string, error) {
	now := fmt.Sprintf("%d", s.now().Unix())
	if err := s.client.ZRemRangeByScore(ctx, s.indexKey(), "-inf", "("+now).Err(); err != nil {
		return nil, fmt.Errorf("failed to prune expired snapshots: %w", err)
	}

	docs, err := s.client.ZRange(ctx, s.indexKey(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list snapshots: %w", err)
	}
	return docs, nil
}

// Close closes the redis client.
func (s *SnapshotStore) Close() error {
	return s.client.Close()
}
