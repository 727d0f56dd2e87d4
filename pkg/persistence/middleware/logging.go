package middleware

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/aretw0/blocksync/pkg/domain"
	"github.com/aretw0/blocksync/pkg/ports"
)

type loggingMiddleware struct {
	next   ports.SnapshotStore
	logger *slog.Logger
}

// NewLoggingMiddleware logs every snapshot operation at Debug, and failures at Warn.
func NewLoggingMiddleware(logger *slog.Logger) Middleware {
	return func(next ports.SnapshotStore) ports.SnapshotStore {
		return &loggingMiddleware{next: next, logger: logger}
	}
}

func (m *loggingMiddleware) log(op, docID string, start time.Time, err error, attrs ...any) {
	attrs = append(attrs, "op", op, "doc", docID, "elapsed", time.Since(start))
	if err != nil && !errors.Is(err, domain.ErrSnapshotNotFound) {
		m.logger.Warn("Snapshot operation failed", append(attrs, "error", err)...)
		return
	}
	if err != nil {
		attrs = append(attrs, "error", err)
	}
	m.logger.Debug("Snapshot operation", attrs...)
}

func (m *loggingMiddleware) Save(ctx context.Context, docID string, tree *domain.Tree) error {
	start := time.Now()
	err := m.next.Save(ctx, docID, tree)
	m.log("save", docID, start, err, "size", tree.Len())
	return err
}

func (m *loggingMiddleware) Load(ctx context.Context, docID string) (*domain.Tree, error) {
	start := time.Now()
	tree, err := m.next.Load(ctx, docID)
	m.log("load", docID, start, err, "size", tree.Len())
	return tree, err
}

func (m *loggingMiddleware) Delete(ctx context.Context, docID string) error {
	start := time.Now()
	err := m.next.Delete(ctx, docID)
	m.log("delete", docID, start, err)
	return err
}

func (m *loggingMiddleware) List(ctx context.Context) ([]string, error) {
	start := time.Now()
	docs, err := m.next.List(ctx)
	m.log("list", "", start, err, "count", len(docs))
	return docs, err
}
