package observability

import (
	"context"
	"log/slog"

	"github.com/aretw0/blocksync/pkg/domain"
)

// LogHooks logs every synchronizer decision. Bind and unbind are logged at
// Info, the per-value traffic at Debug.
func LogHooks(logger *slog.Logger) domain.SyncHooks {
	at := func(level slog.Level) func(*domain.SyncEvent) {
		return func(e *domain.SyncEvent) {
			logger.Log(context.Background(), level, "sync_"+string(e.Type),
				"target", e.Target.String(),
				"direction", string(e.Direction),
				"persistent", e.Persistent,
				"size", e.Size,
			)
		}
	}
	return domain.SyncHooks{
		OnBind:      at(slog.LevelInfo),
		OnWrite:     at(slog.LevelDebug),
		OnSkip:      at(slog.LevelDebug),
		OnEcho:      at(slog.LevelDebug),
		OnPropagate: at(slog.LevelDebug),
		OnUnbind:    at(slog.LevelInfo),
	}
}

// Chain fans every event out to each hook set, in order.
func Chain(hooks ...domain.SyncHooks) domain.SyncHooks {
	emit := func(e *domain.SyncEvent) {
		for _, h := range hooks {
			h.Emit(e)
		}
	}
	return domain.SyncHooks{
		OnBind:      emit,
		OnWrite:     emit,
		OnSkip:      emit,
		OnEcho:      emit,
		OnPropagate: emit,
		OnUnbind:    emit,
	}
}
