// Package http exposes snapshots and live stores over a small JSON API.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/aretw0/blocksync/internal/logging"
	"github.com/aretw0/blocksync/internal/presentation/graph"
	"github.com/aretw0/blocksync/internal/validator"
	"github.com/aretw0/blocksync/pkg/autosave"
	"github.com/aretw0/blocksync/pkg/domain"
	"github.com/aretw0/blocksync/pkg/ports"
	"github.com/aretw0/blocksync/pkg/registry"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// maxBodyBytes caps snapshot uploads.
const maxBodyBytes = 8 << 20

// Server serves snapshot documents and read-only views of registered stores.
type Server struct {
	snapshots *autosave.Manager
	stores    *registry.Registry
	gatherer  prometheus.Gatherer
	logger    *slog.Logger
}

// Option configures the Server.
type Option func(*Server)

// WithRegistry exposes the stores of r under /stores.
func WithRegistry(r *registry.Registry) Option {
	return func(s *Server) {
		s.stores = r
	}
}

// WithGatherer serves g under /metrics.
func WithGatherer(g prometheus.Gatherer) Option {
	return func(s *Server) {
		s.gatherer = g
	}
}

// WithLogger sets the request logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// NewHandler creates the HTTP handler over a snapshot manager.
func NewHandler(snapshots *autosave.Manager, opts ...Option) http.Handler {
	s := &Server{
		snapshots: snapshots,
		stores:    registry.NewRegistry(),
		logger:    logging.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}

	r := chi.NewRouter()
	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/snapshots", func(r chi.Router) {
		r.Get("/", s.listSnapshots)
		r.Get("/{id}", s.getSnapshot)
		r.Put("/{id}", s.putSnapshot)
		r.Delete("/{id}", s.deleteSnapshot)
		r.Get("/{id}/graph", s.snapshotGraph)
	})

	r.Route("/stores", func(r chi.Router) {
		r.Get("/", s.listStores)
		r.Get("/{name}/root", s.storeRoot)
		r.Get("/{name}/graph", s.storeGraph)
		r.Get("/{name}/events", s.storeEvents)
	})

	if s.gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}

	return enableCORS(r)
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) listSnapshots(w http.ResponseWriter, r *http.Request) {
	ids, err := s.snapshots.List(r.Context())
	if err != nil {
		s.fail(w, "list snapshots", err)
		return
	}
	if ids == nil {
		ids = []string{}
	}
	writeJSON(w, http.StatusOK, map[string][]string{"documents": ids})
}

func (s *Server) getSnapshot(w http.ResponseWriter, r *http.Request) {
	tree, err := s.snapshots.Load(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, "load snapshot", err)
		return
	}
	writeJSON(w, http.StatusOK, tree)
}

func (s *Server) putSnapshot(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		s.logger.Warn("snapshot upload rejected", "doc_id", id, "error", err)
		return
	}
	tree := domain.NewTree()
	if err := json.Unmarshal(data, tree); err != nil {
		http.Error(w, "Invalid tree", http.StatusBadRequest)
		s.logger.Warn("snapshot upload rejected", "doc_id", id, "error", err)
		return
	}
	if err := validator.ValidateTree(tree); err != nil {
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
		return
	}

	err = s.snapshots.WithLock(r.Context(), id, func(ctx context.Context) error {
		return s.snapshots.Store().Save(ctx, id, tree)
	})
	if err != nil {
		s.fail(w, "save snapshot", err)
		return
	}
	s.logger.Info("snapshot saved", "doc_id", id, "size", tree.Len())
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) deleteSnapshot(w http.ResponseWriter, r *http.Request) {
	if err := s.snapshots.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.fail(w, "delete snapshot", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) snapshotGraph(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	tree, err := s.snapshots.Load(r.Context(), id)
	if err != nil {
		s.fail(w, "load snapshot", err)
		return
	}
	writeText(w, graph.GenerateMermaid(id, tree, nil))
}

func (s *Server) listStores(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string][]string{"stores": s.stores.Names()})
}

func (s *Server) storeRoot(w http.ResponseWriter, r *http.Request) {
	store, ok := s.lookup(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, store.Root())
}

func (s *Server) storeGraph(w http.ResponseWriter, r *http.Request) {
	store, ok := s.lookup(w, r)
	if !ok {
		return
	}
	root := store.Root()
	overlay := &graph.GraphOverlay{}
	root.Walk(func(_ string, n *domain.Node) bool {
		if store.IsControlled(n.ID) {
			overlay.Controlled = append(overlay.Controlled, n.ID)
		}
		return true
	})
	writeText(w, graph.GenerateMermaid(chi.URLParam(r, "name"), root, overlay))
}

func (s *Server) lookup(w http.ResponseWriter, r *http.Request) (ports.Store, bool) {
	store, err := s.stores.Get(chi.URLParam(r, "name"))
	if err != nil {
		s.fail(w, "find store", err)
		return nil, false
	}
	return store, true
}

// fail maps domain errors to status codes.
func (s *Server) fail(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, domain.ErrSnapshotNotFound), errors.Is(err, registry.ErrStoreNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	default:
		http.Error(w, fmt.Sprintf("failed to %s", op), http.StatusInternalServerError)
		s.logger.Error("request failed", "op", op, "error", err)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("response encode failed", "error", err)
	}
}

func writeText(w http.ResponseWriter, body string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = io.WriteString(w, body)
}
