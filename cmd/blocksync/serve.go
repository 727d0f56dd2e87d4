package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/aretw0/blocksync/internal/cli"
	httpAdapter "github.com/aretw0/blocksync/pkg/adapters/http"
	"github.com/aretw0/blocksync/pkg/adapters/memory"
	"github.com/aretw0/blocksync/pkg/autosave"
	"github.com/aretw0/blocksync/pkg/domain"
	"github.com/aretw0/blocksync/pkg/registry"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 5 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the snapshot HTTP server",
	Long: `Serves snapshots and live stores over HTTP. With --live <doc-id>, the document
is loaded into an in-memory store exposed under /stores and saved back on every
persistent change.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		addr := cfg.HTTP.Addr
		if cmd.Flags().Changed("addr") {
			addr, _ = cmd.Flags().GetString("addr")
		}
		live, _ := cmd.Flags().GetString("live")

		backend, err := openBackend()
		if err != nil {
			return err
		}
		defer backend.Close()
		mgr := backend.Manager(logger)

		reg := prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		stores := registry.NewRegistry()

		ctx := cli.NewSignalContext(cmd.Context())
		defer ctx.Stop()

		if live != "" {
			detach, err := attachLive(ctx, mgr, stores, live)
			if err != nil {
				return err
			}
			defer detach()
		}

		srv := &http.Server{
			Addr: addr,
			Handler: httpAdapter.NewHandler(mgr,
				httpAdapter.WithRegistry(stores),
				httpAdapter.WithGatherer(reg),
				httpAdapter.WithLogger(logger),
			),
		}

		serverErrors := make(chan error, 1)
		go func() {
			logger.Info("Starting blocksync server", "addr", srv.Addr, "backend", cfg.Snapshots.Backend)
			serverErrors <- srv.ListenAndServe()
		}()

		select {
		case err := <-serverErrors:
			if errors.Is(err, http.ErrServerClosed) {
				return nil
			}
			return fmt.Errorf("server error: %w", err)

		case <-ctx.Done():
			logger.Info("Start shutdown", "signal", ctx.Signal())

			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()

			if err := srv.Shutdown(shutdownCtx); err != nil {
				logger.Warn("Graceful shutdown did not complete", "timeout", shutdownTimeout, "error", err)
				if err := srv.Close(); err != nil {
					return fmt.Errorf("failed to close server: %w", err)
				}
			}
			logger.Info("blocksync server stopped gracefully")
			return nil
		}
	},
}

// attachLive restores docID into a registered memory store and autosaves it.
// A missing document starts empty.
func attachLive(ctx context.Context, mgr *autosave.Manager, stores *registry.Registry, docID string) (func(), error) {
	store := memory.NewStore(memory.WithLogger(logger))
	tree, err := mgr.Restore(ctx, store, docID)
	switch {
	case errors.Is(err, domain.ErrSnapshotNotFound):
		tree = store.Root()
	case err != nil:
		return nil, err
	}
	stores.Register(docID, store)

	unsubscribe := mgr.Attach(ctx, store, docID)
	logger.Info("Live store attached", "doc_id", docID, "size", tree.Len())
	return func() {
		unsubscribe()
		stores.Unregister(docID)
	}, nil
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringP("addr", "a", ":8080", "Address to listen on")
	serveCmd.Flags().String("live", "", "Expose this document as a live store with autosave")
}
