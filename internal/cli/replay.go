package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/aretw0/blocksync/internal/presentation/tui"
	"github.com/aretw0/blocksync/internal/scenario"
	"github.com/aretw0/blocksync/pkg/adapters/loam"
	"github.com/aretw0/blocksync/pkg/autosave"
	"github.com/aretw0/blocksync/pkg/observability"
	"github.com/muesli/termenv"
	"github.com/prometheus/client_golang/prometheus"
)

// ReplayOptions controls how a scenario run is reported.
type ReplayOptions struct {
	Path string
	// Dir replays every scenario document of a directory instead of Path.
	Dir     string
	JSON    bool
	Summary bool
	// SaveAs stores the default store's final root under this document ID.
	SaveAs  string
	Profile termenv.Profile
	Out     io.Writer
}

// ErrSaveWithDir is returned when a directory replay is asked to save a snapshot.
var ErrSaveWithDir = errors.New("saving a snapshot requires a single scenario")

// Replay runs a scenario file and writes its trace. The trace is written
// even when a step fails, and the step error is returned afterwards.
func Replay(ctx context.Context, opts ReplayOptions, snapshots *autosave.Manager, logger *slog.Logger) error {
	if opts.Dir != "" {
		return replayDir(ctx, opts, logger)
	}
	sc, err := scenario.LoadFile(opts.Path)
	if err != nil {
		return err
	}
	return replay(ctx, sc, opts, snapshots, logger)
}

// replayDir runs every scenario of opts.Dir in ID order. A failing scenario
// does not stop the others; their errors are joined.
func replayDir(ctx context.Context, opts ReplayOptions, logger *slog.Logger) error {
	if opts.SaveAs != "" {
		return ErrSaveWithDir
	}
	loader, err := loam.Open(opts.Dir)
	if err != nil {
		return err
	}
	docs, err := loader.LoadAll(ctx)
	if err != nil {
		return err
	}
	if len(docs) == 0 {
		return fmt.Errorf("no scenarios found in %s", opts.Dir)
	}

	var errs []error
	for _, doc := range docs {
		if err := ctx.Err(); err != nil {
			return errors.Join(append(errs, err)...)
		}
		logger.Info("Replaying scenario", "id", doc.ID, "steps", len(doc.Scenario.Steps))
		if err := replay(ctx, doc.Scenario, opts, nil, logger); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", doc.ID, err))
		}
	}
	return errors.Join(errs...)
}

func replay(ctx context.Context, sc *scenario.Scenario, opts ReplayOptions, snapshots *autosave.Manager, logger *slog.Logger) error {
	metrics := observability.NewMetrics(prometheus.NewRegistry())
	runner := scenario.NewRunner(
		scenario.WithLogger(logger),
		scenario.WithHooks(observability.Chain(observability.LogHooks(logger), metrics.Hooks())),
	)

	trace, runErr := runner.Run(ctx, sc)
	if err := writeTrace(opts, trace); err != nil {
		return err
	}
	if runErr != nil {
		return runErr
	}

	if opts.SaveAs != "" {
		store, err := runner.Registry().Get(scenario.DefaultStore)
		if err != nil {
			return err
		}
		if err := snapshots.Save(ctx, opts.SaveAs, store.Root()); err != nil {
			return err
		}
		logger.Info("Scenario result saved", "doc_id", opts.SaveAs, "size", store.Root().Len())
	}
	return nil
}

func writeTrace(opts ReplayOptions, trace *scenario.Trace) error {
	switch {
	case opts.JSON:
		enc := json.NewEncoder(opts.Out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(trace); err != nil {
			return fmt.Errorf("failed to encode trace: %w", err)
		}
	case opts.Summary:
		out, err := tui.NewRenderer()(tui.Summary(trace))
		if err != nil {
			return fmt.Errorf("failed to render summary: %w", err)
		}
		fmt.Fprint(opts.Out, out)
	default:
		tui.PrintTrace(opts.Out, trace, opts.Profile)
	}
	return nil
}
