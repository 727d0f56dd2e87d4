package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/aretw0/blocksync/internal/cli"
	"github.com/aretw0/blocksync/internal/presentation/graph"
	"github.com/aretw0/blocksync/internal/presentation/tui"
	"github.com/spf13/cobra"
)

var snapshotCmd = &cobra.Command{
	Use:   "snapshot",
	Short: "Manage saved document snapshots",
	Long:  `List, inspect, import, export and remove snapshots in the configured backend.`,
}

var snapshotLsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List all stored documents",
	RunE: func(cmd *cobra.Command, args []string) error {
		backend, err := openBackend()
		if err != nil {
			return err
		}
		defer backend.Close()

		ids, err := backend.Manager(logger).List(cmd.Context())
		if err != nil {
			return fmt.Errorf("failed to list snapshots: %w", err)
		}
		out := cmd.OutOrStdout()
		if len(ids) == 0 {
			fmt.Fprintln(out, "No snapshots found.")
			return nil
		}
		fmt.Fprintln(out, "Snapshots:")
		for _, id := range ids {
			fmt.Fprintln(out, "- "+id)
		}
		return nil
	},
}

var snapshotInspectCmd = &cobra.Command{
	Use:   "inspect <doc-id>",
	Short: "Print a snapshot as JSON, YAML or a rendered outline",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		format, _ := cmd.Flags().GetString("format")

		backend, err := openBackend()
		if err != nil {
			return err
		}
		defer backend.Close()

		tree, err := backend.Manager(logger).Load(cmd.Context(), args[0])
		if err != nil {
			return fmt.Errorf("failed to load snapshot '%s': %w", args[0], err)
		}

		out := cmd.OutOrStdout()
		switch format {
		case "json":
			data, err := json.MarshalIndent(tree, "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintln(out, string(data))
		case "yaml":
			data, err := cli.EncodeTreeYAML(tree)
			if err != nil {
				return err
			}
			fmt.Fprint(out, string(data))
		case "outline":
			md := cli.InspectMarkdown(args[0], tree)
			if tui.IsInteractive(os.Stdout) {
				if rendered, err := tui.NewRenderer()(md); err == nil {
					md = rendered
				}
			}
			fmt.Fprint(out, md)
		default:
			return fmt.Errorf("unknown format %q (want json, yaml or outline)", format)
		}
		return nil
	},
}

var snapshotPutCmd = &cobra.Command{
	Use:   "put <doc-id> <file>",
	Short: "Validate a YAML or JSON node list and save it",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		tree, err := cli.ReadTreeFile(args[1])
		if err != nil {
			return err
		}

		backend, err := openBackend()
		if err != nil {
			return err
		}
		defer backend.Close()

		if err := backend.Manager(logger).Save(cmd.Context(), args[0], tree); err != nil {
			return fmt.Errorf("failed to save snapshot '%s': %w", args[0], err)
		}
		cli.PrintSystemMessage(cmd.OutOrStdout(), "Saved '%s' (%d top-level nodes).", args[0], tree.Len())
		return nil
	},
}

var snapshotRmCmd = &cobra.Command{
	Use:   "rm <doc-id>...",
	Short: "Remove one or more snapshots",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		backend, err := openBackend()
		if err != nil {
			return err
		}
		defer backend.Close()

		mgr := backend.Manager(logger)
		out := cmd.OutOrStdout()
		failed := 0
		for _, id := range args {
			if err := mgr.Delete(cmd.Context(), id); err != nil {
				fmt.Fprintf(out, "Error removing '%s': %v\n", id, err)
				failed++
				continue
			}
			fmt.Fprintf(out, "Removed snapshot '%s'\n", id)
		}
		if failed > 0 {
			return fmt.Errorf("%d of %d removals failed", failed, len(args))
		}
		return nil
	},
}

var snapshotGraphCmd = &cobra.Command{
	Use:   "graph <doc-id>",
	Short: "Export a snapshot as a Mermaid diagram",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		backend, err := openBackend()
		if err != nil {
			return err
		}
		defer backend.Close()

		tree, err := backend.Manager(logger).Load(cmd.Context(), args[0])
		if err != nil {
			return fmt.Errorf("failed to load snapshot '%s': %w", args[0], err)
		}
		fmt.Fprint(cmd.OutOrStdout(), graph.GenerateMermaid(args[0], tree, nil))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(snapshotCmd)
	snapshotCmd.AddCommand(snapshotLsCmd, snapshotInspectCmd, snapshotPutCmd, snapshotRmCmd, snapshotGraphCmd)
	snapshotInspectCmd.Flags().StringP("format", "f", "json", "Output format: json, yaml or outline")
}
