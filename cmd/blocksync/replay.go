package main

import (
	"fmt"
	"os"

	"github.com/aretw0/blocksync/internal/cli"
	"github.com/aretw0/blocksync/internal/presentation/tui"
	"github.com/muesli/termenv"
	"github.com/spf13/cobra"
)

var replayCmd = &cobra.Command{
	Use:   "replay [scenario.yaml]",
	Short: "Replay an editing scenario and print the sync trace",
	Long: `Runs every step of a scenario file against in-memory stores and prints what
the synchronizer did at each step: writes, skips, echoes and propagations.

With --dir, every document of a directory whose frontmatter declares steps
is replayed in ID order.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dir, _ := cmd.Flags().GetString("dir")
		if (dir == "") == (len(args) == 0) {
			return fmt.Errorf("pass either a scenario file or --dir")
		}
		path := ""
		if len(args) == 1 {
			path = args[0]
		}
		jsonMode, _ := cmd.Flags().GetBool("json")
		summary, _ := cmd.Flags().GetBool("summary")
		saveAs, _ := cmd.Flags().GetString("save")

		profile := termenv.Ascii
		if tui.IsInteractive(os.Stdout) {
			profile = termenv.EnvColorProfile()
		}

		opts := cli.ReplayOptions{
			Path:    path,
			Dir:     dir,
			JSON:    jsonMode,
			Summary: summary,
			SaveAs:  saveAs,
			Profile: profile,
			Out:     cmd.OutOrStdout(),
		}

		backend, err := openBackend()
		if err != nil {
			return err
		}
		defer backend.Close()

		ctx := cli.NewSignalContext(cmd.Context())
		defer ctx.Stop()
		return cli.Replay(ctx, opts, backend.Manager(logger), logger)
	},
}

func init() {
	rootCmd.AddCommand(replayCmd)
	replayCmd.Flags().String("dir", "", "Replay every scenario document in this directory")
	replayCmd.Flags().Bool("json", false, "Print the trace as JSON")
	replayCmd.Flags().Bool("summary", false, "Print a rendered markdown summary instead of the trace")
	replayCmd.Flags().String("save", "", "Save the final tree of the default store as a snapshot")
}
