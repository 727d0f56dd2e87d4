package main

import (
	"fmt"
	"strings"

	"github.com/aretw0/blocksync"
	"github.com/aretw0/blocksync/internal/presentation/tui"
	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of blocksync",
	Run: func(cmd *cobra.Command, args []string) {
		if banner, _ := cmd.Flags().GetBool("banner"); banner {
			tui.PrintBanner(cmd.OutOrStdout(), blocksync.Version)
			return
		}
		fmt.Fprintf(cmd.OutOrStdout(), "blocksync version %s\n", strings.TrimSpace(blocksync.Version))
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
	versionCmd.Flags().Bool("banner", false, "Print the banner")
}
