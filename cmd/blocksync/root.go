package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/aretw0/blocksync/internal/cli"
	"github.com/aretw0/blocksync/internal/config"
	"github.com/spf13/cobra"
)

var (
	cfg      config.Config
	logger   *slog.Logger
	closeLog = func() error { return nil }
)

var rootCmd = &cobra.Command{
	Use:   "blocksync",
	Short: "blocksync keeps block trees and their owners in sync",
	Long: `blocksync binds a block tree value to a store, replays editing scenarios
against the synchronizer, and manages saved document snapshots.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		path, _ := cmd.Flags().GetString("config")
		loaded, err := config.Load(path)
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("log-level") {
			loaded.Log.Level, _ = cmd.Flags().GetString("log-level")
		}
		l, closer, err := cli.NewLogger(loaded.Log.Level, loaded.Log.File)
		if err != nil {
			return err
		}
		cfg, logger, closeLog = loaded, l, closer
		return nil
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		return closeLog()
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "Path to a config file (yaml, json or toml)")
	rootCmd.PersistentFlags().String("log-level", "info", "Log level: debug, info, warn, error")
}

// openBackend opens the configured snapshot backend.
// Callers must close the returned backend.
func openBackend() (*cli.Backend, error) {
	return cli.OpenBackend(cfg.Snapshots, logger)
}
