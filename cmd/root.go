// Package cmd wires the stockroom subcommands.
package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "stockroom",
	Short: "Cache coordination service for the retail operations backend",
	Long: `stockroom keeps the hot read paths of the retail operations backend warm:
it pre-populates reference data, dashboard aggregates, point-of-sale snapshots
and ML demand predictions into the cache, refreshes them in the background and
exposes an operational HTTP API for invalidation and statistics.`,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to YAML config file")
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(migrateCmd)
}

// Execute runs the root command. Called once from main.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
