// Package cmd implements the storewatchd command-line interface.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	cfgFile   string
	logFormat string
)

var rootCmd = &cobra.Command{
	Use:   "storewatchd",
	Short: "Store uptime monitoring and report service",
	Long: `storewatchd estimates per-store uptime and downtime over trailing hour,
day, and week windows from sparse status observations, restricted to each
store's local business hours. It serves a REST API for triggering report
generation and downloading results, backed by SQLite or PostgreSQL.`,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file path")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "json", "log format (text or json)")
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
