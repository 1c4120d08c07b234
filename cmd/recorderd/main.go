package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/kiwatt/recorderd/cmd/recorderd/commands"
	"github.com/kiwatt/recorderd/logger"
)

var jsonLogs bool

var rootCmd = &cobra.Command{
	Use:   "recorderd",
	Short: "recorderd - SDR capture job manager",
	Long: `recorderd manages recording jobs against a KiwiSDR receiver.

It validates capture requests against hardware limits, runs captures as
supervised kiwirecorder.py processes (once or on a repeating interval),
and serves job status and logs to the polling web client.

Examples:
  recorderd serve                  # Start the API daemon
  recorderd serve --config x.toml  # Start with an explicit config file
  recorderd version                # Show version`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := logger.Initialize(jsonLogs); err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&jsonLogs, "json", false, "Emit JSON structured logs")

	rootCmd.AddCommand(commands.ServeCmd)
	rootCmd.AddCommand(commands.VersionCmd)
}

func main() {
	defer logger.Cleanup()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
