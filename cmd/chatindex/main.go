// Package main implements the chatindex CLI: build a searchable index from a
// ChatGPT data export and query it from the terminal, over HTTP or over MCP.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

// Version information (set via ldflags during build)
var (
	version   = "dev"
	gitCommit = "unknown"
	buildDate = "unknown"
)

var (
	dbFlag       string
	configFlag   string
	logLevelFlag string
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, errorStyle.Render("Error:"), err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "chatindex",
	Short: "Search ChatGPT conversation exports",
	Long: `chatindex builds a full-text index from a ChatGPT data export
(conversations.json) and searches it with SQLite FTS5.

Examples:
  chatindex build --export ~/Downloads/conversations.json
  chatindex search "transformer attention"
  chatindex search kubernetes --role user --since 2025-01
  chatindex search "machine learning" --lang ru
  chatindex show abc123
  chatindex stats
  chatindex keywords --conversation abc123`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&dbFlag, "db", "", "path to the index database (default: index.db_path from config, ~/.chatindex/index.db)")
	rootCmd.PersistentFlags().StringVar(&configFlag, "config", "", "path to config file (default: ~/.config/chatindex/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevelFlag, "log-level", "", "log level: trace, debug, info, warn, error")

	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, _ []string) {
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "chatindex by Fyrsmith Labs\n")
		fmt.Fprintf(out, "Version:    %s\n", version)
		fmt.Fprintf(out, "Commit:     %s\n", gitCommit)
		fmt.Fprintf(out, "Build Date: %s\n", buildDate)
	},
}
