// Package main provides the mentor CLI: it evaluates learning activities and
// platform triggers against a user's career progress profile, persisting the
// result in the configured store.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var (
	rulesPath   string
	storeDriver string
	sqlitePath  string
	logLevel    string
)

var rootCmd = &cobra.Command{
	Use:           "mentor",
	Short:         "Career progress engine",
	Long:          "mentor awards XP, tracks streaks, unlocks achievements and completes milestones for career mentoring profiles.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&rulesPath, "rules", "", "Path to a rules YAML file (defaults to RULES_PATH or the built-in rules)")
	rootCmd.PersistentFlags().StringVar(&storeDriver, "store", "", "Store driver override: memory, sqlite or postgres")
	rootCmd.PersistentFlags().StringVar(&sqlitePath, "sqlite-path", "", "SQLite database file (overrides SQLITE_PATH)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level override: debug, info, warn, error")
}

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		stop()
		os.Exit(1)
	}
}
