// Package cli implements the agent-memory CLI commands.
package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Polaris-EcoSystems/polaris-rfp-sub002/internal/logging"
)

var (
	dbPath     string
	indexPath  string
	configPath string
	backend    string
	logLevel   string
	noIndex    bool
)

// RootCmd is the top-level command.
var RootCmd = &cobra.Command{
	Use:   "agent-memory",
	Short: "Structured memory for AI agents",
	Long: "Scoped, typed memory entries with relevance-ranked recall and a relationship graph. " +
		"SQLite-backed by default, with an optional Firestore store and a full-text index.",
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level := logLevel
		if level == "" {
			level = os.Getenv("AGENT_MEMORY_LOG_LEVEL")
		}
		if level == "" {
			level = "warn"
		}
		logging.SetDefault(logging.New(level, os.Stderr))
		cmd.SetContext(logging.With(cmd.Context(), logging.Default()))
	},
}

func init() {
	RootCmd.PersistentFlags().StringVarP(&dbPath, "db", "d", "", "Database path (default: $AGENT_MEMORY_DB or ~/.agent-memory/memory.db)")
	RootCmd.PersistentFlags().StringVar(&indexPath, "index", "", "Full-text index path (default: index.db next to the database)")
	RootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "YAML config file (default: $AGENT_MEMORY_CONFIG)")
	RootCmd.PersistentFlags().StringVar(&backend, "backend", "", "Primary store: sqlite or firestore")
	RootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error (default: $AGENT_MEMORY_LOG_LEVEL or warn)")
	RootCmd.PersistentFlags().BoolVar(&noIndex, "no-index", false, "Skip the full-text index")
}

func printJSON(v any) {
	b, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(b))
}

func exitErr(msg string, err error) {
	fmt.Fprintf(os.Stderr, "error: %s: %v\n", msg, err)
	os.Exit(1)
}
