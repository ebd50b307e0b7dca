// Command roleforge wires the orchestration core up to reference
// storage and LLM adapters and exposes it as a CLI.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/terraphim-labs/roleforge/pkg/roleforgelog"
)

var (
	llmEndpoint string
	sqlitePath  string
	verbose     bool
)

var rootCmd = &cobra.Command{
	Use:   "roleforge",
	Short: "Multi-agent orchestration over a shared role-scoped knowledge graph",
	Long: `roleforge drives agents through chain, orchestrator-worker,
evaluator-optimizer, and orchestration workflows against a shared
role-scoped knowledge graph, with per-agent memory and telemetry.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var log *zap.Logger
		var err error
		if verbose {
			log, err = zap.NewDevelopment()
		} else {
			log, err = zap.NewProduction()
		}
		if err != nil {
			return fmt.Errorf("build logger: %w", err)
		}
		roleforgelog.SetLogger(log)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&llmEndpoint, "llm-endpoint", "", "HTTP endpoint of the LLM completion service (required by run)")
	rootCmd.PersistentFlags().StringVar(&sqlitePath, "sqlite", "", "path to a SQLite state file (defaults to an in-memory store)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable development-mode logging")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(graphCmd)
	rootCmd.AddCommand(telemetryCmd)
	rootCmd.AddCommand(agentCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
