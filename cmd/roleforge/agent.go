package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/terraphim-labs/roleforge/pkg/agentcore"
	"github.com/terraphim-labs/roleforge/pkg/config"
	"github.com/terraphim-labs/roleforge/pkg/evolution"
	"github.com/terraphim-labs/roleforge/pkg/llm/httpadapter"
	"github.com/terraphim-labs/roleforge/pkg/registry"
	"github.com/terraphim-labs/roleforge/pkg/roleforgelog"
	"github.com/terraphim-labs/roleforge/pkg/storage"
	"github.com/terraphim-labs/roleforge/pkg/storage/sqlite"
)

var (
	agentID       string
	agentRole     string
	agentDocsFile string
)

var agentCmd = &cobra.Command{
	Use:   "agent",
	Short: "Drive a single agent's command loop end to end",
}

func openStore() (storage.Adapter, func() error, error) {
	if sqlitePath == "" {
		return storage.NewMemoryAdapter(), func() error { return nil }, nil
	}
	a, err := sqlite.Open(sqlitePath)
	if err != nil {
		return nil, nil, fmt.Errorf("open sqlite store: %w", err)
	}
	return a, a.Close, nil
}

var agentDispatchCmd = &cobra.Command{
	Use:   "dispatch <query>",
	Short: "Assemble enriched context from --docs and dispatch one command against --llm-endpoint",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if llmEndpoint == "" {
			return fmt.Errorf("--llm-endpoint is required")
		}

		settings, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}

		graph, err := loadGraph(agentDocsFile, agentRole)
		if err != nil {
			return err
		}

		store, closeStore, err := openStore()
		if err != nil {
			return err
		}
		defer closeStore()

		reg := registry.New()
		if err := reg.Register(registry.AgentMetadata{ID: agentID, Status: registry.Ready}); err != nil {
			return fmt.Errorf("register agent: %w", err)
		}

		evo := evolution.NewStore(agentID, store)
		adapter := httpadapter.New(llmEndpoint)
		agent := agentcore.New(agentID, agentRole, reg, graph, evo, adapter, nil, settings, roleforgelog.Named(nil, "agent"))

		ctx := context.Background()
		if err := agent.Initialize(ctx); err != nil {
			return fmt.Errorf("load agent state: %w", err)
		}

		record, err := agent.Dispatch(ctx, agentcore.CmdAnswer, args[0])
		if err != nil {
			return fmt.Errorf("dispatch: %w", err)
		}

		if err := agent.SaveState(ctx); err != nil {
			return fmt.Errorf("save agent state: %w", err)
		}

		fmt.Printf("quality=%.2f duration=%s\n\n", record.Quality, record.Duration)
		for _, item := range agent.Context() {
			if item.Role == "assistant" {
				fmt.Println(item.Content)
			}
		}
		return nil
	},
}

func init() {
	agentCmd.PersistentFlags().StringVar(&agentID, "id", "cli-agent", "agent identifier, also the suffix of the evolution store's record key")
	agentCmd.PersistentFlags().StringVar(&agentRole, "role", "generalist", "role label surfaced to the LLM adapter and used as the role graph's name")
	agentCmd.PersistentFlags().StringVar(&agentDocsFile, "docs", "", "path to a JSON array of {id,title,body,tags} documents to seed the role graph")
	agentCmd.MarkPersistentFlagRequired("docs")

	agentCmd.AddCommand(agentDispatchCmd)
}
