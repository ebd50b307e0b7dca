package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/terraphim-labs/roleforge/pkg/llm/httpadapter"
	"github.com/terraphim-labs/roleforge/pkg/workflow"
)

var runSteps []string

var runCmd = &cobra.Command{
	Use:   "run <prompt>",
	Short: "Run a chain workflow against --llm-endpoint and print the final result",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if llmEndpoint == "" {
			return fmt.Errorf("--llm-endpoint is required")
		}
		adapter := httpadapter.New(llmEndpoint)

		steps := make([]workflow.ChainStep, 0, len(runSteps))
		if len(runSteps) == 0 {
			steps = append(steps, workflow.ChainStep{Name: "respond", SystemPrompt: "Respond helpfully and concisely."})
		}
		for i, raw := range runSteps {
			steps = append(steps, workflow.ChainStep{Name: fmt.Sprintf("step-%d", i+1), SystemPrompt: raw})
		}

		chain := workflow.NewChain(adapter, steps)
		output, err := chain.Run(context.Background(), workflow.WorkflowInput{Prompt: args[0]})
		if err != nil {
			return fmt.Errorf("run chain: %w", err)
		}

		for _, step := range output.ExecutionTrace {
			fmt.Printf("[%s] (%s) success=%v\n", step.StepID, step.Duration, step.Success)
		}
		fmt.Println()
		fmt.Println(output.Result)
		return nil
	},
}

func init() {
	runCmd.Flags().StringArrayVar(&runSteps, "step", nil, "a system prompt for one chain step, repeatable; defaults to a single generic step")
}
