package workflow

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/terraphim-labs/roleforge/pkg/llm"
)

// ChainStep is one transformation in a Chain run: a system prompt
// describing what this step does to its input.
type ChainStep struct {
	Name         string
	SystemPrompt string
}

// Chain runs a fixed sequence of LLM transformations, each consuming
// the previous step's output as input. There is no fan-out — a single
// adapter drives every step.
type Chain struct {
	adapter llm.Adapter
	steps   []ChainStep
}

// NewChain returns a Chain over the given steps, executed in order.
func NewChain(adapter llm.Adapter, steps []ChainStep) *Chain {
	return &Chain{adapter: adapter, steps: steps}
}

// Run feeds input.Prompt through every step in sequence, tracing each
// transformation.
func (c *Chain) Run(ctx context.Context, input WorkflowInput) (WorkflowOutput, error) {
	current := input.Prompt
	var trace []ExecutionStep

	for _, step := range c.steps {
		start := time.Now()
		completion, err := c.adapter.Complete(ctx, []llm.Message{
			{Role: llm.RoleSystem, Content: step.SystemPrompt},
			{Role: llm.RoleUser, Content: current},
		}, llm.Options{})

		success := err == nil
		output := current
		if success {
			output = completion.Content
		}

		trace = append(trace, ExecutionStep{
			StepID:   uuid.NewString(),
			StepType: StepLlmCall,
			Input:    current,
			Output:   output,
			Duration: time.Since(start),
			Success:  success,
			Metadata: map[string]string{"step": step.Name},
		})

		if err != nil {
			return WorkflowOutput{}, err
		}
		current = completion.Content
	}

	return WorkflowOutput{
		Result:         current,
		Metadata:       map[string]string{"tokens_estimated": fmt.Sprintf("%d", EstimateTokenConsumption(trace))},
		ExecutionTrace: trace,
		Timestamp:      time.Now(),
	}, nil
}
