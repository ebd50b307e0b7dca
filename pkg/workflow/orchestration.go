package workflow

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/terraphim-labs/roleforge/pkg/llm"
)

// SpecializedRole names one of the deployable worker specializations
// this pattern routes to, distinct from the fixed WorkerRole set the
// Orchestrator-Workers engine uses.
type SpecializedRole string

const (
	RoleArchitect  SpecializedRole = "architect"
	RoleBackend    SpecializedRole = "backend"
	RoleFrontend   SpecializedRole = "frontend"
	RoleAnalystSp  SpecializedRole = "analyst"
	RoleReviewerSp SpecializedRole = "reviewer"
)

// Decomposer turns a prompt into a set of specialized-role worker
// tasks. Callers of Orchestration supply their own decomposition
// strategy rather than the Orchestrator-Workers engine's fixed
// Writer/Synthesizer heuristic.
type Decomposer interface {
	Decompose(ctx context.Context, prompt string) ([]OrchestrationTask, error)
}

// DecomposerFunc adapts a plain function to Decomposer.
type DecomposerFunc func(ctx context.Context, prompt string) ([]OrchestrationTask, error)

func (f DecomposerFunc) Decompose(ctx context.Context, prompt string) ([]OrchestrationTask, error) {
	return f(ctx, prompt)
}

// OrchestrationTask is one task this pattern deploys to a specialized
// worker.
type OrchestrationTask struct {
	TaskID       string
	Role         SpecializedRole
	Instruction  string
	Dependencies []string
}

// Orchestration decomposes a prompt into specialized worker tasks,
// deploys each to the adapter registered for its role, runs them in
// dependency order, and synthesizes a final result.
type Orchestration struct {
	decomposer   Decomposer
	roleAdapters map[SpecializedRole]llm.Adapter
	timeout      time.Duration
}

// NewOrchestration constructs an Orchestration. A zero timeout falls
// back to 180s, matching the Orchestrator-Workers engine's default.
func NewOrchestration(decomposer Decomposer, roleAdapters map[SpecializedRole]llm.Adapter, timeout time.Duration) *Orchestration {
	if timeout == 0 {
		timeout = 180 * time.Second
	}
	return &Orchestration{decomposer: decomposer, roleAdapters: roleAdapters, timeout: timeout}
}

func (o *Orchestration) executeTask(ctx context.Context, task OrchestrationTask, accumulatedContext string) (string, bool, time.Duration) {
	start := time.Now()
	adapter, ok := o.roleAdapters[task.Role]
	if !ok || adapter == nil {
		return fmt.Sprintf("no adapter configured for role %q", task.Role), false, time.Since(start)
	}

	taskCtx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	prompt := task.Instruction
	if accumulatedContext != "" {
		prompt = fmt.Sprintf("%s\n\nContext from prior steps:\n%s", task.Instruction, accumulatedContext)
	}
	completion, err := adapter.Complete(taskCtx, []llm.Message{
		{Role: llm.RoleSystem, Content: fmt.Sprintf("You are the %s specialist.", task.Role)},
		{Role: llm.RoleUser, Content: prompt},
	}, llm.Options{})
	if err != nil {
		return err.Error(), false, time.Since(start)
	}
	return completion.Content, true, time.Since(start)
}

// Run decomposes input.Prompt, executes every task in dependency-wave
// order (each wave run sequentially within itself to keep specialized
// deployments simple and ordered, unlike the Orchestrator-Workers
// engine's concurrent wave execution), and synthesizes the successful
// deliverables into a final result.
func (o *Orchestration) Run(ctx context.Context, input WorkflowInput) (WorkflowOutput, error) {
	planStart := time.Now()
	tasks, err := o.decomposer.Decompose(ctx, input.Prompt)
	if err != nil {
		return WorkflowOutput{}, err
	}

	trace := []ExecutionStep{{
		StepID: uuid.NewString(), StepType: StepDecomposition,
		Input: input.Prompt, Output: fmt.Sprintf("%d specialized tasks planned", len(tasks)),
		Duration: time.Since(planStart), Success: true,
	}}

	byID := make(map[string]OrchestrationTask, len(tasks))
	deps := make(map[string][]string, len(tasks))
	ids := make([]string, 0, len(tasks))
	for _, t := range tasks {
		byID[t.TaskID] = t
		deps[t.TaskID] = t.Dependencies
		ids = append(ids, t.TaskID)
	}

	waves, err := waveTopoSort(ids, deps)
	if err != nil {
		return WorkflowOutput{}, err
	}

	var deliverables []string
	var accumulatedContext string
	for _, wave := range waves {
		for _, id := range wave {
			task := byID[id]
			output, success, duration := o.executeTask(ctx, task, accumulatedContext)
			trace = append(trace, ExecutionStep{
				StepID: uuid.NewString(), StepType: StepLlmCall,
				Input: task.Instruction, Output: output, Duration: duration, Success: success,
				Metadata: map[string]string{"role": string(task.Role), "task_id": task.TaskID},
			})
			if success {
				deliverables = append(deliverables, fmt.Sprintf("[%s]: %s", task.Role, output))
				accumulatedContext += "\n" + output
			}
		}
	}

	synthStart := time.Now()
	var result string
	for _, d := range deliverables {
		result += d + "\n"
	}
	trace = append(trace, ExecutionStep{
		StepID: uuid.NewString(), StepType: StepAggregation,
		Input: fmt.Sprintf("%d successful deliverables", len(deliverables)), Output: result,
		Duration: time.Since(synthStart), Success: true,
	})

	return WorkflowOutput{
		Result:         result,
		Metadata:       map[string]string{"tokens_estimated": fmt.Sprintf("%d", EstimateTokenConsumption(trace))},
		ExecutionTrace: trace,
		Timestamp:      time.Now(),
	}, nil
}
