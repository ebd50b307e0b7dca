package workflow

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/terraphim-labs/roleforge/pkg/llm"
)

// EvaluatorOptimizerConfig tunes the generate-evaluate-refine loop.
type EvaluatorOptimizerConfig struct {
	MaxIterations    int
	QualityThreshold float64
	ConvergenceDelta float64
}

// DefaultEvaluatorOptimizerConfig matches this pattern's stated
// defaults: up to 5 iterations, converge once two consecutive score
// deltas fall under 0.05.
func DefaultEvaluatorOptimizerConfig() EvaluatorOptimizerConfig {
	return EvaluatorOptimizerConfig{MaxIterations: 5, QualityThreshold: 0.7, ConvergenceDelta: 0.05}
}

func (c EvaluatorOptimizerConfig) withDefaults() EvaluatorOptimizerConfig {
	d := DefaultEvaluatorOptimizerConfig()
	if c.MaxIterations == 0 {
		c.MaxIterations = d.MaxIterations
	}
	if c.QualityThreshold == 0 {
		c.QualityThreshold = d.QualityThreshold
	}
	if c.ConvergenceDelta == 0 {
		c.ConvergenceDelta = d.ConvergenceDelta
	}
	return c
}

// EvaluatorOptimizer repeatedly generates a candidate, scores it
// against criteria, and refines below threshold until the quality gate
// clears, iterations run out, or the score converges.
type EvaluatorOptimizer struct {
	config           EvaluatorOptimizerConfig
	generatorAdapter llm.Adapter
	evaluatorAdapter llm.Adapter
}

// NewEvaluatorOptimizer constructs the loop. evaluatorAdapter may be
// the same Adapter as generatorAdapter.
func NewEvaluatorOptimizer(config EvaluatorOptimizerConfig, generatorAdapter, evaluatorAdapter llm.Adapter) *EvaluatorOptimizer {
	return &EvaluatorOptimizer{config: config.withDefaults(), generatorAdapter: generatorAdapter, evaluatorAdapter: evaluatorAdapter}
}

// Run executes the loop against input.Prompt, with qualityCriteria fed
// to the evaluation prompt on each pass.
func (e *EvaluatorOptimizer) Run(ctx context.Context, input WorkflowInput, qualityCriteria []string) (WorkflowOutput, error) {
	var trace []ExecutionStep
	var candidate string
	var prevScore float64
	var belowDeltaStreak int

	for iteration := 0; iteration < e.config.MaxIterations; iteration++ {
		genStart := time.Now()
		genPrompt := input.Prompt
		if candidate != "" {
			genPrompt = fmt.Sprintf("%s\n\nPrevious attempt:\n%s\n\nRefine it to better satisfy: %v", input.Prompt, candidate, qualityCriteria)
		}
		completion, err := e.generatorAdapter.Complete(ctx, []llm.Message{
			{Role: llm.RoleSystem, Content: "Generate a candidate response."},
			{Role: llm.RoleUser, Content: genPrompt},
		}, llm.Options{})
		if err != nil {
			return WorkflowOutput{}, err
		}
		candidate = completion.Content
		trace = append(trace, ExecutionStep{
			StepID: uuid.NewString(), StepType: StepLlmCall, Input: genPrompt, Output: candidate,
			Duration: time.Since(genStart), Success: true, Metadata: map[string]string{"phase": "generate", "iteration": fmt.Sprintf("%d", iteration)},
		})

		evalStart := time.Now()
		score := assessWorkerQuality(RoleReviewer, candidate, qualityCriteria)
		feedback := fmt.Sprintf("score=%.2f", score)
		if e.evaluatorAdapter != nil {
			if evalCompletion, err := e.evaluatorAdapter.Complete(ctx, []llm.Message{
				{Role: llm.RoleSystem, Content: "Critique this candidate against the given criteria in one sentence."},
				{Role: llm.RoleUser, Content: candidate},
			}, llm.Options{}); err == nil {
				feedback = fmt.Sprintf("score=%.2f critique=%s", score, evalCompletion.Content)
			}
		}
		trace = append(trace, ExecutionStep{
			StepID: uuid.NewString(), StepType: StepAggregation, Input: candidate, Output: feedback,
			Duration: time.Since(evalStart), Success: true, Metadata: map[string]string{"phase": "evaluate", "iteration": fmt.Sprintf("%d", iteration)},
		})

		if score >= e.config.QualityThreshold {
			break
		}

		delta := score - prevScore
		if delta < 0 {
			delta = -delta
		}
		if iteration > 0 && delta < e.config.ConvergenceDelta {
			belowDeltaStreak++
			if belowDeltaStreak >= 2 {
				break
			}
		} else {
			belowDeltaStreak = 0
		}
		prevScore = score
	}

	return WorkflowOutput{
		Result:         candidate,
		Metadata:       map[string]string{"tokens_estimated": fmt.Sprintf("%d", EstimateTokenConsumption(trace))},
		ExecutionTrace: trace,
		Timestamp:      time.Now(),
	}, nil
}
