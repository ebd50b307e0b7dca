package workflow

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/terraphim-labs/roleforge/pkg/llm"
	"github.com/terraphim-labs/roleforge/pkg/roleforgelog"
)

// Orchestrator runs the Parallel-Workers-under-Orchestrator pattern:
// decompose a prompt into role-specific worker tasks, execute them in
// dependency order under a chosen concurrency strategy, gate on
// aggregate quality, then synthesize a final result.
type Orchestrator struct {
	config          Config
	planningAdapter llm.Adapter
	workerAdapters  map[WorkerRole]llm.Adapter
	log             *zap.Logger
}

// NewOrchestrator constructs an Orchestrator. Zero-valued numeric fields
// of config take DefaultConfig's values; Strategy and EnableWorkerFeedback
// are used as given, so a zero Config runs Sequential without worker
// feedback. A nil logger falls back to the package logger.
func NewOrchestrator(config Config, planningAdapter llm.Adapter, workerAdapters map[WorkerRole]llm.Adapter, log *zap.Logger) *Orchestrator {
	if log == nil {
		log = roleforgelog.Logger()
	}
	return &Orchestrator{
		config:          config.withDefaults(),
		planningAdapter: planningAdapter,
		workerAdapters:  workerAdapters,
		log:             log.Named("orchestrator"),
	}
}

// rolePromptPrefix is the hardcoded per-role instruction prefix used to
// compose each worker's prompt.
func rolePromptPrefix(role WorkerRole) string {
	switch role {
	case RoleAnalyst:
		return "You are an analyst. Examine the provided material and produce a structured analysis."
	case RoleResearcher:
		return "You are a researcher. Investigate the topic and report concrete findings."
	case RoleWriter:
		return "You are a writer. Compose clear, well-organized prose from the material given."
	case RoleReviewer:
		return "You are a reviewer. Critically assess the material for correctness and completeness."
	case RoleValidator:
		return "You are a validator. Check the material against the stated quality criteria."
	case RoleSynthesizer:
		return "You are a synthesizer. Combine the provided inputs into one coherent final result."
	default:
		return "You are a worker."
	}
}

// parseWorkerTasks is the planning heuristic: every plan includes at
// least a Writer and a Synthesizer; Researcher
// and Analyst are added when the prompt mentions research/analysis
// keywords. Synthesis depends on every prior task.
func parseWorkerTasks(prompt string) []WorkerTask {
	lower := strings.ToLower(prompt)
	wantsResearch := strings.Contains(lower, "research")
	wantsAnalysis := strings.Contains(lower, "analy") // matches "analyze"/"analysis"

	var tasks []WorkerTask
	var deps []string

	if wantsResearch {
		id := "researcher"
		tasks = append(tasks, WorkerTask{TaskID: id, Role: RoleResearcher, Instruction: prompt, Priority: PriorityMedium})
		deps = append(deps, id)
	}
	if wantsAnalysis {
		id := "analyst"
		analystDeps := append([]string{}, deps...)
		tasks = append(tasks, WorkerTask{TaskID: id, Role: RoleAnalyst, Instruction: prompt, Dependencies: analystDeps, Priority: PriorityMedium})
		deps = append(deps, id)
	}

	writerDeps := append([]string{}, deps...)
	tasks = append(tasks, WorkerTask{TaskID: "writer", Role: RoleWriter, Instruction: prompt, Dependencies: writerDeps, Priority: PriorityHigh})
	deps = append(deps, "writer")

	synthDeps := append([]string{}, deps...)
	tasks = append(tasks, WorkerTask{TaskID: "synthesizer", Role: RoleSynthesizer, Instruction: prompt, Dependencies: synthDeps, Priority: PriorityCritical})

	return tasks
}

// topologicalOrder returns task ids grouped into dependency-level waves
// via Kahn's algorithm: wave 0 has no unresolved dependencies, wave 1
// depends only on wave 0, and so on. Returns ErrCircularDependency if
// not every task can be ordered.
func topologicalOrder(tasks []WorkerTask) ([][]string, error) {
	deps := make(map[string][]string, len(tasks))
	ids := make([]string, 0, len(tasks))
	for _, t := range tasks {
		ids = append(ids, t.TaskID)
		deps[t.TaskID] = t.Dependencies
	}
	return waveTopoSort(ids, deps)
}

// waveTopoSort groups ids into dependency-level waves via Kahn's
// algorithm: wave 0 has no unresolved dependencies, wave 1 depends only
// on wave 0, and so on. A dependency outside the id set is ignored
// rather than treated as a cycle. Returns ErrCircularDependency if not
// every id can be ordered.
func waveTopoSort(ids []string, dependencies map[string][]string) ([][]string, error) {
	inDegree := make(map[string]int, len(ids))
	dependents := make(map[string][]string)
	known := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		inDegree[id] = 0
		known[id] = struct{}{}
	}
	for _, id := range ids {
		for _, dep := range dependencies[id] {
			if _, ok := known[dep]; !ok {
				continue
			}
			inDegree[id]++
			dependents[dep] = append(dependents[dep], id)
		}
	}

	var waves [][]string
	remaining := len(ids)
	for remaining > 0 {
		var wave []string
		for id, deg := range inDegree {
			if deg == 0 {
				wave = append(wave, id)
			}
		}
		if len(wave) == 0 {
			return nil, ErrCircularDependency
		}
		sort.Strings(wave) // deterministic within a wave
		for _, id := range wave {
			delete(inDegree, id)
			remaining--
			for _, dep := range dependents[id] {
				inDegree[dep]--
			}
		}
		waves = append(waves, wave)
	}
	return waves, nil
}

// assessWorkerQuality is the deterministic quality heuristic (spec
// §4.4.1 phase 3 step 4). It must remain deterministic given the
// deliverable — no LLM-judging in the core.
func assessWorkerQuality(role WorkerRole, deliverable string, qualityCriteria []string) float64 {
	score := 0.5
	length := len(deliverable)

	switch {
	case length <= 50:
		score -= 0.3
	case length <= 200:
		score += 0.1
	case length <= 1000:
		score += 0.2
	default:
		score += 0.3
	}

	lower := strings.ToLower(deliverable)
	switch role {
	case RoleAnalyst:
		if strings.Contains(lower, "analysis") || strings.Contains(lower, "insight") {
			score += 0.2
		}
	case RoleResearcher:
		if strings.Contains(lower, "research") || strings.Contains(lower, "finding") {
			score += 0.2
		}
	case RoleWriter:
		if len(strings.Fields(deliverable)) > 100 {
			score += 0.2
		}
	}

	for _, criterion := range qualityCriteria {
		if criterionSatisfied(lower, criterion) {
			score += 0.1
		}
	}

	if score > 1 {
		score = 1
	}
	if score < 0 {
		score = 0
	}
	return score
}

// criterionSatisfied applies a small set of heuristic checks for the
// common quality-criterion names (accuracy/completeness/clarity),
// defaulting to a substring presence check for anything else.
func criterionSatisfied(lowerDeliverable, criterion string) bool {
	switch strings.ToLower(criterion) {
	case "accuracy":
		return !strings.Contains(lowerDeliverable, "todo") && !strings.Contains(lowerDeliverable, "tbd")
	case "completeness":
		return len(lowerDeliverable) > 200
	case "clarity":
		return strings.Contains(lowerDeliverable, ".") // has at least one sentence boundary
	default:
		return strings.Contains(lowerDeliverable, strings.ToLower(criterion))
	}
}

const timeoutDeliverable = "Task timed out"
const timeoutFeedback = "Task execution timed out"

// executeSingleWorker is phase 3 of the protocol.
func (o *Orchestrator) executeSingleWorker(ctx context.Context, task WorkerTask, accumulatedContext string) WorkerResult {
	start := time.Now()

	adapter, ok := o.workerAdapters[task.Role]
	if !ok || adapter == nil {
		msg := ErrNoAdapterForRole.Error()
		return WorkerResult{
			TaskID: task.TaskID, Role: task.Role, Success: false, Quality: 0,
			Duration: time.Since(start), Feedback: &msg,
		}
	}

	prompt := composeWorkerPrompt(task, accumulatedContext)

	workerCtx, cancel := context.WithTimeout(ctx, o.config.WorkerTimeout)
	defer cancel()

	completion, err := adapter.Complete(workerCtx, []llm.Message{
		{Role: llm.RoleSystem, Content: rolePromptPrefix(task.Role)},
		{Role: llm.RoleUser, Content: prompt},
	}, llm.Options{})

	duration := time.Since(start)

	if err != nil {
		if workerCtx.Err() == context.DeadlineExceeded {
			feedback := timeoutFeedback
			return WorkerResult{
				TaskID: task.TaskID, Role: task.Role, Deliverable: timeoutDeliverable,
				Success: false, Quality: 0, Duration: duration, Feedback: &feedback,
			}
		}
		feedback := err.Error()
		return WorkerResult{
			TaskID: task.TaskID, Role: task.Role, Success: false, Quality: 0,
			Duration: duration, Feedback: &feedback,
		}
	}

	quality := assessWorkerQuality(task.Role, completion.Content, task.QualityCriteria)
	result := WorkerResult{
		TaskID: task.TaskID, Role: task.Role, Deliverable: completion.Content,
		Success: true, Quality: quality, Duration: duration,
	}
	if o.config.EnableWorkerFeedback && quality < o.config.QualityGateThreshold {
		feedback := fmt.Sprintf("quality %.2f below threshold %.2f", quality, o.config.QualityGateThreshold)
		result.Feedback = &feedback
	}
	return result
}

func composeWorkerPrompt(task WorkerTask, accumulatedContext string) string {
	var b strings.Builder
	b.WriteString(task.Instruction)
	b.WriteString("\n\nExpected deliverable: a complete response addressing the instruction above.")
	if len(task.QualityCriteria) > 0 {
		b.WriteString("\n\nQuality criteria: ")
		b.WriteString(strings.Join(task.QualityCriteria, ", "))
	}
	if accumulatedContext != "" {
		b.WriteString("\n\nContext from prior steps:\n")
		b.WriteString(accumulatedContext)
	}
	return b.String()
}

// Run executes the full Orchestrator-Workers protocol: plan, determine
// execution order, execute by strategy, run the quality gate, and
// synthesize.
func (o *Orchestrator) Run(ctx context.Context, input WorkflowInput) (WorkflowOutput, error) {
	var trace []ExecutionStep

	planStart := time.Now()
	if o.planningAdapter != nil {
		_, _ = o.planningAdapter.Complete(ctx, []llm.Message{
			{Role: llm.RoleSystem, Content: "Decompose the following task into a worker plan."},
			{Role: llm.RoleUser, Content: input.Prompt},
		}, llm.Options{})
	}
	tasks := parseWorkerTasks(input.Prompt)
	trace = append(trace, ExecutionStep{
		StepID: uuid.NewString(), StepType: StepDecomposition,
		Input: input.Prompt, Output: fmt.Sprintf("%d worker tasks planned", len(tasks)),
		Duration: time.Since(planStart), Success: true,
	})

	waves, err := topologicalOrder(tasks)
	if err != nil {
		return WorkflowOutput{}, err
	}

	byID := make(map[string]WorkerTask, len(tasks))
	for _, t := range tasks {
		byID[t.TaskID] = t
	}

	var results []WorkerResult
	var accumulatedContext string

	sequential := o.config.Strategy == StrategySequential || o.config.Strategy == StrategyPipeline

	for _, wave := range waves {
		waveResults, waveTrace, err := o.executeWave(ctx, wave, byID, accumulatedContext, sequential)
		if err != nil {
			return WorkflowOutput{}, err
		}
		trace = append(trace, waveTrace...)
		results = append(results, waveResults...)
		for _, r := range waveResults {
			if r.Success {
				accumulatedContext += fmt.Sprintf("\n[%s]: %s", r.Role, r.Deliverable)
			}
		}
	}

	meanQuality, successRate := qualityGateStats(results)
	if meanQuality < o.config.QualityGateThreshold || successRate < 0.5 {
		return WorkflowOutput{}, &QualityGateFailedError{MeanQuality: meanQuality, SuccessRate: successRate}
	}

	synthStart := time.Now()
	finalResult := synthesize(input.Prompt, results)
	if o.planningAdapter != nil {
		completion, err := o.planningAdapter.Complete(ctx, []llm.Message{
			{Role: llm.RoleSystem, Content: "Synthesize the final response from the worker deliverables."},
			{Role: llm.RoleUser, Content: finalResult},
		}, llm.Options{})
		if err == nil && completion.Content != "" {
			finalResult = completion.Content
		}
	}
	trace = append(trace, ExecutionStep{
		StepID: uuid.NewString(), StepType: StepAggregation,
		Input: fmt.Sprintf("%d successful deliverables", successCount(results)), Output: finalResult,
		Duration: time.Since(synthStart), Success: true,
	})

	return WorkflowOutput{
		Result:         finalResult,
		Metadata:       map[string]string{"tokens_estimated": fmt.Sprintf("%d", EstimateTokenConsumption(trace))},
		ExecutionTrace: trace,
		Timestamp:      time.Now(),
	}, nil
}

// executeWave runs one topological wave of tasks, either sequentially
// (Sequential/Pipeline) or concurrently bounded by MaxWorkers
// (ParallelCoordinated/Dynamic), with results collected in the wave's
// submission order regardless of completion order.
func (o *Orchestrator) executeWave(ctx context.Context, wave []string, byID map[string]WorkerTask, accumulatedContext string, sequential bool) ([]WorkerResult, []ExecutionStep, error) {
	if sequential {
		var results []WorkerResult
		var trace []ExecutionStep
		rollingContext := accumulatedContext
		for _, id := range wave {
			task := byID[id]
			start := time.Now()
			result := o.executeSingleWorker(ctx, task, rollingContext)
			trace = append(trace, workerStep(task, result, start))
			results = append(results, result)
			if result.Success {
				rollingContext += fmt.Sprintf("\n[%s]: %s", result.Role, result.Deliverable)
			}
		}
		return results, trace, nil
	}

	results := make([]WorkerResult, len(wave))
	traces := make([]ExecutionStep, len(wave))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.config.MaxWorkers)

	for i, id := range wave {
		i, id := i, id
		g.Go(func() error {
			task := byID[id]
			start := time.Now()
			result := o.executeSingleWorker(gctx, task, accumulatedContext)
			results[i] = result
			traces[i] = workerStep(task, result, start)
			return nil
		})
	}
	_ = g.Wait() // worker failures are data (WorkerResult), never propagated as errors here

	return results, traces, nil
}

func workerStep(task WorkerTask, result WorkerResult, start time.Time) ExecutionStep {
	return ExecutionStep{
		StepID:   uuid.NewString(),
		StepType: StepLlmCall,
		Input:    task.Instruction,
		Output:   result.Deliverable,
		Duration: time.Since(start),
		Success:  result.Success,
		Metadata: map[string]string{"role": result.Role.String(), "task_id": task.TaskID},
	}
}

func qualityGateStats(results []WorkerResult) (meanQuality, successRate float64) {
	if len(results) == 0 {
		return 0, 0
	}
	var successCount int
	var qualitySum float64
	for _, r := range results {
		if r.Success {
			successCount++
			qualitySum += r.Quality
		}
	}
	successRate = float64(successCount) / float64(len(results))
	if successCount > 0 {
		meanQuality = qualitySum / float64(successCount)
	}
	return meanQuality, successRate
}

func successCount(results []WorkerResult) int {
	var n int
	for _, r := range results {
		if r.Success {
			n++
		}
	}
	return n
}

func synthesize(originalPrompt string, results []WorkerResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Synthesis of: %s\n", originalPrompt)
	for _, r := range results {
		if r.Success {
			fmt.Fprintf(&b, "\n%s: %s", r.Role, r.Deliverable)
		}
	}
	return b.String()
}
