// Package workflow implements the four coordination patterns (chain,
// parallel workers under an orchestrator, evaluator-optimizer,
// orchestration) that drive agents through a multi-step task.
package workflow

import (
	"errors"
	"fmt"
	"time"
)

// WorkflowInput is the common input every pattern operates on.
type WorkflowInput struct {
	TaskID   string
	AgentID  string
	Prompt   string
	Context  string
	Metadata map[string]string
}

// StepType classifies one ExecutionStep.
type StepType int

const (
	StepDecomposition StepType = iota
	StepLlmCall
	StepAggregation
)

// ExecutionStep is one traced unit of work within a pattern's run.
type ExecutionStep struct {
	StepID   string
	StepType StepType
	Input    string
	Output   string
	Duration time.Duration
	Success  bool
	Metadata map[string]string
}

// WorkflowOutput is the common output every pattern produces.
type WorkflowOutput struct {
	Result         string
	Metadata       map[string]string
	ExecutionTrace []ExecutionStep
	Timestamp      time.Time
}

// EstimateTokenConsumption sums len(input)+len(output) over every traced
// step, a character-count proxy used in place of a real tokenizer call.
func EstimateTokenConsumption(trace []ExecutionStep) int {
	var total int
	for _, step := range trace {
		total += len(step.Input) + len(step.Output)
	}
	return total
}

// WorkerRole is one of the fixed specialized roles the Orchestrator
// plans tasks for.
type WorkerRole int

const (
	RoleAnalyst WorkerRole = iota
	RoleResearcher
	RoleWriter
	RoleReviewer
	RoleValidator
	RoleSynthesizer
)

func (r WorkerRole) String() string {
	switch r {
	case RoleAnalyst:
		return "Analyst"
	case RoleResearcher:
		return "Researcher"
	case RoleWriter:
		return "Writer"
	case RoleReviewer:
		return "Reviewer"
	case RoleValidator:
		return "Validator"
	case RoleSynthesizer:
		return "Synthesizer"
	default:
		return "Unknown"
	}
}

// Priority orders WorkerTasks (Low < Medium < High < Critical).
type Priority int

const (
	PriorityLow Priority = iota
	PriorityMedium
	PriorityHigh
	PriorityCritical
)

// WorkerTask is one unit of planned work assigned to a role.
type WorkerTask struct {
	TaskID          string
	Role            WorkerRole
	Instruction     string
	Context         string // accumulated upstream context
	Dependencies    []string
	Priority        Priority
	QualityCriteria []string
}

// WorkerResult is the outcome of executing one WorkerTask.
type WorkerResult struct {
	TaskID     string
	Role       WorkerRole
	Deliverable string
	Success    bool
	Quality    float64
	Duration   time.Duration
	Feedback   *string
}

// CoordinationStrategy selects how the execution order is scheduled.
type CoordinationStrategy int

const (
	StrategySequential CoordinationStrategy = iota
	StrategyParallelCoordinated
	StrategyPipeline          // identical to Sequential in this spec
	StrategyDynamic           // identical to ParallelCoordinated in this spec
)

// Config configures the Orchestrator-Workers engine.
type Config struct {
	MaxPlanningIterations int
	MaxWorkers            int
	WorkerTimeout         time.Duration
	Strategy              CoordinationStrategy
	QualityGateThreshold  float64
	EnableWorkerFeedback  bool
}

// DefaultConfig returns the engine's out-of-the-box tuning.
func DefaultConfig() Config {
	return Config{
		MaxPlanningIterations: 3,
		MaxWorkers:            6,
		WorkerTimeout:         180 * time.Second,
		Strategy:              StrategyParallelCoordinated,
		QualityGateThreshold:  0.7,
		EnableWorkerFeedback:  true,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.MaxPlanningIterations == 0 {
		c.MaxPlanningIterations = d.MaxPlanningIterations
	}
	if c.MaxWorkers == 0 {
		c.MaxWorkers = d.MaxWorkers
	}
	if c.WorkerTimeout == 0 {
		c.WorkerTimeout = d.WorkerTimeout
	}
	if c.QualityGateThreshold == 0 {
		c.QualityGateThreshold = d.QualityGateThreshold
	}
	return c
}

var (
	ErrCircularDependency = errors.New("workflow: circular dependency detected in worker tasks")
	ErrNoAdapterForRole   = errors.New("workflow: no adapter configured for role")
)

// QualityGateFailedError reports why a run's worker output didn't clear
// the quality gate, carrying the measurements so a caller can decide
// whether to retry, escalate, or accept the run anyway.
type QualityGateFailedError struct {
	MeanQuality float64
	SuccessRate float64
}

func (e *QualityGateFailedError) Error() string {
	return fmt.Sprintf("workflow: quality gate failed: mean_quality=%.2f success_rate=%.2f", e.MeanQuality, e.SuccessRate)
}
