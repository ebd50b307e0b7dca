// Package capability scores agent-task fit and coordinates workflow
// assignment across a pool of candidate agents.
package capability

import (
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/terraphim-labs/roleforge/pkg/registry"
	"github.com/terraphim-labs/roleforge/pkg/workflow"
)

// Complexity classifies a task's intrinsic difficulty, gating the
// complexity sub-score against an agent's experience level.
type Complexity int

const (
	Simple Complexity = iota
	Moderate
	Complex
	VeryComplex
)

func (c Complexity) factor() float64 {
	switch c {
	case Simple:
		return 0.2
	case Moderate:
		return 0.5
	case Complex:
		return 0.8
	case VeryComplex:
		return 1.0
	default:
		return 0.5
	}
}

// Task describes a unit of work to be matched to a candidate agent.
type Task struct {
	ID                   string
	RequiredCapabilities []string
	RequiredDomains      []string
	Concepts             []string
	Complexity           Complexity
	BaseEffort           float64 // hours, consumed by ETA estimation
}

// Candidate wraps an agent's registry metadata with the role-level
// domain vocabulary the matcher also considers for the domain sub-score.
type Candidate struct {
	Agent      registry.AgentMetadata
	RoleDomains []string
}

// ConnectivityOracle is satisfied by *rolegraph.RoleGraph; isolating it
// as an interface keeps this package's only hard dependency on
// rolegraph at the call site, not the type definition.
type ConnectivityOracle interface {
	AreAllTermsConnected(text string) bool
}

// Weights configures the aggregate score's linear combination. Default
// (see DefaultWeights) is 0.25 for each of the four dimensions.
type Weights struct {
	Capability, Domain, Connectivity, Performance float64
}

// DefaultWeights weights every dimension equally.
var DefaultWeights = Weights{Capability: 0.25, Domain: 0.25, Connectivity: 0.25, Performance: 0.25}

// DefaultMinConnectivityThreshold excludes candidates whose connectivity
// sub-score falls below this floor.
const DefaultMinConnectivityThreshold = 0.6

// AgentTaskMatch is one ranked result from Matcher.MatchTask.
type AgentTaskMatch struct {
	AgentID      string
	Score        float64
	Capability   float64
	Domain       float64
	Connectivity float64
	Performance  float64
	Complexity   float64
	Availability float64
	Explanation  string
	ETA          float64
}

// Matcher scores and ranks agent candidates against tasks.
type Matcher struct {
	oracle  ConnectivityOracle
	weights Weights
	minConnectivity float64

	broker    *workflow.Broker
	sessionID string
}

// NewMatcher constructs a Matcher with the given connectivity oracle.
// weights and minConnectivity of their zero value fall back to the
// package defaults.
func NewMatcher(oracle ConnectivityOracle, weights Weights, minConnectivity float64) *Matcher {
	if weights == (Weights{}) {
		weights = DefaultWeights
	}
	if minConnectivity == 0 {
		minConnectivity = DefaultMinConnectivityThreshold
	}
	return &Matcher{oracle: oracle, weights: weights, minConnectivity: minConnectivity}
}

// SetBroker points the matcher at a workflow session's event broker, so
// coordination steps it assigns or observes are broadcast alongside
// that session's other events. A nil broker (the zero-value default)
// disables broadcasting entirely.
func (m *Matcher) SetBroker(b *workflow.Broker, sessionID string) {
	m.broker = b
	m.sessionID = sessionID
}

// MessageType labels the intent of a CoordinationMessage broadcast over
// a workflow.Broker as CoordinationStep state changes.
type MessageType int

const (
	TaskAssignment MessageType = iota
	ProgressUpdate
	QualityFeedback
	DependencyNotification
	Coordination
)

func (t MessageType) String() string {
	switch t {
	case TaskAssignment:
		return "task_assignment"
	case ProgressUpdate:
		return "progress_update"
	case QualityFeedback:
		return "quality_feedback"
	case DependencyNotification:
		return "dependency_notification"
	case Coordination:
		return "coordination"
	default:
		return "unknown"
	}
}

// CoordinationMessage is one coordination-layer broadcast, carried as
// the Payload of a workflow.Event with Kind workflow.EventCoordinationStep.
type CoordinationMessage struct {
	Type    MessageType
	TaskID  string
	Content string
	Sender  string
}

func (m *Matcher) publish(msgType MessageType, taskID, content string) {
	if m.broker == nil {
		return
	}
	m.broker.Publish(workflow.Event{
		SessionID: m.sessionID,
		Kind:      workflow.EventCoordinationStep,
		Payload: CoordinationMessage{
			Type:    msgType,
			TaskID:  taskID,
			Content: content,
			Sender:  "capability.Matcher",
		},
	})
}

// substringMatchFraction returns the fraction of `required` for which
// some entry of `have` substring-matches (case-insensitive, either
// direction). Used for both capability and domain matching.
func substringMatchFraction(required, have []string) float64 {
	if len(required) == 0 {
		return 1.0
	}
	matched := 0
	for _, r := range required {
		rl := strings.ToLower(r)
		for _, h := range have {
			hl := strings.ToLower(h)
			if strings.Contains(hl, rl) || strings.Contains(rl, hl) {
				matched++
				break
			}
		}
	}
	return float64(matched) / float64(len(required))
}

func availabilityScore(status registry.Status) float64 {
	switch status {
	case registry.Ready:
		return 1.0
	case registry.Busy:
		return 0.5
	default:
		return 0
	}
}

func complexityScore(complexity Complexity, experience float64) float64 {
	f := complexity.factor()
	if experience >= f {
		return 1.0
	}
	if f == 0 {
		return 1.0
	}
	return experience / f
}

// connectivityScore is the mean, over every pairwise (task concept,
// agent concept), of the connectivity oracle's verdict that the pair
// co-occurs in one connected component. With no concepts on either
// side there is no evidence of connectivity, so the score is 0 (not
// the oracle's own vacuous-true convention, which applies to a single
// query's matched-node set, not to an absent concept list here).
func connectivityScore(oracle ConnectivityOracle, taskConcepts, agentConcepts []string) float64 {
	if len(taskConcepts) == 0 || len(agentConcepts) == 0 {
		return 0
	}
	var hits, total int
	for _, tc := range taskConcepts {
		for _, ac := range agentConcepts {
			total++
			if oracle.AreAllTermsConnected(tc + " " + ac) {
				hits++
			}
		}
	}
	if total == 0 {
		return 0
	}
	return float64(hits) / float64(total)
}

func explanationFor(label string, score float64) string {
	switch {
	case score > 0.8:
		return fmt.Sprintf("excellent %s match", label)
	case score > 0.6:
		return fmt.Sprintf("good %s match", label)
	case score > 0.4:
		return fmt.Sprintf("moderate %s match", label)
	default:
		return fmt.Sprintf("weak %s match", label)
	}
}

func explanation(capability, domain, connectivity, performance float64) string {
	parts := []string{
		explanationFor("capability", capability),
		explanationFor("domain", domain),
		explanationFor("connectivity", connectivity),
		explanationFor("performance", performance),
	}
	return strings.Join(parts, "; ")
}

const minETADenominator = 0.1

func estimateETA(baseEffort, performance, score float64) float64 {
	p := performance
	if p < minETADenominator {
		p = minETADenominator
	}
	s := score
	if s < minETADenominator {
		s = minETADenominator
	}
	if baseEffort == 0 {
		baseEffort = 1.0
	}
	return baseEffort / (p * s)
}

// MatchTask scores every candidate whose status is Active (Ready or
// Busy in this package's lifecycle), excludes those below
// minConnectivity, and returns the top k by aggregate score descending.
func (m *Matcher) MatchTask(task Task, candidates []Candidate, k int) []AgentTaskMatch {
	var matches []AgentTaskMatch
	for _, c := range candidates {
		if !c.Agent.Status.Active() {
			continue
		}

		capScore := substringMatchFraction(task.RequiredCapabilities, c.Agent.Capabilities)
		domainHave := append(append([]string{}, c.Agent.KnowledgeDomains...), c.RoleDomains...)
		domainScore := substringMatchFraction(task.RequiredDomains, domainHave)
		connScore := connectivityScore(m.oracle, task.Concepts, c.Agent.ConceptVocabulary)
		if connScore < m.minConnectivity {
			continue
		}
		perfScore := c.Agent.Performance.SuccessRate()
		complexityVal := complexityScore(task.Complexity, c.Agent.Performance.ExperienceLevel)
		availVal := availabilityScore(c.Agent.Status)

		score := capScore*m.weights.Capability +
			domainScore*m.weights.Domain +
			connScore*m.weights.Connectivity +
			perfScore*m.weights.Performance

		matches = append(matches, AgentTaskMatch{
			AgentID:      c.Agent.ID,
			Score:        score,
			Capability:   capScore,
			Domain:       domainScore,
			Connectivity: connScore,
			Performance:  perfScore,
			Complexity:   complexityVal,
			Availability: availVal,
			Explanation:  explanation(capScore, domainScore, connScore, perfScore),
			ETA:          estimateETA(task.BaseEffort, perfScore, score),
		})
	}

	sort.SliceStable(matches, func(i, j int) bool { return matches[i].Score > matches[j].Score })
	if k >= 0 && k < len(matches) {
		matches = matches[:k]
	}
	return matches
}

// StepStatus is a CoordinationStep's lifecycle state.
type StepStatus int

const (
	StepPending StepStatus = iota
	StepInProgress
	StepCompleted
	StepFailed
)

// CoordinationStep is one task->agent assignment produced by CoordinateWorkflow.
type CoordinationStep struct {
	ID               string
	Description      string
	AssignedAgentID  string
	DependsOn        []string
	EstimatedDuration float64
	Status           StepStatus
}

// CoordinationResult is CoordinateWorkflow's output.
type CoordinationResult struct {
	Steps             []CoordinationStep
	ParallelismFactor float64
}

// CoordinateWorkflow greedily assigns each task to its single best-match
// candidate (1:1; an agent may still be reused across tasks since the
// spec defines no exclusivity rule at this layer) and reports a
// parallelism factor of unique assigned agents / total tasks.
func (m *Matcher) CoordinateWorkflow(tasks []Task, candidates []Candidate) CoordinationResult {
	steps := make([]CoordinationStep, 0, len(tasks))
	uniqueAgents := make(map[string]struct{})

	for _, t := range tasks {
		matches := m.MatchTask(t, candidates, 1)
		step := CoordinationStep{
			ID:          uuid.NewString(),
			Description: t.ID,
			Status:      StepPending,
		}
		if len(matches) > 0 {
			step.AssignedAgentID = matches[0].AgentID
			step.EstimatedDuration = matches[0].ETA
			uniqueAgents[matches[0].AgentID] = struct{}{}
			m.publish(TaskAssignment, t.ID, fmt.Sprintf("assigned to agent %s", matches[0].AgentID))
		}
		steps = append(steps, step)
	}

	var parallelism float64
	if len(tasks) > 0 {
		parallelism = float64(len(uniqueAgents)) / float64(len(tasks))
	}
	return CoordinationResult{Steps: steps, ParallelismFactor: parallelism}
}

// UpdateStepStatus transitions the step identified by stepID to status
// and, when a broker is configured, broadcasts a ProgressUpdate
// coordination message describing the transition.
func (m *Matcher) UpdateStepStatus(result *CoordinationResult, stepID string, status StepStatus) {
	for i := range result.Steps {
		if result.Steps[i].ID != stepID {
			continue
		}
		result.Steps[i].Status = status
		m.publish(ProgressUpdate, result.Steps[i].Description, fmt.Sprintf("step %s now %v", stepID, status))
		return
	}
}

// MonitorFinding describes one condition MonitorProgress surfaces.
type MonitorFinding struct {
	Kind    string // "blocked_step" | "overloaded_agent" | "long_running"
	Detail  string
}

// MonitorProgress inspects steps (using a stepID->completed set to
// resolve dependency satisfaction) and reports blocked steps (pending
// with unmet dependencies), overloaded agents (more than 3 assigned
// steps), and a stall/long-running condition when more than half of all
// steps are InProgress.
func MonitorProgress(steps []CoordinationStep) []MonitorFinding {
	completed := make(map[string]struct{})
	for _, s := range steps {
		if s.Status == StepCompleted {
			completed[s.ID] = struct{}{}
		}
	}

	var findings []MonitorFinding
	assignedCount := make(map[string]int)
	var inProgress int

	for _, s := range steps {
		if s.AssignedAgentID != "" {
			assignedCount[s.AssignedAgentID]++
		}
		if s.Status == StepInProgress {
			inProgress++
		}
		if s.Status == StepPending {
			for _, dep := range s.DependsOn {
				if _, done := completed[dep]; !done {
					findings = append(findings, MonitorFinding{
						Kind:   "blocked_step",
						Detail: fmt.Sprintf("step %s blocked on unmet dependency %s", s.ID, dep),
					})
					break
				}
			}
		}
	}

	for agentID, count := range assignedCount {
		if count > 3 {
			findings = append(findings, MonitorFinding{
				Kind:   "overloaded_agent",
				Detail: fmt.Sprintf("agent %s has %d assigned steps", agentID, count),
			})
		}
	}

	if len(steps) > 0 && float64(inProgress)/float64(len(steps)) > 0.5 {
		findings = append(findings, MonitorFinding{
			Kind:   "long_running",
			Detail: fmt.Sprintf("%d/%d steps in progress", inProgress, len(steps)),
		})
	}

	return findings
}

// MonitorAndBroadcast runs MonitorProgress and, when the matcher has a
// broker configured, broadcasts one coordination message per finding:
// a blocked step as DependencyNotification, an overloaded agent as
// QualityFeedback (it signals a capacity problem that will erode
// delivery quality), and anything else as a generic Coordination message.
func (m *Matcher) MonitorAndBroadcast(steps []CoordinationStep) []MonitorFinding {
	findings := MonitorProgress(steps)
	for _, f := range findings {
		switch f.Kind {
		case "blocked_step":
			m.publish(DependencyNotification, "", f.Detail)
		case "overloaded_agent":
			m.publish(QualityFeedback, "", f.Detail)
		default:
			m.publish(Coordination, "", f.Detail)
		}
	}
	return findings
}
