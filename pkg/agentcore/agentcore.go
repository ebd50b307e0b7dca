// Package agentcore implements the per-agent command loop: status
// gating, enriched-context assembly from the role graph and evolution
// store, LLM message composition, and context-window eviction.
package agentcore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/terraphim-labs/roleforge/pkg/config"
	"github.com/terraphim-labs/roleforge/pkg/evolution"
	"github.com/terraphim-labs/roleforge/pkg/llm"
	"github.com/terraphim-labs/roleforge/pkg/registry"
	"github.com/terraphim-labs/roleforge/pkg/roleforgelog"
	"github.com/terraphim-labs/roleforge/pkg/rolegraph"
)

// CommandType selects the handler a Dispatch call runs.
type CommandType int

const (
	CmdGenerate CommandType = iota
	CmdAnswer
	CmdSearch
	CmdAnalyze
	CmdExecute
	CmdCreate
	CmdEdit
	CmdReview
	CmdPlan
	CmdSystem
	CmdCustom
)

func (c CommandType) String() string {
	switch c {
	case CmdGenerate:
		return "Generate"
	case CmdAnswer:
		return "Answer"
	case CmdSearch:
		return "Search"
	case CmdAnalyze:
		return "Analyze"
	case CmdExecute:
		return "Execute"
	case CmdCreate:
		return "Create"
	case CmdEdit:
		return "Edit"
	case CmdReview:
		return "Review"
	case CmdPlan:
		return "Plan"
	case CmdSystem:
		return "System"
	case CmdCustom:
		return "Custom"
	default:
		return "Unknown"
	}
}

// ErrAgentNotAvailable is returned when Dispatch is called against an
// agent whose registry status is not Ready; the caller's state is left
// unchanged.
var ErrAgentNotAvailable = errors.New("agentcore: agent not available")

// HaystackService names the external collaborator a Haystack queries.
// The core only stores and lists these descriptors; it never queries
// a haystack itself.
type HaystackService int

const (
	HaystackRipgrep HaystackService = iota
	HaystackAtomic
	HaystackQueryRs
	HaystackClickUp
	HaystackMcp
	HaystackPerplexity
)

// Haystack is an external content source an agent may be configured to
// consult; the core surfaces these in enriched context but does not
// implement querying them.
type Haystack struct {
	Name     string
	Service  HaystackService
	ReadOnly bool
	Secret   string // empty when not set
	Extra    map[string]string
}

// ContextItem is one turn in an agent's rolling conversational context.
type ContextItem struct {
	Role      llm.Role
	Content   string
	Pinned    bool
	Timestamp time.Time
}

// CommandRecord is the durable record of one Dispatch invocation.
type CommandRecord struct {
	Command   CommandType
	Query     string
	Timestamp time.Time
	Duration  time.Duration
	Quality   float64
	Success   bool
}

// Graph is the subset of *rolegraph.RoleGraph the command loop needs,
// isolated as an interface so this package's only hard dependency on
// rolegraph is at the call site.
type Graph interface {
	MatchTerms(text string) []rolegraph.MatchedTerm
	QueryByNodes(ctx context.Context, nodeIDs []uint64, offset, limit int) ([]rolegraph.IndexedDocument, error)
	AreAllTermsConnected(text string) bool
}

// EnrichedContext is the context block assembled before every LLM
// call: graph matches, connectivity, related concepts, haystacks, and
// relevant memories.
type EnrichedContext struct {
	MatchedNodes      []rolegraph.MatchedTerm
	Coherent          bool
	RelatedConcepts   []string
	Haystacks         []Haystack
	Memories          []evolution.MemoryItem
	Role              string
	RelevanceFunction string
}

const charsPerTokenEstimate = 4

// estimateContextTokens approximates a token count as the total content
// length in characters divided by charsPerTokenEstimate, used in place
// of a real tokenizer call.
func estimateContextTokens(items []ContextItem) int {
	var total int
	for _, item := range items {
		total += len(item.Content)
	}
	return total / charsPerTokenEstimate
}

// Agent is one command-loop instance: identity, capabilities, and the
// collaborators (registry, role graph, evolution store, LLM adapter)
// its Dispatch method coordinates.
type Agent struct {
	mu sync.Mutex

	ID                string
	Role              string
	Capabilities      []string
	Goals             []string
	RelevanceFunction string

	registry  *registry.Registry
	graph     Graph
	evolution *evolution.Store
	adapter   llm.Adapter
	haystacks []Haystack
	settings  config.Settings

	context []ContextItem
	history []CommandRecord

	log *zap.Logger
}

// New constructs an Agent. The agent must already be Register-ed in
// reg under ID; New does not register it.
func New(id, role string, reg *registry.Registry, graph Graph, evo *evolution.Store, adapter llm.Adapter, haystacks []Haystack, settings config.Settings, log *zap.Logger) *Agent {
	if log == nil {
		log = roleforgelog.Logger()
	}
	return &Agent{
		ID:        id,
		Role:      role,
		registry:  reg,
		graph:     graph,
		evolution: evo,
		adapter:   adapter,
		haystacks: haystacks,
		settings:  settings,
		log:       log.Named("agentcore").With(zap.String("agent_id", id)),
	}
}

// Initialize loads the agent's evolution state, tolerating the
// "no record" case.
func (a *Agent) Initialize(ctx context.Context) error {
	return a.evolution.Load(ctx)
}

// SaveState explicitly persists the agent's evolution state.
func (a *Agent) SaveState(ctx context.Context) error {
	return a.evolution.Save(ctx)
}

// Context returns a copy of the agent's current rolling context.
func (a *Agent) Context() []ContextItem {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]ContextItem, len(a.context))
	copy(out, a.context)
	return out
}

// History returns a copy of the agent's command record log.
func (a *Agent) History() []CommandRecord {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]CommandRecord, len(a.history))
	copy(out, a.history)
	return out
}

func temperatureFor(cmd CommandType) float64 {
	switch cmd {
	case CmdAnalyze, CmdReview:
		return 0.3
	case CmdCreate:
		return 0.8
	default:
		return 0.7
	}
}

// Dispatch runs one command: status gating, enriched-context assembly,
// the LLM call, context/history bookkeeping, and lesson extraction.
func (a *Agent) Dispatch(ctx context.Context, cmd CommandType, query string) (CommandRecord, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	meta, err := a.registry.Get(a.ID)
	if err != nil {
		return CommandRecord{}, err
	}
	if meta.Status != registry.Ready {
		return CommandRecord{}, ErrAgentNotAvailable
	}
	if err := a.registry.UpdateStatus(a.ID, registry.Busy, ""); err != nil {
		return CommandRecord{}, err
	}

	start := time.Now()
	enriched := a.buildEnrichedContext(ctx, query)
	messages := a.composeMessages(cmd, query, enriched)

	completion, completeErr := a.adapter.Complete(ctx, messages, llm.Options{Temperature: temperatureFor(cmd)})
	record := CommandRecord{Command: cmd, Query: query, Timestamp: start, Duration: time.Since(start)}

	if completeErr != nil {
		record.Success = false
		a.history = append(a.history, record)
		a.trimHistoryLocked()
		if err := a.registry.UpdateStatus(a.ID, registry.Error, completeErr.Error()); err != nil {
			a.log.Warn("failed to record error status", zap.Error(err))
		}
		return record, fmt.Errorf("agentcore: %w", completeErr)
	}

	a.appendContextLocked(ContextItem{Role: llm.RoleUser, Content: query, Timestamp: start})
	a.appendContextLocked(ContextItem{Role: llm.RoleAssistant, Content: completion.Content, Timestamp: time.Now()})
	a.evictContextLocked()

	record.Success = true
	record.Quality = assessQuality(completion.Content)
	a.history = append(a.history, record)
	a.trimHistoryLocked()

	if record.Quality >= a.qualityThreshold() {
		a.evolution.AddLesson(evolution.Lesson{
			Context: query,
			Quality: record.Quality,
			Text:    extractLesson(query, completion.Content),
		})
	}

	if err := a.registry.UpdateStatus(a.ID, registry.Ready, ""); err != nil {
		return record, err
	}
	return record, nil
}

func (a *Agent) qualityThreshold() float64 {
	if a.settings.QualityThreshold == 0 {
		return 0.7
	}
	return a.settings.QualityThreshold
}

func (a *Agent) trimHistoryLocked() {
	max := a.settings.MaxCommandHistory
	if max <= 0 {
		max = 1000
	}
	if len(a.history) > max {
		a.history = a.history[len(a.history)-max:]
	}
}

func (a *Agent) appendContextLocked(item ContextItem) {
	a.context = append(a.context, item)
}

// evictContextLocked drops oldest non-pinned items until both the
// item-count and token-estimate budgets are satisfied, or until only
// pinned items remain.
func (a *Agent) evictContextLocked() {
	maxItems := a.settings.MaxContextItems
	if maxItems <= 0 {
		maxItems = 100
	}
	maxTokens := a.settings.MaxContextTokens
	if maxTokens <= 0 {
		maxTokens = 32000
	}

	for len(a.context) > maxItems || estimateContextTokens(a.context) > maxTokens {
		idx := -1
		for i, item := range a.context {
			if !item.Pinned {
				idx = i
				break
			}
		}
		if idx == -1 {
			return
		}
		a.context = append(a.context[:idx], a.context[idx+1:]...)
	}
}

func (a *Agent) buildEnrichedContext(ctx context.Context, query string) EnrichedContext {
	matched := a.graph.MatchTerms(query)
	if len(matched) > 3 {
		matched = matched[:3]
	}

	related := a.relatedConcepts(ctx, matched)

	return EnrichedContext{
		MatchedNodes:      matched,
		Coherent:          a.graph.AreAllTermsConnected(query),
		RelatedConcepts:   related,
		Haystacks:         a.haystacks,
		Memories:          a.evolution.TopMemories(3, 0.5),
		Role:              a.Role,
		RelevanceFunction: a.RelevanceFunction,
	}
}

func (a *Agent) relatedConcepts(ctx context.Context, matched []rolegraph.MatchedTerm) []string {
	if len(matched) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(matched))
	nodeIDs := make([]uint64, len(matched))
	for i, m := range matched {
		nodeIDs[i] = m.NodeID
		seen[m.Term] = struct{}{}
	}

	docs, err := a.graph.QueryByNodes(ctx, nodeIDs, 0, 5)
	if err != nil {
		a.log.Debug("related concept lookup failed", zap.Error(err))
		return nil
	}

	var related []string
	for _, d := range docs {
		for _, tag := range d.Tags {
			if _, dup := seen[tag]; dup {
				continue
			}
			seen[tag] = struct{}{}
			related = append(related, tag)
			if len(related) == 3 {
				return related
			}
		}
	}
	return related
}

func (a *Agent) composeMessages(cmd CommandType, query string, enriched EnrichedContext) []llm.Message {
	system := fmt.Sprintf("You are agent %s, role %s. Capabilities: %s. Goals: %s.",
		a.ID, a.Role, strings.Join(a.Capabilities, ", "), strings.Join(a.Goals, ", "))

	var b strings.Builder
	fmt.Fprintf(&b, "Command: %s\n", cmd)
	if len(enriched.MatchedNodes) > 0 {
		terms := make([]string, len(enriched.MatchedNodes))
		for i, m := range enriched.MatchedNodes {
			terms[i] = m.Term
		}
		fmt.Fprintf(&b, "Matched concepts: %s\n", strings.Join(terms, ", "))
	}
	if enriched.Coherent {
		b.WriteString("Semantic coherence: query terms are all connected in the role graph.\n")
	}
	if len(enriched.RelatedConcepts) > 0 {
		fmt.Fprintf(&b, "Related concepts: %s\n", strings.Join(enriched.RelatedConcepts, ", "))
	}
	if len(enriched.Haystacks) > 0 {
		names := make([]string, len(enriched.Haystacks))
		for i, h := range enriched.Haystacks {
			access := "read-write"
			if h.ReadOnly {
				access = "read-only"
			}
			names[i] = fmt.Sprintf("%s (%s)", h.Name, access)
		}
		fmt.Fprintf(&b, "Available haystacks: %s\n", strings.Join(names, ", "))
	}
	if len(enriched.Memories) > 0 {
		mems := make([]string, len(enriched.Memories))
		for i, m := range enriched.Memories {
			mems[i] = fmt.Sprintf("%s: %s", m.Key, m.Value)
		}
		fmt.Fprintf(&b, "Relevant memory: %s\n", strings.Join(mems, "; "))
	}
	fmt.Fprintf(&b, "Role: %s | Relevance function: %s\n\n", enriched.Role, enriched.RelevanceFunction)
	b.WriteString(query)

	messages := make([]llm.Message, 0, len(a.context)+2)
	messages = append(messages, llm.Message{Role: llm.RoleSystem, Content: system})
	messages = append(messages, a.contextAsMessages()...)
	messages = append(messages, llm.Message{Role: llm.RoleUser, Content: b.String()})
	return messages
}

func (a *Agent) contextAsMessages() []llm.Message {
	out := make([]llm.Message, len(a.context))
	for i, item := range a.context {
		out[i] = llm.Message{Role: item.Role, Content: item.Content}
	}
	return out
}

// assessQuality is a deterministic, length-based proxy for response
// quality, used to gate lesson extraction.
func assessQuality(content string) float64 {
	length := len(strings.TrimSpace(content))
	switch {
	case length == 0:
		return 0
	case length < 40:
		return 0.4
	case length < 200:
		return 0.65
	case length < 1000:
		return 0.8
	default:
		return 0.9
	}
}

func extractLesson(query, response string) string {
	response = strings.TrimSpace(response)
	if idx := strings.IndexAny(response, ".!?"); idx >= 0 && idx < 200 {
		response = response[:idx+1]
	} else if len(response) > 200 {
		response = response[:200] + "..."
	}
	return fmt.Sprintf("for %q: %s", query, response)
}
