package agentcore

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/terraphim-labs/roleforge/pkg/config"
	"github.com/terraphim-labs/roleforge/pkg/evolution"
	"github.com/terraphim-labs/roleforge/pkg/llm"
	"github.com/terraphim-labs/roleforge/pkg/registry"
	"github.com/terraphim-labs/roleforge/pkg/rolegraph"
	"github.com/terraphim-labs/roleforge/pkg/storage"
	"github.com/terraphim-labs/roleforge/pkg/thesaurus"
)

type fakeAdapter struct {
	reply string
	err   error
	calls int
}

func (f *fakeAdapter) Complete(ctx context.Context, messages []llm.Message, opts llm.Options) (llm.Completion, error) {
	f.calls++
	if f.err != nil {
		return llm.Completion{}, f.err
	}
	return llm.Completion{Content: f.reply}, nil
}

func newTestGraph(t *testing.T) *rolegraph.RoleGraph {
	t.Helper()
	th := thesaurus.New()
	th.Insert("kubernetes", thesaurus.NormalizedTerm{ID: 1, Value: "kubernetes"})
	th.Insert("helm", thesaurus.NormalizedTerm{ID: 2, Value: "helm"})
	g, err := rolegraph.New("platform", th, nil)
	require.NoError(t, err)
	require.NoError(t, g.InsertDocument("doc1", rolegraph.Document{
		Title: "kubernetes helm", Body: "deploying with helm on kubernetes", Tags: []string{"deploy"},
	}))
	return g
}

func newTestAgent(t *testing.T, adapter llm.Adapter) (*Agent, *registry.Registry) {
	t.Helper()
	reg := registry.New()
	require.NoError(t, reg.Register(registry.AgentMetadata{ID: "a1", Status: registry.Ready}))

	evo := evolution.NewStore("a1", storage.NewMemoryAdapter())
	graph := newTestGraph(t)

	settings := config.Settings{
		MaxContextItems:      10,
		MaxContextTokens:     100000,
		MaxCommandHistory:    100,
		QualityThreshold:     0.7,
	}
	agent := New("a1", "platform-engineer", reg, graph, evo, adapter, nil, settings, nil)
	return agent, reg
}

func TestDispatchRejectsNonReadyAgent(t *testing.T) {
	agent, reg := newTestAgent(t, &fakeAdapter{reply: "ok"})
	require.NoError(t, reg.UpdateStatus("a1", registry.Busy, ""))

	_, err := agent.Dispatch(t.Context(), CmdAnswer, "how do I deploy with helm?")
	assert.ErrorIs(t, err, ErrAgentNotAvailable)
}

func TestDispatchSuccessRecordsHistoryAndContext(t *testing.T) {
	adapter := &fakeAdapter{reply: "Deploy with helm install, a long detailed response describing the rollout steps in full so the quality heuristic rates it highly enough to clear the lesson threshold easily."}
	agent, reg := newTestAgent(t, adapter)

	record, err := agent.Dispatch(t.Context(), CmdAnswer, "how do I deploy with helm on kubernetes?")
	require.NoError(t, err)
	assert.True(t, record.Success)
	assert.Equal(t, 1, adapter.calls)

	meta, err := reg.Get("a1")
	require.NoError(t, err)
	assert.Equal(t, registry.Ready, meta.Status)

	assert.Len(t, agent.Context(), 2)
	assert.Len(t, agent.History(), 1)
}

func TestDispatchHighQualityExtractsLesson(t *testing.T) {
	adapter := &fakeAdapter{reply: "Deploy with helm install, a long detailed response describing the rollout steps in full so the quality heuristic rates it highly enough to clear the lesson threshold easily and reliably every single time it runs."}
	agent, _ := newTestAgent(t, adapter)

	_, err := agent.Dispatch(t.Context(), CmdAnswer, "how do I deploy with helm?")
	require.NoError(t, err)

	snapshot := agent.evolution.Snapshot()
	require.Len(t, snapshot.Lessons, 1)
}

func TestDispatchAdapterFailureSetsErrorStatus(t *testing.T) {
	adapter := &fakeAdapter{err: errors.New("boom")}
	agent, reg := newTestAgent(t, adapter)

	record, err := agent.Dispatch(t.Context(), CmdAnswer, "anything")
	require.Error(t, err)
	assert.False(t, record.Success)

	meta, err := reg.Get("a1")
	require.NoError(t, err)
	assert.Equal(t, registry.Error, meta.Status)
	assert.Empty(t, agent.Context(), "a failed call must not append context items")
}

func TestEvictContextLocked_DropsOldestNonPinnedFirst(t *testing.T) {
	agent, _ := newTestAgent(t, &fakeAdapter{reply: "ok"})
	agent.settings.MaxContextItems = 2

	agent.appendContextLocked(ContextItem{Role: llm.RoleUser, Content: "pinned", Pinned: true})
	agent.appendContextLocked(ContextItem{Role: llm.RoleUser, Content: "first"})
	agent.appendContextLocked(ContextItem{Role: llm.RoleUser, Content: "second"})
	agent.evictContextLocked()

	ctx := agent.Context()
	require.Len(t, ctx, 2)
	assert.Equal(t, "pinned", ctx[0].Content)
	assert.Equal(t, "second", ctx[1].Content)
}

func TestBuildEnrichedContextMatchesGraphTerms(t *testing.T) {
	agent, _ := newTestAgent(t, &fakeAdapter{reply: "ok"})

	enriched := agent.buildEnrichedContext(t.Context(), "tell me about kubernetes and helm")
	assert.NotEmpty(t, enriched.MatchedNodes)
	assert.True(t, enriched.Coherent, "kubernetes and helm co-occur in the same document")
}

func TestTemperatureForCommand(t *testing.T) {
	assert.Equal(t, 0.3, temperatureFor(CmdAnalyze))
	assert.Equal(t, 0.3, temperatureFor(CmdReview))
	assert.Equal(t, 0.8, temperatureFor(CmdCreate))
	assert.Equal(t, 0.7, temperatureFor(CmdAnswer))
}

func TestCommandTypeString(t *testing.T) {
	assert.Equal(t, "Generate", CmdGenerate.String())
	assert.Equal(t, "Custom", CmdCustom.String())
}
