package evolution

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/terraphim-labs/roleforge/pkg/storage"
)

func TestLoadTolerateNoRecord(t *testing.T) {
	store := NewStore("agent-1", storage.NewMemoryAdapter())
	require.NoError(t, store.Load(context.Background()))
	assert.Empty(t, store.Snapshot().Memory)
}

func TestSaveLoadSaveProducesIdenticalBytes(t *testing.T) {
	adapter := storage.NewMemoryAdapter()
	ctx := context.Background()

	store := NewStore("agent-1", adapter)
	store.AddMemory(MemoryItem{Key: "k1", Value: "v1", Relevance: 0.9})
	require.NoError(t, store.Save(ctx))

	firstBytes, err := adapter.Read(ctx, "agent_state:agent-1")
	require.NoError(t, err)

	reloaded := NewStore("agent-1", adapter)
	require.NoError(t, reloaded.Load(ctx))
	require.NoError(t, reloaded.Save(ctx))

	secondBytes, err := adapter.Read(ctx, "agent_state:agent-1")
	require.NoError(t, err)

	// The reloaded, unchanged state saves to the same bytes and matches
	// what was persisted before the reload.
	assert.Equal(t, firstBytes, secondBytes)
	assert.Equal(t, store.Snapshot().Memory, reloaded.Snapshot().Memory)
	assert.NotEmpty(t, firstBytes)
}

func TestTopMemoriesFiltersAndSorts(t *testing.T) {
	store := NewStore("agent-1", storage.NewMemoryAdapter())
	store.AddMemory(MemoryItem{Key: "a", Relevance: 0.3})
	store.AddMemory(MemoryItem{Key: "b", Relevance: 0.9})
	store.AddMemory(MemoryItem{Key: "c", Relevance: 0.6})

	top := store.TopMemories(3, 0.5)
	require.Len(t, top, 2)
	assert.Equal(t, "b", top[0].Key)
	assert.Equal(t, "c", top[1].Key)
}

func TestAddLessonDeduplicates(t *testing.T) {
	store := NewStore("agent-1", storage.NewMemoryAdapter())
	store.AddLesson(Lesson{Context: "ctx", Quality: 0.8, Text: "lesson"})
	store.AddLesson(Lesson{Context: "ctx", Quality: 0.9, Text: "lesson"})
	assert.Len(t, store.Snapshot().Lessons, 1)
}
