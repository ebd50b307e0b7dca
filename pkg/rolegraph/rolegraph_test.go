package rolegraph

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/terraphim-labs/roleforge/pkg/thesaurus"
)

// buildTestThesaurus mirrors S1's literal mapping: "consensus" and
// "leader election" are synonyms of the same concept and share id 2.
func buildTestThesaurus() *thesaurus.Thesaurus {
	th := thesaurus.New()
	th.Insert("raft", thesaurus.NormalizedTerm{ID: 1, Value: "raft"})
	th.Insert("consensus", thesaurus.NormalizedTerm{ID: 2, Value: "consensus"})
	th.Insert("leader election", thesaurus.NormalizedTerm{ID: 2, Value: "consensus"})
	th.Insert("cap theorem", thesaurus.NormalizedTerm{ID: 3, Value: "cap theorem"})
	return th
}

func TestNewFailsOnEmptyThesaurus(t *testing.T) {
	_, err := New("empty-role", thesaurus.New(), nil)
	assert.ErrorIs(t, err, ErrBuildFailed)
}

// S1: RoleGraph ranking.
func TestQueryRanking(t *testing.T) {
	g, err := New("test-role", buildTestThesaurus(), nil)
	require.NoError(t, err)

	err = g.InsertDocument("d1", Document{
		Title: "Raft is a consensus algorithm using leader election",
	})
	require.NoError(t, err)

	ctx := context.Background()

	results, err := g.Query(ctx, "consensus", 0, 10)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "d1", results[0].DocumentID)
	assert.True(t, results[0].Rank > 0)

	results, err = g.Query(ctx, "cap theorem", 0, 10)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestQueryMonotonicDocCounts(t *testing.T) {
	g, err := New("test-role", buildTestThesaurus(), nil)
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, g.InsertDocument("d1", Document{Title: "Raft is a consensus algorithm using leader election"}))
	require.NoError(t, g.InsertDocument("d2", Document{Title: "consensus consensus consensus"}))

	results, err := g.Query(ctx, "consensus", 0, 10)
	require.NoError(t, err)
	require.Len(t, results, 2)
	// Results must be sorted by rank descending.
	assert.True(t, results[0].Rank >= results[1].Rank)
}

func TestQueryEmptyStringReturnsEmpty(t *testing.T) {
	g, err := New("test-role", buildTestThesaurus(), nil)
	require.NoError(t, err)
	results, err := g.Query(context.Background(), "", 0, 10)
	require.NoError(t, err)
	assert.Empty(t, results)
}

// S2: Connectivity.
func TestAreAllTermsConnected(t *testing.T) {
	g, err := New("test-role", buildTestThesaurus(), nil)
	require.NoError(t, err)
	require.NoError(t, g.InsertDocument("d1", Document{Title: "Raft is a consensus algorithm using leader election"}))

	assert.True(t, g.AreAllTermsConnected("raft consensus"))
	assert.False(t, g.AreAllTermsConnected("raft cap theorem"))
}

func TestAreAllTermsConnectedVacuousTrue(t *testing.T) {
	g, err := New("test-role", buildTestThesaurus(), nil)
	require.NoError(t, err)
	assert.True(t, g.AreAllTermsConnected(""))
	assert.True(t, g.AreAllTermsConnected("raft"))
}

func TestInvariantEdgeRankEqualsDocFrequencySum(t *testing.T) {
	g, err := New("test-role", buildTestThesaurus(), nil)
	require.NoError(t, err)
	require.NoError(t, g.InsertDocument("d1", Document{Title: "raft consensus"}))
	require.NoError(t, g.InsertDocument("d1", Document{Title: "raft consensus"}))
	require.NoError(t, g.InsertDocument("d2", Document{Title: "raft consensus"}))

	for _, edge := range g.edges {
		var sum uint64
		for _, c := range edge.DocFrequency {
			sum += c
		}
		assert.Equal(t, sum, edge.Rank)
	}
}

func TestInvariantNodeEdgesMatchIncidence(t *testing.T) {
	g, err := New("test-role", buildTestThesaurus(), nil)
	require.NoError(t, err)
	require.NoError(t, g.InsertDocument("d1", Document{Title: "raft consensus leader election"}))

	for nodeID, node := range g.nodes {
		for edgeID := range node.Edges {
			edge := g.edges[edgeID]
			require.NotNil(t, edge)
			assert.True(t, edge.NodeA == nodeID || edge.NodeB == nodeID)
		}
	}
}

func TestRankedNodesSortedByMaxEdgeWeightDescending(t *testing.T) {
	g, err := New("test-role", buildTestThesaurus(), nil)
	require.NoError(t, err)
	require.NoError(t, g.InsertDocument("d1", Document{Title: "raft consensus"}))
	require.NoError(t, g.InsertDocument("d2", Document{Title: "raft consensus"}))
	require.NoError(t, g.InsertDocument("d3", Document{Title: "leader election"}))

	ranked := g.RankedNodes()
	require.NotEmpty(t, ranked)
	for i := 1; i < len(ranked); i++ {
		assert.True(t, ranked[i-1].maxEdgeWeight >= ranked[i].maxEdgeWeight)
	}
}

// S1: "consensus" and "leader election" share NormalizedTerm id 2 and
// appear adjacently in the matched-term sequence (raft, consensus,
// leader election). The resulting self-pair must not create a
// self-loop edge or double-count the shared node's rank.
func TestInsertDocumentSkipsSelfPairForAdjacentSynonyms(t *testing.T) {
	g, err := New("test-role", buildTestThesaurus(), nil)
	require.NoError(t, err)
	require.NoError(t, g.InsertDocument("d1", Document{Title: "Raft is a consensus algorithm using leader election"}))

	node, ok := g.nodes[2]
	require.True(t, ok)
	assert.Equal(t, uint64(1), node.Rank, "the self-pair must not add a second increment on top of the (raft, consensus) pair")

	_, selfLoop := g.edges[pair(2, 2)]
	assert.False(t, selfLoop, "adjacent synonyms of the same concept must not create a self-loop edge")
}

func TestSplitParagraphs(t *testing.T) {
	out := SplitParagraphs("Raft is a consensus algorithm. It uses leader election! Does it use CAP theorem?")
	require.Len(t, out, 3)
	assert.Equal(t, "Raft is a consensus algorithm.", out[0])
}
