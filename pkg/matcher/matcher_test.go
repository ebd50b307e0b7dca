package matcher

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRejectsEmptyKeyset(t *testing.T) {
	_, err := New(nil)
	assert.ErrorIs(t, err, ErrEmptyKeyset)

	_, err = New([]string{""})
	assert.ErrorIs(t, err, ErrEmptyKeyset)
}

func TestFindMatchesOrderedByPosition(t *testing.T) {
	m, err := New([]string{"raft", "consensus", "leader election"})
	require.NoError(t, err)

	matches := m.FindMatches("Raft is a CONSENSUS algorithm using leader election")
	require.Len(t, matches, 3)
	assert.Equal(t, "raft", m.Keys()[matches[0].PatternIndex])
	assert.Equal(t, "consensus", m.Keys()[matches[1].PatternIndex])
	assert.Equal(t, "leader election", m.Keys()[matches[2].PatternIndex])

	assert.True(t, matches[0].Start < matches[1].Start)
	assert.True(t, matches[1].Start < matches[2].Start)
}

func TestFindMatchesLeftmostLongest(t *testing.T) {
	m, err := New([]string{"cap", "cap theorem"})
	require.NoError(t, err)

	matches := m.FindMatches("the cap theorem applies")
	require.Len(t, matches, 1)
	assert.Equal(t, "cap theorem", m.Keys()[matches[0].PatternIndex])
}

func TestFindMatchesKeepsOverlapsAtDistinctStarts(t *testing.T) {
	m, err := New([]string{"ab", "bc"})
	require.NoError(t, err)

	matches := m.FindMatches("abc")
	require.Len(t, matches, 2)
	assert.Equal(t, 0, matches[0].Start)
	assert.Equal(t, 1, matches[1].Start)
}

func TestFindMatchesEmptyText(t *testing.T) {
	m, err := New([]string{"raft"})
	require.NoError(t, err)
	assert.Empty(t, m.FindMatches(""))
}
