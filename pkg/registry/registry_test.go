package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterAndGet(t *testing.T) {
	r := New()
	require.NoError(t, r.Register(AgentMetadata{ID: "a1", Status: Ready}))

	m, err := r.Get("a1")
	require.NoError(t, err)
	assert.Equal(t, Ready, m.Status)
}

func TestTerminatedIDNeverReused(t *testing.T) {
	r := New()
	require.NoError(t, r.Register(AgentMetadata{ID: "a1", Status: Ready}))
	require.NoError(t, r.Unregister("a1"))

	err := r.Register(AgentMetadata{ID: "a1", Status: Ready})
	assert.ErrorIs(t, err, ErrTerminatedIDReused)
}

func TestUnregisterUnknownFails(t *testing.T) {
	r := New()
	assert.ErrorIs(t, r.Unregister("missing"), ErrNotFound)
}

func TestListByStatus(t *testing.T) {
	r := New()
	require.NoError(t, r.Register(AgentMetadata{ID: "a1", Status: Ready}))
	require.NoError(t, r.Register(AgentMetadata{ID: "a2", Status: Busy}))
	require.NoError(t, r.Register(AgentMetadata{ID: "a3", Status: Ready}))

	ready := r.ListByStatus(Ready)
	require.Len(t, ready, 2)
	assert.Equal(t, "a1", ready[0].ID)
	assert.Equal(t, "a3", ready[1].ID)
}

func TestUpdateExperienceClampsToUnitInterval(t *testing.T) {
	r := New()
	require.NoError(t, r.Register(AgentMetadata{ID: "a1", Status: Ready}))

	require.NoError(t, r.UpdateExperience("a1", true, 2.0))
	m, err := r.Get("a1")
	require.NoError(t, err)
	assert.Equal(t, 1.0, m.Performance.ExperienceLevel)
	assert.Equal(t, 1, m.Performance.TotalInvocations)
	assert.Equal(t, 1.0, m.Performance.SuccessRate())
}

func TestStatusActive(t *testing.T) {
	assert.True(t, Ready.Active())
	assert.True(t, Busy.Active())
	assert.False(t, Paused.Active())
	assert.False(t, Offline.Active())
}
