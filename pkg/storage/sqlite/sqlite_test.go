package sqlite

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/terraphim-labs/roleforge/pkg/storage"
)

func TestAdapterRoundTrip(t *testing.T) {
	a, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })

	ctx := context.Background()
	_, err = a.Read(ctx, "missing")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	require.NoError(t, a.Write(ctx, "agent_state:1", []byte("payload")))
	got, err := a.Read(ctx, "agent_state:1")
	require.NoError(t, err)
	assert.Equal(t, []byte("payload"), got)

	require.NoError(t, a.Write(ctx, "agent_state:1", []byte("updated")))
	got, err = a.Read(ctx, "agent_state:1")
	require.NoError(t, err)
	assert.Equal(t, []byte("updated"), got)
}
