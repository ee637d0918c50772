package presence

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryDirectory(t *testing.T) {
	ctx := context.Background()
	d := NewMemoryDirectory()

	online, err := d.IsOnline(ctx, "alice")
	require.NoError(t, err)
	assert.False(t, online)

	// Two sessions for the same user; one disconnect keeps them online.
	require.NoError(t, d.Connect(ctx, "alice"))
	require.NoError(t, d.Connect(ctx, "alice"))
	require.NoError(t, d.Connect(ctx, "bob"))

	online, _ = d.IsOnline(ctx, "alice")
	assert.True(t, online)

	users, err := d.Online(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"alice", "bob"}, users)

	require.NoError(t, d.Disconnect(ctx, "alice"))
	online, _ = d.IsOnline(ctx, "alice")
	assert.True(t, online)

	require.NoError(t, d.Disconnect(ctx, "alice"))
	online, _ = d.IsOnline(ctx, "alice")
	assert.False(t, online)

	users, _ = d.Online(ctx)
	assert.Equal(t, []string{"bob"}, users)
}

func TestMemoryDirectoryDisconnectUnknown(t *testing.T) {
	d := NewMemoryDirectory()
	assert.NoError(t, d.Disconnect(context.Background(), "ghost"))

	online, _ := d.IsOnline(context.Background(), "ghost")
	assert.False(t, online)
}
