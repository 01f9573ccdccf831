package gossip

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRosterIgnoresLocalPeer(t *testing.T) {
	hub := NewMemoryHub()
	node, err := hub.NewMemoryNode()
	require.NoError(t, err)

	r := NewRoster(node.ID())
	assert.False(t, r.Up(node.ID()))
	assert.False(t, r.Up(""))
	assert.Zero(t, r.Len())
}

func TestRosterApply(t *testing.T) {
	hub := NewMemoryHub()
	local, err := hub.NewMemoryNode()
	require.NoError(t, err)
	remote, err := hub.NewMemoryNode()
	require.NoError(t, err)

	r := NewRoster(local.ID())
	assert.True(t, r.Apply(Event{Kind: NeighborUp, Peer: remote.ID()}))
	assert.False(t, r.Apply(Event{Kind: NeighborUp, Peer: remote.ID()}), "second up is a no-op")
	assert.False(t, r.Apply(Event{Kind: Received, Peer: remote.ID(), Content: []byte("x")}))
	assert.True(t, r.Has(remote.ID()))
	assert.Len(t, r.Snapshot(), 1)

	assert.True(t, r.Apply(Event{Kind: NeighborDown, Peer: remote.ID()}))
	assert.False(t, r.Has(remote.ID()))
	assert.Empty(t, r.List())
}
